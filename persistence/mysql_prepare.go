package persistence

import (
	"database/sql"
	"errors"
	"strings"
)

// PrepareMysqlDatabase creates the database named in driverArgs when absent.
func PrepareMysqlDatabase(driverArgs string) error {
	slashIdx := strings.LastIndex(driverArgs, "/")
	if slashIdx < 0 || slashIdx == len(driverArgs)-1 {
		return errors.New("database name not found in driver args")
	}
	databaseName := driverArgs[slashIdx+1:]
	if qIdx := strings.Index(databaseName, "?"); qIdx >= 0 {
		databaseName = databaseName[0:qIdx]
	}
	if databaseName == "" {
		return errors.New("database name not found in driver args")
	}

	db, err := sql.Open("mysql", driverArgs[0:slashIdx+1])
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.Exec("CREATE DATABASE IF NOT EXISTS `" + databaseName + "` CHARACTER SET utf8mb4")
	return err
}
