package main

import (
	"memberflow/account"
	"memberflow/audit"
	"memberflow/bizerror"
	"memberflow/client/es"
	"memberflow/domain"
	"memberflow/event"
	"memberflow/indices"
	"memberflow/infra/tracing"
	"memberflow/misc"
	"memberflow/notification"
	"memberflow/persistence"
	"memberflow/servehttp"
	"memberflow/session"
	"memberflow/sessions"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	logrus.Infoln("service start")

	tracingCloser, err := tracing.Bootstrap(misc.GetServiceName())
	if err != nil {
		logrus.Fatalf("tracing bootstrap failed %v\n", err)
	}
	defer tracingCloser.Close()

	dbConfig, err := persistence.ParseDatabaseConfigFromEnv()
	if err != nil {
		logrus.Fatalf("parse database config failed %v\n", err)
	}

	// create database (no conflict)
	if dbConfig.DriverType == "mysql" {
		if err := persistence.PrepareMysqlDatabase(dbConfig.DriverArgs); err != nil {
			logrus.Fatalf("failed to prepare database %v\n", err)
		}
	}

	// connect database
	ds := &persistence.DataSourceManager{DatabaseConfig: dbConfig}
	if err := ds.Start(); err != nil {
		logrus.Fatalf("database connection failed %v\n", err)
	}
	defer ds.Stop()
	persistence.ActiveDataSourceManager = ds

	// database migration (race condition)
	err = ds.GormDB(nil).AutoMigrate(
		&domain.MembershipRecord{},
		&audit.Entry{},
		&event.EventRecord{},
		&notification.Notification{},
		&account.User{},
		&account.Role{},
		&account.Permission{},
		&account.RolePermissionBinding{},
		&account.UserRoleBinding{},
	).Error
	if err != nil {
		logrus.Fatalf("database migration failed %v\n", err)
	}

	if err := account.DefaultSecurityConfiguration(); err != nil {
		logrus.Fatalf("security configuration failed %v\n", err)
	}

	if err := es.StartESClient(); err != nil {
		logrus.Fatalf("elasticsearch client start failed %v\n", err)
	}

	event.EventHandlers = append(event.EventHandlers,
		notification.ReviewFinalizedEventHandle,
		indices.MemberIndexEventHandle,
	)

	engine := gin.New()
	engine.Use(gin.Recovery(), bizerror.ErrorHandling(), tracing.TracingIngress())

	engine.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "memberflow")
	})

	sessions.RegisterSessionsHandler(engine)
	account.RegisterUsersRestAPI(engine, session.SimpleAuthFilter())
	servehttp.RegisterMembershipsHandler(engine, session.SimpleAuthFilter())
	servehttp.RegisterReviewTransitionsHandler(engine, session.SimpleAuthFilter())
	servehttp.RegisterReviewStatsHandler(engine, session.SimpleAuthFilter())
	indices.RegisterIndicesRestAPI(engine, session.SimpleAuthFilter())

	servehttp.StartHTTPServer(engine)
}
