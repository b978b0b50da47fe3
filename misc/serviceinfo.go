package misc

import (
	"os"
	"strconv"
)

var (
	serviceName     string
	serviceInstance string
)

func GetServiceName() string {
	if serviceName == "" {
		serviceName = os.Getenv("SERVICE_NAME")
		if serviceName == "" {
			serviceName = "memberflow"
		}
	}
	return serviceName
}

func GetServiceInstance() string {
	if serviceInstance == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		serviceInstance = hostname + "-" + strconv.Itoa(os.Getpid())
	}
	return serviceInstance
}
