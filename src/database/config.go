package database

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	EnableDB bool `envconfig:"ENABLE_DB" default:"false"`
	// Driver is "postgres" or "sqlite". For sqlite the URL is a file path or
	// "file::memory:?cache=shared".
	Driver              string `envconfig:"DATABASE_DRIVER" default:"sqlite"`
	DatabaseURLMain     string `envconfig:"DATABASE_URL_MAIN" default:"portfolio.db"`
	DatabaseURLReadOnly string `envconfig:"DATABASE_URL_READONLY"`
	GormLogLevel        int    `envconfig:"GORM_LOG_LEVEL" default:"2"`
	MaxOpenConns        int    `envconfig:"DATABASE_MAX_OPEN_CONNS" default:"20"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
