package postgres

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"release-registry/config"
)

// InitDB opens the postgres connection described by config.Cfg.Database and
// runs the schema migrations.
func InitDB() (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host='%s' port='%d' user='%s' password='%s' dbname='%s' sslmode='%s'",
		config.Cfg.Database.Host,
		config.Cfg.Database.Port,
		config.Cfg.Database.Username,
		config.Cfg.Database.Password,
		config.Cfg.Database.Database,
		config.Cfg.Database.SSLMode,
	)

	dsnRedacted := dsn
	if config.Cfg.Database.Password != "" {
		dsnRedacted = strings.ReplaceAll(dsn, config.Cfg.Database.Password, "*****")
	}
	log.Debug().
		Msgf("Connecting to postgres using the following information: %s", dsnRedacted)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, wrapErrorWithDetails(err, "connect", config.Cfg.Database.Host)
	}

	log.Debug().Msg("Successfully connected to the database")

	err = db.AutoMigrate(
		&accountRecord{},
		&appRecord{},
		&collaboratorRecord{},
		&deploymentRecord{},
		&packageRecord{},
		&accessKeyRecord{},
	)
	if err != nil {
		return nil, wrapErrorWithDetails(err, "migrate", "")
	}

	return db, nil
}
