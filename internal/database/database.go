package database

import (
	"fmt"
	"log"

	"github.com/test-portal/backend/internal/config"
	"github.com/test-portal/backend/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Connect(cfg *config.Config) (*gorm.DB, error) {
	var logLevel logger.LogLevel
	if cfg.Server.Env == "development" {
		logLevel = logger.Info
	} else {
		logLevel = logger.Silent
	}

	log.Printf("Attempting %s database connection with DSN: %s", cfg.Database.Driver, maskPassword(cfg.Database.DSN))

	dialector, err := Dialector(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	db, err := Open(dialector, logger.Default.LogMode(logLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Database connection successful")
	return db, nil
}

// Dialector picks the gorm driver for the configured backend.
func Dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "postgres":
		return postgres.Open(dsn), nil
	case "mysql":
		return mysql.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Open applies the settings every connection needs. TranslateError makes
// unique-index violations come back as gorm.ErrDuplicatedKey on every driver.
func Open(dialector gorm.Dialector, l logger.Interface) (*gorm.DB, error) {
	return gorm.Open(dialector, &gorm.Config{
		Logger:         l,
		TranslateError: true,
	})
}

func maskPassword(dsn string) string {
	if len(dsn) > 20 {
		return dsn[:20] + "...***..."
	}
	return "***"
}

func Migrate(db *gorm.DB) error {
	log.Println("Running migrations...")

	err := db.AutoMigrate(
		&models.Group{},
		&models.TestSchedule{},
		&models.Question{},
		&models.AnswerOption{},
		&models.Student{},
		&models.TestResult{},
		&models.User{},
		&models.AuditLog{},
		&models.RefreshToken{},
	)
	if err != nil {
		return err
	}

	db.Exec("CREATE INDEX IF NOT EXISTS idx_questions_schedule_position ON questions(test_schedule_id, position)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_answer_options_question_position ON answer_options(question_id, position)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_test_schedules_group_open ON test_schedules(group_id, open_time)")

	return nil
}
