package db

import (
	"fmt"

	"patchpilot/backend/app/models"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	Path     string
}

func Connect(cfg Config) (*gorm.DB, error) {
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	switch cfg.Driver {
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC", cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)
		return gorm.Open(mysql.Open(dsn), gcfg)
	case "", "sqlite":
		gdb, err := gorm.Open(sqlite.Open(cfg.Path+"?_busy_timeout=5000&_journal_mode=WAL"), gcfg)
		if err != nil {
			return nil, err
		}
		// SQLite allows one writer; serialising through one connection keeps
		// conditional updates from tripping over SQLITE_BUSY.
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		return gdb, nil
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.Driver)
	}
}

// Migrate creates or updates every table the server owns.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&models.User{},
		&models.Device{},
		&models.Action{},
		&models.ActionTarget{},
		&models.AuditLog{},
		&models.HistoryLog{},
		&models.ServerSettings{},
	)
}
