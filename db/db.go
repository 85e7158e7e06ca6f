package db

import (
	"fmt"
	"strconv"
	"time"

	"github.com/Matti-Krebelder/DMS/config"
	"github.com/Matti-Krebelder/DMS/models"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const embeddedPort = 5433

// DB wraps gorm.DB and the embedded Postgres process when one was started.
type DB struct {
	*gorm.DB
	embedded *embeddedpostgres.EmbeddedPostgres
	log      *zap.Logger
}

// Connect opens Postgres, starting an embedded instance when cfg.Embedded is set.
func Connect(cfg config.DatabaseConfig, logLevel string, log *zap.Logger) (*DB, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var embedded *embeddedpostgres.EmbeddedPostgres
	host, port, password := cfg.Host, cfg.Port, cfg.Password
	if cfg.Embedded {
		log.Info("starting embedded postgres", zap.String("path", cfg.DataPath), zap.Int("port", embeddedPort))
		embedded = embeddedpostgres.NewDatabase(embeddedpostgres.DefaultConfig().
			DataPath(cfg.DataPath).
			Port(uint32(embeddedPort)).
			Database(cfg.Name).
			Username(cfg.User).
			Password("postgres"))
		if err := embedded.Start(); err != nil {
			return nil, fmt.Errorf("start embedded database: %w", err)
		}
		host, port, password = "localhost", strconv.Itoa(embeddedPort), "postgres"
	} else {
		log.Info("connecting to postgres", zap.String("host", host), zap.String("port", port))
	}

	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		host, cfg.User, password, cfg.Name, port,
	)

	level := gormlogger.Warn
	if logLevel == "debug" {
		level = gormlogger.Info
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(level),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		if embedded != nil {
			_ = embedded.Stop()
		}
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if sqlDB, err := gdb.DB(); err == nil {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	log.Info("database connected")
	return &DB{DB: gdb, embedded: embedded, log: log}, nil
}

// Close closes the pool and stops the embedded process.
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err == nil {
		err = sqlDB.Close()
	}
	if db.embedded != nil {
		db.log.Info("stopping embedded postgres")
		if stopErr := db.embedded.Stop(); stopErr != nil && err == nil {
			err = stopErr
		}
	}
	return err
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Warehouse{},
		&models.Device{},
		&models.Loan{},
		&models.LoanLine{},
		&models.LabelLayout{},
	); err != nil {
		return err
	}

	// return tokens only need to be unique among loans still out
	if err := db.Exec(fmt.Sprintf(`
	  CREATE UNIQUE INDEX IF NOT EXISTS %s_active_token
	  ON %s (warehouse_id, return_token)
	  WHERE status = 'active';
	`, models.LoanTable, models.LoanTable)).Error; err != nil {
		return err
	}

	if err := db.Exec(fmt.Sprintf(`
	  CREATE INDEX IF NOT EXISTS %s_active_borrower
	  ON %s (warehouse_id, borrower_id, borrowed_at DESC)
	  WHERE status = 'active';
	`, models.LoanTable, models.LoanTable)).Error; err != nil {
		return err
	}

	return nil
}
