package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Matti-Krebelder/DMS/config"
	"github.com/Matti-Krebelder/DMS/db"
	"github.com/Matti-Krebelder/DMS/ledger"
	"github.com/Matti-Krebelder/DMS/logger"
	"github.com/Matti-Krebelder/DMS/session"
	"github.com/Matti-Krebelder/DMS/updates"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Short aliases for handlers.
type Ctx = gin.Context
type H = gin.H

// App holds the long-lived dependencies.
type App struct {
	Router  *gin.Engine
	DB      *db.DB
	RDB     *redis.Client
	Log     *zap.Logger
	Config  *config.Config
	Repo    *db.Repo
	Ledger  *ledger.Ledger
	Updates *updates.Checker

	appSess *session.AppSessionStore
	carts   *session.CartStore
}

func (a *App) AppSessions() *session.AppSessionStore { return a.appSess }
func (a *App) Carts() *session.CartStore             { return a.carts }

// New connects Postgres and redis, migrates the schema and builds the router.
func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}

	dbConn, err := db.Connect(cfg.Database, cfg.Log.Level, logger.Named(log, "db"))
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(dbConn.DB); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: 0})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
	}

	repo := db.NewRepo(dbConn.DB)
	if err := BootstrapUsers(ctx, cfg, repo, log); err != nil {
		_ = rdb.Close()
		_ = dbConn.Close()
		return nil, err
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger.Named(log, "http")))
	useCORS(r, cfg.Server.WebOrigin)

	return &App{
		Router:  r,
		DB:      dbConn,
		RDB:     rdb,
		Log:     log,
		Config:  cfg,
		Repo:    repo,
		Ledger:  ledger.New(repo.LedgerStore(), logger.Named(log, "ledger")),
		Updates: updates.NewChecker(cfg.Updates.VersionURL, cfg.Updates.Current, logger.Named(log, "updates")),
		appSess: session.NewAppSessionStore(rdb, cfg.Session.TTL),
		carts:   session.NewCartStore(rdb, cfg.Session.CartTTL),
	}, nil
}

func MustNew(cfg *config.Config, log *zap.Logger) *App {
	a, err := New(cfg, log)
	if err != nil {
		log.Fatal("init app", zap.Error(err))
	}
	return a
}

func (a *App) Close() {
	_ = a.RDB.Close()
	if err := a.DB.Close(); err != nil {
		a.Log.Warn("close db", zap.Error(err))
	}
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
