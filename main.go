package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Matti-Krebelder/DMS/app"
	"github.com/Matti-Krebelder/DMS/config"
	"github.com/Matti-Krebelder/DMS/logger"
	"github.com/Matti-Krebelder/DMS/routes"
	"github.com/Matti-Krebelder/DMS/scheduler"

	"go.uber.org/zap"
)

func main() {
	envFile := flag.String("env", "", "path to an .env file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		panic(err)
	}
	log := logger.Must(logger.New(cfg.Log.Level))
	defer func() { _ = log.Sync() }()

	application := app.MustNew(cfg, log)
	defer application.Close()

	sched := scheduler.NewScheduler(cfg, application.Repo, application.Updates, logger.Named(log, "scheduler"))
	if err := sched.Start(); err != nil {
		log.Fatal("start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	routes.RegisterRoutes(application.Router, application, sched)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           application.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr), zap.String("version", config.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
	log.Info("stopped")
}
