package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"calcweb/internal/config"
	"calcweb/internal/fakeapi"
	"calcweb/internal/logging"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		logrus.WithError(err).Warn("failed to load .env")
	}
	cfg, err := config.LoadFakeAPI()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		logrus.WithError(err).Fatal("invalid logging configuration")
	}

	users, err := config.ParseUsers(cfg.Users)
	if err != nil {
		log.WithError(err).Fatal("invalid users")
	}
	balance, err := decimal.NewFromString(cfg.InitialBalance)
	if err != nil {
		log.WithError(err).Fatal("invalid FAKEAPI_INITIAL_BALANCE")
	}
	catalog, err := config.LoadCatalog(cfg.OperationsFile)
	if err != nil {
		log.WithError(err).Fatal("failed to load operation catalog")
	}

	svc, err := fakeapi.New(fakeapi.Options{
		Users:          users,
		InitialBalance: balance,
		JWTSecret:      cfg.JWTSecret,
		Catalog:        catalog,
		Logger:         log,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to start calculator stand-in")
	}

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      svc.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("calculator stand-in listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}
