package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"calcweb/internal/config"
	apphttp "calcweb/internal/http"
	"calcweb/internal/integrations/calcapi"
	"calcweb/internal/logging"
	"calcweb/internal/security/secretbox"
	"calcweb/internal/service/records"
	"calcweb/internal/session"
	storepkg "calcweb/internal/store"
	"calcweb/internal/store/file"
	"calcweb/internal/store/memory"
	"calcweb/internal/store/postgres"
	"calcweb/internal/store/redis"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		logrus.WithError(err).Warn("failed to load .env")
	}
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		logrus.WithError(err).Fatal("invalid logging configuration")
	}

	backend, closer, err := openBackend(cfg)
	if err != nil {
		log.WithError(err).WithField("store", cfg.SessionStore).Fatal("session store unavailable")
	}
	defer closer.Close()

	var opts []session.Option
	if cfg.SessionEncryptionKey != "" {
		box, err := secretbox.New(cfg.SessionEncryptionKey)
		if err != nil {
			log.WithError(err).Fatal("invalid session encryption key")
		}
		opts = append(opts, session.WithSealer(box))
	}
	startCtx, cancelStart := context.WithTimeout(context.Background(), 10*time.Second)
	sess, err := session.Open(startCtx, backend, opts...)
	cancelStart()
	if err != nil {
		log.WithError(err).Fatal("failed to load session")
	}

	catalog, err := config.LoadCatalog(cfg.OperationsFile)
	if err != nil {
		log.WithError(err).Fatal("failed to load operation catalog")
	}

	api := calcapi.NewClient(cfg.APIBaseURL, sess,
		calcapi.WithTimeout(cfg.APITimeout),
		calcapi.WithLogger(log),
	)
	recs := records.NewController(api, cfg.RecordsDebounce, log)
	defer recs.Close()

	srv, err := apphttp.NewServer(sess, api, catalog, recs, log)
	if err != nil {
		log.WithError(err).Fatal("failed to build web server")
	}

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"addr":     cfg.ListenAddr,
			"api":      cfg.APIBaseURL,
			"store":    cfg.SessionStore,
			"signedIn": sess.IsAuthenticated(),
		}).Info("calculator web client listening")
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

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func openBackend(cfg config.Config) (storepkg.Store, io.Closer, error) {
	switch cfg.SessionStore {
	case config.StoreMemory:
		return memory.NewStore(), nopCloser{}, nil
	case config.StoreFile:
		st, err := file.NewStore(cfg.SessionFile)
		return st, nopCloser{}, err
	case config.StorePostgres:
		st, err := postgres.NewStore(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return st, st, nil
	case config.StoreRedis:
		st, err := redis.NewStore(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return st, st, nil
	default:
		return nil, nil, fmt.Errorf("unknown session store %q", cfg.SessionStore)
	}
}
