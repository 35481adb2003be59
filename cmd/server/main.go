package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/xHacka/combined-log-analyzer/internal/config"
	"github.com/xHacka/combined-log-analyzer/internal/handlers"
	"github.com/xHacka/combined-log-analyzer/internal/ingest"
	"github.com/xHacka/combined-log-analyzer/internal/repository"
)

const retentionInterval = 6 * time.Hour

func main() {
	app := cli.NewApp()
	app.Name = "server"
	app.Usage = "Ingest combined-format access logs and serve the query API"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "config",
			Usage:  "Path to config.yaml",
			Value:  config.DefaultPath,
			EnvVar: "CLA_CONFIG",
		},
	}
	app.Action = func(c *cli.Context) error {
		return serve(c.String("config"))
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func serve(configPath string) error {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log.SetLevel(cfg.Level())

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	repo, err := repository.NewSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer repo.Close()

	rules := ingest.NewFilterRules(
		cfg.Ignore.WhitelistedIPs,
		cfg.Ignore.SkipExtensions,
		cfg.Ignore.SkipMethods,
		cfg.Ignore.SkipStatusCodes,
		cfg.Ignore.SkipPathPrefixes,
	)
	in := ingest.NewIngester(repo, rules, cfg.ErrorPolicy(), cfg.BatchSize, log.WithField("component", "ingest"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go runRetention(ctx, repo, cfg.RetentionDays, log)

	// Local file tailing
	if cfg.LogPath != "" {
		go func() {
			if err := in.ReadFullFileAndTail(ctx, cfg.LogPath); err != nil {
				log.Errorf("tail %s: %v", cfg.LogPath, err)
			}
		}()
	}

	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: handlers.NewRouter(repo, in, log.WithField("component", "http")),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("shutdown: %v", err)
		}
	}()

	log.Infof("Listening on %s", cfg.Listen)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

func runRetention(ctx context.Context, repo repository.LogRepository, days int, log logrus.FieldLogger) {
	ticker := time.NewTicker(retentionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour)
			n, err := repo.DeleteOlderThan(ctx, cutoff)
			if err != nil {
				log.Errorf("retention: %v", err)
				continue
			}
			log.Infof("retention: deleted %d entries older than %v", n, cutoff)
		}
	}
}
