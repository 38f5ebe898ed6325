package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bizcal/internal/alert"
	"bizcal/internal/api"
	"bizcal/internal/config"
	"bizcal/internal/ics"
	appLog "bizcal/internal/log"
	"bizcal/internal/model"
	"bizcal/internal/session"
	"bizcal/internal/store"
	"bizcal/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	debug      bool
}

func main() {
	flags := parseFlags()
	if err := run(flags); err != nil {
		appLog.Error("bizcal exited with error", err)
		os.Exit(1)
	}
}

func run(flags flagConfig) error {
	conf, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", flags.configPath, err)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if err := conf.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"source", conf.Source,
		"horizon_days", conf.HorizonDays,
		"ics_count", len(conf.ICS),
		"once", flags.once,
	)

	src, checker, closeSrc, err := buildSource(conf)
	if err != nil {
		return err
	}
	defer closeSrc()

	loc := conf.Location()
	engine := alert.NewEngine(src,
		alert.WithHorizon(conf.Horizon()),
		alert.WithSession(checker),
		alert.WithClock(func() time.Time { return time.Now().In(loc) }),
	)

	appLog.Info("alert engine ready", "horizon", engine.Horizon())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if flags.once {
		return printAlerts(engine.Cycle(ctx))
	}

	feed := alert.NewFeed()
	poller := alert.NewPoller(engine, conf.Poll(), feed.Publish)
	if err := poller.Start(ctx); err != nil {
		return fmt.Errorf("start poller: %w", err)
	}
	defer poller.Stop()
	appLog.Info("alert poller running", "interval", poller.Interval())

	srv := &http.Server{
		Addr:              conf.Listen,
		Handler:           web.NewServer(conf, feed, poller).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		appLog.Info("signal received, shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	poller.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("http shutdown failed", err)
	}
	appLog.Info("bizcal exiting")
	return nil
}

// buildSource wires the configured event source together with the session
// gate that guards it.
func buildSource(conf *config.Config) (alert.EventSource, alert.SessionChecker, func(), error) {
	noop := func() {}

	switch conf.Source {
	case config.SourceAPI:
		sess := session.NewTokenSession(conf.API.Token, conf.API.TokenFile)
		client := api.New(conf.API.BaseURL, sess,
			api.WithTimeout(time.Duration(conf.API.TimeoutSeconds)*time.Second))
		return client, sess, noop, nil

	case config.SourceICS:
		sources := make([]ics.Source, 0, len(conf.ICS))
		for _, s := range conf.ICS {
			var category model.Category
			if s.Category != "" {
				category = model.ParseCategory(s.Category)
			}
			sources = append(sources, ics.Source{ID: s.ID, URL: s.URL, Category: category})
		}
		fetcher := ics.NewFetcher(conf.ICSCacheDir, nil)
		return ics.NewCalendar(fetcher, sources, conf.Location()), session.Static(true), noop, nil

	case config.SourcePostgres:
		db, err := store.NewDB(conf.Postgres.DSN, conf.Postgres.OwnerID)
		if err != nil {
			return nil, nil, noop, err
		}
		closeDB := func() {
			if err := db.Close(); err != nil {
				appLog.Error("database close failed", err)
			}
		}
		return db, session.Static(true), closeDB, nil
	}
	return nil, nil, noop, fmt.Errorf("unknown source %q", conf.Source)
}

func printAlerts(alerts []model.Alert) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(alerts)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/bizcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one alert cycle, print the alerts and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
