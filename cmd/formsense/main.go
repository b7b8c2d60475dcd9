// Command formsense detects and monitors job application forms.
//
// Usage:
//
//	formsense -html page.html                  # detect on a static page
//	formsense -url https://boards.example.com  # observe a live page
//	formsense -serve :8080                     # HTTP detection API
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hireloop/formsense/detect"
	"github.com/hireloop/formsense/dom"
	"github.com/hireloop/formsense/live"
	"github.com/hireloop/formsense/monitor"
	"github.com/hireloop/formsense/store"
)

func main() {
	htmlPath := flag.String("html", "", "detect forms in a static HTML file ('-' for stdin)")
	pageURL := flag.String("url", "", "observe a live page in a headless browser")
	serveAddr := flag.String("serve", "", "run the HTTP detection API on this address")
	configPath := flag.String("config", "", "path to formsense.yaml detection config")
	dbPath := flag.String("db", "", "SQLite path to persist detections and events")
	sourceURL := flag.String("source-url", "", "page URL to attribute to -html input")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *htmlPath, *pageURL, *serveAddr, *configPath, *dbPath, *sourceURL); err != nil {
		logger.Error("formsense: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, htmlPath, pageURL, serveAddr, configPath, dbPath, sourceURL string) error {
	opts, err := loadOptions(configPath, logger)
	if err != nil {
		return err
	}

	var st *store.Store
	if dbPath != "" {
		st, err = store.Open(dbPath, logger)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()
	}

	switch {
	case htmlPath != "":
		return runStatic(ctx, logger, opts, st, htmlPath, sourceURL)
	case pageURL != "":
		return runLive(ctx, logger, opts, st, pageURL)
	case serveAddr != "":
		return runServe(ctx, logger, opts, st, serveAddr)
	}

	fmt.Fprintln(os.Stderr, "usage: formsense -html <file> | -url <url> | -serve <addr>")
	os.Exit(1)
	return nil
}

func loadOptions(configPath string, logger *slog.Logger) (detect.Options, error) {
	if configPath == "" {
		opts := detect.Options{Logger: logger}
		return opts, nil
	}
	loaded, err := detect.LoadOptionsFile(configPath)
	if err != nil {
		return detect.Options{}, fmt.Errorf("load config: %w", err)
	}
	loaded.Logger = logger
	return *loaded, nil
}

func runStatic(ctx context.Context, logger *slog.Logger, opts detect.Options, st *store.Store, htmlPath, sourceURL string) error {
	var src io.Reader
	if htmlPath == "-" {
		src = os.Stdin
	} else {
		f, err := os.Open(htmlPath)
		if err != nil {
			return fmt.Errorf("open html: %w", err)
		}
		defer f.Close()
		src = f
	}

	doc, err := dom.Parse(src, sourceURL)
	if err != nil {
		return fmt.Errorf("parse html: %w", err)
	}

	engine := detect.NewEngine(opts)
	res := engine.Detect(ctx, doc)
	if st != nil {
		if err := st.SaveResult(ctx, &res); err != nil {
			logger.Warn("persist result failed", "err", err)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func runLive(ctx context.Context, logger *slog.Logger, opts detect.Options, st *store.Store, pageURL string) error {
	session, err := live.Open(ctx, pageURL, live.Config{
		Stealth:        true,
		BlockResources: []string{"images", "fonts", "media"},
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer session.Close()

	if err := session.StampBounds(ctx); err != nil {
		logger.Debug("bounds unavailable", "err", err)
	}

	doc := session.Document()
	engine := detect.NewEngine(opts)
	res := engine.Detect(ctx, doc)
	logger.Info("detection complete",
		"platform", string(res.Platform), "forms", len(res.Forms), "errors", len(res.Errors))
	if st != nil {
		if err := st.SaveResult(ctx, &res); err != nil {
			logger.Warn("persist result failed", "err", err)
		}
	}
	if len(res.Forms) == 0 {
		return fmt.Errorf("no forms detected on %s", pageURL)
	}

	mon := monitor.New(doc, monitor.Config{Logger: logger})
	defer mon.Stop()

	enc := json.NewEncoder(os.Stdout)
	mon.Subscribe(func(ev monitor.ChangeEvent) {
		enc.Encode(ev)
		if st != nil {
			if err := st.AppendEvent(ctx, ev); err != nil {
				logger.Warn("persist event failed", "err", err)
			}
		}
	})
	mon.RegisterResult(res)

	<-ctx.Done()
	return nil
}
