// ares-web serves the ARES configuration as a small JSON API, for editing
// hyperparameters and patching the training script from a browser or script
// on the training host.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/aresml/arescfg"
	"github.com/aresml/arescfg/internal/logging"
	"github.com/aresml/arescfg/internal/storage"
)

func main() {
	_ = godotenv.Load()

	settingsPath := flag.String("settings", storage.DefaultSettingsFile, "path to settings file (YAML or TOML)")
	addr := flag.String("addr", "127.0.0.1:8080", "listen address")
	printToken := flag.Duration("print-token", 0, "print a bearer token valid for this long and exit (needs ARES_WEB_SECRET)")
	flag.Parse()

	logger := logging.New(os.Stderr, "ares-web")

	// With ARES_WEB_SECRET set, every API route needs an HS256 bearer token.
	secret := []byte(os.Getenv("ARES_WEB_SECRET"))
	if *printToken > 0 {
		if len(secret) == 0 {
			logger.Error("ARES_WEB_SECRET is not set")
			os.Exit(1)
		}
		token, err := issueToken(secret, *printToken, time.Now())
		if err != nil {
			logger.Error("sign token", "error", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}
	if len(secret) == 0 {
		logger.Warn("ARES_WEB_SECRET not set, API is unauthenticated")
	}

	settings, err := storage.LoadSettings(*settingsPath)
	if err != nil {
		logger.Error("load settings", "error", err)
		os.Exit(1)
	}
	settings.ApplyEnv(os.Getenv)

	engine, err := arescfg.NewEngine(arescfg.EngineConfig{Settings: settings, Logger: logger})
	if err != nil {
		logger.Error("create engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	srv := &http.Server{
		Addr:         *addr,
		Handler:      requestLog(logger, recovery(logger, requireToken(secret, newRouter(engine)))),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // feed checks fetch every feed in turn
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("listening", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
		return
	}
	logger.Info("stopped")
}
