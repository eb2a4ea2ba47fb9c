package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/op/go-logging"
	"github.com/urfave/cli/v2"

	"github.com/timlee789/pos-sub000/server/api"
	"github.com/timlee789/pos-sub000/server/store"
)

var log = logging.MustGetLogger("log")

// InitLogger Receives the log level to be set in go-logging as a string. This method
// parses the string and set the level to the logger. If the level string is not
// valid an error is returned
func InitLogger(logLevel string) error {
	baseBackend := logging.NewLogBackend(os.Stdout, "", 0)
	format := logging.MustStringFormatter(
		`%{time:2006-01-02 15:04:05} %{level:.5s}     %{message}`,
	)
	backendFormatter := logging.NewBackendFormatter(baseBackend, format)

	backendLeveled := logging.AddModuleLevel(backendFormatter)
	logLevelCode, err := logging.LogLevel(logLevel)
	if err != nil {
		return err
	}
	backendLeveled.SetLevel(logLevelCode, "")

	logging.SetBackend(backendLeveled)
	return nil
}

func main() {
	app := &cli.App{
		Name:  "pos-server",
		Usage: "back-office API for the POS terminals",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "bootstrap the database schema and exit",
				Action: migrate,
			},
		},
		DefaultCommand: "serve",
	}
	if err := app.Run(os.Args); err != nil {
		log.Criticalf("%v", err)
		os.Exit(1)
	}
}

func setup() (*Config, *store.Store, error) {
	config, err := LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	if err := InitLogger(config.LogLevel); err != nil {
		return nil, nil, err
	}
	db, err := store.Open(config.DatabaseDSN)
	if err != nil {
		return nil, nil, err
	}
	return config, db, nil
}

func migrate(_ *cli.Context) error {
	_, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Bootstrap(context.Background()); err != nil {
		return err
	}
	log.Info("Schema bootstrap completed.")
	return nil
}

func serve(_ *cli.Context) error {
	config, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Bootstrap(context.Background()); err != nil {
		return err
	}

	handler := api.New(db, api.Config{
		GatewayAddress: config.GatewayAddress,
		StaleAfter:     time.Duration(config.StaleProcessingMin) * time.Minute,
		OpeningHour:    config.OpeningHour,
	})
	server := &http.Server{Addr: config.HTTPAddress, Handler: handler.Router()}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		log.Infof("Back-office API listening on %s", config.HTTPAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server stopped: %v", err)
		}
	}()

	sig := <-sigChan
	log.Infof("Received signal: %v. Initiating graceful shutdown...", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("Error during shutdown: %v", err)
	}
	log.Info("Server shutdown completed.")
	return nil
}
