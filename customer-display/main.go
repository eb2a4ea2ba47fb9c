package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/op/go-logging"

	"github.com/timlee789/pos-sub000/display"
	"github.com/timlee789/pos-sub000/displaysync"
	mw "github.com/timlee789/pos-sub000/middleware"
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
	config, err := InitConfig()
	if err != nil {
		log.Criticalf("Failed to read config: %v", err)
		os.Exit(1)
	}
	if err := InitLogger(config.LogLevel); err != nil {
		log.Criticalf("Invalid log level: %v", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	conn, err := mw.Dial(config.MwAddress)
	if err != nil {
		log.Fatalf("Failed to connect to broker: %v", err)
	}
	consumer, err := mw.NewConsumer(conn, config.DisplayID, config.StateExchange)
	if err != nil {
		log.Fatalf("Failed to create state consumer: %v", err)
	}
	producer, err := mw.NewProducer(conn, config.InputExchange)
	if err != nil {
		log.Fatalf("Failed to create input producer: %v", err)
	}

	screen := NewScreen()
	subscriber := display.NewChannelSubscriber(consumer)
	publisher := display.NewChannelPublisher(producer)

	if err := subscriber.Subscribe(func(msg *displaysync.Message) {
		if msg.Type != displaysync.TypeSyncState {
			return
		}
		snap, err := msg.SyncState()
		if err != nil {
			log.Errorf("Bad state snapshot: %v", err)
			return
		}
		screen.Update(*snap)
		log.Debugf("Screen now %s, %d lines, total %.2f", snap.Mode, len(snap.Cart), snap.Total)
	}); err != nil {
		log.Fatalf("Failed to subscribe to terminal state: %v", err)
	}

	server := &http.Server{
		Addr:    config.ListenAddress,
		Handler: touchRouter(screen, publisher),
	}
	go func() {
		log.Infof("Customer display %s listening on %s", config.DisplayID, config.ListenAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Display surface stopped: %v", err)
		}
	}()

	sig := <-sigChan
	log.Infof("Received signal: %v. Initiating graceful shutdown...", sig)
	shutdownGracefully(server, subscriber, conn)
	log.Info("Customer display shutdown completed.")
}

// touchRouter is the touch surface: the renderer polls /state and posts the
// customer's tip and order-type picks back toward the terminal.
func touchRouter(screen *Screen, publisher display.Publisher) http.Handler {
	r := chi.NewRouter()

	r.Get("/state", func(w http.ResponseWriter, _ *http.Request) {
		resp := struct {
			displaysync.StateSnapshot
			TipOptions []TipOption `json:"tipOptions,omitempty"`
		}{screen.Current(), screen.TipOptions()}
		writeJSON(w, http.StatusOK, resp)
	})

	r.Post("/tip", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Amount float64 `json:"amount"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Amount < 0 {
			http.Error(w, "invalid tip amount", http.StatusBadRequest)
			return
		}
		msg, err := displaysync.NewTipSelected(body.Amount)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		publisher.Publish(msg)
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	})

	r.Post("/order-type", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			OrderType string `json:"orderType"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.OrderType == "" {
			http.Error(w, "invalid order type", http.StatusBadRequest)
			return
		}
		msg, err := displaysync.NewOrderTypeSelected(body.OrderType)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		publisher.Publish(msg)
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Errorf("Failed to encode response: %v", err)
	}
}

func shutdownGracefully(server *http.Server, subscriber display.Subscriber, conn *mw.Conn) {
	log.Info("Starting graceful shutdown sequence...")

	shutdownTimeout := 30 * time.Second
	shutdownComplete := make(chan bool, 1)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Errorf("Error stopping display surface: %v", err)
		}

		log.Info("Stopping state subscriber...")
		subscriber.Stop()

		if err := conn.Close(); err != nil {
			log.Errorf("Error closing broker connection: %v", err)
		} else {
			log.Info("Broker connection closed.")
		}

		shutdownComplete <- true
	}()

	select {
	case <-shutdownComplete:
		log.Info("Graceful shutdown completed successfully.")
	case <-time.After(shutdownTimeout):
		log.Warningf("Graceful shutdown timed out after %v. Forcing exit.", shutdownTimeout)
	}
}
