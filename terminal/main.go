package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/op/go-logging"

	"github.com/timlee789/pos-sub000/cart"
	"github.com/timlee789/pos-sub000/catalog"
	"github.com/timlee789/pos-sub000/display"
	"github.com/timlee789/pos-sub000/employee"
	"github.com/timlee789/pos-sub000/flow"
	mw "github.com/timlee789/pos-sub000/middleware"
	"github.com/timlee789/pos-sub000/orders"
	"github.com/timlee789/pos-sub000/payment"
	"github.com/timlee789/pos-sub000/printer"
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

	cat, err := loadCatalog(config)
	if err != nil {
		log.Fatalf("Failed to load menu: %v", err)
	}
	log.Infof("Menu loaded: %d categories", len(cat.Categories))

	orderCart := cart.New(cat, cart.Rates{Tax: config.TaxRate, CardFee: config.CardFeeRate})

	gateway := payment.NewGatewayClient(config.GatewayAddress, config.MenuMode)
	var strategy payment.Strategy
	if config.BlockingGateway {
		strategy = payment.NewBlockingStrategy(gateway)
	} else {
		strategy = payment.NewPollStrategy(gateway, time.Duration(config.PollIntervalSec)*time.Second)
	}
	orchestrator := payment.NewOrchestrator(gateway, strategy,
		time.Duration(config.PaymentTimeout)*time.Second)

	store := orders.NewClient(config.APIAddress)
	go sweepStaleOrders(store)
	printClient := printer.NewClient(config.PrinterAddress)
	authClient := employee.NewClient(config.APIAddress)
	session := &employee.Session{}

	broadcaster, subscriber, conn, err := connectDisplay(config)
	if err != nil {
		log.Fatalf("Failed to connect customer display channel: %v", err)
	}

	machine := flow.NewMachine(flow.Deps{
		Cart:        orderCart,
		Payments:    orchestrator,
		Store:       store,
		Printer:     printClient,
		Broadcaster: broadcaster,
		Session:     session,
	}, flow.Config{
		RequireToGoTableNumber: config.RequireToGoTable,
	})

	watchdog := newIdleWatchdog(time.Duration(config.IdleTimeoutSec)*time.Second, machine.IdleTimeout)
	machine.OnChange(func(flow.State) { watchdog.Touch() })
	watchdog.Start()

	if subscriber != nil {
		if err := subscriber.Subscribe(machine.HandleDisplayMessage); err != nil {
			log.Errorf("Failed to subscribe to display input: %v", err)
		}
	}

	bridge := newAPI(machine, orderCart, cat, authClient, session, watchdog.Touch)
	server := &http.Server{Addr: config.ListenAddress, Handler: bridge.router()}

	go func() {
		log.Infof("Terminal %s listening on %s", config.TerminalID, config.ListenAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Front-end bridge stopped: %v", err)
		}
	}()

	sig := <-sigChan
	log.Infof("Received signal: %v. Initiating graceful shutdown...", sig)
	shutdownGracefully(server, watchdog, subscriber, conn)
	log.Info("Terminal shutdown completed.")
}

func loadCatalog(config *Config) (*catalog.Catalog, error) {
	if config.MenuCSV != "" {
		log.Infof("Loading menu from CSV %s", config.MenuCSV)
		return catalog.LoadCSV(config.MenuCSV)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return catalog.NewClient(config.APIAddress).Fetch(ctx, catalog.Mode(config.MenuMode))
}

// sweepStaleOrders asks the back office to fail `processing` orders left over
// from a crash mid-payment, so they show up retryable in the order list.
func sweepStaleOrders(store *orders.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	swept, err := store.Reconcile(ctx)
	if err != nil {
		log.Warningf("Stale order sweep failed: %v", err)
		return
	}
	if swept > 0 {
		log.Infof("Stale order sweep marked %d orders failed", swept)
	}
}

// connectDisplay wires the customer-display channel when a broker address is
// configured. Without one the terminal runs standalone: the broadcaster is a
// no-op and no subscriber is started.
func connectDisplay(config *Config) (*display.Broadcaster, display.Subscriber, *mw.Conn, error) {
	if config.MwAddress == "" {
		log.Info("No broker configured, running without customer display")
		return display.NewBroadcaster(nil), nil, nil, nil
	}

	conn, err := mw.Dial(config.MwAddress)
	if err != nil {
		return nil, nil, nil, err
	}
	producer, err := mw.NewProducer(conn, config.StateExchange)
	if err != nil {
		return nil, nil, nil, err
	}
	consumer, err := mw.NewConsumer(conn, config.TerminalID, config.InputExchange)
	if err != nil {
		return nil, nil, nil, err
	}
	return display.NewBroadcaster(display.NewChannelPublisher(producer)),
		display.NewChannelSubscriber(consumer), conn, nil
}

func shutdownGracefully(server *http.Server, watchdog *idleWatchdog,
	subscriber display.Subscriber, conn *mw.Conn) {
	log.Info("Starting graceful shutdown sequence...")

	shutdownTimeout := 30 * time.Second
	shutdownComplete := make(chan bool, 1)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Errorf("Error stopping front-end bridge: %v", err)
		} else {
			log.Info("Front-end bridge stopped.")
		}

		watchdog.Close()

		if subscriber != nil {
			log.Info("Stopping display subscriber...")
			subscriber.Stop()
		}
		if conn != nil {
			if err := conn.Close(); err != nil {
				log.Errorf("Error closing broker connection: %v", err)
			} else {
				log.Info("Broker connection closed.")
			}
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
