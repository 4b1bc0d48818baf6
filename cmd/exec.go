package cmd

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v5"
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go"
	"github.com/redis/go-redis/v9"

	"ticket-marketplace/config"
	"ticket-marketplace/internal/handlers"
	"ticket-marketplace/internal/services"
	"ticket-marketplace/internal/services/payments"
	"ticket-marketplace/internal/services/payments/stripepay"
	"ticket-marketplace/internal/status"
	"ticket-marketplace/monitoring"
	"ticket-marketplace/security"
	"ticket-marketplace/utils"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL)
	defer redisClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize PubNub for user notifications
	var notifier services.Notifier = services.NopNotifier{}
	if cfg.PubNubPublishKey != "" {
		pnConfig := pubnub.NewConfig()
		pnConfig.PublishKey = cfg.PubNubPublishKey
		pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
		pnConfig.SecretKey = cfg.PubNubSecretKey

		notifier = services.NewPubNubNotifier(pubnub.NewPubNub(pnConfig))
	}

	// Initialize payment processor
	processor, err := createProcessor(ctx, cfg)
	if err != nil {
		return err
	}
	defer processor.Close(ctx)

	// Initialize monitoring
	var monitor *monitoring.Monitor
	if cfg.EnableMetrics {
		monitor = monitoring.NewMonitor(redisClient)
		go serveMetrics(cfg.MetricsPort)
	}

	// Initialize services
	store := services.NewRecordStore(app)
	bookingService := services.NewBookingService(
		redisClient, store, processor, notifier, monitor,
		cfg.DraftTTL, cfg.CreditCostPerTicket,
	)
	creditService := services.NewCreditService(
		redisClient, store, processor, notifier, monitor,
		cfg.AppURL, cfg.PollInterval, cfg.MaxPollAttempts,
	)

	// Drain processor settlement notifications
	txChannel := make(chan *status.Transaction, 1)
	processor.SetTransactionChannel(txChannel)
	go func() {
		for {
			select {
			case t := <-txChannel:
				slog.Info("=> processor settlement notification", "session", t.SessionID, "status", t.Status)
				creditService.HandleTransaction(ctx, t)

			case <-ctx.Done():
				return
			}
		}
	}()

	// Initialize handlers
	bookingHandler := handlers.NewBookingHandler(app, bookingService)
	creditsHandler := handlers.NewCreditsHandler(app, creditService)
	if cfg.Environment == "development" {
		if adapter, ok := processor.(*payments.MockPayAdapter); ok {
			creditsHandler.EnableSimulation(adapter.Underlying(), cfg.SimulateSecretHash)
		}
	}

	rateLimiter := security.NewRateLimiter(redisClient, cfg.BookingRateMax, cfg.BookingRateWindow)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	// Setup graceful shutdown
	go handleShutdown(cancel)

	setupEventHooks(app, redisClient)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		syncActiveEventsToRedis(app, redisClient)

		// Booking workflow endpoints
		bookings := e.Router.Group("/api/v1/bookings")
		bookings.BindFunc(rateLimiter.BookingRateLimit())
		bookings.POST("", bookingHandler.StartBooking)
		bookings.GET("/history", bookingHandler.History)
		bookings.GET("/{bookingId}", bookingHandler.GetDraft)
		bookings.POST("/{bookingId}/details", bookingHandler.ConfirmDetails)
		bookings.POST("/{bookingId}/payment", bookingHandler.SubmitPayment)
		bookings.POST("/{bookingId}/back", bookingHandler.Back)

		// Ticket endpoints
		e.Router.GET("/api/v1/tickets", bookingHandler.Tickets)

		// Credit endpoints
		e.Router.GET("/api/v1/credits/packs", creditsHandler.ListPacks)
		e.Router.GET("/api/v1/credits/balance", creditsHandler.Balance)
		e.Router.POST("/api/v1/credits/purchase", creditsHandler.Purchase)
		e.Router.GET("/api/v1/credits/purchase/{sessionId}/status", creditsHandler.Status)
		e.Router.POST("/api/v1/credits/purchase/{sessionId}/confirm", creditsHandler.Confirm)

		// Test endpoint for payment simulation
		if cfg.Environment == "development" {
			e.Router.POST("/api/v1/test/simulate-payment", creditsHandler.SimulatePayment)
		}

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
	return nil
}

// createProcessor picks the payment processor from configuration. The
// in-memory one serves development, the HTTP client everything else.
func createProcessor(ctx context.Context, cfg *config.Config) (payments.Processor, error) {
	factory := payments.NewFactory()

	switch cfg.ProcessorProvider {
	case string(payments.ProviderStripePay):
		return factory.CreateProcessor(ctx, payments.ProviderStripePay, &stripepay.Config{
			BaseURL:     cfg.ProcessorConfig.BaseURL,
			AccountID:   cfg.ProcessorConfig.AccountID,
			APIKey:      cfg.ProcessorConfig.APIKey,
			HMACKey:     cfg.ProcessorConfig.HMACKey,
			PNSubKey:    cfg.ProcessorConfig.PNSubKey,
			PNSubSecret: cfg.ProcessorConfig.PNSubSecret,
			PNUUID:      cfg.ProcessorConfig.PNUUID,
			PNChannel:   cfg.ProcessorConfig.PNChannel,
			PNCipherKey: cfg.ProcessorConfig.PNCipherKey,
		})

	default:
		return factory.CreateProcessor(ctx, payments.ProviderMockPay, nil)
	}
}

// syncActiveEventsToRedis seeds the Redis set consulted by StartBooking
// with the events currently open for booking.
func syncActiveEventsToRedis(app *pocketbase.PocketBase, redisClient *redis.Client) {
	ctx := context.Background()

	var records []dbx.NullStringMap
	if err := app.DB().NewQuery(
		"SELECT id FROM events WHERE status = 'active'",
	).All(&records); err != nil {
		log.Printf("Error fetching active events: %v", err)
		return
	}

	redisClient.Del(ctx, services.ActiveEventsKey)

	var eventIDs []interface{}
	for _, record := range records {
		if id := record["id"].String; id != "" {
			eventIDs = append(eventIDs, id)
		}
	}
	if len(eventIDs) > 0 {
		redisClient.SAdd(ctx, services.ActiveEventsKey, eventIDs...)
		log.Printf("Synced %d active events to Redis", len(eventIDs))
	}
}

// setupEventHooks keeps the active-events set in step with admin changes
// to the events collection after the initial sync.
func setupEventHooks(app *pocketbase.PocketBase, redisClient *redis.Client) {
	app.OnRecordCreateRequest("events").BindFunc(func(e *core.RecordRequestEvent) error {
		if err := e.Next(); err != nil {
			return err
		}
		if e.Record.GetString("status") == "active" {
			if err := redisClient.SAdd(e.Request.Context(), services.ActiveEventsKey, e.Record.Id).Err(); err != nil {
				slog.Error("add active event", "eventId", e.Record.Id, "error", err)
			}
		}
		return nil
	})

	app.OnRecordUpdateRequest("events").BindFunc(func(e *core.RecordRequestEvent) error {
		if err := e.Next(); err != nil {
			return err
		}
		ctx := e.Request.Context()
		var err error
		if e.Record.GetString("status") == "active" {
			err = redisClient.SAdd(ctx, services.ActiveEventsKey, e.Record.Id).Err()
		} else {
			err = redisClient.SRem(ctx, services.ActiveEventsKey, e.Record.Id).Err()
		}
		if err != nil {
			slog.Error("update active event", "eventId", e.Record.Id, "error", err)
		}
		return nil
	})

	app.OnRecordDeleteRequest("events").BindFunc(func(e *core.RecordRequestEvent) error {
		if err := e.Next(); err != nil {
			return err
		}
		if err := redisClient.SRem(e.Request.Context(), services.ActiveEventsKey, e.Record.Id).Err(); err != nil {
			slog.Error("remove active event", "eventId", e.Record.Id, "error", err)
		}
		return nil
	})
}

// serveMetrics exposes Prometheus metrics on a separate listener.
func serveMetrics(port string) {
	e := echo.New()

	promHandler := promhttp.Handler()
	e.GET("/metrics", func(c echo.Context) error {
		promHandler.ServeHTTP(c.Response(), c.Request())
		return nil
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: e,
	}
	log.Printf("Metrics listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("Metrics server stopped: %v", err)
	}
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
