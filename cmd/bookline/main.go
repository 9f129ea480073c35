package main

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/nazmul-hoque/bookline/internal/billing"
	"github.com/nazmul-hoque/bookline/internal/booking"
	"github.com/nazmul-hoque/bookline/internal/handlers"
	"github.com/nazmul-hoque/bookline/internal/identity"
	"github.com/nazmul-hoque/bookline/internal/invite"
	"github.com/nazmul-hoque/bookline/internal/outbox"
	"github.com/nazmul-hoque/bookline/internal/session"
	"github.com/nazmul-hoque/bookline/internal/storage"
	"github.com/nazmul-hoque/bookline/libs/config"
	"github.com/nazmul-hoque/bookline/libs/db"
	"github.com/nazmul-hoque/bookline/libs/httpx"
	"github.com/nazmul-hoque/bookline/libs/kafkax"
	otelx "github.com/nazmul-hoque/bookline/libs/otel"
	"github.com/nazmul-hoque/bookline/libs/runtime"
)

func main() {
	service := config.String("SERVICE_NAME", "bookline")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	sessionSecret, err := config.RequiredString("SESSION_SECRET")
	if err != nil {
		panic(err)
	}
	sessions := session.NewManager(
		sessionSecret,
		config.Duration("SESSION_TTL", 24*time.Hour),
		config.Bool("COOKIE_SECURE", true),
	)

	owners := storage.NewOwnerRepository(pool)
	customers := storage.NewCustomerRepository(pool)
	businesses := storage.NewBusinessRepository(pool)
	bookings := storage.NewBookingRepository(pool)
	invites := storage.NewInviteRepository(pool)
	outboxRepo := outbox.NewRepository(pool)

	var provider identity.Provider
	if chatURL := config.String("CHAT_BASE_URL", ""); chatURL != "" {
		provider = identity.NewChatProvider(
			chatURL,
			config.String("CHAT_CLIENT_ID", ""),
			config.String("CHAT_CLIENT_SECRET", ""),
		)
	} else {
		logger.Warn("CHAT_BASE_URL missing; using static identity provider (dev only)")
		provider = identity.StaticProvider{User: identity.User{ExternalID: "dev-user", DisplayName: "Dev User"}}
	}

	validator := invite.NewValidator(invites, businesses)
	manager := booking.NewManager(bookings, businesses, owners, outboxRepo, logger)
	billingSvc := billing.New(owners, logger, billing.Config{
		SecretKey: config.String("STRIPE_SECRET_KEY", ""),
		ReturnURL: config.String("SITE_BASE_URL", "http://localhost:3000") + "/settings/billing",
	})

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	rateLimit := config.Int("RATE_LIMIT_PUBLIC", 60)
	rateWindow := config.Duration("RATE_LIMIT_WINDOW", time.Minute)
	var publicLimit httpx.Middleware
	var readyChecks []runtime.ReadyCheck
	readyChecks = append(readyChecks,
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	if redisAddr := config.String("REDIS_ADDR", ""); redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		defer func() { _ = rdb.Close() }()
		publicLimit = httpx.NewRedisRateLimiter(rdb, rateLimit, rateWindow, service+":public").
			Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: httpx.RedisReadyCheck(rdb)})
	} else {
		// Single-instance fallback; counters live in process memory.
		logger.Warn("REDIS_ADDR missing; using in-process rate limiter")
		publicLimit = httpx.NewRateLimiter(rateLimit, rateWindow).Middleware()
	}

	authHandler := handlers.NewAuthHandler(provider, sessions, owners, customers, logger)
	businessHandler := handlers.NewBusinessHandler(businesses, owners, logger)
	bookingHandler := handlers.NewBookingHandler(manager, validator, logger)
	inviteHandler := handlers.NewInviteHandler(validator, invites, businessHandler, logger)
	billingHandler := handlers.NewBillingHandler(billingSvc, owners, logger)

	mux := runtime.NewBaseMuxWithReady(readyChecks...)

	public := func(h http.HandlerFunc) http.Handler { return publicLimit(h) }
	mux.Handle("/api/v1/public/availability", public(bookingHandler.Availability))
	mux.Handle("/api/v1/public/bookings", public(bookingHandler.Create))
	mux.Handle("/api/v1/public/invites", public(inviteHandler.Validity))

	mux.Handle("/api/v1/auth/login", public(authHandler.Login))
	mux.HandleFunc("/api/v1/auth/logout", authHandler.Logout)
	mux.HandleFunc("/api/v1/auth/me", authHandler.Me)

	mux.HandleFunc("/api/v1/business/create", businessHandler.Create)
	mux.HandleFunc("/api/v1/business/list", businessHandler.List)
	mux.HandleFunc("/api/v1/business/get", businessHandler.Get)
	mux.HandleFunc("/api/v1/business/update", businessHandler.Update)
	mux.HandleFunc("/api/v1/business/staff/create", businessHandler.CreateStaff)
	mux.HandleFunc("/api/v1/business/staff/list", businessHandler.ListStaff)
	mux.HandleFunc("/api/v1/business/staff/update", businessHandler.UpdateStaff)
	mux.HandleFunc("/api/v1/business/hours/list", businessHandler.ListWorkingHours)
	mux.HandleFunc("/api/v1/business/hours/upsert", businessHandler.UpsertWorkingHours)
	mux.HandleFunc("/api/v1/business/services/create", businessHandler.CreateService)
	mux.HandleFunc("/api/v1/business/services/list", businessHandler.ListServices)
	mux.HandleFunc("/api/v1/business/services/update", businessHandler.UpdateService)
	mux.HandleFunc("/api/v1/business/closed-dates/create", businessHandler.CreateClosedDate)
	mux.HandleFunc("/api/v1/business/closed-dates/list", businessHandler.ListClosedDates)
	mux.HandleFunc("/api/v1/business/closed-dates/delete", businessHandler.DeleteClosedDate)

	mux.HandleFunc("/api/v1/bookings/get", bookingHandler.Get)
	mux.HandleFunc("/api/v1/bookings/business", bookingHandler.ListForBusiness)
	mux.HandleFunc("/api/v1/bookings/mine", bookingHandler.ListForCustomer)
	mux.HandleFunc("/api/v1/bookings/confirm", bookingHandler.Confirm)
	mux.HandleFunc("/api/v1/bookings/cancel", bookingHandler.Cancel)
	mux.HandleFunc("/api/v1/bookings/no-show", bookingHandler.MarkNoShow)
	mux.HandleFunc("/api/v1/bookings/complete", bookingHandler.Complete)

	mux.HandleFunc("/api/v1/invites/create", inviteHandler.Create)
	mux.HandleFunc("/api/v1/invites/list", inviteHandler.List)
	mux.HandleFunc("/api/v1/invites/deactivate", inviteHandler.Deactivate)

	mux.HandleFunc("/api/v1/billing/portal", billingHandler.PortalSession)
	mux.HandleFunc("/api/v1/billing/subscription", billingHandler.Subscription)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   []string{config.String("SITE_BASE_URL", "http://localhost:3000")},
			AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", session.CSRFHeader},
			AllowCredentials: true,
			MaxAge:           10 * time.Minute,
		}),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(30*time.Second),
		handlers.WithSession(sessions),
		handlers.WithCSRF(sessions, logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, service)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
