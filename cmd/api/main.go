package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/fixmate/fixmate-api/internal/config"
	"github.com/fixmate/fixmate-api/internal/domain/audit"
	"github.com/fixmate/fixmate-api/internal/domain/booking"
	"github.com/fixmate/fixmate-api/internal/domain/dispatch"
	"github.com/fixmate/fixmate-api/internal/domain/dispute"
	"github.com/fixmate/fixmate-api/internal/domain/notification"
	"github.com/fixmate/fixmate-api/internal/domain/payment"
	"github.com/fixmate/fixmate-api/internal/domain/payout"
	"github.com/fixmate/fixmate-api/internal/domain/user"
	"github.com/fixmate/fixmate-api/internal/domain/wallet"
	"github.com/fixmate/fixmate-api/internal/middleware"
	"github.com/fixmate/fixmate-api/internal/pkg/database"
	"github.com/fixmate/fixmate-api/internal/pkg/gateway"
	"github.com/fixmate/fixmate-api/internal/pkg/jwt"
	"github.com/fixmate/fixmate-api/internal/pkg/logger"
	"github.com/fixmate/fixmate-api/internal/pkg/presence"
	pkgresponse "github.com/fixmate/fixmate-api/internal/pkg/response"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.IsDevelopment())

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Str("gateway", cfg.PaymentGateway).
		Msg("Starting FixMate API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)

	gw := buildGateway(cfg)

	// ---------- Repositories ----------
	userRepo := user.NewRepository(db)
	auditRepo := audit.NewRepository(db)
	walletRepo := wallet.NewRepository(db)
	paymentRepo := payment.NewRepository(db)
	bookingRepo := booking.NewRepository(db)
	dispatchRepo := dispatch.NewRepository(db)
	disputeRepo := dispute.NewRepository(db)
	payoutRepo := payout.NewRepository(db)

	// ---------- Adapters ----------
	bookingStore := &paymentBookingAdapter{bookings: bookingRepo, users: userRepo}

	// ---------- Services ----------
	notificationSvc := notification.NewService(userRepo)
	walletSvc := wallet.NewService(walletRepo)

	paymentSvc := payment.NewService(paymentRepo, gw, bookingStore, walletRepo, auditRepo)
	paymentSvc.SetNotifier(notificationSvc)
	paymentSvc.SetRedis(redis)

	bookingSvc := booking.NewService(bookingRepo, userRepo, paymentSvc, walletRepo, auditRepo, cfg.CancelFeePct)
	bookingSvc.SetNotifier(notificationSvc)

	dispatchSvc := dispatch.NewService(dispatchRepo, bookingRepo, userRepo, auditRepo)
	dispatchSvc.SetNotifier(notificationSvc)

	disputeSvc := dispute.NewService(disputeRepo, bookingRepo, paymentSvc, walletRepo, auditRepo)
	disputeSvc.SetNotifier(notificationSvc)

	payoutSvc := payout.NewService(payoutRepo, walletRepo, gw, auditRepo)
	payoutSvc.SetNotifier(notificationSvc)

	presenceSvc := presence.NewService(redis, userRepo)

	// ---------- Workers ----------
	sweepWorker := booking.NewWorker(bookingSvc, cfg.BookingStaleCutoff, cfg.PaymentPendingCutoff)
	sweepWorker.Start()
	defer sweepWorker.Stop()

	// ---------- Handlers ----------
	walletHandler := wallet.NewHandler(walletSvc)
	paymentHandler := payment.NewHandler(paymentSvc)
	bookingHandler := booking.NewHandler(bookingSvc)
	dispatchHandler := dispatch.NewHandler(dispatchSvc)
	disputeHandler := dispute.NewHandler(disputeSvc)
	payoutHandler := payout.NewHandler(payoutSvc)
	presenceHandler := presence.NewHandler(presenceSvc)

	authMiddleware := middleware.Auth(jwtService)
	adminOnly := middleware.RequireAdmin()
	mechanicOnly := middleware.RequireMechanic()

	// ---------- Router ----------
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(chimw.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	// websocket clients pass the token as a query parameter
	r.Get("/ws/presence", func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}
		authMiddleware(http.HandlerFunc(presenceHandler.Serve)).ServeHTTP(w, r)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/bookings", bookingHandler.Routes(authMiddleware))
		r.Mount("/dispatch", dispatchHandler.Routes(authMiddleware, mechanicOnly))
		r.Mount("/disputes", disputeHandler.Routes(authMiddleware, adminOnly))
		r.Mount("/payouts", payoutHandler.Routes(authMiddleware, mechanicOnly, adminOnly))
		r.Mount("/wallet", walletHandler.Routes(authMiddleware, adminOnly))
		r.Mount("/payments", paymentHandler.Routes(authMiddleware))
	})

	r.Mount("/webhooks", paymentHandler.WebhookRoutes())

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}

func buildGateway(cfg *config.Config) gateway.Gateway {
	switch cfg.PaymentGateway {
	case config.GatewayPaystack:
		return gateway.NewPaystack(gateway.PaystackConfig{
			SecretKey: cfg.PaystackSecretKey,
		})
	case config.GatewayFlutterwave:
		return gateway.NewFlutterwave(gateway.FlutterwaveConfig{
			SecretKey:  cfg.FlutterwaveSecretKey,
			WebhookKey: cfg.FlutterwaveWebhookKey,
		})
	default:
		return gateway.NewSandbox(cfg.SandboxWebhookSecret)
	}
}

// Adapter implementations to bridge interface mismatches

// paymentBookingAdapter adapts the booking repository to the settlement
// engine's BookingStore.
type paymentBookingAdapter struct {
	bookings *booking.Repository
	users    *user.Repository
}

func (a *paymentBookingAdapter) Get(ctx context.Context, id uuid.UUID) (*payment.BookingInfo, error) {
	b, err := a.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	info := &payment.BookingInfo{
		ID:         b.ID,
		CustomerID: b.CustomerID,
		MechanicID: b.MechanicID,
		Price:      b.Price,
		Status:     string(b.Status),
	}
	if customer, err := a.users.GetByID(ctx, b.CustomerID); err == nil {
		info.CustomerEmail = customer.Email
	}
	return info, nil
}

func (a *paymentBookingAdapter) ConfirmTx(ctx context.Context, tx *sqlx.Tx, bookingID uuid.UUID) error {
	return a.bookings.ConfirmTx(ctx, tx, bookingID)
}
