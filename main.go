package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/onetarget777/kachra-site/internal/config"
	"github.com/onetarget777/kachra-site/internal/database"
	"github.com/onetarget777/kachra-site/internal/handlers"
	"github.com/onetarget777/kachra-site/internal/middleware"
	"github.com/onetarget777/kachra-site/internal/nsfw"
	"github.com/onetarget777/kachra-site/internal/otp"
	"github.com/onetarget777/kachra-site/internal/services"
	"github.com/onetarget777/kachra-site/internal/session"
	"github.com/onetarget777/kachra-site/internal/storage"
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	}).Level(zerolog.InfoLevel).With().Timestamp().Logger()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, using system environment variables")
	}
	cfg := config.Load()

	// Initialize database
	if err := database.Initialize(cfg.DBPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer database.Close()

	// Storage backend for uploaded bytes
	store, err := storage.FromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize storage backend")
	}

	// OTP challenge stores: in-process by default, redis when the
	// deployment spans multiple processes.
	signupStore, resetStore := buildOTPStores(cfg)
	signupOTP := otp.NewEngine(signupStore)
	resetOTP := otp.NewEngine(resetStore)

	classifier := nsfw.NewVisionClassifier(cfg.ClassifierURL, cfg.ClassifierAPIKey, cfg.ClassifierTimeout)
	sessions := session.NewManager(cfg.SessionSecret)

	minter := services.NewLinkMinter(database.DB, cfg.BaseURL)
	uploadService := services.NewUploadService(database.DB, store, classifier, minter)
	authService := services.NewAuthService(database.DB, signupOTP, resetOTP)
	adminService := services.NewAdminService(database.DB)
	vaultService := services.NewVaultService(database.DB)

	// Background retention sweep
	sweeper := services.NewRetentionSweeper(database.DB, store)
	go sweeper.Run(context.Background(), time.Hour)

	uploadHandler := handlers.NewUploadHandler(uploadService)
	authHandler := handlers.NewAuthHandler(authService, sessions, cfg.DevMode)
	adminHandler := handlers.NewAdminHandler(adminService)
	vaultHandler := handlers.NewVaultHandler(vaultService)
	shareHandler := handlers.NewShareHandler(minter)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(chimw.Compress(5))
	r.Use(middleware.Identity(sessions))

	r.Post("/upload", uploadHandler.Upload)
	r.Post("/api/upload", uploadHandler.Upload)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", authHandler.Login)
		r.Post("/signup", authHandler.Signup)
		r.Post("/verify-signup-otp", authHandler.VerifySignupOTP)
		r.Post("/forgot-password", authHandler.ForgotPassword)
		r.Post("/verify-otp", authHandler.VerifyOTP)
		r.Get("/check-username", authHandler.CheckUsername)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Post("/login", adminHandler.Login)
		r.Post("/change-password", adminHandler.ChangePassword)
		r.Get("/metrics", adminHandler.Metrics)
		r.Get("/settings", adminHandler.GetSettings)
		r.Patch("/settings", adminHandler.UpdateSettings)
	})

	r.Get("/vault/storage", vaultHandler.Storage)

	// Public share-link resolution
	r.Get("/s/{code}", shareHandler.Resolve)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	log.Info().Str("port", cfg.Port).Msg("Starting server")
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal().Err(err).Msg("Server failed to start")
	}
}

// buildOTPStores returns disjoint challenge stores for the signup and
// password-reset flows.
func buildOTPStores(cfg *config.Config) (otp.Store, otp.Store) {
	if cfg.OTPBackend == "redis" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to redis")
		}

		return otp.NewRedisStore(client, "signup"), otp.NewRedisStore(client, "reset")
	}
	return otp.NewMemoryStore(), otp.NewMemoryStore()
}
