package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m1z23r/drift/pkg/drift"
	"github.com/m1z23r/drift/pkg/middleware"
	"github.com/rs/zerolog"

	"github.com/pulseplay/pulseplay-api/internal/config"
	"github.com/pulseplay/pulseplay-api/internal/database"
	"github.com/pulseplay/pulseplay-api/internal/handlers"
	"github.com/pulseplay/pulseplay-api/internal/identity"
	authmw "github.com/pulseplay/pulseplay-api/internal/middleware"
	"github.com/pulseplay/pulseplay-api/internal/models"
	"github.com/pulseplay/pulseplay-api/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "pulseplay-api").Logger()
	if !cfg.IsProduction() {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout}).Level(zerolog.DebugLevel)
	}

	ctx := context.Background()

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	jwtService := services.NewJWTService(cfg.JWTSecret, cfg.JWTAccessExpiry, cfg.JWTRefreshExpiry)
	userService := services.NewUserService(db)
	tokenService := services.NewTokenService(db)
	resolver := identity.NewResolver(userService, jwtService, logger)

	authHandler := handlers.NewAuthHandler(cfg, resolver, userService, tokenService, jwtService, logger)
	userHandler := handlers.NewUserHandler(userService)
	adminHandler := handlers.NewAdminHandler(userService, logger)

	app := drift.New()

	if cfg.IsProduction() {
		app.SetMode(drift.ReleaseMode)
	} else {
		app.SetMode(drift.DebugMode)
	}

	app.Use(middleware.Recovery())
	app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       86400,
	}))
	app.Use(middleware.BodyParser())

	api := app.Group("/api/v1")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/signin", authHandler.SignIn)
	auth.Get("/:provider/consent", authHandler.GetConsentURL)
	auth.Get("/:provider/callback", authHandler.Callback)
	auth.Post("/exchange", authHandler.ExchangeCode)
	auth.Post("/refresh", authHandler.RefreshToken)
	auth.Post("/logout", authHandler.Logout)

	protected := api.Group("")
	protected.Use(authmw.Auth(jwtService))

	protected.Post("/auth/logout-all", authHandler.LogoutAll)

	protected.Get("/users/me", userHandler.GetMe)
	protected.Patch("/users/me", userHandler.UpdateMe)

	moderation := api.Group("/admin")
	moderation.Use(authmw.Auth(jwtService))
	moderation.Use(authmw.RequireRole(models.RoleModerator))
	moderation.Get("/users/:id", adminHandler.GetUser)
	moderation.Post("/users/:id/ban", adminHandler.Ban)
	moderation.Post("/users/:id/unban", adminHandler.Unban)

	roles := api.Group("/admin/roles")
	roles.Use(authmw.Auth(jwtService))
	roles.Use(authmw.RequireRole(models.RoleAdmin))
	roles.Post("/users/:id", adminHandler.SetRole)

	api.Get("/health", func(c *drift.Context) {
		_ = c.JSON(200, map[string]string{"status": "ok"})
	})

	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		for range ticker.C {
			if err := tokenService.CleanupExpired(context.Background()); err != nil {
				logger.Warn().Err(err).Msg("refresh token cleanup failed")
			}
		}
	}()

	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		logger.Info().Str("addr", addr).Msg("server starting")
		if err := app.Run(addr); err != nil {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
}
