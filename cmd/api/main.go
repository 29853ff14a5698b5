// Package main fonoapp API
//
// @title           fonoapp API
// @version         1.0
// @description     API da plataforma fonoapp: perfil, assinatura, cota de downloads e direitos LGPD.

// @contact.name   fonoapp
// @contact.email  privacidade@fonoapp.com.br

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the session token of the identity provider.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/fonoapp/internal/app/api"
	"github.com/magabrotheeeer/fonoapp/internal/config"
	"github.com/magabrotheeeer/fonoapp/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	logger := sl.SetupLogger(cfg.Env, os.Stdout)

	logger.Info("starting fonoapp api", slog.String("env", cfg.Env))
	logger.Debug("effective config", slog.String("config", cfg.String()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := api.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize app", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("app stopped with error", sl.Err(err))
		os.Exit(1)
	}

	logger.Info("fonoapp api stopped gracefully")
}
