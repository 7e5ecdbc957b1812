package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/teal-fm/beacon/config"
	"github.com/teal-fm/beacon/db"
	"github.com/teal-fm/beacon/oauth"
	"github.com/teal-fm/beacon/service/presence"
	"github.com/teal-fm/beacon/service/refresh"
	"github.com/teal-fm/beacon/service/settings"
)

type application struct {
	database        *db.DB
	refreshService  *refresh.Service
	settingsService *settings.Service
	presenceClient  *presence.Client
	apiPassword     string
	logger          *zap.SugaredLogger
}

func jsonResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func main() {
	once := pflag.Bool("once", false, "run a single batch refresh, print the result and exit")
	pflag.Parse()

	config.Load()
	defer zap.L().Sync()
	logger := zap.S()

	database, err := db.New(viper.GetString("db.path"))
	if err != nil {
		logger.Fatalf("Error connecting to database: %v", err)
	}
	defer database.Close()

	if err := database.Initialize(); err != nil {
		logger.Fatalf("Error initializing database: %v", err)
	}

	clientID := viper.GetString("discord.client_id")
	oauthService := oauth.NewOAuth2Service(
		clientID,
		viper.GetString("discord.client_secret"),
		viper.GetString("discord.token_url"),
		logger,
	)
	presenceClient := presence.NewClient(
		viper.GetString("discord.api_url"),
		clientID,
		viper.GetFloat64("discord.requests_per_second"),
		logger,
	)

	refreshSettings := config.RefreshSettings()
	refreshService := refresh.NewService(database, oauthService, presenceClient, refresh.Options{
		Concurrency:  refreshSettings.Concurrency,
		BatchTimeout: refreshSettings.BatchTimeout,
	}, logger)

	if *once {
		result, err := refreshService.Run(context.Background())
		if err != nil {
			logger.Fatalf("Batch update failed: %v", err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "\t")
		enc.Encode(result)
		return
	}

	app := &application{
		database:        database,
		refreshService:  refreshService,
		settingsService: settings.NewService(database, presenceClient, logger),
		presenceClient:  presenceClient,
		apiPassword:     viper.GetString("api.password"),
		logger:          logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if refreshSettings.Interval > 0 {
		refreshService.StartScheduler(ctx, refreshSettings.Interval)
	} else {
		logger.Info("Scheduled presence refresh disabled, waiting for external triggers")
	}

	serverAddr := fmt.Sprintf("%s:%s", viper.GetString("server.host"), viper.GetString("server.port"))
	server := &http.Server{
		Addr:        serverAddr,
		Handler:     app.routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: config.WriteTimeout(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Errorw("Error shutting down server", "error", err)
		}
	}()

	logger.Infof("Server running at: http://%s", serverAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("Server error: %v", err)
	}
}
