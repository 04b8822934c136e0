package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	instagramadapter "github.com/ericfisherdev/igmedia/internal/adapter/driven/instagram"
	"github.com/ericfisherdev/igmedia/internal/adapter/driven/memory"
	sqliteadapter "github.com/ericfisherdev/igmedia/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/igmedia/internal/adapter/driving/cli"
	httphandler "github.com/ericfisherdev/igmedia/internal/adapter/driving/http"
	"github.com/ericfisherdev/igmedia/internal/application"
	"github.com/ericfisherdev/igmedia/internal/config"
	"github.com/ericfisherdev/igmedia/internal/domain/port/driven"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd(bootstrap).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// bootstrap is the composition root: config, database, adapters, services.
func bootstrap(ctx context.Context) (*cli.App, error) {
	// 1. Load configuration (.env first, explicit env vars win).
	if err := config.LoadEnvFile(".env"); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))
	slog.Debug("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"public_url", cfg.PublicURL,
		"auto_sync", cfg.AutoSync,
		"sync_frequency", cfg.SyncFrequency,
		"auto_hide", cfg.AutoHide,
	)
	if cfg.SecretKey == nil {
		slog.Warn("IGMEDIA_SECRET_KEY not set, the app secret and access token cannot be stored")
	}

	// 2. Open database and run migrations on the writer connection.
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	closeDB := func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		closeDB()
		return nil, err
	}

	// 3. Wire adapters.
	settingsStore := sqliteadapter.NewSettingsRepo(db, cfg.SecretKey)
	mediaStore := sqliteadapter.NewMediaRepo(db)
	stateStore := memory.NewStateStore()

	igClient, err := instagramadapter.NewClient(instagramadapter.Options{
		AuthBaseURL:  cfg.AuthBaseURL,
		GraphBaseURL: cfg.GraphBaseURL,
		Timeout:      cfg.HTTPTimeout,
		GraphRate:    cfg.APIRate,
	})
	if err != nil {
		closeDB()
		return nil, err
	}

	seedAppCredentials(ctx, settingsStore, cfg)

	// 4. Application services.
	oauthSvc := application.NewOAuthService(settingsStore, stateStore, igClient, cfg.RedirectURI())
	syncSvc := application.NewSyncService(settingsStore, mediaStore, igClient, application.StalenessPolicy{
		Enabled:    cfg.AutoHide,
		MaxAgeDays: cfg.HideAfterDays,
	})
	catalogSvc := application.NewCatalogService(mediaStore)
	scheduler := application.NewScheduler(oauthSvc, syncSvc, application.SchedulerConfig{
		RefreshInterval: cfg.RefreshInterval,
		AutoSync:        cfg.AutoSync,
		SyncInterval:    cfg.SyncFrequency,
		SyncLimit:       cfg.SyncLimit,
	})

	// 5. HTTP surface; manual syncs go through the scheduler loop.
	apiHandler := httphandler.NewHandler(oauthSvc, scheduler, syncSvc, catalogSvc, slog.Default())

	return &cli.App{
		OAuth:        oauthSvc,
		Sync:         syncSvc,
		Settings:     settingsStore,
		Scheduler:    scheduler,
		Handler:      httphandler.NewServeMux(apiHandler, slog.Default()),
		ListenAddr:   cfg.ListenAddr,
		AuthorizeURL: cfg.AuthorizeURL(),
		Close:        closeDB,
	}, nil
}

// seedAppCredentials copies IGMEDIA_APP_ID and IGMEDIA_APP_SECRET into the
// settings store when no value is stored yet. Stored values always win.
func seedAppCredentials(ctx context.Context, store driven.CredentialStore, cfg *config.Config) {
	seed := func(key, value string) {
		if value == "" {
			return
		}
		current, err := store.Get(ctx, key)
		if err != nil {
			slog.Warn("could not read setting", "key", key, "error", err)
			return
		}
		if current != "" {
			return
		}
		if err := store.Set(ctx, key, value); err != nil {
			slog.Warn("could not seed setting from environment", "key", key, "error", err)
			return
		}
		slog.Info("setting seeded from environment", "key", key)
	}

	seed(driven.SettingAppID, cfg.AppID)
	seed(driven.SettingAppSecret, cfg.AppSecret)
}
