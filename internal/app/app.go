package app

import (
	"log/slog"
	"os"
	"time"

	routerApp "github.com/GintGld/livempd/internal/app/router"
	"github.com/GintGld/livempd/internal/config"
	"github.com/GintGld/livempd/internal/lib/logger/sl"
	"github.com/GintGld/livempd/internal/storage/sqlite"
)

type App struct {
	Router  routerApp.App
	storage *sqlite.Storage
}

func New(
	log *slog.Logger,
	address string,
	storagePath string,
	timeout time.Duration,
	tokenTTL time.Duration,
	secret []byte,
	rootPass []byte,
	mpdCfg config.Mpd,
	dashCfg config.Dash,
) *App {
	storage, err := sqlite.New(storagePath)
	if err != nil {
		log.Error("failed to init storage", sl.Err(err))
		os.Exit(1)
	}

	routerApp := routerApp.New(
		log,
		storage,
		address,
		timeout,
		tokenTTL,
		secret,
		rootPass,
		mpdCfg,
		dashCfg,
	)

	return &App{
		Router:  *routerApp,
		storage: storage,
	}
}

// Stop stops router and closes storage.
func (a *App) Stop(log *slog.Logger) {
	a.Router.Stop()

	if err := a.storage.Stop(); err != nil {
		log.Error("failed to close storage", sl.Err(err))
	}
}
