// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Corphon/BookFlow/internal/api"
	"github.com/Corphon/BookFlow/internal/auth"
	"github.com/Corphon/BookFlow/internal/config"
	"github.com/Corphon/BookFlow/internal/di"
	"github.com/Corphon/BookFlow/internal/generator"
	"github.com/Corphon/BookFlow/internal/search"
	"github.com/Corphon/BookFlow/internal/services"
	"github.com/Corphon/BookFlow/internal/storage"
	"github.com/Corphon/BookFlow/internal/utils"
)

// App owns every long-lived component of the server.
type App struct {
	Config    *config.Config
	Container *di.Container
	Server    *api.Server

	log   *utils.Logger
	store storage.Store
	index *search.Index
	relay *storage.RedisRelay
	http  *http.Server
}

// New builds the application from cfg. Close releases what New opened.
func New(ctx context.Context, cfg *config.Config, log *utils.Logger) (*App, error) {
	a := &App{Config: cfg, Container: di.NewContainer(), log: log}
	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config
	for _, dir := range []string{cfg.DataDir, cfg.LogDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	store, err := storage.Open(cfg, a.log)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}
	a.store = store
	a.log.Info("✅ chapter store ready", "backend", cfg.StoreBackend)

	if cfg.RedisAddr != "" {
		relay, err := storage.NewRedisRelay(ctx, cfg.RedisAddr, cfg.RedisChannel, a.log)
		if err != nil {
			return err
		}
		a.relay = relay
		a.store = relay.Wrap(store)
		a.log.Info("✅ redis change relay connected", "addr", cfg.RedisAddr, "channel", cfg.RedisChannel)
	}

	index, err := search.Open(cfg.IndexPath)
	if err != nil {
		return fmt.Errorf("open search index: %w", err)
	}
	a.index = index

	users, err := auth.LoadTable(cfg.UsersFile)
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}

	tokens, err := a.tokenConfig()
	if err != nil {
		return err
	}

	gen := generator.NewClient(cfg.GeneratorURL, cfg.GeneratorTimeout, a.log)
	chapters := services.NewChapterService(a.store, gen, index, a.log)

	n, err := chapters.RebuildIndex(ctx)
	if err != nil {
		a.log.Warn("⚠️ search index rebuild failed", "error", err)
	} else {
		a.log.Info("✅ search index rebuilt", "published", n)
	}

	a.Container.Register(di.Logger, a.log)
	a.Container.Register(di.Store, a.store)
	a.Container.Register(di.Index, index)
	a.Container.Register(di.Chapters, chapters)
	a.Container.Register(di.Users, users)
	a.Container.Register(di.Tokens, tokens)

	server, err := api.SetupRouter(cfg, a.Container)
	if err != nil {
		return fmt.Errorf("setup router: %w", err)
	}
	a.Server = server
	a.http = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

func (a *App) tokenConfig() (*auth.TokenConfig, error) {
	cfg := a.Config
	secret := []byte(cfg.AuthSecret)
	switch {
	case cfg.UsesDevSecret():
		a.log.Warn("⚠️ using the development signing key; set AUTH_SECRET_KEY outside local use")
	case len(secret) == 0:
		key, err := auth.GenerateSecureKey(32)
		if err != nil {
			return nil, fmt.Errorf("generate signing key: %w", err)
		}
		secret = key
		a.log.Warn("⚠️ AUTH_SECRET_KEY not set; tokens will not survive a restart")
	}
	return &auth.TokenConfig{Secret: secret, Expiration: cfg.TokenTTL}, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.http.Handler
}

// Run serves HTTP, and relays remote changes when redis is configured, until
// ctx ends or one of them fails.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info("🌐 server listening", "addr", a.http.Addr)
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if a.relay != nil {
		g.Go(func() error {
			return a.relay.Start(gctx, a.store)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return a.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Shutdown stops accepting requests and closes live sockets.
func (a *App) Shutdown(ctx context.Context) error {
	if a.Server != nil {
		a.Server.Close()
	}
	if a.http == nil {
		return nil
	}
	if err := a.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shut down: %w", err)
	}
	return nil
}

// Close releases the store, index and relay.
func (a *App) Close() {
	if a.relay != nil {
		if err := a.relay.Close(); err != nil {
			a.log.Warn("close redis relay", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("close store", "error", err)
		}
	}
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			a.log.Warn("close index", "error", err)
		}
	}
}
