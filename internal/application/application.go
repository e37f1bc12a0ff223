package application

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/eugenenazirov/distconf/internal/api"
	"github.com/eugenenazirov/distconf/internal/config"
	"github.com/eugenenazirov/distconf/internal/resolver"
)

// App encapsulates the resolver and the HTTP server that exposes it.
type App struct {
	resolver *resolver.Resolver
	handler  *api.Handler
	router   http.Handler
	logger   *zap.Logger
	server   *http.Server
}

// NewResolver builds a resolver from the runtime configuration and performs
// the initial load. Load events are logged through logger.
func NewResolver(cfg config.Config, logger *zap.Logger, opts ...resolver.Option) (*resolver.Resolver, error) {
	base := []resolver.Option{
		resolver.WithConfigDirs(cfg.ConfigDirs...),
		resolver.WithEnvironment(cfg.Environment),
		resolver.WithHostname(cfg.Hostname),
		resolver.WithIgnoredDirs(cfg.IgnoredDirs...),
		resolver.WithFs(afero.NewOsFs()),
		resolver.WithLogger(logger),
	}

	res, err := resolver.New(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create resolver: %w", err)
	}
	res.Subscribe(logEvents(logger))

	if err := res.Load(); err != nil {
		return nil, fmt.Errorf("initial configuration load: %w", err)
	}
	return res, nil
}

// New initializes the application with all dependencies from the provided configuration.
func New(cfg config.Config, logger *zap.Logger, opts ...resolver.Option) (*App, error) {
	res, err := NewResolver(cfg, logger, opts...)
	if err != nil {
		return nil, err
	}

	handler := api.NewHandler(res, api.WithHandlerLogger(logger))
	router := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	return &App{
		resolver: res,
		handler:  handler,
		router:   router,
		logger:   logger,
		server:   NewServer(cfg, router),
	}, nil
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

// Resolver returns the resolver backing the server.
func (a *App) Resolver() *resolver.Resolver {
	return a.resolver
}

func logEvents(logger *zap.Logger) resolver.Listener {
	return func(ev resolver.Event) {
		switch ev.Kind {
		case resolver.EventLoaded:
			paths := make([]string, 0, len(ev.Sources))
			for _, src := range ev.Sources {
				paths = append(paths, src.Tier+":"+src.Path)
			}
			logger.Debug("configuration sources applied", zap.Strings("sources", paths))
		case resolver.EventError:
			logger.Warn("configuration event", zap.Stringer("kind", ev.Kind), zap.Error(ev.Err))
		}
	}
}
