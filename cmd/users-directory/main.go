package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/pribylovaa/users-directory/internal/cache"
	"github.com/pribylovaa/users-directory/internal/config"
	apihttp "github.com/pribylovaa/users-directory/internal/http"
	"github.com/pribylovaa/users-directory/internal/metrics"
	"github.com/pribylovaa/users-directory/internal/service"
	"github.com/pribylovaa/users-directory/internal/storage"
	"github.com/pribylovaa/users-directory/internal/storage/mongo"
	"github.com/pribylovaa/users-directory/internal/storage/postgres"
	"github.com/pribylovaa/users-directory/internal/storage/sqlite"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting users-directory", "env", cfg.Env, "db_driver", cfg.DB.Driver)

	if err := run(cfg, log); err != nil {
		log.Error("service_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	log.Info("service_stopped")
}

// run поднимает хранилище и оба HTTP-сервера и блокируется до сигнала
// остановки. Отложенные Close/cancel срабатывают и при ошибке старта.
func run(cfg *config.Config, log *slog.Logger) error {
	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	usersStorage, err := openStorage(rootCtx, cfg)
	if err != nil {
		return fmt.Errorf("storage init: %w", err)
	}

	defer func() {
		if cerr := usersStorage.Close(); cerr != nil {
			log.Warn("storage_close_failed", slog.String("err", cerr.Error()))
		}
	}()

	log.Info("storage_initialized")

	svc := service.New(usersStorage, cfg)

	apiHandler := apihttp.NewRouter(svc, apihttp.Options{
		Logger:  log,
		Timeout: cfg.Timeouts.Service,
		Metrics: metrics.NewHTTP(prometheus.DefaultRegisterer),
	})

	var ready int32 // 0 — not ready; 1 — ready

	opsMux := http.NewServeMux()
	opsMux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	opsMux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if atomic.LoadInt32(&ready) == 1 {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}

		http.Error(w, "not ready", http.StatusServiceUnavailable)
	})

	opsMux.Handle("/metrics", promhttp.Handler())

	servers := []*http.Server{
		{Addr: cfg.HTTP.Addr(), Handler: apiHandler, ReadHeaderTimeout: 5 * time.Second},
		{Addr: cfg.Metrics.Addr(), Handler: opsMux, ReadHeaderTimeout: 5 * time.Second},
	}

	listeners := make([]net.Listener, 0, len(servers))
	for _, srv := range servers {
		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			for _, opened := range listeners {
				_ = opened.Close()
			}

			return fmt.Errorf("listen %s: %w", srv.Addr, err)
		}

		log.Info("http_listen_start", slog.String("addr", srv.Addr))
		listeners = append(listeners, ln)
	}

	g, gctx := errgroup.WithContext(rootCtx)
	for i, srv := range servers {
		ln := listeners[i]
		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve %s: %w", srv.Addr, err)
			}

			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown_requested")
		atomic.StoreInt32(&ready, 0)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn("http_shutdown_incomplete", slog.String("addr", srv.Addr), slog.String("err", err.Error()))
			}
		}

		return nil
	})

	atomic.StoreInt32(&ready, 1)
	log.Info("service_ready")

	return g.Wait()
}

// openStorage выбирает хранилище по cfg.DB.Driver и, если задан Redis,
// оборачивает его read-through кэшем.
func openStorage(ctx context.Context, cfg *config.Config) (storage.UsersStorage, error) {
	var (
		st  storage.UsersStorage
		err error
	)

	switch cfg.DB.Driver {
	case config.DriverPostgres:
		var pg *postgres.UsersStorage
		pg, err = postgres.New(ctx, cfg.DB.URL)
		if err == nil && cfg.DB.Migrate {
			if err = pg.Migrate(ctx); err != nil {
				_ = pg.Close()
			}
		}
		st = pg
	case config.DriverSQLite:
		st, err = sqlite.New(ctx, cfg.DB.URL)
	case config.DriverMongo:
		st, err = mongo.New(ctx, cfg.DB.URL)
	default:
		err = fmt.Errorf("unsupported db driver %q", cfg.DB.Driver)
	}

	if err != nil {
		return nil, err
	}

	if cfg.Redis.URL == "" {
		return st, nil
	}

	cached, err := cache.NewUsers(ctx, st, cfg.Redis.URL, cfg.Redis.Prefix, cfg.Redis.TTL)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return cached, nil
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case envLocal:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}
