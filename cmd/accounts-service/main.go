package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pribylovaa/go-accounts-service/internal/cache"
	"github.com/pribylovaa/go-accounts-service/internal/config"
	"github.com/pribylovaa/go-accounts-service/internal/mail"
	"github.com/pribylovaa/go-accounts-service/internal/service"
	"github.com/pribylovaa/go-accounts-service/internal/storage"
	"github.com/pribylovaa/go-accounts-service/internal/storage/postgres"
	transport "github.com/pribylovaa/go-accounts-service/internal/transport/http"
)

// Константы для определения окружения.
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
	log.Info("starting application", "env", cfg.Env)

	// Корневой контекст по сигналам.
	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	// Подключение к БД c таймаутом.
	dbCtx, dbCancel := context.WithTimeout(rootCtx, 10*time.Second)
	str, err := postgres.New(dbCtx, cfg.DB.DatabaseURL)
	dbCancel()
	if err != nil {
		log.Error("postgres_connect_failed", slog.String("err", err.Error()))
		rootCancel()
		os.Exit(1)
	}
	log.Info("postgres_connected")

	// Сервис.
	srvc := service.New(str, cfg.Auth)

	// Кэш refresh-токенов — опционален: пустой URL выключает.
	var rcache cache.RefreshCache
	if cfg.Redis.RedisURL != "" {
		rcache, err = cache.NewRedisCache(cfg.Redis.RedisURL, "")
		if err != nil {
			log.Error("redis_connect_failed", slog.String("err", err.Error()))
			rootCancel()
			str.Close()
			os.Exit(1)
		}
		srvc.SetRefreshCache(rcache)
		log.Info("redis_connected")
	}

	// Отправка писем — опциональна: пустой SMTP-host выключает
	// (письма только логируются).
	if cfg.SMTP.Host != "" {
		srvc.SetEmailSender(mail.New(cfg.SMTP), cfg.SMTP.Origin)
		log.Info("smtp_configured", slog.String("host", cfg.SMTP.Host))
	}

	log.Info("service_initialized")

	var ready int32 // 0 — not ready; 1 — ready

	api := transport.NewRouter(srvc, transport.Options{
		Logger:        log,
		Timeout:       cfg.Timeouts.Service,
		RefreshTTL:    cfg.Auth.RefreshTokenTTL,
		SecureCookies: cfg.Env == envProd,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if atomic.LoadInt32(&ready) == 1 {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}
		http.Error(w, "not ready", http.StatusServiceUnavailable)
	})

	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", api)

	httpAddr := cfg.HTTP.Addr()
	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Фоновая очистка просроченных refresh-токенов.
	startRefreshJanitor(rootCtx, str, log, 30*time.Minute)

	serveErrCh := make(chan error, 1)
	go func() {
		log.Info("http_listen_start", "addr", httpAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	atomic.StoreInt32(&ready, 1)

	// Ожидание сигнала завершения или фатальной ошибки сервера.
	select {
	case <-rootCtx.Done():
		log.Info("shutdown_requested")
	case err := <-serveErrCh:
		if err != nil {
			log.Error("http_serve_failed", slog.String("err", err.Error()))
		}
	}

	atomic.StoreInt32(&ready, 0)

	// Graceful stop с таймаутом.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_force_stop", slog.String("err", err.Error()))
		_ = httpSrv.Close()
	}

	// Явная очистка перед выходом.
	shutdownCancel()
	rootCancel()
	if rcache != nil {
		_ = rcache.Close()
	}
	str.Close()

	log.Info("service_stopped")
	os.Exit(0)
}

// setupLogger настраивает slog по окружению.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	}

	return log
}

// startRefreshJanitor запускает фоновую задачу, которая периодически удаляет
// просроченные refresh-токены из хранилища с помощью storage.DeleteExpiredTokens.
func startRefreshJanitor(ctx context.Context, storage storage.Storage, log *slog.Logger, period time.Duration) {
	if period <= 0 {
		return
	}

	go func() {
		t := time.NewTicker(period)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := storage.DeleteExpiredTokens(ctx, time.Now().UTC()); err != nil {
					log.Error("refresh_janitor_failed", slog.String("err", err.Error()))
				}
			}
		}
	}()
}
