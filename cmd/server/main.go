package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"scheletro/backend/internal/cache"
	"scheletro/backend/internal/config"
	"scheletro/backend/internal/httpapi"
	"scheletro/backend/internal/ledger"
	"scheletro/backend/internal/sale"
	"scheletro/backend/internal/schema"
	"scheletro/backend/internal/table"
	tablemem "scheletro/backend/internal/table/memory"
	"scheletro/backend/internal/table/sheets"
)

func main() {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	log := config.NewLogger(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var client table.Client
	closers := make([]func() error, 0, 2)

	if cfg.SpreadsheetID != "" {
		sheetsClient, err := sheets.New(ctx, cfg.SpreadsheetID, cfg.CredentialsFile, []byte(cfg.CredentialsJSON), log)
		if err != nil {
			log.Fatalf("sheets client unavailable (%v) and SPREADSHEET_ID is set; refusing to start with in-memory fallback", err)
		}
		client = sheetsClient
		log.Info("table store: sheets")
	} else {
		client = tablemem.New()
		log.Warn("table store: in-memory, data will not survive restart")
	}

	var backend cache.Backend = cache.NewMemoryBackend()
	if cfg.RedisAddr != "" {
		redisBackend := cache.NewRedisBackend(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisBackend.Ping(ctx); err != nil {
			log.Warnf("redis unavailable (%v), using in-memory cache", err)
		} else {
			backend = redisBackend
			closers = append(closers, redisBackend.Close)
			log.Info("cache backend: redis")
		}
	} else {
		log.Info("cache backend: in-memory")
	}

	ttls := cache.TTLs{Short: cfg.CacheTTLShort, Medium: cfg.CacheTTLMedium, Long: cfg.CacheTTLLong}
	tables := cache.New(client, backend, ttls, log)

	params := loadParams(ctx, tables, log)
	stock := ledger.New(tables, log)
	svc := sale.New(tables, stock, params, log)
	api := httpapi.New(svc, log)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Infof("sale engine listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Warnf("close error: %v", err)
		}
	}

	log.Info("server stopped")
}

// loadParams reads the Config table once at startup. A failed read is not
// fatal: defaults are documented and the table may legitimately be empty on
// a new deployment.
func loadParams(ctx context.Context, tables *cache.TableCache, log *logrus.Logger) config.Params {
	rows, err := tables.ReadFresh(ctx, table.Config)
	if err != nil {
		log.Warnf("config table unreadable, using default parameters: %v", err)
		return config.ParseParams(nil, log)
	}
	return config.ParseParams(schema.DecodeConfig(rows), log)
}
