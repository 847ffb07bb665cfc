package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DiegoBT27/VenPos/internal/config"
	"github.com/DiegoBT27/VenPos/internal/httpapi"
	"github.com/DiegoBT27/VenPos/internal/rates"
	"github.com/DiegoBT27/VenPos/internal/service"
	"github.com/DiegoBT27/VenPos/internal/store"
	"github.com/DiegoBT27/VenPos/internal/store/memory"
	pgstore "github.com/DiegoBT27/VenPos/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Println("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		log.Println("repository: in-memory (seeded)")
	}

	var persister rates.Persister
	if cfg.RedisAddr != "" {
		redisPersister := rates.NewRedisPersister(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisPersister.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), rate persistence disabled", err)
		} else {
			persister = redisPersister
			closers = append(closers, redisPersister.Close)
			log.Println("rate persistence: redis")
		}
	}

	rateSource := rates.NewSource(ctx, cfg.DefaultExchangeRate, persister)
	if cfg.RateAPIURL != "" {
		refresher := rates.NewRefresher(rateSource, rates.NewAPIFetcher(cfg.RateAPIURL), cfg.RateRefreshCron)
		if err := refresher.Start(); err != nil {
			log.Printf("rate refresher disabled: %v", err)
		} else {
			defer refresher.Stop()
			log.Printf("rate refresher: %s (%s)", cfg.RateAPIURL, cfg.RateRefreshCron)
		}
	} else if cfg.DefaultExchangeRate.Sign() <= 0 {
		log.Println("WARNING: no RATE_API_URL and no DEFAULT_EXCHANGE_RATE; sales will be rejected until a rate is available")
	}

	tz, err := time.LoadLocation(cfg.BusinessTimezone)
	if err != nil {
		log.Printf("unknown BUSINESS_TIMEZONE %q, falling back to UTC: %v", cfg.BusinessTimezone, err)
		tz = time.UTC
	}

	svc := service.New(repo, rateSource, cfg.InvoicePrefix, cfg.LowStockThreshold, tz)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("POS backend listening on %s", cfg.Address())
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
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	return nil
}
