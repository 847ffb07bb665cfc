package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	AuthSecret            string
	AccessTokenTTLMinutes int
	BusinessTimezone      string
	InvoicePrefix         string
	DefaultExchangeRate   decimal.Decimal
	RateAPIURL            string
	RateRefreshCron       string
	LowStockThreshold     decimal.Decimal
}

func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[config] WARN: failed to load .env file: %v", err)
	}

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}

	defaultRate, err := decimal.NewFromString(getEnv("DEFAULT_EXCHANGE_RATE", "0"))
	if err != nil || defaultRate.Sign() < 0 {
		defaultRate = decimal.Zero
	}

	lowStock, err := decimal.NewFromString(getEnv("LOW_STOCK_THRESHOLD", "5"))
	if err != nil || lowStock.Sign() <= 0 {
		lowStock = decimal.NewFromInt(5)
	}

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: tokenTTL,
		BusinessTimezone:      getEnv("BUSINESS_TIMEZONE", "America/Caracas"),
		InvoicePrefix:         strings.TrimSpace(os.Getenv("INVOICE_PREFIX")),
		DefaultExchangeRate:   defaultRate,
		RateAPIURL:            strings.TrimSpace(os.Getenv("RATE_API_URL")),
		RateRefreshCron:       getEnv("RATE_REFRESH_CRON", "@every 15m"),
		LowStockThreshold:     lowStock,
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
