package rates

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const rateKey = "venpos:tasa_dolar"

// RedisPersister keeps the last known rate in redis so a restart between
// refresher ticks does not fall back to the configured default.
type RedisPersister struct {
	client *redis.Client
}

func NewRedisPersister(addr string, password string, db int) *RedisPersister {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisPersister{client: client}
}

func (p *RedisPersister) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *RedisPersister) Close() error {
	return p.client.Close()
}

func (p *RedisPersister) Load(ctx context.Context) (decimal.Decimal, bool, error) {
	val, err := p.client.Get(ctx, rateKey).Result()
	if err == redis.Nil {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}

	rate, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, false, err
	}
	return rate, true, nil
}

func (p *RedisPersister) Save(ctx context.Context, rate decimal.Decimal) error {
	return p.client.Set(ctx, rateKey, rate.String(), 0).Err()
}
