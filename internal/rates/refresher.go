package rates

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Refresher periodically pulls the rate from the fetcher into the source.
// A failed pull logs and keeps the last known rate; it never blocks or
// fails a sale.
type Refresher struct {
	cron    *cron.Cron
	source  *Source
	fetcher Fetcher
	spec    string
}

func NewRefresher(source *Source, fetcher Fetcher, spec string) *Refresher {
	if spec == "" {
		spec = "@every 15m"
	}

	return &Refresher{
		cron:    cron.New(),
		source:  source,
		fetcher: fetcher,
		spec:    spec,
	}
}

func (r *Refresher) Start() error {
	if _, err := r.cron.AddFunc(r.spec, r.refresh); err != nil {
		return err
	}
	r.cron.Start()

	// Prime the rate once at startup without delaying boot.
	go r.refresh()
	return nil
}

func (r *Refresher) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

func (r *Refresher) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rate, err := r.fetcher.Fetch(ctx)
	if err != nil {
		log.Printf("[rates] WARN: refresh failed, keeping rate %s: %v", r.source.Current(), err)
		return
	}

	r.source.Set(ctx, rate)
	log.Printf("[rates] rate updated to %s", rate)
}
