/*
refresher.go - Background rate-table cache refresh

PURPOSE:
  Several server instances can share one database. A bundle published
  through one instance becomes visible to the others when their refresher
  next reloads the cache from the store.

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Reloads immediately on start
  - A failed reload keeps the previous cache

USAGE:
  refresher := NewBundleRefresher(handler, time.Minute)
  refresher.Start()
  // ... later
  refresher.Stop()

SEE ALSO:
  - ratetables.go: LoadBundles
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"
)

// BundleRefresher periodically reloads the handler's bundle cache.
type BundleRefresher struct {
	Handler  *Handler
	Interval time.Duration

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewBundleRefresher creates a refresher. An interval of zero disables it.
func NewBundleRefresher(h *Handler, interval time.Duration) *BundleRefresher {
	return &BundleRefresher{
		Handler:  h,
		Interval: interval,
	}
}

// Start begins the refresher.
func (br *BundleRefresher) Start() {
	br.mu.Lock()
	defer br.mu.Unlock()

	if br.Interval <= 0 {
		log.Println("[Refresher] Disabled, not starting")
		return
	}
	if br.ticker != nil {
		return
	}

	br.ticker = time.NewTicker(br.Interval)
	br.stop = make(chan struct{})
	br.wg.Add(1)

	go br.run(br.ticker, br.stop)

	log.Printf("[Refresher] Started with interval: %v", br.Interval)
}

// Stop stops the refresher and waits for an in-flight reload.
func (br *BundleRefresher) Stop() {
	br.mu.Lock()
	defer br.mu.Unlock()

	if br.ticker != nil {
		br.ticker.Stop()
		close(br.stop)
		br.wg.Wait()
		br.ticker = nil
		log.Println("[Refresher] Stopped")
	}
}

func (br *BundleRefresher) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer br.wg.Done()

	br.RunNow()

	for {
		select {
		case <-ticker.C:
			br.RunNow()
		case <-stop:
			return
		}
	}
}

// RunNow reloads the cache immediately and returns the number of bundles
// loaded.
func (br *BundleRefresher) RunNow() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := br.Handler.LoadBundles(ctx)
	br.Handler.Metrics.ObserveRefresh(err, n)
	if err != nil {
		log.Printf("[Refresher] Reload failed, keeping previous cache: %v", err)
		return 0, err
	}
	log.Printf("[Refresher] Loaded %d rate table(s)", n)
	return n, nil
}
