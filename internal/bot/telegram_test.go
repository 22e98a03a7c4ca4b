package bot

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"metracker/internal/config"
)

// Config hot reload happens on the command goroutine while the alert
// path reads settings from the scheduler goroutine, so the swap must
// be safe under the race detector.
func TestConfigReloadConcurrentWithReads(t *testing.T) {
	b := &Bot{}
	b.cfg.Store(&config.Config{ChatID: 1, OwnerID: 10})

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			b.cfg.Store(&config.Config{ChatID: int64(i), OwnerID: 10})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			cfg := b.config()
			assert.Equal(t, int64(10), cfg.OwnerID)
			_ = cfg.ChatID
		}
	}()

	wg.Wait()
}

// A reader always sees a complete snapshot, never a half-applied one.
func TestConfigSnapshotIsConsistent(t *testing.T) {
	b := &Bot{}
	b.cfg.Store(&config.Config{ChatID: 1, OwnerID: 1})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := int64(2); i <= 500; i++ {
			b.cfg.Store(&config.Config{ChatID: i, OwnerID: i})
		}
	}()

	for i := 0; i < 500; i++ {
		cfg := b.config()
		assert.Equal(t, cfg.ChatID, cfg.OwnerID)
	}
	<-done
}
