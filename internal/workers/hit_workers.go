package workers

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	customerrors "github.com/301redirect/redirector/internal/errors"
	"github.com/301redirect/redirector/internal/models"
	"github.com/301redirect/redirector/internal/repository"
)

// DefaultIncrementTimeout bounds a single hit increment when none is configured.
const DefaultIncrementTimeout = 5 * time.Second

// HitWorkers is a pool of goroutines that increment hit counters off the request path.
// Redirect responses never wait for them.
type HitWorkers struct {
	events  chan models.HitEvent
	repo    repository.RedirectRepository
	timeout time.Duration
	log     *zap.Logger

	mu     sync.RWMutex // guards closed and the send on events
	closed bool
	wg     sync.WaitGroup
}

// StartHitWorkers launches workerCount goroutines reading from a channel buffered to bufferSize.
func StartHitWorkers(workerCount, bufferSize int, timeout time.Duration, repo repository.RedirectRepository, logger *zap.Logger) *HitWorkers {
	if workerCount < 1 {
		workerCount = 1
	}
	if timeout <= 0 {
		timeout = DefaultIncrementTimeout
	}

	w := &HitWorkers{
		events:  make(chan models.HitEvent, bufferSize),
		repo:    repo,
		timeout: timeout,
		log:     logger.Named("hits"),
	}

	w.log.Info("starting hit workers", zap.Int("workers", workerCount), zap.Int("buffer", bufferSize))
	for i := 0; i < workerCount; i++ {
		w.wg.Add(1)
		go w.work()
	}
	return w
}

// Record queues a hit for subdomain. It never blocks: when the buffer is full
// or the pool is stopped the hit is dropped and Record returns false.
func (w *HitWorkers) Record(subdomain string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return false
	}

	select {
	case w.events <- models.HitEvent{Subdomain: subdomain, Timestamp: time.Now()}:
		return true
	default:
		w.log.Warn("hit buffer is full, dropping hit", zap.String("subdomain", subdomain))
		return false
	}
}

// Stop closes the queue and waits until every queued hit has been processed.
func (w *HitWorkers) Stop() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.events)
	w.mu.Unlock()

	w.wg.Wait()
	w.log.Info("hit workers stopped")
}

func (w *HitWorkers) work() {
	defer w.wg.Done()
	for event := range w.events {
		w.increment(event)
	}
}

func (w *HitWorkers) increment(event models.HitEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	if err := w.repo.IncrementHits(ctx, event.Subdomain); err != nil {
		w.log.Error("hit not counted",
			zap.Time("resolved_at", event.Timestamp),
			zap.Error(&customerrors.ErrHitIncrementFailed{Subdomain: event.Subdomain, Err: err}))
		return
	}
	w.log.Debug("hit counted", zap.String("subdomain", event.Subdomain))
}
