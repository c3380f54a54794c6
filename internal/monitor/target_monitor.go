package monitor

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/301redirect/redirector/internal/repository"
)

// TargetMonitor periodically checks that redirect destinations are reachable
// and logs when a destination changes state.
type TargetMonitor struct {
	repo        repository.RedirectRepository
	interval    time.Duration
	knownStates map[uint]bool // redirect ID -> accessible
	mu          sync.Mutex
	httpClient  *http.Client
	log         *zap.Logger
}

// NewTargetMonitor creates a monitor that checks every redirect each interval.
func NewTargetMonitor(repo repository.RedirectRepository, interval time.Duration, logger *zap.Logger) *TargetMonitor {
	return &TargetMonitor{
		repo:        repo,
		interval:    interval,
		knownStates: make(map[uint]bool),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			// a destination answering with its own redirect is reachable
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		log: logger.Named("monitor"),
	}
}

// Start runs the check loop until ctx is cancelled. The first check runs immediately.
func (m *TargetMonitor) Start(ctx context.Context) {
	m.log.Info("starting target monitor", zap.Duration("interval", m.interval))
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.checkTargets(ctx)
	for {
		select {
		case <-ctx.Done():
			m.log.Info("target monitor stopped")
			return
		case <-ticker.C:
			m.checkTargets(ctx)
		}
	}
}

func (m *TargetMonitor) checkTargets(ctx context.Context) {
	redirects, err := m.repo.ListRedirects(ctx)
	if err != nil {
		m.log.Warn("cannot list redirects for monitoring", zap.Error(err))
		return
	}

	for _, r := range redirects {
		if ctx.Err() != nil {
			return
		}
		current := m.isAccessible(ctx, r.URL)

		m.mu.Lock()
		previous, seen := m.knownStates[r.ID]
		m.knownStates[r.ID] = current
		m.mu.Unlock()

		if !seen {
			m.log.Debug("initial target state",
				zap.String("subdomain", r.Subdomain), zap.String("url", r.URL), zap.String("state", formatState(current)))
			continue
		}
		if current != previous {
			m.log.Warn("target state changed",
				zap.String("subdomain", r.Subdomain),
				zap.String("url", r.URL),
				zap.String("from", formatState(previous)),
				zap.String("to", formatState(current)))
		}
	}
}

// isAccessible sends a HEAD request; 2xx and 3xx count as accessible.
func (m *TargetMonitor) isAccessible(ctx context.Context, url string) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		m.log.Debug("cannot build request", zap.String("url", url), zap.Error(err))
		return false
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		m.log.Debug("target unreachable", zap.String("url", url), zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 400
}

func formatState(accessible bool) string {
	if accessible {
		return "ACCESSIBLE"
	}
	return "INACCESSIBLE"
}
