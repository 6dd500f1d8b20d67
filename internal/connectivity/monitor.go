package connectivity

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"
)

const maxProbeTimeout = 5 * time.Second

// Monitor answers "can we reach the remote store right now?". It only probes
// when asked (the scheduler decides when) and caches the last answer.
type Monitor struct {
	probeURL string
	apiKey   string
	client   *http.Client

	mu     sync.RWMutex
	online bool
}

func NewMonitor(probeURL, apiKey string, timeout time.Duration) *Monitor {
	if timeout <= 0 || timeout > maxProbeTimeout {
		timeout = maxProbeTimeout
	}

	return &Monitor{
		probeURL: probeURL,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}
}

// Probe issues one bounded request against the remote endpoint and updates
// the cached state. It never returns an error: any failure means offline.
// 401/403 still prove network + endpoint liveness, so they count as online.
func (m *Monitor) Probe(ctx context.Context) bool {
	online := m.probe(ctx)

	m.mu.Lock()
	m.online = online
	m.mu.Unlock()

	return online
}

func (m *Monitor) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.probeURL, nil)
	if err != nil {
		return false
	}
	if m.apiKey != "" {
		req.Header.Set("apikey", m.apiKey)
	}

	res, err := m.client.Do(req)
	if err != nil {
		return false
	}

	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)

	if res.StatusCode/100 == 2 {
		return true
	}

	return res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden
}

// IsOnline returns the cached state from the last Probe (or SetOffline).
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.online
}

// SetOffline flips the cached state without probing. The scheduler uses it
// when a transport failure surfaces mid-drain.
func (m *Monitor) SetOffline() {
	m.mu.Lock()
	m.online = false
	m.mu.Unlock()
}
