package health

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/riftwatch/rift-harvester/internal/model"
)

// Report is the outcome of a standalone platform health check.
type Report struct {
	Platform  string        `json:"platform"`
	Reachable bool          `json:"reachable"`
	Latency   time.Duration `json:"-"`
	LastError string        `json:"last_error,omitempty"`
	CheckedAt time.Time     `json:"checked_at"`
}

// MarshalJSON emits the latency in milliseconds to match the wire field name.
func (r Report) MarshalJSON() ([]byte, error) {
	type wire Report
	return json.Marshal(struct {
		wire
		LatencyMS int64 `json:"latency_ms"`
	}{wire(r), r.Latency.Milliseconds()})
}

// DNSChecker resolves platform hosts to verify name resolution.
type DNSChecker struct {
	resolver *net.Resolver
	timeout  time.Duration
}

// NewDNSChecker builds a checker with the given per-lookup timeout.
func NewDNSChecker(timeout time.Duration) *DNSChecker {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &DNSChecker{resolver: net.DefaultResolver, timeout: timeout}
}

// Check resolves host and returns the lookup latency.
func (c *DNSChecker) Check(ctx context.Context, host string) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	if _, err := c.resolver.LookupHost(ctx, host); err != nil {
		return time.Since(start), fmt.Errorf("dns lookup %s: %w", host, err)
	}
	return time.Since(start), nil
}

// HTTPChecker probes the platform status route over HTTPS.
type HTTPChecker struct {
	client *http.Client
	path   string
	apiKey string
	scheme string
}

// NewHTTPChecker builds a checker probing path on each platform host. The
// client is dedicated: probe timeouts must not disturb the live scrape pool.
func NewHTTPChecker(timeout time.Duration, path, apiKey string) *HTTPChecker {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if path == "" {
		path = "/lol/status/v4/platform-data"
	}
	return &HTTPChecker{
		client: &http.Client{Timeout: timeout},
		path:   path,
		apiKey: apiKey,
		scheme: "https",
	}
}

// Check issues one GET against the host's status route. Any 2xx-4xx response
// proves the platform is serving; 5xx and transport errors do not.
func (c *HTTPChecker) Check(ctx context.Context, host string) (time.Duration, error) {
	url := c.scheme + "://" + host + c.path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build probe request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-Riot-Token", c.apiKey)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return latency, fmt.Errorf("http probe %s: %w", host, err)
	}
	defer resp.Body.Close() //nolint:errcheck
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 500 {
		return latency, fmt.Errorf("http probe %s: status %d", host, resp.StatusCode)
	}
	return latency, nil
}

// Prober is one reachability check against a platform host.
type Prober interface {
	Check(ctx context.Context, host string) (time.Duration, error)
}

// Manager runs DNS then HTTP probes per platform and caches reports for a
// TTL. It is read-only with respect to circuit state: probes report
// reachability, the breaker consumes live traffic outcomes.
type Manager struct {
	dns    Prober
	http   Prober
	ttl    time.Duration
	logger *zap.Logger

	mu    sync.Mutex
	cache map[string]Report
	now   func() time.Time
}

// NewManager wires the checkers and cache TTL.
func NewManager(dns, httpc Prober, ttl time.Duration, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Manager{
		dns:    dns,
		http:   httpc,
		ttl:    ttl,
		logger: logger,
		cache:  make(map[string]Report),
		now:    time.Now,
	}
}

// Check probes one platform, serving a cached report when it is still fresh.
func (m *Manager) Check(ctx context.Context, p model.Platform) Report {
	m.mu.Lock()
	if cached, ok := m.cache[p.Code]; ok && m.now().Sub(cached.CheckedAt) < m.ttl {
		m.mu.Unlock()
		return cached
	}
	m.mu.Unlock()

	report := m.probe(ctx, p)

	m.mu.Lock()
	m.cache[p.Code] = report
	m.mu.Unlock()
	return report
}

// CheckAll probes each platform sequentially and returns all reports.
func (m *Manager) CheckAll(ctx context.Context, platforms []model.Platform) []Report {
	reports := make([]Report, 0, len(platforms))
	for _, p := range platforms {
		if ctx.Err() != nil {
			break
		}
		reports = append(reports, m.Check(ctx, p))
	}
	return reports
}

func (m *Manager) probe(ctx context.Context, p model.Platform) Report {
	report := Report{Platform: p.Code, CheckedAt: m.now()}

	dnsLatency, err := m.dns.Check(ctx, p.Host)
	if err != nil {
		report.Latency = dnsLatency
		report.LastError = err.Error()
		m.logger.Warn("dns check failed",
			zap.String("platform", p.Code), zap.Error(err))
		return report
	}

	httpLatency, err := m.http.Check(ctx, p.Host)
	report.Latency = dnsLatency + httpLatency
	if err != nil {
		report.LastError = err.Error()
		m.logger.Warn("http check failed",
			zap.String("platform", p.Code), zap.Error(err))
		return report
	}

	report.Reachable = true
	return report
}
