package blockstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/jpillora/backoff"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Gateway fetches blocks over HTTP from a content-addressed gateway,
// GET <base>/<prefix>/<cid>. In-flight requests are bounded by a counting
// semaphore and transient failures are retried with exponential backoff and
// jitter up to a fixed attempt ceiling. Throughput limiting and retry
// govern load only, not correctness.
type Gateway struct {
	base    string
	prefix  string
	client  *http.Client
	sem     *semaphore.Weighted
	limiter *rate.Limiter

	maxAttempts int
	backoffMin  time.Duration
	backoffMax  time.Duration

	log *slog.Logger
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) GatewayOption {
	return func(g *Gateway) { g.client = c }
}

// WithMaxInflight bounds the number of simultaneous requests.
func WithMaxInflight(n int64) GatewayOption {
	return func(g *Gateway) { g.sem = semaphore.NewWeighted(n) }
}

// WithRequestRate limits the request rate.
func WithRequestRate(perSecond float64, burst int) GatewayOption {
	return func(g *Gateway) { g.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// WithRetry configures the attempt ceiling and the backoff window.
func WithRetry(maxAttempts int, min, max time.Duration) GatewayOption {
	return func(g *Gateway) {
		g.maxAttempts = maxAttempts
		g.backoffMin = min
		g.backoffMax = max
	}
}

// WithPathPrefix overrides the gateway path prefix (default "ipfs").
func WithPathPrefix(prefix string) GatewayOption {
	return func(g *Gateway) { g.prefix = strings.Trim(prefix, "/") }
}

// WithGatewayLogger sets the logger used for retry warnings.
func WithGatewayLogger(log *slog.Logger) GatewayOption {
	return func(g *Gateway) { g.log = log }
}

// NewGateway creates a gateway client for the given base URL.
func NewGateway(base string, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		base:        strings.TrimRight(base, "/"),
		prefix:      "ipfs",
		client:      &http.Client{Timeout: 30 * time.Second},
		sem:         semaphore.NewWeighted(16),
		maxAttempts: 5,
		backoffMin:  100 * time.Millisecond,
		backoffMax:  5 * time.Second,
		log:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GetBlock fetches the block addressed by c.
func (g *Gateway) GetBlock(ctx context.Context, c cid.Cid) ([]byte, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer g.sem.Release(1)

	boff := &backoff.Backoff{
		Min:    g.backoffMin,
		Max:    g.backoffMax,
		Factor: 2,
		Jitter: true,
	}

	url := fmt.Sprintf("%s/%s/%s", g.base, g.prefix, c)

	var lastErr error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		data, retryable, err := g.fetchOnce(ctx, url)
		if err == nil {
			return data, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err

		if attempt == g.maxAttempts {
			break
		}
		d := boff.Duration()
		g.log.WarnContext(ctx, "retrying block fetch",
			"cid", c.String(),
			"attempt", attempt,
			"backoff", d,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(d):
		}
	}
	return nil, &ErrTransient{CID: c, Attempts: g.maxAttempts, cause: lastErr}
}

func (g *Gateway) fetchOnce(ctx context.Context, url string) (data []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, true, err
		}
		return data, false, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, false, ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests ||
		resp.StatusCode == http.StatusRequestTimeout ||
		resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("gateway returned %s", resp.Status)
	default:
		return nil, false, fmt.Errorf("gateway returned %s", resp.Status)
	}
}
