// Package instagram provides a Graph API client for account metrics and replies
package instagram

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"instapilot/internal/platform/config"
	perr "instapilot/internal/platform/errors"
	"instapilot/internal/platform/logger"
)

const (
	baseURLDefault    = "https://graph.facebook.com"
	apiVersionDefault = "v21.0"
	defaultTimeout    = 15 * time.Second
	defaultUA         = "instapilot"
	defaultMaxRetry   = 3
	defaultRetryBase  = 500 * time.Millisecond
	defaultMediaLimit = 12
	maxBackoff        = 30 * time.Second
	maxBody           = 1 << 20
)

// Options configures the Client
type Options struct {
	BaseURL    string
	APIVersion string
	UserAgent  string
	Timeout    time.Duration

	// Retry config for transient failures of read calls; sends are never retried
	MaxRetries int
	RetryBase  time.Duration

	// MediaLimit is how many recent posts feed the engagement fingerprint
	MediaLimit int
}

// Client is a minimal Graph API client. Tokens are per call since every
// connected account carries its own credential
type Client struct {
	http  *http.Client
	opts  Options
	log   logger.Logger
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewClient creates a new Client with sane defaults
func NewClient(o Options) *Client {
	if o.BaseURL == "" {
		o.BaseURL = baseURLDefault
	}
	if o.APIVersion == "" {
		o.APIVersion = apiVersionDefault
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	} else if o.MaxRetries == 0 {
		o.MaxRetries = defaultMaxRetry
	}
	if o.RetryBase <= 0 {
		o.RetryBase = defaultRetryBase
	}
	if o.MediaLimit <= 0 {
		o.MediaLimit = defaultMediaLimit
	}
	return &Client{
		http:  &http.Client{Timeout: o.Timeout},
		opts:  o,
		log:   *logger.Named("instagram"),
		now:   time.Now,
		sleep: sleepCtx,
	}
}

// WithoutRetries returns a client sharing c's transport that sends every
// request exactly once. Callers that pay for each call from a budget use it
func (c *Client) WithoutRetries() *Client {
	cp := *c
	cp.opts.MaxRetries = 0
	return &cp
}

// MediaLimit returns the configured recent-media window
func (c *Client) MediaLimit() int { return c.opts.MediaLimit }

// call performs one Graph request and decodes the success body into out.
// GET requests are retried on transport errors and 5xx; POSTs are sent once
func (c *Client) call(ctx context.Context, method, path, token string, q url.Values, body any, out any) error {
	if q == nil {
		q = url.Values{}
	}
	u := c.opts.BaseURL + "/" + c.opts.APIVersion + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return perr.Wrap(err, perr.ErrorCodeJSON, "instagram encode body")
		}
		payload = b
	}

	retryable := method == http.MethodGet
	attempts := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var rdr io.Reader
		if payload != nil {
			rdr = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, rdr)
		if err != nil {
			return perr.Wrapf(err, perr.ErrorCodeUnknown, "instagram new request failed")
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		start := c.now()
		resp, err := c.http.Do(req)
		lat := c.now().Sub(start)

		if err != nil {
			if !retryable || !c.shouldRetry(attempts) {
				return perr.Wrapf(err, perr.ErrorCodeUnavailable, "instagram %s %s failed", method, path)
			}
			back := c.backoff(attempts)
			c.log.Warn().Err(err).Dur("retry_in", back).Int("attempt", attempts).Msg("instagram transport error retrying")
			if err := c.sleep(ctx, back); err != nil {
				return err
			}
			attempts++
			continue
		}

		usage := parseUsage(resp.Header)
		c.log.Debug().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Int("attempt", attempts).
			Dur("latency", lat).
			Int("app_call_pct", usage.CallCount).
			Int("app_cpu_pct", usage.TotalCPUTime).
			Msg("instagram http response")

		b, rerr := io.ReadAll(io.LimitReader(resp.Body, maxBody))
		_ = resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if rerr != nil {
				return perr.Wrap(rerr, perr.ErrorCodeUnavailable, "instagram read body")
			}
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(b, out); err != nil {
				return perr.Wrap(err, perr.ErrorCodeJSON, "instagram decode body")
			}
			return nil
		}

		gerr := decodeError(resp.StatusCode, b)
		if retryable && IsTransient(gerr) && c.shouldRetry(attempts) {
			back := c.backoff(attempts)
			c.log.Warn().Int("status", resp.StatusCode).Dur("retry_in", back).Int("attempt", attempts).Msg("instagram transient error retrying")
			if err := c.sleep(ctx, back); err != nil {
				return err
			}
			attempts++
			continue
		}
		return gerr
	}
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.opts.RetryBase << uint(attempt)
	if d <= 0 || d > maxBackoff {
		return maxBackoff
	}
	return d
}

func (c *Client) shouldRetry(attempt int) bool {
	return attempt < c.opts.MaxRetries
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// OptionsFromConfig reads IG_ prefixed client settings
func OptionsFromConfig(cfg config.Conf) Options {
	ig := cfg.Prefix("IG_")
	return Options{
		BaseURL:    ig.MayString("GRAPH_URL", baseURLDefault),
		APIVersion: ig.MayString("API_VERSION", apiVersionDefault),
		UserAgent:  ig.MayString("USER_AGENT", defaultUA),
		Timeout:    ig.MayDuration("TIMEOUT", defaultTimeout),
		MaxRetries: ig.MayInt("MAX_RETRIES", defaultMaxRetry),
		RetryBase:  ig.MayDuration("RETRY_BASE", defaultRetryBase),
		MediaLimit: ig.MayInt("MEDIA_LIMIT", defaultMediaLimit),
	}
}
