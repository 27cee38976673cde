package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/podium/pkg/logger"
)

// HTTPClient wraps http.Client with timeout.
type HTTPClient struct {
	client *http.Client
}

func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with a JSON body and extra headers.
func (c *HTTPClient) Post(ctx context.Context, url string, body any, headers map[string]string) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.client.Do(req)
}

// getJSON fetches url and decodes a 200 response into v.
func (c *HTTPClient) getJSON(ctx context.Context, url string, v any) error {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// submitRuns submits runs with cfg.Workers workers. Retries are sent after
// every original so the duplicate check is deterministic.
func submitRuns(ctx context.Context, cfg *Config, runs []GeneratedRun, stats *Stats) []Outcome {
	log := logger.GetOrNop()
	log.Info(ctx, "submitting runs", logger.Int("runs", len(runs)), logger.Int("workers", cfg.Workers))

	client := newHTTPClient(cfg.Timeout)
	url := cfg.BaseURL + "/api/scores"
	outcomes := make([]Outcome, len(runs))
	for i := range outcomes {
		outcomes[i] = OutcomeFailed
	}

	var (
		submitted  atomic.Int64
		lastReport atomic.Int64
	)

	pass := func(retries bool) {
		indices := make(chan int, cfg.Workers*2)
		var wg sync.WaitGroup
		for w := 0; w < cfg.Workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range indices {
					outcomes[i] = submitSingleRun(ctx, client, url, runs[i])
					n := submitted.Add(1)

					now := time.Now().UnixNano()
					last := lastReport.Load()
					if cfg.Verbose && now-last >= int64(reportInterval) && lastReport.CompareAndSwap(last, now) {
						log.Info(ctx, "progress", logger.Int64("submitted", n), logger.Int("total", len(runs)))
					}
				}
			}()
		}
	feed:
		for i, r := range runs {
			if r.Retry != retries {
				continue
			}
			select {
			case <-ctx.Done():
				break feed
			case indices <- i:
			}
		}
		close(indices)
		wg.Wait()
	}
	pass(false)
	pass(true)

	for _, o := range outcomes {
		switch o {
		case OutcomeAccepted:
			stats.Accepted++
		case OutcomeRejected:
			stats.Rejected++
		case OutcomeDuplicate:
			stats.Duplicates++
		case OutcomeRateLimited:
			stats.RateLimited++
		default:
			stats.Failed++
		}
	}
	stats.Submitted = int(submitted.Load())

	log.Info(ctx, "run submission completed",
		logger.Int("accepted", stats.Accepted),
		logger.Int("rejected", stats.Rejected),
		logger.Int("duplicates", stats.Duplicates),
		logger.Int("rateLimited", stats.RateLimited),
		logger.Int("failed", stats.Failed))
	return outcomes
}

// submitSingleRun posts one run and classifies the response.
func submitSingleRun(ctx context.Context, client *HTTPClient, url string, r GeneratedRun) Outcome {
	if ctx.Err() != nil {
		return OutcomeFailed
	}
	resp, err := client.Post(ctx, url, r, map[string]string{
		"X-Forwarded-For": r.Origin,
		"Idempotency-Key": r.IdempotencyKey,
	})
	if err != nil {
		return OutcomeFailed
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		var res SubmitResult
		if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
			return OutcomeFailed
		}
		if !res.Accepted {
			return OutcomeRejected
		}
		return OutcomeAccepted
	case http.StatusConflict:
		return OutcomeDuplicate
	case http.StatusTooManyRequests:
		return OutcomeRateLimited
	default:
		return OutcomeFailed
	}
}
