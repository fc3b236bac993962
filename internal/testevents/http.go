package testevents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client  *http.Client
	timeout time.Duration
}

// newHTTPClient creates a new HTTP client with timeout
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
	}
}

// Get performs a GET request
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with JSON body
func (c *HTTPClient) Post(ctx context.Context, url string, body interface{}) (*http.Response, error) {
	var buf io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		buf = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// readResponseBody reads and closes the response body
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// submitEvents submits events concurrently using worker pools
func submitEvents(ctx context.Context, config *Config, events []Event, stats *Stats) error {
	log.Printf("submitting %d events with %d workers...", len(events), config.Workers)

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/events"

	// Counters for statistics
	var (
		successful int64
		failed     int64
		submitted  int64
	)

	// Progress reporting
	var lastReport time.Time
	reportInterval := 1 * time.Second

	// Create worker pool
	eventChan := make(chan Event, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for event := range eventChan {
				select {
				case <-ctx.Done():
					return
				default:
					ok := submitSingleEvent(ctx, client, url, event)

					// Update counters
					atomic.AddInt64(&submitted, 1)
					if ok {
						atomic.AddInt64(&successful, 1)
					} else {
						atomic.AddInt64(&failed, 1)
					}

					// Progress reporting
					if time.Since(lastReport) >= reportInterval {
						lastReport = time.Now()
						total := atomic.LoadInt64(&submitted)
						succ := atomic.LoadInt64(&successful)
						fail := atomic.LoadInt64(&failed)

						if config.Verbose {
							log.Printf("progress: %d/%d submitted (success: %d, failed: %d)",
								total, len(events), succ, fail)
						} else {
							fmt.Printf("\rsubmitted: %d/%d (success: %d, failed: %d)",
								total, len(events), succ, fail)
						}
					}
				}
			}
		}()
	}

	// Send events to workers
	go func() {
		defer close(eventChan)
		for _, event := range events {
			select {
			case <-ctx.Done():
				return
			case eventChan <- event:
			}
		}
	}()

	// Wait for all workers to complete
	wg.Wait()

	// Final progress report
	if !config.Verbose {
		fmt.Println() // New line after progress indicator
	}

	// Update stats
	stats.EventsSubmitted = int(atomic.LoadInt64(&submitted))
	stats.EventsSuccessful = int(atomic.LoadInt64(&successful))
	stats.EventsFailed = int(atomic.LoadInt64(&failed))

	log.Printf("event submission completed: successful=%d failed=%d",
		stats.EventsSuccessful, stats.EventsFailed)

	return nil
}

// submitSingleEvent submits a single event and reports acceptance
func submitSingleEvent(ctx context.Context, client *HTTPClient, url string, event Event) bool {
	resp, err := client.Post(ctx, url, event)
	if err != nil {
		return false
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return false
	}

	if resp.StatusCode != StatusAccepted {
		return false
	}

	var ack AckResponse
	if err := json.Unmarshal(body, &ack); err == nil && ack.Status != "" {
		return true
	}
	return true // Assume success for 202 even if parsing fails
}

// forceFlush asks the service to flush its event buffer and returns the
// number of rows newly written.
func forceFlush(ctx context.Context, config *Config) (int, error) {
	client := newHTTPClient(config.Timeout)
	resp, err := client.Post(ctx, config.BaseURL+"/events/flush", nil)
	if err != nil {
		return 0, fmt.Errorf("flush request failed: %w", err)
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return 0, fmt.Errorf("failed to read flush response: %w", err)
	}
	if resp.StatusCode != StatusOK {
		return 0, fmt.Errorf("flush failed with status: %d", resp.StatusCode)
	}

	var flush FlushResponse
	if err := json.Unmarshal(body, &flush); err != nil {
		return 0, fmt.Errorf("failed to parse flush response: %w", err)
	}
	return flush.Written, nil
}
