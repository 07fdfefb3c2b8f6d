package simfeed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// client wraps http.Client for the simulator's few endpoints.
type client struct {
	http    *http.Client
	baseURL string
}

func newClient(baseURL string, timeout time.Duration) *client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &client{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// checkHealth probes /healthz before the feed starts.
func (c *client) checkHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned %d", resp.StatusCode)
	}
	return nil
}

// startShift posts /shifts/start; an already-active shift is not an error.
func (c *client) startShift(ctx context.Context, name string) error {
	body, _ := json.Marshal(map[string]string{"name": name})
	resp, err := c.post(ctx, "/shifts/start", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusConflict {
		return fmt.Errorf("shift start returned %d", resp.StatusCode)
	}
	return nil
}

// sendTick posts one observation and decodes the acknowledgement.
func (c *client) sendTick(ctx context.Context, obs Observation) (Ack, error) {
	body, err := json.Marshal(obs)
	if err != nil {
		return Ack{}, fmt.Errorf("failed to marshal observation: %w", err)
	}
	resp, err := c.post(ctx, "/observations", body)
	if err != nil {
		return Ack{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		data, _ := io.ReadAll(resp.Body)
		return Ack{}, fmt.Errorf("observation returned %d: %s", resp.StatusCode, string(data))
	}
	var ack Ack
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return Ack{}, fmt.Errorf("failed to decode ack: %w", err)
	}
	return ack, nil
}

func (c *client) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}
