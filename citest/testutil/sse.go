package testutil

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/planstudio-ai/planstudio/pkg/types"
)

// SSEClient streams the planning endpoint and collects its step events.
type SSEClient struct {
	BaseURL    string
	HTTPClient *http.Client

	stepsCh chan types.StepEvent
	errCh   chan error
	cancel  context.CancelFunc
	body    io.ReadCloser
}

// NewSSEClient creates a new SSE test client.
func NewSSEClient(baseURL string) *SSEClient {
	return &SSEClient{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 0, // No timeout for SSE
		},
		stepsCh: make(chan types.StepEvent, 100),
		errCh:   make(chan error, 1),
	}
}

// Plan opens a planning stream for the request.
func (c *SSEClient) Plan(ctx context.Context, planReq types.PlanRequest) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	body, err := json.Marshal(planReq)
	if err != nil {
		cancel()
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/plan", bytes.NewReader(body))
	if err != nil {
		cancel()
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to connect: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		resp.Body.Close()
		cancel()
		return fmt.Errorf("unexpected content type: %s", ct)
	}

	c.body = resp.Body
	go c.readSteps(resp.Body)
	return nil
}

// readSteps reads SSE step events from the connection.
func (c *SSEClient) readSteps(body io.Reader) {
	defer func() {
		close(c.stepsCh)
		close(c.errCh)
	}()

	scanner := bufio.NewScanner(body)
	var data strings.Builder

	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			if data.Len() > 0 {
				var step types.StepEvent
				if err := json.Unmarshal([]byte(data.String()), &step); err == nil {
					c.stepsCh <- step
				}
				data.Reset()
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue // heartbeat
		}
		if payload, ok := strings.CutPrefix(line, "data:"); ok {
			data.WriteString(strings.TrimPrefix(payload, " "))
		}
	}

	if err := scanner.Err(); err != nil {
		c.errCh <- err
	}
}

// CollectSteps drains step events until the stream closes or the
// timeout elapses.
func (c *SSEClient) CollectSteps(timeout time.Duration) []types.StepEvent {
	var steps []types.StepEvent
	deadline := time.After(timeout)

	for {
		select {
		case step, ok := <-c.stepsCh:
			if !ok {
				return steps
			}
			steps = append(steps, step)
		case <-deadline:
			return steps
		}
	}
}

// Close tears down the stream.
func (c *SSEClient) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	if c.body != nil {
		c.body.Close()
	}
}
