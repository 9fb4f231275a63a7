package planner

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/planstudio-ai/planstudio/internal/logging"
	"github.com/planstudio-ai/planstudio/pkg/types"
)

// Client opens planning sessions against an SSE-speaking backend.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a planner client for baseURL. The HTTP client has
// no timeout: sessions are long-lived streams.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 0},
	}
}

// Open constructs a Session for req reporting to h. The session does
// not touch the network until Run is called.
func (c *Client) Open(ctx context.Context, req types.PlanRequest, h Handler) Session {
	return &sseSession{
		ctx:     ctx,
		client:  c.HTTPClient,
		url:     c.BaseURL + "/plan",
		request: req,
		handler: h,
	}
}

// sseSession streams step events from a POST endpoint emitting
// text/event-stream.
type sseSession struct {
	ctx     context.Context
	client  *http.Client
	url     string
	request types.PlanRequest
	handler Handler

	state atomic.Int32
}

func (s *sseSession) State() State {
	return State(s.state.Load())
}

func (s *sseSession) Run() {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return
	}
	go s.stream()
}

func (s *sseSession) stream() {
	log := logging.ForComponent("planner")

	body, err := json.Marshal(s.request)
	if err != nil {
		s.fail(fmt.Errorf("encode plan request: %w", err))
		return
	}

	req, err := http.NewRequestWithContext(s.ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		s.fail(fmt.Errorf("create plan request: %w", err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.client.Do(req)
	if err != nil {
		s.fail(fmt.Errorf("open plan stream: %w", err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.fail(fmt.Errorf("plan stream status %d", resp.StatusCode))
		return
	}

	reader := bufio.NewReader(resp.Body)
	var data strings.Builder

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				s.state.Store(int32(StateClosed))
				s.handler.OnClose()
				return
			}
			s.fail(fmt.Errorf("read plan stream: %w", err))
			return
		}

		line = strings.TrimRight(line, "\r\n")

		// Blank line terminates one event.
		if line == "" {
			if data.Len() > 0 {
				s.dispatch(data.String(), log)
				data.Reset()
			}
			continue
		}

		// Comment lines are heartbeats.
		if strings.HasPrefix(line, ":") {
			continue
		}

		if strings.HasPrefix(line, "data:") {
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
}

func (s *sseSession) dispatch(payload string, log zerolog.Logger) {
	var step types.StepEvent
	if err := json.Unmarshal([]byte(payload), &step); err != nil {
		log.Warn().Err(err).Msg("dropping malformed step event")
		return
	}
	s.handler.OnStep(step)
}

func (s *sseSession) fail(err error) {
	s.state.Store(int32(StateErrored))
	s.handler.OnError(err)
}
