package llm

import (
	"context"
	"time"

	"github.com/ppiankov/broadlistening/internal/metrics"
)

// InstrumentedClient records request latency and status
type InstrumentedClient struct {
	next    Client
	metrics *metrics.Metrics
}

// NewInstrumentedClient wraps next with request metrics
func NewInstrumentedClient(next Client, m *metrics.Metrics) *InstrumentedClient {
	return &InstrumentedClient{next: next, metrics: m}
}

// Name returns the wrapped provider name
func (c *InstrumentedClient) Name() string {
	return c.next.Name()
}

// Send forwards the request and records how it went
func (c *InstrumentedClient) Send(ctx context.Context, req Request) (*Response, error) {
	mode := "text"
	if req.JSON {
		mode = "json"
	}

	start := time.Now()
	resp, err := c.next.Send(ctx, req)
	c.metrics.RecordLLMRequest(c.next.Name(), mode, time.Since(start), err)

	return resp, err
}
