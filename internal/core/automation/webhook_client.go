package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Response is what the automation engine answered. Body is always valid JSON;
// a non-JSON answer is wrapped as {"text": "..."}.
type Response struct {
	StatusCode int
	Body       json.RawMessage
}

func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// WebhookClient forwards workflow invocations to n8n-style webhooks.
type WebhookClient struct {
	http *resty.Client
}

func NewWebhookClient(timeout time.Duration) *WebhookClient {
	c := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &WebhookClient{http: c}
}

// Forward POSTs payload to url. Only transport failures are errors; an
// upstream error status comes back in the Response.
func (c *WebhookClient) Forward(ctx context.Context, url string, payload any) (*Response, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		Post(url)
	if err != nil {
		return nil, fmt.Errorf("call webhook: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode(), Body: normalizeBody(resp.Body())}, nil
}

func normalizeBody(body []byte) json.RawMessage {
	if len(body) == 0 {
		return json.RawMessage(`{}`)
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	wrapped, _ := json.Marshal(map[string]string{"text": string(body)})
	return wrapped
}
