package pipeline

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Transport performs one HTTP exchange. A non-nil error means no response was received.
type Transport interface {
	Perform(ctx context.Context, method, url string, header http.Header, body []byte) (status int, respBody []byte, err error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, method, url string, header http.Header, body []byte) (int, []byte, error)

func (f TransportFunc) Perform(ctx context.Context, method, url string, header http.Header, body []byte) (int, []byte, error) {
	return f(ctx, method, url, header, body)
}

// RestyTransport is the production Transport. Retries are disabled: the
// pipeline leaves retry decisions to callers.
type RestyTransport struct {
	client *resty.Client
}

const defaultTransportTimeout = 10 * time.Second

func NewRestyTransport(timeout time.Duration) *RestyTransport {
	if timeout <= 0 {
		timeout = defaultTransportTimeout
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0)
	return &RestyTransport{client: client}
}

// NewRestyTransportWithClient wraps an already configured client.
func NewRestyTransportWithClient(client *resty.Client) *RestyTransport {
	return &RestyTransport{client: client}
}

func (t *RestyTransport) Perform(ctx context.Context, method, url string, header http.Header, body []byte) (int, []byte, error) {
	req := t.client.R().
		SetContext(ctx).
		SetHeaderMultiValues(header)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, url)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode(), resp.Body(), nil
}
