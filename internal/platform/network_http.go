package platform

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/qorzen/kernel/internal/kernelerr"
)

// HTTPNetwork implements Network over net/http.Client (spec.md §6).
type HTTPNetwork struct {
	client *http.Client
}

// NewHTTPNetwork constructs an HTTPNetwork with the given default timeout
// (overridable per-request via HTTPRequest.Timeout).
func NewHTTPNetwork(defaultTimeout time.Duration) *HTTPNetwork {
	if defaultTimeout <= 0 {
		defaultTimeout = 30 * time.Second
	}
	return &HTTPNetwork{client: &http.Client{Timeout: defaultTimeout}}
}

func (n *HTTPNetwork) Request(ctx context.Context, req HTTPRequest) (HTTPResponse, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, req.Body)
	if err != nil {
		return HTTPResponse{}, kernelerr.Wrap(kernelerr.KindIO, kernelerr.SeverityMedium, "platform.network", "building request", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := n.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return HTTPResponse{}, kernelerr.Timeout("platform.network", "request timed out or was cancelled")
		}
		return HTTPResponse{}, kernelerr.Wrap(kernelerr.KindIO, kernelerr.SeverityMedium, "platform.network", "performing request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return HTTPResponse{}, kernelerr.Wrap(kernelerr.KindIO, kernelerr.SeverityMedium, "platform.network", "reading response body", err)
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	return HTTPResponse{StatusCode: resp.StatusCode, Headers: headers, Body: body}, nil
}
