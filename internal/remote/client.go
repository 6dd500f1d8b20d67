package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jmehdipour/pos-sync/internal/model"
)

// ErrTransport marks network-level failures (DNS, connect, timeout). The
// scheduler aborts the rest of the drain when it sees one; a plain *APIError
// only fails the single record.
var ErrTransport = fmt.Errorf("remote unreachable")

// APIError is an application-level rejection: the endpoint was reached and
// answered with a non-2xx status.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("remote rejected: status=%d detail=%s", e.Status, e.Detail)
}

// Client maps outbox records onto the remote REST store (PostgREST-style
// collections, `?id=eq.<id>` addressing).
type Client struct {
	baseURL     string
	apiKey      string
	bearerToken string
	client      *http.Client
}

func NewClient(baseURL, apiKey, bearerToken string, timeout time.Duration) (*Client, error) {
	if err := ValidateCollections(); err != nil {
		return nil, err
	}

	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:     baseURL,
		apiKey:      apiKey,
		bearerToken: bearerToken,
		client:      &http.Client{Timeout: timeout},
	}, nil
}

// Send delivers one record. nil means the remote accepted it; *APIError means
// it was rejected; anything wrapping ErrTransport means the network is down.
func (c *Client) Send(ctx context.Context, rec model.OutboxRecord) error {
	collection := CollectionFor(rec.EntityType)

	var (
		method string
		path   string
		body   io.Reader
	)
	switch rec.Operation {
	case model.OpCreate:
		method = http.MethodPost
		path = "/" + collection
		body = bytes.NewReader(rec.Payload)
	case model.OpUpdate:
		method = http.MethodPatch
		path = "/" + collection + "?id=eq." + url.QueryEscape(rec.EntityID)
		body = bytes.NewReader(rec.Payload)
	case model.OpDelete:
		method = http.MethodDelete
		path = "/" + collection + "?id=eq." + url.QueryEscape(rec.EntityID)
	default:
		return &APIError{Status: 0, Detail: fmt.Sprintf("unknown operation %q", rec.Operation)}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &APIError{Status: 0, Detail: err.Error()}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.bearerToken)

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}

	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return &APIError{Status: res.StatusCode, Detail: string(bytes.TrimSpace(detail))}
	}

	// drain so the connection can be reused
	_, _ = io.Copy(io.Discard, res.Body)

	return nil
}
