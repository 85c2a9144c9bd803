package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/loykin/wgman/internal/history"
)

const (
	defaultRetries = 2
	defaultBackoff = 200 * time.Millisecond
)

// Sink indexes transitions into OpenSearch (or Elasticsearch).
//
// Every event gets a deterministic document ID derived from its time, type and
// name, and is written with op_type=create. A retried request that already
// landed comes back as 409 Conflict, which counts as success, so a transition
// is never indexed twice.
type Sink struct {
	client  *http.Client
	baseURL string
	index   string
	retries int
	backoff time.Duration
}

// document is the indexed shape; @timestamp lets dashboards pick the time field
// without a mapping.
type document struct {
	Timestamp time.Time `json:"@timestamp"`
	Event     string    `json:"event"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Mock      bool      `json:"mock"`
	Error     string    `json:"error,omitempty"`
}

func New(baseURL, index string) *Sink {
	return &Sink{
		client:  &http.Client{Timeout: 5 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		index:   index,
		retries: defaultRetries,
		backoff: defaultBackoff,
	}
}

// DocumentID identifies e within its index.
func DocumentID(e history.Event) string {
	return fmt.Sprintf("%d-%s-%s", e.OccurredAt.UTC().UnixNano(), e.Type, e.Name)
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	b, err := json.Marshal(document{
		Timestamp: e.OccurredAt.UTC(),
		Event:     string(e.Type),
		Name:      e.Name,
		Status:    e.Status,
		Mock:      e.Mock,
		Error:     e.Error,
	})
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/%s/_doc/%s?op_type=create", s.baseURL, url.PathEscape(s.index), url.PathEscape(DocumentID(e)))

	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * s.backoff):
			}
		}
		retry, err := s.put(ctx, u, b)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry {
			break
		}
	}
	return fmt.Errorf("index %s %s: %w", e.Type, e.Name, lastErr)
}

// put sends one request and reports whether a failure is worth retrying.
func (s *Sink) put(ctx context.Context, u string, body []byte) (retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return ctx.Err() == nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode < 300, resp.StatusCode == http.StatusConflict:
		return false, nil
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return true, fmt.Errorf("opensearch status %d", resp.StatusCode)
	default:
		return false, fmt.Errorf("opensearch status %d", resp.StatusCode)
	}
}
