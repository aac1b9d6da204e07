package jobs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonesrussell/gosched/internal/registry"
)

// HTTPRequestClassString identifies the HTTP request job class.
const HTTPRequestClassString = "jobs.http_request"

// httpRequestTimeout bounds a single request.
const httpRequestTimeout = 30 * time.Second

// maxHTTPResponseBytes caps how much of a response body is stored in the
// execution result.
const maxHTTPResponseBytes = 64 * 1024

// HTTPRequestJob performs an HTTP request against a URL and records the
// response status and a bounded prefix of the body.
type HTTPRequestJob struct {
	registry.Base

	client *http.Client
}

// NewHTTPRequestJob creates an HTTP request job body.
func NewHTTPRequestJob() registry.JobBody {
	return &HTTPRequestJob{
		client: &http.Client{Timeout: httpRequestTimeout},
	}
}

// Run issues the request. Arguments: url (required), method (optional,
// default GET), body (optional).
func (j *HTTPRequestJob) Run(ctx context.Context, jobID, executionID string, args []any) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("http request job requires a url argument")
	}
	url, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("http request job url must be a string, got %T", args[0])
	}

	method := http.MethodGet
	if len(args) > 1 {
		m, mok := args[1].(string)
		if !mok {
			return nil, fmt.Errorf("http request job method must be a string, got %T", args[1])
		}
		method = strings.ToUpper(m)
	}

	var body io.Reader
	if len(args) > 2 {
		payload, pok := args[2].(string)
		if !pok {
			return nil, fmt.Errorf("http request job body must be a string, got %T", args[2])
		}
		body = strings.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := j.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxHTTPResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", url, err)
	}

	return map[string]any{
		"url":         url,
		"method":      method,
		"status_code": resp.StatusCode,
		"body":        string(data),
	}, nil
}

// Meta describes the HTTP request job class.
func (j *HTTPRequestJob) Meta() registry.Meta {
	return registry.Meta{
		JobClassString: HTTPRequestClassString,
		Notes:          "Makes an HTTP request and stores the response status and body.",
		Arguments: []registry.Argument{
			{Type: "string", Description: "URL to request"},
			{Type: "string", Description: "HTTP method (default GET)"},
			{Type: "string", Description: "Request body"},
		},
		Example: `["https://example.com/healthz", "GET"]`,
	}
}

// SucceededDescription summarizes the response status.
func (j *HTTPRequestJob) SucceededDescription(result any) string {
	if m, ok := result.(map[string]any); ok {
		return fmt.Sprintf("%v %v returned %v", m["method"], m["url"], m["status_code"])
	}
	return ""
}
