// Package backend talks to the academic management API: batch record
// creation and the reference data operators pick batch context from.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/JonMunkholm/acadimport/internal/core"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 8 << 20

// Config configures a Client.
type Config struct {
	BaseURL string
	// Token is the service token used when the request context carries no
	// operator token.
	Token      string
	Timeout    time.Duration
	MaxRetries int
	// KindPaths maps an import kind to its batch-create path.
	KindPaths       map[string]string
	DepartmentsPath string
	Logger          *slog.Logger
}

// Client implements core.BatchCreator against the backend API.
type Client struct {
	baseURL         string
	token           string
	kindPaths       map[string]string
	departmentsPath string
	maxRetries      int
	logger          *slog.Logger

	// http sends batch creates, which are never retried.
	http HTTPDoer
	// reads sends idempotent GETs through the retry client.
	reads HTTPDoer
}

// StatusError is a non-2xx backend response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Message)
}

// Department is one entry of the department reference list.
type Department struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code,omitempty"`
}

// NewClient creates a backend client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	paths := make(map[string]string, len(cfg.KindPaths))
	for k, v := range cfg.KindPaths {
		paths[k] = v
	}
	c := &Client{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		token:           cfg.Token,
		kindPaths:       paths,
		departmentsPath: cfg.DepartmentsPath,
		maxRetries:      cfg.MaxRetries,
		logger:          cfg.Logger.With("component", "backend"),
	}
	c.SetHTTPClient(&http.Client{Timeout: cfg.Timeout})
	return c
}

// SetHTTPClient replaces the underlying HTTP client (useful for testing).
func (c *Client) SetHTTPClient(doer HTTPDoer) {
	c.http = doer
	rc := NewRetryClient(doer, c.maxRetries)
	rc.logger = c.logger
	c.reads = rc
}

// SetReadClient replaces the doer used for GET requests.
func (c *Client) SetReadClient(doer HTTPDoer) {
	c.reads = doer
}

// Supports reports whether a batch-create path is configured for kind.
func (c *Client) Supports(kind string) bool {
	_, ok := c.kindPaths[kind]
	return ok
}

// CreateMany posts one batch. The body is {"records": [...]} merged with the
// batch context fields. It is sent exactly once; any network failure or
// non-2xx status is returned wrapped in core.ErrSubmissionTransport.
func (c *Client) CreateMany(ctx context.Context, req core.BatchRequest) (*core.BatchResponse, error) {
	path, ok := c.kindPaths[req.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: no batch endpoint configured for %w", core.ErrSubmissionTransport,
			fmt.Errorf("%w: %q", core.ErrUnknownKind, req.Kind))
	}

	payload := make(map[string]any, len(req.Context)+1)
	for k, v := range req.Context {
		payload[k] = v
	}
	records := req.Records
	if records == nil {
		records = []core.Record{}
	}
	payload["records"] = records

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}

	start := time.Now()
	respBody, err := c.do(ctx, c.http, http.MethodPost, path, body)
	log := c.logger.With("kind", req.Kind, "records", len(req.Records), "duration", time.Since(start).String())
	if err != nil {
		log.Error("batch create failed", "error", err)
		return nil, fmt.Errorf("%w: %w", core.ErrSubmissionTransport, err)
	}

	idField := ""
	if schema, ok := core.Get(req.Kind); ok {
		idField = schema.IdentifierField
	}
	resp, err := decodeBatchResponse(respBody, idField)
	if err != nil {
		log.Error("batch create response unreadable", "error", err)
		return nil, fmt.Errorf("%w: %w", core.ErrSubmissionTransport, err)
	}
	log.Info("batch create finished", "created", resp.CreatedCount, "failed", resp.FailedCount)
	return resp, nil
}

// ListDepartments returns the department reference list, sorted by name.
// Transient failures are retried.
func (c *Client) ListDepartments(ctx context.Context) ([]Department, error) {
	body, err := c.do(ctx, c.reads, http.MethodGet, c.departmentsPath, nil)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	items, err := decodeList(body)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}

	out := make([]Department, 0, len(items))
	for _, item := range items {
		d := Department{
			ID:   firstString(item, "id", "_id", "departmentId"),
			Name: firstString(item, "name", "title", "departmentName"),
			Code: firstString(item, "code", "shortName"),
		}
		if d.ID == "" {
			continue
		}
		if d.Name == "" {
			d.Name = d.ID
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// do sends one request and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, doer HTTPDoer, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.bearer(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}
	return respBody, nil
}

func (c *Client) bearer(ctx context.Context) string {
	if t := core.OperatorTokenFromContext(ctx); t != "" {
		return t
	}
	return c.token
}

func firstString(item map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := asString(item[k]); s != "" {
			return s
		}
	}
	return ""
}
