package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-go-golems/datalens/pkg/dataset"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	uploadPath       = "/upload/file/"
	chatPath         = "/chat/"
	conversationPath = "/conversations/"

	maxResponseBytes = 8 << 20
	maxErrorBytes    = 16 << 10
)

// HTTPStatusError is returned for non-2xx backend responses. Detail holds the
// backend's "detail" field when it sent one.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Detail     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend: %s (status %d)", e.Detail, e.StatusCode)
	}
	return fmt.Sprintf("backend: unexpected status %d from %s", e.StatusCode, e.URL)
}

// ShapeError is returned when a 2xx response does not have the expected shape.
type ShapeError struct {
	Endpoint string
	Reason   string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("backend: malformed %s response: %s", e.Endpoint, e.Reason)
}

type ChatReply struct {
	FileID             string
	Filename           string
	Analysis           string
	ConversationLength *int
}

type HistoryEntry struct {
	Role      string
	Content   string
	Timestamp time.Time
}

type History struct {
	FileID    string
	Entries   []HistoryEntry
	CreatedAt string
	UpdatedAt string
}

// Client talks to the analysis backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client, for instance to share a
// transport or to point tests at an httptest server.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the overall timeout of each request. Non-positive values
// keep the default of two minutes.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// New creates a client for the analysis service at baseURL. Only http and
// https URLs are accepted; a trailing slash is ignored.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("client: base URL must not be empty")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "client: parse base URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("client: unsupported base URL scheme %q", u.Scheme)
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

type uploadResponse struct {
	FileID   string `json:"file_id"`
	Filename string `json:"filename"`
	Summary  *struct {
		Rows      *int              `json:"rows"`
		Columns   []string          `json:"columns"`
		DataTypes map[string]string `json:"data_types"`
	} `json:"summary"`
	DataPreview []map[string]any `json:"data_preview"`
}

// Upload sends the file at path as multipart field "file".
func (c *Client) Upload(ctx context.Context, path string) (*dataset.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open upload")
	}
	defer func() { _ = f.Close() }()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, errors.Wrap(err, "create multipart part")
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, errors.Wrap(err, "read upload")
	}
	if err := mw.Close(); err != nil {
		return nil, errors.Wrap(err, "finish multipart body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uploadPath, &body)
	if err != nil {
		return nil, errors.Wrap(err, "create upload request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var payload uploadResponse
	if err := c.do(req, &payload); err != nil {
		return nil, err
	}

	if payload.Summary == nil {
		return nil, &ShapeError{Endpoint: "upload", Reason: "summary is missing"}
	}
	if payload.Summary.Rows == nil {
		return nil, &ShapeError{Endpoint: "upload", Reason: "summary.rows is missing"}
	}
	filename := payload.Filename
	if filename == "" {
		filename = filepath.Base(path)
	}
	ds := &dataset.Dataset{
		ID:          payload.FileID,
		Filename:    filename,
		RowCount:    *payload.Summary.Rows,
		Columns:     payload.Summary.Columns,
		ColumnTypes: payload.Summary.DataTypes,
		Preview:     payload.DataPreview,
	}
	if ds.Columns == nil {
		ds.Columns = []string{}
	}
	if ds.ColumnTypes == nil {
		ds.ColumnTypes = map[string]string{}
	}
	if err := ds.Validate(); err != nil {
		return nil, &ShapeError{Endpoint: "upload", Reason: err.Error()}
	}
	return ds, nil
}

type chatRequest struct {
	FileID  string `json:"file_id"`
	Message string `json:"message"`
}

type chatResponse struct {
	FileID             string  `json:"file_id"`
	Filename           string  `json:"filename"`
	Analysis           *string `json:"analysis"`
	ConversationLength *int    `json:"conversation_length"`
}

// Chat asks the backend about the dataset identified by fileID.
func (c *Client) Chat(ctx context.Context, fileID, message string) (*ChatReply, error) {
	body, err := json.Marshal(chatRequest{FileID: fileID, Message: message})
	if err != nil {
		return nil, errors.Wrap(err, "marshal chat request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatPath, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "create chat request")
	}
	req.Header.Set("Content-Type", "application/json")

	var payload chatResponse
	if err := c.do(req, &payload); err != nil {
		return nil, err
	}
	if payload.Analysis == nil {
		return nil, &ShapeError{Endpoint: "chat", Reason: "analysis is missing"}
	}
	if payload.FileID != "" && payload.FileID != fileID {
		return nil, &ShapeError{Endpoint: "chat", Reason: fmt.Sprintf("reply is for file %q, asked about %q", payload.FileID, fileID)}
	}
	return &ChatReply{
		FileID:             fileID,
		Filename:           payload.Filename,
		Analysis:           *payload.Analysis,
		ConversationLength: payload.ConversationLength,
	}, nil
}

type historyResponse struct {
	FileID   string `json:"file_id"`
	Messages []struct {
		Role      string `json:"role"`
		Content   string `json:"content"`
		Timestamp string `json:"timestamp"`
	} `json:"messages"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// History fetches the backend's record of the conversation about fileID.
func (c *Client) History(ctx context.Context, fileID string) (*History, error) {
	u := c.baseURL + conversationPath + url.PathEscape(fileID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create history request")
	}

	var payload historyResponse
	if err := c.do(req, &payload); err != nil {
		return nil, err
	}

	h := &History{
		FileID:    payload.FileID,
		CreatedAt: payload.CreatedAt,
		UpdatedAt: payload.UpdatedAt,
		Entries:   make([]HistoryEntry, 0, len(payload.Messages)),
	}
	for i, m := range payload.Messages {
		if m.Role != "user" && m.Role != "assistant" {
			return nil, &ShapeError{Endpoint: "history", Reason: fmt.Sprintf("message %d has role %q", i, m.Role)}
		}
		ts, ok := parseTimestamp(m.Timestamp)
		if !ok && m.Timestamp != "" {
			log.Debug().Str("timestamp", m.Timestamp).Msg("client: unparseable history timestamp")
		}
		h.Entries = append(h.Entries, HistoryEntry{Role: m.Role, Content: m.Content, Timestamp: ts})
	}
	return h, nil
}

func (c *Client) do(req *http.Request, out any) error {
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	logger := log.With().
		Str("request_id", requestID).
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Logger()

	start := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		logger.Warn().Err(err).Msg("client: request failed")
		return errors.Wrapf(err, "%s %s", req.Method, req.URL.Path)
	}
	defer func() { _ = res.Body.Close() }()

	logger.Debug().
		Int("status", res.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("client: response received")

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBytes))
		return &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        req.URL.String(),
			Detail:     extractDetail(buf),
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return errors.Wrap(err, "read response body")
	}
	if err := json.Unmarshal(buf, out); err != nil {
		return &ShapeError{Endpoint: req.URL.Path, Reason: err.Error()}
	}
	return nil
}

// extractDetail pulls the "detail" field out of an error body. It may be a
// plain string or a structured validation report.
func extractDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		return s
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, payload.Detail); err != nil {
		return ""
	}
	if compact.String() == "null" {
		return ""
	}
	return compact.String()
}
