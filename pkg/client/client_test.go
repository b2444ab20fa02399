package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/", WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

// ---------------------------------------------------------------------------
// New
// ---------------------------------------------------------------------------

func TestNew(t *testing.T) {
	_, err := New("  ")
	require.Error(t, err)

	_, err = New("ftp://example.com")
	require.Error(t, err)

	c, err := New("http://localhost:8000/")
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8000", c.BaseURL())
}

// ---------------------------------------------------------------------------
// Upload
// ---------------------------------------------------------------------------

func TestUpload_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/upload/file/", r.URL.Path)
		require.NotEmpty(t, r.Header.Get("X-Request-ID"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		require.Equal(t, "sales.csv", hdr.Filename)
		data, err := io.ReadAll(f)
		require.NoError(t, err)
		require.Equal(t, "region,revenue\nn,1\ns,2\ne,3\n", string(data))

		_, _ = w.Write([]byte(`{
			"file_id": "abc",
			"filename": "sales.csv",
			"summary": {"rows": 3, "columns": ["region", "revenue"], "data_types": {"region": "object", "revenue": "int64"}},
			"data_preview": [{"region": "n", "revenue": 1}]
		}`))
	})

	ds, err := c.Upload(context.Background(), writeFile(t, "sales.csv", "region,revenue\nn,1\ns,2\ne,3\n"))
	require.NoError(t, err)
	require.Equal(t, "abc", ds.ID)
	require.Equal(t, "sales.csv", ds.Filename)
	require.Equal(t, 3, ds.RowCount)
	require.Equal(t, []string{"region", "revenue"}, ds.Columns)
	require.Equal(t, "int64", ds.ColumnTypes["revenue"])
	require.Len(t, ds.Preview, 1)
}

func TestUpload_NonSuccessCarriesDetail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail": "Unsupported file format"}`))
	})

	_, err := c.Upload(context.Background(), writeFile(t, "a.csv", "x"))
	var statusErr *HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	require.Equal(t, "Unsupported file format", statusErr.Detail)
	require.Contains(t, err.Error(), "Unsupported file format")
}

func TestUpload_ShapeErrors(t *testing.T) {
	cases := map[string]string{
		"no summary":       `{"file_id": "a", "filename": "a.csv"}`,
		"no rows":          `{"file_id": "a", "summary": {"columns": []}}`,
		"no id":            `{"filename": "a.csv", "summary": {"rows": 1, "columns": ["x"]}}`,
		"duplicate column": `{"file_id": "a", "summary": {"rows": 1, "columns": ["x", "x"]}}`,
		"not json":         `<html>oops</html>`,
		"wrong types":      `{"file_id": "a", "summary": {"rows": "many"}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			_, err := c.Upload(context.Background(), writeFile(t, "a.csv", "x"))
			var shapeErr *ShapeError
			require.True(t, errors.As(err, &shapeErr), "got %v", err)
		})
	}
}

func TestUpload_MissingFile(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { called = true })
	_, err := c.Upload(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
	require.False(t, called)
}

// ---------------------------------------------------------------------------
// Chat
// ---------------------------------------------------------------------------

func TestChat_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "abc", req["file_id"])
		require.Equal(t, "total revenue?", req["message"])

		_, _ = w.Write([]byte(`{"file_id": "abc", "filename": "sales.csv", "analysis": "It is 6.", "conversation_length": 2}`))
	})

	reply, err := c.Chat(context.Background(), "abc", "total revenue?")
	require.NoError(t, err)
	require.Equal(t, "It is 6.", reply.Analysis)
	require.Equal(t, "abc", reply.FileID)
	require.NotNil(t, reply.ConversationLength)
	require.Equal(t, 2, *reply.ConversationLength)
}

func TestChat_ShapeErrors(t *testing.T) {
	for name, body := range map[string]string{
		"missing analysis": `{"file_id": "abc"}`,
		"other file":       `{"file_id": "zzz", "analysis": "x"}`,
	} {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			_, err := c.Chat(context.Background(), "abc", "q")
			var shapeErr *ShapeError
			require.True(t, errors.As(err, &shapeErr), "got %v", err)
		})
	}
}

func TestChat_StructuredDetail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail": [{"loc": ["body", "message"], "msg": "field required"}]}`))
	})
	_, err := c.Chat(context.Background(), "abc", "q")
	var statusErr *HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	require.Contains(t, statusErr.Detail, "field required")
}

func TestChat_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	u := srv.URL
	srv.Close()

	c, err := New(u, WithTimeout(time.Second))
	require.NoError(t, err)
	_, err = c.Chat(context.Background(), "abc", "q")
	require.Error(t, err)
	var statusErr *HTTPStatusError
	require.False(t, errors.As(err, &statusErr))
}

// ---------------------------------------------------------------------------
// History
// ---------------------------------------------------------------------------

func TestHistory(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/conversations/abc", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"file_id": "abc",
			"messages": [
				{"role": "user", "content": "hi", "timestamp": "2024-05-01T10:00:00.123456"},
				{"role": "assistant", "content": "hello", "timestamp": "2024-05-01T10:00:01Z"}
			],
			"created_at": "2024-05-01T10:00:00",
			"updated_at": "2024-05-01T10:00:01"
		}`))
	})

	h, err := c.History(context.Background(), "abc")
	require.NoError(t, err)
	require.Equal(t, "abc", h.FileID)
	require.Len(t, h.Entries, 2)
	require.Equal(t, "user", h.Entries[0].Role)
	require.Equal(t, 2024, h.Entries[0].Timestamp.Year())
	require.Equal(t, "hello", h.Entries[1].Content)
	require.Equal(t, 1, h.Entries[1].Timestamp.Second())
}

func TestHistory_RejectsUnknownRole(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"file_id": "abc", "messages": [{"role": "system", "content": "x"}]}`))
	})
	_, err := c.History(context.Background(), "abc")
	var shapeErr *ShapeError
	require.True(t, errors.As(err, &shapeErr))
}

func TestExtractDetail(t *testing.T) {
	require.Equal(t, "boom", extractDetail([]byte(`{"detail":"boom"}`)))
	require.Equal(t, "", extractDetail([]byte(`{"detail":null}`)))
	require.Equal(t, "", extractDetail([]byte(`not json`)))
	require.Equal(t, `{"a":1}`, extractDetail([]byte(`{"detail": {"a": 1}}`)))
}
