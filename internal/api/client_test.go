package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/duelscope/recorder/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// archive is a fake battle archive that remembers the last upload.
type archive struct {
	status int
	fields map[string]string
	file   []byte
}

func (a *archive) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/healthcheck" && r.Method == http.MethodGet:
	case r.URL.Path == UploadPath && r.Method == http.MethodPost:
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		a.fields = map[string]string{}
		for key, values := range r.MultipartForm.Value {
			a.fields[key] = values[0]
		}
		if f, _, err := r.FormFile("file"); err == nil {
			a.file, _ = io.ReadAll(f)
			f.Close()
		}
	default:
		http.NotFound(w, r)
		return
	}
	if a.status != 0 {
		w.WriteHeader(a.status)
	}
}

func serve(t *testing.T, a *archive) *Client {
	t.Helper()
	srv := httptest.NewServer(a)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", "key-1")
}

func writeExport(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestNew_NormalizesBaseURL(t *testing.T) {
	c := New("http://archive:5000///", "k")
	assert.Equal(t, "http://archive:5000", c.baseURL)
	assert.Equal(t, 30*time.Second, c.httpClient.Timeout)
}

func TestHealthcheck(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr string
	}{
		{"ok", 0, ""},
		{"unavailable", http.StatusServiceUnavailable, "healthcheck returned status 503"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := serve(t, &archive{status: tt.status}).Healthcheck(context.Background())
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.EqualError(t, err, tt.wantErr)
			}
		})
	}
}

func TestHealthcheck_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := New(url, "").Healthcheck(context.Background())
	assert.ErrorContains(t, err, "healthcheck request failed")
}

func TestHealthcheck_HonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := serve(t, &archive{}).Healthcheck(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUpload_SendsMetadataAndFile(t *testing.T) {
	a := &archive{}
	c := serve(t, a)
	path := writeExport(t, "Walls_vs_Tron_20260101_120000.json.gz", "gzipped battle")

	err := c.Upload(context.Background(), path, core.UploadMetadata{
		BattleName:  "Walls vs Tron",
		Arena:       "800x600",
		RoundsCount: 35,
		Duration:    92.25,
		Tag:         "League",
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"secret":         "key-1",
		"filename":       "Walls_vs_Tron_20260101_120000.json.gz",
		"battleName":     "Walls vs Tron",
		"arena":          "800x600",
		"roundsCount":    "35",
		"battleDuration": "92.250",
		"tag":            "League",
	}, a.fields)
	assert.Equal(t, "gzipped battle", string(a.file))
}

func TestUpload_Rejected(t *testing.T) {
	c := serve(t, &archive{status: http.StatusForbidden})
	path := writeExport(t, "b.json.gz", "x")

	err := c.Upload(context.Background(), path, core.UploadMetadata{})
	assert.EqualError(t, err, "upload returned status 403")
}

func TestUpload_MissingFile(t *testing.T) {
	c := New("http://127.0.0.1:1", "k")

	err := c.Upload(context.Background(), filepath.Join(t.TempDir(), "absent.json.gz"), core.UploadMetadata{})
	assert.ErrorContains(t, err, "failed to open file")
}
