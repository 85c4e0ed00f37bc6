package resolver

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   SourceKind
	}{
		{name: "http url", source: "http://example.test/a.jpg", want: SourceRemote},
		{name: "https url", source: "https://example.test/a.jpg", want: SourceRemote},
		{name: "relative path", source: "photos/a.jpg", want: SourceLocal},
		{name: "absolute path", source: "/tmp/a.jpg", want: SourceLocal},
		{name: "uppercase scheme is local", source: "HTTP://example.test/a.jpg", want: SourceLocal},
		{name: "ftp is local", source: "ftp://example.test/a.jpg", want: SourceLocal},
		{name: "empty", source: "", want: SourceLocal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.source))
		})
	}
}

func TestResolver_Resolve_LocalPassthrough(t *testing.T) {
	r := New(Options{}, testLogger())

	in, err := r.Resolve(context.Background(), "photos/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "photos/a.jpg", in.Path)
	assert.False(t, in.Staged)
}

func TestResolver_Resolve_RemoteSuccess(t *testing.T) {
	payload := []byte("jpeg bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, http.MethodGet, req.Method)
		w.Write(payload)
	}))
	defer srv.Close()

	r := New(Options{Timeout: 5 * time.Second, TempDir: t.TempDir()}, testLogger())
	in, err := r.Resolve(context.Background(), srv.URL+"/photo.jpg")
	require.NoError(t, err)
	require.True(t, in.Staged)

	assert.True(t, strings.HasPrefix(filepath.Base(in.Path), "img_compactor_"))
	assert.True(t, strings.HasSuffix(in.Path, ".jpg"))

	got, err := os.ReadFile(in.Path)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestResolver_Resolve_RemoteNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.NotFound(w, req)
	}))
	defer srv.Close()

	r := New(Options{}, testLogger())
	_, err := r.Resolve(context.Background(), srv.URL+"/gone.jpg")

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
}

func TestResolver_Resolve_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {}))
	srv.Close()

	r := New(Options{Timeout: time.Second}, testLogger())
	_, err := r.Resolve(context.Background(), srv.URL+"/a.jpg")

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Error(t, fetchErr.Err)
}

func TestResolver_Resolve_UserAgent(t *testing.T) {
	var gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotAgent = req.Header.Get("User-Agent")
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	r := New(Options{UserAgent: "img-compactor/1.0", TempDir: t.TempDir()}, testLogger())
	_, err := r.Resolve(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "img-compactor/1.0", gotAgent)
}

func TestResolver_Release(t *testing.T) {
	t.Run("removes staged file", func(t *testing.T) {
		r := New(Options{}, testLogger())
		tmp := filepath.Join(t.TempDir(), "img_compactor_x.jpg")
		require.NoError(t, os.WriteFile(tmp, []byte("x"), 0644))

		r.Release(StagedInput{Path: tmp, Staged: true})
		assert.NoFileExists(t, tmp)
	})

	t.Run("keeps local input", func(t *testing.T) {
		r := New(Options{}, testLogger())
		local := filepath.Join(t.TempDir(), "a.jpg")
		require.NoError(t, os.WriteFile(local, []byte("x"), 0644))

		r.Release(StagedInput{Path: local, Staged: false})
		assert.FileExists(t, local)
	})

	t.Run("keeps staged file when retention is on", func(t *testing.T) {
		r := New(Options{RetainTempFiles: true}, testLogger())
		tmp := filepath.Join(t.TempDir(), "img_compactor_y.jpg")
		require.NoError(t, os.WriteFile(tmp, []byte("x"), 0644))

		r.Release(StagedInput{Path: tmp, Staged: true})
		assert.FileExists(t, tmp)
	})
}
