package generation

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/gopost/internal/domain"
)

func TestUploadSendsMultipartForm(t *testing.T) {
	videoPath := filepath.Join(t.TempDir(), "job1.mp4")
	require.NoError(t, os.WriteFile(videoPath, []byte("fake video bytes"), 0o644))

	var gotReqtype, gotUserhash, gotFilename string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotReqtype = r.FormValue("reqtype")
		gotUserhash = r.FormValue("userhash")

		file, header, err := r.FormFile("fileToUpload")
		require.NoError(t, err)
		defer file.Close()
		gotFilename = header.Filename
		gotBody, err = io.ReadAll(file)
		require.NoError(t, err)

		_, _ = w.Write([]byte("https://files.example.com/abc123.mp4\n"))
	}))
	defer server.Close()

	u := NewUploader(server.Client()).WithEndpoint(server.URL)

	url, err := u.Upload(context.Background(), videoPath, "hash123")
	require.NoError(t, err)
	assert.Equal(t, "https://files.example.com/abc123.mp4", url)
	assert.Equal(t, "fileupload", gotReqtype)
	assert.Equal(t, "hash123", gotUserhash)
	assert.Equal(t, "job1.mp4", gotFilename)
	assert.Equal(t, []byte("fake video bytes"), gotBody)
}

func TestUploadAnonymousOmitsUserhash(t *testing.T) {
	videoPath := filepath.Join(t.TempDir(), "job1.mp4")
	require.NoError(t, os.WriteFile(videoPath, []byte("x"), 0o644))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Empty(t, r.FormValue("userhash"))
		_, _ = w.Write([]byte("https://files.example.com/x.mp4"))
	}))
	defer server.Close()

	u := NewUploader(server.Client()).WithEndpoint(server.URL)

	_, err := u.Upload(context.Background(), videoPath, "")
	require.NoError(t, err)
}

func TestUploadSurfacesUpstreamError(t *testing.T) {
	videoPath := filepath.Join(t.TempDir(), "job1.mp4")
	require.NoError(t, os.WriteFile(videoPath, []byte("x"), 0o644))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "capacity exceeded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	u := NewUploader(server.Client()).WithEndpoint(server.URL)

	_, err := u.Upload(context.Background(), videoPath, "hash")
	require.Error(t, err)

	var upErr *domain.UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusServiceUnavailable, upErr.Status)
}

func TestUploadRejectsNonURLResponse(t *testing.T) {
	videoPath := filepath.Join(t.TempDir(), "job1.mp4")
	require.NoError(t, os.WriteFile(videoPath, []byte("x"), 0o644))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("something went wrong"))
	}))
	defer server.Close()

	u := NewUploader(server.Client()).WithEndpoint(server.URL)

	_, err := u.Upload(context.Background(), videoPath, "hash")
	assert.Error(t, err)
}
