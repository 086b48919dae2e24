package facebook_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/gopost/internal/domain"
	"github.com/jonesrussell/gopost/internal/facebook"
	"github.com/jonesrussell/gopost/internal/logger"
)

var testPage = domain.Page{ID: "page123", Name: "Test Page", AccessToken: "page-token"}

func newTestClient(t *testing.T, handler http.HandlerFunc) *facebook.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return facebook.NewClient(server.Client(), logger.NewNopLogger()).WithBaseURL(server.URL)
}

func TestPublishVideoPostsFileURL(t *testing.T) {
	var gotPath, gotFileURL, gotToken string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, r.ParseForm())
		gotFileURL = r.FormValue("file_url")
		gotToken = r.FormValue("access_token")
		_, _ = w.Write([]byte(`{"id":"vid789"}`))
	})

	id, err := client.PublishVideo(context.Background(), testPage, "https://files.example.com/v.mp4", "caption text")
	require.NoError(t, err)
	assert.Equal(t, "vid789", id)
	assert.Equal(t, "/page123/videos", gotPath)
	assert.Equal(t, "https://files.example.com/v.mp4", gotFileURL)
	assert.Equal(t, "page-token", gotToken)
}

func TestPublishPhotoPrefersPostID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":"photo1","post_id":"page123_post1"}`))
	})

	id, err := client.PublishPhoto(context.Background(), testPage, "https://img.example.com/a.png", "caption")
	require.NoError(t, err)
	assert.Equal(t, "page123_post1", id)
}

func TestPublishCommentNormalizesBareObjectID(t *testing.T) {
	var gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"id":"comment1"}`))
	})

	_, err := client.PublishComment(context.Background(), testPage, "post456", "nice post")
	require.NoError(t, err)
	assert.Equal(t, "/page123_post456/comments", gotPath)

	_, err = client.PublishComment(context.Background(), testPage, "page123_post456", "nice post")
	require.NoError(t, err)
	assert.Equal(t, "/page123_post456/comments", gotPath)
}

func TestVerifyTokenReturnsGrantedPages(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/me/accounts", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[
			{"id":"p1","name":"Page One","access_token":"t1"},
			{"id":"p2","name":"Page Two","access_token":"t2"}
		]}`))
	})

	pages, err := client.VerifyToken(context.Background(), "user-token")
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "Page One", pages[0].Name)
	assert.Equal(t, "t2", pages[1].AccessToken)
	assert.Equal(t, "connected", pages[0].Status)
}

func TestVerifyTokenFallsBackToMe(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/me/accounts":
			_, _ = w.Write([]byte(`{"data":[]}`))
		case "/me":
			_, _ = w.Write([]byte(`{"id":"p9","name":"Solo Page"}`))
		default:
			http.NotFound(w, r)
		}
	})

	pages, err := client.VerifyToken(context.Background(), "page-token")
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "p9", pages[0].ID)
	assert.Equal(t, "page-token", pages[0].AccessToken)
}

func TestGraphErrorSurfacesStatusAndBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid OAuth access token"}}`))
	})

	_, err := client.PublishVideo(context.Background(), testPage, "https://x/v.mp4", "d")
	require.Error(t, err)

	var upErr *domain.UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusBadRequest, upErr.Status)
	assert.Contains(t, upErr.Body, "Invalid OAuth access token")
}
