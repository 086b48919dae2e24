// Package facebook is a minimal Graph API client covering the publish
// surface the pipeline needs: page videos, photos, feed posts and
// comments, plus token verification for connecting pages.
package facebook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonesrussell/gopost/internal/domain"
	"github.com/jonesrussell/gopost/internal/logger"
)

const (
	defaultGraphBase = "https://graph.facebook.com/v19.0"
	graphTimeout     = 3 * time.Minute
)

type graphIDResponse struct {
	ID     string `json:"id"`
	PostID string `json:"post_id"`
}

type graphPagesResponse struct {
	Data []struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		AccessToken string `json:"access_token"`
	} `json:"data"`
}

type graphMeResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Client talks to the Graph API on behalf of connected pages.
type Client struct {
	client  *http.Client
	logger  logger.Logger
	baseURL string
}

// NewClient creates a Graph API client. A nil http client gets a default
// with a timeout sized for remote video ingestion.
func NewClient(client *http.Client, log logger.Logger) *Client {
	if client == nil {
		client = &http.Client{Timeout: graphTimeout}
	}
	return &Client{client: client, logger: log, baseURL: defaultGraphBase}
}

// WithBaseURL overrides the Graph API base; used by tests.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = base
	return c
}

// postForm sends one form-encoded Graph API call and decodes the JSON
// response into out.
func (c *Client) postForm(ctx context.Context, op, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.do(op, req, out)
}

// get sends one Graph API GET and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, op, path string, query url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+path+"?"+query.Encode(), http.NoBody)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}

	return c.do(op, req, out)
}

func (c *Client) do(op string, req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return &domain.UpstreamError{Status: resp.StatusCode, Body: string(raw), Op: op}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// PublishVideo publishes a hosted video to a page by URL and returns the
// video ID.
func (c *Client) PublishVideo(ctx context.Context, page domain.Page, fileURL, description string) (string, error) {
	var resp graphIDResponse
	err := c.postForm(ctx, "publish video", "/"+page.ID+"/videos", url.Values{
		"file_url":     {fileURL},
		"description":  {description},
		"access_token": {page.AccessToken},
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("publish video: empty id in response")
	}

	c.logger.Info("video published",
		logger.String("page_id", page.ID),
		logger.String("video_id", resp.ID))
	return resp.ID, nil
}

// PublishPhoto publishes a hosted image to a page and returns the ID of
// the resulting post, falling back to the photo ID when the Graph API
// omits post_id.
func (c *Client) PublishPhoto(ctx context.Context, page domain.Page, imageURL, caption string) (string, error) {
	var resp graphIDResponse
	err := c.postForm(ctx, "publish photo", "/"+page.ID+"/photos", url.Values{
		"url":          {imageURL},
		"caption":      {caption},
		"access_token": {page.AccessToken},
	}, &resp)
	if err != nil {
		return "", err
	}

	if resp.PostID != "" {
		return resp.PostID, nil
	}
	if resp.ID != "" {
		return resp.ID, nil
	}
	return "", fmt.Errorf("publish photo: empty id in response")
}

// PublishFeed publishes a text post to a page and returns the post ID.
func (c *Client) PublishFeed(ctx context.Context, page domain.Page, message string) (string, error) {
	var resp graphIDResponse
	err := c.postForm(ctx, "publish feed", "/"+page.ID+"/feed", url.Values{
		"message":      {message},
		"access_token": {page.AccessToken},
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("publish feed: empty id in response")
	}
	return resp.ID, nil
}

// PublishComment posts a comment under a published object. Object IDs
// that lack the pageID_postID form are normalized first, since the
// comments edge rejects bare post IDs.
func (c *Client) PublishComment(ctx context.Context, page domain.Page, objectID, message string) (string, error) {
	if !strings.Contains(objectID, "_") {
		objectID = page.ID + "_" + objectID
	}

	var resp graphIDResponse
	err := c.postForm(ctx, "publish comment", "/"+objectID+"/comments", url.Values{
		"message":      {message},
		"access_token": {page.AccessToken},
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("publish comment: empty id in response")
	}
	return resp.ID, nil
}

// VerifyToken resolves the pages a user token can publish to. A token
// with no page grants falls back to /me so a page token pasted directly
// still connects its single page.
func (c *Client) VerifyToken(ctx context.Context, token string) ([]domain.Page, error) {
	var pages graphPagesResponse
	err := c.get(ctx, "verify token", "/me/accounts", url.Values{
		"access_token": {token},
	}, &pages)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if len(pages.Data) > 0 {
		out := make([]domain.Page, 0, len(pages.Data))
		for _, p := range pages.Data {
			out = append(out, domain.Page{
				ID:          p.ID,
				Name:        p.Name,
				AccessToken: p.AccessToken,
				Status:      "connected",
				LastChecked: now,
			})
		}
		return out, nil
	}

	var me graphMeResponse
	if err := c.get(ctx, "verify token", "/me", url.Values{
		"access_token": {token},
	}, &me); err != nil {
		return nil, err
	}
	if me.ID == "" {
		return nil, fmt.Errorf("verify token: no pages accessible")
	}

	return []domain.Page{{
		ID:          me.ID,
		Name:        me.Name,
		AccessToken: token,
		Status:      "connected",
		LastChecked: now,
	}}, nil
}
