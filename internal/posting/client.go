package posting

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"scenecast/internal/config"
	"scenecast/internal/services"
)

const defaultRequestTimeout = 30 * time.Second

// Client talks to an XRPC posting service with app-password session auth.
// Sessions are created lazily on first use and refreshed after expiry.
type Client struct {
	baseURL     string
	handle      string
	appPassword string
	http        *resty.Client

	mu      sync.Mutex
	session session
}

type session struct {
	AccessJWT string `json:"accessJwt"`
	DID       string `json:"did"`
	Handle    string `json:"handle"`
}

// NewClient builds a posting client from configuration.
func NewClient(cfg config.Posting) (*Client, error) {
	if strings.TrimSpace(cfg.ServiceURL) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "posting", "new_client", "posting service URL not set", nil)
	}
	if strings.TrimSpace(cfg.Handle) == "" || strings.TrimSpace(cfg.AppPassword) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "posting", "new_client", "posting credentials not set", nil)
	}

	timeout := defaultRequestTimeout
	if cfg.RequestTimeout > 0 {
		timeout = time.Duration(cfg.RequestTimeout) * time.Second
	}
	http := resty.New().
		SetBaseURL(strings.TrimRight(cfg.ServiceURL, "/")).
		SetTimeout(timeout)

	return &Client{
		baseURL:     cfg.ServiceURL,
		handle:      cfg.Handle,
		appPassword: cfg.AppPassword,
		http:        http,
	}, nil
}

func (c *Client) authenticate(ctx context.Context) (session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.AccessJWT != "" {
		return c.session, nil
	}

	var out session
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"identifier": c.handle,
			"password":   c.appPassword,
		}).
		SetResult(&out).
		Post("/xrpc/com.atproto.server.createSession")
	if err != nil {
		return session{}, services.Wrap(services.ErrTransient, "posting", "create_session", "session request failed", err)
	}
	if resp.IsError() {
		return session{}, services.Wrap(services.ErrConfiguration, "posting", "create_session",
			fmt.Sprintf("authentication rejected: %s", resp.Status()), nil)
	}
	if out.AccessJWT == "" {
		return session{}, services.Wrap(services.ErrTransient, "posting", "create_session", "session response missing token", nil)
	}
	c.session = out
	return out, nil
}

// dropSession forces re-authentication on the next request.
func (c *Client) dropSession() {
	c.mu.Lock()
	c.session = session{}
	c.mu.Unlock()
}

// UploadBlob stores media bytes and returns their blob reference.
func (c *Client) UploadBlob(ctx context.Context, data []byte, mimeType string) (BlobRef, error) {
	sess, err := c.authenticate(ctx)
	if err != nil {
		return BlobRef{}, err
	}

	var out struct {
		Blob BlobRef `json:"blob"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(sess.AccessJWT).
		SetHeader("Content-Type", mimeType).
		SetBody(data).
		SetResult(&out).
		Post("/xrpc/com.atproto.repo.uploadBlob")
	if err != nil {
		return BlobRef{}, services.Wrap(services.ErrTransient, "posting", "upload_blob", "upload failed", err)
	}
	if resp.StatusCode() == 401 {
		c.dropSession()
		return BlobRef{}, services.Wrap(services.ErrTransient, "posting", "upload_blob", "session expired", nil)
	}
	if resp.IsError() {
		return BlobRef{}, services.Wrap(services.ErrTransient, "posting", "upload_blob",
			fmt.Sprintf("upload rejected: %s: %s", resp.Status(), resp.String()), nil)
	}
	return out.Blob, nil
}

// CreatePost publishes a record in the account's repo.
func (c *Client) CreatePost(ctx context.Context, post Post) (PostRef, error) {
	sess, err := c.authenticate(ctx)
	if err != nil {
		return PostRef{}, err
	}

	if post.Type == "" {
		post.Type = "app.bsky.feed.post"
	}
	body := map[string]any{
		"repo":       sess.DID,
		"collection": "app.bsky.feed.post",
		"record":     post,
	}
	var out PostRef
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(sess.AccessJWT).
		SetBody(body).
		SetResult(&out).
		Post("/xrpc/com.atproto.repo.createRecord")
	if err != nil {
		return PostRef{}, services.Wrap(services.ErrTransient, "posting", "create_post", "post request failed", err)
	}
	if resp.StatusCode() == 401 {
		c.dropSession()
		return PostRef{}, services.Wrap(services.ErrTransient, "posting", "create_post", "session expired", nil)
	}
	if resp.IsError() {
		return PostRef{}, services.Wrap(services.ErrTransient, "posting", "create_post",
			fmt.Sprintf("post rejected: %s: %s", resp.Status(), resp.String()), nil)
	}
	if out.URI == "" {
		return PostRef{}, services.Wrap(services.ErrTransient, "posting", "create_post", "post response missing uri", nil)
	}
	return out, nil
}

// threadNode is the wire shape of one post in a thread tree.
type threadNode struct {
	Post struct {
		URI    string `json:"uri"`
		CID    string `json:"cid"`
		Record struct {
			Text string `json:"text"`
		} `json:"record"`
	} `json:"post"`
	Replies []threadNode `json:"replies"`
}

func (n threadNode) toThread() Thread {
	t := Thread{URI: n.Post.URI, CID: n.Post.CID, Text: n.Post.Record.Text}
	for _, reply := range n.Replies {
		t.Replies = append(t.Replies, reply.toThread())
	}
	return t
}

// GetPostThread fetches a post and its replies down to depth levels.
func (c *Client) GetPostThread(ctx context.Context, uri string, depth int) (Thread, error) {
	sess, err := c.authenticate(ctx)
	if err != nil {
		return Thread{}, err
	}

	var out struct {
		Thread threadNode `json:"thread"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(sess.AccessJWT).
		SetQueryParams(map[string]string{
			"uri":   uri,
			"depth": fmt.Sprint(depth),
		}).
		SetResult(&out).
		Get("/xrpc/app.bsky.feed.getPostThread")
	if err != nil {
		return Thread{}, services.Wrap(services.ErrTransient, "posting", "get_post_thread", "thread request failed", err)
	}
	if resp.StatusCode() == 404 {
		return Thread{}, services.Wrap(services.ErrNotFound, "posting", "get_post_thread", uri, nil)
	}
	if resp.IsError() {
		return Thread{}, services.Wrap(services.ErrTransient, "posting", "get_post_thread",
			fmt.Sprintf("thread rejected: %s", resp.Status()), nil)
	}
	return out.Thread.toThread(), nil
}

// GetProfile resolves the authenticated account.
func (c *Client) GetProfile(ctx context.Context) (Profile, error) {
	sess, err := c.authenticate(ctx)
	if err != nil {
		return Profile{}, err
	}

	var out Profile
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(sess.AccessJWT).
		SetQueryParam("actor", sess.Handle).
		SetResult(&out).
		Get("/xrpc/app.bsky.actor.getProfile")
	if err != nil {
		return Profile{}, services.Wrap(services.ErrTransient, "posting", "get_profile", "profile request failed", err)
	}
	if resp.IsError() {
		return Profile{}, services.Wrap(services.ErrTransient, "posting", "get_profile",
			fmt.Sprintf("profile rejected: %s", resp.Status()), nil)
	}
	return out, nil
}

var _ Service = (*Client)(nil)
