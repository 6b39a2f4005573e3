// Package posting publishes rendered scene videos to an XRPC posting
// service and threads choice replies under the scene post.
package posting

import (
	"context"
	"time"
)

// BlobRef identifies an uploaded media blob.
type BlobRef struct {
	Type     string `json:"$type"`
	Ref      Link   `json:"ref"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

// Link wraps a content-addressed blob link.
type Link struct {
	Link string `json:"$link"`
}

// PostRef identifies a created record.
type PostRef struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

// Post is the record payload for a scene post or a choice reply.
type Post struct {
	Type      string     `json:"$type,omitempty"`
	Text      string     `json:"text"`
	CreatedAt time.Time  `json:"createdAt"`
	Embed     *Embed     `json:"embed,omitempty"`
	Reply     *ReplyRefs `json:"reply,omitempty"`
}

// Embed attaches an uploaded video blob to a post.
type Embed struct {
	Type  string  `json:"$type"`
	Video BlobRef `json:"video"`
}

// ReplyRefs threads a reply under its root and parent posts.
type ReplyRefs struct {
	Root   PostRef `json:"root"`
	Parent PostRef `json:"parent"`
}

// Profile describes the authenticated account.
type Profile struct {
	DID    string `json:"did"`
	Handle string `json:"handle"`
}

// Thread is a post with its reply subtree, as returned by getPostThread.
type Thread struct {
	URI     string
	CID     string
	Text    string
	Replies []Thread
}

// Service is the surface the pipeline needs from a posting backend.
type Service interface {
	// UploadBlob stores media bytes and returns a reference usable in an
	// embed.
	UploadBlob(ctx context.Context, data []byte, mimeType string) (BlobRef, error)
	// CreatePost publishes a record and returns its reference.
	CreatePost(ctx context.Context, post Post) (PostRef, error)
	// GetPostThread fetches a post and its replies down to depth levels.
	GetPostThread(ctx context.Context, uri string, depth int) (Thread, error)
	// GetProfile resolves the authenticated account, verifying credentials.
	GetProfile(ctx context.Context) (Profile, error)
}
