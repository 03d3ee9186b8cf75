package client

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/atproto/client"
	"github.com/bluesky-social/indigo/lex/util"
	"github.com/rs/zerolog/log"
)

const postCollection = "app.bsky.feed.post"

// PostRef identifies a published post and the root of the thread it belongs to.
type PostRef struct {
	URI     string
	CID     string
	RootURI string
	RootCID string
}

func (r *PostRef) strongRef() *atproto.RepoStrongRef {
	return &atproto.RepoStrongRef{Uri: r.URI, Cid: r.CID}
}

func (r *PostRef) rootRef() *atproto.RepoStrongRef {
	if r.RootURI == "" {
		return r.strongRef()
	}
	return &atproto.RepoStrongRef{Uri: r.RootURI, Cid: r.RootCID}
}

// PostRequest is one post to publish. A nil ReplyTo starts a new thread.
type PostRequest struct {
	Text     string
	ReplyTo  *PostRef
	Image    []byte
	ImageAlt string
}

type BlueskyClient struct {
	client   *client.APIClient
	host     string
	handle   string
	password string
	deviceID string
}

func New(host, handle, password, deviceID string) *BlueskyClient {
	if host == "" {
		host = "https://bsky.social"
	}
	return &BlueskyClient{
		client:   client.NewAPIClient(host),
		host:     host,
		handle:   handle,
		password: password,
		deviceID: deviceID,
	}
}

// NewWithAPIClient wraps an already configured XRPC client.
func NewWithAPIClient(api *client.APIClient, handle string) *BlueskyClient {
	return &BlueskyClient{client: api, host: api.Host, handle: handle}
}

func (c *BlueskyClient) Authenticate(ctx context.Context) error {
	authClient, err := client.LoginWithPasswordHost(ctx, c.host, c.handle, c.password, "", nil)
	if err != nil {
		return fmt.Errorf("failed to authenticate: %w", err)
	}

	if c.deviceID != "" {
		if authClient.Headers == nil {
			authClient.Headers = http.Header{}
		}
		authClient.Headers.Set("User-Agent", "aithreads-bsky/"+c.deviceID)
	}

	c.client = authClient
	return nil
}

// Publish creates one post, uploading and embedding the image when present,
// and returns its reference for use as the next reply target.
func (c *BlueskyClient) Publish(ctx context.Context, req PostRequest) (*PostRef, error) {
	if c.client == nil {
		return nil, fmt.Errorf("client not authenticated")
	}

	var embed *bsky.FeedPost_Embed
	if len(req.Image) > 0 {
		blob, err := c.uploadImage(ctx, req.Image)
		if err != nil {
			return nil, err
		}
		embed = imageEmbed(blob, req.ImageAlt)
	}

	record := BuildRecord(req, embed, time.Now())

	out, err := atproto.RepoCreateRecord(ctx, c.client, &atproto.RepoCreateRecord_Input{
		Repo:       c.handle,
		Collection: postCollection,
		Record:     &util.LexiconTypeDecoder{Val: record},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to post to Bluesky: %w", err)
	}

	ref := &PostRef{URI: out.Uri, CID: out.Cid, RootURI: out.Uri, RootCID: out.Cid}
	if req.ReplyTo != nil {
		root := req.ReplyTo.rootRef()
		ref.RootURI, ref.RootCID = root.Uri, root.Cid
	}

	log.Info().Str("uri", ref.URI).Str("text", truncateText(req.Text, 50)).Msg("Posted to Bluesky")
	return ref, nil
}

func (c *BlueskyClient) uploadImage(ctx context.Context, data []byte) (*util.LexBlob, error) {
	out, err := atproto.RepoUploadBlob(ctx, c.client, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to upload image: %w", err)
	}
	return out.Blob, nil
}

// BuildRecord assembles the post record for req.
func BuildRecord(req PostRequest, embed *bsky.FeedPost_Embed, now time.Time) *bsky.FeedPost {
	record := &bsky.FeedPost{
		Text:      req.Text,
		CreatedAt: now.UTC().Format(time.RFC3339),
		Langs:     []string{"en"},
		Embed:     embed,
	}

	if facets := HashtagFacets(req.Text); len(facets) > 0 {
		record.Facets = facets
	}

	if req.ReplyTo != nil {
		record.Reply = &bsky.FeedPost_ReplyRef{
			Root:   req.ReplyTo.rootRef(),
			Parent: req.ReplyTo.strongRef(),
		}
	}

	return record
}

func imageEmbed(blob *util.LexBlob, alt string) *bsky.FeedPost_Embed {
	return &bsky.FeedPost_Embed{
		EmbedImages: &bsky.EmbedImages{
			Images: []*bsky.EmbedImages_Image{
				{Alt: alt, Image: blob},
			},
		},
	}
}

// WebURL converts an AT Protocol URI to a web-friendly URL
// Example: at://did:plc:abc123/app.bsky.feed.post/xyz789 -> https://bsky.app/profile/did:plc:abc123/post/xyz789
func WebURL(uri string) string {
	if strings.HasPrefix(uri, "at://") {
		parts := strings.Split(strings.TrimPrefix(uri, "at://"), "/")
		if len(parts) >= 3 && parts[1] == postCollection {
			return fmt.Sprintf("https://bsky.app/profile/%s/post/%s", parts[0], parts[2])
		}
	}

	// If it's already a web URL or we can't parse it, return as-is
	return uri
}

func truncateText(text string, maxLength int) string {
	runes := []rune(text)
	if len(runes) <= maxLength {
		return text
	}
	return string(runes[:maxLength-3]) + "..."
}
