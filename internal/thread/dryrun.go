package thread

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/christophergentle/aithreads-bsky/internal/client"
)

// DryRunPoster logs posts instead of publishing them and hands out synthetic
// references so the chain can still be followed in the logs.
type DryRunPoster struct {
	mu    sync.Mutex
	count int
}

func (d *DryRunPoster) Publish(_ context.Context, req client.PostRequest) (*client.PostRef, error) {
	d.mu.Lock()
	d.count++
	n := d.count
	d.mu.Unlock()

	ref := &client.PostRef{
		URI: fmt.Sprintf("at://dry-run/app.bsky.feed.post/%d", n),
		CID: fmt.Sprintf("dry-run-%d", n),
	}
	ref.RootURI, ref.RootCID = ref.URI, ref.CID

	replyTo := ""
	if req.ReplyTo != nil {
		replyTo = req.ReplyTo.URI
		if req.ReplyTo.RootURI != "" {
			ref.RootURI, ref.RootCID = req.ReplyTo.RootURI, req.ReplyTo.RootCID
		}
	}

	log.Info().
		Str("uri", ref.URI).
		Str("reply_to", replyTo).
		Int("image_bytes", len(req.Image)).
		Str("text", req.Text).
		Msg("DRY RUN: would post")

	return ref, nil
}
