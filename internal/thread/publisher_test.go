package thread

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/christophergentle/aithreads-bsky/internal/analyzer"
	"github.com/christophergentle/aithreads-bsky/internal/client"
	"github.com/christophergentle/aithreads-bsky/internal/content"
	"github.com/christophergentle/aithreads-bsky/internal/retry/retrytest"
)

type staticSource struct {
	batch content.Batch
}

func (s staticSource) Generate(context.Context) content.Batch { return s.batch }

type fakePoster struct {
	mu       sync.Mutex
	requests []client.PostRequest
	// failText makes any post with exactly this text fail.
	failText map[string]error
	failImg  error
	n        int
}

func (f *fakePoster) Publish(_ context.Context, req client.PostRequest) (*client.PostRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)

	if len(req.Image) > 0 && f.failImg != nil {
		return nil, f.failImg
	}
	if err, ok := f.failText[req.Text]; ok {
		return nil, err
	}

	f.n++
	return &client.PostRef{
		URI: fmt.Sprintf("at://did:plc:test/app.bsky.feed.post/%d", f.n),
		CID: fmt.Sprintf("cid-%d", f.n),
	}, nil
}

func (f *fakePoster) textPosts() []client.PostRequest {
	var out []client.PostRequest
	for _, r := range f.requests {
		if len(r.Image) == 0 {
			out = append(out, r)
		}
	}
	return out
}

type fakeImages struct {
	url      string
	data     []byte
	fetchErr error
	hints    []string
}

func (f *fakeImages) Resolve(_ context.Context, hint string) string {
	f.hints = append(f.hints, hint)
	return f.url
}

func (f *fakeImages) Fetch(context.Context, string) ([]byte, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.data, nil
}

func threeParts() staticSource {
	return staticSource{batch: content.Batch{Topic: "quantum computing", Segments: []string{"A", "B", "C"}}}
}

func TestPublishThreadChainsReplies(t *testing.T) {
	rec := &retrytest.Recorder{}
	poster := &fakePoster{}

	p := New(threeParts(), nil, poster, WithTimer(rec.NewTimer))
	result, err := p.PublishThread(context.Background())
	require.NoError(t, err)

	require.Len(t, poster.requests, 3)
	assert.Nil(t, poster.requests[0].ReplyTo)
	assert.Equal(t, "at://did:plc:test/app.bsky.feed.post/1", poster.requests[1].ReplyTo.URI)
	assert.Equal(t, "at://did:plc:test/app.bsky.feed.post/2", poster.requests[2].ReplyTo.URI)

	assert.Equal(t, "quantum computing", result.Topic)
	assert.Len(t, result.Published, 3)
	assert.Empty(t, result.Failed)
	assert.Equal(t, 0, result.ImagesAttached)
}

func TestPublishThreadReportsBatchTone(t *testing.T) {
	src := threeParts()
	src.batch.Tone = analyzer.Tone{Label: "positive", Compound: 0.62}
	p := New(src, nil, &fakePoster{}, WithTimer((&retrytest.Recorder{}).NewTimer))

	result, err := p.PublishThread(context.Background())
	require.NoError(t, err)
	assert.Equal(t, analyzer.Tone{Label: "positive", Compound: 0.62}, result.Tone)
}

func TestPublishThreadPacesBetweenSegmentsOnly(t *testing.T) {
	rec := &retrytest.Recorder{}
	p := New(threeParts(), nil, &fakePoster{}, WithTimer(rec.NewTimer))

	_, err := p.PublishThread(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second}, rec.Delays())
}

func TestPublishThreadSingleSegmentNoWait(t *testing.T) {
	rec := &retrytest.Recorder{}
	src := staticSource{batch: content.Batch{Topic: "robotics", Segments: []string{"only"}}}
	p := New(src, nil, &fakePoster{}, WithTimer(rec.NewTimer))

	result, err := p.PublishThread(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.Published, 1)
	assert.Empty(t, rec.Delays())
}

func TestPublishThreadFirstFailureAborts(t *testing.T) {
	rec := &retrytest.Recorder{}
	boom := errors.New("rate limited")
	poster := &fakePoster{failText: map[string]error{"A": boom}}

	p := New(threeParts(), nil, poster, WithTimer(rec.NewTimer))
	result, err := p.PublishThread(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrThreadCreate)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, poster.requests, 1)
	assert.Empty(t, result.Published)
	assert.Empty(t, rec.Delays())
}

func TestPublishThreadMiddleFailureKeepsChain(t *testing.T) {
	rec := &retrytest.Recorder{}
	poster := &fakePoster{failText: map[string]error{"B": errors.New("transient")}}

	p := New(threeParts(), nil, poster, WithTimer(rec.NewTimer))
	result, err := p.PublishThread(context.Background())
	require.NoError(t, err)

	require.Len(t, poster.requests, 3)
	// C replies to A because B never made it.
	assert.Equal(t, "at://did:plc:test/app.bsky.feed.post/1", poster.requests[2].ReplyTo.URI)

	assert.Len(t, result.Published, 2)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, 1, result.Failed[0].Index)
	assert.Len(t, rec.Delays(), 2)
}

func TestPublishThreadAttachesImages(t *testing.T) {
	rec := &retrytest.Recorder{}
	poster := &fakePoster{}
	images := &fakeImages{url: "https://images.example/x.jpg", data: []byte{0xff, 0xd8}}

	p := New(threeParts(), images, poster, WithTimer(rec.NewTimer))
	result, err := p.PublishThread(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.ImagesAttached)
	assert.Equal(t, []string{"A", "B", "C"}, images.hints)
	require.Len(t, poster.requests, 6)

	img := poster.requests[1]
	assert.Equal(t, "🖼️", img.Text)
	assert.Equal(t, []byte{0xff, 0xd8}, img.Image)
	assert.Equal(t, "at://did:plc:test/app.bsky.feed.post/1", img.ReplyTo.URI)

	// The next text segment replies to the text post, not the image reply.
	text := poster.textPosts()
	require.Len(t, text, 3)
	assert.Equal(t, "at://did:plc:test/app.bsky.feed.post/1", text[1].ReplyTo.URI)
}

func TestPublishThreadImageFailureIsTolerated(t *testing.T) {
	rec := &retrytest.Recorder{}
	poster := &fakePoster{failImg: errors.New("blob too large")}
	images := &fakeImages{url: "https://images.example/x.jpg", data: []byte{1}}

	p := New(threeParts(), images, poster, WithTimer(rec.NewTimer))
	result, err := p.PublishThread(context.Background())
	require.NoError(t, err)

	assert.Len(t, result.Published, 3)
	assert.Equal(t, 0, result.ImagesAttached)
	assert.Len(t, result.ImageFailures, 3)
}

func TestPublishThreadImageFetchFailure(t *testing.T) {
	rec := &retrytest.Recorder{}
	poster := &fakePoster{}
	images := &fakeImages{url: "https://images.example/x.jpg", fetchErr: errors.New("403")}

	p := New(threeParts(), images, poster, WithTimer(rec.NewTimer))
	result, err := p.PublishThread(context.Background())
	require.NoError(t, err)

	assert.Len(t, poster.requests, 3)
	assert.Len(t, result.ImageFailures, 3)
}

func TestPublishThreadCancelledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	poster := &fakePoster{}
	p := New(threeParts(), nil, poster, WithInterval(time.Hour))

	cancel()
	result, err := p.PublishThread(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, result.Published, 1)
}

func TestDryRunPosterLinksRoot(t *testing.T) {
	d := &DryRunPoster{}
	first, err := d.Publish(context.Background(), client.PostRequest{Text: "A"})
	require.NoError(t, err)
	second, err := d.Publish(context.Background(), client.PostRequest{Text: "B", ReplyTo: first})
	require.NoError(t, err)

	assert.NotEqual(t, first.URI, second.URI)
	assert.Equal(t, first.URI, second.RootURI)
}
