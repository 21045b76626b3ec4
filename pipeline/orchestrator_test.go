package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/newswire/ai/mock"
	"github.com/poiesic/newswire/core"
	"github.com/poiesic/newswire/media"
	"github.com/poiesic/newswire/publish"
	"github.com/poiesic/newswire/retrying"
	"github.com/poiesic/newswire/similarity"
	"github.com/poiesic/newswire/source"
	"github.com/poiesic/newswire/storage"
	badgerstore "github.com/poiesic/newswire/storage/badger"
)

type fixture struct {
	orchestrator *Orchestrator
	state        *badgerstore.StateRepository
	retries      *retrying.Queue
	embedder     *mock.MockEmbedder
	classifier   *mock.MockClassifier
	sink         *publish.Mock
	vectors      map[string][]float32
}

// newFixture wires an orchestrator over in-memory storage with mock
// AI services and sink. Vectors for known content come from f.vectors;
// unknown content falls back to the deterministic mock default.
func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()

	state, retryRepo, _, _, backend, err := badgerstore.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		state.Close()
		backend.Close()
	})

	retries, err := retrying.NewQueue(ctx, retryRepo, retrying.WithRetryDelay(0))
	require.NoError(t, err)

	f := &fixture{
		state:      state,
		retries:    retries,
		embedder:   mock.NewMockEmbedder(),
		classifier: mock.NewMockClassifier(),
		sink:       &publish.Mock{},
		vectors:    make(map[string][]float32),
	}
	f.embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		if v, ok := f.vectors[text]; ok {
			return v, nil
		}
		fallback := mock.NewMockEmbedder()
		fallback.EmbedTextFunc = nil
		return fallback.EmbedText(ctx, text)
	}

	provider := mock.NewMockProviderWithServices(f.embedder, f.classifier)
	index := similarity.NewIndex(state)

	orchestrator, err := NewOrchestrator(state, index, retries, provider, f.sink, opts...)
	require.NoError(t, err)
	t.Cleanup(orchestrator.Release)
	f.orchestrator = orchestrator
	return f
}

func feedItem(id, content string, ts int64) *core.ContentItem {
	return &core.ContentItem{
		Id:         id,
		Source:     "feed",
		SourceType: core.SourceTwitter,
		Content:    content,
		Timestamp:  ts,
		Link:       "https://example.com/" + id,
	}
}

func TestProcessItemPublishesNovelContent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.vectors["btc breaks 100k"] = []float32{1, 0, 0}

	require.NoError(t, f.orchestrator.ProcessItem(ctx, feedItem("twitter_feed_1", "btc breaks 100k", 100)))

	published := f.sink.Published()
	require.Len(t, published, 1)
	assert.Equal(t, mock.DefaultMockCategory, published[0].Category)

	processed, err := f.state.IsProcessed(ctx, "twitter_feed_1")
	require.NoError(t, err)
	assert.True(t, processed)

	mapping, err := f.state.GetMapping(ctx, "twitter_feed_1")
	require.NoError(t, err)
	assert.Equal(t, published[0].MessageId, mapping.MessageId)
	assert.Equal(t, "https://example.com/twitter_feed_1", mapping.SourceUrl)

	match, err := f.state.FindSimilar(ctx, []float32{1, 0, 0}, 0.99)
	require.NoError(t, err)
	require.NotNil(t, match)

	stats := f.orchestrator.Stats()
	assert.Equal(t, 1, stats.Published)
	assert.Equal(t, 1, stats.ByCategory[mock.DefaultMockCategory])
}

func TestProcessItemIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	item := feedItem("twitter_feed_1", "btc breaks 100k", 100)
	require.NoError(t, f.orchestrator.ProcessItem(ctx, item))
	require.NoError(t, f.orchestrator.ProcessItem(ctx, feedItem("twitter_feed_1", "btc breaks 100k", 100)))

	assert.Len(t, f.sink.Published(), 1)
	assert.Equal(t, 1, f.orchestrator.Stats().Skipped)
}

func TestProcessItemDropsDuplicate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.vectors["btc breaks 100k"] = []float32{1, 0, 0}
	f.vectors["bitcoin crosses $100,000"] = []float32{1, 0.01, 0}

	require.NoError(t, f.orchestrator.ProcessItem(ctx, feedItem("twitter_feed_1", "btc breaks 100k", 100)))
	require.NoError(t, f.orchestrator.ProcessItem(ctx, feedItem("twitter_feed_2", "bitcoin crosses $100,000", 101)))

	// the duplicate never reaches the sink but is settled in the ledger
	assert.Len(t, f.sink.Published(), 1)
	processed, err := f.state.IsProcessed(ctx, "twitter_feed_2")
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, 1, f.orchestrator.Stats().Duplicates)

	// and no mapping exists for it
	_, err = f.state.GetMapping(ctx, "twitter_feed_2")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestProcessItemRoutesSimilarToLowSignal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithLowSignalCategory("ignore"))
	f.vectors["fed raises rates"] = []float32{1, 0, 0}
	f.vectors["fed hikes interest rates again"] = []float32{0.8, 0.6, 0}

	require.NoError(t, f.orchestrator.ProcessItem(ctx, feedItem("twitter_feed_1", "fed raises rates", 100)))
	require.NoError(t, f.orchestrator.ProcessItem(ctx, feedItem("twitter_feed_2", "fed hikes interest rates again", 101)))

	published := f.sink.Published()
	require.Len(t, published, 2)
	assert.Equal(t, "ignore", published[1].Category)
	assert.Equal(t, 1, f.orchestrator.Stats().Similar)

	// the classifier only saw the novel item
	assert.Equal(t, 1, f.classifier.CallCount())
}

func TestProcessItemEmptyContentCountsError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.orchestrator.ProcessItem(ctx, feedItem("twitter_feed_1", "", 100)))

	// dropped with an error count, never marked processed
	assert.Empty(t, f.sink.Published())
	processed, err := f.state.IsProcessed(ctx, "twitter_feed_1")
	require.NoError(t, err)
	assert.False(t, processed)
	assert.Equal(t, 1, f.orchestrator.Stats().Errors)
	assert.Zero(t, f.orchestrator.Stats().Skipped)
}

func TestProcessItemImageOnlyPlaceholder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	item := feedItem("telegram_chan_1", "", 100)
	item.HasMedia = true
	item.MediaType = "photo"
	require.NoError(t, f.orchestrator.ProcessItem(ctx, item))

	published := f.sink.Published()
	require.Len(t, published, 1)
	assert.Equal(t, media.ImagePlaceholder, published[0].Content)
}

func TestProcessItemMergesExtractedText(t *testing.T) {
	ctx := context.Background()
	extractor := &media.MockExtractor{
		ExtractTextFunc: func(ctx context.Context, item *core.ContentItem) (string, error) {
			return "ETH ETF APPROVED", nil
		},
	}
	f := newFixture(t, WithExtractor(extractor))

	f.vectors["big news"] = []float32{1, 0, 0}
	f.vectors["big news\n\n[text from images]:\nETH ETF APPROVED"] = []float32{0, 1, 0}

	item := feedItem("telegram_chan_1", "big news", 100)
	item.HasMedia = true
	mediaFile := filepath.Join(t.TempDir(), "chart.png")
	require.NoError(t, os.WriteFile(mediaFile, []byte("png"), 0o600))
	item.MediaFiles = []string{mediaFile}
	require.NoError(t, f.orchestrator.ProcessItem(ctx, item))

	// the sink gets the original text, untouched by extraction
	published := f.sink.Published()
	require.Len(t, published, 1)
	assert.Equal(t, "big news", published[0].Content)

	mapping, err := f.state.GetMapping(ctx, "telegram_chan_1")
	require.NoError(t, err)
	assert.Equal(t, "big news", mapping.Content)

	// the stored embedding covers the merged text, not the raw text
	match, err := f.state.FindSimilar(ctx, []float32{0, 1, 0}, 0.99)
	require.NoError(t, err)
	require.NotNil(t, match)
	match, err = f.state.FindSimilar(ctx, []float32{1, 0, 0}, 0.99)
	require.NoError(t, err)
	assert.Nil(t, match)

	// temp media is gone once its text was extracted
	assert.NoFileExists(t, mediaFile)
	assert.Empty(t, item.MediaFiles)
}

func TestProcessItemPublishFailureIsTerminal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.sink.PublishFunc = func(ctx context.Context, item *core.ContentItem, category string) (*publish.Result, error) {
		return nil, publish.ErrPublishFailed
	}

	item := feedItem("twitter_feed_1", "btc breaks 100k", 100)
	require.NoError(t, f.orchestrator.ProcessItem(ctx, item))

	// counted as error, not queued, not marked processed
	assert.Equal(t, 1, f.orchestrator.Stats().Errors)
	assert.False(t, f.retries.Contains("twitter_feed_1"))
	assert.Zero(t, f.orchestrator.Stats().Queued)
	processed, err := f.state.IsProcessed(ctx, "twitter_feed_1")
	require.NoError(t, err)
	assert.False(t, processed)

	// the item lands again on the next poll; a recovered sink takes it
	f.sink.PublishFunc = nil
	require.NoError(t, f.orchestrator.ProcessItem(ctx, item))
	assert.Len(t, f.sink.Published(), 1)
}

func TestProcessItemEmbeddingFailureIsTerminal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("model not loaded")
	}

	require.NoError(t, f.orchestrator.ProcessItem(ctx, feedItem("twitter_feed_1", "btc breaks 100k", 100)))
	assert.Equal(t, 1, f.orchestrator.Stats().Errors)
	assert.False(t, f.retries.Contains("twitter_feed_1"))
	assert.Empty(t, f.sink.Published())
}

func TestProcessItemClassifyFailureIsTerminal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.classifier.CategorizeFunc = func(ctx context.Context, content string) (string, error) {
		return "", errors.New("model not loaded")
	}

	require.NoError(t, f.orchestrator.ProcessItem(ctx, feedItem("twitter_feed_1", "btc breaks 100k", 100)))
	assert.Equal(t, 1, f.orchestrator.Stats().Errors)
	assert.False(t, f.retries.Contains("twitter_feed_1"))
	assert.Empty(t, f.sink.Published())
	processed, err := f.state.IsProcessed(ctx, "twitter_feed_1")
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestProcessItemQueuesRetryOnExtractionFailure(t *testing.T) {
	ctx := context.Background()
	extractor := &media.MockExtractor{
		ExtractTextFunc: func(ctx context.Context, item *core.ContentItem) (string, error) {
			return "", media.ErrExtractionFailed
		},
	}
	f := newFixture(t, WithExtractor(extractor))

	item := feedItem("telegram_chan_1", "", 100)
	item.HasMedia = true
	require.NoError(t, f.orchestrator.ProcessItem(ctx, item))

	// queued, not settled
	assert.True(t, f.retries.Contains("telegram_chan_1"))
	assert.Equal(t, 1, f.orchestrator.Stats().Queued)
	processed, err := f.state.IsProcessed(ctx, "telegram_chan_1")
	require.NoError(t, err)
	assert.False(t, processed)

	// extraction recovers; the retry publishes and clears the queue
	extractor.ExtractTextFunc = func(ctx context.Context, item *core.ContentItem) (string, error) {
		return "chart says up", nil
	}
	require.NoError(t, f.orchestrator.ProcessItem(ctx, item))
	published := f.sink.Published()
	require.Len(t, published, 1)
	assert.Equal(t, "chart says up", published[0].Content)
	assert.False(t, f.retries.Contains("telegram_chan_1"))
}

func TestProcessItemEvictsAfterRetryBudget(t *testing.T) {
	ctx := context.Background()
	extractor := &media.MockExtractor{
		ExtractTextFunc: func(ctx context.Context, item *core.ContentItem) (string, error) {
			return "", media.ErrExtractionFailed
		},
	}
	f := newFixture(t, WithExtractor(extractor))

	item := feedItem("telegram_chan_1", "", 100)
	item.HasMedia = true
	for i := 0; i <= retrying.DefaultMaxRetries; i++ {
		require.NoError(t, f.orchestrator.ProcessItem(ctx, item))
	}
	assert.False(t, f.retries.Contains("telegram_chan_1"))
	assert.Empty(t, f.sink.Published())
}

func TestRunCycleProcessesOldestFirst(t *testing.T) {
	ctx := context.Background()
	poller := &source.MockPoller{
		FeedName: "feed",
		Items: []*core.ContentItem{
			feedItem("twitter_feed_c", "story c", 30),
			feedItem("twitter_feed_a", "story a", 10),
			feedItem("twitter_feed_b", "story b", 20),
		},
	}
	f := newFixture(t, WithPollers(poller))

	require.NoError(t, f.orchestrator.RunCycle(ctx))

	published := f.sink.Published()
	require.Len(t, published, 3)
	assert.Equal(t, "twitter_feed_a", published[0].ItemId)
	assert.Equal(t, "twitter_feed_b", published[1].ItemId)
	assert.Equal(t, "twitter_feed_c", published[2].ItemId)
}

func TestRunCycleMissingTimestampSortsEarliest(t *testing.T) {
	ctx := context.Background()
	poller := &source.MockPoller{
		FeedName: "feed",
		Items: []*core.ContentItem{
			feedItem("twitter_feed_dated", "dated story", 50),
			feedItem("twitter_feed_undated", "undated story", 0),
		},
	}
	f := newFixture(t, WithPollers(poller))

	require.NoError(t, f.orchestrator.RunCycle(ctx))
	published := f.sink.Published()
	require.Len(t, published, 2)
	assert.Equal(t, "twitter_feed_undated", published[0].ItemId)
}

func TestRunCycleIsolatesPollerFailure(t *testing.T) {
	ctx := context.Background()
	broken := &source.MockPoller{
		FeedName: "broken",
		PollFunc: func(ctx context.Context, since int64) ([]*core.ContentItem, error) {
			return nil, errors.New("bridge down")
		},
	}
	healthy := &source.MockPoller{
		FeedName: "healthy",
		Items:    []*core.ContentItem{feedItem("twitter_healthy_1", "still flowing", 10)},
	}
	f := newFixture(t, WithPollers(broken, healthy))

	require.NoError(t, f.orchestrator.RunCycle(ctx))
	assert.Len(t, f.sink.Published(), 1)
}

func TestRunCycleAdvancesCursor(t *testing.T) {
	ctx := context.Background()
	item := &core.ContentItem{
		Id:              "telegram_chan_41",
		Source:          "chan",
		SourceType:      core.SourceTelegram,
		Content:         "numbered message",
		Timestamp:       100,
		SourceMessageId: 41,
	}
	poller := &source.MockPoller{FeedName: "chan", Items: []*core.ContentItem{item}}
	f := newFixture(t, WithPollers(poller))

	require.NoError(t, f.orchestrator.RunCycle(ctx))

	pos, err := f.state.Cursor(ctx, "chan")
	require.NoError(t, err)
	assert.Equal(t, int64(41), pos)

	// the next cycle polls from the committed cursor
	poller.Items = nil
	require.NoError(t, f.orchestrator.RunCycle(ctx))
	calls := poller.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, int64(0), calls[0])
	assert.Equal(t, int64(41), calls[1])
}

func TestRunCycleRetriesQueuedItems(t *testing.T) {
	ctx := context.Background()
	extractor := &media.MockExtractor{
		ExtractTextFunc: func(ctx context.Context, item *core.ContentItem) (string, error) {
			return "", media.ErrExtractionFailed
		},
	}
	f := newFixture(t, WithExtractor(extractor))

	item := feedItem("telegram_chan_1", "", 100)
	item.HasMedia = true
	require.NoError(t, f.orchestrator.ProcessItem(ctx, item))
	require.True(t, f.retries.Contains("telegram_chan_1"))

	extractor.ExtractTextFunc = func(ctx context.Context, item *core.ContentItem) (string, error) {
		return "chart says up", nil
	}
	require.NoError(t, f.orchestrator.RunCycle(ctx))

	assert.Len(t, f.sink.Published(), 1)
	assert.False(t, f.retries.Contains("telegram_chan_1"))
}

func TestRunCycleRunsMaintenanceFirst(t *testing.T) {
	ctx := context.Background()
	poller := &source.MockPoller{
		FeedName: "feed",
		Items:    []*core.ContentItem{feedItem("twitter_feed_1", "story", 10)},
	}
	var calls int
	var publishedAtHook int
	var f *fixture
	f = newFixture(t, WithPollers(poller), WithMaintenance(func(ctx context.Context) error {
		calls++
		publishedAtHook = len(f.sink.Published())
		return nil
	}))

	require.NoError(t, f.orchestrator.RunCycle(ctx))
	require.NoError(t, f.orchestrator.RunCycle(ctx))

	// maintenance runs every cycle, before any item is processed
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, publishedAtHook)
	assert.Len(t, f.sink.Published(), 1)
}

func TestProcessEditReembedsAndEditsSink(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.vectors["original take"] = []float32{1, 0, 0}
	f.vectors["corrected take"] = []float32{0, 1, 0}

	item := feedItem("telegram_chan_1", "original take", 100)
	require.NoError(t, f.orchestrator.ProcessItem(ctx, item))

	edited := feedItem("telegram_chan_1", "corrected take", 100)
	require.NoError(t, f.orchestrator.ProcessEdit(ctx, edited))

	// sink message edited in place
	edits := f.sink.Edited()
	require.Len(t, edits, 1)
	assert.Equal(t, "corrected take", edits[0].Content)

	// embedding swapped: old vector gone, new one present
	match, err := f.state.FindSimilar(ctx, []float32{1, 0, 0}, 0.99)
	require.NoError(t, err)
	assert.Nil(t, match)
	match, err = f.state.FindSimilar(ctx, []float32{0, 1, 0}, 0.99)
	require.NoError(t, err)
	require.NotNil(t, match)

	mapping, err := f.state.GetMapping(ctx, "telegram_chan_1")
	require.NoError(t, err)
	assert.Equal(t, "corrected take", mapping.Content)
	assert.Equal(t, 1, f.orchestrator.Stats().Edited)
}

func TestProcessEditIgnoresUnpublishedAndUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// never published
	require.NoError(t, f.orchestrator.ProcessEdit(ctx, feedItem("telegram_chan_9", "whatever", 100)))
	assert.Empty(t, f.sink.Edited())

	// published, but content unchanged
	item := feedItem("telegram_chan_1", "original take", 100)
	require.NoError(t, f.orchestrator.ProcessItem(ctx, item))
	require.NoError(t, f.orchestrator.ProcessEdit(ctx, feedItem("telegram_chan_1", "original take", 100)))
	assert.Empty(t, f.sink.Edited())
}

func TestNewOrchestratorValidation(t *testing.T) {
	f := newFixture(t)
	index := similarity.NewIndex(f.state)
	provider := mock.NewMockProvider()

	_, err := NewOrchestrator(nil, index, f.retries, provider, f.sink)
	assert.ErrorIs(t, err, ErrStateRequired)
	_, err = NewOrchestrator(f.state, nil, f.retries, provider, f.sink)
	assert.ErrorIs(t, err, ErrIndexRequired)
	_, err = NewOrchestrator(f.state, index, nil, provider, f.sink)
	assert.ErrorIs(t, err, ErrQueueRequired)
	_, err = NewOrchestrator(f.state, index, f.retries, nil, f.sink)
	assert.ErrorIs(t, err, ErrProviderRequired)
	_, err = NewOrchestrator(f.state, index, f.retries, provider, nil)
	assert.ErrorIs(t, err, ErrPublisherRequired)
}
