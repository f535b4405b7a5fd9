package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/dealcore/internal/cache"
	"github.com/ppiankov/dealcore/internal/freshness"
	"github.com/ppiankov/dealcore/internal/llm"
	"github.com/ppiankov/dealcore/internal/model"
	"github.com/ppiankov/dealcore/internal/search"
	"github.com/ppiankov/dealcore/internal/worker"
)

var iphoneRecords = []model.RawRecord{
	{Title: "Apple iPhone 15 128GB Black", URL: "https://www.bestbuy.com/site/iphone-15/1", Price: "$799.99", Rating: "4.7"},
	{Title: "iPhone 15 256GB Blue - Amazon.com", URL: "https://www.amazon.com/dp/B0C", Price: "$899.00", Store: "Amazon"},
	{Title: "iPhone 15 128GB Renewed", URL: "https://www.walmart.com/ip/123", Price: "$649.00", OriginalPrice: "$729.00"},
}

type fakeSearch struct {
	mu      sync.Mutex
	calls   int
	records []model.RawRecord
	err     error
}

func (f *fakeSearch) Search(ctx context.Context, query string, filters model.Filters) ([]model.RawRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.records, f.err
}

func (f *fakeSearch) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// scriptedLLM replies to Complete calls in order and never scores
type scriptedLLM struct {
	mu      sync.Mutex
	replies []string
	calls   int
}

func (s *scriptedLLM) Name() string                         { return "scripted" }
func (s *scriptedLLM) IsAvailable(ctx context.Context) bool { return true }
func (s *scriptedLLM) Score(ctx context.Context, prompt string) (*float64, error) {
	return nil, errors.New("no scoring")
}
func (s *scriptedLLM) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.replies) == 0 {
		return nil, errors.New("no reply")
	}
	text := s.replies[0]
	s.replies = s.replies[1:]
	return &llm.CompletionResponse{Text: text}, nil
}

type harness struct {
	p      *Pipeline
	search *fakeSearch
	clock  *testClock
	redis  *miniredis.Miniredis
}

func newHarness(t *testing.T, lm llm.Provider) *harness {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := cache.NewRedisStoreFromClient(client, "test:")
	t.Cleanup(func() { _ = store.Close() })

	fs := &fakeSearch{records: iphoneRecords}
	clock := &testClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}

	cfg := model.DefaultConfig()
	deps := Deps{Store: store, Search: fs}
	if lm != nil {
		deps.LLM = lm
	}
	p, err := New(cfg, deps, WithClock(clock.Now))
	require.NoError(t, err)

	return &harness{p: p, search: fs, clock: clock, redis: mr}
}

// advance moves both the decision clock and the store's TTL clock
func (h *harness) advance(d time.Duration) {
	h.clock.Advance(d)
	h.redis.FastForward(d)
}

func TestRunSearch_FreshnessLifecycle(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	first, err := h.p.RunSearch(ctx, "iPhone 15", "s1")
	require.NoError(t, err)
	assert.Equal(t, search.StateMiss, first.State)
	assert.Equal(t, freshness.CategoryElectronics, first.ResultSet.Category)
	require.Len(t, first.ResultSet.Offers, 3)
	for i, o := range first.ResultSet.Offers {
		assert.Equal(t, i+1, o.SequenceNumber)
	}
	assert.Contains(t, first.Summary, "Found 3 deals")
	assert.Equal(t, 1, h.search.Calls())

	// within the electronics threshold: served from cache
	h.advance(time.Hour)
	second, err := h.p.RunSearch(ctx, "iPhone 15", "s1")
	require.NoError(t, err)
	assert.Equal(t, search.StateHitFresh, second.State)
	assert.True(t, second.ResultSet.FromCache)
	assert.Equal(t, 1, h.search.Calls())

	// past the 4h TTL the entry is gone and the query is fetched again
	h.advance(4 * time.Hour)
	third, err := h.p.RunSearch(ctx, "iPhone 15", "s1")
	require.NoError(t, err)
	assert.Equal(t, search.StateMiss, third.State)
	assert.False(t, third.ResultSet.FromCache)
	assert.Equal(t, 2, h.search.Calls())
}

func TestRunSearch_ProviderFailureSurfaces(t *testing.T) {
	h := newHarness(t, nil)
	h.search.err = errors.New("connection refused")

	_, err := h.p.RunSearch(context.Background(), "iPhone 15", "s1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrSearchUnavailable))

	_, err = h.p.RunFollowUp(context.Background(), "#1", "s1")
	assert.True(t, errors.Is(err, model.ErrNoResultSet))
}

func TestRunSearch_RejectsEmptyInput(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.p.RunSearch(context.Background(), "   ", "s1")
	assert.Error(t, err)

	_, err = h.p.RunSearch(context.Background(), "iPhone 15", "")
	assert.Error(t, err)
}

func TestRunFollowUp_NumberedReference(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.p.RunSearch(ctx, "iPhone 15", "s1")
	require.NoError(t, err)

	resp, err := h.p.RunFollowUp(ctx, "tell me about #2", "s1")
	require.NoError(t, err)
	require.Len(t, resp.Answers, 1)

	a := resp.Answers[0]
	assert.Equal(t, 2, a.Offer.SequenceNumber)
	assert.Equal(t, model.MatchExactNumber, a.Match.Method)
	require.NotEmpty(t, a.Claims)
	assert.Equal(t, "price", a.Claims[0].Key)
	assert.Equal(t, model.StatusVerified, a.Claims[0].Status)
	assert.Equal(t, a.Offer.URL, a.Claims[0].SourceURL)

	assert.Contains(t, resp.Text, "#2 ")
	assert.Contains(t, resp.Text, "✅ price: $")
	assert.Empty(t, a.Narrative)
}

func TestRunFollowUp_CheapestAndAskedClaim(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.p.RunSearch(ctx, "iPhone 15", "s1")
	require.NoError(t, err)

	resp, err := h.p.RunFollowUp(ctx, "does the cheapest one have good battery life?", "s1")
	require.NoError(t, err)
	require.Len(t, resp.Answers, 1)

	a := resp.Answers[0]
	require.NotNil(t, a.Offer.Price)
	assert.True(t, a.Offer.Price.Equal(decimal.RequireFromString("649")))

	var battery *model.VerifiedClaim
	for i := range a.Claims {
		if a.Claims[i].Key == "battery" {
			battery = &a.Claims[i]
		}
	}
	require.NotNil(t, battery)
	assert.Equal(t, model.StatusUnknown, battery.Status)
	assert.Contains(t, resp.Text, "❌ battery: not specified")
}

func TestRunFollowUp_Errors(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.p.RunSearch(ctx, "iPhone 15", "s1")
	require.NoError(t, err)

	_, err = h.p.RunFollowUp(ctx, "what about #9", "s1")
	assert.True(t, errors.Is(err, model.ErrProductNotFound))

	_, err = h.p.RunFollowUp(ctx, "what's the weather like", "s1")
	assert.True(t, errors.Is(err, model.ErrProductNotFound))

	_, err = h.p.RunFollowUp(ctx, "the 128GB one", "s1")
	var amb *model.AmbiguousReferenceError
	require.True(t, errors.As(err, &amb))
	assert.True(t, errors.Is(err, model.ErrAmbiguousReference))
	assert.Len(t, amb.Alternatives, 2)

	_, err = h.p.RunFollowUp(ctx, "#1", "other-session")
	assert.True(t, errors.Is(err, model.ErrNoResultSet))
}

func TestRunFollowUp_NarrativeRegeneratedOnce(t *testing.T) {
	lm := &scriptedLLM{replies: []string{
		"Only $5 today with a huge battery.",
		"It is listed at the price shown above.",
	}}
	h := newHarness(t, lm)
	ctx := context.Background()

	_, err := h.p.RunSearch(ctx, "iPhone 15", "s1")
	require.NoError(t, err)

	resp, err := h.p.RunFollowUp(ctx, "#1", "s1")
	require.NoError(t, err)
	require.Len(t, resp.Answers, 1)
	assert.Equal(t, "It is listed at the price shown above.", resp.Answers[0].Narrative)
	assert.Contains(t, resp.Text, "\n\n⚠️ summary (not verified): It is listed at the price shown above.")
	assert.Equal(t, 2, lm.calls)
}

func TestRunFollowUp_NarrativeDroppedAfterSecondFailure(t *testing.T) {
	lm := &scriptedLLM{replies: []string{
		"Only $5 today.",
		"Still just $5 and a great camera.",
	}}
	h := newHarness(t, lm)
	ctx := context.Background()

	_, err := h.p.RunSearch(ctx, "iPhone 15", "s1")
	require.NoError(t, err)

	resp, err := h.p.RunFollowUp(ctx, "#1", "s1")
	require.NoError(t, err)
	assert.Empty(t, resp.Answers[0].Narrative)
	assert.NotRegexp(t, `\$5\b`, resp.Text)
	assert.NotContains(t, resp.Text, "great camera")
	assert.NotContains(t, resp.Text, "summary (not verified)")
	assert.Equal(t, 2, lm.calls)
}

func TestRunFollowUp_InventedDetailsNeverReachAnswer(t *testing.T) {
	invented := "It comes with 1TB of space, AppleCare+ and free AirPods included."
	lm := &scriptedLLM{replies: []string{invented, invented}}
	h := newHarness(t, lm)
	ctx := context.Background()

	_, err := h.p.RunSearch(ctx, "iPhone 15", "s1")
	require.NoError(t, err)

	resp, err := h.p.RunFollowUp(ctx, "#1", "s1")
	require.NoError(t, err)
	require.Len(t, resp.Answers, 1)
	assert.Empty(t, resp.Answers[0].Narrative)
	assert.NotContains(t, resp.Text, "1TB")
	assert.NotContains(t, resp.Text, "AirPods")
	assert.Equal(t, 2, lm.calls)
}

func TestSessionsAreIsolated(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.p.RunSearch(ctx, "iPhone 15", "alice")
	require.NoError(t, err)

	h.search.records = iphoneRecords[:1]
	_, err = h.p.RunSearch(ctx, "iPhone 15 black", "bob")
	require.NoError(t, err)

	_, err = h.p.RunFollowUp(ctx, "#3", "alice")
	assert.NoError(t, err)
	_, err = h.p.RunFollowUp(ctx, "#3", "bob")
	assert.True(t, errors.Is(err, model.ErrProductNotFound))
}

func TestWarmAndInvalidate(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	results := worker.NewBatchProcessor(h.p, 2).ProcessQueries(ctx, []string{"iPhone 15", "iPhone 15"})
	require.Len(t, results, 2)
	for _, r := range results {
		require.NoError(t, r.Error)
		assert.Equal(t, 3, r.Report.Offers)
	}

	report, err := h.p.Warm(ctx, "iPhone 15")
	require.NoError(t, err)
	assert.Equal(t, string(search.StateHitFresh), report.State)

	require.NoError(t, h.p.Invalidate(ctx, "iPhone 15"))
	report, err = h.p.Warm(ctx, "iPhone 15")
	require.NoError(t, err)
	assert.Equal(t, string(search.StateMiss), report.State)
}

func TestNew_RequiresDeps(t *testing.T) {
	_, err := New(model.DefaultConfig(), Deps{})
	assert.Error(t, err)

	_, err = New(model.DefaultConfig(), Deps{Store: cache.NewMemoryStore(time.Hour, time.Minute)})
	assert.Error(t, err)
}
