package workflow

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/homebox-bot/internal/domain"
	apperrors "github.com/Proton-105/homebox-bot/internal/errors"
	"github.com/Proton-105/homebox-bot/internal/staging"
	"github.com/Proton-105/homebox-bot/internal/state"
	"github.com/Proton-105/homebox-bot/internal/vision"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pngBytes(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{G: 200, A: 255})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fakeStore struct {
	mu       sync.Mutex
	settings domain.UserSettings
	markers  map[string]bool
	created  int
	errors   []string
	flushed  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		settings: domain.UserSettings{Language: "en", GenLanguage: "en", Model: "gpt-4o", FilterMode: domain.FilterUnrestricted},
		markers:  map[string]bool{},
	}
}

func (s *fakeStore) GetSettings(_ context.Context, userID int64) domain.UserSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.settings
	out.UserID = userID
	return out
}

func (s *fakeStore) GetMarkerSet(context.Context) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.markers))
	for k, v := range s.markers {
		out[k] = v
	}
	return out, nil
}

func (s *fakeStore) ToggleMarker(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markers[id] = !s.markers[id]
	return s.markers[id], nil
}

func (s *fakeStore) SetMarkers(_ context.Context, ids []string, marked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.markers[id] = marked
	}
	return nil
}

func (s *fakeStore) RecordItemCreated(context.Context) {
	s.mu.Lock()
	s.created++
	s.mu.Unlock()
}

func (s *fakeStore) RecordError(_ context.Context, errContext string) {
	s.mu.Lock()
	s.errors = append(s.errors, errContext)
	s.mu.Unlock()
}

func (s *fakeStore) Flush(context.Context) error {
	s.mu.Lock()
	s.flushed = true
	s.mu.Unlock()
	return nil
}

type fakeInventory struct {
	mu        sync.Mutex
	locations []domain.Location
	items     []domain.ItemSummary
	created   []domain.NewItem
	attached  []string
	updated   []domain.Location
	moved     map[string]string
	attachErr error
	createErr error
	list      func(ctx context.Context) ([]domain.Location, error)
}

func (f *fakeInventory) ListLocations(ctx context.Context) ([]domain.Location, error) {
	if f.list != nil {
		return f.list(ctx)
	}
	return f.locations, nil
}

func (f *fakeInventory) GetLocation(_ context.Context, id string) (domain.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.locations {
		if l.ID == id {
			return l, nil
		}
	}
	return domain.Location{}, apperrors.NewGatewayError("homebox", false, errors.New("404"))
}

func (f *fakeInventory) UpdateLocation(_ context.Context, loc domain.Location) error {
	f.mu.Lock()
	f.updated = append(f.updated, loc)
	f.mu.Unlock()
	return nil
}

func (f *fakeInventory) CreateItem(_ context.Context, item domain.NewItem) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = append(f.created, item)
	return "item-1", nil
}

func (f *fakeInventory) AttachPhoto(_ context.Context, itemID, filename, _ string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attachErr != nil {
		return f.attachErr
	}
	if len(data) == 0 {
		return errors.New("empty upload")
	}
	f.attached = append(f.attached, itemID+"/"+filename)
	return nil
}

func (f *fakeInventory) MoveItem(_ context.Context, itemID, locationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.moved == nil {
		f.moved = map[string]string{}
	}
	f.moved[itemID] = locationID
	return nil
}

func (f *fakeInventory) SearchItems(context.Context, string, int, int) ([]domain.ItemSummary, error) {
	return f.items, nil
}

func (f *fakeInventory) ListRecentItems(context.Context, int) ([]domain.ItemSummary, error) {
	return f.items, nil
}

func (f *fakeInventory) ItemsByLocation(context.Context, string) ([]domain.ItemSummary, error) {
	return f.items, nil
}

type fakeVision struct {
	analyze   func(ctx context.Context, req vision.AnalyzeRequest) (domain.Suggestion, error)
	summarize func(ctx context.Context, name string, items []domain.ItemSummary) (string, error)
}

func (f *fakeVision) Analyze(ctx context.Context, req vision.AnalyzeRequest) (domain.Suggestion, error) {
	return f.analyze(ctx, req)
}

func (f *fakeVision) Summarize(ctx context.Context, name string, items []domain.ItemSummary, _, _ string) (string, error) {
	return f.summarize(ctx, name, items)
}

type harness struct {
	engine    *Engine
	store     *fakeStore
	inventory *fakeInventory
	vision    *fakeVision
	dir       string

	mu       sync.Mutex
	notified []Render
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dir := t.TempDir()
	stager, err := staging.New(dir, 1<<20, testLogger())
	require.NoError(t, err)

	h := &harness{
		store:     newFakeStore(),
		inventory: &fakeInventory{locations: append([]domain.Location(nil), testLocations...)},
		vision: &fakeVision{
			analyze: func(context.Context, vision.AnalyzeRequest) (domain.Suggestion, error) {
				return domain.Suggestion{Name: "Winter Boots", Description: "Pair of insulated boots", Location: "Garage Shelf 2"}, nil
			},
			summarize: func(context.Context, string, []domain.ItemSummary) (string, error) {
				return "Pots and pans", nil
			},
		},
		dir: dir,
	}

	h.engine = New(Deps{
		Store:          h.store,
		Inventory:      h.inventory,
		Vision:         h.vision,
		Stager:         stager,
		Logger:         testLogger(),
		GatewayTimeout: 5 * time.Second,
		Notify: func(_ context.Context, _ int64, r Render) {
			h.mu.Lock()
			h.notified = append(h.notified, r)
			h.mu.Unlock()
		},
	})

	return h
}

func (h *harness) staged(t *testing.T) []string {
	t.Helper()
	paths, err := filepath.Glob(filepath.Join(h.dir, "photo_*"))
	require.NoError(t, err)
	return paths
}

func TestEngine_AnalysisKeepsSuggestionIntact(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.engine.HandleEvent(ctx, 1, Start{})
	r := h.engine.HandleEvent(ctx, 1, Photo{Data: pngBytes(t), Caption: "boots"})

	assert.Equal(t, state.StateConfirmingSuggestion, r.State)
	assert.Equal(t, NoticeSuggestion, r.Notice)
	assert.Equal(t, domain.Suggestion{Name: "Winter Boots", Description: "Pair of insulated boots", Location: "Garage Shelf 2"},
		r.Payload.(SuggestionPayload).Suggestion)
	assert.Len(t, h.staged(t), 1)

	require.NotEmpty(t, h.notified)
	assert.Equal(t, NoticeAnalyzing, h.notified[0].Notice)
}

func TestEngine_FallbackLocationForUnknownAnswer(t *testing.T) {
	h := newHarness(t)
	h.vision.analyze = func(context.Context, vision.AnalyzeRequest) (domain.Suggestion, error) {
		return domain.Suggestion{Name: "Lamp", Description: "Desk lamp", Location: "Moon Base"}, nil
	}
	ctx := context.Background()

	r := h.engine.HandleEvent(ctx, 1, Photo{Data: pngBytes(t)})
	assert.Equal(t, "Garage Shelf 1", r.Payload.(SuggestionPayload).Suggestion.Location)

	r = h.engine.HandleEvent(ctx, 1, Confirm{})
	assert.Equal(t, NoticeItemCreated, r.Notice)
	require.Len(t, h.inventory.created, 1)
	assert.Equal(t, "loc-1", h.inventory.created[0].LocationID)
}

func TestEngine_EmptyDescriptionIsRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.engine.HandleEvent(ctx, 1, Photo{Data: pngBytes(t)})
	h.engine.HandleEvent(ctx, 1, EditDescription{})
	r := h.engine.HandleEvent(ctx, 1, Text{Text: ""})

	assert.True(t, apperrors.IsValidation(r.Err))
	sess := h.engine.Session(1)
	assert.Equal(t, state.StateEditingDescription, sess.State)
	assert.Equal(t, "Pair of insulated boots", sess.Suggestion.Description)
}

func TestEngine_AttachTimeoutIsPartialSubmission(t *testing.T) {
	h := newHarness(t)
	h.inventory.attachErr = apperrors.NewGatewayError("homebox", true, context.DeadlineExceeded)
	ctx := context.Background()

	h.engine.HandleEvent(ctx, 1, Photo{Data: pngBytes(t)})
	r := h.engine.HandleEvent(ctx, 1, Confirm{})

	assert.Equal(t, state.StateIdle, r.State)
	assert.Equal(t, NoticePartialSubmission, r.Notice)
	assert.True(t, apperrors.IsPartialSubmission(r.Err))
	assert.Equal(t, 1, h.store.created)
	assert.Empty(t, h.staged(t))
}

func TestEngine_CancelDuringAnalysisDropsResult(t *testing.T) {
	h := newHarness(t)
	started := make(chan struct{})
	release := make(chan struct{})
	h.vision.analyze = func(context.Context, vision.AnalyzeRequest) (domain.Suggestion, error) {
		close(started)
		<-release
		return domain.Suggestion{Name: "Late", Description: "Too late", Location: "Kitchen"}, nil
	}
	ctx := context.Background()

	data := pngBytes(t)
	done := make(chan Render, 1)
	go func() {
		done <- h.engine.HandleEvent(ctx, 1, Photo{Data: data})
	}()

	<-started
	r := h.engine.HandleEvent(ctx, 1, Cancel{})
	assert.Equal(t, state.StateIdle, r.State)
	assert.Empty(t, h.staged(t))

	close(release)
	late := <-done
	assert.True(t, late.Stale)

	sess := h.engine.Session(1)
	assert.Equal(t, state.StateIdle, sess.State)
	assert.Equal(t, domain.Suggestion{}, sess.Suggestion)
}

func TestEngine_AnalysisTimeoutKeepsPhoto(t *testing.T) {
	h := newHarness(t)
	h.engine.deps.GatewayTimeout = 50 * time.Millisecond
	h.vision.analyze = func(ctx context.Context, _ vision.AnalyzeRequest) (domain.Suggestion, error) {
		<-ctx.Done()
		return domain.Suggestion{}, ctx.Err()
	}

	r := h.engine.HandleEvent(context.Background(), 1, Photo{Data: pngBytes(t)})

	assert.Equal(t, state.StateAwaitingPhoto, r.State)
	assert.Equal(t, NoticeAnalysisFailed, r.Notice)
	assert.ErrorIs(t, r.Err, context.DeadlineExceeded)
	assert.Len(t, h.staged(t), 1)
	assert.NotNil(t, h.engine.Session(1).Photo)
	assert.Contains(t, h.store.errors, "analyze")
}

func TestEngine_CancelDoesNotFailSharedLocationFetch(t *testing.T) {
	h := newHarness(t)
	listing := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	h.inventory.list = func(ctx context.Context) ([]domain.Location, error) {
		once.Do(func() { close(listing) })
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return testLocations, nil
	}
	ctx := context.Background()
	data := pngBytes(t)

	first := make(chan Render, 1)
	go func() { first <- h.engine.HandleEvent(ctx, 1, Photo{Data: data}) }()
	<-listing

	second := make(chan Render, 1)
	go func() { second <- h.engine.HandleEvent(ctx, 2, Photo{Data: data}) }()
	require.Eventually(t, func() bool {
		return h.engine.Session(2).State == state.StateAnalyzing
	}, time.Second, 5*time.Millisecond)
	// let user 2 reach the shared call
	time.Sleep(20 * time.Millisecond)

	r := h.engine.HandleEvent(ctx, 1, Cancel{})
	assert.Equal(t, state.StateIdle, r.State)
	assert.True(t, (<-first).Stale)

	close(release)
	r = <-second
	assert.Equal(t, state.StateConfirmingSuggestion, r.State)
	assert.NoError(t, r.Err)
	assert.Equal(t, "Winter Boots", r.Payload.(SuggestionPayload).Suggestion.Name)
	assert.Equal(t, state.StateIdle, h.engine.Session(1).State)
}

func TestEngine_ConcurrentTogglesLoseNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, uid := range []int64{1, 2} {
		h.engine.HandleEvent(ctx, uid, OpenLocations{})
		h.engine.HandleEvent(ctx, uid, MarkMode{})
	}

	var wg sync.WaitGroup
	for _, uid := range []int64{1, 2} {
		wg.Add(1)
		go func(uid int64) {
			defer wg.Done()
			h.engine.HandleEvent(ctx, uid, ToggleMarker{LocationID: "loc-1"})
		}(uid)
	}
	wg.Wait()

	markers, err := h.store.GetMarkerSet(ctx)
	require.NoError(t, err)
	assert.False(t, markers["loc-1"])
}

func TestEngine_NewPhotoLeavesOneStagedFile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.engine.HandleEvent(ctx, 1, Photo{Data: pngBytes(t)})
	first := h.staged(t)
	require.Len(t, first, 1)

	h.engine.HandleEvent(ctx, 1, Photo{Data: pngBytes(t)})
	second := h.staged(t)
	require.Len(t, second, 1)
	assert.NotEqual(t, first[0], second[0])
}

func TestEngine_InvalidPhotoIsRejected(t *testing.T) {
	h := newHarness(t)

	r := h.engine.HandleEvent(context.Background(), 1, Photo{Data: []byte("not an image")})
	assert.Equal(t, NoticeInvalidPhoto, r.Notice)
	assert.True(t, apperrors.IsValidation(r.Err))
	assert.Equal(t, state.StateAwaitingPhoto, r.State)
	assert.Empty(t, h.staged(t))
}

func TestEngine_NoCandidateLocations(t *testing.T) {
	h := newHarness(t)
	h.store.settings.FilterMode = domain.FilterMarker

	r := h.engine.HandleEvent(context.Background(), 1, Photo{Data: pngBytes(t)})
	assert.Equal(t, NoticeNoLocations, r.Notice)
	assert.Len(t, h.staged(t), 1)
	assert.Contains(t, h.store.errors, "analyze")
}

func TestEngine_DescriptionKeepsParent(t *testing.T) {
	h := newHarness(t)
	h.inventory.locations[2].ParentID = "house"
	ctx := context.Background()

	h.engine.HandleEvent(ctx, 1, OpenLocations{})
	r := h.engine.HandleEvent(ctx, 1, DescribeLocation{LocationID: "loc-3"})
	assert.Equal(t, NoticeProposal, r.Notice)

	r = h.engine.HandleEvent(ctx, 1, AcceptDescription{})
	assert.Equal(t, NoticeLocationUpdated, r.Notice)
	require.Len(t, h.inventory.updated, 1)
	assert.Equal(t, domain.Location{ID: "loc-3", Name: "Kitchen", Description: "Pots and pans", ParentID: "house"}, h.inventory.updated[0])
}

func TestEngine_ExpireIdle(t *testing.T) {
	h := newHarness(t)
	now := time.Now()
	h.engine.deps.Now = func() time.Time { return now }
	ctx := context.Background()

	h.engine.HandleEvent(ctx, 1, Photo{Data: pngBytes(t)})
	h.engine.HandleEvent(ctx, 2, Cancel{})

	now = now.Add(time.Hour)
	assert.Equal(t, 1, h.engine.ExpireIdle(ctx, 30*time.Minute))
	assert.Empty(t, h.staged(t))
	assert.Equal(t, NoticeSessionExpired, h.notified[len(h.notified)-1].Notice)

	counts := h.engine.CountByState()
	assert.Equal(t, 1, counts[state.StateIdle])
}

func TestEngine_Shutdown(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.engine.HandleEvent(ctx, 1, Photo{Data: pngBytes(t)})
	require.NoError(t, h.engine.Shutdown(ctx))

	assert.Empty(t, h.staged(t))
	assert.True(t, h.store.flushed)
}
