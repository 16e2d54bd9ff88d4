// Package workflow runs the per-user conversation: the photo-to-item flow,
// location management and item browsing.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Proton-105/homebox-bot/internal/domain"
	apperrors "github.com/Proton-105/homebox-bot/internal/errors"
	"github.com/Proton-105/homebox-bot/internal/staging"
	"github.com/Proton-105/homebox-bot/internal/state"
	"github.com/Proton-105/homebox-bot/internal/vision"
	"github.com/Proton-105/homebox-bot/pkg/metrics"
)

const (
	defaultGatewayTimeout = 90 * time.Second

	searchPageSize = 50
	recentLimit    = 20
)

// Store is the durable state the engine reads and counts into.
type Store interface {
	GetSettings(ctx context.Context, userID int64) domain.UserSettings
	GetMarkerSet(ctx context.Context) (map[string]bool, error)
	ToggleMarker(ctx context.Context, locationID string) (bool, error)
	SetMarkers(ctx context.Context, locationIDs []string, marked bool) error
	RecordItemCreated(ctx context.Context)
	RecordError(ctx context.Context, errContext string)
	Flush(ctx context.Context) error
}

// Inventory is the HomeBox gateway.
type Inventory interface {
	ListLocations(ctx context.Context) ([]domain.Location, error)
	GetLocation(ctx context.Context, id string) (domain.Location, error)
	UpdateLocation(ctx context.Context, loc domain.Location) error
	CreateItem(ctx context.Context, item domain.NewItem) (string, error)
	AttachPhoto(ctx context.Context, itemID, filename, mimeType string, data []byte) error
	MoveItem(ctx context.Context, itemID, locationID string) error
	SearchItems(ctx context.Context, query string, page, pageSize int) ([]domain.ItemSummary, error)
	ListRecentItems(ctx context.Context, limit int) ([]domain.ItemSummary, error)
	ItemsByLocation(ctx context.Context, locationID string) ([]domain.ItemSummary, error)
}

// Vision is the AI gateway.
type Vision interface {
	Analyze(ctx context.Context, req vision.AnalyzeRequest) (domain.Suggestion, error)
	Summarize(ctx context.Context, locationName string, items []domain.ItemSummary, lang, model string) (string, error)
}

// Stager keeps photos on disk between upload and submission.
type Stager interface {
	Stage(userID int64, data []byte) (staging.Photo, error)
	Read(p staging.Photo) ([]byte, error)
	Remove(p staging.Photo) error
}

// Notifier delivers renders produced outside a direct reply: progress
// messages and session expiry.
type Notifier func(ctx context.Context, userID int64, r Render)

// Deps are the collaborators of an Engine.
type Deps struct {
	Store     Store
	Inventory Inventory
	Vision    Vision
	Stager    Stager
	Notify    Notifier
	Logger    *slog.Logger

	// GatewayTimeout bounds a single gateway operation. Zero means 90s.
	GatewayTimeout time.Duration
	Now            func() time.Time
}

type entry struct {
	mu      sync.Mutex
	sess    Session
	cancels []context.CancelFunc
	dead    bool
}

type job struct {
	fx     effect
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc
}

// Engine serializes events per user and runs gateway calls outside the user's lock,
// so Cancel and new photos are handled while a call is in flight.
type Engine struct {
	deps Deps
	log  *slog.Logger

	mu      sync.Mutex
	entries map[int64]*entry

	locations singleflight.Group
}

// New builds an engine.
func New(deps Deps) *Engine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.GatewayTimeout <= 0 {
		deps.GatewayTimeout = defaultGatewayTimeout
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	return &Engine{
		deps:    deps,
		log:     deps.Logger.With(slog.String("component", "workflow")),
		entries: make(map[int64]*entry),
	}
}

// HandleEvent applies ev to the user's session, runs the resulting gateway calls and
// returns what to show. Progress renders are delivered through the Notifier first.
func (e *Engine) HandleEvent(ctx context.Context, userID int64, ev Event) Render {
	if p, ok := ev.(Photo); ok {
		ev = e.stage(userID, p)
	}

	render, jobs := e.apply(userID, ev, 0, false)

	for len(jobs) > 0 {
		j := jobs[0]
		jobs = jobs[1:]

		if render.Notice != NoticeNone && !render.Stale && e.deps.Notify != nil {
			e.deps.Notify(ctx, userID, render)
		}

		result := e.execute(j, userID)
		j.cancel()

		var more []job
		render, more = e.apply(userID, result, j.gen, true)
		jobs = append(jobs, more...)
	}

	return render
}

func (e *Engine) stage(userID int64, p Photo) Event {
	photo, err := e.deps.Stager.Stage(userID, p.Data)
	if err != nil {
		if !apperrors.IsValidation(err) {
			e.log.Error("stage photo", slog.Int64("user_id", userID), slog.Any("error", err))
		}
		return photoRejected{err: err}
	}
	return photoStaged{photo: photo, caption: p.Caption}
}

// apply runs step under the user's lock. Results carry the generation of the effect
// that produced them and are dropped when it no longer matches.
func (e *Engine) apply(userID int64, ev Event, gen uint64, isResult bool) (Render, []job) {
	for {
		en := e.entry(userID)
		en.mu.Lock()
		if en.dead {
			en.mu.Unlock()
			continue
		}

		if isResult && en.sess.Gen != gen {
			st := en.sess.State
			en.mu.Unlock()
			e.log.Debug("dropping stale result", slog.Int64("user_id", userID), slog.String("event", ev.Name()))
			return Render{State: st, Stale: true}, nil
		}

		prev := en.sess
		next, effects, render := step(prev, ev)
		next.UpdatedAt = e.deps.Now()

		if prev.State != next.State {
			if !state.IsTransitionAllowed(prev.State, next.State) {
				e.log.Warn("unexpected transition",
					slog.String("from", string(prev.State)),
					slog.String("to", string(next.State)),
					slog.String("event", ev.Name()))
			}
			state.RecordTransition(prev.State, next.State)
		}

		if next.Gen != prev.Gen {
			for _, cancel := range en.cancels {
				cancel()
			}
			en.cancels = nil
		}
		en.sess = next

		var jobs []job
		for _, fx := range effects {
			if d, ok := fx.(discardPhoto); ok {
				e.discard(d.photo)
				continue
			}
			jobs = append(jobs, e.newJob(en, fx, next.Gen))
		}

		en.mu.Unlock()
		return render, jobs
	}
}

// newJob derives the effect's context. Submission is not abortable: once an item
// creation is on its way it completes even if the user cancels.
func (e *Engine) newJob(en *entry, fx effect, gen uint64) job {
	ctx, cancel := context.WithTimeout(context.Background(), e.deps.GatewayTimeout)
	if _, ok := fx.(submitFx); !ok {
		en.cancels = append(en.cancels, cancel)
	}
	return job{fx: fx, gen: gen, ctx: ctx, cancel: cancel}
}

func (e *Engine) entry(userID int64) *entry {
	e.mu.Lock()
	defer e.mu.Unlock()

	en, ok := e.entries[userID]
	if !ok {
		en = &entry{sess: Session{UserID: userID, State: state.StateIdle, UpdatedAt: e.deps.Now()}}
		e.entries[userID] = en
	}
	return en
}

func (e *Engine) discard(p staging.Photo) {
	if err := e.deps.Stager.Remove(p); err != nil {
		e.log.Warn("discard photo", slog.String("path", p.Path), slog.Any("error", err))
	}
}

func (e *Engine) execute(j job, userID int64) Event {
	log := e.log.With(slog.Int64("user_id", userID), slog.String("effect", j.fx.kind()))
	ctx := j.ctx

	var result Event
	switch fx := j.fx.(type) {
	case analyzeFx:
		result = e.runAnalyze(ctx, userID, fx)
	case submitFx:
		result = e.runSubmit(ctx, fx)
	case loadLocationsFx:
		result = e.runLoadLocations(ctx)
	case toggleMarkerFx:
		marked, err := e.deps.Store.ToggleMarker(ctx, fx.locationID)
		if err != nil {
			result = opFailed{op: fx.kind(), err: err}
			break
		}
		result = markersChanged{markers: map[string]bool{fx.locationID: marked}}
	case setMarkersFx:
		if err := e.deps.Store.SetMarkers(ctx, fx.ids, fx.marked); err != nil {
			result = opFailed{op: fx.kind(), err: err}
			break
		}
		markers := make(map[string]bool, len(fx.ids))
		for _, id := range fx.ids {
			markers[id] = fx.marked
		}
		result = markersChanged{markers: markers}
	case describeFx:
		result = e.runDescribe(ctx, userID, fx)
	case saveLocationFx:
		result = e.runSaveLocation(ctx, fx)
	case loadItemsFx:
		result = e.runLoadItems(ctx, fx)
	case moveItemFx:
		if err := e.deps.Inventory.MoveItem(ctx, fx.itemID, fx.location.ID); err != nil {
			result = opFailed{op: fx.kind(), err: err}
			break
		}
		result = itemMoved{location: fx.location}
	default:
		result = opFailed{op: j.fx.kind(), err: fmt.Errorf("unknown effect %T", j.fx)}
	}

	if err := failure(result); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Debug("effect aborted")
		} else {
			log.Warn("effect failed", slog.Any("error", err))
			e.deps.Store.RecordError(context.Background(), j.fx.kind())
		}
	}

	return result
}

func failure(ev Event) error {
	switch r := ev.(type) {
	case analysisFailed:
		return r.err
	case submitFailed:
		return r.err
	case opFailed:
		return r.err
	case submitted:
		return r.attachErr
	}
	return nil
}

func (e *Engine) runAnalyze(ctx context.Context, userID int64, fx analyzeFx) Event {
	settings := e.deps.Store.GetSettings(ctx, userID)

	locations, err := e.listLocations(ctx)
	if err != nil {
		return analysisFailed{err: err}
	}

	markers := map[string]bool(nil)
	if settings.FilterMode == domain.FilterMarker {
		if markers, err = e.deps.Store.GetMarkerSet(ctx); err != nil {
			return analysisFailed{err: err}
		}
	}

	candidates := filterCandidates(locations, settings.FilterMode, markers)
	if len(candidates) == 0 {
		return analysisFailed{err: ErrNoLocations}
	}

	data, err := e.deps.Stager.Read(fx.photo)
	if err != nil {
		return analysisFailed{err: apperrors.NewValidationError("staged photo is no longer available")}
	}

	suggestion, err := e.deps.Vision.Analyze(ctx, vision.AnalyzeRequest{
		Image:      data,
		MIME:       fx.photo.MIME,
		Candidates: candidates,
		Caption:    fx.caption,
		Language:   settings.GenLanguage,
		Model:      settings.Model,
	})
	if err != nil {
		return analysisFailed{err: err}
	}

	location := matchLocation(candidates, suggestion.Location)
	suggestion.Location = location.Name

	return analyzed{suggestion: suggestion, location: location, candidates: candidates}
}

// runSubmit creates the item and then attaches the photo. A created item is counted
// even when the user cancelled meanwhile.
func (e *Engine) runSubmit(ctx context.Context, fx submitFx) Event {
	itemID, err := e.deps.Inventory.CreateItem(ctx, fx.item)
	if err != nil {
		return submitFailed{err: err}
	}

	e.deps.Store.RecordItemCreated(ctx)

	if fx.photo == nil {
		metrics.RecordItemCreated(false)
		return submitted{itemID: itemID}
	}

	attachErr := e.attach(ctx, itemID, *fx.photo)
	metrics.RecordItemCreated(attachErr == nil)
	if attachErr != nil {
		return submitted{itemID: itemID, attachErr: apperrors.NewPartialSubmissionError(itemID, attachErr)}
	}

	return submitted{itemID: itemID}
}

func (e *Engine) attach(ctx context.Context, itemID string, photo staging.Photo) error {
	data, err := e.deps.Stager.Read(photo)
	if err != nil {
		return err
	}
	return e.deps.Inventory.AttachPhoto(ctx, itemID, photo.Name(), photo.MIME, data)
}

// listLocations shares one in-flight request among concurrent callers. The shared
// call runs detached from every caller, so one user cancelling does not fail the
// others; each caller still stops waiting when its own ctx ends.
func (e *Engine) listLocations(ctx context.Context) ([]domain.Location, error) {
	ch := e.locations.DoChan("locations", func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.deps.GatewayTimeout)
		defer cancel()
		return e.deps.Inventory.ListLocations(shared)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]domain.Location), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *Engine) runLoadLocations(ctx context.Context) Event {
	locations, err := e.listLocations(ctx)
	if err != nil {
		return opFailed{op: "load_locations", err: err}
	}

	markers, err := e.deps.Store.GetMarkerSet(ctx)
	if err != nil {
		return opFailed{op: "load_locations", err: err}
	}

	return locationsLoaded{locations: locations, markers: markers}
}

func (e *Engine) runDescribe(ctx context.Context, userID int64, fx describeFx) Event {
	settings := e.deps.Store.GetSettings(ctx, userID)

	location, err := e.deps.Inventory.GetLocation(ctx, fx.location.ID)
	if err != nil {
		return opFailed{op: fx.kind(), err: err}
	}

	items, err := e.deps.Inventory.ItemsByLocation(ctx, location.ID)
	if err != nil {
		return opFailed{op: fx.kind(), err: err}
	}

	text, err := e.deps.Vision.Summarize(ctx, location.Name, items, settings.GenLanguage, settings.Model)
	if err != nil {
		return opFailed{op: fx.kind(), err: err}
	}

	return descriptionReady{location: location, text: text}
}

// runSaveLocation re-reads the location so a concurrent rename or move is not overwritten.
func (e *Engine) runSaveLocation(ctx context.Context, fx saveLocationFx) Event {
	location, err := e.deps.Inventory.GetLocation(ctx, fx.locationID)
	if err != nil {
		return opFailed{op: fx.kind(), err: err}
	}

	location.Description = fx.description
	if err := e.deps.Inventory.UpdateLocation(ctx, location); err != nil {
		return opFailed{op: fx.kind(), err: err}
	}

	return locationSaved{location: location}
}

func (e *Engine) runLoadItems(ctx context.Context, fx loadItemsFx) Event {
	var (
		items []domain.ItemSummary
		err   error
	)
	if fx.recent {
		items, err = e.deps.Inventory.ListRecentItems(ctx, recentLimit)
	} else {
		items, err = e.deps.Inventory.SearchItems(ctx, fx.query, 1, searchPageSize)
	}
	if err != nil {
		return opFailed{op: fx.kind(), err: err}
	}

	return itemsLoaded{items: items}
}

// Session returns a copy of the user's session.
func (e *Engine) Session(userID int64) Session {
	en := e.entry(userID)
	en.mu.Lock()
	defer en.mu.Unlock()
	return en.sess
}

// CountByState reports the number of tracked sessions per state.
func (e *Engine) CountByState() map[state.State]int {
	counts := make(map[state.State]int)
	for _, en := range e.snapshot() {
		en.mu.Lock()
		if !en.dead {
			counts[en.sess.State]++
		}
		en.mu.Unlock()
	}
	return counts
}

func (e *Engine) snapshot() map[int64]*entry {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[int64]*entry, len(e.entries))
	for id, en := range e.entries {
		out[id] = en
	}
	return out
}

// ExpireIdle resets sessions untouched for longer than ttl and forgets idle ones.
// Sessions waiting on a gateway call are left alone.
func (e *Engine) ExpireIdle(ctx context.Context, ttl time.Duration) int {
	now := e.deps.Now()
	expiredCount := 0

	for userID, en := range e.snapshot() {
		en.mu.Lock()
		if en.dead || en.sess.Pending || now.Sub(en.sess.UpdatedAt) <= ttl {
			en.mu.Unlock()
			continue
		}

		if en.sess.State == state.StateIdle {
			en.dead = true
			en.mu.Unlock()

			e.mu.Lock()
			if e.entries[userID] == en {
				delete(e.entries, userID)
			}
			e.mu.Unlock()
			continue
		}
		en.mu.Unlock()

		render, _ := e.apply(userID, expired{}, 0, false)
		expiredCount++
		if e.deps.Notify != nil {
			e.deps.Notify(ctx, userID, render)
		}
	}

	return expiredCount
}

// Shutdown aborts in-flight calls, releases staged photos and flushes buffered activity.
func (e *Engine) Shutdown(ctx context.Context) error {
	for _, en := range e.snapshot() {
		en.mu.Lock()
		for _, cancel := range en.cancels {
			cancel()
		}
		en.cancels = nil
		if en.sess.Photo != nil {
			e.discard(*en.sess.Photo)
			en.sess.Photo = nil
		}
		en.sess.Gen++
		en.mu.Unlock()
	}

	return e.deps.Store.Flush(ctx)
}
