package workflow

import (
	"errors"
	"strings"

	"github.com/Proton-105/homebox-bot/internal/domain"
	apperrors "github.com/Proton-105/homebox-bot/internal/errors"
	"github.com/Proton-105/homebox-bot/internal/staging"
	"github.com/Proton-105/homebox-bot/internal/state"
)

// ErrNoLocations is returned by analysis when no candidate location is available.
var ErrNoLocations = errors.New("no candidate locations")

// effect is a side effect requested by step and executed by the engine.
type effect interface {
	kind() string
}

type (
	discardPhoto struct{ photo staging.Photo }
	analyzeFx    struct {
		photo   staging.Photo
		caption string
	}
	submitFx struct {
		item  domain.NewItem
		photo *staging.Photo
	}
	loadLocationsFx struct{}
	toggleMarkerFx  struct{ locationID string }
	setMarkersFx    struct {
		ids    []string
		marked bool
	}
	describeFx     struct{ location domain.Location }
	saveLocationFx struct {
		locationID  string
		description string
	}
	loadItemsFx struct {
		query  string
		recent bool
	}
	moveItemFx struct {
		itemID   string
		location domain.Location
	}
)

func (discardPhoto) kind() string    { return "discard_photo" }
func (analyzeFx) kind() string       { return "analyze" }
func (submitFx) kind() string        { return "submit" }
func (loadLocationsFx) kind() string { return "load_locations" }
func (toggleMarkerFx) kind() string  { return "toggle_marker" }
func (setMarkersFx) kind() string    { return "set_markers" }
func (describeFx) kind() string      { return "describe_location" }
func (saveLocationFx) kind() string  { return "save_location" }
func (loadItemsFx) kind() string     { return "load_items" }
func (moveItemFx) kind() string      { return "move_item" }

// step is the whole conversation state machine: it maps the current session and
// an event to the next session, the side effects to run and what to show.
// It performs no I/O.
func step(s Session, ev Event) (Session, []effect, Render) {
	switch e := ev.(type) {
	case Start:
		next, fx := reset(s)
		next.State = state.StateAwaitingPhoto
		return next, fx, Render{State: next.State, Notice: NoticeSendPhoto, Actions: []Action{ActionCancel}}

	case Cancel:
		next, fx := reset(s)
		return next, fx, Render{State: next.State, Notice: NoticeCancelled}

	case expired:
		next, fx := reset(s)
		return next, fx, Render{State: next.State, Notice: NoticeSessionExpired}

	case Close:
		if s.Pending && s.State.InPhotoFlow() {
			return busy(s)
		}
		next, fx := reset(s)
		return next, fx, Render{State: next.State}

	case photoStaged:
		next, fx := reset(s)
		photo := e.photo
		next.Photo = &photo
		next.Caption = e.caption
		next.State = state.StateAnalyzing
		next.Pending = true
		fx = append(fx, analyzeFx{photo: photo, caption: e.caption})
		return next, fx, Render{State: next.State, Notice: NoticeAnalyzing}

	case photoRejected:
		if s.State == state.StateIdle {
			s.State = state.StateAwaitingPhoto
		}
		return s, nil, Render{State: s.State, Notice: NoticeInvalidPhoto, Err: e.err, Actions: []Action{ActionCancel}}
	}

	if isResult(ev) {
		return stepResult(s, ev)
	}

	if s.Pending {
		return busy(s)
	}

	switch ev.(type) {
	case OpenLocations:
		if !canLeaveFor(s) {
			return finishPhotoFirst(s)
		}
		next, fx := reset(s)
		next.State = state.StateViewingLocations
		next.Pending = true
		return next, append(fx, loadLocationsFx{}), Render{State: next.State}

	case Search, Recent:
		if !canLeaveFor(s) {
			return finishPhotoFirst(s)
		}
		fx := loadItemsFx{recent: true}
		if q, ok := ev.(Search); ok {
			fx = loadItemsFx{query: strings.TrimSpace(q.Query)}
			if fx.query == "" {
				return s, nil, Render{State: s.State, Notice: NoticeSearchUsage, Err: apperrors.NewValidationError("empty search query")}
			}
		}
		next, discard := reset(s)
		next.State = state.StateBrowsingItems
		next.Pending = true
		next.Query = fx.query
		return next, append(discard, fx), Render{State: next.State}
	}

	switch s.State {
	case state.StateIdle:
		return stepIdle(s, ev)
	case state.StateAwaitingPhoto:
		return stepAwaitingPhoto(s, ev)
	case state.StateConfirmingSuggestion:
		return stepConfirming(s, ev)
	case state.StateEditingName, state.StateEditingDescription:
		return stepEditing(s, ev)
	case state.StateSelectingLocation:
		return stepSelectingLocation(s, ev)
	case state.StateAwaitingReanalysisHint:
		return stepHint(s, ev)
	case state.StateViewingLocations, state.StateSelectingForMark:
		return stepLocations(s, ev)
	case state.StateGeneratingDescription:
		return stepDescription(s, ev)
	case state.StateBrowsingItems:
		return stepBrowsing(s, ev)
	case state.StateMovingItem:
		return stepMoving(s, ev)
	}

	return unavailable(s)
}

func isResult(ev Event) bool {
	switch ev.(type) {
	case analyzed, analysisFailed, submitted, submitFailed, locationsLoaded, markersChanged,
		descriptionReady, locationSaved, itemsLoaded, itemMoved, opFailed:
		return true
	}
	return false
}

// canLeaveFor reports whether the user may switch to location management or browsing.
// A photo flow in progress must be finished or cancelled first.
func canLeaveFor(s Session) bool {
	if s.State == state.StateAwaitingPhoto {
		return s.Photo == nil
	}
	return !s.State.InPhotoFlow()
}

func busy(s Session) (Session, []effect, Render) {
	return s, nil, Render{State: s.State, Notice: NoticeBusy}
}

func unavailable(s Session) (Session, []effect, Render) {
	return s, nil, Render{State: s.State, Notice: NoticeUnavailableAction, Err: apperrors.NewStateError("action not available in " + string(s.State))}
}

func finishPhotoFirst(s Session) (Session, []effect, Render) {
	return s, nil, Render{
		State:   s.State,
		Notice:  NoticeFinishPhotoFirst,
		Err:     apperrors.NewStateError("photo flow in progress"),
		Actions: []Action{ActionCancel},
	}
}

func stepIdle(s Session, ev Event) (Session, []effect, Render) {
	switch ev.(type) {
	case Text:
		return s, nil, Render{State: s.State, Notice: NoticeUnexpectedInput}
	}
	return unavailable(s)
}

func stepAwaitingPhoto(s Session, ev Event) (Session, []effect, Render) {
	switch ev.(type) {
	case RetryAnalysis:
		if s.Photo == nil {
			return unavailable(s)
		}
		s.Gen++
		s.State = state.StateAnalyzing
		s.Pending = true
		return s, []effect{analyzeFx{photo: *s.Photo, caption: s.Caption}}, Render{State: s.State, Notice: NoticeAnalyzing}
	case Text:
		return s, nil, Render{State: s.State, Notice: NoticeSendPhoto, Actions: []Action{ActionCancel}}
	}
	return unavailable(s)
}

func stepConfirming(s Session, ev Event) (Session, []effect, Render) {
	switch ev.(type) {
	case EditName:
		s.State = state.StateEditingName
		s.EditTarget = TargetName
		return s, nil, Render{State: s.State, Notice: NoticeAskName, Payload: suggestionPayload(s), Actions: []Action{ActionBack}}
	case EditDescription:
		s.State = state.StateEditingDescription
		s.EditTarget = TargetDescription
		return s, nil, Render{State: s.State, Notice: NoticeAskDescription, Payload: suggestionPayload(s), Actions: []Action{ActionBack}}
	case ChangeLocation:
		s.State = state.StateSelectingLocation
		s.Page = 0
		return s, nil, renderLocationChoice(s, s.Candidates)
	case Reanalyze:
		if s.Photo == nil {
			return unavailable(s)
		}
		s.State = state.StateAwaitingReanalysisHint
		return s, nil, Render{State: s.State, Notice: NoticeAskHint, Actions: []Action{ActionBack}}
	case Confirm:
		s.Gen++
		s.State = state.StateSubmitting
		s.Pending = true
		fx := submitFx{item: domain.NewItem{
			Name:        s.Suggestion.Name,
			Description: s.Suggestion.Description,
			LocationID:  s.LocationID,
		}}
		if s.Photo != nil {
			photo := *s.Photo
			fx.photo = &photo
		}
		return s, []effect{fx}, Render{State: s.State, Notice: NoticeSubmitting}
	case Text, Back:
		return s, nil, renderConfirm(s, NoticeSuggestion)
	}
	return unavailable(s)
}

func stepEditing(s Session, ev Event) (Session, []effect, Render) {
	switch e := ev.(type) {
	case Text:
		if strings.TrimSpace(e.Text) == "" {
			return s, nil, Render{
				State:   s.State,
				Notice:  NoticeEmptyText,
				Err:     apperrors.NewValidationError("text must not be empty"),
				Payload: suggestionPayload(s),
				Actions: []Action{ActionBack},
			}
		}
		if s.EditTarget == TargetDescription {
			s.Suggestion.Description = e.Text
		} else {
			s.Suggestion.Name = e.Text
		}
		s.EditTarget = TargetNone
		s.State = state.StateConfirmingSuggestion
		return s, nil, renderConfirm(s, NoticeSuggestion)
	case Back:
		s.EditTarget = TargetNone
		s.State = state.StateConfirmingSuggestion
		return s, nil, renderConfirm(s, NoticeSuggestion)
	}
	return unavailable(s)
}

func stepSelectingLocation(s Session, ev Event) (Session, []effect, Render) {
	switch e := ev.(type) {
	case PickLocation:
		loc, ok := findLocation(s.Candidates, e.LocationID)
		if !ok {
			r := renderLocationChoice(s, s.Candidates)
			r.Notice = NoticeUnknownLocation
			return s, nil, r
		}
		s.Suggestion.Location = loc.Name
		s.LocationID = loc.ID
		s.State = state.StateConfirmingSuggestion
		return s, nil, renderConfirm(s, NoticeSuggestion)
	case GoToPage:
		s.Page = clampPage(e.Page, len(s.Candidates))
		return s, nil, renderLocationChoice(s, s.Candidates)
	case Back:
		s.State = state.StateConfirmingSuggestion
		return s, nil, renderConfirm(s, NoticeSuggestion)
	}
	return unavailable(s)
}

func stepHint(s Session, ev Event) (Session, []effect, Render) {
	switch e := ev.(type) {
	case Text:
		hint := strings.TrimSpace(e.Text)
		if hint == "" {
			return s, nil, Render{State: s.State, Notice: NoticeEmptyText, Err: apperrors.NewValidationError("hint must not be empty"), Actions: []Action{ActionBack}}
		}
		previous := s.Suggestion
		s.Previous = &previous
		s.Caption = hint
		s.Gen++
		s.State = state.StateAnalyzing
		s.Pending = true
		return s, []effect{analyzeFx{photo: *s.Photo, caption: hint}}, Render{State: s.State, Notice: NoticeAnalyzing}
	case Back:
		s.State = state.StateConfirmingSuggestion
		return s, nil, renderConfirm(s, NoticeSuggestion)
	}
	return unavailable(s)
}

func stepLocations(s Session, ev Event) (Session, []effect, Render) {
	switch e := ev.(type) {
	case GoToPage:
		s.Page = clampPage(e.Page, len(s.Locations))
		return s, nil, renderLocations(s, NoticeNone)
	case MarkMode:
		s.State = state.StateSelectingForMark
		return s, nil, renderLocations(s, NoticeMarking)
	case Back:
		if s.State == state.StateSelectingForMark {
			s.State = state.StateViewingLocations
			return s, nil, renderLocations(s, NoticeLocations)
		}
		next, fx := reset(s)
		return next, fx, Render{State: next.State}
	case ToggleMarker:
		if s.State != state.StateSelectingForMark {
			return unavailable(s)
		}
		if _, ok := findLocation(s.Locations, e.LocationID); !ok {
			return s, nil, renderLocations(s, NoticeUnknownLocation)
		}
		return s, []effect{toggleMarkerFx{locationID: e.LocationID}}, Render{State: s.State}
	case MarkPage:
		if s.State != state.StateSelectingForMark {
			return unavailable(s)
		}
		page := pageOf(s.Locations, s.Page)
		ids := make([]string, 0, len(page))
		for _, l := range page {
			ids = append(ids, l.ID)
		}
		return s, []effect{setMarkersFx{ids: ids, marked: e.Marked}}, Render{State: s.State}
	case DescribeLocation:
		if s.State != state.StateViewingLocations {
			return unavailable(s)
		}
		loc, ok := findLocation(s.Locations, e.LocationID)
		if !ok {
			return s, nil, renderLocations(s, NoticeUnknownLocation)
		}
		s.Gen++
		s.State = state.StateGeneratingDescription
		s.Pending = true
		s.Target = &loc
		s.Proposal = ""
		return s, []effect{describeFx{location: loc}}, Render{State: s.State, Notice: NoticeGenerating}
	case Text:
		return s, nil, renderLocations(s, NoticeUnexpectedInput)
	}
	return unavailable(s)
}

func stepDescription(s Session, ev Event) (Session, []effect, Render) {
	switch ev.(type) {
	case AcceptDescription:
		s.Gen++
		s.Pending = true
		return s, []effect{saveLocationFx{locationID: s.Target.ID, description: s.Proposal}}, Render{State: s.State}
	case RegenerateDescription:
		s.Gen++
		s.Pending = true
		return s, []effect{describeFx{location: *s.Target}}, Render{State: s.State, Notice: NoticeGenerating}
	case RejectDescription, Back:
		s.State = state.StateViewingLocations
		s.Target = nil
		s.Proposal = ""
		return s, nil, renderLocations(s, NoticeLocations)
	case Text:
		return s, nil, renderProposal(s, NoticeUnexpectedInput)
	}
	return unavailable(s)
}

func stepBrowsing(s Session, ev Event) (Session, []effect, Render) {
	switch e := ev.(type) {
	case GoToPage:
		s.Item = nil
		s.Page = clampPage(e.Page, len(s.Items))
		return s, nil, renderItems(s, NoticeItems)
	case ShowItem:
		for _, item := range s.Items {
			if item.ID == e.ItemID {
				found := item
				s.Item = &found
				return s, nil, renderItem(s, NoticeItem)
			}
		}
		return s, nil, renderItems(s, NoticeNothingFound)
	case MoveItem:
		if s.Item == nil {
			return unavailable(s)
		}
		s.Gen++
		s.State = state.StateMovingItem
		s.Pending = true
		s.Page = 0
		return s, []effect{loadLocationsFx{}}, Render{State: s.State}
	case Back:
		if s.Item != nil {
			s.Item = nil
			return s, nil, renderItems(s, NoticeItems)
		}
		next, fx := reset(s)
		return next, fx, Render{State: next.State}
	case Text:
		return s, nil, renderItems(s, NoticeUnexpectedInput)
	}
	return unavailable(s)
}

func stepMoving(s Session, ev Event) (Session, []effect, Render) {
	switch e := ev.(type) {
	case GoToPage:
		s.Page = clampPage(e.Page, len(s.Locations))
		return s, nil, renderLocationChoice(s, s.Locations)
	case PickLocation:
		loc, ok := findLocation(s.Locations, e.LocationID)
		if !ok {
			r := renderLocationChoice(s, s.Locations)
			r.Notice = NoticeUnknownLocation
			return s, nil, r
		}
		s.Gen++
		s.Pending = true
		return s, []effect{moveItemFx{itemID: s.Item.ID, location: loc}}, Render{State: s.State}
	case Back:
		s.State = state.StateBrowsingItems
		s.Page = 0
		return s, nil, renderItem(s, NoticeItem)
	}
	return unavailable(s)
}

// stepResult applies the outcome of a gateway call. The engine has already
// dropped results from a superseded generation.
func stepResult(s Session, ev Event) (Session, []effect, Render) {
	if !s.Pending {
		switch ev.(type) {
		case markersChanged, opFailed:
		default:
			return s, nil, Render{State: s.State, Stale: true}
		}
	}

	switch e := ev.(type) {
	case analyzed:
		s.Pending = false
		s.Suggestion = e.suggestion
		s.LocationID = e.location.ID
		s.Candidates = e.candidates
		s.Previous = nil
		s.State = state.StateConfirmingSuggestion
		return s, nil, renderConfirm(s, NoticeSuggestion)

	case analysisFailed:
		s.Pending = false
		if s.Previous != nil {
			s.Suggestion = *s.Previous
			s.Previous = nil
			s.State = state.StateConfirmingSuggestion
			r := renderConfirm(s, NoticeReanalysisFailed)
			r.Err = e.err
			return s, nil, r
		}

		s.State = state.StateAwaitingPhoto
		switch {
		case apperrors.IsValidation(e.err):
			var fx []effect
			if s.Photo != nil {
				fx = append(fx, discardPhoto{photo: *s.Photo})
			}
			s.Photo = nil
			return s, fx, Render{State: s.State, Notice: NoticeInvalidPhoto, Err: e.err, Actions: []Action{ActionCancel}}
		case errors.Is(e.err, ErrNoLocations):
			return s, nil, Render{State: s.State, Notice: NoticeNoLocations, Err: e.err, Actions: []Action{ActionRetryAnalysis, ActionCancel}}
		default:
			return s, nil, Render{State: s.State, Notice: NoticeAnalysisFailed, Err: e.err, Actions: []Action{ActionRetryAnalysis, ActionCancel}}
		}

	case submitted:
		payload := CreatedPayload{
			ItemID:        e.itemID,
			Name:          s.Suggestion.Name,
			Location:      s.Suggestion.Location,
			PhotoAttached: s.Photo != nil && e.attachErr == nil,
		}
		next, fx := reset(s)
		next.Gen = s.Gen
		if e.attachErr != nil {
			return next, fx, Render{State: next.State, Notice: NoticePartialSubmission, Err: e.attachErr, Payload: payload}
		}
		return next, fx, Render{State: next.State, Notice: NoticeItemCreated, Payload: payload}

	case submitFailed:
		s.Pending = false
		s.State = state.StateConfirmingSuggestion
		r := renderConfirm(s, NoticeSubmitFailed)
		r.Err = e.err
		return s, nil, r

	case locationsLoaded:
		s.Pending = false
		s.Locations = e.locations
		s.Markers = e.markers
		s.Page = clampPage(s.Page, len(s.Locations))
		if s.State == state.StateMovingItem {
			return s, nil, renderLocationChoice(s, s.Locations)
		}
		return s, nil, renderLocations(s, NoticeLocations)

	case markersChanged:
		markers := make(map[string]bool, len(s.Markers)+len(e.markers))
		for id, v := range s.Markers {
			markers[id] = v
		}
		for id, v := range e.markers {
			markers[id] = v
		}
		s.Markers = markers
		if s.State != state.StateSelectingForMark {
			return s, nil, Render{State: s.State, Stale: true}
		}
		return s, nil, renderLocations(s, NoticeMarking)

	case descriptionReady:
		s.Pending = false
		loc := e.location
		s.Target = &loc
		s.Proposal = e.text
		return s, nil, renderProposal(s, NoticeProposal)

	case locationSaved:
		s.Pending = false
		for i, l := range s.Locations {
			if l.ID == e.location.ID {
				locations := append([]domain.Location(nil), s.Locations...)
				locations[i] = e.location
				s.Locations = locations
				break
			}
		}
		s.State = state.StateViewingLocations
		s.Target = nil
		s.Proposal = ""
		return s, nil, renderLocations(s, NoticeLocationUpdated)

	case itemsLoaded:
		s.Pending = false
		if len(e.items) == 0 {
			next, fx := reset(s)
			next.Gen = s.Gen
			return next, fx, Render{State: next.State, Notice: NoticeNothingFound}
		}
		s.Items = e.items
		s.Page = 0
		return s, nil, renderItems(s, NoticeItems)

	case itemMoved:
		s.Pending = false
		item := *s.Item
		item.LocationID = e.location.ID
		item.LocationName = e.location.Name
		s.Item = &item
		items := append([]domain.ItemSummary(nil), s.Items...)
		for i := range items {
			if items[i].ID == item.ID {
				items[i] = item
			}
		}
		s.Items = items
		s.State = state.StateBrowsingItems
		return s, nil, renderItem(s, NoticeItemMoved)

	case opFailed:
		return stepFailure(s, e)
	}

	return s, nil, Render{State: s.State, Stale: true}
}

// stepFailure returns to the nearest stable state of the current sub-flow.
func stepFailure(s Session, e opFailed) (Session, []effect, Render) {
	if !s.Pending {
		r := Render{State: s.State, Notice: NoticeGatewayError, Err: e.err}
		if s.State.InLocationFlow() {
			r = renderLocations(s, NoticeGatewayError)
			r.Err = e.err
		}
		return s, nil, r
	}
	s.Pending = false

	switch {
	case s.State.InLocationFlow():
		if s.Locations == nil {
			next, fx := reset(s)
			next.Gen = s.Gen
			return next, fx, Render{State: next.State, Notice: NoticeGatewayError, Err: e.err}
		}
		s.State = state.StateViewingLocations
		s.Target = nil
		s.Proposal = ""
		r := renderLocations(s, NoticeGatewayError)
		r.Err = e.err
		return s, nil, r

	case s.State == state.StateMovingItem:
		s.State = state.StateBrowsingItems
		r := renderItem(s, NoticeGatewayError)
		r.Err = e.err
		return s, nil, r

	case s.State == state.StateBrowsingItems && len(s.Items) > 0:
		r := renderItems(s, NoticeGatewayError)
		r.Err = e.err
		return s, nil, r
	}

	next, fx := reset(s)
	next.Gen = s.Gen
	return next, fx, Render{State: next.State, Notice: NoticeGatewayError, Err: e.err}
}

func suggestionPayload(s Session) SuggestionPayload {
	return SuggestionPayload{Suggestion: s.Suggestion, HasPhoto: s.Photo != nil}
}

func renderConfirm(s Session, notice Notice) Render {
	actions := []Action{ActionEditName, ActionEditDescription, ActionChangeLocation}
	if s.Photo != nil {
		actions = append(actions, ActionReanalyze)
	}
	actions = append(actions, ActionConfirm, ActionCancel)

	return Render{State: s.State, Notice: notice, Payload: suggestionPayload(s), Actions: actions}
}

func renderLocationChoice(s Session, locations []domain.Location) Render {
	page := clampPage(s.Page, len(locations))
	return Render{
		State:  s.State,
		Notice: NoticeChooseLocation,
		Payload: LocationListPayload{
			Locations: pageOf(locations, page),
			Page:      page,
			Pages:     pageCount(len(locations)),
		},
		Actions: append(pageActions(page, len(locations)), ActionBack),
	}
}

func renderLocations(s Session, notice Notice) Render {
	page := clampPage(s.Page, len(s.Locations))
	actions := pageActions(page, len(s.Locations))
	if s.State == state.StateSelectingForMark {
		actions = append(actions, ActionMarkAll, ActionUnmarkAll, ActionBack)
	} else {
		actions = append(actions, ActionMarkMode, ActionClose)
	}

	return Render{
		State:  s.State,
		Notice: notice,
		Payload: LocationListPayload{
			Locations: pageOf(s.Locations, page),
			Markers:   s.Markers,
			Page:      page,
			Pages:     pageCount(len(s.Locations)),
		},
		Actions: actions,
	}
}

func renderProposal(s Session, notice Notice) Render {
	return Render{
		State:   s.State,
		Notice:  notice,
		Payload: DescriptionPayload{Location: *s.Target, Proposal: s.Proposal},
		Actions: []Action{ActionAccept, ActionRegenerate, ActionReject},
	}
}

func renderItems(s Session, notice Notice) Render {
	page := clampPage(s.Page, len(s.Items))
	return Render{
		State:  s.State,
		Notice: notice,
		Payload: ItemListPayload{
			Items: pageOf(s.Items, page),
			Query: s.Query,
			Page:  page,
			Pages: pageCount(len(s.Items)),
		},
		Actions: append(pageActions(page, len(s.Items)), ActionClose),
	}
}

func renderItem(s Session, notice Notice) Render {
	return Render{
		State:   s.State,
		Notice:  notice,
		Payload: ItemPayload{Item: *s.Item},
		Actions: []Action{ActionMoveItem, ActionBack, ActionClose},
	}
}
