package workflow

import (
	"github.com/Proton-105/homebox-bot/internal/domain"
	"github.com/Proton-105/homebox-bot/internal/staging"
)

// Event is an input to the engine: a user action or the result of a gateway call.
type Event interface {
	Name() string
}

// User events.
type (
	Start                 struct{}
	Cancel                struct{}
	Photo                 struct{ Data []byte; Caption string }
	Text                  struct{ Text string }
	EditName              struct{}
	EditDescription       struct{}
	ChangeLocation        struct{}
	PickLocation          struct{ LocationID string }
	Back                  struct{}
	Confirm               struct{}
	Reanalyze             struct{}
	RetryAnalysis         struct{}
	OpenLocations         struct{}
	GoToPage              struct{ Page int }
	MarkMode              struct{}
	ToggleMarker          struct{ LocationID string }
	MarkPage              struct{ Marked bool }
	DescribeLocation      struct{ LocationID string }
	AcceptDescription     struct{}
	RegenerateDescription struct{}
	RejectDescription     struct{}
	Close                 struct{}
	Search                struct{ Query string }
	Recent                struct{}
	ShowItem              struct{ ItemID string }
	MoveItem              struct{}
)

func (Start) Name() string                 { return "start" }
func (Cancel) Name() string                { return "cancel" }
func (Photo) Name() string                 { return "photo" }
func (Text) Name() string                  { return "text" }
func (EditName) Name() string              { return "edit_name" }
func (EditDescription) Name() string       { return "edit_description" }
func (ChangeLocation) Name() string        { return "change_location" }
func (PickLocation) Name() string          { return "pick_location" }
func (Back) Name() string                  { return "back" }
func (Confirm) Name() string               { return "confirm" }
func (Reanalyze) Name() string             { return "reanalyze" }
func (RetryAnalysis) Name() string         { return "retry_analysis" }
func (OpenLocations) Name() string         { return "locations" }
func (GoToPage) Name() string              { return "page" }
func (MarkMode) Name() string              { return "mark_mode" }
func (ToggleMarker) Name() string          { return "toggle_marker" }
func (MarkPage) Name() string              { return "mark_page" }
func (DescribeLocation) Name() string      { return "describe_location" }
func (AcceptDescription) Name() string     { return "accept_description" }
func (RegenerateDescription) Name() string { return "regenerate_description" }
func (RejectDescription) Name() string     { return "reject_description" }
func (Close) Name() string                 { return "close" }
func (Search) Name() string                { return "search" }
func (Recent) Name() string                { return "recent" }
func (ShowItem) Name() string              { return "show_item" }
func (MoveItem) Name() string              { return "move_item" }

// Results fed back into step by the engine.
type (
	photoStaged struct {
		photo   staging.Photo
		caption string
	}
	photoRejected struct{ err error }
	analyzed      struct {
		suggestion domain.Suggestion
		location   domain.Location
		candidates []domain.Location
	}
	analysisFailed struct{ err error }
	submitted      struct {
		itemID    string
		attachErr error
	}
	submitFailed    struct{ err error }
	locationsLoaded struct {
		locations []domain.Location
		markers   map[string]bool
	}
	markersChanged   struct{ markers map[string]bool }
	descriptionReady struct {
		location domain.Location
		text     string
	}
	locationSaved struct{ location domain.Location }
	itemsLoaded   struct{ items []domain.ItemSummary }
	itemMoved     struct{ location domain.Location }
	opFailed      struct {
		op  string
		err error
	}
	expired struct{}
)

func (photoStaged) Name() string      { return "photo_staged" }
func (photoRejected) Name() string    { return "photo_rejected" }
func (analyzed) Name() string         { return "analyzed" }
func (analysisFailed) Name() string   { return "analysis_failed" }
func (submitted) Name() string        { return "submitted" }
func (submitFailed) Name() string     { return "submit_failed" }
func (locationsLoaded) Name() string  { return "locations_loaded" }
func (markersChanged) Name() string   { return "markers_changed" }
func (descriptionReady) Name() string { return "description_ready" }
func (locationSaved) Name() string    { return "location_saved" }
func (itemsLoaded) Name() string      { return "items_loaded" }
func (itemMoved) Name() string        { return "item_moved" }
func (opFailed) Name() string         { return "op_failed" }
func (expired) Name() string          { return "expired" }
