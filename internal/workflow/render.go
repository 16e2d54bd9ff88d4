package workflow

import (
	"github.com/Proton-105/homebox-bot/internal/domain"
	"github.com/Proton-105/homebox-bot/internal/state"
)

// Notice is a message key the presentation layer translates.
type Notice string

const (
	NoticeNone               Notice = ""
	NoticeSendPhoto          Notice = "send_photo"
	NoticeCancelled          Notice = "cancelled"
	NoticeAnalyzing          Notice = "analyzing"
	NoticeAnalysisFailed     Notice = "analysis_failed"
	NoticeReanalysisFailed   Notice = "reanalysis_failed"
	NoticeNoLocations        Notice = "no_locations"
	NoticeInvalidPhoto       Notice = "invalid_photo"
	NoticeSuggestion         Notice = "suggestion"
	NoticeAskName            Notice = "ask_name"
	NoticeAskDescription     Notice = "ask_description"
	NoticeAskHint            Notice = "ask_hint"
	NoticeChooseLocation     Notice = "choose_location"
	NoticeEmptyText          Notice = "empty_text"
	NoticeUnknownLocation    Notice = "unknown_location"
	NoticeSubmitting         Notice = "submitting"
	NoticeItemCreated        Notice = "item_created"
	NoticePartialSubmission  Notice = "partial_submission"
	NoticeSubmitFailed       Notice = "submit_failed"
	NoticeBusy               Notice = "busy"
	NoticeFinishPhotoFirst   Notice = "finish_photo_first"
	NoticeUnexpectedInput    Notice = "unexpected_input"
	NoticeLocations          Notice = "locations"
	NoticeMarking            Notice = "marking"
	NoticeGenerating         Notice = "generating"
	NoticeProposal           Notice = "proposal"
	NoticeLocationUpdated    Notice = "location_updated"
	NoticeGatewayError       Notice = "gateway_error"
	NoticeSearchUsage        Notice = "search_usage"
	NoticeNothingFound       Notice = "nothing_found"
	NoticeItems              Notice = "items"
	NoticeItem               Notice = "item"
	NoticeItemMoved          Notice = "item_moved"
	NoticeSessionExpired     Notice = "session_expired"
	NoticeUnavailableAction  Notice = "unavailable_action"
)

// Action is a control the presentation layer may offer.
type Action string

const (
	ActionEditName        Action = "edit_name"
	ActionEditDescription Action = "edit_description"
	ActionChangeLocation  Action = "change_location"
	ActionReanalyze       Action = "reanalyze"
	ActionRetryAnalysis   Action = "retry_analysis"
	ActionConfirm         Action = "confirm"
	ActionCancel          Action = "cancel"
	ActionBack            Action = "back"
	ActionPrevPage        Action = "prev_page"
	ActionNextPage        Action = "next_page"
	ActionMarkMode        Action = "mark_mode"
	ActionMarkAll         Action = "mark_all"
	ActionUnmarkAll       Action = "unmark_all"
	ActionAccept          Action = "accept"
	ActionRegenerate      Action = "regenerate"
	ActionReject          Action = "reject"
	ActionMoveItem        Action = "move_item"
	ActionClose           Action = "close"
)

// Render tells the presentation layer what to show. Stale renders belong to a superseded
// operation and must not be shown.
type Render struct {
	State   state.State
	Notice  Notice
	Err     error
	Payload any
	Actions []Action
	Stale   bool
}

// SuggestionPayload accompanies the confirmation and editing states.
type SuggestionPayload struct {
	Suggestion domain.Suggestion
	HasPhoto   bool
}

// LocationListPayload is one page of locations. Markers is nil when marks are not shown.
type LocationListPayload struct {
	Locations []domain.Location
	Markers   map[string]bool
	Page      int
	Pages     int
}

// DescriptionPayload is a generated location description awaiting a decision.
type DescriptionPayload struct {
	Location domain.Location
	Proposal string
}

// ItemListPayload is one page of search or recent results.
type ItemListPayload struct {
	Items []domain.ItemSummary
	Query string
	Page  int
	Pages int
}

// ItemPayload is a single item.
type ItemPayload struct {
	Item domain.ItemSummary
}

// CreatedPayload reports a created item.
type CreatedPayload struct {
	ItemID        string
	Name          string
	Location      string
	PhotoAttached bool
}
