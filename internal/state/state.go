// Package state defines the conversation states, the transitions permitted
// between them and the housekeeping loop for idle sessions.
package state

// State represents a finite-state machine state.
type State string

const (
	// StateIdle indicates that the bot is waiting for the next user command.
	StateIdle State = "idle"

	// Photo-to-item flow.
	StateAwaitingPhoto          State = "awaiting_photo"
	StateAnalyzing              State = "analyzing"
	StateConfirmingSuggestion   State = "confirming_suggestion"
	StateEditingName            State = "editing_name"
	StateEditingDescription     State = "editing_description"
	StateSelectingLocation      State = "selecting_location"
	StateAwaitingReanalysisHint State = "awaiting_reanalysis_hint"
	StateSubmitting             State = "submitting"

	// Location management.
	StateViewingLocations      State = "viewing_locations"
	StateSelectingForMark      State = "selecting_for_mark"
	StateGeneratingDescription State = "generating_description"

	// Item browsing (search and recent).
	StateBrowsingItems State = "browsing_items"
	StateMovingItem    State = "moving_item"
)

// All lists every state, in flow order.
var All = []State{
	StateIdle,
	StateAwaitingPhoto,
	StateAnalyzing,
	StateConfirmingSuggestion,
	StateEditingName,
	StateEditingDescription,
	StateSelectingLocation,
	StateAwaitingReanalysisHint,
	StateSubmitting,
	StateViewingLocations,
	StateSelectingForMark,
	StateGeneratingDescription,
	StateBrowsingItems,
	StateMovingItem,
}

// InPhotoFlow reports whether s belongs to the photo-to-item flow.
func (s State) InPhotoFlow() bool {
	switch s {
	case StateAwaitingPhoto, StateAnalyzing, StateConfirmingSuggestion, StateEditingName,
		StateEditingDescription, StateSelectingLocation, StateAwaitingReanalysisHint, StateSubmitting:
		return true
	}
	return false
}

// InLocationFlow reports whether s belongs to location management.
func (s State) InLocationFlow() bool {
	switch s {
	case StateViewingLocations, StateSelectingForMark, StateGeneratingDescription:
		return true
	}
	return false
}

// Busy reports whether s waits on a gateway call.
func (s State) Busy() bool {
	switch s {
	case StateAnalyzing, StateSubmitting, StateGeneratingDescription:
		return true
	}
	return false
}
