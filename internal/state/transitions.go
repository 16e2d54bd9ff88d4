package state

import "errors"

// ErrInvalidTransition indicates that a requested FSM transition is not allowed.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions contains the permitted non-emergency transitions in the FSM.
// A photo restarts analysis and /start restarts the photo flow from anywhere, so
// StateAnalyzing and StateAwaitingPhoto are reachable from every state.
var validTransitions = map[State][]State{
	StateIdle: {
		StateAwaitingPhoto,
		StateViewingLocations,
		StateBrowsingItems,
	},
	StateAwaitingPhoto: {
		StateViewingLocations,
		StateBrowsingItems,
	},
	StateAnalyzing: {
		StateConfirmingSuggestion,
		StateAwaitingPhoto,
	},
	StateConfirmingSuggestion: {
		StateEditingName,
		StateEditingDescription,
		StateSelectingLocation,
		StateAwaitingReanalysisHint,
		StateSubmitting,
	},
	StateEditingName: {
		StateConfirmingSuggestion,
	},
	StateEditingDescription: {
		StateConfirmingSuggestion,
	},
	StateSelectingLocation: {
		StateConfirmingSuggestion,
	},
	StateAwaitingReanalysisHint: {
		StateConfirmingSuggestion,
	},
	StateSubmitting: {
		StateConfirmingSuggestion,
	},
	StateViewingLocations: {
		StateSelectingForMark,
		StateGeneratingDescription,
		StateBrowsingItems,
	},
	StateSelectingForMark: {
		StateViewingLocations,
		StateBrowsingItems,
	},
	StateGeneratingDescription: {
		StateViewingLocations,
		StateBrowsingItems,
	},
	StateBrowsingItems: {
		StateMovingItem,
		StateViewingLocations,
	},
	StateMovingItem: {
		StateBrowsingItems,
		StateViewingLocations,
	},
}

var transitionRecorder = func(from, to string) {}

// RegisterTransitionRecorder allows external packages to observe FSM transitions.
func RegisterTransitionRecorder(recorder func(from, to string)) {
	if recorder == nil {
		transitionRecorder = func(string, string) {}
		return
	}

	transitionRecorder = recorder
}

// RecordTransition reports a committed transition to the registered recorder.
func RecordTransition(from, to State) {
	if from == to {
		return
	}
	transitionRecorder(string(from), string(to))
}

// IsTransitionAllowed reports whether moving from one state to another is valid.
func IsTransitionAllowed(from, to State) bool {
	if to == StateIdle || to == StateAnalyzing || to == StateAwaitingPhoto || from == to {
		return true
	}

	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}

	for _, state := range allowed {
		if state == to {
			return true
		}
	}

	return false
}
