package workflow

import (
	"strings"
	"time"

	"github.com/Proton-105/homebox-bot/internal/domain"
	"github.com/Proton-105/homebox-bot/internal/staging"
	"github.com/Proton-105/homebox-bot/internal/state"
)

// PageSize is the number of locations or items per page.
const PageSize = 8

// EditTarget is the suggestion field a text message will overwrite.
type EditTarget string

const (
	TargetNone        EditTarget = ""
	TargetName        EditTarget = "name"
	TargetDescription EditTarget = "description"
)

// Session is one user's conversation. It is owned by the engine and only
// changed by step under the user's lock.
type Session struct {
	UserID int64
	State  state.State

	// Gen increases whenever an in-flight gateway result must no longer apply.
	Gen uint64
	// Pending is set while the result of a state-defining gateway call is awaited.
	Pending bool

	Photo      *staging.Photo
	Caption    string
	Suggestion domain.Suggestion
	LocationID string
	Previous   *domain.Suggestion
	EditTarget EditTarget
	Candidates []domain.Location

	Locations []domain.Location
	Markers   map[string]bool
	Target    *domain.Location
	Proposal  string

	Query string
	Items []domain.ItemSummary
	Item  *domain.ItemSummary

	Page      int
	UpdatedAt time.Time
}

// reset returns an Idle session with a bumped generation and the effect that releases the staged photo.
func reset(s Session) (Session, []effect) {
	var fx []effect
	if s.Photo != nil {
		fx = append(fx, discardPhoto{photo: *s.Photo})
	}

	return Session{
		UserID:    s.UserID,
		State:     state.StateIdle,
		Gen:       s.Gen + 1,
		UpdatedAt: s.UpdatedAt,
	}, fx
}

func pageCount(n int) int {
	if n <= 0 {
		return 1
	}
	return (n + PageSize - 1) / PageSize
}

func clampPage(page, n int) int {
	if page < 0 {
		return 0
	}
	if last := pageCount(n) - 1; page > last {
		return last
	}
	return page
}

func pageOf[T any](items []T, page int) []T {
	page = clampPage(page, len(items))
	start := page * PageSize
	end := start + PageSize
	if start > len(items) {
		return nil
	}
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func pageActions(page, n int) []Action {
	var out []Action
	if page > 0 {
		out = append(out, ActionPrevPage)
	}
	if page < pageCount(n)-1 {
		out = append(out, ActionNextPage)
	}
	return out
}

func findLocation(locations []domain.Location, id string) (domain.Location, bool) {
	for _, l := range locations {
		if l.ID == id {
			return l, true
		}
	}
	return domain.Location{}, false
}

// matchLocation maps the model's answer onto a candidate: exact name, then case-insensitive,
// then containment either way. Anything else falls back to the first candidate.
func matchLocation(candidates []domain.Location, answer string) domain.Location {
	answer = strings.TrimSpace(answer)
	for _, c := range candidates {
		if c.Name == answer {
			return c
		}
	}

	lower := strings.ToLower(answer)
	for _, c := range candidates {
		if strings.ToLower(c.Name) == lower {
			return c
		}
	}

	if lower != "" {
		for _, c := range candidates {
			name := strings.ToLower(c.Name)
			if name != "" && (strings.Contains(lower, name) || strings.Contains(name, lower)) {
				return c
			}
		}
	}

	return candidates[0]
}

// filterCandidates applies the user's filter mode. Locations absent from markers are unmarked.
func filterCandidates(locations []domain.Location, mode domain.FilterMode, markers map[string]bool) []domain.Location {
	if mode != domain.FilterMarker {
		return locations
	}

	out := make([]domain.Location, 0, len(locations))
	for _, l := range locations {
		if markers[l.ID] {
			out = append(out, l)
		}
	}
	return out
}
