// Package domain holds the types shared by the gateways, the store and the workflow engine.
package domain

// Location is a HomeBox storage location. ParentID is empty for top-level locations.
type Location struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ParentID    string `json:"parentId,omitempty"`
}

// Suggestion is the proposed item data the user confirms or edits.
type Suggestion struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

// NewItem is what the workflow submits to the inventory.
type NewItem struct {
	Name        string
	Description string
	LocationID  string
}

// ItemFields is a partial item update; nil fields are left untouched.
type ItemFields struct {
	Name        *string
	Description *string
	LocationID  *string
}

// ItemSummary is an item as listed by search and recent queries.
type ItemSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	LocationID   string `json:"locationId"`
	LocationName string `json:"locationName"`
	PhotoID      string `json:"photoId,omitempty"`
}

// FilterMode decides which locations are offered to the AI and to the user.
type FilterMode string

const (
	FilterUnrestricted FilterMode = "unrestricted"
	FilterMarker       FilterMode = "marker"
)

// Valid reports whether m is a known mode.
func (m FilterMode) Valid() bool {
	return m == FilterUnrestricted || m == FilterMarker
}
