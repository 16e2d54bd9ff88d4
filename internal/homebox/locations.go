package homebox

import (
	"context"
	"net/http"
	"net/url"

	"github.com/Proton-105/homebox-bot/internal/domain"
)

type locationDTO struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Parent      *refDTO `json:"parent,omitempty"`
}

type refDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (l locationDTO) toDomain() domain.Location {
	loc := domain.Location{ID: l.ID, Name: l.Name, Description: l.Description}
	if l.Parent != nil {
		loc.ParentID = l.Parent.ID
	}
	return loc
}

// ListLocations returns every location. The list endpoint does not carry parents.
func (c *Client) ListLocations(ctx context.Context) ([]domain.Location, error) {
	var dtos []locationDTO
	req := request{method: http.MethodGet, path: "/api/v1/locations", want: http.StatusOK, idempotent: true}
	if err := c.call(ctx, "list_locations", req, &dtos); err != nil {
		return nil, err
	}

	out := make([]domain.Location, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toDomain())
	}
	return out, nil
}

// GetLocation returns the full location record including its parent.
func (c *Client) GetLocation(ctx context.Context, id string) (domain.Location, error) {
	var dto locationDTO
	req := request{method: http.MethodGet, path: "/api/v1/locations/" + url.PathEscape(id), want: http.StatusOK, idempotent: true}
	if err := c.call(ctx, "get_location", req, &dto); err != nil {
		return domain.Location{}, err
	}
	return dto.toDomain(), nil
}

// UpdateLocation replaces the whole location record. An empty ParentID detaches the location,
// so callers must pass the record read by GetLocation.
func (c *Client) UpdateLocation(ctx context.Context, loc domain.Location) error {
	payload := map[string]any{
		"id":          loc.ID,
		"name":        loc.Name,
		"description": loc.Description,
		"parentId":    nil,
	}
	if loc.ParentID != "" {
		payload["parentId"] = loc.ParentID
	}

	req, err := jsonRequest(http.MethodPut, "/api/v1/locations/"+url.PathEscape(loc.ID), payload, http.StatusOK)
	if err != nil {
		return err
	}
	return c.call(ctx, "update_location", req, nil)
}
