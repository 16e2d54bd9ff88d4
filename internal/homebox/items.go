package homebox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"

	"github.com/Proton-105/homebox-bot/internal/domain"
	apperrors "github.com/Proton-105/homebox-bot/internal/errors"
)

const maxAttachmentBytes = 20 << 20

type itemDTO struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Location    *refDTO         `json:"location,omitempty"`
	ImageID     string          `json:"imageId,omitempty"`
	Attachments []attachmentDTO `json:"attachments,omitempty"`
}

type attachmentDTO struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Primary bool   `json:"primary"`
}

func (i itemDTO) toDomain() domain.ItemSummary {
	s := domain.ItemSummary{ID: i.ID, Name: i.Name, Description: i.Description, PhotoID: i.ImageID}
	if i.Location != nil {
		s.LocationID = i.Location.ID
		s.LocationName = i.Location.Name
	}
	if s.PhotoID == "" {
		for _, a := range i.Attachments {
			if a.Type == "photo" && (a.Primary || s.PhotoID == "") {
				s.PhotoID = a.ID
			}
		}
	}
	return s
}

// itemPage accepts both the paginated envelope and a bare list.
type itemPage []itemDTO

func (p *itemPage) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		return json.Unmarshal(data, (*[]itemDTO)(p))
	}

	var envelope struct {
		Items []itemDTO `json:"items"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}
	*p = envelope.Items
	return nil
}

// CreateItem creates an item and returns its id.
func (c *Client) CreateItem(ctx context.Context, item domain.NewItem) (string, error) {
	req, err := jsonRequest(http.MethodPost, "/api/v1/items", map[string]any{
		"name":        item.Name,
		"description": item.Description,
		"locationId":  item.LocationID,
		"quantity":    1,
	}, http.StatusCreated)
	if err != nil {
		return "", err
	}

	var created itemDTO
	if err := c.call(ctx, "create_item", req, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", apperrors.NewGatewayError(gatewayName, false, fmt.Errorf("create item: response without id"))
	}

	return created.ID, nil
}

// AttachPhoto uploads data as the item's photo attachment.
func (c *Client) AttachPhoto(ctx context.Context, itemID, filename, mimeType string, data []byte) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("name", filename); err != nil {
		return fmt.Errorf("write name field: %w", err)
	}
	if err := w.WriteField("type", "photo"); err != nil {
		return fmt.Errorf("write type field: %w", err)
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", mimeType)
	part, err := w.CreatePart(header)
	if err != nil {
		return fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("write file part: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}

	req := request{
		method:      http.MethodPost,
		path:        "/api/v1/items/" + url.PathEscape(itemID) + "/attachments",
		body:        buf.Bytes(),
		contentType: w.FormDataContentType(),
		want:        http.StatusCreated,
	}
	return c.call(ctx, "attach_photo", req, nil)
}

// UpdateItem applies the non-nil fields with a read-modify-write of the full item.
func (c *Client) UpdateItem(ctx context.Context, itemID string, fields domain.ItemFields) error {
	path := "/api/v1/items/" + url.PathEscape(itemID)

	var current map[string]any
	if err := c.call(ctx, "get_item", request{method: http.MethodGet, path: path, want: http.StatusOK, idempotent: true}, &current); err != nil {
		return err
	}

	if loc, ok := current["location"].(map[string]any); ok {
		current["locationId"] = loc["id"]
	}
	if labels, ok := current["labels"].([]any); ok {
		ids := make([]any, 0, len(labels))
		for _, l := range labels {
			if m, ok := l.(map[string]any); ok {
				ids = append(ids, m["id"])
			}
		}
		current["labelIds"] = ids
	}

	if fields.Name != nil {
		current["name"] = *fields.Name
	}
	if fields.Description != nil {
		current["description"] = *fields.Description
	}
	if fields.LocationID != nil {
		current["locationId"] = *fields.LocationID
	}

	req, err := jsonRequest(http.MethodPut, path, current, http.StatusOK)
	if err != nil {
		return err
	}
	return c.call(ctx, "update_item", req, nil)
}

// MoveItem files the item under another location.
func (c *Client) MoveItem(ctx context.Context, itemID, locationID string) error {
	return c.UpdateItem(ctx, itemID, domain.ItemFields{LocationID: &locationID})
}

// GetItem returns one item.
func (c *Client) GetItem(ctx context.Context, itemID string) (domain.ItemSummary, error) {
	var dto itemDTO
	req := request{method: http.MethodGet, path: "/api/v1/items/" + url.PathEscape(itemID), want: http.StatusOK, idempotent: true}
	if err := c.call(ctx, "get_item", req, &dto); err != nil {
		return domain.ItemSummary{}, err
	}
	return dto.toDomain(), nil
}

// SearchItems runs a full-text query. page is 1-based.
func (c *Client) SearchItems(ctx context.Context, query string, page, pageSize int) ([]domain.ItemSummary, error) {
	q := url.Values{}
	q.Set("q", query)
	return c.listItems(ctx, "search_items", q, page, pageSize)
}

// ListRecentItems returns the most recently created items.
func (c *Client) ListRecentItems(ctx context.Context, limit int) ([]domain.ItemSummary, error) {
	q := url.Values{}
	q.Set("orderBy", "createdAt")
	return c.listItems(ctx, "recent_items", q, 1, limit)
}

// ItemsByLocation returns the items filed directly under locationID.
func (c *Client) ItemsByLocation(ctx context.Context, locationID string) ([]domain.ItemSummary, error) {
	q := url.Values{}
	q.Set("locations", locationID)
	return c.listItems(ctx, "items_by_location", q, 1, 100)
}

func (c *Client) listItems(ctx context.Context, op string, q url.Values, page, pageSize int) ([]domain.ItemSummary, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(pageSize))

	var items itemPage
	req := request{method: http.MethodGet, path: "/api/v1/items", query: q, want: http.StatusOK, idempotent: true}
	if err := c.call(ctx, op, req, &items); err != nil {
		return nil, err
	}

	out := make([]domain.ItemSummary, 0, len(items))
	for _, i := range items {
		out = append(out, i.toDomain())
	}
	return out, nil
}

// DownloadAttachment returns the attachment bytes.
func (c *Client) DownloadAttachment(ctx context.Context, itemID, attachmentID string) ([]byte, error) {
	var buf limitedBuffer
	req := request{
		method:     http.MethodGet,
		path:       "/api/v1/items/" + url.PathEscape(itemID) + "/attachments/" + url.PathEscape(attachmentID),
		want:       http.StatusOK,
		idempotent: true,
	}
	if err := c.call(ctx, "download_attachment", req, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// limitedBuffer refuses to grow past maxAttachmentBytes and resets between retries.
type limitedBuffer struct {
	bytes.Buffer
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if b.Len()+len(p) > maxAttachmentBytes {
		return 0, fmt.Errorf("attachment exceeds %d bytes", maxAttachmentBytes)
	}
	return b.Buffer.Write(p)
}
