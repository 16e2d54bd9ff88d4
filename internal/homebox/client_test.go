package homebox

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/homebox-bot/internal/domain"
	apperrors "github.com/Proton-105/homebox-bot/internal/errors"
	"github.com/Proton-105/homebox-bot/pkg/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return New(config.HomeBoxConfig{
		URL:           srv.URL + "/",
		Username:      "bot",
		Password:      "secret",
		Timeout:       time.Second,
		RetryAttempts: 2,
		RetryDelay:    time.Millisecond,
	}, testLogger())
}

func loginHandler(t *testing.T, logins *int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "bot", r.PostForm.Get("username"))
		assert.Equal(t, "secret", r.PostForm.Get("password"))
		n := atomic.AddInt32(logins, 1)
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "Bearer t" + string(rune('0'+n))})
	}
}

func TestClient_LoginAndListLocations(t *testing.T) {
	var logins int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/users/login", loginHandler(t, &logins))
	mux.HandleFunc("GET /api/v1/locations", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer t1", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[{"id":"l1","name":"Garage"},{"id":"l2","name":"Attic","description":"dusty"}]`))
	})

	c := newTestClient(t, mux)

	locs, err := c.ListLocations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.Location{{ID: "l1", Name: "Garage"}, {ID: "l2", Name: "Attic", Description: "dusty"}}, locs)

	_, err = c.ListLocations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), logins)
}

func TestClient_ReloginOn401(t *testing.T) {
	var logins int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/users/login", loginHandler(t, &logins))
	mux.HandleFunc("GET /api/v1/locations", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer t1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	})

	c := newTestClient(t, mux)

	_, err := c.ListLocations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), logins)
}

func TestClient_RetriesIdempotentReads(t *testing.T) {
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/users/login", loginHandler(t, new(int32)))
	mux.HandleFunc("GET /api/v1/locations/l1", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"id":"l1","name":"Shelf","description":"old","parent":{"id":"p1","name":"Garage"}}`))
	})

	c := newTestClient(t, mux)

	loc, err := c.GetLocation(context.Background(), "l1")
	require.NoError(t, err)
	assert.Equal(t, domain.Location{ID: "l1", Name: "Shelf", Description: "old", ParentID: "p1"}, loc)
	assert.Equal(t, int32(3), calls)
}

func TestClient_CreateItemAndAttachPhoto(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/users/login", loginHandler(t, new(int32)))
	mux.HandleFunc("POST /api/v1/items", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Winter Boots", body["name"])
		assert.Equal(t, "l2", body["locationId"])
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"item-9"}`))
	})
	mux.HandleFunc("POST /api/v1/items/item-9/attachments", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "photo.jpg", r.FormValue("name"))
		assert.Equal(t, "photo", r.FormValue("type"))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, []byte("jpeg-bytes"), data)
		assert.Equal(t, "image/jpeg", header.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusCreated)
	})

	c := newTestClient(t, mux)

	id, err := c.CreateItem(context.Background(), domain.NewItem{Name: "Winter Boots", Description: "Pair", LocationID: "l2"})
	require.NoError(t, err)
	assert.Equal(t, "item-9", id)

	require.NoError(t, c.AttachPhoto(context.Background(), id, "photo.jpg", "image/jpeg", []byte("jpeg-bytes")))
}

func TestClient_CreateItemFailureIsGatewayError(t *testing.T) {
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/users/login", loginHandler(t, new(int32)))
	mux.HandleFunc("POST /api/v1/items", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	c := newTestClient(t, mux)

	_, err := c.CreateItem(context.Background(), domain.NewItem{Name: "x", LocationID: "l"})
	require.Error(t, err)
	assert.True(t, apperrors.IsGateway(err))

	var status *StatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, http.StatusInternalServerError, status.Status)
	// writes are not retried
	assert.Equal(t, int32(1), calls)
}

func TestClient_UpdateLocationPreservesParent(t *testing.T) {
	var got map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/users/login", loginHandler(t, new(int32)))
	mux.HandleFunc("PUT /api/v1/locations/l1", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{}`))
	})

	c := newTestClient(t, mux)

	require.NoError(t, c.UpdateLocation(context.Background(), domain.Location{ID: "l1", Name: "Shelf", Description: "new", ParentID: "p1"}))
	assert.Equal(t, "p1", got["parentId"])
	assert.Equal(t, "new", got["description"])
	assert.Equal(t, "Shelf", got["name"])
}

func TestClient_MoveItemReadModifyWrite(t *testing.T) {
	var got map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/users/login", loginHandler(t, new(int32)))
	mux.HandleFunc("GET /api/v1/items/i1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"i1","name":"Lamp","description":"desk lamp","quantity":2,"location":{"id":"old","name":"Attic"},"labels":[{"id":"lab1"}]}`))
	})
	mux.HandleFunc("PUT /api/v1/items/i1", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{}`))
	})

	c := newTestClient(t, mux)

	require.NoError(t, c.MoveItem(context.Background(), "i1", "new"))
	assert.Equal(t, "new", got["locationId"])
	assert.Equal(t, "Lamp", got["name"])
	assert.Equal(t, float64(2), got["quantity"])
	assert.Equal(t, []any{"lab1"}, got["labelIds"])
}

func TestClient_SearchItemsAcceptsBothShapes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/users/login", loginHandler(t, new(int32)))
	mux.HandleFunc("GET /api/v1/items", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "lamp" {
			assert.Equal(t, "2", r.URL.Query().Get("page"))
			_, _ = w.Write([]byte(`{"page":2,"items":[{"id":"i1","name":"Lamp","location":{"id":"l1","name":"Attic"},"imageId":"img1"}]}`))
			return
		}
		assert.Equal(t, "l9", r.URL.Query().Get("locations"))
		_, _ = w.Write([]byte(`[{"id":"i2","name":"Box","attachments":[{"id":"a1","type":"photo","primary":true}]}]`))
	})

	c := newTestClient(t, mux)

	items, err := c.SearchItems(context.Background(), "lamp", 2, 5)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, domain.ItemSummary{ID: "i1", Name: "Lamp", LocationID: "l1", LocationName: "Attic", PhotoID: "img1"}, items[0])

	items, err = c.ItemsByLocation(context.Background(), "l9")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "a1", items[0].PhotoID)
}

func TestClient_StaticTokenSkipsLogin(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/users/login", func(w http.ResponseWriter, r *http.Request) {
		t.Error("login must not be called with a static token")
	})
	mux.HandleFunc("GET /api/v1/items/i1/attachments/a1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "raw-token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte("image-bytes"))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := New(config.HomeBoxConfig{URL: srv.URL, Token: "raw-token"}, testLogger())

	data, err := c.DownloadAttachment(context.Background(), "i1", "a1")
	require.NoError(t, err)
	assert.Equal(t, []byte("image-bytes"), data)
}

func TestClient_TimeoutIsGatewayError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/users/login", loginHandler(t, new(int32)))
	mux.HandleFunc("POST /api/v1/items", func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	c := newTestClient(t, mux)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.CreateItem(ctx, domain.NewItem{Name: "x", LocationID: "l"})
	assert.True(t, apperrors.IsGateway(err))
}
