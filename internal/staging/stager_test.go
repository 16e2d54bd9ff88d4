package staging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Proton-105/homebox-bot/internal/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestStager_Validate(t *testing.T) {
	s, err := New(t.TempDir(), 1<<20, testLogger())
	require.NoError(t, err)

	mime, err := s.Validate(pngBytes(t, 8, 8))
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)

	testCases := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "text", data: []byte("definitely not an image")},
		{name: "too large dimensions", data: pngBytes(t, MaxDimension+1, 1)},
		{name: "too many bytes", data: append([]byte{0x89, 'P', 'N', 'G'}, make([]byte, 1<<20)...)},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Validate(tc.data)
			assert.True(t, apperrors.IsValidation(err), "got %v", err)
		})
	}
}

func TestStager_StageReadRemove(t *testing.T) {
	s, err := New(t.TempDir(), 0, testLogger())
	require.NoError(t, err)

	data := pngBytes(t, 4, 4)
	photo, err := s.Stage(42, data)
	require.NoError(t, err)
	assert.Equal(t, "image/png", photo.MIME)
	assert.Contains(t, photo.Name(), "photo_42_")

	got, err := s.Read(photo)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	paths, err := s.List()
	require.NoError(t, err)
	assert.Len(t, paths, 1)

	require.NoError(t, s.Remove(photo))
	require.NoError(t, s.Remove(photo))

	paths, err = s.List()
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestStager_SweepOlderThan(t *testing.T) {
	s, err := New(t.TempDir(), 0, testLogger())
	require.NoError(t, err)

	old, err := s.Stage(1, pngBytes(t, 2, 2))
	require.NoError(t, err)
	fresh, err := s.Stage(2, pngBytes(t, 2, 2))
	require.NoError(t, err)

	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(old.Path, past, past))

	removed, err := s.SweepOlderThan(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(fresh.Path)
	assert.NoError(t, err)
	_, err = os.Stat(old.Path)
	assert.True(t, os.IsNotExist(err))
}
