package handlers

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	telebot "gopkg.in/telebot.v3"

	apperrors "github.com/Proton-105/homebox-bot/internal/errors"
	"github.com/Proton-105/homebox-bot/internal/workflow"
)

// Downloader fetches a Telegram file.
type Downloader interface {
	File(file *telebot.File) (io.ReadCloser, error)
}

// NewPhotoHandler downloads the largest photo size and hands it to the workflow.
func NewPhotoHandler(d Dispatcher, files Downloader, maxBytes int64, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		msg := c.Message()
		if msg == nil || msg.Photo == nil || c.Sender() == nil {
			return nil
		}

		data, err := download(files, &msg.Photo.File, maxBytes)
		if err != nil {
			log.Warn("photo download failed", slog.Int64("user_id", c.Sender().ID), slog.Any("error", err))
			return err
		}

		return d.Dispatch(c, workflow.Photo{Data: data, Caption: msg.Caption})
	}
}

// NewDocumentHandler accepts images sent as files, which keeps them uncompressed.
func NewDocumentHandler(d Dispatcher, files Downloader, maxBytes int64, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		msg := c.Message()
		if msg == nil || msg.Document == nil || c.Sender() == nil {
			return nil
		}

		if !strings.HasPrefix(msg.Document.MIME, "image/") {
			return c.Send(T(c).T("notice.invalid_photo"))
		}

		data, err := download(files, &msg.Document.File, maxBytes)
		if err != nil {
			log.Warn("document download failed", slog.Int64("user_id", c.Sender().ID), slog.Any("error", err))
			return err
		}

		return d.Dispatch(c, workflow.Photo{Data: data, Caption: msg.Caption})
	}
}

func download(files Downloader, file *telebot.File, maxBytes int64) ([]byte, error) {
	if maxBytes > 0 && file.FileSize > maxBytes {
		return nil, apperrors.NewValidationError(fmt.Sprintf("file is %d bytes, limit is %d", file.FileSize, maxBytes))
	}

	rc, err := files.File(file)
	if err != nil {
		return nil, apperrors.NewGatewayError("telegram", true, fmt.Errorf("download %s: %w", file.FileID, err))
	}
	defer rc.Close()

	// one byte over the limit is enough for the stager to reject it
	limit := maxBytes + 1
	if maxBytes <= 0 {
		limit = 64 << 20
	}

	data, err := io.ReadAll(io.LimitReader(rc, limit))
	if err != nil {
		return nil, apperrors.NewGatewayError("telegram", true, fmt.Errorf("read %s: %w", file.FileID, err))
	}

	return data, nil
}
