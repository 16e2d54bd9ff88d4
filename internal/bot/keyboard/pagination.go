package keyboard

import (
	"fmt"
	"strconv"

	"github.com/Proton-105/homebox-bot/internal/i18n"
)

// PaginationButtons is the navigation row of a paged list: an optional previous
// button, the current position and an optional next button. page is 1-based and
// clamped to [1, totalPages]; each button carries the page it leads to.
func PaginationButtons(t i18n.Translator, unique string, page, totalPages int) []InlineButton {
	totalPages = max(totalPages, 1)
	page = min(max(page, 1), totalPages)

	nav := func(text string, target int) InlineButton {
		return InlineButton{Text: text, Unique: unique, Data: strconv.Itoa(target)}
	}

	row := make([]InlineButton, 0, 3)
	if page > 1 {
		row = append(row, nav(lookup(t, "pagination.prev", "◀️ Prev"), page-1))
	}
	row = append(row, nav(position(t, page, totalPages), page))
	if page < totalPages {
		row = append(row, nav(lookup(t, "pagination.next", "Next ▶️"), page+1))
	}
	return row
}

// lookup treats an untranslated key as missing.
func lookup(t i18n.Translator, key, fallback string) string {
	if t == nil {
		return fallback
	}
	if text := t.T(key); text != "" && text != key {
		return text
	}
	return fallback
}

func position(t i18n.Translator, page, total int) string {
	if lookup(t, "pagination.page", "") == "" {
		return fmt.Sprintf("Page %d/%d", page, total)
	}
	return t.Tf("pagination.page", map[string]any{"Page": page, "Total": total})
}
