package keyboard

import (
	"errors"
	"fmt"
	"strings"
)

const (
	CallbackDataSeparator  = ":"
	CallbackDataLimitBytes = 64
)

// Callback uniques. The payload after the separator is an action, a 1-based page or an ID.
const (
	UniqueAction       = "a"
	UniquePage         = "pg"
	UniquePickLocation = "loc"
	UniqueToggleMarker = "mk"
	UniqueDescribe     = "ds"
	UniqueItem         = "it"

	UniqueSettingsMenu   = "set"
	UniqueSetLanguage    = "lang"
	UniqueSetGenLanguage = "gen"
	UniqueSetModel       = "model"
	UniqueSetFilter      = "flt"
)

// Settings submenus, the payload of UniqueSettingsMenu.
const (
	MenuOverview    = "main"
	MenuLanguage    = "lang"
	MenuGenLanguage = "gen"
	MenuModel       = "model"
	MenuFilter      = "filter"
)

func EncodeCallback(unique, data string) (string, error) {
	if data == "" {
		if len(unique) > CallbackDataLimitBytes {
			return "", fmt.Errorf("callback data exceeds %d byte limit: got %d", CallbackDataLimitBytes, len(unique))
		}
		return unique, nil
	}

	payload := unique + CallbackDataSeparator + data
	if len(payload) > CallbackDataLimitBytes {
		return "", fmt.Errorf("callback data exceeds %d byte limit: got %d", CallbackDataLimitBytes, len(payload))
	}

	return payload, nil
}

func DecodeCallback(callbackData string) (unique, data string, err error) {
	if callbackData == "" {
		return "", "", errors.New("callback data is empty")
	}

	idx := strings.Index(callbackData, CallbackDataSeparator)
	if idx == -1 {
		return callbackData, "", nil
	}

	return callbackData[:idx], callbackData[idx+len(CallbackDataSeparator):], nil
}
