package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/book-expert/tts-editor/internal/model"
)

// highMarker marks a high-accent mora in typed readings, as in "ト ウ^".
const highMarker = "^"

var (
	// ErrInvalidReading indicates a reading that cannot be parsed.
	ErrInvalidReading = errors.New("invalid reading")
	// ErrInvalidSpeaker indicates an unknown speaker name.
	ErrInvalidSpeaker = errors.New("unknown speaker")
	// ErrInvalidAccent indicates an accent other than high or low.
	ErrInvalidAccent = errors.New("accent must be high or low")
)

// parseReading splits a reading into moras. Each space-separated mora is low
// unless it ends with the high marker.
func parseReading(reading string) ([]model.DictMora, error) {
	fields := strings.Fields(reading)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %q has no moras", ErrInvalidReading, reading)
	}

	moras := make([]model.DictMora, 0, len(fields))
	for _, field := range fields {
		accent := model.AccentLow
		if kana, ok := strings.CutSuffix(field, highMarker); ok {
			field = kana
			accent = model.AccentHigh
		}

		if field == "" {
			return nil, fmt.Errorf("%w: empty mora in %q", ErrInvalidReading, reading)
		}

		moras = append(moras, model.DictMora{Kana: field, Accent: accent})
	}

	return moras, nil
}

func formatReading(moras []model.DictMora) string {
	fields := make([]string, 0, len(moras))
	for _, mora := range moras {
		if mora.Accent == model.AccentHigh {
			fields = append(fields, mora.Kana+highMarker)
		} else {
			fields = append(fields, mora.Kana)
		}
	}

	return strings.Join(fields, " ")
}

// parseSpeaker accepts a speaker id or its display name in any case.
func parseSpeaker(name string) (model.SpeakerID, error) {
	for _, speaker := range model.Speakers {
		if strings.EqualFold(name, string(speaker)) || strings.EqualFold(name, speaker.DisplayName()) {
			return speaker, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrInvalidSpeaker, name)
}

func parseAccent(value string) (model.Accent, error) {
	switch model.Accent(strings.ToLower(value)) {
	case model.AccentHigh:
		return model.AccentHigh, nil
	case model.AccentLow:
		return model.AccentLow, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAccent, value)
	}
}

func parseUnitIndex(value string) (int, error) {
	index, err := strconv.Atoi(value)
	if err != nil {
		return 0, usageError("unit index %q is not a number", value)
	}

	return index, nil
}
