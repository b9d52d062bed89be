package migration

import (
	"strings"
	"time"

	"github.com/agencyboard/backend/internal/domain/board"
)

// boardTypeKeywords maps lowercased name keywords to the platform taxonomy.
// Exact matches win over substring matches; first substring hit in order wins.
var boardTypeKeywords = []struct {
	keyword   string
	boardType board.BoardType
}{
	{"client", board.BoardTypeClientWork},
	{"content", board.BoardTypeContentCalendar},
	{"editorial", board.BoardTypeContentCalendar},
	{"calendar", board.BoardTypeContentCalendar},
	{"sales", board.BoardTypeSalesPipeline},
	{"pipeline", board.BoardTypeSalesPipeline},
	{"leads", board.BoardTypeSalesPipeline},
	{"crm", board.BoardTypeSalesPipeline},
	{"hiring", board.BoardTypeHiring},
	{"recruiting", board.BoardTypeHiring},
	{"candidates", board.BoardTypeHiring},
	{"roadmap", board.BoardTypeRoadmap},
	{"product", board.BoardTypeRoadmap},
	{"retainer", board.BoardTypeRetainer},
}

// SuggestBoardType infers a platform board type from a source board's name.
// Returns false when no keyword matches; the caller decides the fallback.
func SuggestBoardType(name string) (board.BoardType, bool) {
	lowered := strings.ToLower(strings.TrimSpace(name))
	for _, entry := range boardTypeKeywords {
		if lowered == entry.keyword {
			return entry.boardType, true
		}
	}
	for _, entry := range boardTypeKeywords {
		if strings.Contains(lowered, entry.keyword) {
			return entry.boardType, true
		}
	}
	return "", false
}

// listRenames normalizes common source list names to the platform's
// vocabulary. Keys are lowercased.
var listRenames = map[string]string{
	"to do":       "Backlog",
	"todo":        "Backlog",
	"doing":       "In Progress",
	"in progress": "In Progress",
	"review":      "In Review",
	"in review":   "In Review",
	"done":        "Completed",
	"complete":    "Completed",
	"completed":   "Completed",
}

// SuggestListName maps a source list name onto the platform's standard list
// vocabulary, preserving names with no known equivalent.
func SuggestListName(name string) string {
	trimmed := strings.TrimSpace(name)
	if renamed, ok := listRenames[strings.ToLower(trimmed)]; ok {
		return renamed
	}
	return trimmed
}

// DecodeSourceTimestamp recovers an entity's creation time from a source
// identifier. Source IDs are 24 hex characters whose leading 8 encode the
// Unix second of creation. Returns false for IDs that do not fit the format
// or decode to a non-positive instant.
func DecodeSourceTimestamp(sourceID string) (time.Time, bool) {
	if len(sourceID) != 24 {
		return time.Time{}, false
	}
	var seconds int64
	for i := 0; i < 8; i++ {
		c := sourceID[i]
		var v int64
		switch {
		case c >= '0' && c <= '9':
			v = int64(c - '0')
		case c >= 'a' && c <= 'f':
			v = int64(c-'a') + 10
		case c >= 'A' && c <= 'F':
			v = int64(c-'A') + 10
		default:
			return time.Time{}, false
		}
		seconds = seconds<<4 | v
	}
	if seconds <= 0 {
		return time.Time{}, false
	}
	return time.Unix(seconds, 0).UTC(), true
}
