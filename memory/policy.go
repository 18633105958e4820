package memory

import (
	"maps"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// DefaultSearchLimit is the Search limit when WithLimit is not given.
	DefaultSearchLimit = 10

	// DefaultListLimit is the List limit when WithLimit is not given.
	DefaultListLimit = 20

	// PreviewLength is the number of characters of content shown in
	// confirmations and log events.
	PreviewLength = 80

	// MetaTimestamp is overwritten on every Store with the current UTC time.
	MetaTimestamp = "timestamp"

	// MetaTags holds the delimiter-joined tag list on backends without
	// native multi-valued fields.
	MetaTags = "tags"

	// TagDelimiter joins tags under MetaTags.
	TagDelimiter = ","

	shortIDLength = 8
)

// ValidateContent rejects content that is empty after trimming.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return Invalidf("content must not be empty")
	}
	return nil
}

// ValidateQuery rejects an empty search query.
func ValidateQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return Invalidf("query must not be empty")
	}
	return nil
}

// ValidateLimit rejects negative limits. Zero is valid and means "no results".
func ValidateLimit(limit int) error {
	if limit < 0 {
		return Invalidf("limit must not be negative (got %d)", limit)
	}
	return nil
}

// ValidateTags rejects blank tags and tags containing TagDelimiter, which
// could not be recovered from the joined form.
func ValidateTags(tags []string) error {
	for _, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			return Invalidf("tags must not be blank")
		}
		if strings.Contains(tag, TagDelimiter) {
			return Invalidf("tag %q must not contain %q", tag, TagDelimiter)
		}
	}
	return nil
}

// StampMetadata returns a copy of md with the reserved fields applied:
// MetaTimestamp is always set to now in UTC ISO-8601 form, and MetaTags is
// set to the joined tag list when tags is non-empty. md is not modified.
func StampMetadata(md map[string]any, tags []string, now time.Time) map[string]any {
	out := make(map[string]any, len(md)+2)
	maps.Copy(out, md)
	out[MetaTimestamp] = now.UTC().Format(time.RFC3339Nano)
	if len(tags) > 0 {
		out[MetaTags] = JoinTags(tags)
	}
	return out
}

// JoinTags serializes tags into the single-field form.
func JoinTags(tags []string) string {
	return strings.Join(tags, TagDelimiter)
}

// SplitTags reverses JoinTags. An empty string yields nil.
func SplitTags(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, TagDelimiter)
}

// Preview returns at most PreviewLength characters of content.
func Preview(content string) string {
	if utf8.RuneCountInString(content) <= PreviewLength {
		return content
	}
	runes := []rune(content)
	return string(runes[:PreviewLength])
}

// ShortID returns the leading fragment of id shown in confirmations.
func ShortID(id string) string {
	if len(id) <= shortIDLength {
		return id
	}
	return id[:shortIDLength]
}

// Confirmation builds the display message returned by Store. The identifier
// fragment is included only when id is known.
func Confirmation(id, content string) string {
	if id == "" {
		return "Memory stored: " + Preview(content) + "..."
	}
	return "Memory stored (ID: " + ShortID(id) + "): " + Preview(content) + "..."
}
