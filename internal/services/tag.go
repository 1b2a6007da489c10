package services

import (
	"regexp"
	"strings"
)

// Rating is the per-message annotation carried inside persisted chat text.
// RatingNone is the absence of a user rating; it persists as the neutral tag
// but never decodes back into a rating.
type Rating string

const (
	RatingLike    Rating = "like"
	RatingDislike Rating = "dislike"
	RatingNone    Rating = ""
)

// tagPattern matches the current trailing bracket tag, tolerating whitespace
// between the text and the tag and after it.
var tagPattern = regexp.MustCompile(`\s*\[TAG:(like|dislike|neutral)\]\s*$`)

// Legacy suffix markers from the first encoding of the protocol. They were
// written with a leading space and may appear anywhere in old rows.
var legacyMarkers = []struct {
	marker string
	rating Rating
}{
	{" #liked", RatingLike},
	{" #disliked", RatingDislike},
	{" #neutral", RatingNone},
}

// WithTag strips any existing tag form from text and appends exactly one
// bracket tag for r. Applying it repeatedly never accumulates tags.
func WithTag(text string, r Rating) string {
	stripped, _ := StripTag(text)
	switch r {
	case RatingLike:
		return stripped + "[TAG:like]"
	case RatingDislike:
		return stripped + "[TAG:dislike]"
	default:
		return stripped + "[TAG:neutral]"
	}
}

// StripTag decodes a stored message into its display text and rating.
// It recognizes the current trailing bracket tag first and falls back to the
// legacy suffix markers. Neutral decodes to RatingNone: neutral is a
// persisted default, not a rating the user chose.
func StripTag(stored string) (string, Rating) {
	if m := tagPattern.FindStringSubmatch(stored); m != nil {
		text := strings.TrimRight(tagPattern.ReplaceAllString(stored, ""), " \t\n")
		switch m[1] {
		case "like":
			return text, RatingLike
		case "dislike":
			return text, RatingDislike
		}
		return text, RatingNone
	}

	rating := RatingNone
	text := stored
	found := false
	for _, lm := range legacyMarkers {
		if strings.Contains(text, lm.marker) {
			if !found && lm.rating != RatingNone {
				rating = lm.rating
				found = true
			}
			text = strings.ReplaceAll(text, lm.marker, "")
		}
	}
	return strings.TrimRight(text, " \t\n"), rating
}
