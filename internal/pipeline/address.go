// Package pipeline turns raw yard records into geocoded rows: each row is
// normalized to a single address line, geocoded behind the shared rate gate,
// and recorded as a success or a classified failure.
package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/yardfinder/internal/model"
)

// DefaultState is appended to every address line.
const DefaultState = "NJ"

var (
	zipPattern = regexp.MustCompile(`\d{5}`)
	// shortZip matches a zip whose leading zeros were dropped by a
	// spreadsheet, optionally stored as a float ("8608.0").
	shortZip = regexp.MustCompile(`^(\d{3,4})(?:\.0+)?$`)
)

// MissingAddressComponentsError means a record has neither a street nor a
// municipality and cannot be sent to the geocoder.
type MissingAddressComponentsError struct {
	Row  int
	Yard string
}

func (e *MissingAddressComponentsError) Error() string {
	return fmt.Sprintf("pipeline: row %d (%q): missing street and municipality", e.Row, e.Yard)
}

// Normalizer builds canonical single-line addresses.
type Normalizer struct {
	state string
}

// NewNormalizer returns a Normalizer using state as the state literal. An
// empty state falls back to DefaultState.
func NewNormalizer(state string) *Normalizer {
	state = cleanComponent(state)
	if state == "" {
		state = DefaultState
	}
	return &Normalizer{state: state}
}

// Normalize returns "street, municipality, state, zip" for rec, skipping empty
// components. A record with neither street nor municipality is a
// MissingAddressComponentsError; the yard name only stands in for a blank
// municipality when a street is present. The output is NFC-normalized with single spaces, so equal inputs always
// produce identical bytes.
func (n *Normalizer) Normalize(rec model.RawAddressRecord) (string, error) {
	street := cleanComponent(rec.Street)
	locality := cleanComponent(rec.Municipality)
	if street == "" && locality == "" {
		return "", &MissingAddressComponentsError{Row: rec.Row, Yard: rec.Yard}
	}
	if locality == "" {
		locality = cleanComponent(rec.Yard)
	}

	parts := make([]string, 0, 4)
	for _, p := range []string{street, locality, n.state, ExtractZip(rec.ZipCode)} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", "), nil
}

// ExtractZip pulls a 5-digit postal code out of a dirty zip field
// ("08608-1234", "NJ 08608", "8608.0"). It returns "" when none is present.
func ExtractZip(raw string) string {
	raw = strings.TrimSpace(norm.NFC.String(raw))
	if m := zipPattern.FindString(raw); m != "" {
		return m
	}
	if m := shortZip.FindStringSubmatch(raw); m != nil {
		return strings.Repeat("0", 5-len(m[1])) + m[1]
	}
	return ""
}

// cleanComponent applies NFC, collapses whitespace and strips stray
// separators at either end.
func cleanComponent(s string) string {
	s = norm.NFC.String(s)
	s = strings.Join(strings.Fields(s), " ")
	return strings.Trim(s, " ,")
}
