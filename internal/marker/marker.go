// Package marker generates and validates the stable task tokens embedded
// in note files.
//
// A marker is the join key between a checkbox line on disk and a task row
// in the database. It is generated once, when the task is first created
// (from either side), and never changes afterwards. This is what lets the
// writer flip a checkbox without touching the rest of the line, and what
// lets the parser recognize "this line is task X" after the title text has
// been edited.
//
// On disk a marker appears as a trailing HTML comment on its checkbox line:
//
//	- [ ] Draft outline <!-- tracknote:task:ab12cd34 -->
//	- [ ] Hear back from legal <!-- tracknote:task:9f0e1d2c:waiting -->
package marker

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Tag is the fixed namespace prefix for all marker comments.
const Tag = "tracknote"

// Kind identifies the entity kind a marker points at. Tasks are the only
// marked kind today.
const Kind = "task"

// Subtypes that may follow a marker in its comment.
const (
	SubtypeWaiting = "waiting"
	SubtypeSomeday = "someday"
)

// Length of the marker token in hex characters.
const Length = 8

var tokenPattern = regexp.MustCompile(`^[0-9a-f]{8}$`)

// New returns a fresh random marker token.
func New() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:Length]
}

// NewUnique returns a marker token not present in taken. The token space
// is 16^8, so collisions within a single project's task set are rare;
// the loop is the uniqueness guarantee the caller relies on.
func NewUnique(taken map[string]bool) string {
	for {
		m := New()
		if !taken[m] {
			return m
		}
	}
}

// IsValid reports whether s is a well-formed marker token.
func IsValid(s string) bool {
	return tokenPattern.MatchString(s)
}

// Comment renders the trailing comment for a marker. subtype may be empty,
// SubtypeWaiting, or SubtypeSomeday.
func Comment(token, subtype string) string {
	if subtype == "" {
		return fmt.Sprintf("<!-- %s:%s:%s -->", Tag, Kind, token)
	}
	return fmt.Sprintf("<!-- %s:%s:%s:%s -->", Tag, Kind, token, subtype)
}
