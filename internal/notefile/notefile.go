// Package notefile parses and writes the structured note format: a YAML
// front-matter header followed by a markdown body whose checkbox lines
// represent tasks.
//
// Parsing is deliberately forgiving. A missing or malformed header
// degrades to empty metadata, and a line that doesn't match the checkbox
// grammar is inert prose. Only an unreadable file is a hard error.
//
// The checkbox grammar is:
//
//	<indent>- [<space|x|X>] <title>[ <!-- tracknote:task:<marker>[:<subtype>] -->]
//
// where <subtype> is "waiting" or "someday". A checkbox line without a
// marker comment is a file-native task not yet linked to the store.
package notefile

import (
	"regexp"
	"strings"
	"time"

	"github.com/tracknote/tracknote/internal/marker"
)

// Metadata is the parsed front-matter header. All fields are optional;
// pointer fields are nil when the key is absent or unparsable.
type Metadata struct {
	ID         *int64
	Title      string
	Status     string
	Priority   *int
	Score      *float64
	TargetDate *time.Time
	LastSynced *time.Time
	Phases     []string
}

// TaskLine is one checkbox line extracted from the body.
type TaskLine struct {
	// Title is the text between the checkbox and the marker comment.
	Title string
	// Checked is true for [x] or [X].
	Checked bool
	// Marker is the embedded token, or empty for an unlinked task.
	Marker string
	// Subtype is "", "waiting", or "someday".
	Subtype string
	// Line is the 1-based line number within the whole file.
	Line int
}

// Document is a fully parsed note file.
type Document struct {
	Meta  Metadata
	Body  string
	Tasks []TaskLine
}

// checkboxPattern matches a checkbox line with an optional trailing
// marker comment. Groups: 1 indent, 2 checked char, 3 title, 4 marker,
// 5 subtype.
var checkboxPattern = regexp.MustCompile(
	`^(\s*)- \[([ xX])\] (.+?)(?:\s*<!--\s*` + marker.Tag + `:` + marker.Kind +
		`:([0-9a-f]{8})(?::(` + marker.SubtypeWaiting + `|` + marker.SubtypeSomeday + `))?\s*-->)?\s*$`)

var headingPattern = regexp.MustCompile(`^#{1,6}\s+(.+?)\s*$`)

// Title returns the document title: the explicit header title if present,
// otherwise the first heading line in the body.
func (d *Document) Title() string {
	if d.Meta.Title != "" {
		return d.Meta.Title
	}
	for _, line := range strings.Split(d.Body, "\n") {
		if m := headingPattern.FindStringSubmatch(line); m != nil {
			return m[1]
		}
	}
	return ""
}

// TaskByMarker returns the task line carrying the given marker, or nil.
func (d *Document) TaskByMarker(mark string) *TaskLine {
	for i := range d.Tasks {
		if d.Tasks[i].Marker == mark {
			return &d.Tasks[i]
		}
	}
	return nil
}
