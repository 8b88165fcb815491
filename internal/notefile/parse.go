package notefile

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// frontMatterDelimiter marks the start and end of the header block.
const frontMatterDelimiter = "---"

// rawHeader is the YAML shape of the front-matter block. Dates stay
// strings here so one bad value degrades to nil instead of failing the
// whole header.
type rawHeader struct {
	ID         *int64   `yaml:"id"`
	Title      string   `yaml:"title"`
	Status     string   `yaml:"status"`
	Priority   *int     `yaml:"priority"`
	Score      *float64 `yaml:"score"`
	TargetDate string   `yaml:"target_date"`
	LastSynced string   `yaml:"last_synced"`
	Phases     []string `yaml:"phases"`
}

// ReadFile reads and parses a note file. An unreadable file is the only
// hard error; malformed content degrades per Parse.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read note file %s: %w", path, err)
	}
	return Parse(data), nil
}

// Parse parses note file content. It never fails: a missing or malformed
// header yields empty metadata, and lines that don't match the checkbox
// grammar are left as prose.
func Parse(data []byte) *Document {
	header, body, bodyStart := splitFrontMatter(string(data))

	doc := &Document{
		Meta: parseHeader(header),
		Body: body,
	}

	for i, line := range strings.Split(body, "\n") {
		m := checkboxPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		doc.Tasks = append(doc.Tasks, TaskLine{
			Title:   m[3],
			Checked: m[2] == "x" || m[2] == "X",
			Marker:  m[4],
			Subtype: m[5],
			Line:    bodyStart + i,
		})
	}

	return doc
}

// splitFrontMatter separates the header block from the body. Returns the
// raw header text (without delimiters), the body, and the 1-based line
// number of the body's first line. Content without a complete delimited
// header is all body.
func splitFrontMatter(content string) (header, body string, bodyStart int) {
	lines := strings.Split(content, "\n")
	if len(lines) == 0 || strings.TrimRight(lines[0], "\r") != frontMatterDelimiter {
		return "", content, 1
	}

	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], "\r") == frontMatterDelimiter {
			header = strings.Join(lines[1:i], "\n")
			body = strings.Join(lines[i+1:], "\n")
			return header, body, i + 2
		}
	}

	// Opening delimiter with no close: treat everything as body rather
	// than swallowing the file into a broken header.
	return "", content, 1
}

// parseHeader decodes the YAML header. Any decode failure degrades to
// empty metadata; individual bad date values degrade to nil fields.
func parseHeader(header string) Metadata {
	if strings.TrimSpace(header) == "" {
		return Metadata{}
	}

	var raw rawHeader
	if err := yaml.Unmarshal([]byte(header), &raw); err != nil {
		return Metadata{}
	}

	meta := Metadata{
		ID:       raw.ID,
		Title:    raw.Title,
		Status:   raw.Status,
		Priority: raw.Priority,
		Score:    raw.Score,
		Phases:   raw.Phases,
	}
	if raw.TargetDate != "" {
		if d, err := time.Parse("2006-01-02", raw.TargetDate); err == nil {
			meta.TargetDate = &d
		}
	}
	if raw.LastSynced != "" {
		if ts, err := time.Parse(time.RFC3339, raw.LastSynced); err == nil {
			meta.LastSynced = &ts
		}
	}
	return meta
}
