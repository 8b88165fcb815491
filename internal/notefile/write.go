package notefile

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tracknote/tracknote/internal/marker"
	"github.com/tracknote/tracknote/internal/store"
)

// DefaultCompletedLimit caps the Completed section of a generated body.
const DefaultCompletedLimit = 10

// RenderOptions controls how Render produces file content.
type RenderOptions struct {
	// PreserveBody keeps the prior body verbatim, rewriting only the
	// checked state of checkbox lines whose marker matches a task.
	// Ignored when there is no prior content.
	PreserveBody bool
	// CompletedLimit caps the Completed section when generating a fresh
	// body. Zero means DefaultCompletedLimit.
	CompletedLimit int
	// Now is the timestamp written to the last_synced header field. It is
	// the only non-deterministic input; callers fix it for reproducible
	// output.
	Now time.Time
}

// writtenHeader is the YAML shape Render emits. Field order here is the
// on-disk key order.
type writtenHeader struct {
	ID         int64    `yaml:"id"`
	Status     string   `yaml:"status"`
	Priority   int      `yaml:"priority"`
	Score      float64  `yaml:"score"`
	TargetDate string   `yaml:"target_date,omitempty"`
	LastSynced string   `yaml:"last_synced"`
	Phases     []string `yaml:"phases,omitempty"`
}

// Render produces file content for a project and its tasks.
//
// The header is always regenerated from current entity state. The body is
// either the prior body with marker-matched checkbox states rewritten
// (PreserveBody with prior content) or a generated template grouping
// tasks into Next Actions, Tasks, Waiting For, and Completed sections.
func Render(p *store.Project, tasks []*store.Task, prior []byte, opts RenderOptions) []byte {
	var body string
	if opts.PreserveBody && len(prior) > 0 {
		_, priorBody, _ := splitFrontMatter(string(prior))
		body = rewriteCheckboxes(priorBody, tasks)
	} else {
		body = generateBody(p, tasks, opts.completedLimit())
	}

	var b strings.Builder
	b.WriteString(renderHeader(p, opts.Now))
	b.WriteString(body)
	return []byte(b.String())
}

func (o RenderOptions) completedLimit() int {
	if o.CompletedLimit > 0 {
		return o.CompletedLimit
	}
	return DefaultCompletedLimit
}

func renderHeader(p *store.Project, now time.Time) string {
	h := writtenHeader{
		ID:         p.ID,
		Status:     string(p.Status),
		Priority:   p.Priority,
		Score:      math.Round(p.Score*10) / 10,
		LastSynced: now.UTC().Format(time.RFC3339),
		Phases:     p.Phases,
	}
	if p.TargetDate != nil {
		h.TargetDate = p.TargetDate.Format("2006-01-02")
	}

	out, err := yaml.Marshal(&h)
	if err != nil {
		// A flat struct of scalars and strings cannot fail to marshal.
		panic(fmt.Sprintf("notefile: header marshal: %v", err))
	}
	return frontMatterDelimiter + "\n" + string(out) + frontMatterDelimiter + "\n"
}

// rewriteCheckboxes returns body with the checked state of marker-matched
// checkbox lines updated to each task's completion status. Every other
// byte of the body is preserved.
func rewriteCheckboxes(body string, tasks []*store.Task) string {
	byMarker := make(map[string]*store.Task, len(tasks))
	for _, t := range tasks {
		byMarker[t.Marker] = t
	}

	lines := strings.Split(body, "\n")
	for i, line := range lines {
		loc := checkboxPattern.FindStringSubmatchIndex(line)
		if loc == nil || loc[8] < 0 {
			continue // prose, or an unlinked checkbox
		}
		task, ok := byMarker[line[loc[8]:loc[9]]]
		if !ok {
			continue
		}
		mark := " "
		if task.Completed() {
			mark = "x"
		}
		// loc[4]:loc[5] is the single character inside the brackets.
		lines[i] = line[:loc[4]] + mark + line[loc[5]:]
	}
	return strings.Join(lines, "\n")
}

// generateBody renders the full template for a project with no prior
// file content.
func generateBody(p *store.Project, tasks []*store.Task, completedLimit int) string {
	var next, open, waiting, completed []*store.Task
	for _, t := range tasks {
		switch {
		case t.Completed():
			completed = append(completed, t)
		case t.Status == store.TaskWaiting:
			waiting = append(waiting, t)
		case t.IsNextAction:
			next = append(next, t)
		default:
			open = append(open, t)
		}
	}

	// Most recently finished first; ties broken by id so output is stable.
	sort.SliceStable(completed, func(i, j int) bool {
		if !completed[i].UpdatedAt.Equal(completed[j].UpdatedAt) {
			return completed[i].UpdatedAt.After(completed[j].UpdatedAt)
		}
		return completed[i].ID > completed[j].ID
	})
	if len(completed) > completedLimit {
		completed = completed[:completedLimit]
	}

	var b strings.Builder
	b.WriteString("# " + p.Title + "\n")
	if p.Description != "" {
		b.WriteString("\n" + p.Description + "\n")
	}

	writeSection(&b, "Next Actions", next)
	writeSection(&b, "Tasks", open)
	writeSection(&b, "Waiting For", waiting)
	writeSection(&b, "Completed", completed)

	return b.String()
}

func writeSection(b *strings.Builder, title string, tasks []*store.Task) {
	if len(tasks) == 0 {
		return
	}
	b.WriteString("\n## " + title + "\n\n")
	for _, t := range tasks {
		b.WriteString(renderTaskLine(t) + "\n")
	}
}

func renderTaskLine(t *store.Task) string {
	mark := " "
	if t.Completed() {
		mark = "x"
	}

	subtype := ""
	switch {
	case t.Status == store.TaskWaiting:
		subtype = marker.SubtypeWaiting
	case t.Category == store.CategorySomeday:
		subtype = marker.SubtypeSomeday
	}

	return fmt.Sprintf("- [%s] %s %s", mark, t.Title, marker.Comment(t.Marker, subtype))
}
