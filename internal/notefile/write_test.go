package notefile

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/tracknote/tracknote/internal/store"
)

var renderTime = time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

func testProject() *store.Project {
	target := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	return &store.Project{
		ID:          7,
		Title:       "Website Relaunch",
		Description: "Replace the aging site.",
		Status:      store.ProjectActive,
		Priority:    1,
		Score:       3.46,
		TargetDate:  &target,
		Phases:      []string{"research", "build"},
	}
}

func testTasks() []*store.Task {
	return []*store.Task{
		{ID: 1, Title: "Draft outline", Status: store.TaskNext, IsNextAction: true, Marker: "ab12cd34", Category: store.CategoryAction},
		{ID: 2, Title: "Collect assets", Status: store.TaskInbox, Marker: "9f0e1d2c", Category: store.CategoryAction},
		{ID: 3, Title: "Hear back from legal", Status: store.TaskWaiting, Marker: "11223344", Category: store.CategoryAction},
		{ID: 4, Title: "Pick a stack", Status: store.TaskCompleted, Marker: "deadbeef", Category: store.CategoryAction,
			UpdatedAt: renderTime.Add(-time.Hour)},
	}
}

func TestRenderTemplateRoundTrip(t *testing.T) {
	p := testProject()
	tasks := testTasks()

	out := Render(p, tasks, nil, RenderOptions{Now: renderTime})
	doc := Parse(out)

	if doc.Meta.ID == nil || *doc.Meta.ID != p.ID {
		t.Errorf("round-trip ID = %v, want %d", doc.Meta.ID, p.ID)
	}
	if doc.Meta.Status != string(p.Status) {
		t.Errorf("round-trip status = %q, want %q", doc.Meta.Status, p.Status)
	}
	if doc.Meta.Priority == nil || *doc.Meta.Priority != p.Priority {
		t.Errorf("round-trip priority = %v, want %d", doc.Meta.Priority, p.Priority)
	}
	if doc.Meta.Score == nil || *doc.Meta.Score != 3.5 {
		t.Errorf("round-trip score = %v, want rounded 3.5", doc.Meta.Score)
	}
	if doc.Title() != p.Title {
		t.Errorf("round-trip title = %q, want %q", doc.Title(), p.Title)
	}

	if len(doc.Tasks) != len(tasks) {
		t.Fatalf("round-trip yielded %d tasks, want %d", len(doc.Tasks), len(tasks))
	}
	byMarker := make(map[string]TaskLine)
	for _, tl := range doc.Tasks {
		byMarker[tl.Marker] = tl
	}
	for _, task := range tasks {
		tl, ok := byMarker[task.Marker]
		if !ok {
			t.Errorf("task %q missing from rendered file", task.Title)
			continue
		}
		if tl.Title != task.Title {
			t.Errorf("task %s title = %q, want %q", task.Marker, tl.Title, task.Title)
		}
		if tl.Checked != task.Completed() {
			t.Errorf("task %s checked = %v, want %v", task.Marker, tl.Checked, task.Completed())
		}
	}
}

func TestRenderTemplateSections(t *testing.T) {
	out := string(Render(testProject(), testTasks(), nil, RenderOptions{Now: renderTime}))

	for _, section := range []string{"## Next Actions", "## Tasks", "## Waiting For", "## Completed"} {
		if !strings.Contains(out, section) {
			t.Errorf("rendered file missing section %q", section)
		}
	}
	if !strings.Contains(out, "- [ ] Hear back from legal <!-- tracknote:task:11223344:waiting -->") {
		t.Errorf("waiting task not rendered with waiting subtype:\n%s", out)
	}
	if !strings.Contains(out, "- [x] Pick a stack <!-- tracknote:task:deadbeef -->") {
		t.Errorf("completed task not rendered checked:\n%s", out)
	}
	if !strings.Contains(out, "Replace the aging site.") {
		t.Error("description missing from rendered body")
	}
}

func TestRenderOmitsEmptySections(t *testing.T) {
	tasks := []*store.Task{
		{ID: 1, Title: "Only task", Status: store.TaskInbox, Marker: "ab12cd34", Category: store.CategoryAction},
	}
	out := string(Render(testProject(), tasks, nil, RenderOptions{Now: renderTime}))

	if strings.Contains(out, "## Waiting For") || strings.Contains(out, "## Completed") {
		t.Errorf("empty sections should be omitted:\n%s", out)
	}
	if !strings.Contains(out, "## Tasks") {
		t.Error("Tasks section missing")
	}
}

func TestRenderCompletedLimit(t *testing.T) {
	var tasks []*store.Task
	for i := 0; i < 15; i++ {
		tasks = append(tasks, &store.Task{
			ID:        int64(i + 1),
			Title:     "Done",
			Status:    store.TaskCompleted,
			Marker:    Hash([]byte{byte(i)})[:8],
			Category:  store.CategoryAction,
			UpdatedAt: renderTime.Add(-time.Duration(i) * time.Minute),
		})
	}

	out := string(Render(testProject(), tasks, nil, RenderOptions{Now: renderTime, CompletedLimit: 5}))
	if got := strings.Count(out, "- [x]"); got != 5 {
		t.Errorf("rendered %d completed tasks, want 5", got)
	}
}

func TestRenderDeterministic(t *testing.T) {
	p := testProject()
	tasks := testTasks()

	first := Render(p, tasks, nil, RenderOptions{Now: renderTime})
	second := Render(p, tasks, nil, RenderOptions{Now: renderTime})
	if !bytes.Equal(first, second) {
		t.Error("rendering the same state twice produced different bytes")
	}

	// Preservation mode must be deterministic too.
	third := Render(p, tasks, first, RenderOptions{PreserveBody: true, Now: renderTime})
	fourth := Render(p, tasks, first, RenderOptions{PreserveBody: true, Now: renderTime})
	if !bytes.Equal(third, fourth) {
		t.Error("preserving render produced different bytes across runs")
	}
}

func TestRenderPreservesBodyAndFlipsCheckbox(t *testing.T) {
	prior := []byte(`---
id: 7
status: active
priority: 1
score: 3.5
last_synced: 2026-08-20T10:00:00Z
---
# Website Relaunch

Hand-written prose that must survive untouched.

- [ ] Draft outline <!-- tracknote:task:ab12cd34 -->
- [ ] Unlinked scribble
random trailing prose
`)

	p := testProject()
	tasks := []*store.Task{
		{ID: 1, Title: "Draft outline", Status: store.TaskCompleted, Marker: "ab12cd34", Category: store.CategoryAction},
	}

	out := Render(p, tasks, prior, RenderOptions{PreserveBody: true, Now: renderTime})

	if !strings.Contains(string(out), "- [x] Draft outline <!-- tracknote:task:ab12cd34 -->") {
		t.Errorf("checkbox not flipped:\n%s", out)
	}
	if !strings.Contains(string(out), "Hand-written prose that must survive untouched.") {
		t.Error("prose dropped")
	}
	if !strings.Contains(string(out), "- [ ] Unlinked scribble") {
		t.Error("unlinked checkbox was altered")
	}
	if !strings.Contains(string(out), "random trailing prose") {
		t.Error("trailing prose dropped")
	}

	// The body must differ from the prior body by exactly one byte: the
	// space inside the rewritten checkbox becoming an x.
	_, priorBody, _ := splitFrontMatter(string(prior))
	_, newBody, _ := splitFrontMatter(string(out))
	if got, want := newBody, strings.Replace(priorBody, "- [ ] Draft outline", "- [x] Draft outline", 1); got != want {
		t.Errorf("body changed beyond the checkbox:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestRenderMarkerStability(t *testing.T) {
	p := testProject()
	tasks := testTasks()

	first := Render(p, tasks, nil, RenderOptions{Now: renderTime})

	// Complete one task and re-render preserving the body.
	tasks[0].Status = store.TaskCompleted
	second := Render(p, tasks, first, RenderOptions{PreserveBody: true, Now: renderTime})

	doc := Parse(second)
	tl := doc.TaskByMarker("ab12cd34")
	if tl == nil {
		t.Fatal("marker ab12cd34 lost across rewrite")
	}
	if !tl.Checked {
		t.Error("completed task not checked after rewrite")
	}

	// Unrelated lines must be byte-identical.
	firstLines := strings.Split(string(first), "\n")
	secondLines := strings.Split(string(second), "\n")
	if len(firstLines) != len(secondLines) {
		t.Fatalf("line count changed: %d -> %d", len(firstLines), len(secondLines))
	}
	for i := range firstLines {
		if strings.Contains(firstLines[i], "ab12cd34") {
			continue
		}
		if firstLines[i] != secondLines[i] {
			t.Errorf("unrelated line %d changed: %q -> %q", i+1, firstLines[i], secondLines[i])
		}
	}
}

func TestHash(t *testing.T) {
	h := Hash([]byte("hello"))
	if len(h) != 64 {
		t.Errorf("Hash length = %d, want 64", len(h))
	}
	if h != Hash([]byte("hello")) {
		t.Error("Hash is not stable")
	}
	if h == Hash([]byte("hello!")) {
		t.Error("different content hashed equal")
	}
}
