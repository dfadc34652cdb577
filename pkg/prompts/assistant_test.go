package prompts

import (
	"strings"
	"testing"

	"github.com/quillio/quill-engine/pkg/schema"
)

func testDescriptors() []schema.Descriptor {
	return []schema.Descriptor{
		{
			Table: "tasks",
			Columns: []schema.Column{
				{Name: "id", DataType: "uuid", IsPrimary: true},
				{Name: "title", DataType: "text"},
				{Name: "project_id", DataType: "uuid"},
			},
			ForeignKeys: []schema.ForeignKey{
				{Column: "project_id", TargetTable: "projects", TargetColumn: "id"},
			},
		},
		{
			Table: "projects",
			Columns: []schema.Column{
				{Name: "id", DataType: "uuid", IsPrimary: true},
				{Name: "name", DataType: "text"},
			},
		},
	}
}

func TestBuildQueryPrompt(t *testing.T) {
	prompt := BuildQueryPrompt(testDescriptors(), "team_id")

	for _, want := range []string{
		"tasks (each row is one task):",
		"projects (each row is one project):",
		"REFERENCES projects(id)",
		"team_id",
		`"is_query": true`,
		"Exactly one SELECT statement",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("query prompt missing %q", want)
		}
	}
}

func TestBuildSynthesisPromptChunkMarkers(t *testing.T) {
	single := BuildSynthesisPrompt("how many tasks?", "count of tasks",
		[]string{"count"}, []string{"count=42"}, 0, 1)
	if strings.Contains(single, "part 1 of 1") {
		t.Error("single-chunk prompt should not mention parts")
	}

	multi := BuildSynthesisPrompt("list tasks", "all tasks",
		[]string{"title"}, []string{"title=fix bug"}, 1, 3)
	if !strings.Contains(multi, "part 2 of 3") {
		t.Error("multi-chunk prompt should carry its part marker")
	}
	if !strings.Contains(multi, "title=fix bug") {
		t.Error("rows missing from synthesis prompt")
	}
}

func TestBuildSuggestionsPromptListsTables(t *testing.T) {
	prompt := BuildSuggestionsPrompt("what is overdue?", "Two tasks are overdue.", testDescriptors())
	if !strings.Contains(prompt, "tasks: id, title, project_id") {
		t.Errorf("suggestions prompt missing table summary:\n%s", prompt)
	}
	if !strings.Contains(prompt, "1. ") {
		t.Error("suggestions prompt missing numbered-list instruction")
	}
}
