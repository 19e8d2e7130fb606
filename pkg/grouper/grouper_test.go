package grouper

import (
	"testing"

	"github.com/google/uuid"

	"writeup-rag-be/internal/entity"
)

func TestSourceKey(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{
			name: "plain url unchanged",
			url:  "https://ctftime.org/writeup/39112",
			want: "https://ctftime.org/writeup/39112",
		},
		{
			name: "fragment dropped",
			url:  "https://blog.example.com/htb-2025#task-web-3",
			want: "https://blog.example.com/htb-2025",
		},
		{
			name: "query preserved",
			url:  "https://blog.example.com/post?id=7#solution",
			want: "https://blog.example.com/post?id=7",
		},
		{
			name: "surrounding whitespace trimmed",
			url:  "  https://ctftime.org/writeup/39112\n",
			want: "https://ctftime.org/writeup/39112",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SourceKey(tt.url); got != tt.want {
				t.Errorf("SourceKey(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestGroupFanOut(t *testing.T) {
	tasks := []*entity.Task{
		{CtftimeId: "101", TaskName: "baby-pwn", SourceURL: "https://blog.example.com/defcon#baby-pwn"},
		{CtftimeId: "102", TaskName: "baby-rev", SourceURL: "https://blog.example.com/defcon#baby-rev"},
		{CtftimeId: "103", TaskName: "notes", SourceURL: "https://ctftime.org/writeup/39112"},
		{CtftimeId: "104", TaskName: "ghost", SourceURL: "   "},
	}

	items := Group(tasks)
	if len(items) != 2 {
		t.Fatalf("got %d source items, want 2", len(items))
	}

	// Output is sorted by source key.
	if items[0].SourceKey != "https://blog.example.com/defcon" {
		t.Errorf("items[0].SourceKey = %q", items[0].SourceKey)
	}
	if items[1].SourceKey != "https://ctftime.org/writeup/39112" {
		t.Errorf("items[1].SourceKey = %q", items[1].SourceKey)
	}

	if len(items[0].Tasks) != 2 {
		t.Fatalf("shared document got %d tasks, want 2", len(items[0].Tasks))
	}
	for _, task := range items[0].Tasks {
		if task.SourceItemId != items[0].Id {
			t.Errorf("task %s not linked to its source item", task.CtftimeId)
		}
	}
	if len(items[1].Tasks) != 1 || items[1].Tasks[0].CtftimeId != "103" {
		t.Errorf("unexpected tasks on second item: %+v", items[1].Tasks)
	}

	for _, item := range items {
		if item.Stage != entity.StageDiscovered {
			t.Errorf("item %s starts at %q, want discovered", item.SourceKey, item.Stage)
		}
	}
}

func TestGroupAssignsDistinctTaskIds(t *testing.T) {
	tasks := []*entity.Task{
		{CtftimeId: "101", SourceURL: "https://blog.example.com/defcon#baby-pwn"},
		{CtftimeId: "102", SourceURL: "https://blog.example.com/defcon#baby-rev"},
		{CtftimeId: "103", SourceURL: "https://ctftime.org/writeup/39112"},
	}

	Group(tasks)

	seen := make(map[uuid.UUID]string)
	for _, task := range tasks {
		if task.Id == uuid.Nil {
			t.Errorf("task %s kept the zero id", task.CtftimeId)
		}
		if other, ok := seen[task.Id]; ok {
			t.Errorf("tasks %s and %s share id %s", other, task.CtftimeId, task.Id)
		}
		seen[task.Id] = task.CtftimeId
	}
}

func TestGroupKeepsExistingTaskId(t *testing.T) {
	id := uuid.New()
	tasks := []*entity.Task{
		{Id: id, CtftimeId: "101", SourceURL: "https://ctftime.org/writeup/39112"},
	}

	Group(tasks)
	if tasks[0].Id != id {
		t.Errorf("task id changed from %s to %s", id, tasks[0].Id)
	}
}

func TestGroupEmptyInput(t *testing.T) {
	if items := Group(nil); len(items) != 0 {
		t.Errorf("Group(nil) returned %d items", len(items))
	}
}
