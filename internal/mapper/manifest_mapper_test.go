package mapper

import (
	"testing"

	"github.com/google/uuid"

	"writeup-rag-be/internal/entity"
	"writeup-rag-be/pkg/grouper"
)

func TestSourceItemRoundTrip(t *testing.T) {
	m := NewManifestMapper()

	item := &entity.SourceItem{
		Id:        uuid.New(),
		RunId:     "run_20260826_120000",
		SourceKey: "https://blog.example.com/defcon",
		Stage:     entity.StageCleaned,
		RawPath:   "runs/run_20260826_120000/raw/a.html",
		CleanPath: "runs/run_20260826_120000/clean/a.txt",
	}
	item.Tasks = []*entity.Task{
		{Id: uuid.New(), CtftimeId: "101", TaskName: "baby-pwn", SourceItemId: item.Id},
		{Id: uuid.New(), CtftimeId: "102", TaskName: "baby-rev", SourceItemId: item.Id},
	}

	got := m.ToEntity(m.ToModel(item))
	if got.Id != item.Id || got.RunId != item.RunId || got.Stage != item.Stage {
		t.Errorf("round trip mangled the item: %+v", got)
	}
	if len(got.Tasks) != 2 {
		t.Fatalf("round trip kept %d tasks, want 2", len(got.Tasks))
	}
	for i, task := range got.Tasks {
		if task.Id != item.Tasks[i].Id || task.CtftimeId != item.Tasks[i].CtftimeId {
			t.Errorf("task %d mangled: %+v", i, task)
		}
	}
}

// Grouped tasks must map to rows with distinct, non-zero primary keys; a
// shared zero UUID would make the second task INSERT collide.
func TestMappedTaskRowsHaveDistinctKeys(t *testing.T) {
	tasks := []*entity.Task{
		{CtftimeId: "101", SourceURL: "https://blog.example.com/defcon#baby-pwn"},
		{CtftimeId: "102", SourceURL: "https://blog.example.com/defcon#baby-rev"},
	}
	items := grouper.Group(tasks)
	if len(items) != 1 {
		t.Fatalf("got %d source items, want 1", len(items))
	}

	m := NewManifestMapper()
	row := m.ToModel(items[0])
	if len(row.Tasks) != 2 {
		t.Fatalf("got %d task rows, want 2", len(row.Tasks))
	}
	if row.Tasks[0].Id == uuid.Nil || row.Tasks[1].Id == uuid.Nil {
		t.Errorf("task row has zero primary key: %s, %s", row.Tasks[0].Id, row.Tasks[1].Id)
	}
	if row.Tasks[0].Id == row.Tasks[1].Id {
		t.Errorf("task rows share primary key %s", row.Tasks[0].Id)
	}
}
