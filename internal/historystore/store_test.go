package historystore

import (
	"testing"
	"time"

	"github.com/jurriaanhof/aico-go/internal/models"
)

func rec(content string) models.HistoryRecord {
	return models.HistoryRecord{
		Role:      models.RoleUser,
		Content:   content,
		Mode:      models.ModeConversation,
		Timestamp: time.Unix(0, 0).UTC(),
	}
}

func TestAppendAssignsSequentialIndices(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	for i, want := range []int{0, 1, 2} {
		got, err := s.Append(rec("msg"))
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if got != want {
			t.Errorf("append %d: got index %d, want %d", i, got, want)
		}
	}
}

func TestAppendCrossesShardBoundary(t *testing.T) {
	dir := t.TempDir()
	s := NewWithShardSize(dir, 2)

	indices := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		idx, err := s.Append(rec("msg"))
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		indices = append(indices, idx)
	}

	want := []int{0, 1, 2, 3, 4}
	for i, w := range want {
		if indices[i] != w {
			t.Errorf("index %d: got %d want %d", i, indices[i], w)
		}
	}
}

func TestReadManyRoundTrips(t *testing.T) {
	dir := t.TempDir()
	s := NewWithShardSize(dir, 3)

	contents := []string{"a", "b", "c", "d", "e", "f", "g"}
	for _, c := range contents {
		if _, err := s.Append(rec(c)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := s.ReadMany([]int{0, 3, 6, 2})
	if err != nil {
		t.Fatalf("read many: %v", err)
	}
	want := []string{"a", "d", "g", "c"}
	for i, w := range want {
		if got[i].Content != w {
			t.Errorf("result %d: got %q want %q", i, got[i].Content, w)
		}
	}
}

func TestReadManyMissingRecordErrors(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	if _, err := s.Append(rec("only")); err != nil {
		t.Fatalf("append: %v", err)
	}

	if _, err := s.ReadMany([]int{5}); err == nil {
		t.Fatal("expected error for missing record")
	}
}

func TestRefreshStateResumesAfterReopen(t *testing.T) {
	dir := t.TempDir()

	s1 := NewWithShardSize(dir, 3)
	for i := 0; i < 4; i++ {
		if _, err := s1.Append(rec("msg")); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	s2 := NewWithShardSize(dir, 3)
	idx, err := s2.Append(rec("next"))
	if err != nil {
		t.Fatalf("append after reopen: %v", err)
	}
	if idx != 4 {
		t.Errorf("got index %d, want 4 (continuing shard 3)", idx)
	}
}
