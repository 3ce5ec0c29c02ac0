package queue

import (
	"sync"
	"testing"
)

type testItem struct {
	ID   int
	Name string
}

func TestQueue_New(t *testing.T) {
	q := New[testItem]()
	if q == nil {
		t.Fatal("expected non-nil queue")
	}
	if !q.Empty() {
		t.Error("expected empty queue")
	}
}

func TestQueue_PushPop(t *testing.T) {
	q := New[testItem]()

	if _, ok := q.Pop(); ok {
		t.Error("expected Pop on empty queue to report false")
	}

	q.Push(testItem{ID: 1, Name: "first"}, testItem{ID: 2, Name: "second"})
	first, ok := q.Pop()
	if !ok || first.ID != 1 || first.Name != "first" {
		t.Errorf("expected {1, first}, got %+v (ok=%v)", first, ok)
	}
	if q.Len() != 1 {
		t.Errorf("expected length 1, got %d", q.Len())
	}
}

func TestQueue_Drain(t *testing.T) {
	tests := []struct {
		name     string
		pushed   int
		max      int
		wantOut  int
		wantLeft int
	}{
		{"all", 5, 0, 5, 0},
		{"negative means all", 5, -1, 5, 0},
		{"limited", 5, 2, 2, 3},
		{"limit above length", 3, 10, 3, 0},
		{"empty", 0, 4, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := New[int]()
			for i := range tt.pushed {
				q.Push(i)
			}

			out := q.Drain(tt.max)
			if len(out) != tt.wantOut {
				t.Errorf("expected %d drained, got %d", tt.wantOut, len(out))
			}
			for i, v := range out {
				if v != i {
					t.Errorf("out[%d] = %d, want %d", i, v, i)
				}
			}
			if q.Len() != tt.wantLeft {
				t.Errorf("expected %d left, got %d", tt.wantLeft, q.Len())
			}
		})
	}
}

func TestQueue_DrainReturnsCopy(t *testing.T) {
	q := New[int]()
	q.Push(1, 2, 3)

	out := q.Drain(2)
	out[0] = 99
	q.Push(4)

	rest := q.Drain(0)
	if len(rest) != 2 || rest[0] != 3 || rest[1] != 4 {
		t.Errorf("expected [3 4], got %v", rest)
	}
}

func TestQueue_Requeue(t *testing.T) {
	q := New[int]()
	q.Push(1, 2)

	batch := q.Drain(0)
	q.Push(3)
	q.Requeue(batch)

	got := q.Drain(0)
	want := []int{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %d, want %d", i, got[i], want[i])
		}
	}

	q.Requeue(nil)
	if !q.Empty() {
		t.Error("requeue of nothing should leave queue empty")
	}
}

func TestQueue_ConcurrentPush(t *testing.T) {
	q := New[int]()
	var wg sync.WaitGroup

	for g := range 10 {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := range 100 {
				q.Push(g*100 + i)
			}
		}(g)
	}
	wg.Wait()

	if q.Len() != 1000 {
		t.Errorf("expected 1000 items, got %d", q.Len())
	}
}
