package containers

import (
	"errors"
	"testing"
)

func TestRingQueueFIFO(t *testing.T) {
	q := NewRingQueue[int](3)
	for i := 1; i <= 3; i++ {
		q.Enqueue(i)
	}
	if !q.IsFull() {
		t.Fatal("queue should be full")
	}
	if v, _ := q.Dequeue(); v != 1 {
		t.Fatalf("Dequeue() = %d", v)
	}
	q.Enqueue(4)
	for want := 2; want <= 4; want++ {
		v, err := q.Dequeue()
		if err != nil || v != want {
			t.Fatalf("Dequeue() = %d, %v, want %d", v, err, want)
		}
	}
	if _, err := q.Dequeue(); !errors.Is(err, ErrQueueEmpty) {
		t.Fatalf("empty dequeue got %v", err)
	}
}

func TestRingQueueGrowsKeepingOrder(t *testing.T) {
	q := NewRingQueue[string](2)
	q.Enqueue("a")
	q.Enqueue("b")
	q.Dequeue()
	q.Enqueue("c") // wrapped
	q.Enqueue("d") // grows
	if q.Cap() != 4 || q.Len() != 3 {
		t.Fatalf("cap %d len %d", q.Cap(), q.Len())
	}
	for _, want := range []string{"b", "c", "d"} {
		if v, _ := q.Dequeue(); v != want {
			t.Fatalf("got %s, want %s", v, want)
		}
	}
	if _, err := q.Peek(); err == nil {
		t.Fatal("peek on empty queue succeeded")
	}
}
