package peer

import "testing"

func TestEventSchedulerFiresInDueOrder(t *testing.T) {
	s := newEventScheduler()
	var order []string

	s.Schedule(300, func() { order = append(order, "c") })
	s.Schedule(100, func() { order = append(order, "a") })
	s.Schedule(200, func() { order = append(order, "b") })

	s.Drain(250)
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("expected [a b] fired by t=250, got %v", order)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 event still pending, got %d", s.Len())
	}

	s.Drain(300)
	if len(order) != 3 || order[2] != "c" {
		t.Fatalf("expected c to fire by t=300, got %v", order)
	}
	if s.Len() != 0 {
		t.Fatalf("expected scheduler drained, got %d remaining", s.Len())
	}
}

func TestEventSchedulerTiebreaksByScheduleOrder(t *testing.T) {
	s := newEventScheduler()
	var order []int

	for i := 0; i < 5; i++ {
		i := i
		s.Schedule(50, func() { order = append(order, i) })
	}
	s.Drain(50)

	for i, v := range order {
		if v != i {
			t.Fatalf("expected fire order %v, got %v", []int{0, 1, 2, 3, 4}, order)
		}
	}
}
