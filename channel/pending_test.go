package channel

import (
	"errors"
	"sync"
	"testing"
)

func TestTable_ResolveDeliversOnce(t *testing.T) {
	table := NewTable[string]()
	waiter := table.Register(1)

	if !table.Resolve(1, "hello") {
		t.Fatal("Resolve() = false, want true")
	}
	out := <-waiter
	if out.Err != nil {
		t.Fatalf("Outcome.Err = %v, want nil", out.Err)
	}
	if out.Value != "hello" {
		t.Errorf("Outcome.Value = %q, want %q", out.Value, "hello")
	}

	// The entry is gone; a second response for the same id is dropped.
	if table.Resolve(1, "again") {
		t.Error("Resolve() after settle = true, want false")
	}
}

func TestTable_Fail(t *testing.T) {
	table := NewTable[string]()
	waiter := table.Register(7)

	cause := errors.New("boom")
	if !table.Fail(7, cause) {
		t.Fatal("Fail() = false, want true")
	}
	out := <-waiter
	if !errors.Is(out.Err, cause) {
		t.Errorf("Outcome.Err = %v, want %v", out.Err, cause)
	}
}

func TestTable_DiscardDropsLateResponse(t *testing.T) {
	table := NewTable[string]()
	table.Register(3)
	table.Discard(3)

	if table.Resolve(3, "late") {
		t.Error("Resolve() after Discard = true, want false")
	}
	if table.Len() != 0 {
		t.Errorf("Len() = %d, want 0", table.Len())
	}
}

func TestTable_ResolveUnknownID(t *testing.T) {
	table := NewTable[int]()
	if table.Resolve(99, 1) {
		t.Error("Resolve() for unregistered id = true, want false")
	}
}

func TestTable_FailAll(t *testing.T) {
	table := NewTable[int]()
	w1 := table.Register(1)
	w2 := table.Register(2)

	cause := errors.New("connection lost")
	table.FailAll(cause)

	for _, w := range []<-chan Outcome[int]{w1, w2} {
		out := <-w
		if !errors.Is(out.Err, cause) {
			t.Errorf("Outcome.Err = %v, want %v", out.Err, cause)
		}
	}
	if table.Len() != 0 {
		t.Errorf("Len() after FailAll = %d, want 0", table.Len())
	}

	// The table is still usable after a FailAll.
	w3 := table.Register(3)
	table.Resolve(3, 42)
	if out := <-w3; out.Value != 42 {
		t.Errorf("Outcome.Value = %d, want 42", out.Value)
	}
}

func TestTable_ConcurrentSettle(t *testing.T) {
	table := NewTable[uint64]()
	const n = 100

	waiters := make([]<-chan Outcome[uint64], n)
	for i := uint64(0); i < n; i++ {
		waiters[i] = table.Register(i)
	}

	var wg sync.WaitGroup
	for i := uint64(0); i < n; i++ {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			table.Resolve(id, id)
		}(i)
	}
	wg.Wait()

	for i := uint64(0); i < n; i++ {
		out := <-waiters[i]
		if out.Value != i {
			t.Fatalf("waiter %d got value %d", i, out.Value)
		}
	}
}
