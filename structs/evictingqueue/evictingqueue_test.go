package evictingqueue

import (
	"sync"
	"testing"
	"time"
)

func TestSimpleAdd(t *testing.T) {
	queue := New[string](3)

	if size := queue.Len(); size != 0 {
		t.Errorf("The queue should have a length of 0, but instead had a length of %d.", size)
	}

	for _, v := range []string{"One", "Two", "Three"} {
		if _, evicted := queue.Add(v); evicted {
			t.Errorf("Nothing should have been evicted when adding %q.", v)
		}
	}

	if size := queue.Len(); size != 3 {
		t.Errorf("The queue should have a length of 3, but instead had a length of %d.", size)
	}

	for i, expected := range []string{"One", "Two", "Three"} {
		if val, _ := queue.Get(i); val != expected {
			t.Errorf("Expected %q at position %d, but found %q.", expected, i, val)
		}
	}
}

func TestEvictingAdd(t *testing.T) {
	queue := New[string](3)

	queue.Add("One")
	queue.Add("Two")
	queue.Add("Three")

	evicted, ok := queue.Add("Four")
	if !ok || evicted != "One" {
		t.Errorf("Expected \"One\" to be evicted, but got %q (evicted: %t).", evicted, ok)
	}

	if size := queue.Len(); size != 3 {
		t.Errorf("The queue should have a length of 3, but instead had a length of %d.", size)
	}

	for i, expected := range []string{"Two", "Three", "Four"} {
		if val, _ := queue.Get(i); val != expected {
			t.Errorf("Expected %q at position %d, but found %q.", expected, i, val)
		}
	}
}

func TestGetOutOfRange(t *testing.T) {
	queue := New[int](2)
	queue.Add(1)

	for _, index := range []int{-1, 1, 2} {
		if _, ok := queue.Get(index); ok {
			t.Errorf("Index %d should have been out-of-range.", index)
		}
	}
}

func TestPollPreservesOrder(t *testing.T) {
	queue := New[int](5)

	for i := 0; i < 8; i++ {
		queue.Add(i)
	}

	for expected := 3; expected < 8; expected++ {
		val, ok := queue.Poll()
		if !ok || val != expected {
			t.Errorf("Expected to poll %d, but got %d (ok: %t).", expected, val, ok)
		}
	}

	if _, ok := queue.Poll(); ok {
		t.Errorf("The queue should have been empty.")
	}
}

func TestClear(t *testing.T) {
	queue := New[int](4)
	queue.Add(1)
	queue.Add(2)

	if n := queue.Clear(); n != 2 {
		t.Errorf("Expected to clear 2 elements, but cleared %d.", n)
	}

	if size := queue.Len(); size != 0 {
		t.Errorf("The queue should have been empty, but had a length of %d.", size)
	}
}

func TestMinimumSize(t *testing.T) {
	queue := New[int](0)

	queue.Add(1)
	queue.Add(2)

	if size := queue.Cap(); size != 1 {
		t.Errorf("The queue should have a capacity of 1, but had a capacity of %d.", size)
	}

	if val, _ := queue.Get(0); val != 2 {
		t.Errorf("Expected the newest element to survive, but found %d.", val)
	}
}

func TestReadySignalsConsumer(t *testing.T) {
	queue := New[int](1024)
	received := make([]int, 0, 100)

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()

		deadline := time.After(5 * time.Second)

		for len(received) < 100 {
			select {
			case <-queue.Ready():
			case <-deadline:
				return
			}

			for {
				val, ok := queue.Poll()
				if !ok {
					break
				}

				received = append(received, val)
			}
		}
	}()

	for i := 0; i < 100; i++ {
		queue.Add(i)
	}

	wg.Wait()

	if len(received) != 100 {
		t.Fatalf("Expected to receive 100 elements, but received %d.", len(received))
	}

	for i, val := range received {
		if val != i {
			t.Errorf("Expected %d at position %d, but found %d.", i, i, val)
		}
	}
}
