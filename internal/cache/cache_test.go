package cache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type item struct {
	ID   string
	Rank int
}

func itemID(i item) string { return i.ID }

func TestReplaceAndGet(t *testing.T) {
	c := New(itemID)
	c.Replace([]item{{ID: "a"}, {ID: "b"}})

	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected to find a")
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("did not expect to find missing")
	}
}

func TestReplaceIsAtomicSwap(t *testing.T) {
	c := New(itemID)
	c.Replace([]item{{ID: "a"}, {ID: "b"}, {ID: "c"}})

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			// Readers must always see a complete snapshot: 3 items.
			if n := len(c.All()); n != 3 {
				t.Errorf("observed partial snapshot of %d items", n)
				return
			}
		}
	}()
	for i := 0; i < 100; i++ {
		c.Replace([]item{{ID: "x"}, {ID: "y"}, {ID: "z"}})
		c.Replace([]item{{ID: "a"}, {ID: "b"}, {ID: "c"}})
	}
	close(stop)
	wg.Wait()
}

func TestSortedOrder(t *testing.T) {
	c := New(itemID, WithSort(func(a, b item) bool { return a.Rank > b.Rank }))
	c.Replace([]item{{ID: "low", Rank: 1}, {ID: "high", Rank: 9}, {ID: "mid", Rank: 5}})

	all := c.All()
	if all[0].ID != "high" || all[2].ID != "low" {
		t.Errorf("order = %v", all)
	}

	c.Put(item{ID: "top", Rank: 99})
	if c.All()[0].ID != "top" {
		t.Error("Put should keep order sorted")
	}
}

func TestVersionIncrements(t *testing.T) {
	c := New(itemID)
	v0 := c.Version()
	c.Replace([]item{{ID: "a"}})
	c.Put(item{ID: "b"})
	c.Remove("a")
	if c.Version() != v0+3 {
		t.Errorf("version = %d, want %d", c.Version(), v0+3)
	}
	// Removing an absent id is not a mutation.
	c.Remove("absent")
	if c.Version() != v0+3 {
		t.Error("no-op remove bumped the version")
	}
}

func TestDebouncedPersistCoalesces(t *testing.T) {
	var calls atomic.Int32
	var mu sync.Mutex
	var last []item

	c := New(itemID, WithPersist(func(items []item) error {
		calls.Add(1)
		mu.Lock()
		last = items
		mu.Unlock()
		return nil
	}, 50*time.Millisecond, nil))
	defer c.Close()

	// A burst of writes inside the debounce window flushes once.
	for i := 0; i < 10; i++ {
		c.Put(item{ID: "a", Rank: i})
	}
	c.Put(item{ID: "b"})

	time.Sleep(150 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("persist calls = %d, want 1", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(last) != 2 {
		t.Errorf("persisted %d items, want 2", len(last))
	}
}

func TestCloseFlushesPendingWrites(t *testing.T) {
	var calls atomic.Int32
	c := New(itemID, WithPersist(func(items []item) error {
		calls.Add(1)
		return nil
	}, time.Hour, nil)) // window long enough that only Close can flush

	c.Put(item{ID: "a"})
	c.Close()

	if calls.Load() != 1 {
		t.Errorf("persist calls = %d, want 1 flush on close", calls.Load())
	}

	// After close, mutations are rejected and nothing more is persisted.
	c.Put(item{ID: "b"})
	time.Sleep(20 * time.Millisecond)
	if calls.Load() != 1 {
		t.Error("persist ran after close")
	}
	if _, ok := c.Get("b"); ok {
		t.Error("mutation applied after close")
	}
}
