package snowflake

import (
	"sync"
	"testing"
	"time"
)

func TestNewNode_Range(t *testing.T) {
	if _, err := NewNode(-1); err == nil {
		t.Error("expected error for negative node id")
	}
	if _, err := NewNode(MaxNodeID + 1); err == nil {
		t.Error("expected error for node id above max")
	}
	if _, err := NewNode(MaxNodeID); err != nil {
		t.Errorf("max node id rejected: %v", err)
	}
}

func TestGenerate_MonotonicAndUnique(t *testing.T) {
	node, _ := NewNode(3)

	prev := node.Generate()
	for i := 0; i < 10000; i++ {
		id := node.Generate()
		if id <= prev {
			t.Fatalf("id %d not greater than previous %d", id, prev)
		}
		prev = id
	}
}

func TestGenerate_Concurrent(t *testing.T) {
	node, _ := NewNode(1)

	var (
		mu   sync.Mutex
		seen = make(map[ID]struct{})
		wg   sync.WaitGroup
	)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]ID, 0, 500)
			for i := 0; i < 500; i++ {
				local = append(local, node.Generate())
			}
			mu.Lock()
			for _, id := range local {
				seen[id] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != 8*500 {
		t.Errorf("expected %d unique ids, got %d", 8*500, len(seen))
	}
}

func TestID_TimeAndParse(t *testing.T) {
	node, _ := NewNode(0)
	before := time.Now().Add(-time.Millisecond)
	id := node.Generate()

	if id.Time().Before(before) || id.Time().After(time.Now().Add(time.Millisecond)) {
		t.Errorf("id time %v out of range", id.Time())
	}

	parsed, err := ParseID(id.String())
	if err != nil || parsed != id {
		t.Errorf("ParseID(%s) = %d, %v", id, parsed, err)
	}

	for _, bad := range []string{"", "abc", "0", "-5", "12x"} {
		if _, err := ParseID(bad); err == nil {
			t.Errorf("ParseID(%q) should fail", bad)
		}
	}
}
