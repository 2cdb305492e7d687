package cmap

import (
	"fmt"
	"sort"
	"sync"
	"testing"
)

func TestNewWithShards(t *testing.T) {
	tests := []struct {
		input    int
		expected int
	}{
		{0, DefaultShardCount},
		{-1, DefaultShardCount},
		{3, DefaultShardCount},
		{1, 1},
		{4, 4},
		{32, 32},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("shards=%d", tt.input), func(t *testing.T) {
			m := NewWithShards[int](tt.input)
			if m.ShardCount() != tt.expected {
				t.Errorf("NewWithShards(%d) shard count = %d, want %d",
					tt.input, m.ShardCount(), tt.expected)
			}
		})
	}
}

func TestSetGetPop(t *testing.T) {
	m := New[int]()

	m.Set("key1", 100)
	m.Set("key2", 200)

	if val, ok := m.Get("key1"); !ok || val != 100 {
		t.Errorf("Get(key1) = (%d, %v), want (100, true)", val, ok)
	}
	if _, ok := m.Get("missing"); ok {
		t.Error("Get(missing) should report absent")
	}

	if val, ok := m.Pop("key2"); !ok || val != 200 {
		t.Errorf("Pop(key2) = (%d, %v), want (200, true)", val, ok)
	}
	if _, ok := m.Pop("key2"); ok {
		t.Error("second Pop should report absent")
	}
	if m.Count() != 1 {
		t.Errorf("Count() = %d, want 1", m.Count())
	}
}

func TestUpsert(t *testing.T) {
	m := New[int]()
	bump := func(existing int, exists bool) int {
		if !exists {
			return 1
		}
		return existing + 1
	}

	m.Upsert("k", bump)
	m.Upsert("k", bump)
	if got := m.Upsert("k", bump); got != 3 {
		t.Errorf("Upsert() = %d, want 3", got)
	}
}

func TestDeleteIf(t *testing.T) {
	m := New[int]()
	m.Set("k", 5)

	if m.DeleteIf("k", func(v int) bool { return v > 10 }) {
		t.Error("DeleteIf should not delete when predicate fails")
	}
	if !m.DeleteIf("k", func(v int) bool { return v == 5 }) {
		t.Error("DeleteIf should delete when predicate holds")
	}
	if m.DeleteIf("k", func(int) bool { return true }) {
		t.Error("DeleteIf on missing key should return false")
	}
}

func TestRangeKeysSnapshot(t *testing.T) {
	m := New[int]()
	for i := 0; i < 50; i++ {
		m.Set(fmt.Sprintf("k%02d", i), i)
	}

	keys := m.Keys()
	sort.Strings(keys)
	if len(keys) != 50 || keys[0] != "k00" || keys[49] != "k49" {
		t.Fatalf("Keys() = %v", keys)
	}

	visited := 0
	m.Range(func(string, int) bool {
		visited++
		return visited < 10
	})
	if visited != 10 {
		t.Errorf("Range visited %d, want early stop at 10", visited)
	}

	snap := m.Snapshot()
	for k := range snap {
		m.Pop(k)
	}
	if m.Count() != 0 {
		t.Errorf("Count() after draining snapshot = %d, want 0", m.Count())
	}
}

func TestClear(t *testing.T) {
	m := New[string]()
	m.Set("a", "1")
	m.Set("b", "2")
	m.Clear()
	if m.Count() != 0 {
		t.Errorf("Count() = %d, want 0", m.Count())
	}
}

func TestConcurrentAccess(t *testing.T) {
	m := New[int]()
	var wg sync.WaitGroup

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("g%d-%d", g, i)
				m.Set(key, i)
				m.Get(key)
				m.Upsert("shared", func(v int, _ bool) int { return v + 1 })
			}
		}(g)
	}
	wg.Wait()

	if v, _ := m.Get("shared"); v != 1600 {
		t.Errorf("shared counter = %d, want 1600", v)
	}
	if m.Count() != 8*200+1 {
		t.Errorf("Count() = %d, want %d", m.Count(), 8*200+1)
	}
}

func BenchmarkSet(b *testing.B) {
	m := New[int]()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			m.Set(fmt.Sprintf("key-%d", i%1024), i)
			i++
		}
	})
}
