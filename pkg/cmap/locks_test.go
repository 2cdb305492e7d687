package cmap

import (
	"sync"
	"testing"
)

func TestKeyLocks_Serializes(t *testing.T) {
	tests := []struct {
		name    string
		stripes int
	}{
		{"single stripe", 1},
		{"default", 0},
		{"wide", 256},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewKeyLocks(tt.stripes)
			counts := map[string]*int{"a": new(int), "b": new(int)}

			var wg sync.WaitGroup
			for i := 0; i < 50; i++ {
				for _, key := range []string{"a", "b"} {
					wg.Add(1)
					go func(key string) {
						defer wg.Done()
						unlock := l.Lock(key)
						defer unlock()
						*counts[key]++
					}(key)
				}
			}
			wg.Wait()

			if *counts["a"] != 50 || *counts["b"] != 50 {
				t.Errorf("counts = %d/%d, want 50 each", *counts["a"], *counts["b"])
			}
		})
	}
}
