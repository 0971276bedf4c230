package shard

import (
	"sync"
	"testing"
)

func TestNewRoundsShards(t *testing.T) {
	t.Parallel()
	tests := []struct {
		n, want int
	}{
		{0, DefaultShards},
		{-3, DefaultShards},
		{1, 1},
		{5, 8},
		{64, 64},
	}
	for _, tt := range tests {
		m := New[int](tt.n, nil)
		if len(m.shards) != tt.want {
			t.Errorf("New(%d) shards = %d, want %d", tt.n, len(m.shards), tt.want)
		}
	}
}

func TestUpdateAndLoad(t *testing.T) {
	t.Parallel()
	m := New(4, func() []string { return []string{"init"} })

	if _, ok := m.Load(1); ok {
		t.Fatal("Load() on empty map returned ok")
	}

	m.Update(1, func(v *[]string) { *v = append(*v, "a") })
	m.Update(1, func(v *[]string) { *v = append(*v, "b") })

	got, ok := m.Load(1)
	if !ok || len(got) != 3 || got[2] != "b" {
		t.Errorf("Load(1) = %v, %v", got, ok)
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}

	m.Delete(1)
	if _, ok := m.Load(1); ok {
		t.Error("Load() after Delete returned ok")
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0", m.Len())
	}
}

func TestUpdateConcurrent(t *testing.T) {
	t.Parallel()
	m := New[int](8, nil)

	const users = 50
	const perUser = 200

	var wg sync.WaitGroup
	for u := int64(0); u < users; u++ {
		for range 4 {
			wg.Add(1)
			go func(key int64) {
				defer wg.Done()
				for range perUser {
					m.Update(key, func(v *int) { *v++ })
				}
			}(u)
		}
	}
	wg.Wait()

	for u := int64(0); u < users; u++ {
		got, _ := m.Load(u)
		if got != 4*perUser {
			t.Errorf("user %d count = %d, want %d", u, got, 4*perUser)
		}
	}
}

func TestSweep(t *testing.T) {
	t.Parallel()
	m := New[int](1, nil)
	for k := int64(1); k <= 10; k++ {
		m.Update(k, func(v *int) { *v = int(k) })
	}

	removed := m.SweepShard(3, func(v *int) bool { return *v%2 == 0 })
	if removed != 5 {
		t.Errorf("SweepShard() removed %d, want 5", removed)
	}
	if _, ok := m.Load(4); ok {
		t.Error("even key survived sweep")
	}
	if v, ok := m.Load(5); !ok || v != 5 {
		t.Errorf("Load(5) = %d, %v", v, ok)
	}

	if removed := m.Sweep(func(*int) bool { return true }); removed != 5 {
		t.Errorf("Sweep() removed %d, want 5", removed)
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0", m.Len())
	}
}

func TestSweepDuringUpdate(t *testing.T) {
	t.Parallel()
	m := New[int](1, nil)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for range 1000 {
			m.Update(7, func(v *int) { *v++ })
		}
	}()
	go func() {
		defer wg.Done()
		for range 1000 {
			// Never idle: nothing may be lost.
			m.Sweep(func(*int) bool { return false })
		}
	}()
	wg.Wait()

	if got, _ := m.Load(7); got != 1000 {
		t.Errorf("count = %d, want 1000", got)
	}
}
