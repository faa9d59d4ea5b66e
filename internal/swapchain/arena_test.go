package swapchain

import "testing"

func TestArenaDestroysInReverseOrder(t *testing.T) {
	var destroyed []int
	arena := NewArena(func(item int) { destroyed = append(destroyed, item) })

	for i := 0; i < 4; i++ {
		arena.Add(i)
	}
	if arena.Len() != 4 || arena.At(2) != 2 {
		t.Fatalf("arena = len %d, At(2) %d", arena.Len(), arena.At(2))
	}

	arena.Destroy()
	if arena.Len() != 0 {
		t.Errorf("Len() after Destroy = %d, want 0", arena.Len())
	}
	want := []int{3, 2, 1, 0}
	if len(destroyed) != len(want) {
		t.Fatalf("destroyed %v, want %v", destroyed, want)
	}
	for i := range want {
		if destroyed[i] != want[i] {
			t.Errorf("destroyed %v, want %v", destroyed, want)
			break
		}
	}

	arena.Destroy()
	if len(destroyed) != 4 {
		t.Errorf("second Destroy released items again: %v", destroyed)
	}
}

func TestArenaItemsIsACopy(t *testing.T) {
	arena := NewArena(func(string) {})
	arena.Add("a")
	items := arena.Items()
	items[0] = "b"
	if arena.At(0) != "a" {
		t.Errorf("mutating Items() changed the arena")
	}
}
