package swapchain

// Arena owns one object per swapchain image, keyed by image index.
type Arena[T any] struct {
	items   []T
	destroy func(T)
}

func NewArena[T any](destroy func(T)) *Arena[T] {
	return &Arena[T]{destroy: destroy}
}

func (a *Arena[T]) Add(item T) {
	a.items = append(a.items, item)
}

func (a *Arena[T]) Len() int {
	return len(a.items)
}

func (a *Arena[T]) At(index int) T {
	return a.items[index]
}

// Items returns a copy so callers cannot alias the owned slice.
func (a *Arena[T]) Items() []T {
	return append([]T(nil), a.items...)
}

// Destroy releases every item in reverse creation order and empties the arena.
func (a *Arena[T]) Destroy() {
	for i := len(a.items) - 1; i >= 0; i-- {
		a.destroy(a.items[i])
	}
	a.items = nil
}
