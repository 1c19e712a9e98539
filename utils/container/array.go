package container

import "sync"

// IIncrementalItem is implemented by anything that can live inside an
// IncrementalArray and needs to know its own slot.
type IIncrementalItem interface {
	Index() int
	SetIndex(index int)
}

// IncrementalItemBase is an embeddable implementation of IIncrementalItem.
type IncrementalItemBase struct {
	index int
}

func (b *IncrementalItemBase) Index() int      { return b.index }
func (b *IncrementalItemBase) SetIndex(i int)   { b.index = i }

// IncrementalArray is a slice that defers Add/Remove until Prepare is
// called, so a worker can iterate data() while other workers queue up
// insertions and deletions concurrently; Prepare then applies them all at
// once under no contention (it runs single-threaded, between barriers).
type IncrementalArray[T IIncrementalItem] struct {
	data        []T
	add         []T
	remove      []T
	addMutex    sync.Mutex
	removeMutex sync.Mutex
}

func NewIncrementalArray[T IIncrementalItem]() *IncrementalArray[T] {
	return &IncrementalArray[T]{
		data:   make([]T, 0),
		add:    make([]T, 0),
		remove: make([]T, 0),
	}
}

func (a *IncrementalArray[T]) Len() int { return len(a.data) }

// Data returns the current backing slice (valid until the next Prepare).
func (a *IncrementalArray[T]) Data() []T { return a.data }

// Add queues value for insertion at the next Prepare.
func (a *IncrementalArray[T]) Add(value T) {
	a.addMutex.Lock()
	defer a.addMutex.Unlock()
	a.add = append(a.add, value)
}

// Remove queues value for removal at the next Prepare.
func (a *IncrementalArray[T]) Remove(value T) {
	a.removeMutex.Lock()
	defer a.removeMutex.Unlock()
	a.remove = append(a.remove, value)
}

// Prepare applies every queued Add/Remove. Removed slots are first refilled
// from the added set; any leftover surplus is appended (more adds than
// removes) or back-filled from the tail (more removes than adds), so no
// slot is ever left empty and every live element's index stays correct.
func (a *IncrementalArray[T]) Prepare() {
	if len(a.add) >= len(a.remove) {
		for i, x := range a.remove {
			ind := x.Index()
			a.data[ind] = a.add[i]
			a.data[ind].SetIndex(ind)
		}
		l1 := len(a.remove)
		l2 := len(a.add) - l1
		for i := 0; i < l2; i++ {
			a.add[l1+i].SetIndex(len(a.data) + i)
		}
		a.data = append(a.data, a.add[len(a.remove):]...)
	} else {
		for i, x := range a.add {
			ind := a.remove[i].Index()
			a.data[ind] = x
			a.data[ind].SetIndex(ind)
		}
		l1 := len(a.add)
		l2 := len(a.remove) - l1
		l3 := len(a.data) - l2
		for i := 0; i < l2; i++ {
			ind := a.remove[l1+i].Index()
			a.data[ind] = a.data[l3+i]
			a.data[ind].SetIndex(ind)
		}
		a.data = a.data[:l3]
	}
	a.add = []T{}
	a.remove = []T{}
}
