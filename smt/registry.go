package smt

// Registry manages the lifecycle of items of a specific marker type,
// combining an IdentityManager (ID allocation) with Storage (item storage).
//
// Thread-safe for concurrent use.
type Registry[T any, M Marker] struct {
	identity *IdentityManager[M]
	storage  *Storage[T, M]
}

// NewRegistry creates a new registry for the given item and marker types.
func NewRegistry[T any, M Marker]() *Registry[T, M] {
	return &Registry[T, M]{
		identity: NewIdentityManager[M](),
		storage:  NewStorage[T, M](64),
	}
}

// Register allocates a new ID and stores the item, returning the ID.
func (r *Registry[T, M]) Register(item T) ID[M] {
	id := r.identity.Alloc()
	r.storage.Insert(id, item)
	return id
}

// Get retrieves an item by ID.
func (r *Registry[T, M]) Get(id ID[M]) (T, error) {
	if id.IsZero() {
		var zero T
		return zero, ErrInvalidID
	}
	item, ok := r.storage.Get(id)
	if !ok {
		var zero T
		if r.storage.Capacity() > int(id.Index()) {
			return zero, ErrEpochMismatch
		}
		return zero, ErrNotFound
	}
	return item, nil
}

// GetMut retrieves an item by ID for in-place mutation.
func (r *Registry[T, M]) GetMut(id ID[M], fn func(*T)) error {
	if id.IsZero() {
		return ErrInvalidID
	}
	if !r.storage.GetMut(id, fn) {
		if r.storage.Capacity() > int(id.Index()) {
			return ErrEpochMismatch
		}
		return ErrNotFound
	}
	return nil
}

// Unregister removes an item by ID and releases the ID for reuse.
func (r *Registry[T, M]) Unregister(id ID[M]) (T, error) {
	if id.IsZero() {
		var zero T
		return zero, ErrInvalidID
	}
	item, ok := r.storage.Remove(id)
	if !ok {
		var zero T
		if r.storage.Capacity() > int(id.Index()) {
			return zero, ErrEpochMismatch
		}
		return zero, ErrNotFound
	}
	r.identity.Release(id)
	return item, nil
}

// Contains checks if an item exists at the given ID.
func (r *Registry[T, M]) Contains(id ID[M]) bool {
	if id.IsZero() {
		return false
	}
	return r.storage.Contains(id)
}

// Count returns the number of registered items.
func (r *Registry[T, M]) Count() uint64 {
	return r.identity.Count()
}

// ForEach iterates over all registered items in index order.
func (r *Registry[T, M]) ForEach(fn func(ID[M], T) bool) {
	r.storage.ForEach(fn)
}
