package smt

import "fmt"

// Index is the index component of an identifier: the slot in a storage array.
type Index = uint32

// Epoch is the generation component of an identifier. It prevents
// use-after-free: when a slot is released and reused, its epoch increments,
// invalidating any ID still referring to the old occupant.
type Epoch = uint32

// RawID is the underlying 64-bit representation of an identifier.
// Layout: lower 32 bits = index, upper 32 bits = epoch.
type RawID uint64

// Zip combines an index and epoch into a RawID.
func Zip(index Index, epoch Epoch) RawID {
	return RawID(index) | (RawID(epoch) << 32)
}

// Unzip extracts the index and epoch from a RawID.
func (id RawID) Unzip() (Index, Epoch) {
	//nolint:gosec // G115: masked to 32 bits
	return Index(id & 0xFFFFFFFF), Epoch(id >> 32)
}

// Index returns the index component of the RawID.
func (id RawID) Index() Index {
	//nolint:gosec // G115: masked to 32 bits
	return Index(id & 0xFFFFFFFF)
}

// Epoch returns the epoch component of the RawID.
func (id RawID) Epoch() Epoch {
	//nolint:gosec // G115: shifted down from upper 32 bits
	return Epoch(id >> 32)
}

// IsZero returns true if both index and epoch are zero.
func (id RawID) IsZero() bool {
	return id == 0
}

func (id RawID) String() string {
	index, epoch := id.Unzip()
	return fmt.Sprintf("RawID(%d,%d)", index, epoch)
}

// Marker is a constraint for marker types distinguishing ID spaces.
// Marker types are empty structs that provide compile-time type safety.
type Marker interface {
	marker()
}

// ID is a type-safe identifier parameterized by a marker type. Subscribers
// and heap allocations have distinct marker types, preventing accidental
// cross-use of an ID minted for one namespace against the other's storage.
type ID[T Marker] struct {
	raw RawID
}

// NewID creates a new ID from index and epoch components.
func NewID[T Marker](index Index, epoch Epoch) ID[T] {
	return ID[T]{raw: Zip(index, epoch)}
}

// FromRaw creates an ID from a raw representation. The caller must ensure
// type safety.
func FromRaw[T Marker](raw RawID) ID[T] {
	return ID[T]{raw: raw}
}

// Raw returns the underlying RawID.
func (id ID[T]) Raw() RawID { return id.raw }

// Unzip extracts the index and epoch from the ID.
func (id ID[T]) Unzip() (Index, Epoch) { return id.raw.Unzip() }

// Index returns the index component of the ID.
func (id ID[T]) Index() Index { return id.raw.Index() }

// Epoch returns the epoch component of the ID.
func (id ID[T]) Epoch() Epoch { return id.raw.Epoch() }

// IsZero returns true if the ID is zero (invalid).
func (id ID[T]) IsZero() bool { return id.raw.IsZero() }

func (id ID[T]) String() string {
	index, epoch := id.Unzip()
	return fmt.Sprintf("ID(%d,%d)", index, epoch)
}

type subscriberMarker struct{}

func (subscriberMarker) marker() {}

type heapBlockMarker struct{}

func (heapBlockMarker) marker() {}

// SubscriberID identifies a registered subscriber.
type SubscriberID = ID[subscriberMarker]

// HeapBlockID identifies a heap-allocated message buffer.
type HeapBlockID = ID[heapBlockMarker]
