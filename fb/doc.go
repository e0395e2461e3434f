// Package fb implements the frame-buffer streaming object described in
// spec.md §4.2: a single-producer/single-consumer payload carried inside one
// queue message slot, fronted by an atomic write-pointer so a consumer can
// begin reading pixel bytes before the producer has finished writing them.
//
// The invariant is simple and load-bearing: bytes [0, wp) are always safe to
// read; bytes at or beyond wp may still be in flight. wp only moves forward
// within one publication and is reset to zero by Prepare.
package fb
