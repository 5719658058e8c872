package scenebridge

import (
	"cmp"
	"fmt"
)

// IdNamespace scopes resource identifiers to one producer connection.
// Two producers allocating keys concurrently never collide because each
// owns a distinct namespace.
type IdNamespace uint32

// PipelineID identifies an independently versioned content subtree.
type PipelineID struct {
	Namespace IdNamespace
	ID        uint32
}

// String implements fmt.Stringer.
func (p PipelineID) String() string {
	return fmt.Sprintf("pipeline(%d,%d)", p.Namespace, p.ID)
}

// Compare orders pipelines by namespace, then by local id.
func (p PipelineID) Compare(o PipelineID) int {
	if c := cmp.Compare(p.Namespace, o.Namespace); c != 0 {
		return c
	}
	return cmp.Compare(p.ID, o.ID)
}

// Epoch is the per-pipeline version of a submitted display list.
type Epoch uint32

// Next returns the epoch following e.
func (e Epoch) Next() Epoch { return e + 1 }

// ImageKey identifies an image resource.
type ImageKey struct {
	Namespace IdNamespace
	ID        uint32
}

// String implements fmt.Stringer.
func (k ImageKey) String() string {
	return fmt.Sprintf("image(%d,%d)", k.Namespace, k.ID)
}

// Compare orders image keys by namespace, then by local id.
func (k ImageKey) Compare(o ImageKey) int {
	if c := cmp.Compare(k.Namespace, o.Namespace); c != 0 {
		return c
	}
	return cmp.Compare(k.ID, o.ID)
}

// FontKey identifies a font resource.
type FontKey struct {
	Namespace IdNamespace
	ID        uint32
}

// String implements fmt.Stringer.
func (k FontKey) String() string {
	return fmt.Sprintf("font(%d,%d)", k.Namespace, k.ID)
}

// Compare orders font keys by namespace, then by local id.
func (k FontKey) Compare(o FontKey) int {
	if c := cmp.Compare(k.Namespace, o.Namespace); c != 0 {
		return c
	}
	return cmp.Compare(k.ID, o.ID)
}

// ExternalImageID identifies a texture or pixel buffer owned by the producer.
type ExternalImageID uint64

// WindowID identifies a window and the renderer bound to it.
type WindowID uint64
