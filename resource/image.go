package resource

import (
	sb "github.com/gogpu/scenebridge"
)

// ImageKind says where the pixels of an image resource come from.
type ImageKind uint8

// Image kinds.
const (
	// KindRaw images carry their pixels.
	KindRaw ImageKind = iota
	// KindBlob images carry serialized vector commands that a blob
	// rasterizer turns into pixels.
	KindBlob
	// KindExternal images are owned by the producer and reached through
	// the external image handler.
	KindExternal
)

// String returns the kind name.
func (k ImageKind) String() string {
	switch k {
	case KindRaw:
		return "raw"
	case KindBlob:
		return "blob"
	case KindExternal:
		return "external"
	default:
		return "unknown"
	}
}

// ExternalType distinguishes external textures from external CPU buffers.
type ExternalType uint8

// External image types.
const (
	ExternalTexture ExternalType = iota
	ExternalBuffer
)

// ImageData is the content of an image add or update.
type ImageData struct {
	Kind         ImageKind
	Bytes        []byte
	External     sb.ExternalImageID
	ExternalType ExternalType
}

// Raw returns image data holding pixels.
func Raw(pixels []byte) ImageData { return ImageData{Kind: KindRaw, Bytes: pixels} }

// Blob returns image data holding serialized vector commands.
func Blob(commands []byte) ImageData { return ImageData{Kind: KindBlob, Bytes: commands} }

// External returns image data referring to a producer-owned image.
func External(id sb.ExternalImageID, t ExternalType) ImageData {
	return ImageData{Kind: KindExternal, External: id, ExternalType: t}
}

// Image is one entry of the image table. Entries are replaced, never
// mutated, so a frame may keep a pointer to the entry it resolved.
type Image struct {
	Key  sb.ImageKey
	Desc ImageDescriptor
	Data ImageData
	// Dirty is the region changed by the last update, nil for all of it.
	Dirty *sb.Rect
	// Generation counts updates since the image was added.
	Generation uint32
}
