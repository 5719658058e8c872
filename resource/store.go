package resource

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	sb "github.com/gogpu/scenebridge"
)

// Store errors.
var (
	// ErrDuplicateKey is returned when adding a key that is already live.
	ErrDuplicateKey = errors.New("resource: key already added")

	// ErrUnknownKey is returned when updating or deleting a key that is not
	// live.
	ErrUnknownKey = errors.New("resource: unknown key")

	// ErrKindMismatch is returned when an update changes the image kind.
	ErrKindMismatch = errors.New("resource: update changes image kind")
)

// ReleaseFunc is called once for every image whose deferred deletion
// completes, including entries dropped by Clear.
type ReleaseFunc func(img *Image)

// retired is an entry removed from the tables while frame was current.
type retired struct {
	frame uint64
	image *Image
	font  *Font
}

// Store holds the live image and font tables of one renderer.
//
// Deletions are deferred: a deleted entry disappears from lookups at once,
// but is only released after the frame that was current at deletion time
// has been superseded by BeginFrame.
//
// Store is not safe for concurrent use; it belongs to the render context.
type Store struct {
	images  map[sb.ImageKey]*Image
	fonts   map[sb.FontKey]*Font
	retired []retired
	frame   uint64

	onRelease ReleaseFunc
}

// NewStore creates an empty store. release may be nil.
func NewStore(release ReleaseFunc) *Store {
	return &Store{
		images:    make(map[sb.ImageKey]*Image),
		fonts:     make(map[sb.FontKey]*Font),
		onRelease: release,
	}
}

// Frame returns the sequence number of the current frame.
func (s *Store) Frame() uint64 { return s.frame }

// Image returns the live image for key.
func (s *Store) Image(key sb.ImageKey) (*Image, bool) {
	img, ok := s.images[key]
	return img, ok
}

// Font returns the live font for key.
func (s *Store) Font(key sb.FontKey) (*Font, bool) {
	f, ok := s.fonts[key]
	return f, ok
}

// ImageKeys returns the live image keys in ascending order.
func (s *Store) ImageKeys() []sb.ImageKey {
	return slices.SortedFunc(maps.Keys(s.images), sb.ImageKey.Compare)
}

// Len returns the number of live images and fonts.
func (s *Store) Len() (images, fonts int) { return len(s.images), len(s.fonts) }

// Pending returns the number of deleted entries awaiting release.
func (s *Store) Pending() int { return len(s.retired) }

// AddImage adds a new image entry.
func (s *Store) AddImage(key sb.ImageKey, desc ImageDescriptor, data ImageData) error {
	if _, ok := s.images[key]; ok {
		return fmt.Errorf("%w: %v", ErrDuplicateKey, key)
	}
	if err := checkImage(desc, data); err != nil {
		return fmt.Errorf("add %v: %w", key, err)
	}
	s.images[key] = &Image{Key: key, Desc: desc, Data: data}
	return nil
}

// UpdateImage replaces the descriptor and content of a live image. dirty
// limits the changed region; nil means the whole image. The previous entry
// is retired like a deletion.
func (s *Store) UpdateImage(key sb.ImageKey, desc ImageDescriptor, data ImageData, dirty *sb.Rect) error {
	old, ok := s.images[key]
	if !ok {
		return fmt.Errorf("%w: %v", ErrUnknownKey, key)
	}
	if old.Data.Kind != data.Kind {
		return fmt.Errorf("%w: %v from %s to %s", ErrKindMismatch, key, old.Data.Kind, data.Kind)
	}
	if err := checkImage(desc, data); err != nil {
		return fmt.Errorf("update %v: %w", key, err)
	}
	img := &Image{Key: key, Desc: desc, Data: data, Generation: old.Generation + 1}
	if dirty != nil {
		r := *dirty
		img.Dirty = &r
	}
	s.images[key] = img
	// External images keep their identity across updates; only the final
	// deletion releases them.
	if data.Kind != KindExternal || old.Data.External != data.External {
		s.retired = append(s.retired, retired{frame: s.frame, image: old})
	}
	return nil
}

// DeleteImage removes key from lookups and schedules its release.
func (s *Store) DeleteImage(key sb.ImageKey) error {
	img, ok := s.images[key]
	if !ok {
		return fmt.Errorf("%w: %v", ErrUnknownKey, key)
	}
	delete(s.images, key)
	s.retired = append(s.retired, retired{frame: s.frame, image: img})
	return nil
}

// AddFont parses and adds a font.
func (s *Store) AddFont(key sb.FontKey, data []byte, index uint32) error {
	if _, ok := s.fonts[key]; ok {
		return fmt.Errorf("%w: %v", ErrDuplicateKey, key)
	}
	f, err := ParseFont(key, data, index)
	if err != nil {
		return err
	}
	s.fonts[key] = f
	return nil
}

// DeleteFont removes key from lookups and schedules its release.
func (s *Store) DeleteFont(key sb.FontKey) error {
	f, ok := s.fonts[key]
	if !ok {
		return fmt.Errorf("%w: %v", ErrUnknownKey, key)
	}
	delete(s.fonts, key)
	s.retired = append(s.retired, retired{frame: s.frame, font: f})
	return nil
}

// BeginFrame starts a new frame and releases every entry retired before
// it. It returns the new frame sequence number.
func (s *Store) BeginFrame() uint64 {
	s.frame++
	keep := s.retired[:0]
	for _, r := range s.retired {
		if r.frame >= s.frame {
			keep = append(keep, r)
			continue
		}
		s.release(r)
	}
	clear(s.retired[len(keep):])
	s.retired = keep
	return s.frame
}

// Clear releases every live and retired entry.
func (s *Store) Clear() {
	for _, r := range s.retired {
		s.release(r)
	}
	s.retired = nil
	for _, key := range s.ImageKeys() {
		s.release(retired{image: s.images[key]})
	}
	clear(s.images)
	clear(s.fonts)
}

func (s *Store) release(r retired) {
	if r.image != nil && s.onRelease != nil {
		s.onRelease(r.image)
	}
}

func checkImage(desc ImageDescriptor, data ImageData) error {
	if err := desc.Validate(); err != nil {
		return err
	}
	if data.Kind == KindRaw && len(data.Bytes) < desc.Size() {
		return fmt.Errorf("%w: have %d bytes, need %d", ErrShortData, len(data.Bytes), desc.Size())
	}
	return nil
}
