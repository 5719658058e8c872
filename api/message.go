package api

import (
	sb "github.com/gogpu/scenebridge"
	"github.com/gogpu/scenebridge/notify"
	"github.com/gogpu/scenebridge/resource"
	"github.com/gogpu/scenebridge/wire"
)

// MessageType identifies the type of a queued message.
type MessageType uint8

const (
	// Resource messages
	MsgAddImage    MessageType = iota // Add a raw, blob or external image
	MsgUpdateImage                    // Replace the content of an image
	MsgDeleteImage                    // Delete an image
	MsgAddFont                        // Add a raw font
	MsgDeleteFont                     // Delete a font

	// Scene messages
	MsgSetDisplayList   // Submit an encoded display list
	MsgClearDisplayList // Submit an empty display list
	MsgSetRootPipeline  // Select the root pipeline
	MsgSetWindow        // Resize the window
	MsgScroll           // Move a scroll layer

	// Frame messages
	MsgGenerateFrame // Request a frame
	MsgExternalEvent // Echo an event through the notifier
)

// messageTypeNames maps MessageType values to their string representation.
var messageTypeNames = [...]string{
	MsgAddImage:         "AddImage",
	MsgUpdateImage:      "UpdateImage",
	MsgDeleteImage:      "DeleteImage",
	MsgAddFont:          "AddFont",
	MsgDeleteFont:       "DeleteFont",
	MsgSetDisplayList:   "SetDisplayList",
	MsgClearDisplayList: "ClearDisplayList",
	MsgSetRootPipeline:  "SetRootPipeline",
	MsgSetWindow:        "SetWindow",
	MsgScroll:           "Scroll",
	MsgGenerateFrame:    "GenerateFrame",
	MsgExternalEvent:    "ExternalEvent",
}

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if int(t) < len(messageTypeNames) {
		return messageTypeNames[t]
	}
	return "Unknown"
}

// Message is the interface implemented by all queued messages.
type Message interface {
	// Type returns the MessageType for this message.
	Type() MessageType
}

// --------------------------------------------------------------------------
// Resource messages
// --------------------------------------------------------------------------

// AddImage adds an image resource.
type AddImage struct {
	Key  sb.ImageKey
	Desc resource.ImageDescriptor
	Data resource.ImageData
}

// Type implements Message.
func (AddImage) Type() MessageType { return MsgAddImage }

// UpdateImage replaces an image's descriptor and content.
type UpdateImage struct {
	Key  sb.ImageKey
	Desc resource.ImageDescriptor
	Data resource.ImageData
	// Dirty limits the change for blob images. Nil means everything.
	Dirty *sb.Rect
}

// Type implements Message.
func (UpdateImage) Type() MessageType { return MsgUpdateImage }

// DeleteImage deletes an image resource.
type DeleteImage struct {
	Key sb.ImageKey
}

// Type implements Message.
func (DeleteImage) Type() MessageType { return MsgDeleteImage }

// AddFont adds a TrueType or OpenType font, or one face of a collection.
type AddFont struct {
	Key   sb.FontKey
	Data  []byte
	Index uint32
}

// Type implements Message.
func (AddFont) Type() MessageType { return MsgAddFont }

// DeleteFont deletes a font.
type DeleteFont struct {
	Key sb.FontKey
}

// Type implements Message.
func (DeleteFont) Type() MessageType { return MsgDeleteFont }

// --------------------------------------------------------------------------
// Scene messages
// --------------------------------------------------------------------------

// SetDisplayList submits an encoded display list for a pipeline.
type SetDisplayList struct {
	Epoch      sb.Epoch
	Pipeline   sb.PipelineID
	Viewport   sb.Size
	Background sb.Color
	// PreserveFrameState keeps the scroll offsets of the previous list.
	PreserveFrameState bool
	Data               []byte
	Descriptor         wire.Descriptor
}

// Type implements Message.
func (SetDisplayList) Type() MessageType { return MsgSetDisplayList }

// ClearDisplayList replaces a pipeline's display list with an empty one.
type ClearDisplayList struct {
	Epoch    sb.Epoch
	Pipeline sb.PipelineID
}

// Type implements Message.
func (ClearDisplayList) Type() MessageType { return MsgClearDisplayList }

// SetRootPipeline selects the pipeline composited at the root.
type SetRootPipeline struct {
	Pipeline sb.PipelineID
}

// Type implements Message.
func (SetRootPipeline) Type() MessageType { return MsgSetRootPipeline }

// SetWindow sets the window size and the inner rectangle content is
// composited into.
type SetWindow struct {
	Size  sb.Size
	Inner sb.Rect
}

// Type implements Message.
func (SetWindow) Type() MessageType { return MsgSetWindow }

// Scroll sets the offset of a scroll layer.
type Scroll struct {
	Pipeline sb.PipelineID
	ScrollID uint32
	Offset   sb.Point
}

// Type implements Message.
func (Scroll) Type() MessageType { return MsgScroll }

// --------------------------------------------------------------------------
// Frame messages
// --------------------------------------------------------------------------

// GenerateFrame requests a frame from the latest display lists.
type GenerateFrame struct{}

// Type implements Message.
func (GenerateFrame) Type() MessageType { return MsgGenerateFrame }

// ExternalEvent is echoed back through notify.Notifier.ExternalEvent.
type ExternalEvent struct {
	Event notify.ExternalEvent
}

// Type implements Message.
func (ExternalEvent) Type() MessageType { return MsgExternalEvent }

// Compile-time interface checks.
var (
	_ Message = AddImage{}
	_ Message = UpdateImage{}
	_ Message = DeleteImage{}
	_ Message = AddFont{}
	_ Message = DeleteFont{}
	_ Message = SetDisplayList{}
	_ Message = ClearDisplayList{}
	_ Message = SetRootPipeline{}
	_ Message = SetWindow{}
	_ Message = Scroll{}
	_ Message = GenerateFrame{}
	_ Message = ExternalEvent{}
)
