// Package gpu defines the adapter boundary between the slice rendering
// pipeline and concrete GPU backends.
//
// The pipeline talks to an [Adapter] and never to a backend directly.
// Resources are addressed by opaque IDs; each adapter maintains the mapping
// between IDs and its own handles. Backends register themselves with
// [Register] and are selected by [Default] in priority order, so the
// pipeline works unchanged whether a real device or the CPU reference
// backend is behind it.
package gpu

import "errors"

// Common adapter errors.
var (
	// ErrTextureSize is returned when a requested texture exceeds the
	// adapter's maximum texture dimension.
	ErrTextureSize = errors.New("gpu: texture exceeds maximum size")

	// ErrUnknownTexture is returned for operations on an ID the adapter
	// does not know (destroyed or never created).
	ErrUnknownTexture = errors.New("gpu: unknown texture")

	// ErrSizeMismatch is returned when uploaded data does not match the
	// texture's declared dimensions and format.
	ErrSizeMismatch = errors.New("gpu: data size mismatch")

	// ErrClosed is returned when operating on a closed adapter.
	ErrClosed = errors.New("gpu: adapter closed")
)

// TextureID is an opaque handle to an adapter texture.
type TextureID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID TextureID = 0

// Format specifies a texture storage or pixel-transfer format.
//
// The set deliberately covers two API generations: the unsized legacy
// formats accepted by older contexts (Luminance, RGBA, DepthComponent, ...)
// and the sized formats required by newer ones (R32Float, RGBA16Float, ...).
// The glcompat package translates between the two.
type Format uint32

// Legacy unsized formats.
const (
	FormatAlpha Format = iota + 1
	FormatLuminance
	FormatLuminanceAlpha
	FormatRGB
	FormatRGBA
	FormatDepthComponent
	FormatDepthStencil
)

// Transfer formats using the newer API's channel naming.
const (
	FormatRed Format = iota + 32
	FormatRG
)

// Sized internal formats.
const (
	FormatR8 Format = iota + 64
	FormatR16Float
	FormatR32Float
	FormatRG16Float
	FormatRG32Float
	FormatRGB16Float
	FormatRGB32Float
	FormatRGBA8
	FormatRGBA16Float
	FormatRGBA32Float
	FormatDepth24
	FormatDepth24Stencil8
	FormatDepth32Float
)

// Sized reports whether f is a sized internal format.
func (f Format) Sized() bool { return f >= FormatR8 }

// PixelType specifies the data type of uploaded pixel data.
type PixelType uint32

// Pixel data types. TypeHalfFloatLegacy is the older API's extension
// constant for half floats; newer contexts only accept TypeHalfFloat.
const (
	TypeUnsignedByte PixelType = iota + 1
	TypeUnsignedShort
	TypeUnsignedInt
	TypeFloat
	TypeHalfFloat
	TypeHalfFloatLegacy
)

// Filter selects the texture sampling filter.
type Filter uint32

// Sampling filters.
const (
	// FilterNearest samples the nearest texel. Used for the slice texture
	// so voxel boundaries stay visible.
	FilterNearest Filter = iota + 1

	// FilterLinear interpolates between texels. Used for the colormap LUT.
	FilterLinear
)

// TextureDesc describes a 2-D texture to create.
// Textures are always clamped at the edges; the viewer never tiles.
type TextureDesc struct {
	// Width and Height are the texture dimensions in texels.
	Width  int
	Height int

	// Format is the internal storage format.
	Format Format

	// Type is the pixel data type of uploads.
	Type PixelType

	// Filter is the sampling filter.
	Filter Filter

	// Label is an optional debug label.
	Label string
}

// BytesPerPixel returns the upload stride implied by format and type,
// or 0 if the combination is not meaningful for uploads.
func (d TextureDesc) BytesPerPixel() int {
	channels := 0
	switch d.Format {
	case FormatAlpha, FormatLuminance, FormatRed, FormatR8, FormatR16Float, FormatR32Float, FormatDepthComponent, FormatDepth24, FormatDepth32Float:
		channels = 1
	case FormatLuminanceAlpha, FormatRG, FormatRG16Float, FormatRG32Float, FormatDepthStencil, FormatDepth24Stencil8:
		channels = 2
	case FormatRGB, FormatRGB16Float, FormatRGB32Float:
		channels = 3
	case FormatRGBA, FormatRGBA8, FormatRGBA16Float, FormatRGBA32Float:
		channels = 4
	}
	per := 0
	switch d.Type {
	case TypeUnsignedByte:
		per = 1
	case TypeUnsignedShort, TypeHalfFloat, TypeHalfFloatLegacy:
		per = 2
	case TypeUnsignedInt, TypeFloat:
		per = 4
	}
	return channels * per
}

// Adapter abstracts a GPU context for the slice pipeline.
//
// Resource lifecycle:
//   - Textures are created via CreateTexture and released via DestroyTexture.
//   - IDs become invalid after destruction and must not be reused.
//   - Close releases every remaining resource; the adapter must not be used
//     afterwards.
//
// Implementations must be safe for concurrent use.
type Adapter interface {
	// Name returns the backend identifier (e.g. "software", "wgpu").
	Name() string

	// MaxTextureSize returns the maximum texture dimension in texels.
	MaxTextureSize() int

	// Generation identifies the underlying context incarnation. It is
	// bumped when the context is lost and recreated; resources created
	// under an older generation are invalid and must be recreated.
	Generation() uint64

	// CreateTexture allocates a texture and returns its ID.
	CreateTexture(desc TextureDesc) (TextureID, error)

	// WriteTexture replaces the full pixel contents of a texture in place.
	// The data length must match the texture's dimensions and format.
	WriteTexture(id TextureID, data []byte) error

	// ReadTexture returns the current pixel contents of a texture.
	// May stall on real devices; the pipeline only reads during a redraw.
	ReadTexture(id TextureID) ([]byte, error)

	// DestroyTexture releases a texture. Unknown IDs are ignored.
	DestroyTexture(id TextureID)

	// Close releases all adapter resources. Close is idempotent.
	Close()
}
