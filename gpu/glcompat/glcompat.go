// Package glcompat adapts texture requests written against the older,
// unsized-format GPU API generation to a newer context that requires sized
// internal formats.
//
// The older generation exposed single/dual-channel data as Luminance and
// LuminanceAlpha, accepted unsized internal formats, and used a separate
// extension constant for half floats. The newer generation requires sized
// internal formats, renames the channel formats to Red/RG, promotes most of
// the old extensions to core features, and has its own half-float constant.
//
// [Wrap] returns an adapter that rewrites the internal storage format, the
// pixel transfer format and the pixel data type consistently from the
// original pair, and answers capability queries from a registry built once
// at wrap time. The wrapped rendering code runs unmodified.
package glcompat

import "github.com/fzimmermann89/mrui/gpu"

// APIVersion is the version marker reported by wrapped adapters. Rendering
// code checks it to decide feature availability.
const APIVersion = 2

// Feature identifies a capability the older API exposed as an extension.
type Feature int

// Features promoted to core in the newer API generation.
const (
	FeatureInstancing Feature = iota
	FeatureVertexArrayObject
	FeatureDrawBuffers
	FeatureTextureFloat
	FeatureTextureHalfFloat
	FeatureDerivatives
	FeatureFragDepth
	FeatureBlendMinMax
	FeatureTextureLODBias
)

// String returns the older API's extension name for the feature.
func (f Feature) String() string {
	switch f {
	case FeatureInstancing:
		return "ANGLE_instanced_arrays"
	case FeatureVertexArrayObject:
		return "OES_vertex_array_object"
	case FeatureDrawBuffers:
		return "WEBGL_draw_buffers"
	case FeatureTextureFloat:
		return "OES_texture_float"
	case FeatureTextureHalfFloat:
		return "OES_texture_half_float"
	case FeatureDerivatives:
		return "OES_standard_derivatives"
	case FeatureFragDepth:
		return "EXT_frag_depth"
	case FeatureBlendMinMax:
		return "EXT_blend_minmax"
	case FeatureTextureLODBias:
		return "EXT_texture_lod_bias"
	}
	return "unknown"
}

// Capability describes how a legacy extension is satisfied by the newer
// context.
type Capability struct {
	// Feature is the legacy extension this capability stands in for.
	Feature Feature

	// Native is true when the newer API provides the feature as a core
	// call (1:1 mapping, no emulation).
	Native bool
}

// Resolved is the rewritten (internal format, transfer format, type) triple
// for one texture upload.
type Resolved struct {
	Internal gpu.Format
	Transfer gpu.Format
	Type     gpu.PixelType
}

// formatKey indexes the rewrite table by the ORIGINAL request pair.
type formatKey struct {
	internal gpu.Format
	typ      gpu.PixelType
}

// rewrites maps every legacy (internal format, type) pair to its sized
// replacement. Pairs not in the table pass through unchanged, which makes a
// single Resolve call idempotent: sized formats map to themselves.
var rewrites = map[formatKey]Resolved{
	// Single channel. Luminance has no float equivalent on the new API;
	// the transfer format must be renamed to Red.
	{gpu.FormatLuminance, gpu.TypeFloat}:           {gpu.FormatR32Float, gpu.FormatRed, gpu.TypeFloat},
	{gpu.FormatLuminance, gpu.TypeHalfFloatLegacy}: {gpu.FormatR16Float, gpu.FormatRed, gpu.TypeHalfFloat},
	{gpu.FormatLuminance, gpu.TypeHalfFloat}:       {gpu.FormatR16Float, gpu.FormatRed, gpu.TypeHalfFloat},
	{gpu.FormatLuminance, gpu.TypeUnsignedByte}:    {gpu.FormatR8, gpu.FormatRed, gpu.TypeUnsignedByte},
	{gpu.FormatAlpha, gpu.TypeUnsignedByte}:        {gpu.FormatR8, gpu.FormatRed, gpu.TypeUnsignedByte},

	// Dual channel.
	{gpu.FormatLuminanceAlpha, gpu.TypeFloat}:           {gpu.FormatRG32Float, gpu.FormatRG, gpu.TypeFloat},
	{gpu.FormatLuminanceAlpha, gpu.TypeHalfFloatLegacy}: {gpu.FormatRG16Float, gpu.FormatRG, gpu.TypeHalfFloat},
	{gpu.FormatLuminanceAlpha, gpu.TypeHalfFloat}:       {gpu.FormatRG16Float, gpu.FormatRG, gpu.TypeHalfFloat},

	// RGB / RGBA float and half-float promotions.
	{gpu.FormatRGB, gpu.TypeFloat}:            {gpu.FormatRGB32Float, gpu.FormatRGB, gpu.TypeFloat},
	{gpu.FormatRGB, gpu.TypeHalfFloatLegacy}:  {gpu.FormatRGB16Float, gpu.FormatRGB, gpu.TypeHalfFloat},
	{gpu.FormatRGB, gpu.TypeHalfFloat}:        {gpu.FormatRGB16Float, gpu.FormatRGB, gpu.TypeHalfFloat},
	{gpu.FormatRGBA, gpu.TypeFloat}:           {gpu.FormatRGBA32Float, gpu.FormatRGBA, gpu.TypeFloat},
	{gpu.FormatRGBA, gpu.TypeHalfFloatLegacy}: {gpu.FormatRGBA16Float, gpu.FormatRGBA, gpu.TypeHalfFloat},
	{gpu.FormatRGBA, gpu.TypeHalfFloat}:       {gpu.FormatRGBA16Float, gpu.FormatRGBA, gpu.TypeHalfFloat},
	{gpu.FormatRGBA, gpu.TypeUnsignedByte}:    {gpu.FormatRGBA8, gpu.FormatRGBA, gpu.TypeUnsignedByte},

	// Depth and depth-stencil.
	{gpu.FormatDepthComponent, gpu.TypeUnsignedShort}: {gpu.FormatDepth24, gpu.FormatDepthComponent, gpu.TypeUnsignedInt},
	{gpu.FormatDepthComponent, gpu.TypeUnsignedInt}:   {gpu.FormatDepth24, gpu.FormatDepthComponent, gpu.TypeUnsignedInt},
	{gpu.FormatDepthComponent, gpu.TypeFloat}:         {gpu.FormatDepth32Float, gpu.FormatDepthComponent, gpu.TypeFloat},
	{gpu.FormatDepthStencil, gpu.TypeUnsignedInt}:     {gpu.FormatDepth24Stencil8, gpu.FormatDepthStencil, gpu.TypeUnsignedInt},
}

// Resolve rewrites an upload's (internal format, type) pair into the sized
// internal format, the new API's transfer format, and the new API's type
// constant. The rewrite is derived from the original pair only; already
// sized pairs are returned unchanged, so applying Resolve to its own output
// is a no-op.
func Resolve(internal gpu.Format, typ gpu.PixelType) Resolved {
	if r, ok := rewrites[formatKey{internal, typ}]; ok {
		return r
	}
	return Resolved{Internal: internal, Transfer: internal, Type: typ}
}

// Adapter wraps a newer-generation gpu.Adapter so rendering code written
// against the legacy format names runs unmodified. All texture entry points
// route through [Resolve]; everything else delegates to the inner adapter.
type Adapter struct {
	inner gpu.Adapter
	caps  map[Feature]Capability
}

// Wrap returns a compatibility adapter over inner.
// If inner is nil (context could not be created), Wrap returns nil rather
// than panicking, matching the calling convention of context acquisition.
func Wrap(inner gpu.Adapter) *Adapter {
	if inner == nil {
		return nil
	}
	caps := make(map[Feature]Capability)
	for f := FeatureInstancing; f <= FeatureTextureLODBias; f++ {
		caps[f] = Capability{Feature: f, Native: true}
	}
	return &Adapter{inner: inner, caps: caps}
}

// Version returns the API generation marker of the wrapped context.
func (a *Adapter) Version() int { return APIVersion }

// Capability reports whether the legacy extension is available and how it
// is satisfied. The registry is resolved once at wrap time.
func (a *Adapter) Capability(f Feature) (Capability, bool) {
	c, ok := a.caps[f]
	return c, ok
}

// Name returns the inner backend name.
func (a *Adapter) Name() string { return a.inner.Name() }

// MaxTextureSize delegates to the inner adapter.
func (a *Adapter) MaxTextureSize() int { return a.inner.MaxTextureSize() }

// Generation delegates to the inner adapter.
func (a *Adapter) Generation() uint64 { return a.inner.Generation() }

// CreateTexture rewrites the request's format/type through Resolve before
// delegating. This covers the raw-buffer creation entry point.
func (a *Adapter) CreateTexture(desc gpu.TextureDesc) (gpu.TextureID, error) {
	r := Resolve(desc.Format, desc.Type)
	desc.Format = r.Internal
	desc.Type = r.Type
	return a.inner.CreateTexture(desc)
}

// WriteTexture delegates; the texture was created with the rewritten format,
// so in-place sub-uploads need no further translation.
func (a *Adapter) WriteTexture(id gpu.TextureID, data []byte) error {
	return a.inner.WriteTexture(id, data)
}

// ReadTexture delegates to the inner adapter.
func (a *Adapter) ReadTexture(id gpu.TextureID) ([]byte, error) {
	return a.inner.ReadTexture(id)
}

// DestroyTexture delegates to the inner adapter.
func (a *Adapter) DestroyTexture(id gpu.TextureID) { a.inner.DestroyTexture(id) }

// Close delegates to the inner adapter.
func (a *Adapter) Close() { a.inner.Close() }
