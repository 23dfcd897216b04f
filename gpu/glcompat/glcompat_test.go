package glcompat

import (
	"testing"

	"github.com/fzimmermann89/mrui/gpu"
	"github.com/fzimmermann89/mrui/gpu/software"
)

func TestResolveMatrix(t *testing.T) {
	tests := []struct {
		name     string
		internal gpu.Format
		typ      gpu.PixelType
		want     Resolved
	}{
		{"luminance float", gpu.FormatLuminance, gpu.TypeFloat,
			Resolved{gpu.FormatR32Float, gpu.FormatRed, gpu.TypeFloat}},
		{"luminance legacy half", gpu.FormatLuminance, gpu.TypeHalfFloatLegacy,
			Resolved{gpu.FormatR16Float, gpu.FormatRed, gpu.TypeHalfFloat}},
		{"luminance byte", gpu.FormatLuminance, gpu.TypeUnsignedByte,
			Resolved{gpu.FormatR8, gpu.FormatRed, gpu.TypeUnsignedByte}},
		{"alpha byte", gpu.FormatAlpha, gpu.TypeUnsignedByte,
			Resolved{gpu.FormatR8, gpu.FormatRed, gpu.TypeUnsignedByte}},
		{"luminance-alpha float", gpu.FormatLuminanceAlpha, gpu.TypeFloat,
			Resolved{gpu.FormatRG32Float, gpu.FormatRG, gpu.TypeFloat}},
		{"luminance-alpha legacy half", gpu.FormatLuminanceAlpha, gpu.TypeHalfFloatLegacy,
			Resolved{gpu.FormatRG16Float, gpu.FormatRG, gpu.TypeHalfFloat}},
		{"rgb float", gpu.FormatRGB, gpu.TypeFloat,
			Resolved{gpu.FormatRGB32Float, gpu.FormatRGB, gpu.TypeFloat}},
		{"rgb legacy half", gpu.FormatRGB, gpu.TypeHalfFloatLegacy,
			Resolved{gpu.FormatRGB16Float, gpu.FormatRGB, gpu.TypeHalfFloat}},
		{"rgba float", gpu.FormatRGBA, gpu.TypeFloat,
			Resolved{gpu.FormatRGBA32Float, gpu.FormatRGBA, gpu.TypeFloat}},
		{"rgba legacy half", gpu.FormatRGBA, gpu.TypeHalfFloatLegacy,
			Resolved{gpu.FormatRGBA16Float, gpu.FormatRGBA, gpu.TypeHalfFloat}},
		{"rgba byte", gpu.FormatRGBA, gpu.TypeUnsignedByte,
			Resolved{gpu.FormatRGBA8, gpu.FormatRGBA, gpu.TypeUnsignedByte}},
		{"depth ushort", gpu.FormatDepthComponent, gpu.TypeUnsignedShort,
			Resolved{gpu.FormatDepth24, gpu.FormatDepthComponent, gpu.TypeUnsignedInt}},
		{"depth uint", gpu.FormatDepthComponent, gpu.TypeUnsignedInt,
			Resolved{gpu.FormatDepth24, gpu.FormatDepthComponent, gpu.TypeUnsignedInt}},
		{"depth float", gpu.FormatDepthComponent, gpu.TypeFloat,
			Resolved{gpu.FormatDepth32Float, gpu.FormatDepthComponent, gpu.TypeFloat}},
		{"depth-stencil", gpu.FormatDepthStencil, gpu.TypeUnsignedInt,
			Resolved{gpu.FormatDepth24Stencil8, gpu.FormatDepthStencil, gpu.TypeUnsignedInt}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.internal, tt.typ)
			if got != tt.want {
				t.Errorf("Resolve(%d,%d) = %+v, want %+v", tt.internal, tt.typ, got, tt.want)
			}
		})
	}
}

// Resolve must be derived from the original pair only: feeding its own
// output back in must not change anything.
func TestResolveIdempotent(t *testing.T) {
	pairs := []formatKey{
		{gpu.FormatLuminance, gpu.TypeFloat},
		{gpu.FormatLuminanceAlpha, gpu.TypeHalfFloatLegacy},
		{gpu.FormatRGBA, gpu.TypeFloat},
		{gpu.FormatDepthComponent, gpu.TypeUnsignedShort},
		{gpu.FormatR32Float, gpu.TypeFloat},
	}
	for _, p := range pairs {
		first := Resolve(p.internal, p.typ)
		second := Resolve(first.Internal, first.Type)
		if second.Internal != first.Internal || second.Type != first.Type {
			t.Errorf("double rewrite for %+v: %+v -> %+v", p, first, second)
		}
	}
}

func TestResolvePassthroughSized(t *testing.T) {
	got := Resolve(gpu.FormatR32Float, gpu.TypeFloat)
	want := Resolved{gpu.FormatR32Float, gpu.FormatR32Float, gpu.TypeFloat}
	if got != want {
		t.Errorf("sized format must pass through, got %+v", got)
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil) != nil {
		t.Error("Wrap(nil) must return nil, not panic or a broken adapter")
	}
}

func TestCapabilities(t *testing.T) {
	a := Wrap(software.New())
	defer a.Close()

	if a.Version() != APIVersion {
		t.Errorf("Version = %d", a.Version())
	}
	for f := FeatureInstancing; f <= FeatureTextureLODBias; f++ {
		c, ok := a.Capability(f)
		if !ok {
			t.Errorf("capability %s missing", f)
			continue
		}
		if !c.Native {
			t.Errorf("capability %s should be native on the newer API", f)
		}
	}
}

// A legacy single-channel float upload through the wrapped adapter must land
// as a sized single-channel float texture.
func TestWrappedCreateRewrites(t *testing.T) {
	inner := software.New()
	a := Wrap(inner)
	defer a.Close()

	id, err := a.CreateTexture(gpu.TextureDesc{
		Width: 4, Height: 4,
		Format: gpu.FormatLuminance,
		Type:   gpu.TypeFloat,
		Filter: gpu.FilterNearest,
	})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}

	// R32Float is 4 bytes per texel; a luminance byte texture would be 1.
	data := make([]byte, 4*4*4)
	if err := a.WriteTexture(id, data); err != nil {
		t.Fatalf("WriteTexture sized as R32Float: %v", err)
	}
}
