// Package render turns windowed float slices into RGBA frames.
//
// The pipeline keeps two textures on its adapter: the slice texture (one
// float channel, nearest-filtered so voxel boundaries stay crisp) and the
// colormap LUT (256x1 RGBA, linearly filtered). Values are normalized by
// the display window and mapped through the LUT; non-finite values and the
// padding sentinel come out fully transparent. Frames are letterboxed into
// the canvas with the slice aspect ratio preserved.
package render

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"

	xdraw "golang.org/x/image/draw"

	"github.com/fzimmermann89/mrui/gpu"
	"github.com/fzimmermann89/mrui/transform"
)

// SentinelMagnitude marks padding voxels: any value with a larger magnitude
// is treated as "no data" and rendered transparent.
const SentinelMagnitude = 1e20

// windowEpsilon keeps the window normalization finite for degenerate
// windows (vmax <= vmin).
const windowEpsilon = 1e-12

// ErrNoSlice is returned by Frame before any slice has been uploaded.
var ErrNoSlice = errors.New("render: no slice uploaded")

// Config configures a Pipeline.
type Config struct {
	// Adapter is the GPU adapter to render with. Required.
	Adapter gpu.Adapter

	// Colormap is the initial colormap name. Empty selects DefaultColormap.
	Colormap string

	// Logger receives debug output. Nil disables logging.
	Logger *slog.Logger
}

// Pipeline renders slices through a gpu.Adapter.
// Pipeline is safe for concurrent use.
type Pipeline struct {
	mu      sync.Mutex
	adapter gpu.Adapter
	logger  *slog.Logger

	// Context generation the textures were created under. A mismatch with
	// the adapter means the context was lost; everything is recreated.
	gen uint64

	sliceTex   gpu.TextureID
	sliceRows  int
	sliceCols  int
	sliceData  []float32
	haveSlice  bool

	lutTex  gpu.TextureID
	lut     []byte
	mapName string

	vmin, vmax float32

	// Canvas size in device pixels.
	width, height int

	closed bool
}

// NewPipeline creates a pipeline on the given adapter.
func NewPipeline(cfg Config) (*Pipeline, error) {
	if cfg.Adapter == nil {
		return nil, errors.New("render: nil adapter")
	}
	name := cfg.Colormap
	if name == "" {
		name = DefaultColormap
	}
	lut, err := BuildLUT(name)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p := &Pipeline{
		adapter: cfg.Adapter,
		logger:  logger,
		lut:     lut,
		mapName: name,
		vmin:    0,
		vmax:    1,
	}
	return p, nil
}

// SetWindow sets the display window. The next frame uses it; no texture
// changes.
func (p *Pipeline) SetWindow(vmin, vmax float32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.vmin, p.vmax = vmin, vmax
}

// Window returns the current display window.
func (p *Pipeline) Window() (vmin, vmax float32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.vmin, p.vmax
}

// SetColormap switches the colormap and re-uploads the LUT texture.
func (p *Pipeline) SetColormap(name string) error {
	lut, err := BuildLUT(name)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return gpu.ErrClosed
	}
	p.lut = lut
	p.mapName = name
	if p.lutTex != gpu.InvalidID {
		return p.adapter.WriteTexture(p.lutTex, p.lut)
	}
	return nil
}

// Colormap returns the current colormap name.
func (p *Pipeline) Colormap() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mapName
}

// Resize sets the canvas size from CSS dimensions and a device pixel
// ratio. The device size is the floor of css*dpr; nothing is reallocated
// unless the integer size actually changed, so sub-pixel layout jitter is
// free. Reports whether the size changed.
func (p *Pipeline) Resize(cssW, cssH, dpr float64) bool {
	w := int(math.Floor(cssW * dpr))
	h := int(math.Floor(cssH * dpr))

	p.mu.Lock()
	defer p.mu.Unlock()
	if w == p.width && h == p.height {
		return false
	}
	p.width, p.height = w, h
	return true
}

// Size returns the canvas size in device pixels.
func (p *Pipeline) Size() (w, h int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.width, p.height
}

// UploadSlice places a slice on the GPU. When the shape and the context
// generation are unchanged the existing texture is updated in place;
// otherwise the slice texture is recreated at the new shape.
func (p *Pipeline) UploadSlice(rows, cols int, data []float32) error {
	if rows <= 0 || cols <= 0 {
		return fmt.Errorf("render: invalid slice shape %dx%d", rows, cols)
	}
	if len(data) != rows*cols {
		return fmt.Errorf("%w: %d values for %dx%d slice", gpu.ErrSizeMismatch, len(data), rows, cols)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return gpu.ErrClosed
	}
	if _, err := p.ensureTextures(rows, cols); err != nil {
		return err
	}
	p.sliceData = data
	p.haveSlice = true
	return p.adapter.WriteTexture(p.sliceTex, floatBytes(data))
}

// ensureTextures creates or recreates the slice and LUT textures as needed.
// Reports whether the slice texture was (re)created and therefore holds no
// data. Caller holds p.mu.
func (p *Pipeline) ensureTextures(rows, cols int) (created bool, _ error) {
	gen := p.adapter.Generation()
	lost := gen != p.gen

	if lost && p.gen != 0 {
		p.logger.Debug("context generation changed, recreating textures",
			"old", p.gen, "new", gen)
		// Old IDs are dead with the old context; just forget them.
		p.sliceTex = gpu.InvalidID
		p.lutTex = gpu.InvalidID
	}
	p.gen = gen

	if p.lutTex == gpu.InvalidID {
		id, err := p.adapter.CreateTexture(gpu.TextureDesc{
			Width:  LUTSize,
			Height: 1,
			Format: gpu.FormatRGBA,
			Type:   gpu.TypeUnsignedByte,
			Filter: gpu.FilterLinear,
			Label:  "colormap-lut",
		})
		if err != nil {
			return false, err
		}
		p.lutTex = id
		if err := p.adapter.WriteTexture(p.lutTex, p.lut); err != nil {
			return false, err
		}
	}

	if p.sliceTex != gpu.InvalidID && rows == p.sliceRows && cols == p.sliceCols {
		return false, nil
	}
	if p.sliceTex != gpu.InvalidID {
		p.adapter.DestroyTexture(p.sliceTex)
		p.sliceTex = gpu.InvalidID
	}
	if max := p.adapter.MaxTextureSize(); rows > max || cols > max {
		return false, fmt.Errorf("%w: %dx%d exceeds %d", gpu.ErrTextureSize, cols, rows, max)
	}
	id, err := p.adapter.CreateTexture(gpu.TextureDesc{
		Width:  cols,
		Height: rows,
		Format: gpu.FormatLuminance,
		Type:   gpu.TypeFloat,
		Filter: gpu.FilterNearest,
		Label:  "slice",
	})
	if err != nil {
		return false, err
	}
	p.sliceTex = id
	p.sliceRows, p.sliceCols = rows, cols
	return true, nil
}

// FittedRect returns the letterbox rectangle the slice occupies on the
// current canvas.
func (p *Pipeline) FittedRect() transform.Rect {
	p.mu.Lock()
	defer p.mu.Unlock()
	return transform.FittedRect(float64(p.width), float64(p.height), float64(p.sliceCols), float64(p.sliceRows))
}

// Frame renders the current slice into an RGBA image of the canvas size.
// The slice is shaded texel by texel through the window and the colormap
// LUT, then scaled into the letterbox rectangle with nearest-neighbor
// sampling; the border stays fully transparent.
func (p *Pipeline) Frame() (*image.RGBA, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, gpu.ErrClosed
	}
	if !p.haveSlice {
		p.mu.Unlock()
		return nil, ErrNoSlice
	}
	if p.width <= 0 || p.height <= 0 {
		p.mu.Unlock()
		return nil, fmt.Errorf("render: zero canvas %dx%d", p.width, p.height)
	}
	// A context loss between upload and frame is healed here from the
	// retained slice data.
	created, err := p.ensureTextures(p.sliceRows, p.sliceCols)
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}
	if created {
		if err := p.adapter.WriteTexture(p.sliceTex, floatBytes(p.sliceData)); err != nil {
			p.mu.Unlock()
			return nil, err
		}
	}

	raw, err := p.adapter.ReadTexture(p.sliceTex)
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}
	rows, cols := p.sliceRows, p.sliceCols
	vmin, vmax := p.vmin, p.vmax
	lut := p.lut
	width, height := p.width, p.height
	p.mu.Unlock()

	shaded := image.NewRGBA(image.Rect(0, 0, cols, rows))
	for i := 0; i < rows*cols; i++ {
		v := math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		r, g, b, a := Shade(v, vmin, vmax, lut)
		o := i * 4
		shaded.Pix[o+0] = r
		shaded.Pix[o+1] = g
		shaded.Pix[o+2] = b
		shaded.Pix[o+3] = a
	}

	frame := image.NewRGBA(image.Rect(0, 0, width, height))
	r := transform.FittedRect(float64(width), float64(height), float64(cols), float64(rows))
	dst := image.Rect(
		int(math.Round(r.X)), int(math.Round(r.Y)),
		int(math.Round(r.X+r.W)), int(math.Round(r.Y+r.H)),
	)
	xdraw.NearestNeighbor.Scale(frame, dst, shaded, shaded.Bounds(), xdraw.Src, nil)
	return frame, nil
}

// Shade maps one voxel value through the window and the colormap LUT.
// NaNs and sentinel-magnitude padding come out fully transparent.
func Shade(v, vmin, vmax float32, lut []byte) (r, g, b, a uint8) {
	if v != v || v > SentinelMagnitude || v < -SentinelMagnitude {
		return 0, 0, 0, 0
	}
	span := float64(vmax) - float64(vmin)
	if span < windowEpsilon {
		span = windowEpsilon
	}
	t := (float64(v) - float64(vmin)) / span
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return sampleLUT(lut, float32(t))
}

// Close destroys the pipeline's textures. Close is idempotent; it does not
// close the adapter, which may be shared.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	if p.sliceTex != gpu.InvalidID {
		p.adapter.DestroyTexture(p.sliceTex)
		p.sliceTex = gpu.InvalidID
	}
	if p.lutTex != gpu.InvalidID {
		p.adapter.DestroyTexture(p.lutTex)
		p.lutTex = gpu.InvalidID
	}
	p.sliceData = nil
	p.haveSlice = false
}

func floatBytes(data []float32) []byte {
	out := make([]byte, len(data)*4)
	for i, v := range data {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}
