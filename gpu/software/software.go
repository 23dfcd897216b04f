// Package software provides the CPU reference implementation of gpu.Adapter.
//
// Textures live in host memory; uploads and readbacks are plain copies.
// The backend is always available and registers itself as "software".
package software

import (
	"fmt"
	"sync"

	"github.com/fzimmermann89/mrui/gpu"
)

// MaxTextureSize is the maximum texture dimension accepted by the software
// backend. Matches the common limit of current desktop devices so size
// guards behave the same on either backend.
const MaxTextureSize = 16384

func init() {
	gpu.Register(gpu.BackendSoftware, func() gpu.Adapter {
		return New()
	})
}

// Adapter is a CPU-backed gpu.Adapter.
// Adapter is safe for concurrent use.
type Adapter struct {
	mu       sync.Mutex
	textures map[gpu.TextureID]*texture
	nextID   gpu.TextureID
	closed   bool
}

type texture struct {
	desc gpu.TextureDesc
	data []byte
}

// New creates a new software adapter.
func New() *Adapter {
	return &Adapter{
		textures: make(map[gpu.TextureID]*texture),
		nextID:   1,
	}
}

// Name returns "software".
func (a *Adapter) Name() string { return gpu.BackendSoftware }

// MaxTextureSize returns the maximum texture dimension.
func (a *Adapter) MaxTextureSize() int { return MaxTextureSize }

// Generation always returns 1: host memory cannot be lost.
func (a *Adapter) Generation() uint64 { return 1 }

// CreateTexture allocates a zero-filled host texture.
func (a *Adapter) CreateTexture(desc gpu.TextureDesc) (gpu.TextureID, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return gpu.InvalidID, fmt.Errorf("software: invalid texture size %dx%d", desc.Width, desc.Height)
	}
	if desc.Width > MaxTextureSize || desc.Height > MaxTextureSize {
		return gpu.InvalidID, gpu.ErrTextureSize
	}
	bpp := desc.BytesPerPixel()
	if bpp == 0 {
		return gpu.InvalidID, fmt.Errorf("software: unsupported format/type combination %d/%d", desc.Format, desc.Type)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return gpu.InvalidID, gpu.ErrClosed
	}
	id := a.nextID
	a.nextID++
	a.textures[id] = &texture{
		desc: desc,
		data: make([]byte, desc.Width*desc.Height*bpp),
	}
	return id, nil
}

// WriteTexture replaces a texture's contents in place.
func (a *Adapter) WriteTexture(id gpu.TextureID, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return gpu.ErrClosed
	}
	tex, ok := a.textures[id]
	if !ok {
		return gpu.ErrUnknownTexture
	}
	if len(data) != len(tex.data) {
		return fmt.Errorf("%w: got %d bytes, want %d", gpu.ErrSizeMismatch, len(data), len(tex.data))
	}
	copy(tex.data, data)
	return nil
}

// ReadTexture returns a copy of a texture's contents.
func (a *Adapter) ReadTexture(id gpu.TextureID) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, gpu.ErrClosed
	}
	tex, ok := a.textures[id]
	if !ok {
		return nil, gpu.ErrUnknownTexture
	}
	out := make([]byte, len(tex.data))
	copy(out, tex.data)
	return out, nil
}

// DestroyTexture releases a texture. Unknown IDs are ignored.
func (a *Adapter) DestroyTexture(id gpu.TextureID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.textures, id)
}

// TextureCount returns the number of live textures. Used by tests to verify
// teardown.
func (a *Adapter) TextureCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.textures)
}

// Close releases all textures. Close is idempotent.
func (a *Adapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.closed = true
	a.textures = make(map[gpu.TextureID]*texture)
}
