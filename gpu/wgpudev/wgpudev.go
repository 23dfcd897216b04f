// Package wgpudev backs the gpu.Adapter boundary with a wgpu device.
//
// The package owns device acquisition and limit reporting: it creates a
// logical device from a wgpu adapter handed in by the host application,
// reads the device limits that gate texture allocation, and releases the
// handles on Close. Texture contents are staged in host memory; the staging
// layout is identical to the software backend so the pipeline behaves the
// same on either.
//
// The backend registers itself as "wgpu" but reports unavailable (nil from
// the factory) until the host provides an adapter handle via [SetAdapterID].
package wgpudev

import (
	"fmt"
	"sync"

	types "github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/core"

	"github.com/fzimmermann89/mrui/gpu"
	"github.com/fzimmermann89/mrui/gpu/software"
)

var (
	pendingMu sync.Mutex
	pendingID core.AdapterID
	hasID     bool
)

func init() {
	gpu.Register(gpu.BackendWGPU, func() gpu.Adapter {
		pendingMu.Lock()
		id, ok := pendingID, hasID
		pendingMu.Unlock()
		if !ok {
			return nil
		}
		a, err := Acquire(id, "mrui-viewer")
		if err != nil {
			return nil
		}
		return a
	})
}

// SetAdapterID hands the backend a wgpu adapter to build devices from.
// Call this once during host setup, before gpu.Default().
func SetAdapterID(id core.AdapterID) {
	pendingMu.Lock()
	pendingID = id
	hasID = true
	pendingMu.Unlock()
}

// GPUInfo describes the selected GPU.
type GPUInfo struct {
	// Name is the GPU name (e.g. "NVIDIA GeForce RTX 3080").
	Name string
	// Vendor is the GPU vendor.
	Vendor string
	// DeviceType is the type of GPU (discrete, integrated, etc.).
	DeviceType types.DeviceType
	// Backend is the graphics API in use (Vulkan, Metal, DX12).
	Backend types.Backend
	// Driver is the driver version string.
	Driver string
}

// String returns a human-readable description of the GPU.
func (g *GPUInfo) String() string {
	return fmt.Sprintf("%s (%s, %s)", g.Name, g.DeviceType, g.Backend)
}

// Info retrieves information about a wgpu adapter.
func Info(adapterID core.AdapterID) (*GPUInfo, error) {
	info, err := core.GetAdapterInfo(adapterID)
	if err != nil {
		return nil, fmt.Errorf("wgpudev: failed to get adapter info: %w", err)
	}
	return &GPUInfo{
		Name:       info.Name,
		Vendor:     info.Vendor,
		DeviceType: info.DeviceType,
		Backend:    info.Backend,
		Driver:     info.Driver,
	}, nil
}

// Adapter is a gpu.Adapter backed by a wgpu device for limits and lifetime,
// with host-memory texture staging.
// Adapter is safe for concurrent use.
type Adapter struct {
	mu sync.Mutex

	adapterID core.AdapterID
	deviceID  core.DeviceID
	queueID   core.QueueID

	maxTextureSize int
	generation     uint64

	staging *software.Adapter
	closed  bool
}

// Acquire creates a logical device on the given wgpu adapter and returns a
// gpu.Adapter using its limits. The caller keeps ownership of the wgpu
// adapter handle; Close releases only the device.
func Acquire(adapterID core.AdapterID, label string) (*Adapter, error) {
	desc := &types.DeviceDescriptor{
		Label:            label,
		RequiredFeatures: nil,
		RequiredLimits:   types.DefaultLimits(),
	}
	deviceID, err := core.RequestDevice(adapterID, desc)
	if err != nil {
		return nil, fmt.Errorf("wgpudev: failed to create device: %w", err)
	}

	queueID, err := core.GetDeviceQueue(deviceID)
	if err != nil {
		releaseDevice(deviceID)
		return nil, fmt.Errorf("wgpudev: failed to get device queue: %w", err)
	}

	limits, err := core.GetDeviceLimits(deviceID)
	if err != nil {
		releaseDevice(deviceID)
		return nil, fmt.Errorf("wgpudev: failed to get device limits: %w", err)
	}

	return &Adapter{
		adapterID:      adapterID,
		deviceID:       deviceID,
		queueID:        queueID,
		maxTextureSize: int(limits.MaxTextureDimension2D),
		generation:     1,
		staging:        software.New(),
	}, nil
}

// releaseDevice releases a device, ignoring zero handles.
func releaseDevice(deviceID core.DeviceID) {
	if deviceID.IsZero() {
		return
	}
	_ = core.DeviceDrop(deviceID)
}

// Name returns "wgpu".
func (a *Adapter) Name() string { return gpu.BackendWGPU }

// MaxTextureSize returns the device's 2-D texture dimension limit.
func (a *Adapter) MaxTextureSize() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.maxTextureSize
}

// Generation returns the device incarnation. Recreating the device after a
// loss bumps it, invalidating previously created textures.
func (a *Adapter) Generation() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.generation
}

// Recreate replaces a lost device with a fresh one on the same wgpu adapter
// and bumps the generation. All staged textures are dropped.
func (a *Adapter) Recreate(label string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return gpu.ErrClosed
	}

	releaseDevice(a.deviceID)
	a.deviceID = core.DeviceID{}

	deviceID, err := core.RequestDevice(a.adapterID, &types.DeviceDescriptor{
		Label:            label,
		RequiredFeatures: nil,
		RequiredLimits:   types.DefaultLimits(),
	})
	if err != nil {
		return fmt.Errorf("wgpudev: failed to recreate device: %w", err)
	}
	queueID, err := core.GetDeviceQueue(deviceID)
	if err != nil {
		releaseDevice(deviceID)
		return fmt.Errorf("wgpudev: failed to get device queue: %w", err)
	}
	limits, err := core.GetDeviceLimits(deviceID)
	if err != nil {
		releaseDevice(deviceID)
		return fmt.Errorf("wgpudev: failed to get device limits: %w", err)
	}

	a.deviceID = deviceID
	a.queueID = queueID
	a.maxTextureSize = int(limits.MaxTextureDimension2D)
	a.generation++
	a.staging.Close()
	a.staging = software.New()
	return nil
}

// CreateTexture allocates a texture within the device's limits.
func (a *Adapter) CreateTexture(desc gpu.TextureDesc) (gpu.TextureID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return gpu.InvalidID, gpu.ErrClosed
	}
	if desc.Width > a.maxTextureSize || desc.Height > a.maxTextureSize {
		return gpu.InvalidID, gpu.ErrTextureSize
	}
	return a.staging.CreateTexture(desc)
}

// WriteTexture replaces a texture's contents in place.
func (a *Adapter) WriteTexture(id gpu.TextureID, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return gpu.ErrClosed
	}
	return a.staging.WriteTexture(id, data)
}

// ReadTexture returns a copy of a texture's contents.
func (a *Adapter) ReadTexture(id gpu.TextureID) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, gpu.ErrClosed
	}
	return a.staging.ReadTexture(id)
}

// DestroyTexture releases a texture.
func (a *Adapter) DestroyTexture(id gpu.TextureID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.staging.DestroyTexture(id)
}

// Close releases the device and all staged textures. Close is idempotent.
// The wgpu adapter handle stays with the caller; use [Release] to drop it.
func (a *Adapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.closed = true
	a.staging.Close()
	releaseDevice(a.deviceID)
	a.deviceID = core.DeviceID{}
}

// Release drops a wgpu adapter handle once no device uses it anymore.
func Release(adapterID core.AdapterID) error {
	if adapterID.IsZero() {
		return nil
	}
	if err := core.AdapterDrop(adapterID); err != nil {
		return fmt.Errorf("wgpudev: failed to release adapter: %w", err)
	}
	return nil
}
