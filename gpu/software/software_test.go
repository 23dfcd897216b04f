package software

import (
	"errors"
	"testing"

	"github.com/fzimmermann89/mrui/gpu"
)

func floatDesc(w, h int) gpu.TextureDesc {
	return gpu.TextureDesc{
		Width:  w,
		Height: h,
		Format: gpu.FormatR32Float,
		Type:   gpu.TypeFloat,
		Filter: gpu.FilterNearest,
	}
}

func TestCreateWriteRead(t *testing.T) {
	a := New()
	defer a.Close()

	id, err := a.CreateTexture(floatDesc(2, 2))
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	if id == gpu.InvalidID {
		t.Fatal("got invalid ID")
	}

	data := make([]byte, 2*2*4)
	data[0] = 0xAB
	if err := a.WriteTexture(id, data); err != nil {
		t.Fatalf("WriteTexture: %v", err)
	}
	got, err := a.ReadTexture(id)
	if err != nil {
		t.Fatalf("ReadTexture: %v", err)
	}
	if got[0] != 0xAB {
		t.Error("readback does not match upload")
	}
	// Readback is a copy, not an alias.
	got[0] = 0
	again, _ := a.ReadTexture(id)
	if again[0] != 0xAB {
		t.Error("ReadTexture aliases internal storage")
	}
}

func TestWriteSizeMismatch(t *testing.T) {
	a := New()
	defer a.Close()

	id, _ := a.CreateTexture(floatDesc(4, 4))
	err := a.WriteTexture(id, make([]byte, 7))
	if !errors.Is(err, gpu.ErrSizeMismatch) {
		t.Errorf("expected ErrSizeMismatch, got %v", err)
	}
}

func TestMaxTextureSize(t *testing.T) {
	a := New()
	defer a.Close()

	_, err := a.CreateTexture(floatDesc(MaxTextureSize+1, 1))
	if !errors.Is(err, gpu.ErrTextureSize) {
		t.Errorf("expected ErrTextureSize, got %v", err)
	}
}

func TestUnknownTexture(t *testing.T) {
	a := New()
	defer a.Close()

	if err := a.WriteTexture(999, nil); !errors.Is(err, gpu.ErrUnknownTexture) {
		t.Errorf("expected ErrUnknownTexture, got %v", err)
	}
	if _, err := a.ReadTexture(999); !errors.Is(err, gpu.ErrUnknownTexture) {
		t.Errorf("expected ErrUnknownTexture, got %v", err)
	}
	a.DestroyTexture(999) // must not panic
}

func TestDestroyAndClose(t *testing.T) {
	a := New()
	id, _ := a.CreateTexture(floatDesc(1, 1))
	if a.TextureCount() != 1 {
		t.Fatalf("TextureCount = %d", a.TextureCount())
	}
	a.DestroyTexture(id)
	if a.TextureCount() != 0 {
		t.Errorf("TextureCount after destroy = %d", a.TextureCount())
	}

	a.Close()
	a.Close() // idempotent
	if _, err := a.CreateTexture(floatDesc(1, 1)); !errors.Is(err, gpu.ErrClosed) {
		t.Errorf("expected ErrClosed after Close, got %v", err)
	}
}

func TestRegistered(t *testing.T) {
	a := gpu.Get(gpu.BackendSoftware)
	if a == nil {
		t.Fatal("software backend not registered")
	}
	if a.Name() != gpu.BackendSoftware {
		t.Errorf("Name = %q", a.Name())
	}
	a.Close()
}
