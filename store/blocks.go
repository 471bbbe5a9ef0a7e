package store

import (
	"errors"
	"fmt"

	"github.com/hupe1980/virtualizer/internal/boltfile"
	"github.com/hupe1980/virtualizer/internal/swap"
)

// BlockStore is raw handle-addressed storage for serialized payloads.
type BlockStore interface {
	Write(data []byte) (Handle, error)
	Read(h Handle, remove bool) ([]byte, error)
	Free(h Handle) error
	Dispose() error
	IsDisposed() bool
	Name() string
}

type blockFile[H Handle] interface {
	Write(data []byte) (H, error)
	Read(h H, remove bool) ([]byte, error)
	Free(h H) error
	Dispose() error
	IsDisposed() bool
	Name() string
}

// blocks adapts a concrete block file and maps its errors onto the store
// sentinels.
type blocks[H Handle] struct {
	f           blockFile[H]
	disposedErr error
	invalidErr  error
}

// SwapBlocks returns a BlockStore backed by a swap file.
func SwapBlocks(f *swap.File) BlockStore {
	return &blocks[swap.Handle]{f: f, disposedErr: swap.ErrDisposed, invalidErr: swap.ErrInvalidHandle}
}

// BoltBlocks returns a BlockStore backed by a bbolt swap file.
func BoltBlocks(f *boltfile.File) BlockStore {
	return &blocks[boltfile.Handle]{f: f, disposedErr: boltfile.ErrDisposed, invalidErr: boltfile.ErrInvalidHandle}
}

func (b *blocks[H]) Write(data []byte) (Handle, error) {
	h, err := b.f.Write(data)
	if err != nil {
		return nil, b.mapError(err)
	}
	return h, nil
}

func (b *blocks[H]) Read(h Handle, remove bool) ([]byte, error) {
	hh, ok := h.(H)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrInvalidHandle, h)
	}
	data, err := b.f.Read(hh, remove)
	return data, b.mapError(err)
}

func (b *blocks[H]) Free(h Handle) error {
	hh, ok := h.(H)
	if !ok {
		return fmt.Errorf("%w: %T", ErrInvalidHandle, h)
	}
	return b.mapError(b.f.Free(hh))
}

func (b *blocks[H]) Dispose() error { return b.f.Dispose() }

func (b *blocks[H]) IsDisposed() bool { return b.f.IsDisposed() }

func (b *blocks[H]) Name() string { return b.f.Name() }

func (b *blocks[H]) String() string { return b.f.Name() }

func (b *blocks[H]) mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, b.disposedErr):
		return fmt.Errorf("%w: %w", ErrDisposed, err)
	case errors.Is(err, b.invalidErr):
		return fmt.Errorf("%w: %w", ErrInvalidHandle, err)
	default:
		return err
	}
}
