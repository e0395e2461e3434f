//go:build windows

package shm

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// mappingRegion is a Region backed by a Windows file mapping object, the
// counterpart of fileRegion on Linux/BSD/darwin - the host-side viewer on
// Windows maps the same IVSHMEM-backed section the guest driver exposes.
type mappingRegion struct {
	handle windows.Handle
	addr   uintptr
	data   []byte
}

// OpenFile maps `size` bytes of a named file mapping shared between every
// process that opens the same name. `path` is used as the mapping name.
func OpenFile(path string, size uint64) (Region, error) {
	name, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, fmt.Errorf("shm: encode mapping name %q: %w", path, err)
	}

	high := uint32(size >> 32)
	low := uint32(size & 0xFFFFFFFF)
	handle, err := windows.CreateFileMapping(windows.InvalidHandle, nil, windows.PAGE_READWRITE, high, low, name)
	if err != nil {
		return nil, fmt.Errorf("shm: CreateFileMapping %q: %w", path, err)
	}

	addr, err := windows.MapViewOfFile(handle, windows.FILE_MAP_READ|windows.FILE_MAP_WRITE, 0, 0, uintptr(size))
	if err != nil {
		windows.CloseHandle(handle)
		return nil, fmt.Errorf("shm: MapViewOfFile %q: %w", path, err)
	}

	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
	return &mappingRegion{handle: handle, addr: addr, data: data}, nil
}

func (r *mappingRegion) Bytes() []byte {
	return r.data
}

func (r *mappingRegion) Size() uint64 {
	return uint64(len(r.data))
}

func (r *mappingRegion) Close() error {
	if r.addr == 0 {
		return nil
	}
	err := windows.UnmapViewOfFile(r.addr)
	r.addr = 0
	r.data = nil
	if cerr := windows.CloseHandle(r.handle); err == nil {
		err = cerr
	}
	return err
}
