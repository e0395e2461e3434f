//go:build linux || freebsd || darwin

package shm

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// fileRegion is a Region backed by unix.Mmap over an open file descriptor,
// the same primitive the IVSHMEM device node is mapped with on the guest
// side (see ivshmem.c's own use of mmap(2) over /dev/shm/... or the
// ivshmem char device).
type fileRegion struct {
	data []byte
	file *os.File
}

// OpenFile maps `size` bytes of `path` shared between every process that
// opens the same path, growing the file to `size` first if needed. `path`
// is typically the ivshmem device node (e.g. /dev/shm/looking-glass) on a
// real deployment, or a plain regular file in tests.
func OpenFile(path string, size uint64) (Region, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o660)
	if err != nil {
		return nil, fmt.Errorf("shm: open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shm: stat %s: %w", path, err)
	}
	//nolint:gosec // G115: size is bounded well under int64 max for any realistic shared region
	if uint64(info.Size()) < size {
		if err := f.Truncate(int64(size)); err != nil {
			f.Close()
			return nil, fmt.Errorf("shm: truncate %s to %d: %w", path, size, err)
		}
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shm: mmap %s: %w", path, err)
	}

	return &fileRegion{data: data, file: f}, nil
}

func (r *fileRegion) Bytes() []byte {
	return r.data
}

func (r *fileRegion) Size() uint64 {
	return uint64(len(r.data))
}

func (r *fileRegion) Close() error {
	if r.data == nil {
		return nil
	}
	err := unix.Munmap(r.data)
	r.data = nil
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	return err
}
