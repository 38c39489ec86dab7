package hramfs

import (
	"github.com/complyue/hramfs/pkg/alloc"
	"github.com/complyue/hramfs/pkg/errors"
)

// fileEntry is per-file metadata: name, handle, logical length and
// position, and the ordered sequence of slots backing it. Slot i backs
// bytes [i*FrameSize, (i+1)*FrameSize).
type fileEntry struct {
	name     string
	handle   int16 // >0 open, 0 closed
	length   uint32
	position uint32
	slots    []alloc.Slot
}

// fileTable is a flat ordered collection of file entries, following the
// teacher's flat-storage-plus-free-list convention (see pkg/jdfs/dfd.go
// in the retrieval pack): lookup by name or handle is linear, handles
// are recycled as the smallest unused positive value, and entries
// persist for the process lifetime once created.
type fileTable struct {
	entries []fileEntry
}

func newFileTable() *fileTable {
	return &fileTable{}
}

func (ft *fileTable) findByName(name string) int {
	for i := range ft.entries {
		if ft.entries[i].name == name {
			return i
		}
	}
	return -1
}

func (ft *fileTable) findByHandle(handle int16) int {
	if handle <= 0 {
		return -1
	}
	for i := range ft.entries {
		if ft.entries[i].handle == handle {
			return i
		}
	}
	return -1
}

func (ft *fileTable) smallestUnusedHandle() int16 {
	used := make(map[int16]bool, len(ft.entries))
	for _, e := range ft.entries {
		if e.handle > 0 {
			used[e.handle] = true
		}
	}
	for h := int16(1); ; h++ {
		if !used[h] {
			return h
		}
	}
}

// open resolves name to a handle: creating a fresh entry, reviving a
// closed one (resuming its content), or failing if already open.
func (ft *fileTable) open(name string) (handle int16, err error) {
	i := ft.findByName(name)
	if i < 0 {
		h := ft.smallestUnusedHandle()
		ft.entries = append(ft.entries, fileEntry{
			name:   name,
			handle: h,
		})
		return h, nil
	}
	e := &ft.entries[i]
	if e.handle > 0 {
		return 0, errors.Op("filetable.open", errors.KindAlreadyOpen,
			errors.Errorf("file %q already open with handle %d", name, e.handle))
	}
	e.position = 0
	e.handle = ft.smallestUnusedHandle()
	return e.handle, nil
}

// close sets handle=0 and position=0, retaining length and slots.
func (ft *fileTable) close(handle int16) error {
	i := ft.findByHandle(handle)
	if i < 0 {
		return errors.Op("filetable.close", errors.KindInvalidHandle,
			errors.Errorf("no open entry for handle %d", handle))
	}
	e := &ft.entries[i]
	e.handle = 0
	e.position = 0
	return nil
}

// get resolves handle to its entry, failing if bad or closed.
func (ft *fileTable) get(handle int16) (*fileEntry, error) {
	i := ft.findByHandle(handle)
	if i < 0 {
		return nil, errors.Op("filetable.get", errors.KindInvalidHandle,
			errors.Errorf("no open entry for handle %d", handle))
	}
	return &ft.entries[i], nil
}

// seek sets position to offset, failing if handle is bad/closed or
// offset exceeds length.
func (ft *fileTable) seek(handle int16, offset uint32) error {
	e, err := ft.get(handle)
	if err != nil {
		return err
	}
	if offset > e.length {
		return errors.Op("filetable.seek", errors.KindSeekOutOfRange,
			errors.Errorf("offset %d exceeds length %d", offset, e.length))
	}
	e.position = offset
	return nil
}

// reset releases all entries; used by poweroff.
func (ft *fileTable) reset() {
	ft.entries = nil
}
