package storage

import "fmt"

// ErrDuplicateKey and ErrNotFound are the page directory's two failure
// modes. ErrNotFound is the ordinary miss path for most buffer pool manager
// operations, not a surfaced error.
var (
	ErrDuplicateKey = fmt.Errorf("storage: directory: duplicate key")
	ErrNotFound     = fmt.Errorf("storage: directory: not found")
)

// BufferExceededError is returned when the CLOCK sweep cannot find an
// unpinned frame after two full passes. Recoverable: the caller must
// release pins and retry.
type BufferExceededError struct{}

func (e *BufferExceededError) Error() string {
	return "storage: buffer pool exceeded: no unpinned frame available"
}

// PageNotPinnedError is returned by UnpinPage when the page's pin count is
// already zero - a caller accounting bug.
type PageNotPinnedError struct {
	Filename string
	PageNo   PageID
	FrameNo  FrameID
}

func (e *PageNotPinnedError) Error() string {
	return fmt.Sprintf("storage: page %d of %q not pinned (frame %d)", e.PageNo, e.Filename, e.FrameNo)
}

// PagePinnedError is returned by FlushFile when it encounters a pinned
// page. The caller must unpin the page before flushing can complete.
type PagePinnedError struct {
	Filename string
	PageNo   PageID
	FrameNo  FrameID
}

func (e *PagePinnedError) Error() string {
	return fmt.Sprintf("storage: page %d of %q is pinned (frame %d), flush incomplete", e.PageNo, e.Filename, e.FrameNo)
}

// BadBufferError signals a broken frame-descriptor invariant: FlushFile
// found a frame whose file pointer matches the argument but which is not
// valid. This means internal corruption or caller misuse, never a normal
// control path.
type BadBufferError struct {
	FrameNo FrameID
	Dirty   bool
	Valid   bool
	RefBit  bool
}

func (e *BadBufferError) Error() string {
	return fmt.Sprintf("storage: bad buffer at frame %d (dirty=%v valid=%v ref=%v)", e.FrameNo, e.Dirty, e.Valid, e.RefBit)
}
