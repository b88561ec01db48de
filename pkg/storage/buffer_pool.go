// Package storage provides the buffer pool manager: the in-memory page
// cache sitting between higher-level access methods and the on-disk page
// store. It owns a fixed-size array of frames and mediates every
// page-level read, write, allocation, and deletion, hiding disk latency,
// coordinating concurrent pins, and deciding which resident page to evict
// via a CLOCK sweep.
package storage

import (
	"fmt"
	"sync"
)

// BufferPoolManager is the replacement/access engine: the single entry
// point for page-level I/O. It runs under one lock (single-writer; see the
// package's concurrency notes) and preserves, across every call:
//
//  1. directory <-> descriptor consistency
//  2. at most one valid frame per (file, page) pair
//  3. pin counts matching outstanding borrows
//  4. pinned frames are never evicted
//  5. dirty frames are written through before going invalid
//  6. the clock hand stays in [0, N)
type BufferPoolManager struct {
	mu        sync.Mutex
	desc      []frameDescriptor
	pool      *pagePool
	dir       *directory
	clockHand FrameID
	poolSize  int
}

// NewBufferPoolManager constructs a manager over poolSize frames, all
// initially invalid. poolSize must be positive.
func NewBufferPoolManager(poolSize int) *BufferPoolManager {
	if poolSize <= 0 {
		panic("storage: buffer pool size must be positive")
	}

	desc := make([]frameDescriptor, poolSize)
	for i := range desc {
		desc[i].frameNo = FrameID(i)
	}

	return &BufferPoolManager{
		desc: desc,
		pool: newPagePool(poolSize),
		dir:  newDirectory(poolSize),
		// The cursor is advanced before inspection, so starting at N-1
		// makes frame 0 the first one the sweep visits.
		clockHand: FrameID(poolSize - 1),
		poolSize:  poolSize,
	}
}

// Size reports the number of frames in the pool.
func (bpm *BufferPoolManager) Size() int {
	return bpm.poolSize
}

// allocBuf runs the CLOCK victim selection sweep and leaves the chosen
// frame invalid and unpinned. Up to two passes (2N steps) are allowed, so
// a frame whose reference bit is cleared on the first pass can still be
// chosen on the second.
func (bpm *BufferPoolManager) allocBuf() (FrameID, error) {
	limit := 2 * bpm.poolSize
	for i := 0; i < limit; i++ {
		bpm.clockHand = (bpm.clockHand + 1) % FrameID(bpm.poolSize)
		d := &bpm.desc[bpm.clockHand]

		if !d.valid {
			return bpm.clockHand, nil
		}
		if d.refBit {
			d.refBit = false
			continue
		}
		if d.pinCnt > 0 {
			// Pinned pages are hot by definition; skip without touching
			// the reference bit.
			continue
		}

		// Victim found: evict it.
		bpm.dir.remove(d.file, d.pageNo)
		if d.dirty {
			if err := d.file.WritePage(bpm.pool.get(bpm.clockHand)); err != nil {
				return 0, fmt.Errorf("storage: evict frame %d: %w", bpm.clockHand, err)
			}
			d.dirty = false
		}

		frame := bpm.clockHand
		d.clear()
		return frame, nil
	}

	return 0, &BufferExceededError{}
}

// ReadPage returns a pinned borrow of (file, pageNo), fetching it from
// disk on a miss. It fails with a *BufferExceededError from the
// replacement engine, or with a wrapped error when writing back an evicted
// page or reading the page from the File fails; a directory miss is the
// normal miss path, not an error.
//
// The returned *Page is a live, mutable view into the pool slot; it must
// not be retained past the matching UnpinPage.
func (bpm *BufferPoolManager) ReadPage(file File, pageNo PageID) (*Page, error) {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	if frameNo, err := bpm.dir.lookup(file, pageNo); err == nil {
		d := &bpm.desc[frameNo]
		d.refBit = true
		d.pinCnt++
		return bpm.pool.get(frameNo), nil
	}

	frameNo, err := bpm.allocBuf()
	if err != nil {
		return nil, err
	}

	page, err := file.ReadPage(pageNo)
	if err != nil {
		return nil, fmt.Errorf("storage: read page %d from %q: %w", pageNo, file.Filename(), err)
	}

	bpm.pool.set(frameNo, page)
	if err := bpm.dir.insert(file, pageNo, frameNo); err != nil {
		return nil, fmt.Errorf("storage: install page %d of %q: %w", pageNo, file.Filename(), err)
	}
	bpm.desc[frameNo].set(file, pageNo)

	return page, nil
}

// AllocPage reserves a new page on file, installs it pinned and clean,
// and returns its id and a mutable borrow. The caller is expected to
// modify the page and eventually UnpinPage with dirty=true.
func (bpm *BufferPoolManager) AllocPage(file File) (PageID, *Page, error) {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	frameNo, err := bpm.allocBuf()
	if err != nil {
		return 0, nil, err
	}

	page, err := file.AllocatePage()
	if err != nil {
		return 0, nil, fmt.Errorf("storage: allocate page on %q: %w", file.Filename(), err)
	}
	pageNo := page.PageNumber()

	bpm.pool.set(frameNo, page)
	if err := bpm.dir.insert(file, pageNo, frameNo); err != nil {
		return 0, nil, fmt.Errorf("storage: install page %d of %q: %w", pageNo, file.Filename(), err)
	}
	bpm.desc[frameNo].set(file, pageNo)

	return pageNo, page, nil
}

// UnpinPage releases one borrow of (file, pageNo). Unpinning a page the
// pool has no record of is a no-op: higher layers may defensively unpin,
// and the operation is idempotent at that boundary. dirty is monotone -
// once set it is only cleared by eviction or flush.
func (bpm *BufferPoolManager) UnpinPage(file File, pageNo PageID, dirty bool) error {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	frameNo, err := bpm.dir.lookup(file, pageNo)
	if err != nil {
		return nil
	}

	d := &bpm.desc[frameNo]
	if d.pinCnt == 0 {
		return &PageNotPinnedError{Filename: file.Filename(), PageNo: pageNo, FrameNo: frameNo}
	}

	d.pinCnt--
	if dirty {
		d.dirty = true
	}
	return nil
}

// FlushFile writes back every dirty, unpinned frame belonging to file and
// returns them to invalid. It fails as soon as it encounters a pinned
// page or a descriptor whose file pointer was left dangling on an
// invalid frame; frames already scanned remain flushed, so a failure
// here means "flush incomplete", not "flush undone".
func (bpm *BufferPoolManager) FlushFile(file File) error {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	for i := range bpm.desc {
		d := &bpm.desc[i]
		if d.file != file {
			continue
		}

		if !d.valid {
			return &BadBufferError{FrameNo: d.frameNo, Dirty: d.dirty, Valid: d.valid, RefBit: d.refBit}
		}

		if d.pinCnt > 0 {
			return &PagePinnedError{Filename: file.Filename(), PageNo: d.pageNo, FrameNo: d.frameNo}
		}

		if d.dirty {
			if err := file.WritePage(bpm.pool.get(d.frameNo)); err != nil {
				return fmt.Errorf("storage: flush page %d of %q: %w", d.pageNo, file.Filename(), err)
			}
			d.dirty = false
		}

		bpm.dir.remove(file, d.pageNo)
		d.clear()
	}

	return nil
}

// DisposePage discards a page's identity entirely. If it is resident and
// dirty, its contents are written back first - semantically odd for a
// page about to be freed, but kept for parity with the reference
// implementation this was modeled on. Regardless of residency, the page
// id is released through the File.
func (bpm *BufferPoolManager) DisposePage(file File, pageNo PageID) error {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	if frameNo, err := bpm.dir.lookup(file, pageNo); err == nil {
		d := &bpm.desc[frameNo]
		if d.dirty {
			if err := file.WritePage(bpm.pool.get(frameNo)); err != nil {
				return fmt.Errorf("storage: dispose page %d of %q: %w", pageNo, file.Filename(), err)
			}
		}
		d.clear()
		bpm.dir.remove(file, pageNo)
	}

	return file.DeletePage(pageNo)
}

// Close tears the pool down: every file with at least one dirty resident
// frame is flushed, then the pool and descriptor table are released. A
// file with pinned pages at teardown surfaces PagePinnedError from the
// FlushFile call; the recommended caller policy is to unpin everything
// before shutdown, not to rely on this path.
func (bpm *BufferPoolManager) Close() error {
	bpm.mu.Lock()
	seen := make(map[File]bool)
	var dirtyFiles []File
	for i := range bpm.desc {
		d := &bpm.desc[i]
		if d.valid && d.dirty && !seen[d.file] {
			seen[d.file] = true
			dirtyFiles = append(dirtyFiles, d.file)
		}
	}
	bpm.mu.Unlock()

	for _, f := range dirtyFiles {
		if err := bpm.FlushFile(f); err != nil {
			return err
		}
	}
	return nil
}

// FrameSnapshot is one frame's complete observable state at the moment of
// a DumpFrames call.
type FrameSnapshot struct {
	FrameNo FrameID
	File    string
	PageNo  PageID
	PinCnt  uint32
	Dirty   bool
	Valid   bool
	RefBit  bool
}

// DumpFrames returns every frame's state plus the count of valid frames.
// Intended for debugging and for the metrics/server layers built on top
// of the buffer pool manager.
func (bpm *BufferPoolManager) DumpFrames() ([]FrameSnapshot, int) {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	snaps := make([]FrameSnapshot, len(bpm.desc))
	validCount := 0
	for i := range bpm.desc {
		d := &bpm.desc[i]
		filename := ""
		if d.file != nil {
			filename = d.file.Filename()
		}
		snaps[i] = FrameSnapshot{
			FrameNo: d.frameNo,
			File:    filename,
			PageNo:  d.pageNo,
			PinCnt:  d.pinCnt,
			Dirty:   d.dirty,
			Valid:   d.valid,
			RefBit:  d.refBit,
		}
		if d.valid {
			validCount++
		}
	}
	return snaps, validCount
}
