package storage

// FrameID identifies a frame slot in [0, N).
type FrameID int

// frameDescriptor is one frame's metadata: owning file, page id, pin
// count, and the dirty/valid/reference bits the replacement engine and
// CLOCK sweep consult. A frame starts invalid and returns to invalid on
// eviction, FlushFile, or DisposePage.
type frameDescriptor struct {
	frameNo FrameID
	file    File
	pageNo  PageID
	pinCnt  uint32
	dirty   bool
	valid   bool
	refBit  bool
}

// set installs a freshly fetched or allocated page into an invalid
// descriptor: pinned once, clean, with its reference bit up.
func (d *frameDescriptor) set(file File, pageNo PageID) {
	d.file = file
	d.pageNo = pageNo
	d.valid = true
	d.pinCnt = 1
	d.dirty = false
	d.refBit = true
}

// clear returns the descriptor to its initial, invalid state.
func (d *frameDescriptor) clear() {
	d.file = nil
	d.pageNo = 0
	d.valid = false
	d.pinCnt = 0
	d.dirty = false
	d.refBit = false
}
