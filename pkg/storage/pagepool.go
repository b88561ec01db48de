package storage

// pagePool is the contiguous array of page buffers, one per frame.
// slots[k] is meaningful only while the owning frame descriptor is valid;
// the buffer pool manager never hands out a slot's pointer beyond the
// scope of the call that produced it.
type pagePool struct {
	slots []*Page
}

func newPagePool(n int) *pagePool {
	return &pagePool{slots: make([]*Page, n)}
}

func (p *pagePool) get(frameNo FrameID) *Page {
	return p.slots[frameNo]
}

func (p *pagePool) set(frameNo FrameID, page *Page) {
	p.slots[frameNo] = page
}
