package storage

import (
	"encoding/binary"
	"fmt"
)

const (
	// PageSize is the size of each page (4KB, typical OS page size).
	PageSize = 4096

	// PageHeaderSize is the size of the on-disk page header.
	PageHeaderSize = 8
)

// PageType distinguishes the kind of content a page holds.
type PageType uint8

const (
	PageTypeData PageType = iota
	PageTypeFreeList
)

func (t PageType) String() string {
	switch t {
	case PageTypeData:
		return "data"
	case PageTypeFreeList:
		return "freelist"
	default:
		return "unknown"
	}
}

// PageID is a page identifier scoped to the File that assigned it.
type PageID uint32

// InvalidPageID marks a page slot that does not carry a resident page.
const InvalidPageID PageID = 0xFFFFFFFF

// Page is a fixed-size buffer moved by value between a File and the pool.
// Pin and dirty state live on the buffer pool's frame descriptor, not here -
// a Page is a dumb byte carrier, never a synchronization point.
type Page struct {
	ID    PageID
	Type  PageType
	Flags uint8
	Data  []byte
}

// NewPage allocates a zeroed page carrying the given id.
func NewPage(id PageID, pageType PageType) *Page {
	return &Page{
		ID:    id,
		Type:  pageType,
		Data:  make([]byte, PageSize-PageHeaderSize),
	}
}

// PageNumber returns the page's self-identifying id.
func (p *Page) PageNumber() PageID {
	return p.ID
}

// Serialize converts the page to its on-disk byte representation.
func (p *Page) Serialize() []byte {
	buf := make([]byte, PageSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(p.ID))
	buf[4] = byte(p.Type)
	buf[5] = p.Flags
	// bytes 6-8 reserved
	copy(buf[PageHeaderSize:], p.Data)
	return buf
}

// Deserialize loads a page's fields from its on-disk byte representation.
func (p *Page) Deserialize(data []byte) error {
	if len(data) != PageSize {
		return fmt.Errorf("storage: invalid page size: expected %d, got %d", PageSize, len(data))
	}

	p.ID = PageID(binary.LittleEndian.Uint32(data[0:4]))
	p.Type = PageType(data[4])
	p.Flags = data[5]

	p.Data = make([]byte, PageSize-PageHeaderSize)
	copy(p.Data, data[PageHeaderSize:])
	return nil
}
