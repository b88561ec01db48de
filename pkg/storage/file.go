package storage

// File is the durable page store the buffer pool manager reads and writes
// through. It is treated as an opaque collaborator: the buffer pool manager
// never inspects a File's internals, only this narrow surface.
//
// Implementations must be comparable, since the page directory keys its
// entries on (File, PageID) and identifies a File by its handle identity,
// not by filename - two Files with the same Filename() are still distinct
// if they are different values.
type File interface {
	// ReadPage fetches a durable page by id.
	ReadPage(pageID PageID) (*Page, error)

	// WritePage persists the page; page.PageNumber() identifies it.
	WritePage(page *Page) error

	// AllocatePage reserves a new page id and returns a zero-initialized
	// page carrying it.
	AllocatePage() (*Page, error)

	// DeletePage releases a page id. A later ReadPage of this id is
	// undefined once the id has been reissued.
	DeletePage(pageID PageID) error

	// Filename identifies this File in error messages only.
	Filename() string
}
