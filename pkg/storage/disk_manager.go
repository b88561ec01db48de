package storage

import (
	"fmt"
	"os"
	"sync"
)

// DiskManager is the on-disk File implementation the buffer pool manager
// treats as an opaque durable sink: fixed-size pages at fixed offsets, with
// freed page ids recycled through an on-disk free list.
type DiskManager struct {
	path         string
	dataFile     *os.File
	nextPageID   PageID
	freePageList *FreePageList
	mu           sync.Mutex
	totalReads   int64
	totalWrites  int64
}

// NewDiskManager opens (creating if necessary) the backing data file.
func NewDiskManager(path string) (*DiskManager, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("storage: open data file: %w", err)
	}

	fileInfo, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("storage: stat data file: %w", err)
	}

	dm := &DiskManager{
		path:         path,
		dataFile:     file,
		nextPageID:   PageID(fileInfo.Size() / PageSize),
		freePageList: NewFreePageList(),
	}

	return dm, nil
}

// Filename identifies this File in error messages.
func (dm *DiskManager) Filename() string {
	return dm.path
}

// ReadPage fetches a durable page by id. A page beyond the current end of
// file is treated as never-written and comes back zeroed, matching the
// buffer pool's expectation that allocPage's page is readable before its
// first writePage.
func (dm *DiskManager) ReadPage(pageID PageID) (*Page, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.readPageLocked(pageID)
}

func (dm *DiskManager) readPageLocked(pageID PageID) (*Page, error) {
	offset := int64(pageID) * PageSize
	data := make([]byte, PageSize)

	n, err := dm.dataFile.ReadAt(data, offset)
	if err != nil && n < PageSize {
		return NewPage(pageID, PageTypeData), nil
	}

	page := NewPage(pageID, PageTypeData)
	if err := page.Deserialize(data); err != nil {
		return nil, fmt.Errorf("storage: deserialize page %d: %w", pageID, err)
	}

	dm.totalReads++
	return page, nil
}

// WritePage persists the page; page.PageNumber() identifies it.
func (dm *DiskManager) WritePage(page *Page) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.writePageLocked(page)
}

func (dm *DiskManager) writePageLocked(page *Page) error {
	offset := int64(page.ID) * PageSize
	data := page.Serialize()

	if _, err := dm.dataFile.WriteAt(data, offset); err != nil {
		return fmt.Errorf("storage: write page %d: %w", page.ID, err)
	}

	dm.totalWrites++
	return nil
}

// AllocatePage reserves a new page id, reusing a freed one if available, and
// returns a zero-initialized page carrying it.
func (dm *DiskManager) AllocatePage() (*Page, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.freePageList.PageCount > 0 || dm.freePageList.HeadPageID != 0 {
		pageID, ok, err := dm.popFreePage()
		if err != nil {
			return nil, fmt.Errorf("storage: pop free page: %w", err)
		}
		if ok {
			return NewPage(pageID, PageTypeData), nil
		}
	}

	pageID := dm.nextPageID
	dm.nextPageID++
	return NewPage(pageID, PageTypeData), nil
}

// DeletePage releases a page id back to the free list. A subsequent
// ReadPage of this id is undefined once the id is reissued.
func (dm *DiskManager) DeletePage(pageID PageID) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if pageID >= dm.nextPageID {
		return fmt.Errorf("storage: invalid page id %d (next page id %d)", pageID, dm.nextPageID)
	}

	if err := dm.pushFreePage(pageID); err != nil {
		return fmt.Errorf("storage: push free page: %w", err)
	}
	return nil
}

// Sync flushes all data to stable storage.
func (dm *DiskManager) Sync() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.dataFile.Sync()
}

// Close syncs and closes the backing file.
func (dm *DiskManager) Close() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if err := dm.dataFile.Sync(); err != nil {
		return err
	}
	return dm.dataFile.Close()
}

// Stats reports disk-level counters, independent of the buffer pool that
// sits in front of this File.
func (dm *DiskManager) Stats() map[string]interface{} {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	return map[string]interface{}{
		"next_page_id": dm.nextPageID,
		"free_pages":   dm.freePageList.PageCount,
		"total_reads":  dm.totalReads,
		"total_writes": dm.totalWrites,
	}
}

// pushFreePage adds a page to the free page list. Must be called with dm.mu held.
func (dm *DiskManager) pushFreePage(pageID PageID) error {
	if dm.freePageList.HeadPageID == 0 {
		freeListPageID := dm.nextPageID
		dm.nextPageID++

		page := NewPage(freeListPageID, PageTypeFreeList)
		InitializeFreeListPage(page)

		if _, err := AddFreePageToList(page, pageID); err != nil {
			return fmt.Errorf("add page to new free list: %w", err)
		}
		if err := dm.writePageLocked(page); err != nil {
			return fmt.Errorf("write free list page: %w", err)
		}

		dm.freePageList.HeadPageID = freeListPageID
		dm.freePageList.PageCount = 1
		return nil
	}

	headPage, err := dm.readPageLocked(dm.freePageList.HeadPageID)
	if err != nil {
		return fmt.Errorf("read head free list page: %w", err)
	}

	added, err := AddFreePageToList(headPage, pageID)
	if err != nil {
		return fmt.Errorf("add page to free list: %w", err)
	}

	if added {
		if err := dm.writePageLocked(headPage); err != nil {
			return fmt.Errorf("write free list page: %w", err)
		}
		dm.freePageList.PageCount++
		return nil
	}

	// Head page is full; the page being freed becomes the new head, chained
	// to the old one.
	newHeadPage := NewPage(pageID, PageTypeFreeList)
	InitializeFreeListPage(newHeadPage)
	SerializeFreePageHeader(newHeadPage, &FreePageHeader{
		NextFreeListPage: dm.freePageList.HeadPageID,
		EntryCount:       0,
	})

	if err := dm.writePageLocked(newHeadPage); err != nil {
		return fmt.Errorf("write new free list head page: %w", err)
	}

	dm.freePageList.HeadPageID = pageID
	return nil
}

// popFreePage removes a page from the free page list. Must be called with dm.mu held.
func (dm *DiskManager) popFreePage() (PageID, bool, error) {
	if dm.freePageList.HeadPageID == 0 || dm.freePageList.PageCount == 0 {
		return 0, false, nil
	}

	headPage, err := dm.readPageLocked(dm.freePageList.HeadPageID)
	if err != nil {
		return 0, false, fmt.Errorf("read head free list page: %w", err)
	}

	pageID, removed, err := RemoveFreePageFromList(headPage)
	if err != nil {
		return 0, false, fmt.Errorf("remove page from free list: %w", err)
	}

	if !removed {
		header, err := DeserializeFreePageHeader(headPage)
		if err != nil {
			return 0, false, fmt.Errorf("deserialize free page header: %w", err)
		}
		oldHeadPageID := dm.freePageList.HeadPageID
		dm.freePageList.HeadPageID = header.NextFreeListPage
		return oldHeadPageID, true, nil
	}

	if err := dm.writePageLocked(headPage); err != nil {
		return 0, false, fmt.Errorf("write free list page: %w", err)
	}
	dm.freePageList.PageCount--

	return pageID, true, nil
}
