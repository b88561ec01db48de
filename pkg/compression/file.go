package compression

import (
	"encoding/binary"
	"fmt"

	"github.com/mnohosten/pagecache/pkg/storage"
)

const (
	// compressedPageHeaderSize is the size of the in-page compression
	// header: [1-byte algorithm][4-byte original size][4-byte compressed size].
	compressedPageHeaderSize = 9

	// flagCompressed marks a page's Data as holding a compression header
	// plus compressed payload rather than raw bytes. Set only by
	// CompressedFile.WritePage, cleared again by ReadPage before the page
	// is handed back to the caller - callers never see it.
	flagCompressed uint8 = 0x01
)

// CompressedFile wraps a storage.File with transparent page-level
// compression. It implements storage.File itself, so the buffer pool
// manager can hold a CompressedFile exactly as it would a bare
// *storage.DiskManager or an *encryption.EncryptedFile.
type CompressedFile struct {
	backing    storage.File
	compressor *Compressor
}

// NewCompressedFile wraps backing with the given compression configuration.
func NewCompressedFile(backing storage.File, config *Config) (*CompressedFile, error) {
	compressor, err := NewCompressor(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create compressor: %w", err)
	}

	return &CompressedFile{
		backing:    backing,
		compressor: compressor,
	}, nil
}

// NewCompressedDiskManager is a convenience constructor wrapping a fresh
// on-disk DiskManager at path.
func NewCompressedDiskManager(path string, config *Config) (*CompressedFile, error) {
	diskMgr, err := storage.NewDiskManager(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create disk manager: %w", err)
	}

	cf, err := NewCompressedFile(diskMgr, config)
	if err != nil {
		diskMgr.Close()
		return nil, err
	}
	return cf, nil
}

func (cf *CompressedFile) Filename() string {
	return cf.backing.Filename()
}

// ReadPage reads and decompresses a page from the backing file.
func (cf *CompressedFile) ReadPage(pageID storage.PageID) (*storage.Page, error) {
	storedPage, err := cf.backing.ReadPage(pageID)
	if err != nil {
		return nil, err
	}

	if storedPage.Flags&flagCompressed == 0 {
		return storedPage, nil
	}

	if len(storedPage.Data) < compressedPageHeaderSize {
		return nil, fmt.Errorf("compressed page %d shorter than its header", pageID)
	}

	algorithm := Algorithm(storedPage.Data[0])
	if algorithm != cf.compressor.config.Algorithm {
		return nil, fmt.Errorf("compression algorithm mismatch: expected %v, got %v",
			cf.compressor.config.Algorithm, algorithm)
	}

	originalSize := binary.LittleEndian.Uint32(storedPage.Data[1:5])
	compressedSize := int(binary.LittleEndian.Uint32(storedPage.Data[5:9]))
	if compressedSize > len(storedPage.Data)-compressedPageHeaderSize {
		return nil, fmt.Errorf("compressed page %d claims %d payload bytes, more than the page holds", pageID, compressedSize)
	}
	compressedData := storedPage.Data[compressedPageHeaderSize : compressedPageHeaderSize+compressedSize]

	decompressed, err := cf.compressor.Decompress(compressedData)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress page %d: %w", pageID, err)
	}

	if len(decompressed) != int(originalSize) {
		return nil, fmt.Errorf("decompressed size mismatch for page %d: expected %d, got %d",
			pageID, originalSize, len(decompressed))
	}

	pageDataSize := storage.PageSize - storage.PageHeaderSize
	newPageData := make([]byte, pageDataSize)
	copy(newPageData, decompressed)
	storedPage.Data = newPageData
	storedPage.Flags &^= flagCompressed

	return storedPage, nil
}

// WritePage compresses and writes a page through the backing file. If the
// compressed form (plus header) would not fit in a page, the page is
// written uncompressed instead - compression is a density optimization,
// never a capacity promise the caller can rely on.
func (cf *CompressedFile) WritePage(page *storage.Page) error {
	if cf.compressor.config.Algorithm == AlgorithmNone {
		return cf.backing.WritePage(page)
	}

	compressed, err := cf.compressor.Compress(page.Data)
	if err != nil {
		return fmt.Errorf("failed to compress page %d: %w", page.ID, err)
	}

	pageDataSize := storage.PageSize - storage.PageHeaderSize
	totalSize := compressedPageHeaderSize + len(compressed)
	if totalSize > pageDataSize {
		uncompressed := &storage.Page{
			ID:    page.ID,
			Type:  page.Type,
			Flags: page.Flags &^ flagCompressed,
			Data:  page.Data,
		}
		return cf.backing.WritePage(uncompressed)
	}

	storedPage := &storage.Page{
		ID:    page.ID,
		Type:  page.Type,
		Flags: page.Flags | flagCompressed,
		Data:  make([]byte, pageDataSize),
	}
	storedPage.Data[0] = byte(cf.compressor.config.Algorithm)
	binary.LittleEndian.PutUint32(storedPage.Data[1:5], uint32(len(page.Data)))
	binary.LittleEndian.PutUint32(storedPage.Data[5:9], uint32(len(compressed)))
	copy(storedPage.Data[compressedPageHeaderSize:], compressed)

	return cf.backing.WritePage(storedPage)
}

// AllocatePage reserves a new page on the backing file. Freshly allocated
// pages carry no compressed form yet, so they're returned as-is; the
// caller's first WritePage establishes the compressed form on disk.
func (cf *CompressedFile) AllocatePage() (*storage.Page, error) {
	return cf.backing.AllocatePage()
}

// DeletePage releases a page id on the backing file.
func (cf *CompressedFile) DeletePage(pageID storage.PageID) error {
	return cf.backing.DeletePage(pageID)
}

// Close releases the compressor and the backing file's resources, if any.
func (cf *CompressedFile) Close() error {
	cf.compressor.Close()
	if c, ok := cf.backing.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// Sync flushes the backing file to durable storage, if it supports that.
func (cf *CompressedFile) Sync() error {
	if s, ok := cf.backing.(interface{ Sync() error }); ok {
		return s.Sync()
	}
	return nil
}

// Stats reports the backing file's statistics, annotated with the
// compression algorithm in effect.
func (cf *CompressedFile) Stats() map[string]interface{} {
	var stats map[string]interface{}
	if s, ok := cf.backing.(interface{ Stats() map[string]interface{} }); ok {
		stats = s.Stats()
	} else {
		stats = make(map[string]interface{})
	}
	stats["compression_algorithm"] = cf.compressor.config.Algorithm.String()
	stats["compression_enabled"] = cf.compressor.config.Algorithm != AlgorithmNone
	return stats
}

var _ storage.File = (*CompressedFile)(nil)
