package encryption

import (
	"encoding/binary"
	"fmt"

	"github.com/mnohosten/pagecache/pkg/storage"
)

const (
	// EncryptedPageHeaderSize is the size of the encrypted page header
	// [1-byte algorithm][4-byte original size]
	EncryptedPageHeaderSize = 5

	// EncryptionOverhead is the maximum overhead from encryption
	// GCM: 12 bytes (nonce) + 16 bytes (auth tag) = 28 bytes
	// CTR: 16 bytes (IV) = 16 bytes
	// We use the larger value for safety
	EncryptionOverhead = 28
)

// EncryptedFile wraps a storage.File with transparent page-level
// encryption. It implements storage.File itself, so the buffer pool
// manager can hold an EncryptedFile exactly as it would a bare
// *storage.DiskManager.
type EncryptedFile struct {
	backing   storage.File
	encryptor *Encryptor
}

// NewEncryptedFile wraps backing with the given encryption configuration.
func NewEncryptedFile(backing storage.File, config *Config) (*EncryptedFile, error) {
	encryptor, err := NewEncryptor(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create encryptor: %w", err)
	}

	return &EncryptedFile{
		backing:   backing,
		encryptor: encryptor,
	}, nil
}

// NewEncryptedDiskManager is a convenience constructor wrapping a fresh
// on-disk DiskManager at path.
func NewEncryptedDiskManager(path string, config *Config) (*EncryptedFile, error) {
	diskMgr, err := storage.NewDiskManager(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create disk manager: %w", err)
	}

	ef, err := NewEncryptedFile(diskMgr, config)
	if err != nil {
		diskMgr.Close()
		return nil, err
	}
	return ef, nil
}

func (ef *EncryptedFile) Filename() string {
	return ef.backing.Filename()
}

// ReadPage reads and decrypts a page from the backing file.
func (ef *EncryptedFile) ReadPage(pageID storage.PageID) (*storage.Page, error) {
	encryptedPage, err := ef.backing.ReadPage(pageID)
	if err != nil {
		return nil, err
	}

	if ef.encryptor.config.Algorithm == AlgorithmNone {
		return encryptedPage, nil
	}

	if len(encryptedPage.Data) < EncryptedPageHeaderSize {
		// Unencrypted page (migration scenario or new page)
		return encryptedPage, nil
	}

	algorithm := Algorithm(encryptedPage.Data[0])
	if algorithm == AlgorithmNone {
		return encryptedPage, nil
	}

	if algorithm != ef.encryptor.config.Algorithm {
		return nil, fmt.Errorf("encryption algorithm mismatch: expected %v, got %v",
			ef.encryptor.config.Algorithm, algorithm)
	}

	originalSize := binary.LittleEndian.Uint32(encryptedPage.Data[1:5])
	encryptedData := encryptedPage.Data[EncryptedPageHeaderSize:]

	decryptedData, err := ef.encryptor.Decrypt(encryptedData)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt page %d: %w", pageID, err)
	}

	if len(decryptedData) != int(originalSize) {
		return nil, fmt.Errorf("decrypted size mismatch for page %d: expected %d, got %d",
			pageID, originalSize, len(decryptedData))
	}

	pageDataSize := storage.PageSize - storage.PageHeaderSize
	newPageData := make([]byte, pageDataSize)
	copy(newPageData, decryptedData)
	encryptedPage.Data = newPageData

	return encryptedPage, nil
}

// WritePage encrypts and writes a page through the backing file.
func (ef *EncryptedFile) WritePage(page *storage.Page) error {
	if ef.encryptor.config.Algorithm == AlgorithmNone {
		return ef.backing.WritePage(page)
	}

	encryptedPage := &storage.Page{
		ID:    page.ID,
		Type:  page.Type,
		Flags: page.Flags,
	}

	encryptedData, err := ef.encryptor.Encrypt(page.Data)
	if err != nil {
		return fmt.Errorf("failed to encrypt page %d: %w", page.ID, err)
	}

	headerSize := EncryptedPageHeaderSize
	totalEncryptedSize := headerSize + len(encryptedData)

	pageDataSize := storage.PageSize - storage.PageHeaderSize
	if totalEncryptedSize > pageDataSize {
		return fmt.Errorf("encrypted data too large: %d bytes (max %d)", totalEncryptedSize, pageDataSize)
	}

	encryptedPage.Data = make([]byte, pageDataSize)
	encryptedPage.Data[0] = byte(ef.encryptor.config.Algorithm)
	binary.LittleEndian.PutUint32(encryptedPage.Data[1:5], uint32(len(page.Data)))
	copy(encryptedPage.Data[headerSize:], encryptedData)

	return ef.backing.WritePage(encryptedPage)
}

// AllocatePage reserves a new page on the backing file. Freshly allocated
// pages carry no ciphertext yet, so they're returned unencrypted; the
// caller's first WritePage establishes the encrypted form on disk.
func (ef *EncryptedFile) AllocatePage() (*storage.Page, error) {
	return ef.backing.AllocatePage()
}

// DeletePage releases a page id on the backing file.
func (ef *EncryptedFile) DeletePage(pageID storage.PageID) error {
	return ef.backing.DeletePage(pageID)
}

// GetEncryptor returns the encryptor backing this file, for inspection or
// key rotation.
func (ef *EncryptedFile) GetEncryptor() *Encryptor {
	return ef.encryptor
}

// Close releases the backing file's resources, if it has any to release.
func (ef *EncryptedFile) Close() error {
	if c, ok := ef.backing.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// Sync flushes the backing file to durable storage, if it supports that.
func (ef *EncryptedFile) Sync() error {
	if s, ok := ef.backing.(interface{ Sync() error }); ok {
		return s.Sync()
	}
	return nil
}

// Stats reports the backing file's statistics, annotated with the
// encryption algorithm in effect.
func (ef *EncryptedFile) Stats() map[string]interface{} {
	var stats map[string]interface{}
	if s, ok := ef.backing.(interface{ Stats() map[string]interface{} }); ok {
		stats = s.Stats()
	} else {
		stats = make(map[string]interface{})
	}
	stats["encryption_algorithm"] = ef.encryptor.config.Algorithm.String()
	stats["encryption_enabled"] = ef.encryptor.config.Algorithm != AlgorithmNone
	return stats
}

var _ storage.File = (*EncryptedFile)(nil)
