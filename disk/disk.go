// Package disk manages the heap file that backs the storage engine: a flat
// file treated as a sequence of fixed-size pages, addressed by PageID.
package disk

import (
	"encoding/binary"
	"io"
	"log/slog"
	"os"

	"github.com/relydb/rellydb/internal/rlog"
)

// PageSize is the size of a page in bytes (4KB).
const PageSize = 4096

// PageID represents a unique identifier for a page on disk.
// It is used to locate pages in the heap file.
type PageID uint64

// InvalidPageID represents an invalid or uninitialized page ID.
const InvalidPageID = PageID(^uint64(0))

func (p PageID) Valid() bool {
	return p != InvalidPageID
}

func (p PageID) ToU64() uint64 {
	return uint64(p)
}

// ToBytes serializes p as 8 little-endian bytes, the on-disk form used for
// child pointers embedded inside branch node bodies.
func (p PageID) ToBytes() []byte {
	bytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(bytes, uint64(p))
	return bytes
}

func PageIDFromBytes(bytes []byte) PageID {
	return PageID(binary.LittleEndian.Uint64(bytes))
}

// DiskManager manages disk I/O operations for the database.
// It handles reading and writing pages to/from a heap file.
// The heap file is organized as a sequence of fixed-size pages.
// It never retries a failed operation and never frees an allocated page.
type DiskManager struct {
	heapFile   *os.File
	nextPageId uint64
	log        *slog.Logger
}

func NewDiskManager(heapFile *os.File) (*DiskManager, error) {
	return NewDiskManagerWithLogger(heapFile, nil)
}

// NewDiskManagerWithLogger is NewDiskManager with an explicit logger;
// passing nil uses the package default.
func NewDiskManagerWithLogger(heapFile *os.File, logger *slog.Logger) (*DiskManager, error) {
	stat, err := heapFile.Stat()
	if err != nil {
		return nil, err
	}
	heapFileSize := stat.Size()
	nextPageId := uint64(heapFileSize) / PageSize
	return &DiskManager{
		heapFile:   heapFile,
		nextPageId: nextPageId,
		log:        rlog.For(logger, "disk"),
	}, nil
}

func OpenDiskManager(heapFilePath string) (*DiskManager, error) {
	heapFile, err := os.OpenFile(heapFilePath, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	return NewDiskManager(heapFile)
}

// ReadPageData reads exactly len(data) bytes (callers pass a PageSize
// buffer) starting at pageID's offset. A page that was allocated but never
// written back reads as a short read past EOF; the unread tail of data is
// left zeroed rather than surfaced as an error.
func (dm *DiskManager) ReadPageData(pageID PageID, data []byte) error {
	offset := int64(PageSize) * int64(pageID.ToU64())
	_, err := dm.heapFile.Seek(offset, io.SeekStart)
	if err != nil {
		return err
	}
	n, err := io.ReadFull(dm.heapFile, data)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		for i := n; i < len(data); i++ {
			data[i] = 0
		}
		return nil
	}
	return err
}

func (dm *DiskManager) WritePageData(pageId PageID, data []byte) error {
	offset := int64(PageSize) * int64(pageId.ToU64())
	_, err := dm.heapFile.Seek(offset, io.SeekStart)
	if err != nil {
		return err
	}
	_, err = dm.heapFile.Write(data)
	return err
}

func (dm *DiskManager) AllocatePage() PageID {
	pageID := dm.nextPageId
	dm.nextPageId++
	dm.log.Debug("allocate page", slog.Uint64("page_id", pageID))
	return PageID(pageID)
}

func (dm *DiskManager) Sync() error {
	dm.log.Debug("sync")
	return dm.heapFile.Sync()
}

func (dm *DiskManager) Close() error {
	return dm.heapFile.Close()
}
