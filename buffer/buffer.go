// Package buffer caches disk pages in memory. It multiplexes a fixed
// number of frames over an arbitrarily large heap file, evicting with a
// clock-sweep replacement policy and writing back dirty frames before
// reuse.
//
// The storage engine is single-writer (spec §5): every public method here
// runs to completion before the next one starts, so no frame or page-table
// locking is needed.
package buffer

import (
	"errors"
	"log/slog"

	"github.com/relydb/rellydb/disk"
	"github.com/relydb/rellydb/internal/rlog"
)

// ErrNoFreeBuffer is returned when every frame is pinned and the pool has
// nothing to evict.
var ErrNoFreeBuffer = errors.New("buffer: no free buffer available")

// FrameID identifies a slot in the BufferPool.
type FrameID int

// Page is the raw fixed-size content of a frame.
type Page = [disk.PageSize]byte

// Buffer is the caller-visible handle to one frame's contents. Callers
// mutate Page in place and set IsDirty to request write-back; the handle
// is only valid for the duration of the call that produced it, per spec
// §5's single-writer ordering guarantee.
type Buffer struct {
	PageID  disk.PageID
	Page    *Page
	IsDirty bool
}

func newBuffer() *Buffer {
	return &Buffer{
		PageID: disk.InvalidPageID,
		Page:   &Page{},
	}
}

// Frame owns one Buffer plus the clock-sweep bookkeeping the replacement
// algorithm needs.
type Frame struct {
	UsageCount uint64
	Buffer     *Buffer
}

// BufferPool is a fixed-capacity array of frames, swept by a clock hand.
type BufferPool struct {
	frames       []*Frame
	nextVictimID FrameID
}

// NewBufferPool allocates poolSize empty frames.
func NewBufferPool(poolSize int) *BufferPool {
	frames := make([]*Frame, poolSize)
	for i := range frames {
		frames[i] = &Frame{Buffer: newBuffer()}
	}
	return &BufferPool{frames: frames}
}

// Size returns the pool's frame capacity.
func (bp *BufferPool) Size() int {
	return len(bp.frames)
}

// Evict performs one sweep of the second-chance clock algorithm and
// returns a victim frame id, or false if nothing is currently evictable.
//
// A frame with usage_count 0 is victimized immediately. A dirty frame with
// a nonzero usage_count gets a second chance: its usage_count is
// decremented (never below zero) and the algorithm moves on, so a
// frequently-touched dirty frame becomes evictable only after enough
// sweeps have drained its count. A clean frame with a nonzero usage_count
// is treated as pinned and is never decremented; if the hand completes a
// full revolution without finding a victim because of these, Evict gives
// up rather than looping forever.
func (bp *BufferPool) Evict() (FrameID, bool) {
	poolSize := bp.Size()
	consecutivePinned := 0

	for {
		id := bp.nextVictimID
		frame := bp.frames[id]

		if frame.UsageCount == 0 {
			return id, true
		}

		if frame.Buffer.IsDirty {
			frame.UsageCount--
			consecutivePinned = 0
		} else {
			consecutivePinned++
			if consecutivePinned >= poolSize {
				return 0, false
			}
		}

		bp.nextVictimID = FrameID((int(id) + 1) % poolSize)
	}
}

// PoolManager maps page ids to frames, servicing fetch/create/flush and
// orchestrating write-back on eviction.
type PoolManager struct {
	disk      *disk.DiskManager
	pool      *BufferPool
	pageTable map[disk.PageID]FrameID
	log       *slog.Logger
}

// NewBufferPoolManager is NewPoolManager with the package default logger.
func NewBufferPoolManager(dm *disk.DiskManager, pool *BufferPool) *PoolManager {
	return NewPoolManager(dm, pool, nil)
}

// NewPoolManager binds a BufferPool to the disk manager it reads from and
// writes back to.
func NewPoolManager(dm *disk.DiskManager, pool *BufferPool, logger *slog.Logger) *PoolManager {
	return &PoolManager{
		disk:      dm,
		pool:      pool,
		pageTable: map[disk.PageID]FrameID{},
		log:       rlog.For(logger, "buffer"),
	}
}

func (m *PoolManager) writeBackIfDirty(frame *Frame) error {
	if !frame.Buffer.IsDirty {
		return nil
	}
	if err := m.disk.WritePageData(frame.Buffer.PageID, frame.Buffer.Page[:]); err != nil {
		return err
	}
	frame.Buffer.IsDirty = false
	return nil
}

// evictFrame picks a victim frame, writing it back if dirty, and reports
// the page id it used to hold (InvalidPageID if it held none).
func (m *PoolManager) evictFrame() (FrameID, disk.PageID, error) {
	id, ok := m.pool.Evict()
	if !ok {
		return 0, disk.InvalidPageID, ErrNoFreeBuffer
	}
	frame := m.pool.frames[id]
	evicted := frame.Buffer.PageID
	if err := m.writeBackIfDirty(frame); err != nil {
		return 0, disk.InvalidPageID, err
	}
	return id, evicted, nil
}

// FetchPage returns the buffer for pageID, reading it from disk into a
// fresh frame if it is not already cached. The frame's usage count is
// incremented on every fetch, including cache hits.
func (m *PoolManager) FetchPage(pageID disk.PageID) (*Buffer, error) {
	if id, ok := m.pageTable[pageID]; ok {
		frame := m.pool.frames[id]
		frame.UsageCount++
		return frame.Buffer, nil
	}

	id, evicted, err := m.evictFrame()
	if err != nil {
		m.log.Warn("fetch page: no free buffer", slog.Uint64("page_id", uint64(pageID)))
		return nil, err
	}

	frame := m.pool.frames[id]
	frame.Buffer.PageID = pageID
	frame.Buffer.IsDirty = false
	if err := m.disk.ReadPageData(pageID, frame.Buffer.Page[:]); err != nil {
		return nil, err
	}
	frame.UsageCount = 1

	delete(m.pageTable, evicted)
	m.pageTable[pageID] = id
	m.log.Debug("fetch page", slog.Uint64("page_id", uint64(pageID)), slog.Int("frame_id", int(id)))
	return frame.Buffer, nil
}

// CreatePage allocates a new page on disk and binds it to a fresh frame,
// marked dirty since it has never been written back.
func (m *PoolManager) CreatePage() (*Buffer, error) {
	id, evicted, err := m.evictFrame()
	if err != nil {
		m.log.Warn("create page: no free buffer")
		return nil, err
	}

	pageID := m.disk.AllocatePage()
	frame := m.pool.frames[id]
	*frame.Buffer = *newBuffer()
	frame.Buffer.PageID = pageID
	frame.Buffer.IsDirty = true
	frame.UsageCount = 1

	delete(m.pageTable, evicted)
	m.pageTable[pageID] = id
	m.log.Debug("create page", slog.Uint64("page_id", uint64(pageID)), slog.Int("frame_id", int(id)))
	return frame.Buffer, nil
}

// Flush writes every dirty frame back to disk and fsyncs the heap file.
func (m *PoolManager) Flush() error {
	for pageID, id := range m.pageTable {
		frame := m.pool.frames[id]
		if !frame.Buffer.IsDirty {
			continue
		}
		if err := m.disk.WritePageData(pageID, frame.Buffer.Page[:]); err != nil {
			return err
		}
		frame.Buffer.IsDirty = false
	}
	return m.disk.Sync()
}
