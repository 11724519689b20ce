// Package journal persists ledger calls in a write-ahead log.
package journal

import (
	"encoding/json"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/fundme/internal/domain"
	"github.com/vadiminshakov/gowal"
)

const (
	defaultJournalDir    = "./wal/ledger"
	journalSegmentLimit  = 1000
	journalMaxSegments   = 1_000_000 // history must never be rotated away
	journalKeyPrefix     = "ledger_tx_"
	journalDirPermission = 0o755
)

// WALStore keeps every ledger transaction record in order.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore opens (or creates) the journal under dir.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultJournalDir
	}
	if err := os.MkdirAll(dir, journalDirPermission); err != nil {
		return nil, errors.Wrapf(err, "failed to ensure journal directory %s", dir)
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "tx_",
		SegmentThreshold: journalSegmentLimit,
		MaxSegments:      journalMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init ledger journal WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Append writes rec as the next WAL entry.
func (s *WALStore) Append(rec domain.TxRecord) error {
	if s == nil || s.wal == nil {
		return errors.New("ledger journal is not initialized")
	}
	if rec.ID == "" {
		return errors.New("ledger journal record id is required")
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "marshal ledger tx record")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, journalKeyPrefix+rec.ID, payload)
}

// Records returns every record in write order.
func (s *WALStore) Records() ([]domain.TxRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("ledger journal is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []domain.TxRecord
	for msg := range s.wal.Iterator() {
		if !strings.HasPrefix(msg.Key, journalKeyPrefix) {
			continue
		}
		var rec domain.TxRecord
		if err := json.Unmarshal(msg.Value, &rec); err != nil {
			return nil, errors.Wrapf(err, "decode ledger tx record %s", msg.Key)
		}
		records = append(records, rec)
	}

	return records, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("ledger journal is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
