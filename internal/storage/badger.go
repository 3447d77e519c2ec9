package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"siliconsoul/internal/model"
)

const (
	prefixSnapshot    = "snapshot/"
	prefixHistory     = "history/"
	prefixDiagnostics = "diagnostics/"
	prefixLineage     = "lineage/"
	prefixRun         = "run/"
	prefixPolicy      = "policy/"
)

type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path       string
	InMemory   bool
	SyncWrites bool
	Logger     *slog.Logger
}

// BadgerStore keeps every record as a JSON value under a typed key prefix.
type BadgerStore struct {
	cfg BadgerConfig

	mu sync.RWMutex
	db *badger.DB
}

func NewBadgerStore(cfg BadgerConfig) *BadgerStore {
	return &BadgerStore{cfg: cfg}
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (s *BadgerStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}
	if !s.cfg.InMemory && s.cfg.Path == "" {
		return errors.New("badger path is required")
	}

	var opts badger.Options
	if s.cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(s.cfg.Path, 0o750); err != nil {
			return fmt.Errorf("create badger directory %s: %w", s.cfg.Path, err)
		}
		opts = badger.DefaultOptions(s.cfg.Path)
	}
	opts = opts.WithSyncWrites(s.cfg.SyncWrites).WithNumVersionsToKeep(1)
	if s.cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: s.cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("open badger database: %w", err)
	}
	s.db = db
	return nil
}

func (s *BadgerStore) Reset(_ context.Context) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	return db.DropAll()
}

func (s *BadgerStore) SaveSnapshot(_ context.Context, snapshot model.Snapshot) error {
	payload, err := EncodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	return s.put(prefixSnapshot+snapshot.ID, payload)
}

func (s *BadgerStore) GetSnapshot(_ context.Context, id string) (model.Snapshot, bool, error) {
	payload, ok, err := s.get(prefixSnapshot + id)
	if err != nil || !ok {
		return model.Snapshot{}, ok, err
	}
	snapshot, err := DecodeSnapshot(payload)
	if err != nil {
		return model.Snapshot{}, false, fmt.Errorf("decode snapshot %s: %w", id, err)
	}
	return snapshot, true, nil
}

func (s *BadgerStore) ListSnapshots(_ context.Context, runID string) ([]model.Snapshot, error) {
	out := make([]model.Snapshot, 0)
	err := s.scan(prefixSnapshot, func(key string, payload []byte) error {
		snapshot, err := DecodeSnapshot(payload)
		if err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		if snapshot.RunID == runID {
			out = append(out, snapshot)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortSnapshots(out)
	return out, nil
}

func (s *BadgerStore) SaveFitnessHistory(_ context.Context, runID string, history []float64) error {
	payload, err := EncodeFitnessHistory(history)
	if err != nil {
		return err
	}
	return s.put(prefixHistory+runID, payload)
}

func (s *BadgerStore) GetFitnessHistory(_ context.Context, runID string) ([]float64, bool, error) {
	payload, ok, err := s.get(prefixHistory + runID)
	if err != nil || !ok {
		return nil, ok, err
	}
	history, err := DecodeFitnessHistory(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode fitness history %s: %w", runID, err)
	}
	return history, true, nil
}

func (s *BadgerStore) SaveGenerationDiagnostics(_ context.Context, runID string, diagnostics []model.GenerationDiagnostics) error {
	payload, err := EncodeGenerationDiagnostics(diagnostics)
	if err != nil {
		return err
	}
	return s.put(prefixDiagnostics+runID, payload)
}

func (s *BadgerStore) GetGenerationDiagnostics(_ context.Context, runID string) ([]model.GenerationDiagnostics, bool, error) {
	payload, ok, err := s.get(prefixDiagnostics + runID)
	if err != nil || !ok {
		return nil, ok, err
	}
	diagnostics, err := DecodeGenerationDiagnostics(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode diagnostics %s: %w", runID, err)
	}
	return diagnostics, true, nil
}

func (s *BadgerStore) SaveLineage(_ context.Context, runID string, lineage []model.LineageRecord) error {
	payload, err := EncodeLineage(lineage)
	if err != nil {
		return err
	}
	return s.put(prefixLineage+runID, payload)
}

func (s *BadgerStore) GetLineage(_ context.Context, runID string) ([]model.LineageRecord, bool, error) {
	payload, ok, err := s.get(prefixLineage + runID)
	if err != nil || !ok {
		return nil, ok, err
	}
	lineage, err := DecodeLineage(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode lineage %s: %w", runID, err)
	}
	return lineage, true, nil
}

func (s *BadgerStore) SaveRun(_ context.Context, run model.RunRecord) error {
	payload, err := EncodeRun(run)
	if err != nil {
		return err
	}
	return s.put(prefixRun+run.ID, payload)
}

func (s *BadgerStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	payload, ok, err := s.get(prefixRun + id)
	if err != nil || !ok {
		return model.RunRecord{}, ok, err
	}
	run, err := DecodeRun(payload)
	if err != nil {
		return model.RunRecord{}, false, fmt.Errorf("decode run %s: %w", id, err)
	}
	return run, true, nil
}

func (s *BadgerStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	out := make([]model.RunRecord, 0)
	err := s.scan(prefixRun, func(key string, payload []byte) error {
		run, err := DecodeRun(payload)
		if err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		out = append(out, run)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortRuns(out)
	return out, nil
}

func (s *BadgerStore) SavePolicySummary(_ context.Context, summary model.PolicySummary) error {
	payload, err := EncodePolicySummary(summary)
	if err != nil {
		return err
	}
	return s.put(prefixPolicy+summary.Name, payload)
}

func (s *BadgerStore) GetPolicySummary(_ context.Context, name string) (model.PolicySummary, bool, error) {
	payload, ok, err := s.get(prefixPolicy + name)
	if err != nil || !ok {
		return model.PolicySummary{}, ok, err
	}
	summary, err := DecodePolicySummary(payload)
	if err != nil {
		return model.PolicySummary{}, false, fmt.Errorf("decode policy summary %s: %w", name, err)
	}
	return summary, true, nil
}

func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *BadgerStore) put(key string, payload []byte) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	return db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), payload)
	})
}

func (s *BadgerStore) get(key string) ([]byte, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}

	var payload []byte
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		payload, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

func (s *BadgerStore) scan(prefix string, fn func(key string, payload []byte) error) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	return db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			payload, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(string(item.Key()), payload); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BadgerStore) getDB() (*badger.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return s.db, nil
}
