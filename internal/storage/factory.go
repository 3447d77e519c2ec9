package storage

import (
	"fmt"
	"log/slog"
)

const (
	KindMemory = "memory"
	KindSQLite = "sqlite"
	KindBadger = "badger"
)

func DefaultStoreKind() string {
	return KindMemory
}

// NewStore builds a backend by kind. path is the sqlite file or the badger
// directory; logger only reaches the badger backend.
func NewStore(kind, path string, logger *slog.Logger) (Store, error) {
	switch kind {
	case "", KindMemory:
		return NewMemoryStore(), nil
	case KindSQLite:
		return NewSQLiteStore(path), nil
	case KindBadger:
		return NewBadgerStore(BadgerConfig{Path: path, SyncWrites: true, Logger: logger}), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
