// Package runlog keeps a history of stress reports in BadgerDB.
package runlog

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/lincolnyu/qsharp-sub003/pkg/stress"
)

// ErrNotFound is returned when no report has the requested ID.
var ErrNotFound = errors.New("runlog: not found")

const (
	runPrefix = "run:"
	idPrefix  = "id:"
)

// Options configures a Store.
type Options struct {
	// Dir is the directory for BadgerDB data files. Required unless
	// InMemory is set.
	Dir string

	// InMemory keeps everything in memory; used by tests.
	InMemory bool

	// Logger receives badger's warnings and errors. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// Store is a history of stress reports, newest first.
type Store struct {
	db *badger.DB
}

// Entry is one stored report.
type Entry struct {
	ID     string
	Report *stress.Report
}

// Open opens or creates a store.
func Open(opts Options) (*Store, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("runlog: Options.Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	dbOpts = dbOpts.WithLogger(badgerLogger{log})

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("runlog: open: %w", err)
	}
	return &Store{db: db}, nil
}

// Save stores r and returns its ID. A report without an ID gets a new one.
func (s *Store) Save(_ context.Context, r *stress.Report) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	val, err := msgpack.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("runlog: encode %s: %w", r.ID, err)
	}
	key := runKey(r)
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, val); err != nil {
			return err
		}
		return txn.Set([]byte(idPrefix+r.ID), key)
	})
	if err != nil {
		return "", fmt.Errorf("runlog: save %s: %w", r.ID, err)
	}
	return r.ID, nil
}

// Get returns the report with the given ID.
func (s *Store) Get(_ context.Context, id string) (*stress.Report, error) {
	var r *stress.Report
	err := s.db.View(func(txn *badger.Txn) error {
		key, err := lookup(txn, id)
		if err != nil {
			return err
		}
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			r, err = decode(val)
			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("runlog: get %s: %w", id, err)
	}
	return r, nil
}

// List yields stored reports, newest first.
func (s *Store) List(_ context.Context) iter.Seq2[Entry, error] {
	prefix := []byte(runPrefix)
	return func(yield func(Entry, error) bool) {
		err := s.db.View(func(txn *badger.Txn) error {
			iterOpts := badger.DefaultIteratorOptions
			iterOpts.Prefix = prefix
			iterOpts.Reverse = true
			it := txn.NewIterator(iterOpts)
			defer it.Close()

			for it.Seek(append(prefix, 0xff)); it.ValidForPrefix(prefix); it.Next() {
				var r *stress.Report
				err := it.Item().Value(func(val []byte) error {
					var err error
					r, err = decode(val)
					return err
				})
				if err != nil {
					if !yield(Entry{}, fmt.Errorf("runlog: %s: %w", it.Item().Key(), err)) {
						return nil
					}
					continue
				}
				if !yield(Entry{ID: r.ID, Report: r}, nil) {
					return nil
				}
			}
			return nil
		})
		if err != nil {
			yield(Entry{}, fmt.Errorf("runlog: list: %w", err))
		}
	}
}

// Delete removes the report with the given ID. Deleting a missing report
// returns ErrNotFound.
func (s *Store) Delete(_ context.Context, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		key, err := lookup(txn, id)
		if err != nil {
			return err
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		return txn.Delete([]byte(idPrefix + id))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("runlog: delete %s: %w", id, err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// runKey orders reports by start time: the timestamp is zero-padded so
// byte order matches time order.
func runKey(r *stress.Report) []byte {
	return fmt.Appendf(nil, "%s%020d:%s", runPrefix, r.Started.UnixNano(), r.ID)
}

func lookup(txn *badger.Txn, id string) ([]byte, error) {
	item, err := txn.Get([]byte(idPrefix + id))
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func decode(val []byte) (*stress.Report, error) {
	var r stress.Report
	if err := msgpack.Unmarshal(val, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// badgerLogger routes badger's log output to slog. Info and debug messages
// are dropped.
type badgerLogger struct {
	log *slog.Logger
}

func (l badgerLogger) Errorf(f string, v ...any) {
	l.log.Error(fmt.Sprintf("runlog: badger: "+f, v...))
}

func (l badgerLogger) Warningf(f string, v ...any) {
	l.log.Warn(fmt.Sprintf("runlog: badger: "+f, v...))
}

func (badgerLogger) Infof(string, ...any)  {}
func (badgerLogger) Debugf(string, ...any) {}
