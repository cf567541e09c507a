// Package badger implements workflow.Store on an embedded BadgerDB.
//
// It is the single-binary backend: no database server is needed, and the
// in-memory mode backs the API and client tests. Records are stored as JSON
// under one key prefix per record type:
//
//	wf/<id>   workflow
//	cmp/<id>  component
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/meikuraledutech/workflow"
)

// Option tunes how Open sets up the database.
type Option func(*settings)

type settings struct {
	inMemory   bool
	syncWrites bool
	logger     *slog.Logger
	gcEvery    time.Duration
	gcRatio    float64
}

// InMemory keeps everything in memory; the path given to Open is ignored.
// Value log GC never runs in this mode.
func InMemory() Option {
	return func(o *settings) { o.inMemory = true }
}

// WithLogger routes BadgerDB's own logs and GC failures to l. Without it the
// database logs nothing.
func WithLogger(l *slog.Logger) Option {
	return func(o *settings) { o.logger = l }
}

// WithSyncWrites makes every commit wait for fsync. On by default.
func WithSyncWrites(sync bool) Option {
	return func(o *settings) { o.syncWrites = sync }
}

// WithGC runs value log GC every interval, rewriting files with at least
// ratio discardable data. An interval of 0 turns GC off.
func WithGC(interval time.Duration, ratio float64) Option {
	return func(o *settings) {
		o.gcEvery = interval
		o.gcRatio = ratio
	}
}

// slogSink hands BadgerDB's printf-style log lines to slog.
type slogSink struct{ l *slog.Logger }

func (s slogSink) log(level slog.Level, format string, args []any) {
	s.l.Log(context.Background(), level, strings.TrimSuffix(fmt.Sprintf(format, args...), "\n"))
}

func (s slogSink) Errorf(f string, a ...any)   { s.log(slog.LevelError, f, a) }
func (s slogSink) Warningf(f string, a ...any) { s.log(slog.LevelWarn, f, a) }
func (s slogSink) Infof(f string, a ...any)    { s.log(slog.LevelInfo, f, a) }
func (s slogSink) Debugf(f string, a ...any)   { s.log(slog.LevelDebug, f, a) }

// Store implements workflow.Store on BadgerDB.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
	stopGC context.CancelFunc
	gcDone chan struct{}
	now    func() time.Time
}

var _ workflow.Store = (*Store)(nil)

// Open opens (creating if needed) the database in dir. Unless InMemory is
// given, dir is required and value log GC runs every five minutes.
// Callers must Close the store.
func Open(dir string, opts ...Option) (*Store, error) {
	set := settings{syncWrites: true, gcEvery: 5 * time.Minute, gcRatio: 0.5}
	for _, opt := range opts {
		opt(&set)
	}

	bo := badger.DefaultOptions(dir)
	if set.inMemory {
		bo = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if dir == "" {
			return nil, errors.New("workflow: badger directory is required unless in memory")
		}
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("workflow: create %s: %w", dir, err)
		}
	}
	bo = bo.WithSyncWrites(set.syncWrites).WithNumVersionsToKeep(1).WithLogger(nil)
	if set.logger != nil {
		bo = bo.WithLogger(slogSink{l: set.logger})
	}

	db, err := badger.Open(bo)
	if err != nil {
		return nil, fmt.Errorf("workflow: open badger: %w", err)
	}

	s := &Store{
		db:     db,
		logger: set.logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	if set.gcEvery > 0 && !set.inMemory {
		ctx, cancel := context.WithCancel(context.Background())
		s.stopGC = cancel
		s.gcDone = make(chan struct{})
		go s.collect(ctx, set.gcEvery, set.gcRatio)
	}
	return s, nil
}

// Close stops GC and closes the database.
func (s *Store) Close() error {
	if s.stopGC != nil {
		s.stopGC()
		<-s.gcDone
	}
	return s.db.Close()
}

// collect runs value log GC until ctx is cancelled.
func (s *Store) collect(ctx context.Context, every time.Duration, ratio float64) {
	defer close(s.gcDone)
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		// Repeat while a pass rewrote a file; ErrNoRewrite ends the round.
		for {
			err := s.db.RunValueLogGC(ratio)
			if err == nil {
				continue
			}
			if !errors.Is(err, badger.ErrNoRewrite) && s.logger != nil {
				s.logger.Warn("value log gc", "error", err)
			}
			break
		}
	}
}

// CreateSchema is a no-op: BadgerDB has no schema.
func (s *Store) CreateSchema(ctx context.Context) error { return nil }

// DropSchema deletes every record.
func (s *Store) DropSchema(ctx context.Context) error {
	if err := s.db.DropAll(); err != nil {
		return fmt.Errorf("workflow: drop all: %w", err)
	}
	return nil
}

const (
	workflowPrefix  = "wf/"
	componentPrefix = "cmp/"
)

func getJSON(txn *badger.Txn, key string, v any) error {
	item, err := txn.Get([]byte(key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return workflow.ErrNotFound
		}
		return err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func setJSON(txn *badger.Txn, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set([]byte(key), raw)
}

func exists(txn *badger.Txn, key string) (bool, error) {
	_, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// scanPrefix decodes every value under prefix with decode.
func scanPrefix(txn *badger.Txn, prefix string, decode func([]byte) error) error {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	p := []byte(prefix)
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		raw, err := it.Item().ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := decode(raw); err != nil {
			return err
		}
	}
	return nil
}
