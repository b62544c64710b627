package memory

import (
	"context"
	"sort"
	"sync"

	"slotguard/pkg/db"
)

type txKey struct{}

type snapshotter interface {
	snapshot() any
	restore(any)
}

// Store is a single-process store. A transaction holds one store-wide
// lock and rolls every table back to its snapshot when fn fails.
type Store struct {
	mu     sync.Mutex
	regMu  sync.Mutex
	tables []snapshotter
}

func NewStore() *Store {
	return &Store{}
}

var _ db.TransactionManager = (*Store)(nil)

func (s *Store) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	if s.owns(ctx) {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.regMu.Lock()
	tables := append([]snapshotter(nil), s.tables...)
	s.regMu.Unlock()

	snapshots := make([]any, len(tables))
	for i, t := range tables {
		snapshots[i] = t.snapshot()
	}

	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		for i, t := range tables {
			t.restore(snapshots[i])
		}
		return err
	}
	return nil
}

// Run executes fn under the store lock unless ctx is already inside one
// of this store's transactions.
func (s *Store) Run(ctx context.Context, fn func() error) error {
	if s.owns(ctx) {
		return fn()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

func (s *Store) owns(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

func (s *Store) register(t snapshotter) {
	s.regMu.Lock()
	defer s.regMu.Unlock()
	s.tables = append(s.tables, t)
}

// Table is a keyed collection of values copied in and out with clone.
// Callers must access it inside Store.Run or a Store transaction.
type Table[T any] struct {
	rows  map[string]T
	clone func(T) T
}

func NewTable[T any](s *Store, clone func(T) T) *Table[T] {
	t := &Table[T]{rows: make(map[string]T), clone: clone}
	s.register(t)
	return t
}

func (t *Table[T]) Get(key string) (T, bool) {
	v, ok := t.rows[key]
	if !ok {
		var zero T
		return zero, false
	}
	return t.clone(v), true
}

func (t *Table[T]) Put(key string, v T) {
	t.rows[key] = t.clone(v)
}

func (t *Table[T]) Delete(key string) {
	delete(t.rows, key)
}

func (t *Table[T]) Len() int {
	return len(t.rows)
}

// Values returns copies of every row ordered by key.
func (t *Table[T]) Values() []T {
	keys := make([]string, 0, len(t.rows))
	for k := range t.rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, t.clone(t.rows[k]))
	}
	return out
}

func (t *Table[T]) snapshot() any {
	rows := make(map[string]T, len(t.rows))
	for k, v := range t.rows {
		rows[k] = t.clone(v)
	}
	return rows
}

func (t *Table[T]) restore(snap any) {
	t.rows = snap.(map[string]T)
}
