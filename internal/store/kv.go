package store

import (
	"context"
	"sync"

	"pantrywatch/internal/types"
)

// KV is the raw namespaced key-value contract behind the run state. Each
// namespace is an independent bucket of string keys; missing keys are not
// errors. Mutations are last-writer-wins with no transactions: concurrent
// triggers from a single deployment are effectively serialized by the
// engine's run lock, so row-level atomicity is enough here.
type KV interface {
	// Get returns the value for key in ns and whether it exists.
	Get(ctx context.Context, ns, key string) (string, bool, error)

	// Set upserts all given key/value pairs in ns.
	Set(ctx context.Context, ns string, values map[string]string) error

	// Delete removes the given keys from ns. Missing keys are ignored.
	Delete(ctx context.Context, ns string, keys ...string) error
}

// PGKV is the PostgreSQL-backed KV implementation. All rows share a scope
// identifier so multiple engine instances can share one database.
//
// Schema:
//
//	CREATE TABLE run_state (
//	    scope      text NOT NULL,
//	    namespace  text NOT NULL,
//	    key        text NOT NULL,
//	    value      text NOT NULL,
//	    updated_at timestamptz NOT NULL DEFAULT now(),
//	    PRIMARY KEY (scope, namespace, key)
//	);
type PGKV struct {
	db    DBTX
	scope string
}

// NewPGKV creates a PGKV bound to the given scope.
func NewPGKV(db DBTX, scope string) *PGKV {
	return &PGKV{db: db, scope: scope}
}

// Get returns the stored value for (scope, ns, key).
func (s *PGKV) Get(ctx context.Context, ns, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(ctx,
		`SELECT value FROM run_state WHERE scope = $1 AND namespace = $2 AND key = $3`,
		s.scope, ns, key,
	).Scan(&value)
	if err != nil {
		if isNoRows(err) {
			return "", false, nil
		}
		return "", false, types.NewAppError(types.ErrCodeInternalDB, "failed to read run state", err)
	}
	return value, true, nil
}

// Set upserts each pair individually. Partial failure leaves earlier pairs
// written; callers treat the whole cycle as retryable in that case.
func (s *PGKV) Set(ctx context.Context, ns string, values map[string]string) error {
	for key, value := range values {
		_, err := s.db.Exec(ctx,
			`INSERT INTO run_state (scope, namespace, key, value, updated_at)
			 VALUES ($1, $2, $3, $4, now())
			 ON CONFLICT (scope, namespace, key)
			 DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
			s.scope, ns, key, value,
		)
		if err != nil {
			return types.NewAppError(types.ErrCodeInternalDB, "failed to write run state", err)
		}
	}
	return nil
}

// Delete removes the given keys; absent keys are not an error.
func (s *PGKV) Delete(ctx context.Context, ns string, keys ...string) error {
	for _, key := range keys {
		_, err := s.db.Exec(ctx,
			`DELETE FROM run_state WHERE scope = $1 AND namespace = $2 AND key = $3`,
			s.scope, ns, key,
		)
		if err != nil {
			return types.NewAppError(types.ErrCodeInternalDB, "failed to delete run state", err)
		}
	}
	return nil
}

// MemKV is an in-memory KV used by tests and local development runs.
type MemKV struct {
	mu   sync.RWMutex
	data map[string]map[string]string
}

// NewMemKV creates an empty in-memory KV.
func NewMemKV() *MemKV {
	return &MemKV{data: make(map[string]map[string]string)}
}

// Get returns the stored value for (ns, key).
func (m *MemKV) Get(_ context.Context, ns, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bucket, ok := m.data[ns]
	if !ok {
		return "", false, nil
	}
	v, ok := bucket[key]
	return v, ok, nil
}

// Set upserts all pairs into ns.
func (m *MemKV) Set(_ context.Context, ns string, values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket, ok := m.data[ns]
	if !ok {
		bucket = make(map[string]string)
		m.data[ns] = bucket
	}
	for k, v := range values {
		bucket[k] = v
	}
	return nil
}

// Delete removes keys from ns.
func (m *MemKV) Delete(_ context.Context, ns string, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket, ok := m.data[ns]
	if !ok {
		return nil
	}
	for _, k := range keys {
		delete(bucket, k)
	}
	return nil
}

// Compile-time assertions.
var (
	_ KV = (*PGKV)(nil)
	_ KV = (*MemKV)(nil)
)
