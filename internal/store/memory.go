package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/systmms/credvault/pkg/secretref"
)

// Memory is an in-process Store and AuditLog, used in tests and for
// single-shot CLI runs against a scratch ledger. Rows are deep-copied on the
// way in and out so callers can never alias ledger-owned buffers.
type Memory struct {
	mu      sync.RWMutex
	rows    map[string][]*secretref.SecretReference // key: scope|name, ascending version
	byID    map[string]*secretref.SecretReference
	records []secretref.AuditRecord
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{
		rows: make(map[string][]*secretref.SecretReference),
		byID: make(map[string]*secretref.SecretReference),
	}
}

func pairKey(scope secretref.Scope, name string) string {
	return fmt.Sprintf("%s|%s", scope, name)
}

// GetActive implements Store.
func (m *Memory) GetActive(_ context.Context, scope secretref.Scope, name string) (*secretref.SecretReference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	versions := m.rows[pairKey(scope, name)]
	if len(versions) == 0 {
		return nil, nil
	}
	return versions[len(versions)-1].Clone(), nil
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, id string) (*secretref.SecretReference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ref, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return ref.Clone(), nil
}

// Append implements Store.
func (m *Memory) Append(_ context.Context, ref *secretref.SecretReference, expectedPrev int) (*secretref.SecretReference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := pairKey(ref.Scope, ref.Name)
	versions := m.rows[key]

	current := 0
	if len(versions) > 0 {
		current = versions[len(versions)-1].KeyVersion
	}
	if current != expectedPrev {
		return nil, ErrVersionConflict
	}
	if ref.KeyVersion != expectedPrev+1 {
		return nil, fmt.Errorf("append must advance key version by one (got %d after %d)", ref.KeyVersion, expectedPrev)
	}

	stored := ref.Clone()
	m.rows[key] = append(versions, stored)
	m.byID[stored.ID] = stored
	return stored.Clone(), nil
}

// Retract implements Store.
func (m *Memory) Retract(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ref, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}

	key := pairKey(ref.Scope, ref.Name)
	versions := m.rows[key]
	if len(versions) == 0 || versions[len(versions)-1].ID != id {
		return fmt.Errorf("retract only applies to the most recent append for %s", key)
	}

	m.rows[key] = versions[:len(versions)-1]
	delete(m.byID, id)
	return nil
}

// ListActiveAll implements Store.
func (m *Memory) ListActiveAll(_ context.Context) ([]*secretref.SecretReference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*secretref.SecretReference, 0, len(m.rows))
	for _, versions := range m.rows {
		if len(versions) > 0 {
			out = append(out, versions[len(versions)-1].Clone())
		}
	}
	return out, nil
}

// Revoke implements Store.
func (m *Memory) Revoke(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ref, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	t := at
	ref.RevokedAt = &t
	return nil
}

// ClearRevocation implements Store.
func (m *Memory) ClearRevocation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ref, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	ref.RevokedAt = nil
	return nil
}

// Append implements AuditLog.
func (m *Memory) AppendAudit(_ context.Context, rec secretref.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = append(m.records, rec)
	return nil
}

// List implements AuditLog.
func (m *Memory) ListAudit(_ context.Context, scope secretref.Scope, name string, limit int) ([]secretref.AuditRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []secretref.AuditRecord
	for i := len(m.records) - 1; i >= 0; i-- {
		rec := m.records[i]
		if scope != "" && rec.Scope != scope {
			continue
		}
		if name != "" && rec.Name != name {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Audit adapts Memory to the AuditLog interface.
func (m *Memory) Audit() AuditLog {
	return memoryAudit{m}
}

type memoryAudit struct{ m *Memory }

func (a memoryAudit) Append(ctx context.Context, rec secretref.AuditRecord) error {
	return a.m.AppendAudit(ctx, rec)
}

func (a memoryAudit) List(ctx context.Context, scope secretref.Scope, name string, limit int) ([]secretref.AuditRecord, error) {
	return a.m.ListAudit(ctx, scope, name, limit)
}
