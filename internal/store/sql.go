package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	"github.com/systmms/credvault/pkg/secretref"
)

// Dialect selects the SQL flavor for placeholders, DDL, and error mapping.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

// SQL implements Store and AuditLog over database/sql. One instance serves
// both interfaces so a single database holds the ledger and its audit trail.
type SQL struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQL wraps an open database handle. Call Migrate before first use.
func NewSQL(db *sql.DB, dialect Dialect) *SQL {
	return &SQL{db: db, dialect: dialect}
}

// Close releases the underlying database handle.
func (s *SQL) Close() error {
	return s.db.Close()
}

// rebind converts ?-style placeholders to the dialect's numbering.
func (s *SQL) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Migrate creates the ledger tables when they do not exist.
func (s *SQL) Migrate(ctx context.Context) error {
	for _, ddl := range s.schema() {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	return nil
}

func (s *SQL) schema() []string {
	blob := "BLOB"
	autoPK := "INTEGER PRIMARY KEY AUTOINCREMENT"
	switch s.dialect {
	case DialectPostgres:
		blob = "BYTEA"
		autoPK = "BIGSERIAL PRIMARY KEY"
	case DialectMySQL:
		autoPK = "BIGINT AUTO_INCREMENT PRIMARY KEY"
	}

	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS secret_references (
			id VARCHAR(64) PRIMARY KEY,
			scope VARCHAR(32) NOT NULL,
			name VARCHAR(255) NOT NULL,
			ciphertext %s NOT NULL,
			key_version INTEGER NOT NULL,
			source VARCHAR(32) NOT NULL,
			last_rotated_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP NULL,
			revoked_at TIMESTAMP NULL,
			CONSTRAINT uq_scope_name_version UNIQUE (scope, name, key_version)
		)`, blob),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS secret_lifecycle_audit (
			seq %s,
			secret_ref_id VARCHAR(64) NOT NULL,
			scope VARCHAR(32) NOT NULL,
			name VARCHAR(255) NOT NULL,
			action_type VARCHAR(16) NOT NULL,
			outcome_status VARCHAR(16) NOT NULL,
			actor_id VARCHAR(255) NOT NULL,
			actor_email VARCHAR(255) NULL,
			occurred_at TIMESTAMP NOT NULL
		)`, autoPK),
	}
}

const refColumns = "id, scope, name, ciphertext, key_version, source, last_rotated_at, expires_at, revoked_at"

func scanRef(row interface{ Scan(...interface{}) error }) (*secretref.SecretReference, error) {
	var ref secretref.SecretReference
	var scope, source string
	var expiresAt, revokedAt sql.NullTime
	err := row.Scan(&ref.ID, &scope, &ref.Name, &ref.Ciphertext, &ref.KeyVersion,
		&source, &ref.LastRotatedAt, &expiresAt, &revokedAt)
	if err != nil {
		return nil, err
	}
	ref.Scope = secretref.Scope(scope)
	ref.Source = secretref.Source(source)
	if expiresAt.Valid {
		t := expiresAt.Time
		ref.ExpiresAt = &t
	}
	if revokedAt.Valid {
		t := revokedAt.Time
		ref.RevokedAt = &t
	}
	return &ref, nil
}

// GetActive implements Store.
func (s *SQL) GetActive(ctx context.Context, scope secretref.Scope, name string) (*secretref.SecretReference, error) {
	query := s.rebind("SELECT " + refColumns + " FROM secret_references WHERE scope = ? AND name = ? ORDER BY key_version DESC LIMIT 1")
	ref, err := scanRef(s.db.QueryRowContext(ctx, query, string(scope), name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying active version: %w", err)
	}
	return ref, nil
}

// Get implements Store.
func (s *SQL) Get(ctx context.Context, id string) (*secretref.SecretReference, error) {
	query := s.rebind("SELECT " + refColumns + " FROM secret_references WHERE id = ?")
	ref, err := scanRef(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying secret reference: %w", err)
	}
	return ref, nil
}

// Append implements Store. The UNIQUE (scope, name, key_version) constraint
// is the compare-and-set: a concurrent writer that already appended the same
// version makes the insert fail, which maps to ErrVersionConflict.
func (s *SQL) Append(ctx context.Context, ref *secretref.SecretReference, expectedPrev int) (*secretref.SecretReference, error) {
	if ref.KeyVersion != expectedPrev+1 {
		return nil, fmt.Errorf("append must advance key version by one (got %d after %d)", ref.KeyVersion, expectedPrev)
	}

	query := s.rebind(`INSERT INTO secret_references
		(id, scope, name, ciphertext, key_version, source, last_rotated_at, expires_at, revoked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	var expiresAt, revokedAt interface{}
	if ref.ExpiresAt != nil {
		expiresAt = ref.ExpiresAt.UTC()
	}
	if ref.RevokedAt != nil {
		revokedAt = ref.RevokedAt.UTC()
	}

	_, err := s.db.ExecContext(ctx, query, ref.ID, string(ref.Scope), ref.Name,
		ref.Ciphertext, ref.KeyVersion, string(ref.Source), ref.LastRotatedAt.UTC(), expiresAt, revokedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrVersionConflict
		}
		return nil, fmt.Errorf("appending secret reference: %w", err)
	}
	return ref.Clone(), nil
}

// Retract implements Store.
func (s *SQL) Retract(ctx context.Context, id string) error {
	query := s.rebind("DELETE FROM secret_references WHERE id = ?")
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("retracting secret reference: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListActiveAll implements Store.
func (s *SQL) ListActiveAll(ctx context.Context) ([]*secretref.SecretReference, error) {
	query := `SELECT r.id, r.scope, r.name, r.ciphertext, r.key_version, r.source, r.last_rotated_at, r.expires_at, r.revoked_at
		FROM secret_references r
		JOIN (SELECT scope, name, MAX(key_version) AS max_version FROM secret_references GROUP BY scope, name) active
		ON r.scope = active.scope AND r.name = active.name AND r.key_version = active.max_version
		ORDER BY r.scope, r.name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing active versions: %w", err)
	}
	defer rows.Close()

	var out []*secretref.SecretReference
	for rows.Next() {
		ref, err := scanRef(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning secret reference: %w", err)
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

// Revoke implements Store.
func (s *SQL) Revoke(ctx context.Context, id string, at time.Time) error {
	query := s.rebind("UPDATE secret_references SET revoked_at = ? WHERE id = ?")
	res, err := s.db.ExecContext(ctx, query, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("revoking secret reference: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearRevocation implements Store.
func (s *SQL) ClearRevocation(ctx context.Context, id string) error {
	query := s.rebind("UPDATE secret_references SET revoked_at = NULL WHERE id = ?")
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("clearing revocation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Append implements AuditLog.
func (s *SQL) AppendAudit(ctx context.Context, rec secretref.AuditRecord) error {
	query := s.rebind(`INSERT INTO secret_lifecycle_audit
		(secret_ref_id, scope, name, action_type, outcome_status, actor_id, actor_email, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)

	var email interface{}
	if rec.ActorEmail != "" {
		email = rec.ActorEmail
	}
	_, err := s.db.ExecContext(ctx, query, rec.SecretRefID, string(rec.Scope), rec.Name,
		string(rec.Action), string(rec.Outcome), rec.ActorID, email, rec.OccurredAt.UTC())
	if err != nil {
		return fmt.Errorf("appending audit record: %w", err)
	}
	return nil
}

// List implements AuditLog.
func (s *SQL) ListAudit(ctx context.Context, scope secretref.Scope, name string, limit int) ([]secretref.AuditRecord, error) {
	query := "SELECT secret_ref_id, scope, name, action_type, outcome_status, actor_id, actor_email, occurred_at FROM secret_lifecycle_audit"
	var args []interface{}
	var conds []string
	if scope != "" {
		conds = append(conds, "scope = ?")
		args = append(args, string(scope))
	}
	if name != "" {
		conds = append(conds, "name = ?")
		args = append(args, name)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY seq DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("listing audit records: %w", err)
	}
	defer rows.Close()

	var out []secretref.AuditRecord
	for rows.Next() {
		var rec secretref.AuditRecord
		var scopeStr, action, outcome string
		var email sql.NullString
		if err := rows.Scan(&rec.SecretRefID, &scopeStr, &rec.Name, &action, &outcome,
			&rec.ActorID, &email, &rec.OccurredAt); err != nil {
			return nil, fmt.Errorf("scanning audit record: %w", err)
		}
		rec.Scope = secretref.Scope(scopeStr)
		rec.Action = secretref.Action(action)
		rec.Outcome = secretref.Outcome(outcome)
		rec.ActorEmail = email.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Audit adapts SQL to the AuditLog interface.
func (s *SQL) Audit() AuditLog {
	return sqlAudit{s}
}

type sqlAudit struct{ s *SQL }

func (a sqlAudit) Append(ctx context.Context, rec secretref.AuditRecord) error {
	return a.s.AppendAudit(ctx, rec)
}

func (a sqlAudit) List(ctx context.Context, scope secretref.Scope, name string, limit int) ([]secretref.AuditRecord, error) {
	return a.s.ListAudit(ctx, scope, name, limit)
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	if myErr, ok := err.(*mysql.MySQLError); ok {
		return myErr.Number == 1062
	}
	// libsql/sqlite surfaces constraint failures as plain text
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed")
}
