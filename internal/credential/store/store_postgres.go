package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"miw/internal/credential/models"
	vc "miw/internal/vc/models"
	"miw/pkg/platform/sentinel"
	"miw/pkg/platform/tx"
)

// HolderPostgres persists holder-side records. Credentials are stored as
// JSONB; index columns are extracted at write time.
type HolderPostgres struct {
	db *sql.DB
}

func NewHolderPostgres(db *sql.DB) *HolderPostgres {
	return &HolderPostgres{db: db}
}

const holderColumns = `id, credential_id, holder_did, issuer_did, type, stored, credential, created_at`

func (s *HolderPostgres) Create(ctx context.Context, r *models.Record) error {
	raw, err := json.Marshal(r.Credential)
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}
	_, err = tx.Executor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO holder_credentials (`+holderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID, r.CredentialID, r.HolderDID, r.IssuerDID, r.Type, r.Stored, raw, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("create holder record: %w", err)
	}
	return nil
}

func (s *HolderPostgres) ListByHolder(ctx context.Context, holderDID string, filter models.Filter) ([]*models.Record, error) {
	query := `SELECT ` + holderColumns + ` FROM holder_credentials WHERE holder_did = $1`
	args := []any{holderDID}
	if filter.Type != "" {
		args = append(args, filter.Type)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if filter.CredentialID != "" {
		args = append(args, filter.CredentialID)
		query += fmt.Sprintf(" AND credential_id = $%d", len(args))
	}
	query += ` ORDER BY created_at DESC`
	return s.queryRecords(ctx, query, args...)
}

// FindByHolderAndTypes fetches records for any of the given types in one
// round trip.
func (s *HolderPostgres) FindByHolderAndTypes(ctx context.Context, holderDID string, types []string) ([]*models.Record, error) {
	return s.queryRecords(ctx, `
		SELECT `+holderColumns+` FROM holder_credentials
		WHERE holder_did = $1 AND type = ANY($2)
		ORDER BY created_at DESC`,
		holderDID, pq.Array(types))
}

func (s *HolderPostgres) FindByHolderAndCredentialID(ctx context.Context, holderDID, credentialID string) (*models.Record, error) {
	records, err := s.queryRecords(ctx, `
		SELECT `+holderColumns+` FROM holder_credentials
		WHERE holder_did = $1 AND credential_id = $2`,
		holderDID, credentialID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("holder record %s: %w", credentialID, sentinel.ErrNotFound)
	}
	return records[0], nil
}

func (s *HolderPostgres) Delete(ctx context.Context, holderDID, credentialID string) error {
	res, err := tx.Executor(ctx, s.db).ExecContext(ctx, `
		DELETE FROM holder_credentials WHERE holder_did = $1 AND credential_id = $2`,
		holderDID, credentialID)
	if err != nil {
		return fmt.Errorf("delete holder record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("holder record %s: %w", credentialID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *HolderPostgres) DeleteSupersededSummaries(ctx context.Context, holderDID, issuerDID string) error {
	_, err := tx.Executor(ctx, s.db).ExecContext(ctx, `
		DELETE FROM holder_credentials
		WHERE holder_did = $1 AND issuer_did = $2 AND type = $3 AND stored = FALSE`,
		holderDID, issuerDID, vc.TypeSummary)
	if err != nil {
		return fmt.Errorf("delete superseded summaries: %w", err)
	}
	return nil
}

func (s *HolderPostgres) queryRecords(ctx context.Context, query string, args ...any) ([]*models.Record, error) {
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query holder records: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// IssuerPostgres persists the append-only issuer-side records.
type IssuerPostgres struct {
	db *sql.DB
}

func NewIssuerPostgres(db *sql.DB) *IssuerPostgres {
	return &IssuerPostgres{db: db}
}

func (s *IssuerPostgres) Create(ctx context.Context, r *models.Record) error {
	raw, err := json.Marshal(r.Credential)
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}
	_, err = tx.Executor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO issuer_credentials (id, credential_id, holder_did, issuer_did, type, stored, credential, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID, r.CredentialID, r.HolderDID, r.IssuerDID, r.Type, r.Stored, raw, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("create issuer record: %w", err)
	}
	return nil
}

func (s *IssuerPostgres) ListByIssuer(ctx context.Context, issuerDID string, filter models.Filter) ([]*models.Record, error) {
	query := `
		SELECT id, credential_id, holder_did, issuer_did, type, stored, credential, created_at
		FROM issuer_credentials WHERE issuer_did = $1`
	args := []any{issuerDID}
	if filter.Type != "" {
		args = append(args, filter.Type)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if filter.CredentialID != "" {
		args = append(args, filter.CredentialID)
		query += fmt.Sprintf(" AND credential_id = $%d", len(args))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query issuer records: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *IssuerPostgres) LatestSummary(ctx context.Context, issuerDID, holderDID string) (*models.Record, error) {
	row := tx.Executor(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, credential_id, holder_did, issuer_did, type, stored, credential, created_at
		FROM issuer_credentials
		WHERE issuer_did = $1 AND holder_did = $2 AND type = $3
		ORDER BY created_at DESC
		LIMIT 1`,
		issuerDID, holderDID, vc.TypeSummary)
	r, err := scanRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("summary for %s/%s: %w", issuerDID, holderDID, sentinel.ErrNotFound)
	}
	return r, err
}

func (s *IssuerPostgres) CountByHolderAndType(ctx context.Context, issuerDID, holderDID, credType string) (int, error) {
	var count int
	err := tx.Executor(ctx, s.db).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM issuer_credentials
		WHERE issuer_did = $1 AND holder_did = $2 AND type = $3`,
		issuerDID, holderDID, credType).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count issuer records: %w", err)
	}
	return count, nil
}

func scanRecords(rows *sql.Rows) ([]*models.Record, error) {
	var out []*models.Record
	for rows.Next() {
		r, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRecord(scan func(...any) error) (*models.Record, error) {
	var (
		r   models.Record
		raw []byte
	)
	if err := scan(&r.ID, &r.CredentialID, &r.HolderDID, &r.IssuerDID, &r.Type, &r.Stored, &raw, &r.CreatedAt); err != nil {
		return nil, err
	}
	var cred vc.Credential
	if err := json.Unmarshal(raw, &cred); err != nil {
		return nil, fmt.Errorf("unmarshal credential: %w", err)
	}
	r.Credential = &cred
	return &r, nil
}
