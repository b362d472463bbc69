package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"miw/internal/did"
	"miw/internal/signing"
	"miw/internal/wallet/models"
	"miw/pkg/platform/sentinel"
	"miw/pkg/platform/tx"
)

// Postgres persists wallets in PostgreSQL. The DID document is stored as
// JSONB since nothing queries inside it.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Create(ctx context.Context, w *models.Wallet) error {
	doc, err := json.Marshal(w.Document)
	if err != nil {
		return fmt.Errorf("marshal DID document: %w", err)
	}
	query := `
		INSERT INTO wallets (id, bpn, name, did, did_document, algorithm, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = tx.Executor(ctx, s.db).ExecContext(ctx, query,
		w.ID, strings.ToUpper(w.BPN), w.Name, w.DID, doc, string(w.Algorithm), w.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("wallet for bpn %s: %w", w.BPN, sentinel.ErrConflict)
		}
		return fmt.Errorf("create wallet: %w", err)
	}
	return nil
}

func (s *Postgres) FindByBPN(ctx context.Context, bpn string) (*models.Wallet, error) {
	return s.findBy(ctx, `bpn = $1`, strings.ToUpper(bpn))
}

func (s *Postgres) FindByDID(ctx context.Context, didStr string) (*models.Wallet, error) {
	return s.findBy(ctx, `did = $1`, didStr)
}

func (s *Postgres) ExistsByBPN(ctx context.Context, bpn string) (bool, error) {
	var exists bool
	err := tx.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM wallets WHERE bpn = $1)`, strings.ToUpper(bpn)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check wallet existence: %w", err)
	}
	return exists, nil
}

func (s *Postgres) List(ctx context.Context) ([]*models.Wallet, error) {
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx, `
		SELECT id, bpn, name, did, did_document, algorithm, created_at
		FROM wallets ORDER BY bpn`)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	defer rows.Close()

	var out []*models.Wallet
	for rows.Next() {
		w, err := scanWallet(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *Postgres) findBy(ctx context.Context, where string, arg any) (*models.Wallet, error) {
	row := tx.Executor(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, bpn, name, did, did_document, algorithm, created_at
		FROM wallets WHERE `+where, arg)
	w, err := scanWallet(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("wallet %v: %w", arg, sentinel.ErrNotFound)
	}
	return w, err
}

func scanWallet(scan func(...any) error) (*models.Wallet, error) {
	var (
		w      models.Wallet
		rawDoc []byte
		alg    string
	)
	if err := scan(&w.ID, &w.BPN, &w.Name, &w.DID, &rawDoc, &alg, &w.CreatedAt); err != nil {
		return nil, err
	}
	var doc did.Document
	if err := json.Unmarshal(rawDoc, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal DID document: %w", err)
	}
	w.Document = &doc
	w.Algorithm = signing.Algorithm(alg)
	return &w, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
