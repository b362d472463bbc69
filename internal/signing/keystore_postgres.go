package signing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"miw/pkg/platform/sentinel"
	"miw/pkg/platform/tx"
)

// PostgresKeyStore persists wallet private keys. Keys are stored raw; the
// database volume is the encryption boundary.
type PostgresKeyStore struct {
	db *sql.DB
}

func NewPostgresKeyStore(db *sql.DB) *PostgresKeyStore {
	return &PostgresKeyStore{db: db}
}

func (s *PostgresKeyStore) PrivateKeyFor(ctx context.Context, walletID uuid.UUID, alg Algorithm) ([]byte, error) {
	q := tx.Executor(ctx, s.db)
	var key []byte
	err := q.QueryRowContext(ctx, `
		SELECT private_key FROM wallet_keys
		WHERE wallet_id = $1 AND algorithm = $2`,
		walletID, string(alg)).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("private key for wallet %s (%s): %w", walletID, alg, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load private key: %w", err)
	}
	return key, nil
}

func (s *PostgresKeyStore) SavePrivateKey(ctx context.Context, walletID uuid.UUID, alg Algorithm, key []byte) error {
	q := tx.Executor(ctx, s.db)
	_, err := q.ExecContext(ctx, `
		INSERT INTO wallet_keys (wallet_id, algorithm, private_key, created_at)
		VALUES ($1, $2, $3, NOW())`,
		walletID, string(alg), key)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("key for wallet %s (%s): %w", walletID, alg, sentinel.ErrConflict)
		}
		return fmt.Errorf("save private key: %w", err)
	}
	return nil
}
