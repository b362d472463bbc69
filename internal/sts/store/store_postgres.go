package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"miw/pkg/platform/sentinel"
	"miw/pkg/platform/tx"
)

// JTIPostgres is the relational replay ledger, for deployments without
// Redis. The conditional upsert in Consume is the atomic check-and-mark.
type JTIPostgres struct {
	db *sql.DB
}

func NewJTIPostgres(db *sql.DB) *JTIPostgres {
	return &JTIPostgres{db: db}
}

func (s *JTIPostgres) Register(ctx context.Context, jti string, expiresAt time.Time) error {
	q := tx.Executor(ctx, s.db)
	_, err := q.ExecContext(ctx, `
		INSERT INTO jti_records (jti, used, expires_at)
		VALUES ($1, FALSE, $2)
		ON CONFLICT (jti) DO NOTHING`,
		jti, expiresAt)
	if err != nil {
		return fmt.Errorf("register jti: %w", err)
	}
	return nil
}

func (s *JTIPostgres) Consume(ctx context.Context, jti string, expiresAt time.Time) error {
	q := tx.Executor(ctx, s.db)
	res, err := q.ExecContext(ctx, `
		INSERT INTO jti_records (jti, used, expires_at)
		VALUES ($1, TRUE, $2)
		ON CONFLICT (jti) DO UPDATE SET used = TRUE
		WHERE jti_records.used = FALSE`,
		jti, expiresAt)
	if err != nil {
		return fmt.Errorf("consume jti: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("consume jti: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("jti %s: %w", jti, sentinel.ErrAlreadyUsed)
	}
	return nil
}
