package archive

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists the archive in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const createTablesSQL = `
CREATE TABLE IF NOT EXISTS bridge_commitments (
    commitment_hash BYTEA PRIMARY KEY,
    nullifier BYTEA NOT NULL,
    account BYTEA NOT NULL,
    amount TEXT NOT NULL,
    chain_id BIGINT NOT NULL,
    status TEXT NOT NULL,
    processed_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS bridge_nullifiers (
    nullifier BYTEA PRIMARY KEY,
    used_at TIMESTAMPTZ NOT NULL
);
`

// NewPostgresStore connects using the DSN and ensures the tables exist.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if _, err := pool.Exec(ctx, createTablesSQL); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PostgresStore) SaveCommitment(ctx context.Context, rec Record) error {
	_, err := p.pool.Exec(ctx, `
INSERT INTO bridge_commitments (commitment_hash, nullifier, account, amount, chain_id, status, processed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (commitment_hash) DO UPDATE
SET nullifier = EXCLUDED.nullifier,
    account = EXCLUDED.account,
    amount = EXCLUDED.amount,
    chain_id = EXCLUDED.chain_id,
    status = EXCLUDED.status,
    processed_at = EXCLUDED.processed_at
`, rec.CommitmentHash[:], rec.Nullifier[:], rec.Account[:], rec.Amount, int64(rec.ChainID), rec.Status, rec.ProcessedAt)
	return err
}

func (p *PostgresStore) GetCommitment(ctx context.Context, hash common.Hash) (*Record, error) {
	row := p.pool.QueryRow(ctx, `
SELECT commitment_hash, nullifier, account, amount, chain_id, status, processed_at
FROM bridge_commitments
WHERE commitment_hash = $1
`, hash[:])

	var (
		rec             Record
		commitmentBytes []byte
		nullifierBytes  []byte
		accountBytes    []byte
		chainID         int64
	)
	if err := row.Scan(&commitmentBytes, &nullifierBytes, &accountBytes, &rec.Amount, &chainID, &rec.Status, &rec.ProcessedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	rec.CommitmentHash = common.BytesToHash(commitmentBytes)
	rec.Nullifier = common.BytesToHash(nullifierBytes)
	rec.Account = common.BytesToAddress(accountBytes)
	rec.ChainID = uint32(chainID)
	return &rec, nil
}

func (p *PostgresStore) MarkNullifier(ctx context.Context, nullifier common.Hash, at time.Time) error {
	_, err := p.pool.Exec(ctx, `
INSERT INTO bridge_nullifiers (nullifier, used_at)
VALUES ($1, $2)
ON CONFLICT (nullifier) DO NOTHING
`, nullifier[:], at)
	return err
}

func (p *PostgresStore) IsNullifierUsed(ctx context.Context, nullifier common.Hash) (bool, error) {
	row := p.pool.QueryRow(ctx, `SELECT 1 FROM bridge_nullifiers WHERE nullifier = $1`, nullifier[:])
	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
