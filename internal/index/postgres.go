package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duskline/withdraw/pkg/primitives"
)

// DBConfig holds PostgreSQL connection parameters for the index store.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
}

func DefaultDBConfig() *DBConfig {
	return &DBConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "withdraw",
		Database: "withdraw_index",
		SSLMode:  "disable",
		MaxConns: 20,
	}
}

var ErrDBConnection = errors.New("index: database connection error")

// PostgresTreeStore persists `nodes`, `notes`, and `metadata` tables per
// SPEC_FULL.md §6's persisted state layout.
type PostgresTreeStore struct {
	pool *pgxpool.Pool
}

func NewPostgresTreeStore(ctx context.Context, cfg *DBConfig) (*PostgresTreeStore, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode, cfg.MaxConns,
	)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDBConnection, err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDBConnection, err)
	}

	return &PostgresTreeStore{pool: pool}, nil
}

func (s *PostgresTreeStore) Close() {
	s.pool.Close()
}

// Schema (created out of band by migrations, restated here for clarity):
//
//   CREATE TABLE nodes (
//       level INT NOT NULL,
//       index_at_level BIGINT NOT NULL,
//       value BYTEA NOT NULL,
//       PRIMARY KEY (level, index_at_level)
//   );
//   CREATE TABLE notes (
//       leaf_commit BYTEA NOT NULL UNIQUE,
//       encrypted_output BYTEA NOT NULL,
//       leaf_index BIGINT NOT NULL UNIQUE,
//       tx_signature TEXT UNIQUE,
//       slot BIGINT,
//       block_time BIGINT
//   );
//   CREATE TABLE metadata (key TEXT PRIMARY KEY, value BYTEA NOT NULL);

func (s *PostgresTreeStore) GetNode(ctx context.Context, level int, index uint64) (primitives.Hash, bool, error) {
	var value []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM nodes WHERE level = $1 AND index_at_level = $2`,
		level, index,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return primitives.Hash{}, false, nil
	}
	if err != nil {
		return primitives.Hash{}, false, err
	}
	var h primitives.Hash
	copy(h[:], value)
	return h, true, nil
}

func (s *PostgresTreeStore) SetNode(ctx context.Context, level int, index uint64, hash primitives.Hash) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO nodes (level, index_at_level, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (level, index_at_level) DO UPDATE SET value = EXCLUDED.value
	`, level, index, hash[:])
	return err
}

func (s *PostgresTreeStore) GetRoot(ctx context.Context) (primitives.Hash, error) {
	var value []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM metadata WHERE key = 'root'`,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return EmptyRoot(), nil
	}
	if err != nil {
		return primitives.Hash{}, err
	}
	var h primitives.Hash
	copy(h[:], value)
	return h, nil
}

func (s *PostgresTreeStore) SetRoot(ctx context.Context, root primitives.Hash) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO metadata (key, value) VALUES ('root', $1)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, root[:])
	return err
}

func (s *PostgresTreeStore) GetSize(ctx context.Context) (uint64, error) {
	var value []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM metadata WHERE key = 'next_leaf_index'`,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return primitives.Uint64LE(value), nil
}

func (s *PostgresTreeStore) SetSize(ctx context.Context, size uint64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO metadata (key, value) VALUES ('next_leaf_index', $1)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, primitives.Uint64ToBytesLE(size))
	return err
}

func (s *PostgresTreeStore) HasCommitment(ctx context.Context, commitment primitives.Hash) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM notes WHERE leaf_commit = $1)`,
		commitment[:],
	).Scan(&exists)
	return exists, err
}

// PostgresNoteStore persists the `notes` table.
type PostgresNoteStore struct {
	pool *pgxpool.Pool
}

func NewPostgresNoteStore(pool *pgxpool.Pool) *PostgresNoteStore {
	return &PostgresNoteStore{pool: pool}
}

func (s *PostgresNoteStore) GetByTxSignature(ctx context.Context, sig string) (*Note, bool, error) {
	if sig == "" {
		return nil, false, nil
	}
	n := &Note{}
	var commit, enc []byte
	err := s.pool.QueryRow(ctx, `
		SELECT leaf_commit, encrypted_output, leaf_index, tx_signature, slot, block_time
		FROM notes WHERE tx_signature = $1
	`, sig).Scan(&commit, &enc, &n.LeafIndex, &n.TxSignature, &n.Slot, &n.BlockTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	copy(n.LeafCommitment[:], commit)
	n.EncryptedOutput = enc
	return n, true, nil
}

func (s *PostgresNoteStore) Save(ctx context.Context, n *Note) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notes (leaf_commit, encrypted_output, leaf_index, tx_signature, slot, block_time)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
		ON CONFLICT (leaf_index) DO NOTHING
	`, n.LeafCommitment[:], n.EncryptedOutput, n.LeafIndex, n.TxSignature, n.Slot, n.BlockTime)
	return err
}

func (s *PostgresNoteStore) Range(ctx context.Context, start, end uint64, limit int) ([]*Note, bool, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notes WHERE leaf_index BETWEEN $1 AND $2`,
		start, end,
	).Scan(&total); err != nil {
		return nil, false, 0, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT leaf_commit, encrypted_output, leaf_index, tx_signature, slot, block_time
		FROM notes WHERE leaf_index BETWEEN $1 AND $2
		ORDER BY leaf_index ASC LIMIT $3
	`, start, end, limit)
	if err != nil {
		return nil, false, 0, err
	}
	defer rows.Close()

	var out []*Note
	for rows.Next() {
		n := &Note{}
		var commit, enc []byte
		var txSig *string
		if err := rows.Scan(&commit, &enc, &n.LeafIndex, &txSig, &n.Slot, &n.BlockTime); err != nil {
			return nil, false, 0, err
		}
		copy(n.LeafCommitment[:], commit)
		n.EncryptedOutput = enc
		if txSig != nil {
			n.TxSignature = *txSig
		}
		out = append(out, n)
	}
	return out, total > len(out), total, rows.Err()
}
