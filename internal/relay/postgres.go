package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duskline/withdraw/pkg/primitives"
)

var ErrDBConnection = errors.New("relay: database connection error")

// DBConfig holds PostgreSQL connection parameters for the relay's job
// store, mirroring internal/index's DBConfig.
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
		Database: "withdraw_relay",
		SSLMode:  "disable",
		MaxConns: 20,
	}
}

// PostgresJobStore persists the `jobs` table per SPEC_FULL.md §6:
//
//	CREATE TABLE jobs (
//	    id BIGSERIAL PRIMARY KEY,
//	    state TEXT NOT NULL,
//	    attempts INT NOT NULL DEFAULT 0,
//	    payload_blob BYTEA NOT NULL,
//	    last_error TEXT,
//	    signature TEXT,
//	    created_at BIGINT NOT NULL,
//	    updated_at BIGINT NOT NULL
//	);
type PostgresJobStore struct {
	pool *pgxpool.Pool
}

func NewPostgresJobStore(ctx context.Context, cfg *DBConfig) (*PostgresJobStore, error) {
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
	return &PostgresJobStore{pool: pool}, nil
}

func (s *PostgresJobStore) Close() { s.pool.Close() }

func (s *PostgresJobStore) Insert(ctx context.Context, j *Job) error {
	blob := encodeJobPayload(j)
	return s.pool.QueryRow(ctx, `
		INSERT INTO jobs (state, attempts, payload_blob, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING id
	`, StateQueued, 0, blob, j.CreatedAtUnix).Scan(&j.ID)
}

func (s *PostgresJobStore) Get(ctx context.Context, id uint64) (*Job, bool, error) {
	var state string
	var attempts int
	var blob []byte
	var lastError, signature *string
	var createdAt, updatedAt uint64
	err := s.pool.QueryRow(ctx, `
		SELECT state, attempts, payload_blob, last_error, signature, created_at, updated_at
		FROM jobs WHERE id = $1
	`, id).Scan(&state, &attempts, &blob, &lastError, &signature, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	j := decodeJobPayload(blob)
	j.ID = id
	j.State = State(state)
	j.Attempts = attempts
	if lastError != nil {
		j.LastError = *lastError
	}
	if signature != nil {
		j.Signature = *signature
	}
	j.CreatedAtUnix, j.UpdatedAtUnix = createdAt, updatedAt
	return j, true, nil
}

// Claim performs the compare-and-set SPEC_FULL.md §4.5 step 1 requires
// in a single round trip, so concurrent relay workers never double-claim.
func (s *PostgresJobStore) Claim(ctx context.Context) (*Job, bool, error) {
	var id uint64
	var blob []byte
	var attempts int
	var createdAt uint64
	err := s.pool.QueryRow(ctx, `
		UPDATE jobs SET state = $1, attempts = attempts + 1, updated_at = created_at
		WHERE id = (
			SELECT id FROM jobs WHERE state = $2 ORDER BY created_at ASC LIMIT 1 FOR UPDATE SKIP LOCKED
		)
		RETURNING id, payload_blob, attempts, created_at
	`, StateExecuting, StateQueued).Scan(&id, &blob, &attempts, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	j := decodeJobPayload(blob)
	j.ID, j.Attempts, j.CreatedAtUnix = id, attempts, createdAt
	j.State = StateExecuting
	return j, true, nil
}

func (s *PostgresJobStore) Update(ctx context.Context, j *Job) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE jobs SET state = $1, attempts = $2, last_error = $3, signature = $4, updated_at = $5
		WHERE id = $6
	`, j.State, j.Attempts, nullableString(j.LastError), nullableString(j.Signature), j.UpdatedAtUnix, j.ID)
	return err
}

func (s *PostgresJobStore) Backlog(ctx context.Context) (map[State]BacklogEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT state, COUNT(*), MIN(created_at) FROM jobs GROUP BY state
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[State]BacklogEntry)
	for rows.Next() {
		var state string
		var e BacklogEntry
		var oldest int64
		if err := rows.Scan(&state, &e.Count, &oldest); err != nil {
			return nil, err
		}
		e.OldestUnixSec = uint64(oldest)
		out[State(state)] = e
	}
	return out, rows.Err()
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// encodeJobPayload/decodeJobPayload serialize everything about a job
// except its queue bookkeeping (state/attempts/timestamps, which have
// their own columns) into payload_blob: a flat concatenation of
// fixed-width fields followed by the variable-length outputs list,
// all little-endian per C1.
func encodeJobPayload(j *Job) []byte {
	buf := make([]byte, 0, 256+len(j.Outputs)*40)
	buf = append(buf, primitives.Uint32ToBytesLE(uint32(len(j.Proof)))...)
	buf = append(buf, j.Proof...)
	buf = append(buf, primitives.Uint32ToBytesLE(uint32(len(j.PublicInputs)))...)
	buf = append(buf, j.PublicInputs...)
	buf = append(buf, j.Root[:]...)
	buf = append(buf, j.Nullifier[:]...)
	buf = append(buf, primitives.Uint64ToBytesLE(j.Amount)...)
	buf = append(buf, j.OutputsHash[:]...)
	buf = append(buf, byte(len(j.Outputs)))
	for _, o := range j.Outputs {
		buf = append(buf, o.Address[:]...)
		buf = append(buf, primitives.Uint64ToBytesLE(o.Amount)...)
	}
	return buf
}

func decodeJobPayload(buf []byte) *Job {
	j := &Job{}
	off := 0
	readBlob := func() []byte {
		n := primitives.Uint32LE(buf[off : off+4])
		off += 4
		b := append([]byte(nil), buf[off:off+int(n)]...)
		off += int(n)
		return b
	}
	j.Proof = readBlob()
	j.PublicInputs = readBlob()
	copy(j.Root[:], buf[off:off+32])
	off += 32
	copy(j.Nullifier[:], buf[off:off+32])
	off += 32
	j.Amount = primitives.Uint64LE(buf[off : off+8])
	off += 8
	copy(j.OutputsHash[:], buf[off:off+32])
	off += 32
	numOutputs := int(buf[off])
	off++
	j.Outputs = make([]Output, numOutputs)
	for i := 0; i < numOutputs; i++ {
		var addr primitives.Address
		copy(addr[:], buf[off:off+32])
		off += 32
		amount := primitives.Uint64LE(buf[off : off+8])
		off += 8
		j.Outputs[i] = Output{Address: addr, Amount: amount}
	}
	return j
}
