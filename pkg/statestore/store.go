package statestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/apperrors"
)

const upsertSQL = `INSERT INTO records (key, doc, version, created_at, updated_at)
	 VALUES ($1, $2, 1, NOW(), NOW())
	 ON CONFLICT (key) DO UPDATE SET doc = EXCLUDED.doc, version = records.version + 1, updated_at = NOW()`

// Client wraps the shared key-value state store. Keys are namespaced strings
// ("employee:{id}", "email-index:{email}"). Ordinary saves are last-writer-wins
// upserts; only the sequence counters use optimistic concurrency.
type Client struct {
	db *sql.DB

	// Counter retry knobs, overridable in tests.
	MaxCounterAttempts int
	BackoffBase        time.Duration
}

// New creates a client over the state store database connection.
func New(db *sql.DB) *Client {
	return &Client{
		db:                 db,
		MaxCounterAttempts: 10,
		BackoffBase:        25 * time.Millisecond,
	}
}

// Get loads the record at key into dest. A missing key is not an error: the
// second return is false and dest is untouched.
func (c *Client) Get(ctx context.Context, key string, dest any) (bool, error) {
	var doc []byte
	err := c.db.QueryRowContext(ctx, "SELECT doc FROM records WHERE key = $1", key).Scan(&doc)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, apperrors.Internalf(err, "state store get %s", key)
	}
	if dest != nil {
		if err := json.Unmarshal(doc, dest); err != nil {
			return false, apperrors.Internalf(err, "state store decode %s", key)
		}
	}
	return true, nil
}

// Save upserts value at key, last-writer-wins.
func (c *Client) Save(ctx context.Context, key string, value any) error {
	doc, err := json.Marshal(value)
	if err != nil {
		return apperrors.Internalf(err, "state store encode %s", key)
	}
	if _, err := c.db.ExecContext(ctx, upsertSQL, key, doc); err != nil {
		return apperrors.Internalf(err, "state store save %s", key)
	}
	return nil
}

// Delete removes the record at key. Deleting an absent key is not an error.
func (c *Client) Delete(ctx context.Context, key string) error {
	if _, err := c.db.ExecContext(ctx, "DELETE FROM records WHERE key = $1", key); err != nil {
		return apperrors.Internalf(err, "state store delete %s", key)
	}
	return nil
}

// Filter selects records by key prefix (the record type namespace) and
// optional equality matches on top-level JSON fields of the stored document.
type Filter struct {
	Prefix string
	Fields map[string]string
}

// Query returns the raw documents matching the filter, ordered by key. Use
// QueryAs for typed results.
func (c *Client) Query(ctx context.Context, f Filter) ([]json.RawMessage, error) {
	var sb strings.Builder
	sb.WriteString("SELECT doc FROM records WHERE key LIKE $1")
	args := []any{f.Prefix + "%"}

	names := make([]string, 0, len(f.Fields))
	for name := range f.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sb.WriteString(" AND doc->>$" + strconv.Itoa(len(args)+1))
		sb.WriteString(" = $" + strconv.Itoa(len(args)+2))
		args = append(args, name, f.Fields[name])
	}
	sb.WriteString(" ORDER BY key")

	rows, err := c.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, apperrors.Internalf(err, "state store query %s", f.Prefix)
	}
	defer rows.Close()

	var docs []json.RawMessage
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, apperrors.Internalf(err, "state store query scan %s", f.Prefix)
		}
		docs = append(docs, json.RawMessage(doc))
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internalf(err, "state store query rows %s", f.Prefix)
	}
	return docs, nil
}

// QueryAs runs Query and decodes each document into T.
func QueryAs[T any](ctx context.Context, c *Client, f Filter) ([]T, error) {
	docs, err := c.Query(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := json.Unmarshal(doc, &v); err != nil {
			return nil, apperrors.Internalf(err, "state store decode %s", f.Prefix)
		}
		out = append(out, v)
	}
	return out, nil
}

// Operation is one upsert (or, with Delete set, one removal) inside an atomic
// transaction.
type Operation struct {
	Key    string
	Value  any
	Delete bool
}

// ExecuteTransaction applies every operation or none of them. Used when a
// primary record and its index must appear together so a reader never observes
// one without the other, and when a replaced record set must never be seen
// half-swapped.
func (c *Client) ExecuteTransaction(ctx context.Context, ops []Operation) error {
	if len(ops) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Internalf(err, "state store begin transaction")
	}
	for _, op := range ops {
		if op.Delete {
			if _, err := tx.ExecContext(ctx, "DELETE FROM records WHERE key = $1", op.Key); err != nil {
				_ = tx.Rollback()
				return apperrors.Internalf(err, "state store transactional delete %s", op.Key)
			}
			continue
		}
		doc, err := json.Marshal(op.Value)
		if err != nil {
			_ = tx.Rollback()
			return apperrors.Internalf(err, "state store encode %s", op.Key)
		}
		if _, err := tx.ExecContext(ctx, upsertSQL, op.Key, doc); err != nil {
			_ = tx.Rollback()
			return apperrors.Internalf(err, "state store transactional save %s", op.Key)
		}
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Internalf(err, "state store commit transaction")
	}
	return nil
}

// IncrementCounter bumps the sequence counter at key and returns the new
// value. The counter is created lazily on first increment. The read-modify-
// write is guarded by a version token; on conflict it retries with jittered
// linear backoff up to MaxCounterAttempts, then fails — exhaustion means the
// key is under heavy contention and the caller's request is lost.
func (c *Client) IncrementCounter(ctx context.Context, key string) (int64, error) {
	for attempt := 1; attempt <= c.MaxCounterAttempts; attempt++ {
		var value, version int64
		err := c.db.QueryRowContext(ctx,
			"SELECT value, version FROM counters WHERE key = $1", key).Scan(&value, &version)

		switch {
		case err == sql.ErrNoRows:
			res, err := c.db.ExecContext(ctx,
				"INSERT INTO counters (key, value, version) VALUES ($1, 1, 1) ON CONFLICT (key) DO NOTHING", key)
			if err != nil {
				return 0, apperrors.Internalf(err, "counter create %s", key)
			}
			if n, _ := res.RowsAffected(); n == 1 {
				return 1, nil
			}
			// Lost the creation race, another writer got there first.

		case err != nil:
			return 0, apperrors.Internalf(err, "counter read %s", key)

		default:
			res, err := c.db.ExecContext(ctx,
				"UPDATE counters SET value = $2, version = $3 WHERE key = $1 AND version = $4",
				key, value+1, version+1, version)
			if err != nil {
				return 0, apperrors.Internalf(err, "counter update %s", key)
			}
			if n, _ := res.RowsAffected(); n == 1 {
				return value + 1, nil
			}
			// Version token moved underneath us.
		}

		c.sleepBackoff(ctx, attempt)
		if err := ctx.Err(); err != nil {
			return 0, apperrors.Internalf(err, "counter %s: cancelled while retrying", key)
		}
	}
	return 0, apperrors.Internalf(nil, "counter %s: %d attempts exhausted under contention", key, c.MaxCounterAttempts)
}

func (c *Client) sleepBackoff(ctx context.Context, attempt int) {
	d := time.Duration(attempt) * c.BackoffBase
	if d <= 0 {
		return
	}
	d += time.Duration(rand.Int63n(int64(d)/2 + 1))
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
