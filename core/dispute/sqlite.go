package dispute

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/openroad/roadassist/core/model"
)

// SQLiteStore persists disputes to a SQLite database. The full record is
// kept as JSON next to the columns the queries filter on.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS disputes (
        id TEXT PRIMARY KEY,
        seq INTEGER,
        created INTEGER,
        status TEXT,
        priority TEXT,
        related_id TEXT,
        raised_by TEXT,
        record TEXT
    );
    CREATE TABLE IF NOT EXISTS dispute_seq (n INTEGER);`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) nextSeq(ctx context.Context, tx *sql.Tx) (int, error) {
	var n sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(n) FROM dispute_seq`).Scan(&n); err != nil {
		return 0, err
	}
	next := int(n.Int64) + 1
	if _, err := tx.ExecContext(ctx, `INSERT INTO dispute_seq (n) VALUES (?)`, next); err != nil {
		return 0, err
	}
	return next, nil
}

func (s *SQLiteStore) Create(ctx context.Context, d model.Dispute) (model.Dispute, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Dispute{}, err
	}
	defer func() { _ = tx.Rollback() }()

	seq, err := s.nextSeq(ctx, tx)
	if err != nil {
		return model.Dispute{}, err
	}
	if d.Number == "" {
		d.Number = fmt.Sprintf("DSP-%06d", seq)
	}
	rec, err := json.Marshal(d)
	if err != nil {
		return model.Dispute{}, err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO disputes (id, seq, created, status, priority, related_id, raised_by, record)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, seq, d.CreatedAt.Unix(), string(d.Status), string(d.Priority), d.RelatedID, d.RaisedBy, string(rec))
	if err != nil {
		return model.Dispute{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Dispute{}, err
	}
	return d, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (model.Dispute, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM disputes WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Dispute{}, ErrNotFound
	}
	if err != nil {
		return model.Dispute{}, err
	}
	var d model.Dispute
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		return model.Dispute{}, fmt.Errorf("unmarshal dispute: %w", err)
	}
	return d, nil
}

func (s *SQLiteStore) Resolve(ctx context.Context, id string, final model.DisputeStatus, resolution, resolvedBy string) (model.Dispute, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Dispute{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var data string
	err = tx.QueryRowContext(ctx, `SELECT record FROM disputes WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Dispute{}, ErrNotFound
	}
	if err != nil {
		return model.Dispute{}, err
	}
	var d model.Dispute
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		return model.Dispute{}, fmt.Errorf("unmarshal dispute: %w", err)
	}
	if d.Status != model.DisputeOpen {
		return model.Dispute{}, ErrAlreadyResolved
	}
	now := time.Now()
	d.Status = final
	d.Resolution = resolution
	d.ResolvedBy = resolvedBy
	d.ResolvedAt = &now

	rec, err := json.Marshal(d)
	if err != nil {
		return model.Dispute{}, err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE disputes SET status = ?, record = ? WHERE id = ? AND status = ?`,
		string(final), string(rec), id, string(model.DisputeOpen))
	if err != nil {
		return model.Dispute{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Dispute{}, ErrAlreadyResolved
	}
	if err := tx.Commit(); err != nil {
		return model.Dispute{}, err
	}
	return d, nil
}

func (s *SQLiteStore) List(ctx context.Context, f Filter) ([]model.Dispute, int, error) {
	var args []any
	where := ` WHERE 1=1`
	if f.Status != "" {
		where += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if f.Priority != "" {
		where += ` AND priority = ?`
		args = append(args, string(f.Priority))
	}
	if f.RelatedID != "" {
		where += ` AND related_id = ?`
		args = append(args, f.RelatedID)
	}
	if f.RaisedBy != "" {
		where += ` AND raised_by = ?`
		args = append(args, f.RaisedBy)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM disputes`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	query := `SELECT record FROM disputes` + where + ` ORDER BY created DESC, seq DESC LIMIT ? OFFSET ?`
	args = append(args, limit, (page-1)*limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = rows.Close() }()

	var res []model.Dispute
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, 0, err
		}
		var d model.Dispute
		if err := json.Unmarshal([]byte(data), &d); err != nil {
			return nil, 0, fmt.Errorf("unmarshal dispute: %w", err)
		}
		res = append(res, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return res, total, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }
