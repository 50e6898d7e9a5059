package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/lib/pq"
)

const (
	sentLogTable        = "sent_log"
	uniqueViolationCode = "23505"
)

// PostgresStore keeps the send log in the sent_log table. Transitions are
// single UPDATE statements, so no process-level lock is needed.
type PostgresStore struct {
	db      *sql.DB
	timeout time.Duration
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore opens and pings the database at dataSourceName.
func NewPostgresStore(dataSourceName string, timeout time.Duration) (*PostgresStore, error) {
	dataSourceName = strings.TrimSpace(dataSourceName)
	if dataSourceName == "" {
		return nil, errors.New("postgres store: empty database url")
	}
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}
	db, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Successfully connected to PostgreSQL database!")
	return &PostgresStore{db: db, timeout: timeout}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Load always reports found once the schema is migrated.
func (s *PostgresStore) Load(ctx context.Context) ([]SendRecord, bool, error) {
	records, err := s.query(ctx, "", nil)
	if err != nil {
		return nil, false, err
	}
	return records, true, nil
}

func (s *PostgresStore) Find(ctx context.Context, sel Selector) ([]SendRecord, error) {
	where, args := selectorClause(sel, 1)
	return s.query(ctx, " WHERE "+where, args)
}

func (s *PostgresStore) ApplyTransition(ctx context.Context, sel Selector, status Status) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	where, args := selectorClause(sel, 2)
	query := "UPDATE " + sentLogTable + " SET status = $1 WHERE " + where
	res, err := s.db.ExecContext(ctx, query, append([]interface{}{string(status)}, args...)...)
	if err != nil {
		return 0, fmt.Errorf("%w: update %s: %w", ErrStoreUnavailable, sentLogTable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: rows affected: %w", ErrStoreUnavailable, err)
	}
	return int(n), nil
}

func (s *PostgresStore) Append(ctx context.Context, rec SendRecord) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if rec.Status == "" {
		rec.Status = StatusNotViewed
	}
	attrs := rec.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	payload, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("encode attributes: %w", err)
	}
	var trackingID sql.NullString
	if rec.TrackingID != "" {
		trackingID = sql.NullString{String: rec.TrackingID, Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO "+sentLogTable+" (tracking_id, receiver_email, status, attributes) VALUES ($1, $2, $3, $4)",
		trackingID, rec.ReceiverEmail, string(rec.Status), string(payload),
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode {
		return fmt.Errorf("%w: %s", ErrDuplicateTrackingID, rec.TrackingID)
	}
	if err != nil {
		return fmt.Errorf("%w: insert %s: %w", ErrStoreUnavailable, sentLogTable, err)
	}
	return nil
}

func (s *PostgresStore) query(ctx context.Context, where string, args []interface{}) ([]SendRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		"SELECT tracking_id, receiver_email, status, attributes FROM "+sentLogTable+where+" ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %w", ErrStoreUnavailable, sentLogTable, err)
	}
	defer rows.Close()

	records := []SendRecord{}
	for rows.Next() {
		var (
			rec        SendRecord
			trackingID sql.NullString
			status     string
			attrs      []byte
		)
		if err := rows.Scan(&trackingID, &rec.ReceiverEmail, &status, &attrs); err != nil {
			return nil, fmt.Errorf("%w: scan %s row: %w", ErrStoreUnavailable, sentLogTable, err)
		}
		rec.TrackingID = trackingID.String
		rec.Status = Status(status)
		if len(attrs) > 0 {
			if err := json.Unmarshal(attrs, &rec.Attributes); err != nil {
				return nil, fmt.Errorf("%w: decode attributes: %w", ErrMalformedTable, err)
			}
			if len(rec.Attributes) == 0 {
				rec.Attributes = nil
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate %s: %w", ErrStoreUnavailable, sentLogTable, err)
	}
	return records, nil
}

// selectorClause renders sel as a WHERE condition whose placeholders start at $first.
func selectorClause(sel Selector, first int) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	if sel.TrackingID != "" {
		conds = append(conds, fmt.Sprintf("tracking_id = $%d", first))
		args = append(args, sel.TrackingID)
	} else {
		conds = append(conds, fmt.Sprintf("receiver_email = $%d", first))
		args = append(args, sel.ReceiverEmail)
	}
	if len(sel.From) > 0 {
		from := make([]string, len(sel.From))
		for i, st := range sel.From {
			from[i] = string(st)
		}
		conds = append(conds, fmt.Sprintf("status = ANY($%d)", first+len(args)))
		args = append(args, pq.Array(from))
	}
	return strings.Join(conds, " AND "), args
}
