package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/maroof-I/modlek/internal/waf"
)

const undefinedTable = "42P01"

// Postgres stores audit buckets as hourly tables. The inspection layer's
// shipper owns the unclassified tables; this side owns the classified tables
// and the cursor row.
type Postgres struct {
	db      *sql.DB
	timeout time.Duration
	logger  *zap.Logger
}

func OpenPostgres(dsn string, timeout time.Duration, logger *zap.Logger) (*Postgres, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &TransientError{Op: "ping", Err: err}
	}

	return &Postgres{db: db, timeout: timeout, logger: logger}, nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

// EnsureSchema creates the cursor table. Bucket tables are created lazily on
// first write.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS pipeline_cursor (
			name    TEXT PRIMARY KEY,
			bucket  TEXT NOT NULL,
			last_id TEXT NOT NULL
		)`)
	if err != nil {
		return &TransientError{Op: "ensure schema", Err: err}
	}
	return nil
}

func (p *Postgres) FetchBucket(ctx context.Context, b Bucket, afterID string, limit int) ([]waf.AuditRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT id, ts, client_addr, http_method, request_path, request_query,
		       headers, user_agent, content_length, request_body, rules, anomaly_score
		FROM %s WHERE id > $1 ORDER BY id LIMIT $2`, pq.QuoteIdentifier(b.UnclassifiedTable()))

	rows, err := p.db.QueryContext(ctx, query, afterID, limit)
	if err != nil {
		if isUndefinedTable(err) {
			return nil, nil
		}
		return nil, &TransientError{Op: "fetch " + string(b), Err: err}
	}
	defer func() { _ = rows.Close() }()

	var out []waf.AuditRecord
	for rows.Next() {
		rec, err := scanAudit(rows)
		if err != nil {
			// A single undecodable row must not stall the bucket.
			p.logger.Warn("skipping undecodable audit row", zap.String("bucket", string(b)), zap.Error(err))
			continue
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &TransientError{Op: "fetch " + string(b), Err: err}
	}
	return out, nil
}

func (p *Postgres) WriteClassified(ctx context.Context, rec waf.AuditRecord, cls waf.Classification) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	b := BucketAt(rec.Timestamp)
	if err := p.ensureClassifiedTable(ctx, b); err != nil {
		return false, err
	}

	headers, err := json.Marshal(rec.Headers)
	if err != nil {
		return false, fmt.Errorf("marshal headers: %w", err)
	}
	rules, err := json.Marshal(rec.TriggeredRules)
	if err != nil {
		return false, fmt.Errorf("marshal rules: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (record_id, model_version, ts, client_addr, http_method,
			request_path, request_query, headers, user_agent, content_length,
			request_body, rules, anomaly_score, label, confidence, classified_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (record_id, model_version) DO NOTHING`, pq.QuoteIdentifier(b.ClassifiedTable()))

	res, err := p.db.ExecContext(ctx, query,
		rec.ID, cls.ModelVersion, rec.Timestamp.UTC(), rec.ClientAddr, rec.Method,
		rec.Path, rec.Query, headers, rec.UserAgent, rec.ContentLength,
		rec.BodyExcerpt, rules, rec.TotalAnomalyScore,
		string(cls.Label), cls.Confidence, cls.ClassifiedAt.UTC())
	if err != nil {
		return false, &TransientError{Op: "write classified", Err: err}
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, &TransientError{Op: "write classified", Err: err}
	}
	return n > 0, nil
}

func (p *Postgres) ScanClassified(ctx context.Context, buckets []Bucket, fn func(waf.AuditRecord, waf.Classification) error) error {
	for _, b := range buckets {
		if err := p.scanClassifiedBucket(ctx, b, fn); err != nil {
			return err
		}
	}
	return nil
}

func (p *Postgres) scanClassifiedBucket(ctx context.Context, b Bucket, fn func(waf.AuditRecord, waf.Classification) error) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT record_id, model_version, ts, client_addr, http_method, request_path,
		       request_query, headers, user_agent, content_length, request_body,
		       rules, anomaly_score, label, confidence, classified_at
		FROM %s ORDER BY record_id`, pq.QuoteIdentifier(b.ClassifiedTable()))

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		if isUndefinedTable(err) {
			return nil
		}
		return &TransientError{Op: "scan " + string(b), Err: err}
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			rec     waf.AuditRecord
			cls     waf.Classification
			headers []byte
			rules   []byte
			label   string
		)
		if err := rows.Scan(&rec.ID, &cls.ModelVersion, &rec.Timestamp, &rec.ClientAddr,
			&rec.Method, &rec.Path, &rec.Query, &headers, &rec.UserAgent,
			&rec.ContentLength, &rec.BodyExcerpt, &rules, &rec.TotalAnomalyScore,
			&label, &cls.Confidence, &cls.ClassifiedAt); err != nil {
			p.logger.Warn("skipping undecodable classified row", zap.String("bucket", string(b)), zap.Error(err))
			continue
		}
		_ = json.Unmarshal(headers, &rec.Headers)
		_ = json.Unmarshal(rules, &rec.TriggeredRules)
		cls.RecordID = rec.ID
		cls.Label = waf.Label(label)

		if err := fn(rec, cls); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return &TransientError{Op: "scan " + string(b), Err: err}
	}
	return nil
}

func (p *Postgres) LoadCursor(ctx context.Context) (Cursor, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var c Cursor
	row := p.db.QueryRowContext(ctx,
		`SELECT bucket, last_id FROM pipeline_cursor WHERE name = 'classifier'`)
	if err := row.Scan(&c.Bucket, &c.LastID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Cursor{}, nil
		}
		return Cursor{}, &TransientError{Op: "load cursor", Err: err}
	}
	return c, nil
}

func (p *Postgres) SaveCursor(ctx context.Context, c Cursor) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO pipeline_cursor (name, bucket, last_id)
		VALUES ('classifier', $1, $2)
		ON CONFLICT (name) DO UPDATE SET bucket = $1, last_id = $2`,
		string(c.Bucket), c.LastID)
	if err != nil {
		return &TransientError{Op: "save cursor", Err: err}
	}
	return nil
}

// InsertAudit writes an unclassified record, creating the bucket table when
// needed. Used by the demo generator; production records arrive through the
// log shipper.
func (p *Postgres) InsertAudit(ctx context.Context, rec waf.AuditRecord) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	b := BucketAt(rec.Timestamp)
	if err := p.ensureUnclassifiedTable(ctx, b); err != nil {
		return err
	}

	headers, err := json.Marshal(rec.Headers)
	if err != nil {
		return fmt.Errorf("marshal headers: %w", err)
	}
	rules, err := json.Marshal(rec.TriggeredRules)
	if err != nil {
		return fmt.Errorf("marshal rules: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, ts, client_addr, http_method, request_path, request_query,
			headers, user_agent, content_length, request_body, rules, anomaly_score)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (id) DO NOTHING`, pq.QuoteIdentifier(b.UnclassifiedTable()))

	_, err = p.db.ExecContext(ctx, query,
		rec.ID, rec.Timestamp.UTC(), rec.ClientAddr, rec.Method, rec.Path, rec.Query,
		headers, rec.UserAgent, rec.ContentLength, rec.BodyExcerpt, rules, rec.TotalAnomalyScore)
	if err != nil {
		return &TransientError{Op: "insert audit", Err: err}
	}
	return nil
}

func (p *Postgres) ensureClassifiedTable(ctx context.Context, b Bucket) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			record_id      TEXT NOT NULL,
			model_version  TEXT NOT NULL,
			ts             TIMESTAMPTZ NOT NULL,
			client_addr    TEXT NOT NULL DEFAULT '',
			http_method    TEXT NOT NULL DEFAULT '',
			request_path   TEXT NOT NULL DEFAULT '',
			request_query  TEXT NOT NULL DEFAULT '',
			headers        JSONB,
			user_agent     TEXT NOT NULL DEFAULT '',
			content_length BIGINT NOT NULL DEFAULT 0,
			request_body   TEXT NOT NULL DEFAULT '',
			rules          JSONB,
			anomaly_score  INTEGER NOT NULL DEFAULT 0,
			label          TEXT NOT NULL,
			confidence     DOUBLE PRECISION NOT NULL,
			classified_at  TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (record_id, model_version)
		)`, pq.QuoteIdentifier(b.ClassifiedTable()))

	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return &TransientError{Op: "ensure classified table", Err: err}
	}
	return nil
}

func (p *Postgres) ensureUnclassifiedTable(ctx context.Context, b Bucket) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id             TEXT PRIMARY KEY,
			ts             TIMESTAMPTZ NOT NULL,
			client_addr    TEXT NOT NULL DEFAULT '',
			http_method    TEXT NOT NULL DEFAULT '',
			request_path   TEXT NOT NULL DEFAULT '',
			request_query  TEXT NOT NULL DEFAULT '',
			headers        JSONB,
			user_agent     TEXT NOT NULL DEFAULT '',
			content_length BIGINT NOT NULL DEFAULT 0,
			request_body   TEXT NOT NULL DEFAULT '',
			rules          JSONB,
			anomaly_score  INTEGER NOT NULL DEFAULT 0
		)`, pq.QuoteIdentifier(b.UnclassifiedTable()))

	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return &TransientError{Op: "ensure unclassified table", Err: err}
	}
	return nil
}

func scanAudit(rows *sql.Rows) (waf.AuditRecord, error) {
	var (
		rec     waf.AuditRecord
		headers []byte
		rules   []byte
	)
	err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.ClientAddr, &rec.Method,
		&rec.Path, &rec.Query, &headers, &rec.UserAgent, &rec.ContentLength,
		&rec.BodyExcerpt, &rules, &rec.TotalAnomalyScore)
	if err != nil {
		return waf.AuditRecord{}, err
	}
	_ = json.Unmarshal(headers, &rec.Headers)
	_ = json.Unmarshal(rules, &rec.TriggeredRules)
	return rec, nil
}

func isUndefinedTable(err error) bool {
	var perr *pq.Error
	return errors.As(err, &perr) && string(perr.Code) == undefinedTable
}
