package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobmate/jobfeed-service/internal/logger"
	"jobmate/jobfeed-service/internal/model"
)

// insertLockKey is the advisory lock taken by every InsertBatch transaction.
// Holding it for the whole batch keeps id order equal to commit order.
const insertLockKey int64 = 0x6a6f6266656564 // "jobfeed"

const schema = `
CREATE TABLE IF NOT EXISTS job_listings (
	id               BIGSERIAL PRIMARY KEY,
	identity_key     TEXT        NOT NULL UNIQUE,
	source           TEXT        NOT NULL,
	title            TEXT        NOT NULL DEFAULT 'N/A',
	company          TEXT        NOT NULL DEFAULT 'N/A',
	location         TEXT        NOT NULL DEFAULT 'N/A',
	job_url          TEXT        NOT NULL DEFAULT '',
	application_url  TEXT        NOT NULL DEFAULT '',
	job_site_id      TEXT        NOT NULL DEFAULT '',
	date_posted      DATE,
	scraped_at       TIMESTAMPTZ NOT NULL,
	job_type         TEXT        NOT NULL DEFAULT '',
	salary_text      TEXT        NOT NULL DEFAULT '',
	description_text TEXT        NOT NULL DEFAULT '',
	emails           TEXT[]      NOT NULL DEFAULT '{}',
	status           TEXT        NOT NULL DEFAULT 'new'
	                 CHECK (status IN ('new','viewed','applied','rejected','archived'))
);
CREATE INDEX IF NOT EXISTS job_listings_source_idx ON job_listings (source);
CREATE INDEX IF NOT EXISTS job_listings_status_idx ON job_listings (status);`

const listingColumns = `id, identity_key, source, title, company, location,
	job_url, application_url, job_site_id, date_posted, scraped_at,
	job_type, salary_text, description_text, emails, status`

// Postgres is a Store over a pgx connection pool.
type Postgres struct {
	pool    *pgxpool.Pool
	log     *logger.Logger
	timeout time.Duration
}

// NewPostgres wraps pool and creates the listing table when missing. Every
// operation is bounded by opTimeout so a stalled database surfaces as
// ErrUnavailable instead of a hang.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool, opTimeout time.Duration, log *logger.Logger) (*Postgres, error) {
	if log == nil {
		log = logger.Nop()
	}
	if opTimeout <= 0 {
		opTimeout = 10 * time.Second
	}
	p := &Postgres{pool: pool, log: log, timeout: opTimeout}

	ctx, cancel := p.opContext(ctx)
	defer cancel()
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, unavailable("migrate", err)
	}
	return p, nil
}

func (p *Postgres) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.timeout)
}

// InsertBatch implements Store.
func (p *Postgres) InsertBatch(ctx context.Context, listings []model.JobListing) ([]InsertResult, error) {
	if len(listings) == 0 {
		return nil, nil
	}
	ctx, cancel := p.opContext(ctx)
	defer cancel()

	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, unavailable("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, insertLockKey); err != nil {
		return nil, unavailable("lock", err)
	}

	results := make([]InsertResult, len(listings))
	for i, l := range listings {
		var id uint64
		err := tx.QueryRow(ctx,
			`SELECT id FROM job_listings WHERE identity_key = $1`, l.IdentityKey,
		).Scan(&id)
		switch {
		case err == nil:
			results[i] = InsertResult{NumericID: id}
			continue
		case !errors.Is(err, pgx.ErrNoRows):
			return nil, unavailable("lookup identity", err)
		}

		emails := l.Emails
		if emails == nil {
			emails = []string{}
		}
		err = tx.QueryRow(ctx,
			`INSERT INTO job_listings (identity_key, source, title, company, location,
			        job_url, application_url, job_site_id, date_posted, scraped_at,
			        job_type, salary_text, description_text, emails, status)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			 RETURNING id`,
			l.IdentityKey, l.Source, l.Title, l.Company, l.Location,
			l.JobURL, l.ApplicationURL, l.JobSiteID, l.DatePosted, l.ScrapedAt,
			l.JobType, l.SalaryText, l.DescriptionText, emails, string(l.Status),
		).Scan(&id)
		if err != nil {
			return nil, unavailable("insert listing", err)
		}
		results[i] = InsertResult{NumericID: id, Inserted: true}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, unavailable("commit", err)
	}
	return results, nil
}

// whereClause renders f as SQL with positional args.
func whereClause(f Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Title != "" {
		add("strpos(lower(title), lower($%d)) > 0", f.Title)
	}
	if f.Location != "" {
		add("strpos(lower(location), lower($%d)) > 0", f.Location)
	}
	if f.Source != "" {
		add("source = $%d", f.Source)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Query implements Reader.
func (p *Postgres) Query(ctx context.Context, f Filter, pg Pagination) ([]model.JobListing, error) {
	ctx, cancel := p.opContext(ctx)
	defer cancel()

	where, args := whereClause(f)
	sql := `SELECT ` + listingColumns + ` FROM job_listings` + where + ` ORDER BY id ASC`
	if pg.Limit > 0 {
		args = append(args, pg.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if pg.Offset > 0 {
		args = append(args, pg.Offset)
		sql += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, unavailable("query", err)
	}
	defer rows.Close()

	out := make([]model.JobListing, 0)
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, unavailable("scan", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("query rows", err)
	}
	return out, nil
}

// Count implements Reader.
func (p *Postgres) Count(ctx context.Context, f Filter) (int, error) {
	ctx, cancel := p.opContext(ctx)
	defer cancel()

	where, args := whereClause(f)
	var n int
	if err := p.pool.QueryRow(ctx, `SELECT count(*) FROM job_listings`+where, args...).Scan(&n); err != nil {
		return 0, unavailable("count", err)
	}
	return n, nil
}

// Get implements Reader.
func (p *Postgres) Get(ctx context.Context, id uint64) (model.JobListing, error) {
	ctx, cancel := p.opContext(ctx)
	defer cancel()

	row := p.pool.QueryRow(ctx, `SELECT `+listingColumns+` FROM job_listings WHERE id = $1`, id)
	l, err := scanListing(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.JobListing{}, ErrNotFound
		}
		return model.JobListing{}, unavailable("get", err)
	}
	return l, nil
}

// UpdateStatus implements Store.
func (p *Postgres) UpdateStatus(ctx context.Context, id uint64, status model.Status) (model.JobListing, error) {
	ctx, cancel := p.opContext(ctx)
	defer cancel()

	row := p.pool.QueryRow(ctx,
		`UPDATE job_listings SET status = $1 WHERE id = $2 RETURNING `+listingColumns,
		string(status), id,
	)
	l, err := scanListing(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.JobListing{}, ErrNotFound
		}
		return model.JobListing{}, unavailable("update status", err)
	}
	return l, nil
}

// Close is a no-op: the pool belongs to the caller.
func (p *Postgres) Close() error { return nil }

func scanListing(row pgx.Row) (model.JobListing, error) {
	var (
		l      model.JobListing
		status string
	)
	err := row.Scan(
		&l.NumericID, &l.IdentityKey, &l.Source, &l.Title, &l.Company, &l.Location,
		&l.JobURL, &l.ApplicationURL, &l.JobSiteID, &l.DatePosted, &l.ScrapedAt,
		&l.JobType, &l.SalaryText, &l.DescriptionText, &l.Emails, &status,
	)
	if err != nil {
		return model.JobListing{}, err
	}
	l.Status = model.Status(status)
	return l, nil
}
