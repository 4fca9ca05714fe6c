package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/jobtailor/jobtailor/internal/model"
)

// SQLiteStore persists job records in a SQLite database, keyed by the
// (job_url, company_name) natural key. The review dashboard reads the same
// file from another process, so every mutation here is a single statement
// or transaction.
type SQLiteStore struct {
	db *sql.DB
}

const createJobRecords = `CREATE TABLE IF NOT EXISTS job_records (
	job_url                        TEXT NOT NULL,
	company_name                   TEXT NOT NULL,
	job_title                      TEXT NOT NULL DEFAULT '',
	location                       TEXT NOT NULL DEFAULT '',
	location_priority              INTEGER NOT NULL DEFAULT 0,
	job_description                TEXT NOT NULL DEFAULT '',
	company_overview               TEXT NOT NULL DEFAULT '',
	co_fetch_attempted             INTEGER NOT NULL DEFAULT 0,
	jd_crawl_attempted             INTEGER NOT NULL DEFAULT 0,
	sustainable                    INTEGER,
	sustainability_keyword_matches TEXT NOT NULL DEFAULT '',
	fit_score                      TEXT NOT NULL DEFAULT '',
	fit_score_rank                 INTEGER NOT NULL DEFAULT 0,
	bulk_filtered                  INTEGER NOT NULL DEFAULT 0,
	job_analysis                   TEXT NOT NULL DEFAULT '',
	tailored_resume_ref            TEXT NOT NULL DEFAULT '',
	tailored_resume_payload        TEXT NOT NULL DEFAULT '',
	tailored_cover_letter          TEXT NOT NULL DEFAULT '',
	resume_feedback                TEXT NOT NULL DEFAULT '',
	resume_feedback_addressed      INTEGER NOT NULL DEFAULT 0,
	cl_feedback                    TEXT NOT NULL DEFAULT '',
	cl_feedback_addressed          INTEGER NOT NULL DEFAULT 0,
	applied                        INTEGER NOT NULL DEFAULT 0,
	bad_analysis                   INTEGER NOT NULL DEFAULT 0,
	expired                        INTEGER NOT NULL DEFAULT 0,
	last_expiration_check          DATETIME,
	sort_rank                      INTEGER NOT NULL DEFAULT 0,
	created_at                     DATETIME DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (job_url, company_name)
)`

// migrations are additive column changes applied to databases created by
// older versions. Each entry is (column name, ALTER statement).
var migrations = [][2]string{
	{"sustainability_keyword_matches", `ALTER TABLE job_records ADD COLUMN sustainability_keyword_matches TEXT NOT NULL DEFAULT ''`},
	{"jd_crawl_attempted", `ALTER TABLE job_records ADD COLUMN jd_crawl_attempted INTEGER NOT NULL DEFAULT 0`},
	{"last_expiration_check", `ALTER TABLE job_records ADD COLUMN last_expiration_check DATETIME`},
	{"sort_rank", `ALTER TABLE job_records ADD COLUMN sort_rank INTEGER NOT NULL DEFAULT 0`},
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, ensures
// the job_records table exists, and applies additive migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Verify the connection is alive.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	if _, err := db.Exec(createJobRecords); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating job_records table: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	rows, err := db.Query(`PRAGMA table_info(job_records)`)
	if err != nil {
		return fmt.Errorf("reading table info: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]bool)
	for rows.Next() {
		var (
			cid     int
			name    string
			colType string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return fmt.Errorf("scanning table info: %w", err)
		}
		existing[name] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading table info: %w", err)
	}

	for _, m := range migrations {
		if existing[m[0]] {
			continue
		}
		if _, err := db.Exec(m[1]); err != nil {
			return fmt.Errorf("adding column %s: %w", m[0], err)
		}
	}
	return nil
}

const recordColumns = `job_url, company_name, job_title, location, location_priority,
	job_description, company_overview, co_fetch_attempted, jd_crawl_attempted,
	sustainable, sustainability_keyword_matches, fit_score, fit_score_rank,
	bulk_filtered, job_analysis, tailored_resume_ref, tailored_resume_payload,
	tailored_cover_letter, resume_feedback, resume_feedback_addressed,
	cl_feedback, cl_feedback_addressed, applied, bad_analysis, expired,
	last_expiration_check`

// GetAll returns every record in on-disk order (sort_rank, then insertion).
func (s *SQLiteStore) GetAll(ctx context.Context) ([]model.JobRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM job_records ORDER BY sort_rank, rowid`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying job records: %w", err)
	}
	defer rows.Close()

	var records []model.JobRecord
	for rows.Next() {
		var (
			r           model.JobRecord
			sustainable sql.NullInt64
			fitScore    string
			lastCheck   sql.NullTime
		)
		if err := rows.Scan(
			&r.JobURL, &r.Company, &r.JobTitle, &r.Location, &r.LocationPriority,
			&r.JobDescription, &r.CompanyOverview, &r.COFetchAttempted, &r.JDCrawlAttempted,
			&sustainable, &r.SustainabilityKeywordMatches, &fitScore, &r.FitScoreRank,
			&r.BulkFiltered, &r.JobAnalysis, &r.TailoredResumeRef, &r.TailoredResumePayload,
			&r.TailoredCoverLetter, &r.ResumeFeedback, &r.ResumeFeedbackAddressed,
			&r.CLFeedback, &r.CLFeedbackAddressed, &r.Applied, &r.BadAnalysis, &r.Expired,
			&lastCheck,
		); err != nil {
			return nil, fmt.Errorf("scanning job record: %w", err)
		}
		r.FitScore = model.ParseFitScoreName(fitScore)
		r.Sustainable = sustainabilityFromColumn(sustainable)
		if lastCheck.Valid {
			t := lastCheck.Time
			r.LastExpirationCheck = &t
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading job records: %w", err)
	}
	return records, nil
}

// UpsertMany inserts records, ignoring natural-key duplicates, and returns
// the number actually inserted. All inserts share one transaction so a
// partially written batch is never visible.
func (s *SQLiteStore) UpsertMany(ctx context.Context, records []model.JobRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning insert transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO job_records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, r := range records {
		res, err := stmt.ExecContext(ctx,
			r.JobURL, r.Company, r.JobTitle, r.Location, r.LocationPriority,
			r.JobDescription, r.CompanyOverview, r.COFetchAttempted, r.JDCrawlAttempted,
			sustainabilityToColumn(r.Sustainable), r.SustainabilityKeywordMatches,
			r.FitScore.String(), r.FitScore.Rank(),
			r.BulkFiltered, r.JobAnalysis, r.TailoredResumeRef, r.TailoredResumePayload,
			r.TailoredCoverLetter, r.ResumeFeedback, r.ResumeFeedbackAddressed,
			r.CLFeedback, r.CLFeedbackAddressed, r.Applied, r.BadAnalysis, r.Expired,
			r.LastExpirationCheck,
		)
		if err != nil {
			return 0, fmt.Errorf("inserting record %s @ %s: %w", r.JobURL, r.Company, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("insert rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing inserts: %w", err)
	}
	return inserted, nil
}

// UpdateByKey writes the given fields for the record matching the natural
// key as one atomic statement. Writing fit_score also writes the derived
// fit_score_rank; callers cannot set the rank independently.
func (s *SQLiteStore) UpdateByKey(ctx context.Context, key model.RecordKey, fields model.Fields) (int64, error) {
	setClause, args, err := buildSet(fields)
	if err != nil {
		return 0, err
	}
	args = append(args, key.JobURL, key.Company)

	res, err := s.db.ExecContext(ctx,
		`UPDATE job_records SET `+setClause+` WHERE job_url = ? AND company_name = ?`, args...)
	if err != nil {
		return 0, fmt.Errorf("updating record %s @ %s: %w", key.JobURL, key.Company, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update rows affected: %w", err)
	}
	return n, nil
}

// BulkUpdateByKey applies every update inside a single transaction.
func (s *SQLiteStore) BulkUpdateByKey(ctx context.Context, updates []model.KeyedUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning update transaction: %w", err)
	}
	defer tx.Rollback()

	for _, u := range updates {
		setClause, args, err := buildSet(u.Fields)
		if err != nil {
			return err
		}
		args = append(args, u.Key.JobURL, u.Key.Company)
		if _, err := tx.ExecContext(ctx,
			`UPDATE job_records SET `+setClause+` WHERE job_url = ? AND company_name = ?`, args...); err != nil {
			return fmt.Errorf("updating record %s @ %s: %w", u.Key.JobURL, u.Key.Company, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing updates: %w", err)
	}
	return nil
}

// SortByPriority recomputes sort_rank so on-disk order is fit rank
// descending, then location priority ascending. One statement, so readers
// never see a half-sorted table.
func (s *SQLiteStore) SortByPriority(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `UPDATE job_records SET sort_rank = (
		SELECT rn FROM (
			SELECT rowid AS rid, ROW_NUMBER() OVER (
				ORDER BY fit_score_rank DESC, location_priority ASC, rowid ASC
			) AS rn FROM job_records
		) WHERE rid = job_records.rowid
	)`)
	if err != nil {
		return fmt.Errorf("sorting job records: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var allowedColumns = map[string]bool{
	model.FieldJobTitle:            true,
	model.FieldLocation:            true,
	model.FieldLocationPriority:    true,
	model.FieldJobDescription:      true,
	model.FieldCompanyOverview:     true,
	model.FieldCOFetchAttempted:    true,
	model.FieldJDCrawlAttempted:    true,
	model.FieldSustainable:         true,
	model.FieldSustainabilityMatch: true,
	model.FieldFitScore:            true,
	model.FieldBulkFiltered:        true,
	model.FieldJobAnalysis:         true,
	model.FieldTailoredResumeRef:   true,
	model.FieldTailoredResumeData:  true,
	model.FieldTailoredCoverLetter: true,
	model.FieldResumeFeedback:      true,
	model.FieldResumeFeedbackDone:  true,
	model.FieldCLFeedback:          true,
	model.FieldCLFeedbackDone:      true,
	model.FieldApplied:             true,
	model.FieldBadAnalysis:         true,
	model.FieldExpired:             true,
	model.FieldLastExpirationCheck: true,
}

// buildSet converts a Fields map into a SET clause and args, expanding
// typed values into their column representations. Column names iterate in a
// stable order so statements are reproducible.
func buildSet(fields model.Fields) (string, []any, error) {
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("no fields to update")
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		if !allowedColumns[name] {
			return "", nil, fmt.Errorf("unknown column %q", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		clauses []string
		args    []any
	)
	for _, name := range names {
		switch v := fields[name].(type) {
		case model.FitScore:
			if name != model.FieldFitScore {
				return "", nil, fmt.Errorf("fit score value for column %q", name)
			}
			clauses = append(clauses, "fit_score = ?", "fit_score_rank = ?")
			args = append(args, v.String(), v.Rank())
		case model.Sustainability:
			clauses = append(clauses, name+" = ?")
			args = append(args, sustainabilityToColumn(v))
		default:
			clauses = append(clauses, name+" = ?")
			args = append(args, v)
		}
	}
	return strings.Join(clauses, ", "), args, nil
}

func sustainabilityToColumn(s model.Sustainability) any {
	switch s {
	case model.Sustainable:
		return int64(1)
	case model.Unsustainable:
		return int64(0)
	default:
		return nil
	}
}

func sustainabilityFromColumn(v sql.NullInt64) model.Sustainability {
	if !v.Valid {
		return model.SustainabilityUnknown
	}
	if v.Int64 == 1 {
		return model.Sustainable
	}
	return model.Unsustainable
}

var _ model.RecordStore = (*SQLiteStore)(nil)
