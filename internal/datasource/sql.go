package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/riskboard/pkg/model"
)

// SQLStore persists risks in SQLite or PostgreSQL. It implements Querier,
// Mutator and BatchReorderer and is safe for concurrent use.
type SQLStore struct {
	db     *sql.DB
	driver string
	logger *slog.Logger
	now    func() time.Time
}

// OpenSQL connects to dsn with the given driver and applies migrations. For
// SQLite the dsn is a file path.
func OpenSQL(ctx context.Context, driver, dsn string, logger *slog.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case DriverSQLite:
		db, err = sql.Open("sqlite", sqliteDSN(dsn))
		if err == nil {
			// Writes serialise on the file lock anyway; one connection keeps
			// transactions from tripping SQLITE_BUSY.
			db.SetMaxOpenConns(1)
		}
	case DriverPostgres:
		db, err = sql.Open("postgres", dsn)
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cannot connect to database: %w", err)
	}
	if err := Migrate(ctx, db, driver); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Debug("datasource opened", "driver", driver)
	return &SQLStore{db: db, driver: driver, logger: logger, now: time.Now}, nil
}

func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") || path == ":memory:" {
		return path
	}
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite"
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Driver returns the driver name.
func (s *SQLStore) Driver() string {
	return s.driver
}

// rebind rewrites '?' placeholders to '$n' for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

const riskColumns = `id, title, description, category, probability, impact,
	risk_level, status, priority_order, created_at, updated_at`

// Query implements Querier.
func (s *SQLStore) Query(ctx context.Context, f model.Filter) ([]model.Risk, error) {
	var (
		where []string
		args  []any
	)
	if f.Search != "" {
		pattern := likePattern(f.Search)
		where = append(where, `(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	if f.Status != "" {
		where = append(where, "LOWER(status) = ?")
		args = append(args, strings.ToLower(f.Status))
	}
	if f.Level != "" {
		where = append(where, "LOWER(risk_level) = ?")
		args = append(args, strings.ToLower(f.Level))
	}
	if f.Category != "" {
		where = append(where, `LOWER(category) LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(f.Category))
	}

	query := "SELECT " + riskColumns + " FROM risks"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("querying risks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var risks []model.Risk
	for rows.Next() {
		r, err := scanRisk(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning risk: %w", err)
		}
		risks = append(risks, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating risks: %w", err)
	}
	return risks, nil
}

// Get returns the risk with the given id.
func (s *SQLStore) Get(ctx context.Context, id string) (model.Risk, error) {
	row := s.db.QueryRowContext(ctx, s.rebind("SELECT "+riskColumns+" FROM risks WHERE id = ?"), id)
	r, err := scanRisk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Risk{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Risk{}, fmt.Errorf("loading risk %s: %w", id, err)
	}
	return r, nil
}

// Create inserts a risk. Zero timestamps are set to now.
func (s *SQLStore) Create(ctx context.Context, r model.Risk) error {
	r = withCreateDefaults(r, s.now().UTC())
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO risks (`+riskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`),
		r.ID, r.Title, r.Description, r.Category,
		nullInt(r.Probability), nullInt(r.Impact),
		string(r.Level), string(r.Status), nullInt(r.PriorityOrder),
		r.CreatedAt.UTC(), r.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create risk %s: %w", r.ID, err)
	}
	return nil
}

// UpdateRisk implements Mutator.
func (s *SQLStore) UpdateRisk(ctx context.Context, id string, patch model.Patch) error {
	sets := []string{"updated_at = ?"}
	args := []any{s.now().UTC()}
	if patch.SetProbability {
		sets = append(sets, "probability = ?")
		args = append(args, nullInt(patch.Probability))
	}
	if patch.SetImpact {
		sets = append(sets, "impact = ?")
		args = append(args, nullInt(patch.Impact))
	}
	if patch.SetPriorityOrder {
		sets = append(sets, "priority_order = ?")
		args = append(args, nullInt(patch.PriorityOrder))
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, s.rebind("UPDATE risks SET "+strings.Join(sets, ", ")+" WHERE id = ?"), args...)
	if err != nil {
		return fmt.Errorf("failed to update risk %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	s.logger.Debug("risk updated", "id", id)
	return nil
}

// BulkReorder implements BatchReorderer in a single transaction. Any unknown
// id rolls the whole batch back.
func (s *SQLStore) BulkReorder(ctx context.Context, updates []model.OrderUpdate) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reorder: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, s.rebind("UPDATE risks SET priority_order = ?, updated_at = ? WHERE id = ?"))
	if err != nil {
		return fmt.Errorf("failed to prepare reorder: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := s.now().UTC()
	for _, u := range updates {
		res, err := stmt.ExecContext(ctx, u.PriorityOrder, now, u.ID)
		if err != nil {
			return fmt.Errorf("failed to reorder %s: %w", u.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("%s: %w", u.ID, ErrNotFound)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reorder: %w", err)
	}
	s.logger.Debug("bulk reorder committed", "rows", len(updates))
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRisk(row scanner) (model.Risk, error) {
	var (
		r                     model.Risk
		level, status         string
		prob, impact, order   sql.NullInt64
		createdAt, updatedAt  sql.NullTime
		description, category sql.NullString
	)
	err := row.Scan(
		&r.ID, &r.Title, &description, &category, &prob, &impact,
		&level, &status, &order, &createdAt, &updatedAt,
	)
	if err != nil {
		return r, err
	}
	r.Description = description.String
	r.Category = category.String
	r.Level = model.Level(level)
	r.Status = model.Status(status)
	r.Probability = fromNullInt(prob)
	r.Impact = fromNullInt(impact)
	r.PriorityOrder = fromNullInt(order)
	if createdAt.Valid {
		r.CreatedAt = createdAt.Time.UTC()
	}
	if updatedAt.Valid {
		r.UpdatedAt = updatedAt.Time.UTC()
	}
	return r, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func fromNullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	return model.IntPtr(int(v.Int64))
}

// likePattern lowercases s, escapes LIKE wildcards and wraps it in '%'.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(s)) + "%"
}
