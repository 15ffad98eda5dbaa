package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/lib/pq"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// pgTx implements Tx on top of a queryer. With inTx set, reads take row
// locks and order inserts run under a savepoint.
type pgTx struct {
	q    queryer
	inTx bool
}

func (t *pgTx) forUpdate(query, clause string) string {
	if t.inTx {
		return query + " " + clause
	}
	return query
}

// PostgresStore is a Store backed by Postgres. Concurrency control is left
// entirely to row locks taken inside transactions.
type PostgresStore struct {
	pgTx
	DB *sql.DB
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewPostgresStoreFromDB(db), nil
}

func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{pgTx: pgTx{q: db}, DB: db}
}

func (s *PostgresStore) Close() error { return s.DB.Close() }

// Migrate executes the schema script.
func (s *PostgresStore) Migrate(ctx context.Context, script string) error {
	_, err := s.DB.ExecContext(ctx, script)
	return err
}

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	// ensure rollback on any early return or panic
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(ctx, &pgTx{q: tx, inTx: true}); err != nil {
		return classify(err)
	}
	if err := tx.Commit(); err != nil {
		return classify(err)
	}
	committed = true
	return nil
}

// IsUnavailable reports whether err means the database itself could not be
// reached, as opposed to a statement failing.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	// deadlines satisfy net.Error; a timed-out transaction is a conflict
	if errors.Is(err, ErrConflict) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrUnavailable) || errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "53", "57":
			return pqErr.Code != "57014"
		}
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func rowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
