package user

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"
)

// SQLiteStore is the persistent Store. UNIQUE indexes on username and email
// are the real uniqueness guarantee behind the directory's pre-checks;
// SQLite treats NULLs as distinct in unique indexes, so records without a
// username or email don't collide.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (and if needed initializes) the user database. If
// dbPath is empty or ":memory:", an in-memory database is used.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = ":memory:"
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if dbPath == ":memory:" {
		// Each connection gets its own :memory: database; pin the pool.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE,
		email TEXT UNIQUE,
		first_name TEXT,
		last_name TEXT,
		active INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const userColumns = `id, username, email, first_name, last_name, active, created_at, updated_at`

func (s *SQLiteStore) GetByID(ctx context.Context, id int64) (*User, error) {
	return s.queryOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (s *SQLiteStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	return s.queryOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

func (s *SQLiteStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.queryOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (s *SQLiteStore) ExistsByID(ctx context.Context, id int64) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM users WHERE id = ?`, id)
}

func (s *SQLiteStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM users WHERE username = ?`, username)
}

func (s *SQLiteStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM users WHERE email = ?`, email)
}

func (s *SQLiteStore) List(ctx context.Context, page, size int) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY id LIMIT ? OFFSET ?`, size, page*size)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Save(ctx context.Context, u *User) (*User, error) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	if u.ID == 0 {
		result, err := s.db.ExecContext(ctx,
			`INSERT INTO users (username, email, first_name, last_name, active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			nullString(u.Username), nullString(u.Email), nullString(u.FirstName),
			nullString(u.LastName), nullBool(u.Active), now.UnixMilli(), now.UnixMilli())
		if err != nil {
			return nil, translateConstraint(err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return nil, err
		}
		return s.GetByID(ctx, id)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET username = ?, email = ?, first_name = ?, last_name = ?, active = ?, updated_at = ?
		WHERE id = ?`,
		nullString(u.Username), nullString(u.Email), nullString(u.FirstName),
		nullString(u.LastName), nullBool(u.Active), now.UnixMilli(), u.ID)
	if err != nil {
		return nil, translateConstraint(err)
	}
	// The row can vanish between the caller's lookup and this write; zero
	// rows updated means the record is gone, not that the save succeeded.
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, ErrNotFound
	}
	return s.GetByID(ctx, u.ID)
}

func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	return err
}

func (s *SQLiteStore) queryOne(ctx context.Context, query string, arg any) (*User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *SQLiteStore) exists(ctx context.Context, query string, arg any) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var u User
	var username, email, firstName, lastName sql.NullString
	var active sql.NullBool
	var createdAt, updatedAt int64
	if err := row.Scan(&u.ID, &username, &email, &firstName, &lastName, &active, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	u.Username = fromNullString(username)
	u.Email = fromNullString(email)
	u.FirstName = fromNullString(firstName)
	u.LastName = fromNullString(lastName)
	if active.Valid {
		u.Active = &active.Bool
	}
	u.CreatedAt = time.UnixMilli(createdAt).UTC()
	u.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &u, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

func fromNullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// translateConstraint maps the driver's unique-constraint violation onto the
// conflict taxonomy. modernc surfaces SQLITE_CONSTRAINT_UNIQUE through its
// own error type, so matching the constraint text keeps this independent of
// driver internals.
func translateConstraint(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed: users.username"):
		return conflict("username already exists")
	case strings.Contains(msg, "UNIQUE constraint failed: users.email"):
		return conflict("email already exists")
	}
	return errors.Wrap(err, "user store")
}
