// Package cookiestore persists session contexts between process runs. The
// engine itself never touches disk; a restored session must behave exactly
// like one built in-process, which the roundtrip test pins down.
package cookiestore

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"pubfisher/lib/session"

	_ "embed"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

type Store struct {
	db *sql.DB
}

// Open opens (and migrates) a cookie database. Plain paths open an embedded
// sqlite file; libsql:// URLs go to a remote database.
func Open(path string) (*Store, error) {
	driver := "sqlite"
	if strings.HasPrefix(path, "libsql://") {
		driver = "libsql"
	}
	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save replaces the stored state of profile with a snapshot of sess.
func (s *Store) Save(ctx context.Context, profile string, sess *session.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cookies WHERE profile = ?`, profile); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM headers WHERE profile = ?`, profile); err != nil {
		return err
	}

	for _, cookie := range sess.Cookies() {
		var expires int64
		if !cookie.Expires.IsZero() {
			expires = cookie.Expires.Unix()
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO cookies (profile, name, value, domain, path, expires)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			profile, cookie.Name, cookie.Value, cookie.Domain, cookie.Path, expires,
		)
		if err != nil {
			return err
		}
	}

	for name, value := range sess.Headers() {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO headers (profile, name, value) VALUES (?, ?, ?)`,
			profile, name, value,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Load rebuilds the session context stored under profile. A profile that
// was never saved comes back as a fresh anonymous session.
func (s *Store) Load(ctx context.Context, profile string) (*session.Context, error) {
	sess := session.NewContext()

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, value, domain, path, expires FROM cookies WHERE profile = ?`,
		profile,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cookies []*http.Cookie
	for rows.Next() {
		var cookie http.Cookie
		var expires int64
		if err := rows.Scan(&cookie.Name, &cookie.Value, &cookie.Domain, &cookie.Path, &expires); err != nil {
			return nil, err
		}
		if expires != 0 {
			cookie.Expires = time.Unix(expires, 0)
		}
		cookies = append(cookies, &cookie)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sess.AbsorbCookies(cookies)

	headerRows, err := s.db.QueryContext(ctx,
		`SELECT name, value FROM headers WHERE profile = ?`,
		profile,
	)
	if err != nil {
		return nil, err
	}
	defer headerRows.Close()

	for headerRows.Next() {
		var name, value string
		if err := headerRows.Scan(&name, &value); err != nil {
			return nil, err
		}
		sess.SetHeader(name, value)
	}
	return sess, headerRows.Err()
}
