// Package roster reads session enrollment lists from the school
// information system's MySQL database. Read-only: attendance never writes
// back into the SIS.
package roster

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Person is one enrolled individual as known to the SIS.
type Person struct {
	ID   string
	Name string
}

// MySQL reads enrollments directly from the SIS database.
type MySQL struct {
	db *sql.DB
}

// Connect opens a read-only connection to the SIS database.
func Connect(dsn string) (*MySQL, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open roster database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping roster database: %w", err)
	}
	return &MySQL{db: db}, nil
}

// Close closes the underlying connection pool.
func (r *MySQL) Close() error {
	return r.db.Close()
}

// ListEnrolled returns the person IDs enrolled for a session.
func (r *MySQL) ListEnrolled(ctx context.Context, sessionID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT person_id FROM enrollments WHERE session_id = ? ORDER BY person_id", sessionID)
	if err != nil {
		return nil, fmt.Errorf("query enrollments: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enrollments: %w", err)
	}
	return ids, nil
}

// FindPersonByName looks up a person by display name, normalized on both
// sides so import files with slugged names still resolve.
func (r *MySQL) FindPersonByName(ctx context.Context, name string) (*Person, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT person_id, full_name FROM persons")
	if err != nil {
		return nil, fmt.Errorf("query persons: %w", err)
	}
	defer rows.Close()

	wanted := NormalizePersonName(name)
	for rows.Next() {
		var p Person
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		if NormalizePersonName(p.Name) == wanted {
			return &p, nil
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate persons: %w", err)
	}
	return nil, nil
}
