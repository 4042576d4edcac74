// Package users stores registered accounts in postgres. The server runs fine
// without it; when no database is configured the account endpoints stay off
// and every visitor plays under an anonymous identity.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound    = staticErr("user not found")
	ErrBadPassword = staticErr("password mismatch")
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewUser is the registration payload.
type NewUser struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate enforces the registration constraints: usernames at least five
// characters, a plausible email, passwords at least eight characters.
func (n NewUser) Validate() error {
	if len(strings.TrimSpace(n.Username)) < 5 {
		return staticErr("username must be at least 5 characters")
	}
	if !strings.Contains(n.Email, "@") {
		return staticErr("email is not valid")
	}
	if len(n.Password) < 8 {
		return staticErr("password must be at least 8 characters")
	}
	return nil
}

type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Create validates, hashes the password with bcrypt, and inserts the account.
func (r *Repository) Create(ctx context.Context, n NewUser) (*User, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(n.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u := User{Username: strings.TrimSpace(n.Username), Email: strings.TrimSpace(n.Email), PasswordHash: string(hash)}
	q := `INSERT INTO users (username, email, password_hash)
	      VALUES ($1, $2, $3)
	      RETURNING id, created_at, updated_at`
	err = r.db.QueryRowContext(ctx, q, u.Username, u.Email, u.PasswordHash).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return &u, nil
}

func (r *Repository) ByID(ctx context.Context, id uuid.UUID) (*User, error) {
	q := `SELECT id, username, email, password_hash, created_at, updated_at
	      FROM users WHERE id = $1`
	var u User
	err := r.db.QueryRowContext(ctx, q, id).
		Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repository) List(ctx context.Context) ([]User, error) {
	q := `SELECT id, username, email, password_hash, created_at, updated_at
	      FROM users ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Authenticate resolves a username to its account when the password matches.
func (r *Repository) Authenticate(ctx context.Context, username, password string) (*User, error) {
	q := `SELECT id, username, email, password_hash, created_at, updated_at
	      FROM users WHERE username = $1`
	var u User
	err := r.db.QueryRowContext(ctx, q, username).
		Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrBadPassword
	}
	return &u, nil
}

type staticErr string

func (e staticErr) Error() string { return string(e) }
