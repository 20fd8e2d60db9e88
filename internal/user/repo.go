package user

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repo handles database operations for users.
type Repo struct {
	db *sql.DB
}

// NewRepo creates a new user repository.
func NewRepo(db *sql.DB) *Repo {
	return &Repo{db: db}
}

// Create inserts a new user with a hashed password.
func (r *Repo) Create(username, password string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("create user: username and password are required")
	}
	if r.Exists(username) {
		return nil, ErrUsernameTaken
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	result, err := r.db.Exec(`
		INSERT INTO users (username, password_hash, created_at)
		VALUES (?, ?, ?)
	`, username, hash, time.Now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("create user %s: %w", username, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get user id: %w", err)
	}

	return r.GetByID(int(id))
}

// Authenticate checks username/password and returns the user if valid.
func (r *Repo) Authenticate(username, password string) (*User, error) {
	u, err := r.GetByUsername(username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !CheckPassword(password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// GetByID retrieves a user by ID.
func (r *Repo) GetByID(id int) (*User, error) {
	return r.scanOne(`
		SELECT id, username, password_hash, created_at FROM users WHERE id = ?
	`, id)
}

// GetByUsername retrieves a user by exact username.
func (r *Repo) GetByUsername(username string) (*User, error) {
	return r.scanOne(`
		SELECT id, username, password_hash, created_at FROM users WHERE username = ?
	`, username)
}

func (r *Repo) scanOne(query string, arg any) (*User, error) {
	u := &User{}
	var created int64
	err := r.db.QueryRow(query, arg).Scan(&u.ID, &u.Username, &u.PasswordHash, &created)
	if err != nil {
		return nil, fmt.Errorf("get user %v: %w", arg, err)
	}
	u.CreatedAt = time.UnixMilli(created)
	return u, nil
}

// Exists checks if a username is already taken.
func (r *Repo) Exists(username string) bool {
	var count int
	r.db.QueryRow("SELECT COUNT(*) FROM users WHERE username = ?", username).Scan(&count)
	return count > 0
}

// Resolve maps usernames to users. The second return lists the names
// that matched no account, in input order.
func (r *Repo) Resolve(usernames []string) ([]*User, []string, error) {
	var found []*User
	var missing []string
	seen := make(map[string]bool, len(usernames))

	for _, name := range usernames {
		if seen[name] {
			continue
		}
		seen[name] = true

		u, err := r.GetByUsername(name)
		if errors.Is(err, sql.ErrNoRows) {
			missing = append(missing, name)
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		found = append(found, u)
	}
	return found, missing, nil
}

// List returns all users, ordered by username.
func (r *Repo) List() ([]*User, error) {
	rows, err := r.db.Query(`SELECT id, username, created_at FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u := &User{}
		var created int64
		if err := rows.Scan(&u.ID, &u.Username, &created); err != nil {
			return nil, err
		}
		u.CreatedAt = time.UnixMilli(created)
		users = append(users, u)
	}
	return users, rows.Err()
}
