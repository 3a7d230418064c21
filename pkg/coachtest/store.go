package coachtest

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a unique constraint rejects an insert.
var ErrDuplicate = errors.New("already exists")

// Store keeps fixture users, profiles and plans in an in-memory database.
type Store struct {
	*sqlx.DB
}

// NewStore opens a private in-memory database and creates the schema.
func NewStore() (*Store, error) {
	db, err := sqlx.Connect("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to connect to in-memory database: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	store := &Store{DB: db}
	if err := store.InitSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// InitSchema initializes the database schema
func (s *Store) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		email_verified BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS user_profiles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER UNIQUE NOT NULL,
		age INTEGER,
		weight REAL,
		height REAL,
		experience_level TEXT,
		current_ftp INTEGER,
		max_hr INTEGER,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS training_plans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		goal TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'ACTIVE', -- ACTIVE, ARCHIVED
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_training_plans_user_status ON training_plans(user_id, status);
	`

	if _, err := s.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// CreateUser creates a new user
func (s *Store) CreateUser(user *User) error {
	query := `
		INSERT INTO users (email, password_hash, email_verified)
		VALUES (:email, :password_hash, :email_verified)
	`
	result, err := s.NamedExec(query, user)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get user ID: %w", err)
	}

	user.ID = id
	return nil
}

// GetUserByEmail gets a user by email
func (s *Store) GetUserByEmail(email string) (*User, error) {
	var user User
	err := s.Get(&user, "SELECT id, email, password_hash, email_verified FROM users WHERE email = ?", email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

// VerifyEmail marks a user's email as verified
func (s *Store) VerifyEmail(email string) error {
	result, err := s.Exec("UPDATE users SET email_verified = TRUE WHERE email = ?", email)
	if err != nil {
		return fmt.Errorf("failed to verify email: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertProfile creates or replaces a user's profile
func (s *Store) UpsertProfile(profile *Profile) error {
	query := `
		INSERT INTO user_profiles (user_id, age, weight, height, experience_level, current_ftp, max_hr)
		VALUES (:user_id, :age, :weight, :height, :experience_level, :current_ftp, :max_hr)
		ON CONFLICT(user_id) DO UPDATE SET
			age = excluded.age, weight = excluded.weight, height = excluded.height,
			experience_level = excluded.experience_level,
			current_ftp = excluded.current_ftp, max_hr = excluded.max_hr
	`
	if _, err := s.NamedExec(query, profile); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return s.Get(&profile.ID, "SELECT id FROM user_profiles WHERE user_id = ?", profile.UserID)
}

// GetProfile gets the profile of a user
func (s *Store) GetProfile(userID int64) (*Profile, error) {
	var profile Profile
	err := s.Get(&profile, `
		SELECT id, user_id, age, weight, height, experience_level, current_ftp, max_hr
		FROM user_profiles WHERE user_id = ?
	`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &profile, nil
}

// CreatePlan archives the user's active plan and stores a new one
func (s *Store) CreatePlan(plan *TrainingPlan) error {
	tx, err := s.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("UPDATE training_plans SET status = ? WHERE user_id = ? AND status = ?",
		PlanStatusArchived, plan.UserID, PlanStatusActive); err != nil {
		return fmt.Errorf("failed to archive previous plan: %w", err)
	}

	query := `
		INSERT INTO training_plans (user_id, start_date, end_date, goal, status)
		VALUES (:user_id, :start_date, :end_date, :goal, :status)
	`
	result, err := tx.NamedExec(query, plan)
	if err != nil {
		return fmt.Errorf("failed to create plan: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get plan ID: %w", err)
	}
	plan.ID = id

	return tx.Commit()
}

// CurrentPlan gets the user's active plan
func (s *Store) CurrentPlan(userID int64) (*TrainingPlan, error) {
	var plan TrainingPlan
	query := `
		SELECT id, user_id, start_date, end_date, goal, status
		FROM training_plans
		WHERE user_id = ? AND status = ?
		ORDER BY id DESC LIMIT 1
	`
	err := s.Get(&plan, query, userID, PlanStatusActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current plan: %w", err)
	}
	return &plan, nil
}

// newPlan builds a twelve-week plan starting today.
func newPlan(userID int64, goal string, now time.Time) *TrainingPlan {
	start := now.UTC().Truncate(24 * time.Hour)
	return &TrainingPlan{
		UserID:    userID,
		StartDate: start.Format(dateLayout),
		EndDate:   start.AddDate(0, 0, 12*7).Format(dateLayout),
		Goal:      goal,
		Status:    PlanStatusActive,
	}
}
