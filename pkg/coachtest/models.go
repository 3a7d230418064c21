package coachtest

import "database/sql"

const dateLayout = "2006-01-02"

const (
	PlanStatusActive   = "ACTIVE"
	PlanStatusArchived = "ARCHIVED"

	// DefaultGoal is used when plan generation is called without a goal.
	DefaultGoal = "General Fitness"
)

// User represents a registered account
type User struct {
	ID            int64  `db:"id" json:"id"`
	Email         string `db:"email" json:"email"`
	PasswordHash  string `db:"password_hash" json:"-"`
	EmailVerified bool   `db:"email_verified" json:"emailVerified"`
}

// Profile represents a rider profile
type Profile struct {
	ID              int64           `db:"id" json:"id"`
	UserID          int64           `db:"user_id" json:"userId"`
	Age             sql.NullInt64   `db:"age" json:"-"`
	Weight          sql.NullFloat64 `db:"weight" json:"-"`
	Height          sql.NullFloat64 `db:"height" json:"-"`
	ExperienceLevel sql.NullString  `db:"experience_level" json:"-"`
	CurrentFTP      sql.NullInt64   `db:"current_ftp" json:"-"`
	MaxHR           sql.NullInt64   `db:"max_hr" json:"-"`
}

// ProfileResponse is the wire shape of GET /api/v1/user/profile
type ProfileResponse struct {
	ID              int64    `json:"id"`
	UserID          int64    `json:"userId"`
	Age             *int64   `json:"age"`
	Weight          *float64 `json:"weight"`
	Height          *float64 `json:"height"`
	ExperienceLevel *string  `json:"experienceLevel"`
	CurrentFTP      *int64   `json:"currentFtp"`
	MaxHR           *int64   `json:"maxHr"`
}

// Response converts the stored row to its wire shape.
func (p *Profile) Response() ProfileResponse {
	r := ProfileResponse{ID: p.ID, UserID: p.UserID}
	if p.Age.Valid {
		r.Age = &p.Age.Int64
	}
	if p.Weight.Valid {
		r.Weight = &p.Weight.Float64
	}
	if p.Height.Valid {
		r.Height = &p.Height.Float64
	}
	if p.ExperienceLevel.Valid {
		r.ExperienceLevel = &p.ExperienceLevel.String
	}
	if p.CurrentFTP.Valid {
		r.CurrentFTP = &p.CurrentFTP.Int64
	}
	if p.MaxHR.Valid {
		r.MaxHR = &p.MaxHR.Int64
	}
	return r
}

// TrainingPlan represents a generated plan
type TrainingPlan struct {
	ID        int64  `db:"id" json:"id"`
	UserID    int64  `db:"user_id" json:"userId"`
	StartDate string `db:"start_date" json:"startDate"`
	EndDate   string `db:"end_date" json:"endDate"`
	Goal      string `db:"goal" json:"goal"`
	Status    string `db:"status" json:"status"`
}

// credentialsRequest is the register and login body
type credentialsRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// loginResponse is the wire shape of a successful login
type loginResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// errorResponse is the error envelope the coach API returns
type errorResponse struct {
	Status    int    `json:"status"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Path      string `json:"path"`
	Timestamp string `json:"timestamp"`
}
