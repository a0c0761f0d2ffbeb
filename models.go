package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Account is the persisted record of a registered user
type Account struct {
	bun.BaseModel             `bun:"table:accounts,alias:acc"`
	ID                        uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"_id"`
	Email                     string     `bun:"email,notnull,unique" json:"email"`
	PasswordHash              string     `bun:"password_hash,notnull" json:"-"`
	FullName                  string     `bun:"full_name,notnull" json:"fullname"`
	DateOfBirth               string     `bun:"date_of_birth,notnull" json:"DayOfBirth"`
	Phone                     string     `bun:"phone_number,notnull" json:"phonenumber"`
	NationalID                string     `bun:"national_id,notnull" json:"cccd"`
	IsVerified                bool       `bun:"is_verified,notnull" json:"isVerified"`
	VerificationCode          *string    `bun:"verification_code" json:"verificationToken,omitempty"`
	VerificationCodeExpiresAt *time.Time `bun:"verification_code_expires_at" json:"verificationTokenExpiresAt,omitempty"`
	IsLoggedIn                bool       `bun:"is_logged_in,notnull" json:"isLoggedIn"`
	ResetToken                *string    `bun:"reset_token" json:"-"`
	ResetTokenExpiresAt       *time.Time `bun:"reset_token_expires_at" json:"-"`
	Score1                    int        `bun:"score1,notnull" json:"score1"`
	Score2                    int        `bun:"score2,notnull" json:"score2"`
	LastLoginAt               *time.Time `bun:"last_login_at" json:"lastLogin,omitempty"`
	CreatedAt                 *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"createdAt,omitempty"`
	UpdatedAt                 *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updatedAt,omitempty"`
}

// HasPendingVerification reports whether a verification code is still usable at now
func (a *Account) HasPendingVerification(now time.Time) bool {
	return a != nil && a.VerificationCode != nil &&
		a.VerificationCodeExpiresAt != nil && a.VerificationCodeExpiresAt.After(now)
}

// HasPendingReset reports whether a reset token is still usable at now
func (a *Account) HasPendingReset(now time.Time) bool {
	return a != nil && a.ResetToken != nil &&
		a.ResetTokenExpiresAt != nil && a.ResetTokenExpiresAt.After(now)
}

// Session backs a single issued session token
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:ses"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id"`
	AccountID     uuid.UUID  `bun:"account_id,notnull,type:uuid" json:"account_id"`
	IssuedAt      time.Time  `bun:"issued_at,notnull" json:"issued_at"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at"`
	RevokedAt     *time.Time `bun:"revoked_at" json:"revoked_at,omitempty"`
}

// Active reports whether the session can still authenticate requests at now
func (s *Session) Active(now time.Time) bool {
	return s != nil && s.RevokedAt == nil && s.ExpiresAt.After(now)
}

// Subject identifies one question bank
type Subject = string

const (
	// SubjectSecurity is the information security question bank
	SubjectSecurity Subject = "bmtt"
	// SubjectDataAnalysis is the data analysis question bank
	SubjectDataAnalysis Subject = "ptdl"
)

// IsKnownSubject reports whether s names a question bank
func IsKnownSubject(s string) bool {
	return s == SubjectSecurity || s == SubjectDataAnalysis
}

// Question is a single multiple choice question
type Question struct {
	bun.BaseModel `bun:"table:questions,alias:qst"`
	ID            uuid.UUID `bun:"id,pk,type:uuid" json:"_id"`
	Subject       Subject   `bun:"subject,notnull" json:"subject"`
	Text          string    `bun:"text,notnull" json:"question"`
	Options       []string  `bun:"options,type:jsonb,notnull" json:"options"`
	Answer        string    `bun:"answer,notnull" json:"-"`
}

// UserInfo is the profile shape returned by the account API
type UserInfo struct {
	Name   string `json:"name"`
	DOB    string `json:"dob"`
	Email  string `json:"email"`
	CCCD   string `json:"cccd"`
	Phone  string `json:"phone"`
	Score1 int    `json:"score1"`
	Score2 int    `json:"score2"`
}

// NewUserInfo projects an account into its public profile
func NewUserInfo(a *Account) UserInfo {
	return UserInfo{
		Name:   a.FullName,
		DOB:    a.DateOfBirth,
		Email:  a.Email,
		CCCD:   a.NationalID,
		Phone:  a.Phone,
		Score1: a.Score1,
		Score2: a.Score2,
	}
}
