package auth

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ConsumeVerificationCodeSQL clears a still valid verification code in the
// same statement that checks it, so two concurrent submissions of the same
// code can not both succeed.
var ConsumeVerificationCodeSQL = `UPDATE "accounts" AS "acc"
SET
	"is_verified" = TRUE,
	"is_logged_in" = CASE WHEN ? THEN TRUE ELSE "acc"."is_logged_in" END,
	"verification_code" = NULL,
	"verification_code_expires_at" = NULL,
	"updated_at" = ?
WHERE
	"acc"."id" = ?
AND "acc"."verification_code" = ?
AND "acc"."verification_code_expires_at" > ?
RETURNING *;`

// ConsumeResetTokenSQL replaces the password hash and clears a still valid
// reset token in one statement. Completing a reset proves control of the
// email address and ends any logged in state.
var ConsumeResetTokenSQL = `UPDATE "accounts" AS "acc"
SET
	"password_hash" = ?,
	"is_verified" = TRUE,
	"is_logged_in" = FALSE,
	"reset_token" = NULL,
	"reset_token_expires_at" = NULL,
	"updated_at" = ?
WHERE
	"acc"."id" = ?
AND "acc"."reset_token" = ?
AND "acc"."reset_token_expires_at" > ?
RETURNING *;`

// IssueVerificationCodeSQL stores a fresh code, optionally stamping the login time
var IssueVerificationCodeSQL = `UPDATE "accounts" AS "acc"
SET
	"verification_code" = ?,
	"verification_code_expires_at" = ?,
	"last_login_at" = COALESCE(?, "acc"."last_login_at"),
	"updated_at" = ?
WHERE
	"acc"."id" = ?
RETURNING *;`

// IssueResetTokenSQL stores a fresh reset token
var IssueResetTokenSQL = `UPDATE "accounts" AS "acc"
SET
	"reset_token" = ?,
	"reset_token_expires_at" = ?,
	"updated_at" = ?
WHERE
	"acc"."id" = ?
RETURNING *;`

// SetLoggedInSQL flips the coarse login flag
var SetLoggedInSQL = `UPDATE "accounts" AS "acc"
SET
	"is_logged_in" = ?,
	"updated_at" = ?
WHERE
	"acc"."id" = ?
RETURNING *;`

// UpdateProfileSQL rewrites the profile fields of the account with the given email
var UpdateProfileSQL = `UPDATE "accounts" AS "acc"
SET
	"full_name" = ?,
	"date_of_birth" = ?,
	"national_id" = ?,
	"phone_number" = ?,
	"updated_at" = ?
WHERE
	"acc"."email" = ?
RETURNING *;`

// RecordScoreBySubjectSQL maps a subject to its score column
var RecordScoreBySubjectSQL = map[Subject]string{
	SubjectSecurity: `UPDATE "accounts" AS "acc"
SET "score1" = ?, "updated_at" = ?
WHERE "acc"."id" = ?
RETURNING *;`,
	SubjectDataAnalysis: `UPDATE "accounts" AS "acc"
SET "score2" = ?, "updated_at" = ?
WHERE "acc"."id" = ?
RETURNING *;`,
}

// Profile holds the editable profile fields of an account
type Profile struct {
	FullName    string
	DateOfBirth string
	NationalID  string
	Phone       string
}

// Accounts is the credential store
type Accounts interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error)

	CreateTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error)

	FindByVerificationCodeTx(ctx context.Context, tx bun.IDB, code, email string, now time.Time) (*Account, error)
	IssueVerificationCodeTx(ctx context.Context, tx bun.IDB, id uuid.UUID, code string, expiresAt time.Time, loginAt *time.Time) (*Account, error)
	ConsumeVerificationCodeTx(ctx context.Context, tx bun.IDB, id uuid.UUID, code string, now time.Time, login bool) (*Account, error)

	FindByResetTokenTx(ctx context.Context, tx bun.IDB, token string, now time.Time) (*Account, error)
	IssueResetTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string, expiresAt time.Time) (*Account, error)
	ConsumeResetTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token, passwordHash string, now time.Time) (*Account, error)

	SetLoggedInTx(ctx context.Context, tx bun.IDB, id uuid.UUID, loggedIn bool) (*Account, error)
	UpdateProfileTx(ctx context.Context, tx bun.IDB, email string, profile Profile) (*Account, error)
	RecordScoreTx(ctx context.Context, tx bun.IDB, id uuid.UUID, subject Subject, score int) (*Account, error)
}

type accounts struct {
	repo repository.Repository[*Account]
	db   *bun.DB
	now  func() time.Time
}

var _ Accounts = (*accounts)(nil)

// AccountsOption customizes the accounts repository
type AccountsOption func(*accounts)

// WithAccountsClock overrides the clock used for updated_at stamps
func WithAccountsClock(clock func() time.Time) AccountsOption {
	return func(a *accounts) {
		if clock != nil {
			a.now = clock
		}
	}
}

// NewAccountsRepository returns a bun backed credential store
func NewAccountsRepository(db *bun.DB, opts ...AccountsOption) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	a := &accounts{
		repo: repo,
		db:   db,
		now:  time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	return a
}

func (a *accounts) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return a.GetByIDTx(ctx, a.db, id)
}

func (a *accounts) GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"id": id.String()})
		}
		return nil, err
	}
	return record, nil
}

func (a *accounts) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *accounts) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{"email": email})
	}
	return a.repo.GetByIdentifierTx(ctx, tx, email)
}

func (a *accounts) CreateTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	now := a.timestamp()
	if record.CreatedAt == nil {
		record.CreatedAt = &now
	}
	record.UpdatedAt = &now

	created, err := a.repo.CreateTx(ctx, tx, record)
	if err != nil {
		return nil, err
	}
	if created == nil {
		return record, nil
	}
	return created, nil
}

func (a *accounts) FindByVerificationCodeTx(ctx context.Context, tx bun.IDB, code, email string, now time.Time) (*Account, error) {
	record := &Account{}
	q := tx.NewSelect().
		Model(record).
		Where("?TableAlias.verification_code = ?", code).
		Where("?TableAlias.verification_code_expires_at > ?", now.UTC())

	if email = strings.TrimSpace(email); email != "" {
		q = q.Where("?TableAlias.email = ?", email)
	}

	if err := q.Limit(1).Scan(ctx); err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound()
		}
		return nil, err
	}
	return record, nil
}

func (a *accounts) IssueVerificationCodeTx(ctx context.Context, tx bun.IDB, id uuid.UUID, code string, expiresAt time.Time, loginAt *time.Time) (*Account, error) {
	var stamp *time.Time
	if loginAt != nil {
		t := loginAt.UTC()
		stamp = &t
	}
	return a.updateOne(ctx, tx, IssueVerificationCodeSQL, id, code, expiresAt.UTC(), stamp, a.timestamp(), id)
}

func (a *accounts) ConsumeVerificationCodeTx(ctx context.Context, tx bun.IDB, id uuid.UUID, code string, now time.Time, login bool) (*Account, error) {
	return a.updateOne(ctx, tx, ConsumeVerificationCodeSQL, id, login, a.timestamp(), id, code, now.UTC())
}

func (a *accounts) FindByResetTokenTx(ctx context.Context, tx bun.IDB, token string, now time.Time) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.reset_token = ?", token).
		Where("?TableAlias.reset_token_expires_at > ?", now.UTC()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound()
		}
		return nil, err
	}
	return record, nil
}

func (a *accounts) IssueResetTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string, expiresAt time.Time) (*Account, error) {
	return a.updateOne(ctx, tx, IssueResetTokenSQL, id, token, expiresAt.UTC(), a.timestamp(), id)
}

func (a *accounts) ConsumeResetTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token, passwordHash string, now time.Time) (*Account, error) {
	return a.updateOne(ctx, tx, ConsumeResetTokenSQL, id, passwordHash, a.timestamp(), id, token, now.UTC())
}

func (a *accounts) SetLoggedInTx(ctx context.Context, tx bun.IDB, id uuid.UUID, loggedIn bool) (*Account, error) {
	return a.updateOne(ctx, tx, SetLoggedInSQL, id, loggedIn, a.timestamp(), id)
}

func (a *accounts) UpdateProfileTx(ctx context.Context, tx bun.IDB, email string, p Profile) (*Account, error) {
	records, err := a.repo.RawTx(ctx, tx, UpdateProfileSQL,
		p.FullName, p.DateOfBirth, p.NationalID, p.Phone, a.timestamp(), email)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{"email": email})
	}
	return records[0], nil
}

func (a *accounts) RecordScoreTx(ctx context.Context, tx bun.IDB, id uuid.UUID, subject Subject, score int) (*Account, error) {
	sql, ok := RecordScoreBySubjectSQL[subject]
	if !ok {
		return nil, ErrUnknownSubject
	}
	return a.updateOne(ctx, tx, sql, id, score, a.timestamp(), id)
}

// updateOne runs a conditional UPDATE ... RETURNING and reports a missing
// row as record not found
func (a *accounts) updateOne(ctx context.Context, tx bun.IDB, sql string, id uuid.UUID, args ...any) (*Account, error) {
	records, err := a.repo.RawTx(ctx, tx, sql, args...)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}
	return records[0], nil
}

func (a *accounts) timestamp() time.Time {
	return a.now().UTC()
}
