package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Sessions stores the records backing issued session tokens
type Sessions interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Session, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Session) (*Session, error)
	RevokeTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) error
	RevokeAllTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, at time.Time) (int64, error)
}

type sessions struct {
	repo repository.Repository[*Session]
	db   *bun.DB
}

var _ Sessions = (*sessions)(nil)

// NewSessionsRepository returns a bun backed session store
func NewSessionsRepository(db *bun.DB) Sessions {
	repo := repository.NewRepository[*Session](db, repository.ModelHandlers[*Session]{
		NewRecord: func() *Session { return &Session{} },
		GetID: func(s *Session) uuid.UUID {
			if s == nil {
				return uuid.Nil
			}
			return s.ID
		},
		SetID: func(s *Session, id uuid.UUID) {
			if s != nil {
				s.ID = id
			}
		},
		GetIdentifier: func() string {
			return "id"
		},
	})

	return &sessions{repo: repo, db: db}
}

func (s *sessions) GetByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	return s.repo.GetByID(ctx, id.String())
}

func (s *sessions) CreateTx(ctx context.Context, tx bun.IDB, record *Session) (*Session, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.IssuedAt = record.IssuedAt.UTC()
	record.ExpiresAt = record.ExpiresAt.UTC()

	created, err := s.repo.CreateTx(ctx, tx, record)
	if err != nil {
		return nil, err
	}
	if created == nil {
		return record, nil
	}
	return created, nil
}

func (s *sessions) RevokeTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) error {
	_, err := tx.NewUpdate().
		Model((*Session)(nil)).
		Set("revoked_at = ?", at.UTC()).
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.revoked_at IS NULL").
		Exec(ctx)
	return err
}

func (s *sessions) RevokeAllTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, at time.Time) (int64, error) {
	res, err := tx.NewUpdate().
		Model((*Session)(nil)).
		Set("revoked_at = ?", at.UTC()).
		Where("?TableAlias.account_id = ?", accountID).
		Where("?TableAlias.revoked_at IS NULL").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
