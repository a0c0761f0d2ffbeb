package auth

import (
	"context"
	"encoding/json"
	"io/fs"
	"strings"

	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// QuestionSampleSize is how many questions a quiz draws per subject
const QuestionSampleSize = 10

// Questions is the question bank
type Questions interface {
	Sample(ctx context.Context, subject Subject, size int) ([]*Question, error)
	FindByIDs(ctx context.Context, subject Subject, ids []uuid.UUID) ([]*Question, error)
	Seed(ctx context.Context, records []*Question) (int64, error)
}

type questions struct {
	db *bun.DB
}

var _ Questions = (*questions)(nil)

// NewQuestionsRepository returns a bun backed question bank
func NewQuestionsRepository(db *bun.DB) Questions {
	return &questions{db: db}
}

func (q *questions) Sample(ctx context.Context, subject Subject, size int) ([]*Question, error) {
	if size <= 0 {
		size = QuestionSampleSize
	}
	records := []*Question{}
	err := q.db.NewSelect().
		Model(&records).
		Where("?TableAlias.subject = ?", subject).
		OrderExpr("RANDOM()").
		Limit(size).
		Scan(ctx)
	return records, err
}

func (q *questions) FindByIDs(ctx context.Context, subject Subject, ids []uuid.UUID) ([]*Question, error) {
	records := []*Question{}
	if len(ids) == 0 {
		return records, nil
	}
	err := q.db.NewSelect().
		Model(&records).
		Where("?TableAlias.subject = ?", subject).
		Where("?TableAlias.id IN (?)", bun.In(ids)).
		Scan(ctx)
	return records, err
}

// Seed inserts the questions, skipping ids already present
func (q *questions) Seed(ctx context.Context, records []*Question) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	res, err := q.db.NewInsert().
		Model(&records).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// QuestionID derives a stable id from the subject and the question text
func QuestionID(subject Subject, text string) (uuid.UUID, error) {
	return hashid.NewUUID(subject + ":" + strings.TrimSpace(text))
}

type questionFixture struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
}

// LoadQuestionFixtures reads one JSON array per subject from fsys,
// named <subject>.json
func LoadQuestionFixtures(fsys fs.FS) ([]*Question, error) {
	out := []*Question{}
	for _, subject := range []Subject{SubjectSecurity, SubjectDataAnalysis} {
		raw, err := fs.ReadFile(fsys, subject+".json")
		if err != nil {
			return nil, internalFault(err, "failed to read question fixtures")
		}

		fixtures := []questionFixture{}
		if err := json.Unmarshal(raw, &fixtures); err != nil {
			return nil, internalFault(err, "failed to decode question fixtures")
		}

		for _, f := range fixtures {
			id, err := QuestionID(subject, f.Question)
			if err != nil {
				return nil, internalFault(err, "failed to derive question id")
			}
			out = append(out, &Question{
				ID:      id,
				Subject: subject,
				Text:    f.Question,
				Options: f.Options,
				Answer:  f.Answer,
			})
		}
	}
	return out, nil
}
