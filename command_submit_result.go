package auth

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SubmitResultMessage carries the answers of one quiz, keyed by question id
type SubmitResultMessage struct {
	AccountID  uuid.UUID
	Subject    Subject
	Answers    map[string]string
	OnResponse func(resp *SubmitResultResponse)
}

func (e SubmitResultMessage) Type() string { return "quiz.result.submit" }

type SubmitResultResponse struct {
	Score int `json:"score"`
	Total int `json:"total"`
}

// SubmitResultHandler scores a quiz and stores the score in the slot of
// its subject, overwriting the previous one
type SubmitResultHandler struct {
	deps FlowDependencies
}

func NewSubmitResultHandler(deps FlowDependencies) *SubmitResultHandler {
	return &SubmitResultHandler{deps: deps.withDefaults()}
}

func (h *SubmitResultHandler) Execute(ctx context.Context, event SubmitResultMessage) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx.Err(), "quiz scoring")
	default:
		return h.execute(ctx, event)
	}
}

func (h *SubmitResultHandler) execute(ctx context.Context, event SubmitResultMessage) error {
	ctx, cancel := context.WithTimeout(ctx, flowTimeout)
	defer cancel()

	if !IsKnownSubject(event.Subject) {
		return ErrUnknownSubject
	}

	ids := make([]uuid.UUID, 0, len(event.Answers))
	keys := make(map[uuid.UUID]string, len(event.Answers))
	for key := range event.Answers {
		id, err := uuid.Parse(key)
		if err != nil {
			// unknown ids can not score
			continue
		}
		if _, seen := keys[id]; seen {
			continue
		}
		keys[id] = key
		ids = append(ids, id)
	}

	questions, err := h.deps.Repo.Questions().FindByIDs(ctx, event.Subject, ids)
	if err != nil {
		return internalFault(err, "failed to load questions")
	}

	resp := &SubmitResultResponse{Total: len(questions)}
	for _, q := range questions {
		if event.Answers[keys[q.ID]] == q.Answer {
			resp.Score++
		}
	}

	var account *Account
	err = h.deps.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account, err = h.deps.Repo.Accounts().RecordScoreTx(ctx, tx, event.AccountID, event.Subject, resp.Score)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrAccountMissing
			}
			return asRichError(err, "failed to store score")
		}
		return nil
	})
	if err != nil {
		return asRichError(err, "quiz scoring failed")
	}

	recordActivity(ctx, h.deps.Activity, h.deps.Logger, ActivityEvent{
		EventType: ActivityEventQuizScored,
		Actor:     accountActor(account),
		AccountID: account.ID.String(),
		Metadata: map[string]any{
			"subject": event.Subject,
			"score":   resp.Score,
			"total":   resp.Total,
		},
	})

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
