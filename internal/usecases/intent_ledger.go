package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"vaultswap.backend/internal/domain/entities"
	domainerrors "vaultswap.backend/internal/domain/errors"
	"vaultswap.backend/internal/domain/repositories"
	"vaultswap.backend/pkg/utils"
)

// StuckPolicy is how long an intent may sit in one phase
type StuckPolicy struct {
	Validating time.Duration
	Other      time.Duration
}

// DefaultStuckPolicy is 2 minutes in validating, 10 minutes elsewhere
func DefaultStuckPolicy() StuckPolicy {
	return StuckPolicy{Validating: 2 * time.Minute, Other: 10 * time.Minute}
}

// IntentLedger owns intent creation and the forward-only status machine
type IntentLedger struct {
	repo   repositories.IntentRepository
	policy StuckPolicy
	now    func() time.Time
}

func NewIntentLedger(repo repositories.IntentRepository, policy StuckPolicy) *IntentLedger {
	def := DefaultStuckPolicy()
	if policy.Validating <= 0 {
		policy.Validating = def.Validating
	}
	if policy.Other <= 0 {
		policy.Other = def.Other
	}
	return &IntentLedger{repo: repo, policy: policy, now: time.Now}
}

// SetClock overrides the time source
func (l *IntentLedger) SetClock(now func() time.Time) {
	l.now = now
}

// CreateIntent opens an initiated intent for the quote. A live intent on
// the same quote yields ErrAlreadyInProgress.
func (l *IntentLedger) CreateIntent(ctx context.Context, input entities.CreateIntentInput) (*entities.Intent, error) {
	key := utils.NewScopedKey("swap", input.QuoteID.String())

	existing, err := l.repo.GetByIdempotencyKey(ctx, key)
	switch {
	case err == nil:
		return existing, nil
	case !errors.Is(err, domainerrors.ErrNotFound):
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrIntentCreationFailed, err)
	}

	now := l.now()
	intent := &entities.Intent{
		ID:                   utils.GenerateUUIDv7(),
		QuoteID:              input.QuoteID,
		IdempotencyKey:       key,
		UserID:               input.UserID,
		InputAsset:           input.InputAsset,
		OutputAsset:          input.OutputAsset,
		InputAmount:          input.InputAmount,
		ExpectedOutputAmount: input.ExpectedOutputAmount,
		Status:               entities.IntentStatusInitiated,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := l.repo.Create(ctx, intent); err != nil {
		if errors.Is(err, domainerrors.ErrAlreadyInProgress) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrIntentCreationFailed, err)
	}
	return intent, nil
}

// UpdateStatus moves the intent forward, stamping the phase timestamp and
// merging evidence. Terminal intents never move.
func (l *IntentLedger) UpdateStatus(ctx context.Context, intentID uuid.UUID, next entities.IntentStatus, evidence entities.IntentEvidence) (*entities.Intent, error) {
	current, err := l.repo.GetByID(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if current.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: %s is %s", domainerrors.ErrIntentTerminal, intentID, current.Status)
	}
	if !current.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", domainerrors.ErrInvalidTransition, current.Status, next)
	}

	from := current.Status
	updated := *current
	now := l.now()
	updated.Status = next
	updated.UpdatedAt = now
	stampPhase(&updated, next, now)
	applyEvidence(&updated, evidence)

	if err := l.repo.UpdateStatus(ctx, &updated, from); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Fail moves a non-terminal intent to failed with reason
func (l *IntentLedger) Fail(ctx context.Context, intentID uuid.UUID, reason string, evidence entities.IntentEvidence) (*entities.Intent, error) {
	evidence.ErrorDetail = reason
	return l.UpdateStatus(ctx, intentID, entities.IntentStatusFailed, evidence)
}

// FindActiveByQuote returns the live intent for the quote, or nil
func (l *IntentLedger) FindActiveByQuote(ctx context.Context, quoteID uuid.UUID) (*entities.Intent, error) {
	intent, err := l.repo.FindActiveByQuote(ctx, quoteID)
	if errors.Is(err, domainerrors.ErrNotFound) {
		return nil, nil
	}
	return intent, err
}

func (l *IntentLedger) HasCompletedForQuote(ctx context.Context, quoteID uuid.UUID) (bool, error) {
	return l.repo.HasCompletedForQuote(ctx, quoteID)
}

func (l *IntentLedger) GetByID(ctx context.Context, id uuid.UUID) (*entities.Intent, error) {
	return l.repo.GetByID(ctx, id)
}

// IsStuck reports whether a non-terminal intent has outlived its phase budget
func (l *IntentLedger) IsStuck(intent *entities.Intent, now time.Time) bool {
	if intent == nil || intent.Status.IsTerminal() {
		return false
	}
	limit := l.policy.Other
	if intent.Status == entities.IntentStatusValidating {
		limit = l.policy.Validating
	}
	return now.Sub(intent.PhaseStartedAt()) > limit
}

// FailStuck fails the intent, recording the phase and how long it sat there
func (l *IntentLedger) FailStuck(ctx context.Context, intent *entities.Intent, now time.Time) (*entities.Intent, error) {
	age := now.Sub(intent.PhaseStartedAt()).Round(time.Second)
	reason := fmt.Sprintf("stuck in %s for %s", intent.Status, age)
	return l.Fail(ctx, intent.ID, reason, entities.IntentEvidence{})
}

func stampPhase(intent *entities.Intent, status entities.IntentStatus, now time.Time) {
	ts := null.TimeFrom(now)
	switch status {
	case entities.IntentStatusValidating:
		intent.ValidatedAt = ts
	case entities.IntentStatusFundsPulled:
		intent.FundsPulledAt = ts
	case entities.IntentStatusSwapExecuted:
		intent.SwapExecutedAt = ts
	case entities.IntentStatusCompleted:
		intent.CompletedAt = ts
	case entities.IntentStatusFailed, entities.IntentStatusValidationFailed:
		intent.FailedAt = ts
	}
}

func applyEvidence(intent *entities.Intent, ev entities.IntentEvidence) {
	setIf := func(dst *null.String, v string) {
		if v != "" {
			*dst = null.StringFrom(v)
		}
	}
	setIf(&intent.ErrorDetail, ev.ErrorDetail)
	setIf(&intent.PullTxHash, ev.PullTxHash)
	setIf(&intent.SwapTxHash, ev.SwapTxHash)
	setIf(&intent.DisbursementTxHash, ev.DisbursementTxHash)
	setIf(&intent.RefundTxHash, ev.RefundTxHash)
	setIf(&intent.RouteProvider, ev.RouteProvider)
	setIf(&intent.TradeHash, ev.TradeHash)
	if len(ev.ValidationDetails) > 0 {
		merged := make(map[string]any, len(intent.ValidationDetails)+len(ev.ValidationDetails))
		for k, v := range intent.ValidationDetails {
			merged[k] = v
		}
		for k, v := range ev.ValidationDetails {
			merged[k] = v
		}
		intent.ValidationDetails = merged
	}
}
