package staging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ginasoft/BotGastos/pkg/api"
)

// ErrUnknownDecision is returned by ParseDecision for unrecognized input.
var ErrUnknownDecision = errors.New("unknown decision")

// Decision is the user's answer to a confirmation prompt.
type Decision int

// Possible decisions.
const (
	Confirm Decision = iota + 1
	Cancel
)

// Callback data carried by the prompt actions.
const (
	ConfirmData = "confirmar"
	CancelData  = "cancelar"
)

func (d Decision) String() string {
	switch d {
	case Confirm:
		return ConfirmData
	case Cancel:
		return CancelData
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// ParseDecision maps callback data or a typed answer to a Decision.
func ParseDecision(s string) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case ConfirmData, "confirm", "si", "sí", "s", "y", "yes":
		return Confirm, nil
	case CancelData, "cancel", "no", "n":
		return Cancel, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownDecision, s)
	}
}

// Outcome is the state a Resolve left the user in.
type Outcome int

// Possible outcomes.
const (
	// OutcomeNoPending means there was nothing to resolve.
	OutcomeNoPending Outcome = iota
	OutcomeCommitted
	OutcomeCancelled
	// OutcomeFailed means the ledger rejected the write and the transaction is still pending.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCommitted:
		return "committed"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeFailed:
		return "failed"
	default:
		return "no_pending"
	}
}

// Controller resolves staged transactions against a ledger.
type Controller struct {
	store  *Store
	ledger api.Ledger
	logger *slog.Logger
}

// NewController creates a controller writing confirmed transactions to ledger.
func NewController(store *Store, ledger api.Ledger, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		store:  store,
		ledger: ledger,
		logger: logger,
	}
}

// Resolve applies the user's decision to their pending transaction.
//
// On Confirm the summary row is appended, then the line items as one batch, and only
// then is the entry removed. A ledger failure is returned and the entry stays staged so
// the user can confirm again; a summary that was already appended is not appended twice.
// Resolving with nothing pending is a no-op.
func (c *Controller) Resolve(ctx context.Context, user api.UserID, d Decision) (Outcome, error) {
	switch d {
	case Confirm:
		return c.confirm(ctx, user)
	case Cancel:
		if !c.store.Discard(user) {
			c.logger.Debug("cancel with nothing pending", "user", user)
			return OutcomeNoPending, nil
		}
		c.logger.Info("transaction cancelled", "user", user)
		return OutcomeCancelled, nil
	default:
		return OutcomeNoPending, fmt.Errorf("%w: %v", ErrUnknownDecision, d)
	}
}

func (c *Controller) confirm(ctx context.Context, user api.UserID) (Outcome, error) {
	var committed api.PendingTransaction

	found, err := c.store.Commit(user, func(p *api.PendingTransaction) error {
		if !p.SummaryAppended {
			if err := c.ledger.AppendSummary(ctx, p.Record); err != nil {
				return fmt.Errorf("appending summary row: %w", err)
			}
			p.SummaryAppended = true
		}

		if len(p.Items) > 0 {
			if err := c.ledger.AppendDetails(ctx, p.Items); err != nil {
				return fmt.Errorf("appending detail rows: %w", err)
			}
		}

		committed = *p
		return nil
	})
	if err != nil {
		c.logger.Error("confirm failed, transaction kept pending", "user", user, "error", err)
		return OutcomeFailed, err
	}
	if !found {
		c.logger.Debug("confirm with nothing pending", "user", user)
		return OutcomeNoPending, nil
	}

	c.logger.Info("transaction committed",
		"user", user,
		"record_id", committed.Record.ID,
		"amount", committed.Record.Amount.Decimal.String(),
		"category", committed.Record.Category,
		"items", len(committed.Items),
	)
	return OutcomeCommitted, nil
}
