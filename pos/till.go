/*
till.go - Till Session Manager

PURPOSE:
  Owns the open/closed state machine of the cash register and the
  movement ledger writes that go with it.

CRITICAL INVARIANTS:
  1. SINGLE OPEN SESSION: at most one TillSession has IsOpen=true,
     system-wide. Re-checked inside the same transaction that inserts a
     new session, so concurrent opens cannot both succeed.
  2. ATOMIC UNITS: open = session insert + opening movement;
     close = closing movement + state flip; recordMovement = movement
     append + balance delta. Each commits or rolls back as one unit.
  3. LEDGER DERIVABILITY: after every committed unit, the session's
     current amount equals its initial amount plus the signed sum of
     movements recorded since open.

STATE MACHINE:
  Closed --Open--> Open --Close--> Closed. No nested opens. Closed
  sessions remain as rows; only the newest may be open.

SEE ALSO:
  - settlement.go: posts sale movements through this manager
  - store.go: the transactional scope every mutation runs in
*/
package pos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TillManager owns the till session lifecycle. Construct with
// NewTillManager; the zero value is not usable.
type TillManager struct {
	store TxStore
	log   *zap.Logger
	now   func() time.Time
}

// NewTillManager builds a manager around a transactional store.
// A nil logger disables logging.
func NewTillManager(store TxStore, log *zap.Logger) *TillManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &TillManager{
		store: store,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// =============================================================================
// OPEN / CLOSE
// =============================================================================

// Open starts a new till session with the given float. Fails with
// ErrAlreadyOpen if a session is already open. The session insert and
// the opening movement commit as one unit.
func (m *TillManager) Open(ctx context.Context, userID UserID, initialAmount Money) (*TillSession, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	if initialAmount.IsNegative() {
		return nil, &AmountError{Field: "initial_amount", Amount: initialAmount}
	}

	var session TillSession
	err := m.store.WithTx(ctx, func(s Store) error {
		current, err := s.CurrentSession(ctx)
		if err != nil {
			return err
		}
		if current != nil {
			return ErrAlreadyOpen
		}

		now := m.now()
		session = TillSession{
			ID:            SessionID(uuid.NewString()),
			IsOpen:        true,
			OpenedAt:      now,
			OpenedBy:      userID,
			InitialAmount: initialAmount,
			CurrentAmount: initialAmount,
		}
		if err := s.InsertSession(ctx, session); err != nil {
			return err
		}

		// The opening movement mirrors the initial float; it carries no
		// balance delta because the session starts at that amount.
		return s.AppendMovement(ctx, CashMovement{
			ID:          MovementID(uuid.NewString()),
			Type:        MovementOpening,
			Amount:      initialAmount,
			Description: "Till opened",
			UserID:      userID,
			CreatedAt:   now,
		})
	})
	if err != nil {
		return nil, storageErr("till open", err)
	}

	m.log.Info("till opened",
		zap.String("session_id", string(session.ID)),
		zap.String("user_id", string(userID)),
		zap.String("initial_amount", initialAmount.String()))
	return &session, nil
}

// Close ends the open session, recording a closing movement equal to
// the current amount at the moment of closing. Fails with ErrNotOpen if
// the till is closed. Atomic as a unit.
func (m *TillManager) Close(ctx context.Context, userID UserID) (*TillSession, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}

	var closed TillSession
	err := m.store.WithTx(ctx, func(s Store) error {
		current, err := s.CurrentSession(ctx)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrNotOpen
		}

		if err := s.AppendMovement(ctx, CashMovement{
			ID:          MovementID(uuid.NewString()),
			Type:        MovementClosing,
			Amount:      current.CurrentAmount,
			Description: "Till closed",
			UserID:      userID,
			CreatedAt:   m.now(),
		}); err != nil {
			return err
		}
		if err := s.CloseSession(ctx, current.ID); err != nil {
			return err
		}

		closed = *current
		closed.IsOpen = false
		return nil
	})
	if err != nil {
		return nil, storageErr("till close", err)
	}

	m.log.Info("till closed",
		zap.String("session_id", string(closed.ID)),
		zap.String("user_id", string(userID)),
		zap.String("closing_amount", closed.CurrentAmount.String()))
	return &closed, nil
}

// CurrentStatus returns the open session, or nil when the till is closed.
func (m *TillManager) CurrentStatus(ctx context.Context) (*TillSession, error) {
	session, err := m.store.CurrentSession(ctx)
	if err != nil {
		return nil, storageErr("till status", err)
	}
	return session, nil
}

// =============================================================================
// MOVEMENTS
// =============================================================================

// RecordMovement records a manual deposit, withdrawal or expense against
// the open session. Amount must be positive; validation happens before
// any write. The movement append and the balance delta are one unit.
func (m *TillManager) RecordMovement(ctx context.Context, typ MovementType, amount Money, description string, userID UserID, orderID OrderID) (*CashMovement, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	if !typ.Manual() {
		return nil, &AmountError{Field: "movement_type " + string(typ), Amount: amount}
	}
	if !amount.IsPositive() {
		return nil, &AmountError{Field: "movement_amount", Amount: amount}
	}

	movement := CashMovement{
		ID:          MovementID(uuid.NewString()),
		Type:        typ,
		Amount:      amount,
		Description: description,
		OrderID:     orderID,
		UserID:      userID,
		CreatedAt:   m.now(),
	}

	err := m.store.WithTx(ctx, func(s Store) error {
		current, err := s.CurrentSession(ctx)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrNotOpen
		}
		return m.postMovement(ctx, s, current.ID, movement)
	})
	if err != nil {
		return nil, storageErr("record movement", err)
	}

	m.log.Info("movement recorded",
		zap.String("movement_id", string(movement.ID)),
		zap.String("type", string(typ)),
		zap.String("amount", amount.String()))
	return &movement, nil
}

// postMovement appends a movement and applies its signed delta to the
// session balance. Must run inside an enclosing transaction scope; the
// settlement engine shares it for sale movements.
func (m *TillManager) postMovement(ctx context.Context, s Store, sessionID SessionID, movement CashMovement) error {
	if err := s.AppendMovement(ctx, movement); err != nil {
		return err
	}
	return s.ApplyBalanceDelta(ctx, sessionID, movement.Type.SignedDelta(movement.Amount))
}

// MovementsForDate returns the movements of one calendar day, newest
// first, each joined with the acting user's display name and, for sale
// movements, the originating order's table number. Read-only; the
// result is finite and a fresh call restarts the sequence.
func (m *TillManager) MovementsForDate(ctx context.Context, day time.Time) ([]MovementDetail, error) {
	details, err := m.store.MovementsForDate(ctx, day)
	if err != nil {
		return nil, storageErr("movements for date", err)
	}
	return details, nil
}
