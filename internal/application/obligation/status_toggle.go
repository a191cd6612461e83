package obligation

import (
	"context"
	"fmt"

	"github.com/agency/backend/internal/domain/finance"
	"github.com/agency/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StatusToggleCoordinator keeps a commission and its payable in matching
// states: payable confirmed ⇔ commission paid
type StatusToggleCoordinator struct {
	uow      finance.UnitOfWork
	settings Settings
	logger   *zap.Logger
}

// NewStatusToggleCoordinator creates a new StatusToggleCoordinator
func NewStatusToggleCoordinator(uow finance.UnitOfWork, settings Settings, logger *zap.Logger) *StatusToggleCoordinator {
	return &StatusToggleCoordinator{
		uow:      uow,
		settings: settings.withDefaults(),
		logger:   logger,
	}
}

// ToggleTransactionStatus moves a transaction to newStatus. A commission
// payable drags its commission along; cancelling one is refused.
func (s *StatusToggleCoordinator) ToggleTransactionStatus(ctx context.Context, id uuid.UUID, newStatus finance.TransactionStatus) (*finance.FinancialTransaction, error) {
	if !newStatus.IsValid() {
		return nil, shared.NewValidationError(fmt.Sprintf("Invalid transaction status: %q", newStatus))
	}

	var result *finance.FinancialTransaction
	err := s.uow.Atomic(ctx, func(ctx context.Context, tx finance.Store) error {
		t, err := tx.Transactions().FindByID(ctx, id)
		if err != nil {
			return storeErr("find transaction", err)
		}
		if t.IsCommissionOwned() && newStatus == finance.TransactionStatusCancelled {
			return shared.NewInvalidStateError("Commission payables follow their commission and cannot be cancelled")
		}
		previous := *t
		now := s.settings.now()
		if err := t.ChangeStatus(newStatus, now); err != nil {
			return err
		}
		if err := tx.Transactions().Save(ctx, t); err != nil {
			return storeErr("save transaction", err)
		}
		result = t
		if !t.IsCommissionOwned() {
			return nil
		}

		commission, err := tx.Commissions().FindByID(ctx, *t.LinkedCommissionID)
		if isNotFound(err) {
			s.logger.Warn("payable points to a missing commission",
				zap.String("transaction_id", t.ID.String()),
				zap.String("commission_id", t.LinkedCommissionID.String()),
			)
			return nil
		}
		if err == nil {
			if newStatus == finance.TransactionStatusConfirmed {
				commission.MarkPaid(now)
			} else {
				commission.MarkPending()
			}
			err = tx.Commissions().Save(ctx, commission)
		}
		if err != nil {
			s.restoreTransaction(ctx, tx, &previous)
			return storeErr("update commission", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("transaction status toggle failed",
			zap.String("transaction_id", id.String()),
			zap.String("new_status", string(newStatus)),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("transaction status changed",
		zap.String("transaction_id", id.String()),
		zap.String("new_status", string(newStatus)),
	)
	return result, nil
}

// MarkCommissionPaid marks a commission paid and confirms its payable,
// creating the payable if it is missing
func (s *StatusToggleCoordinator) MarkCommissionPaid(ctx context.Context, commissionID uuid.UUID) (*finance.Commission, error) {
	return s.setCommissionPaid(ctx, commissionID, true)
}

// MarkCommissionPending reverts a paid commission and reopens its payable
func (s *StatusToggleCoordinator) MarkCommissionPending(ctx context.Context, commissionID uuid.UUID) (*finance.Commission, error) {
	return s.setCommissionPaid(ctx, commissionID, false)
}

func (s *StatusToggleCoordinator) setCommissionPaid(ctx context.Context, commissionID uuid.UUID, paid bool) (*finance.Commission, error) {
	var result *finance.Commission
	err := s.uow.Atomic(ctx, func(ctx context.Context, tx finance.Store) error {
		c, err := tx.Commissions().FindByID(ctx, commissionID)
		if err != nil {
			return storeErr("find commission", err)
		}
		previous := *c
		now := s.settings.now()
		if paid {
			c.MarkPaid(now)
		} else {
			c.MarkPending()
		}
		if err := tx.Commissions().Save(ctx, c); err != nil {
			return storeErr("save commission", err)
		}
		result = c

		if err := s.mirrorPayable(ctx, tx, c, paid); err != nil {
			s.restoreCommission(ctx, tx, &previous)
			return err
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("commission status change failed",
			zap.String("commission_id", commissionID.String()),
			zap.Bool("paid", paid),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("commission status changed",
		zap.String("commission_id", commissionID.String()),
		zap.String("status", string(result.Status)),
	)
	return result, nil
}

func (s *StatusToggleCoordinator) mirrorPayable(ctx context.Context, tx finance.Store, c *finance.Commission, paid bool) error {
	payable, err := tx.Transactions().FindByCommission(ctx, c.ID)
	if isNotFound(err) {
		if !paid {
			return nil
		}
		owner, due, description, err := payableTermsFrom(ctx, tx, c)
		if err != nil {
			return err
		}
		payable, err = finance.NewCommissionPayable(c, owner, due, description)
		if err != nil {
			return err
		}
		if err := tx.Transactions().Create(ctx, payable); err != nil {
			return storeErr("create commission payable", err)
		}
		return nil
	}
	if err != nil {
		return storeErr("find commission payable", err)
	}

	target := finance.TransactionStatusPending
	if paid {
		target = finance.TransactionStatusConfirmed
	}
	if err := payable.ChangeStatus(target, s.settings.now()); err != nil {
		return err
	}
	if err := tx.Transactions().Save(ctx, payable); err != nil {
		return storeErr("save commission payable", err)
	}
	return nil
}

// restoreTransaction and restoreCommission undo the primary write when the
// secondary one fails, for stores whose units are not fully transactional
func (s *StatusToggleCoordinator) restoreTransaction(ctx context.Context, tx finance.Store, previous *finance.FinancialTransaction) {
	if err := tx.Transactions().Save(ctx, previous); err != nil {
		s.logger.Error("failed to restore transaction after paired update failure",
			zap.String("transaction_id", previous.ID.String()),
			zap.Error(err),
		)
	}
}

func (s *StatusToggleCoordinator) restoreCommission(ctx context.Context, tx finance.Store, previous *finance.Commission) {
	if err := tx.Commissions().Save(ctx, previous); err != nil {
		s.logger.Error("failed to restore commission after paired update failure",
			zap.String("commission_id", previous.ID.String()),
			zap.Error(err),
		)
	}
}
