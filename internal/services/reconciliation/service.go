// Package reconciliation links bank transactions to planned transactions and
// maintains the per-plan reconciliation workspace.
package reconciliation

import (
	"context"
	"errors"
	"fmt"

	"statement-reconciliation-backend/internal/apperror"
	"statement-reconciliation-backend/internal/logger"
	"statement-reconciliation-backend/internal/models"
	"statement-reconciliation-backend/internal/repository"

	"github.com/google/uuid"
)

type PlanStore interface {
	PlanByID(ctx context.Context, id uuid.UUID) (*models.Plan, error)
	PlannedTransactions(ctx context.Context, planID uuid.UUID) ([]models.PlannedTransaction, error)
	PlannedTransactionByID(ctx context.Context, id uuid.UUID) (*models.PlannedTransaction, error)
}

type Store interface {
	LinkStore
	ForPlan(ctx context.Context, planID uuid.UUID) ([]models.TransactionReconciliation, error)
	DeleteForPlan(ctx context.Context, planID, id uuid.UUID) (*models.TransactionReconciliation, error)
	BankTransactionByID(ctx context.Context, id uuid.UUID) (*models.BankTransaction, error)
	AssignPlan(ctx context.Context, id uuid.UUID, planID *uuid.UUID, assignment string) (*models.BankTransaction, error)
	PlanBankTransactions(ctx context.Context, planID uuid.UUID) ([]models.BankTransaction, error)
	UnmatchedForPlan(ctx context.Context, planID uuid.UUID) ([]models.BankTransaction, error)
	CreateDismissal(ctx context.Context, d *models.Dismissal) error
	DismissalByBankTransaction(ctx context.Context, bankTxID uuid.UUID) (*models.Dismissal, error)
	DismissalsForPlan(ctx context.Context, planID uuid.UUID) ([]models.Dismissal, error)
	DeleteDismissal(ctx context.Context, planID, id uuid.UUID) (*models.Dismissal, error)
	AppendAudit(ctx context.Context, entry *models.MatchAuditLog) error
}

type Transactor interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Learner is told about every manual link that was created.
type Learner interface {
	LearnFromManual(ctx context.Context, planID, bankTxID, plannedTxID uuid.UUID) (*models.MatchRule, error)
}

type ReconciliationService struct {
	plans   PlanStore
	store   Store
	tx      Transactor
	guard   *Guard
	learner Learner
}

func NewReconciliationService(plans PlanStore, store Store, tx Transactor, guard *Guard, learner Learner) *ReconciliationService {
	return &ReconciliationService{plans: plans, store: store, tx: tx, guard: guard, learner: learner}
}

func (s *ReconciliationService) Guard() *Guard { return s.guard }

// Plan returns the plan or a not-found error.
func (s *ReconciliationService) Plan(ctx context.Context, planID uuid.UUID) (*models.Plan, error) {
	plan, err := s.plans.PlanByID(ctx, planID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound("Plan nicht gefunden")
	}
	if err != nil {
		return nil, apperror.Internal("load plan", err)
	}
	return plan, nil
}

// WritablePlan additionally rejects archived plans.
func (s *ReconciliationService) WritablePlan(ctx context.Context, planID uuid.UUID) (*models.Plan, error) {
	plan, err := s.Plan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.IsArchived {
		return nil, apperror.Policy("Plan ist archiviert - keine Änderungen möglich")
	}
	return plan, nil
}

func (s *ReconciliationService) bankTxInPlan(ctx context.Context, planID, id uuid.UUID) (*models.BankTransaction, error) {
	tx, err := s.store.BankTransactionByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && (tx.PlanID == nil || *tx.PlanID != planID)) {
		return nil, apperror.NotFound("Banktransaktion nicht gefunden")
	}
	if err != nil {
		return nil, apperror.Internal("load bank transaction", err)
	}
	return tx, nil
}

func (s *ReconciliationService) plannedTxInPlan(ctx context.Context, planID, id uuid.UUID) (*models.PlannedTransaction, error) {
	item, err := s.plans.PlannedTransactionByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && item.PlanID != planID) {
		return nil, apperror.NotFound("Geplante Transaktion nicht gefunden")
	}
	if err != nil {
		return nil, apperror.Internal("load planned transaction", err)
	}
	return item, nil
}

// ManualMatch links two entities of the same writable plan.
func (s *ReconciliationService) ManualMatch(ctx context.Context, planID, bankTxID, plannedTxID uuid.UUID, userID *string) (Result, error) {
	if _, err := s.WritablePlan(ctx, planID); err != nil {
		return Result{}, err
	}
	if _, err := s.bankTxInPlan(ctx, planID, bankTxID); err != nil {
		return Result{}, err
	}
	if _, err := s.plannedTxInPlan(ctx, planID, plannedTxID); err != nil {
		return Result{}, err
	}
	return s.link(ctx, planID, bankTxID, plannedTxID, userID)
}

// Reconcile links a bank transaction to any planned transaction without a plan scope.
func (s *ReconciliationService) Reconcile(ctx context.Context, bankTxID, plannedTxID uuid.UUID, userID *string) (Result, error) {
	if _, err := s.store.BankTransactionByID(ctx, bankTxID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Result{}, apperror.NotFound("Banktransaktion nicht gefunden")
		}
		return Result{}, apperror.Internal("load bank transaction", err)
	}
	planned, err := s.plans.PlannedTransactionByID(ctx, plannedTxID)
	if errors.Is(err, repository.ErrNotFound) {
		return Result{}, apperror.NotFound("Geplante Transaktion nicht gefunden")
	}
	if err != nil {
		return Result{}, apperror.Internal("load planned transaction", err)
	}
	if _, err := s.WritablePlan(ctx, planned.PlanID); err != nil {
		return Result{}, err
	}
	return s.link(ctx, planned.PlanID, bankTxID, plannedTxID, userID)
}

func (s *ReconciliationService) link(ctx context.Context, planID, bankTxID, plannedTxID uuid.UUID, userID *string) (Result, error) {
	res, err := s.guard.Create(ctx, Link{
		BankTransactionID:    bankTxID,
		PlannedTransactionID: plannedTxID,
		MatchType:            models.MatchTypeManual,
		MatchedBy:            userID,
	})
	if err != nil {
		return Result{}, apperror.Internal("create reconciliation", err)
	}
	if res.Status != StatusCreated {
		logger.L.Info("reconciliation conflict", "status", res.Status, "bank_transaction_id", bankTxID,
			"planned_transaction_id", plannedTxID, "existing_id", res.Reconciliation.ID)
		return res, nil
	}

	s.audit(ctx, &models.MatchAuditLog{
		PlanID:            &planID,
		BankTransactionID: bankTxID,
		Action:            models.AuditActionManualMatch,
		NewPlanned:        &plannedTxID,
		PerformedBy:       actor(userID),
	})

	// the link stands even when learning fails
	if _, err := s.learner.LearnFromManual(ctx, planID, bankTxID, plannedTxID); err != nil {
		logger.L.Error("learning from manual match failed", "plan_id", planID, "bank_transaction_id", bankTxID, "error", err)
	}
	return res, nil
}

// AssignPlan moves a bank transaction into planID by hand. The manual
// assignment survives later re-imports. A nil planID removes the assignment.
func (s *ReconciliationService) AssignPlan(ctx context.Context, bankTxID uuid.UUID, planID *uuid.UUID, userID *string) (*models.BankTransaction, error) {
	if _, err := s.store.BankTransactionByID(ctx, bankTxID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound("Banktransaktion nicht gefunden")
		}
		return nil, apperror.Internal("load bank transaction", err)
	}

	assignment := models.AssignmentNone
	if planID != nil {
		plan, err := s.plans.PlanByID(ctx, *planID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound("Zielplan nicht gefunden")
		}
		if err != nil {
			return nil, apperror.Internal("load plan", err)
		}
		if plan.IsArchived {
			return nil, apperror.Validation("Banktransaktionen können nicht einem archivierten Plan zugeordnet werden.")
		}
		assignment = models.AssignmentManual
	}

	tx, err := s.store.AssignPlan(ctx, bankTxID, planID, assignment)
	if err != nil {
		return nil, apperror.Internal("assign plan", err)
	}
	logger.L.Info("bank transaction plan assigned", "bank_transaction_id", bankTxID,
		"plan_id", planID, "assignment", assignment, "user_id", actor(userID))
	return tx, nil
}

// Unmatch deletes a link whose planned transaction belongs to planID.
func (s *ReconciliationService) Unmatch(ctx context.Context, planID, reconciliationID uuid.UUID, userID *string) error {
	if _, err := s.WritablePlan(ctx, planID); err != nil {
		return err
	}
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		rec, err := s.store.DeleteForPlan(ctx, planID, reconciliationID)
		if err != nil {
			return err
		}
		return s.store.AppendAudit(ctx, &models.MatchAuditLog{
			PlanID:            &planID,
			BankTransactionID: rec.BankTransactionID,
			Action:            models.AuditActionUnmatch,
			PreviousPlanned:   &rec.PlannedTransactionID,
			PerformedBy:       actor(userID),
		})
	})
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound("Zuordnung nicht gefunden")
	}
	if err != nil {
		return apperror.Internal("remove reconciliation", err)
	}
	return nil
}

// Dismiss marks a plan transaction as not belonging to the budget.
func (s *ReconciliationService) Dismiss(ctx context.Context, planID, bankTxID uuid.UUID, reason, userID *string) (*models.Dismissal, error) {
	if _, err := s.WritablePlan(ctx, planID); err != nil {
		return nil, err
	}
	if _, err := s.bankTxInPlan(ctx, planID, bankTxID); err != nil {
		return nil, err
	}

	_, err := s.store.DismissalByBankTransaction(ctx, bankTxID)
	if err == nil {
		return nil, apperror.Conflict("Diese Transaktion wurde bereits verworfen.")
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.Internal("load dismissal", err)
	}

	d := &models.Dismissal{
		PlanID:            planID,
		BankTransactionID: bankTxID,
		Reason:            reason,
		DismissedByUserID: userID,
	}
	if err := s.store.CreateDismissal(ctx, d); err != nil {
		if repository.IsUniqueViolation(err, "") {
			return nil, apperror.Conflict("Diese Transaktion wurde bereits verworfen.")
		}
		return nil, apperror.Internal("create dismissal", err)
	}

	entry := &models.MatchAuditLog{
		PlanID:            &planID,
		BankTransactionID: bankTxID,
		Action:            models.AuditActionDismiss,
		PerformedBy:       actor(userID),
	}
	if reason != nil {
		entry.Reason = *reason
	}
	s.audit(ctx, entry)
	return d, nil
}

func (s *ReconciliationService) Undismiss(ctx context.Context, planID, dismissalID uuid.UUID, userID *string) error {
	if _, err := s.WritablePlan(ctx, planID); err != nil {
		return err
	}
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		d, err := s.store.DeleteDismissal(ctx, planID, dismissalID)
		if err != nil {
			return err
		}
		return s.store.AppendAudit(ctx, &models.MatchAuditLog{
			PlanID:            &planID,
			BankTransactionID: d.BankTransactionID,
			Action:            models.AuditActionUndismiss,
			PerformedBy:       actor(userID),
		})
	})
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound("Verwerfung nicht gefunden")
	}
	if err != nil {
		return apperror.Internal("remove dismissal", err)
	}
	return nil
}

// RecordAutoMatch writes the audit entry for a link created by the auto-matcher.
func (s *ReconciliationService) RecordAutoMatch(ctx context.Context, planID uuid.UUID, rec *models.TransactionReconciliation, userID *string) {
	entry := &models.MatchAuditLog{
		PlanID:            &planID,
		BankTransactionID: rec.BankTransactionID,
		Action:            models.AuditActionAutoMatch,
		NewPlanned:        &rec.PlannedTransactionID,
		PerformedBy:       actor(userID),
	}
	if rec.Confidence != nil {
		entry.Reason = fmt.Sprintf("confidence %d", *rec.Confidence)
	}
	s.audit(ctx, entry)
}

func (s *ReconciliationService) audit(ctx context.Context, entry *models.MatchAuditLog) {
	if err := s.store.AppendAudit(ctx, entry); err != nil {
		logger.L.Error("failed to write match audit entry", "action", entry.Action,
			"bank_transaction_id", entry.BankTransactionID, "error", err)
	}
}

func actor(userID *string) string {
	if userID == nil || *userID == "" {
		return "system"
	}
	return *userID
}
