package repository

import (
	"context"
	"time"

	"statement-reconciliation-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReconciliationRepository stores links, dismissals and the match audit trail.
type ReconciliationRepository struct {
	base
}

func NewReconciliationRepository(db *gorm.DB) *ReconciliationRepository {
	return &ReconciliationRepository{base{db: db}}
}

// Create inserts rec. A violated unique index is returned as *UniqueViolation.
func (r *ReconciliationRepository) Create(ctx context.Context, rec *models.TransactionReconciliation) error {
	return classify(r.conn(ctx).Create(rec).Error)
}

func (r *ReconciliationRepository) ByID(ctx context.Context, id uuid.UUID) (*models.TransactionReconciliation, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *ReconciliationRepository) ByBankTransaction(ctx context.Context, bankTxID uuid.UUID) (*models.TransactionReconciliation, error) {
	return r.first(ctx, "bank_transaction_id = ?", bankTxID)
}

func (r *ReconciliationRepository) ByPlannedTransaction(ctx context.Context, plannedTxID uuid.UUID) (*models.TransactionReconciliation, error) {
	return r.first(ctx, "planned_transaction_id = ?", plannedTxID)
}

func (r *ReconciliationRepository) first(ctx context.Context, query string, args ...any) (*models.TransactionReconciliation, error) {
	var rec models.TransactionReconciliation
	if err := r.conn(ctx).Where(query, args...).First(&rec).Error; err != nil {
		return nil, classify(err)
	}
	return &rec, nil
}

// ForPlan returns every link whose planned transaction belongs to planID.
func (r *ReconciliationRepository) ForPlan(ctx context.Context, planID uuid.UUID) ([]models.TransactionReconciliation, error) {
	var recs []models.TransactionReconciliation
	err := r.conn(ctx).
		Joins("JOIN planned_transactions pt ON pt.id = transaction_reconciliations.planned_transaction_id").
		Where("pt.plan_id = ?", planID).
		Order("transaction_reconciliations.matched_at ASC").
		Find(&recs).Error
	return recs, classify(err)
}

// DeleteForPlan removes a link only when it belongs to planID.
func (r *ReconciliationRepository) DeleteForPlan(ctx context.Context, planID, id uuid.UUID) (*models.TransactionReconciliation, error) {
	var rec models.TransactionReconciliation
	err := r.conn(ctx).
		Joins("JOIN planned_transactions pt ON pt.id = transaction_reconciliations.planned_transaction_id").
		Where("transaction_reconciliations.id = ? AND pt.plan_id = ?", id, planID).
		First(&rec).Error
	if err != nil {
		return nil, classify(err)
	}
	if err := r.conn(ctx).Delete(&models.TransactionReconciliation{}, "id = ?", rec.ID).Error; err != nil {
		return nil, classify(err)
	}
	return &rec, nil
}

func (r *ReconciliationRepository) BankTransactionByID(ctx context.Context, id uuid.UUID) (*models.BankTransaction, error) {
	var tx models.BankTransaction
	if err := r.conn(ctx).First(&tx, "id = ?", id).Error; err != nil {
		return nil, classify(err)
	}
	return &tx, nil
}

// AssignPlan points a bank transaction at planID, or clears it when planID is nil.
func (r *ReconciliationRepository) AssignPlan(ctx context.Context, id uuid.UUID, planID *uuid.UUID, assignment string) (*models.BankTransaction, error) {
	var plan any
	if planID != nil {
		plan = *planID
	}
	res := r.conn(ctx).
		Model(&models.BankTransaction{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"plan_id":         plan,
			"plan_assignment": assignment,
			"updated_at":      time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.BankTransactionByID(ctx, id)
}

// PlanBankTransactions returns the bank transactions assigned to planID.
func (r *ReconciliationRepository) PlanBankTransactions(ctx context.Context, planID uuid.UUID) ([]models.BankTransaction, error) {
	var txs []models.BankTransaction
	err := r.conn(ctx).
		Where("plan_id = ?", planID).
		Order("booking_date ASC, id ASC").
		Find(&txs).Error
	return txs, classify(err)
}

// UnmatchedForPlan returns plan transactions that are neither reconciled nor dismissed.
func (r *ReconciliationRepository) UnmatchedForPlan(ctx context.Context, planID uuid.UUID) ([]models.BankTransaction, error) {
	var txs []models.BankTransaction
	err := r.conn(ctx).
		Where("plan_id = ?", planID).
		Where("id NOT IN (?)", r.conn(ctx).Model(&models.TransactionReconciliation{}).Select("bank_transaction_id")).
		Where("id NOT IN (?)", r.conn(ctx).Model(&models.Dismissal{}).Select("bank_transaction_id")).
		Order("booking_date ASC, id ASC").
		Find(&txs).Error
	return txs, classify(err)
}

func (r *ReconciliationRepository) CreateDismissal(ctx context.Context, d *models.Dismissal) error {
	return classify(r.conn(ctx).Create(d).Error)
}

func (r *ReconciliationRepository) DismissalByBankTransaction(ctx context.Context, bankTxID uuid.UUID) (*models.Dismissal, error) {
	var d models.Dismissal
	if err := r.conn(ctx).First(&d, "bank_transaction_id = ?", bankTxID).Error; err != nil {
		return nil, classify(err)
	}
	return &d, nil
}

func (r *ReconciliationRepository) DismissalsForPlan(ctx context.Context, planID uuid.UUID) ([]models.Dismissal, error) {
	var ds []models.Dismissal
	err := r.conn(ctx).Where("plan_id = ?", planID).Order("created_at ASC").Find(&ds).Error
	return ds, classify(err)
}

func (r *ReconciliationRepository) DeleteDismissal(ctx context.Context, planID, id uuid.UUID) (*models.Dismissal, error) {
	var d models.Dismissal
	if err := r.conn(ctx).First(&d, "id = ? AND plan_id = ?", id, planID).Error; err != nil {
		return nil, classify(err)
	}
	if err := r.conn(ctx).Delete(&models.Dismissal{}, "id = ?", d.ID).Error; err != nil {
		return nil, classify(err)
	}
	return &d, nil
}

func (r *ReconciliationRepository) AppendAudit(ctx context.Context, entry *models.MatchAuditLog) error {
	return classify(r.conn(ctx).Create(entry).Error)
}

func (r *ReconciliationRepository) AuditTrail(ctx context.Context, bankTxID uuid.UUID) ([]models.MatchAuditLog, error) {
	var entries []models.MatchAuditLog
	err := r.conn(ctx).
		Where("bank_transaction_id = ?", bankTxID).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, classify(err)
}
