package repository

import (
	"context"

	"statement-reconciliation-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PlanRepository reads budget plans and their planned transactions.
type PlanRepository struct {
	base
}

func NewPlanRepository(db *gorm.DB) *PlanRepository {
	return &PlanRepository{base{db: db}}
}

func (r *PlanRepository) PlanByID(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	var plan models.Plan
	if err := r.conn(ctx).First(&plan, "id = ?", id).Error; err != nil {
		return nil, classify(err)
	}
	return &plan, nil
}

// ActivePlansInMonth returns non-archived plans dated in month (YYYY-MM).
func (r *PlanRepository) ActivePlansInMonth(ctx context.Context, month string) ([]models.Plan, error) {
	var plans []models.Plan
	err := r.conn(ctx).
		Where("is_archived = ? AND date LIKE ?", false, month+"-%").
		Order("date ASC").
		Find(&plans).Error
	return plans, classify(err)
}

func (r *PlanRepository) PlannedTransactions(ctx context.Context, planID uuid.UUID) ([]models.PlannedTransaction, error) {
	var items []models.PlannedTransaction
	err := r.conn(ctx).
		Where("plan_id = ?", planID).
		Order("due_date ASC, name ASC").
		Find(&items).Error
	return items, classify(err)
}

func (r *PlanRepository) PlannedTransactionByID(ctx context.Context, id uuid.UUID) (*models.PlannedTransaction, error) {
	var item models.PlannedTransaction
	if err := r.conn(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, classify(err)
	}
	return &item, nil
}

func (r *PlanRepository) CreatePlan(ctx context.Context, plan *models.Plan) error {
	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}
	return classify(r.conn(ctx).Create(plan).Error)
}

func (r *PlanRepository) CreatePlannedTransaction(ctx context.Context, item *models.PlannedTransaction) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	return classify(r.conn(ctx).Create(item).Error)
}
