package repository

import (
	"context"

	"statement-reconciliation-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const dedupeKeyChunk = 500

// upsertColumns are overwritten when a re-imported row hits (source_id, dedupe_key).
// id, first_seen_import_id and created_at keep their original values;
// import_seen_count is incremented from the stored row.
var upsertColumns = []string{
	"last_seen_import_id", "external_transaction_id", "booking_date", "value_date",
	"amount_cents", "currency", "original_amount_cents", "original_currency",
	"counterparty", "booking_text", "description", "purpose", "status",
	"balance_after_cents", "balance_currency", "country", "card_last4", "cardholder",
	"raw_data", "plan_id", "plan_assignment", "updated_at",
}

type ImportRepository struct {
	base
}

func NewImportRepository(db *gorm.DB) *ImportRepository {
	return &ImportRepository{base{db: db}}
}

func (r *ImportRepository) SourceByID(ctx context.Context, id uuid.UUID) (*models.ImportSource, error) {
	var source models.ImportSource
	if err := r.conn(ctx).First(&source, "id = ?", id).Error; err != nil {
		return nil, classify(err)
	}
	return &source, nil
}

func (r *ImportRepository) CreateSource(ctx context.Context, source *models.ImportSource) error {
	return classify(r.conn(ctx).Create(source).Error)
}

// ExistingByDedupeKeys returns stored transactions of sourceID keyed by dedupe key.
func (r *ImportRepository) ExistingByDedupeKeys(ctx context.Context, sourceID uuid.UUID, keys []string) (map[string]models.BankTransaction, error) {
	out := make(map[string]models.BankTransaction, len(keys))
	for start := 0; start < len(keys); start += dedupeKeyChunk {
		end := min(start+dedupeKeyChunk, len(keys))
		var batch []models.BankTransaction
		err := r.conn(ctx).
			Where("source_id = ? AND dedupe_key IN ?", sourceID, keys[start:end]).
			Find(&batch).Error
		if err != nil {
			return nil, classify(err)
		}
		for _, tx := range batch {
			out[tx.DedupeKey] = tx
		}
	}
	return out, nil
}

func (r *ImportRepository) CreateStatementImport(ctx context.Context, imp *models.StatementImport) error {
	return classify(r.conn(ctx).Create(imp).Error)
}

// UpsertBankTransactions writes already merged rows. Merge rules live in the importer.
func (r *ImportRepository) UpsertBankTransactions(ctx context.Context, rows []models.BankTransaction) error {
	if len(rows) == 0 {
		return nil
	}
	err := r.conn(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_id"}, {Name: "dedupe_key"}},
			DoUpdates: append(clause.AssignmentColumns(upsertColumns), clause.Assignment{
				Column: clause.Column{Name: "import_seen_count"},
				Value:  gorm.Expr("bank_transactions.import_seen_count + 1"),
			}),
		}).
		CreateInBatches(rows, 200).Error
	return classify(err)
}

func (r *ImportRepository) StatementImports(ctx context.Context, sourceID uuid.UUID) ([]models.StatementImport, error) {
	var imports []models.StatementImport
	err := r.conn(ctx).
		Where("source_id = ?", sourceID).
		Order("created_at ASC").
		Find(&imports).Error
	return imports, classify(err)
}

func (r *ImportRepository) TransactionsForSource(ctx context.Context, sourceID uuid.UUID) ([]models.BankTransaction, error) {
	var txs []models.BankTransaction
	err := r.conn(ctx).
		Where("source_id = ?", sourceID).
		Order("booking_date ASC, id ASC").
		Find(&txs).Error
	return txs, classify(err)
}
