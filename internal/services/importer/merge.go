package importer

import (
	"statement-reconciliation-backend/internal/models"
)

// MergeExisting folds a re-imported row into the stored one.
//
// Statement fields always take the incoming values. The plan assignment of
// the stored row wins when it was set manually or already points at a plan;
// otherwise the fresh automatic assignment applies. Identity, first-seen
// pointer and creation time are never replaced, and the seen counter grows.
func MergeExisting(existing, incoming models.BankTransaction) models.BankTransaction {
	merged := incoming
	merged.ID = existing.ID
	merged.SourceID = existing.SourceID
	merged.DedupeKey = existing.DedupeKey
	merged.FirstSeenImportID = existing.FirstSeenImportID
	merged.CreatedAt = existing.CreatedAt
	merged.ImportSeenCount = existing.ImportSeenCount + 1

	if existing.PlanAssignment == models.AssignmentManual || existing.PlanID != nil {
		merged.PlanID = existing.PlanID
		merged.PlanAssignment = existing.PlanAssignment
	}
	return merged
}
