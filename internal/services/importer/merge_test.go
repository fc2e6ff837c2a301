package importer

import (
	"testing"
	"time"

	"statement-reconciliation-backend/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestMergeExisting(t *testing.T) {
	oldPlan := uuid.New()
	newPlan := uuid.New()
	firstImport := uuid.New()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	cases := []struct {
		name         string
		existingPlan *uuid.UUID
		existingMode string
		incomingPlan *uuid.UUID
		incomingMode string
		wantPlan     *uuid.UUID
		wantMode     string
	}{
		{"manual with plan is kept", &oldPlan, models.AssignmentManual, &newPlan, models.AssignmentAutoMonth, &oldPlan, models.AssignmentManual},
		{"manual without plan is kept", nil, models.AssignmentManual, &newPlan, models.AssignmentAutoMonth, nil, models.AssignmentManual},
		{"existing auto plan is kept", &oldPlan, models.AssignmentAutoMonth, &newPlan, models.AssignmentAutoMonth, &oldPlan, models.AssignmentAutoMonth},
		{"unassigned takes fresh auto plan", nil, models.AssignmentNone, &newPlan, models.AssignmentAutoMonth, &newPlan, models.AssignmentAutoMonth},
		{"unassigned stays unassigned", nil, models.AssignmentNone, nil, models.AssignmentNone, nil, models.AssignmentNone},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			existing := models.BankTransaction{
				ID:                uuid.New(),
				SourceID:          uuid.New(),
				DedupeKey:         "k",
				FirstSeenImportID: firstImport,
				LastSeenImportID:  firstImport,
				AmountCents:       -100,
				PlanID:            tc.existingPlan,
				PlanAssignment:    tc.existingMode,
				ImportSeenCount:   3,
				CreatedAt:         created,
			}
			thisImport := uuid.New()
			incoming := models.BankTransaction{
				ID:                uuid.New(),
				SourceID:          existing.SourceID,
				DedupeKey:         "k",
				FirstSeenImportID: thisImport,
				LastSeenImportID:  thisImport,
				AmountCents:       -101,
				PlanID:            tc.incomingPlan,
				PlanAssignment:    tc.incomingMode,
				ImportSeenCount:   1,
				CreatedAt:         created.Add(time.Hour),
			}

			merged := MergeExisting(existing, incoming)
			require.Equal(t, existing.ID, merged.ID)
			require.Equal(t, firstImport, merged.FirstSeenImportID)
			require.Equal(t, thisImport, merged.LastSeenImportID)
			require.Equal(t, created, merged.CreatedAt)
			require.Equal(t, 4, merged.ImportSeenCount)
			require.Equal(t, int64(-101), merged.AmountCents)
			require.Equal(t, tc.wantPlan, merged.PlanID)
			require.Equal(t, tc.wantMode, merged.PlanAssignment)
		})
	}
}
