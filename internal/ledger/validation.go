package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"curation-service/internal/models"
)

// ValidationReport summarizes a referential-integrity pass over the
// canonical pointer graph.
type ValidationReport struct {
	Checked          int
	OrphanedPointers int
	ChainedPointers  int
}

// ValidateReferences detects orphaned canonical pointers and pointer chains
// (a duplicate pointing at another duplicate). Violations are logged as
// critical ledger issues; nothing is auto-repaired.
func (l *Ledger) ValidateReferences(ctx context.Context, products []*models.Product) ValidationReport {
	byID := make(map[uuid.UUID]*models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	report := ValidationReport{Checked: len(products)}
	for _, p := range products {
		if p.CanonicalProductID == nil {
			continue
		}

		target, ok := byID[*p.CanonicalProductID]
		if !ok {
			report.OrphanedPointers++
			pid := p.ID
			l.RecordOne(ctx, &pid, models.IssueOrphanedPointer, models.SeverityCritical, map[string]interface{}{
				"canonical_product_id": p.CanonicalProductID.String(),
			})
			continue
		}

		// Depth-1 invariant: a canonical target must not itself be a duplicate
		if target.CanonicalProductID != nil {
			report.ChainedPointers++
			pid := p.ID
			l.RecordOne(ctx, &pid, models.IssueChainedPointer, models.SeverityCritical, map[string]interface{}{
				"canonical_product_id": p.CanonicalProductID.String(),
				"chained_to":           target.CanonicalProductID.String(),
			})
		}
	}

	if report.OrphanedPointers > 0 || report.ChainedPointers > 0 {
		l.logger.WithFields(logrus.Fields{
			"orphaned": report.OrphanedPointers,
			"chained":  report.ChainedPointers,
		}).Error("Referential integrity violations detected in canonical pointers")
	}
	return report
}
