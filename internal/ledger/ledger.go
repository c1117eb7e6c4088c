package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"curation-service/internal/models"
	"curation-service/internal/quality"
	"curation-service/internal/repository"
)

// Ledger is the append-only record of quality issues. Issues accumulate over
// a product's lifetime; resolution stamps them closed without rewriting
// history. Consumed by monitoring and by lifecycle removal decisions.
type Ledger struct {
	repo   repository.CurationRepositoryInterface
	logger *logrus.Entry
}

func New(repo repository.CurationRepositoryInterface, logger *logrus.Logger) *Ledger {
	return &Ledger{
		repo:   repo,
		logger: logger.WithField("component", "issue-ledger"),
	}
}

// Record appends scorer findings for a product. Failures are logged and
// swallowed; ledger writes never block record processing.
func (l *Ledger) Record(ctx context.Context, productID uuid.UUID, logID *uuid.UUID, issues []quality.Issue) {
	for _, issue := range issues {
		pid := productID
		field := issue.Field
		entry := &models.QualityIssue{
			ProductID:      &pid,
			IngestionLogID: logID,
			IssueType:      issue.Type,
			Severity:       issue.Severity,
			FieldName:      &field,
			Details: datatypes.JSONMap{
				"message": issue.Message,
			},
		}
		if err := l.repo.AppendIssue(ctx, entry); err != nil {
			l.logger.WithError(err).WithFields(logrus.Fields{
				"productID": productID,
				"issueType": issue.Type,
			}).Error("Failed to append quality issue")
		}
	}
}

// RecordOne appends a single ad hoc issue, used by moderation and validation
func (l *Ledger) RecordOne(ctx context.Context, productID *uuid.UUID, issueType string, severity models.IssueSeverity, details map[string]interface{}) {
	entry := &models.QualityIssue{
		ProductID: productID,
		IssueType: issueType,
		Severity:  severity,
		Details:   datatypes.JSONMap(details),
	}
	if err := l.repo.AppendIssue(ctx, entry); err != nil {
		l.logger.WithError(err).WithField("issueType", issueType).Error("Failed to append quality issue")
	}
}

// scoringIssueTypes are the issue families a scoring pass owns. Pointer
// validation issues stay open until a validation pass clears them.
var scoringIssueTypes = map[string]bool{
	models.IssueInvalidName:     true,
	models.IssueInvalidPrice:    true,
	models.IssueMissingImage:    true,
	models.IssueNSFWContent:     true,
	models.IssueLowQualityScore: true,
}

// Reconcile stamps closed the open scoring issues the latest pass no longer
// reports, typically because a re-ingestion fixed the underlying data.
// Failures are logged and swallowed like other ledger writes.
func (l *Ledger) Reconcile(ctx context.Context, productID uuid.UUID, reported map[string]bool) {
	open, err := l.repo.OpenIssues(ctx, productID)
	if err != nil {
		l.logger.WithError(err).WithField("productID", productID).Error("Failed to load open quality issues")
		return
	}
	for _, issue := range open {
		if !scoringIssueTypes[issue.IssueType] || reported[issue.IssueType] {
			continue
		}
		if err := l.repo.ResolveIssue(ctx, issue.ID); err != nil {
			l.logger.WithError(err).WithFields(logrus.Fields{
				"productID": productID,
				"issueType": issue.IssueType,
			}).Error("Failed to resolve quality issue")
		}
	}
}
