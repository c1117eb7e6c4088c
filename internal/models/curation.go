package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// IssueSeverity grades a quality issue
type IssueSeverity string

const (
	SeverityCritical IssueSeverity = "critical"
	SeverityWarning  IssueSeverity = "warning"
	SeverityInfo     IssueSeverity = "info"
)

// Well-known issue types raised by the curation pipeline
const (
	IssueInvalidPrice     = "invalid_price"
	IssueInvalidName      = "invalid_name"
	IssueMissingImage     = "missing_image"
	IssueLowQualityScore  = "low_quality_score"
	IssueNSFWContent      = "nsfw_content"
	IssueOrphanedPointer  = "orphaned_canonical_pointer"
	IssueChainedPointer   = "chained_canonical_pointer"
	IssueClusterUnsolved  = "cluster_unresolved"
)

// QualityIssue is an append-only ledger entry for a detected data problem.
// Resolution only stamps resolved_at; history is never rewritten.
type QualityIssue struct {
	ID             uuid.UUID         `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ProductID      *uuid.UUID        `json:"productId,omitempty" gorm:"type:uuid;index"`
	IngestionLogID *uuid.UUID        `json:"ingestionLogId,omitempty" gorm:"type:uuid;index"`
	IssueType      string            `json:"issueType" gorm:"not null;index"`
	Severity       IssueSeverity     `json:"severity" gorm:"not null"`
	FieldName      *string           `json:"fieldName,omitempty"`
	Details        datatypes.JSONMap `json:"details,omitempty" gorm:"type:jsonb"`
	DetectedAt     time.Time         `json:"detectedAt"`
	ResolvedAt     *time.Time        `json:"resolvedAt,omitempty"`
	IsResolved     bool              `json:"isResolved" gorm:"not null;default:false;index"`
}

// IngestionLog tracks one batch run through the pipeline
type IngestionLog struct {
	ID           uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	FeedName     *string    `json:"feedName,omitempty"`
	MerchantID   *int       `json:"merchantId,omitempty" gorm:"index"`
	MerchantName *string    `json:"merchantName,omitempty"`
	StartedAt    time.Time  `json:"startedAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`

	TotalRows       int `json:"totalRows" gorm:"default:0"`
	ProcessedRows   int `json:"processedRows" gorm:"default:0"`
	NewProducts     int `json:"newProducts" gorm:"default:0"`
	UpdatedProducts int `json:"updatedProducts" gorm:"default:0"`
	FailedRows      int `json:"failedRows" gorm:"default:0"`
	DuplicatesFound int `json:"duplicatesFound" gorm:"default:0"`

	Status        string  `json:"status" gorm:"default:'pending';index"`
	ErrorMessage  *string `json:"errorMessage,omitempty"`
	RowsPerSecond float64 `json:"rowsPerSecond" gorm:"default:0"`
}

// Ingestion log status values
const (
	IngestionStatusPending   = "pending"
	IngestionStatusRunning   = "running"
	IngestionStatusCompleted = "completed"
	IngestionStatusFailed    = "failed"
)

// BatchStats aggregates counters for one pipeline run
type BatchStats struct {
	TotalRows       int           `json:"totalRows"`
	Processed       int           `json:"processed"`
	Valid           int           `json:"valid"`
	Invalid         int           `json:"invalid"`
	Skipped         int           `json:"skipped"`
	Duplicates      int           `json:"duplicates"`
	LowQuality      int           `json:"lowQuality"`
	NSFWFlagged     int           `json:"nsfwFlagged"`
	NewProducts     int           `json:"newProducts"`
	UpdatedProducts int           `json:"updatedProducts"`
	Elapsed         time.Duration `json:"elapsed"`
}

// CatalogEntry is a ranked member of the assembled catalog view.
// Rank fields are computed in memory per assembly pass and are not persisted.
type CatalogEntry struct {
	Product

	DiscountPercentage float64 `json:"discountPercentage"`
	DiscountAmount     float64 `json:"discountAmount"`
	HighQuality        bool    `json:"highQuality"`

	BrandRank     int `json:"brandRank"`
	CategoryRank  int `json:"categoryRank"`
	PriceBandRank int `json:"priceBandRank"`
	QualityRank   int `json:"qualityRank"`
}

// CatalogView is the bounded, ranked output consumed by the serving layer
type CatalogView struct {
	Entries     []CatalogEntry `json:"entries"`
	Total       int            `json:"total"`
	AssembledAt time.Time      `json:"assembledAt"`
}

// TableName returns the table name for the QualityIssue model
func (QualityIssue) TableName() string {
	return "data_quality_issues"
}

// TableName returns the table name for the IngestionLog model
func (IngestionLog) TableName() string {
	return "ingestion_logs"
}
