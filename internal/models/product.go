package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// FreshnessStatus classifies a product by time since its last feed update
type FreshnessStatus string

const (
	FreshnessFresh     FreshnessStatus = "fresh"
	FreshnessRecent    FreshnessStatus = "recent"
	FreshnessAging     FreshnessStatus = "aging"
	FreshnessStale     FreshnessStatus = "stale"
	FreshnessVeryStale FreshnessStatus = "very_stale"
)

// RemovalReason tags a product as a candidate for external purge.
// Products are never deleted by this service.
type RemovalReason string

const (
	RemovalVeryStale          RemovalReason = "very_stale"
	RemovalStaleAndOutOfStock RemovalReason = "stale_and_out_of_stock"
	RemovalStaleAndLowQuality RemovalReason = "stale_and_low_quality"
	RemovalNSFWContent        RemovalReason = "nsfw_content"
	RemovalInvalidPrice       RemovalReason = "invalid_price"
)

// PriceBand buckets products by search price
type PriceBand string

const (
	PriceBandBudget   PriceBand = "budget"
	PriceBandMidRange PriceBand = "mid_range"
	PriceBandPremium  PriceBand = "premium"
	PriceBandLuxury   PriceBand = "luxury"
)

// ConfidenceTier discretizes a continuous similarity score
type ConfidenceTier string

const (
	ConfidenceVeryHigh ConfidenceTier = "very_high"
	ConfidenceHigh     ConfidenceTier = "high"
	ConfidenceMedium   ConfidenceTier = "medium"
	ConfidenceLow      ConfidenceTier = "low"
	ConfidenceVeryLow  ConfidenceTier = "very_low"
)

// DuplicateMethod identifies the matching strategy that produced a link
type DuplicateMethod string

const (
	MethodExactHash      DuplicateMethod = "exact_hash"
	MethodFuzzyName      DuplicateMethod = "fuzzy_name"
	MethodDensityCluster DuplicateMethod = "density_cluster"
	MethodCrossMerchant  DuplicateMethod = "cross_merchant"
)

// StringArray type for PostgreSQL JSONB string arrays
type StringArray []string

func (a StringArray) Value() (driver.Value, error) {
	return json.Marshal(a)
}

func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = make(StringArray, 0)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, a)
}

// RawProductRecord is a single merchant feed row as handed over by the
// ingestion collaborator. Read-only input to the curation pipeline.
type RawProductRecord struct {
	MerchantProductID string     `json:"merchantProductId"`
	MerchantID        int        `json:"merchantId"`
	MerchantName      *string    `json:"merchantName,omitempty"`
	FeedProductID     *string    `json:"feedProductId,omitempty"`
	Name              string     `json:"name"`
	Brand             *string    `json:"brand,omitempty"`
	BrandID           *int       `json:"brandId,omitempty"`
	Description       *string    `json:"description,omitempty"`
	ShortDescription  *string    `json:"shortDescription,omitempty"`
	CategoryName      *string    `json:"categoryName,omitempty"`
	CategoryID        *int       `json:"categoryId,omitempty"`
	MerchantCategory  *string    `json:"merchantCategory,omitempty"`
	SearchPrice       *float64   `json:"searchPrice,omitempty"`
	StorePrice        *float64   `json:"storePrice,omitempty"`
	RRPPrice          *float64   `json:"rrpPrice,omitempty"`
	Currency          *string    `json:"currency,omitempty"`
	DeliveryCost      *float64   `json:"deliveryCost,omitempty"`
	ImageURL          *string    `json:"imageUrl,omitempty"`
	LargeImageURL     *string    `json:"largeImageUrl,omitempty"`
	AlternateImages   []string   `json:"alternateImages,omitempty"`
	SuitableFor       *string    `json:"suitableFor,omitempty"`
	FashionCategory   *string    `json:"fashionCategory,omitempty"`
	Size              *string    `json:"size,omitempty"`
	Material          *string    `json:"material,omitempty"`
	Pattern           *string    `json:"pattern,omitempty"`
	Colour            *string    `json:"colour,omitempty"`
	InStock           *bool      `json:"inStock,omitempty"`
	StockQuantity     *int       `json:"stockQuantity,omitempty"`
	StockStatus       *string    `json:"stockStatus,omitempty"`
	GTIN              *string    `json:"gtin,omitempty"`
	MPN               *string    `json:"mpn,omitempty"`
	DeepLink          *string    `json:"deepLink,omitempty"`
	MerchantDeepLink  *string    `json:"merchantDeepLink,omitempty"`
	LastUpdated       *time.Time `json:"lastUpdated,omitempty"`
}

// Product represents a canonical product entity.
// One row per (merchant_id, merchant_product_id) pair; rows are mutated on
// re-ingestion and re-evaluation but never deleted by this service.
type Product struct {
	ID                uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	MerchantProductID string    `json:"merchantProductId" gorm:"not null;index:idx_products_merchant_key,unique"`
	MerchantID        int       `json:"merchantId" gorm:"not null;index:idx_products_merchant_key,unique;index"`
	MerchantName      *string   `json:"merchantName,omitempty"`
	FeedProductID     *string   `json:"feedProductId,omitempty"`

	Name             string  `json:"name" gorm:"not null"`
	Brand            *string `json:"brand,omitempty" gorm:"index"`
	BrandID          *int    `json:"brandId,omitempty"`
	Description      *string `json:"description,omitempty"`
	ShortDescription *string `json:"shortDescription,omitempty"`

	CategoryName     *string `json:"categoryName,omitempty" gorm:"index"`
	CategoryID       *int    `json:"categoryId,omitempty" gorm:"index"`
	MerchantCategory *string `json:"merchantCategory,omitempty"`

	SearchPrice  *float64 `json:"searchPrice,omitempty" gorm:"index"`
	StorePrice   *float64 `json:"storePrice,omitempty"`
	RRPPrice     *float64 `json:"rrpPrice,omitempty"`
	Currency     *string  `json:"currency,omitempty" gorm:"default:'GBP'"`
	DeliveryCost *float64 `json:"deliveryCost,omitempty"`

	ImageURL        *string     `json:"imageUrl,omitempty"`
	LargeImageURL   *string     `json:"largeImageUrl,omitempty"`
	AlternateImages StringArray `json:"alternateImages,omitempty" gorm:"type:jsonb"`

	SuitableFor     *string `json:"suitableFor,omitempty"`
	FashionCategory *string `json:"fashionCategory,omitempty"`
	Size            *string `json:"size,omitempty"`
	Material        *string `json:"material,omitempty"`
	Pattern         *string `json:"pattern,omitempty"`
	Colour          *string `json:"colour,omitempty"`

	InStock       *bool   `json:"inStock,omitempty" gorm:"default:true"`
	StockQuantity *int    `json:"stockQuantity,omitempty"`
	StockStatus   *string `json:"stockStatus,omitempty"`

	GTIN *string `json:"gtin,omitempty" gorm:"index"`
	MPN  *string `json:"mpn,omitempty"`

	DeepLink         *string `json:"deepLink,omitempty"`
	MerchantDeepLink *string `json:"merchantDeepLink,omitempty"`

	// Curation output
	QualityScore      float64         `json:"qualityScore" gorm:"not null;default:0"`
	CompletenessScore float64         `json:"completenessScore" gorm:"not null;default:0"`
	IsActive          bool            `json:"isActive" gorm:"not null;default:true;index"`
	IsNSFW            bool            `json:"isNsfw" gorm:"column:is_nsfw;not null;default:false"`
	FreshnessStatus   FreshnessStatus `json:"freshnessStatus" gorm:"default:'fresh'"`
	RemovalReason     *RemovalReason  `json:"removalReason,omitempty"`
	PriceBand         *PriceBand      `json:"priceBand,omitempty"`

	// Deduplication
	ProductHash        string     `json:"productHash" gorm:"index"`
	CanonicalProductID *uuid.UUID `json:"canonicalProductId,omitempty" gorm:"type:uuid;index"`
	IsDuplicate        bool       `json:"isDuplicate" gorm:"not null;default:false"`

	LastUpdated *time.Time `json:"lastUpdated,omitempty"`
	IngestedAt  time.Time  `json:"ingestedAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// DuplicateLink is the audit record tying a duplicate product to its elected
// canonical counterpart. Many links may target one canonical product; links
// never chain.
type DuplicateLink struct {
	ID              uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	OriginalID      uuid.UUID       `json:"originalId" gorm:"type:uuid;not null;index"`
	DuplicateID     uuid.UUID       `json:"duplicateId" gorm:"type:uuid;not null;index"`
	Method          DuplicateMethod `json:"method" gorm:"not null"`
	SimilarityScore float64         `json:"similarityScore" gorm:"not null"`
	ConfidenceTier  ConfidenceTier  `json:"confidenceTier" gorm:"not null"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// InStockKnown reports whether the feed carried any stock signal at all
func (r *RawProductRecord) InStockKnown() bool {
	return r.InStock != nil || r.StockStatus != nil
}

// HasValidPrice reports whether the record carries a usable search price
func (r *RawProductRecord) HasValidPrice() bool {
	return r.SearchPrice != nil && *r.SearchPrice > 0
}

// ImageCount counts all image URLs on the record
func (r *RawProductRecord) ImageCount() int {
	n := len(r.AlternateImages)
	if r.ImageURL != nil && *r.ImageURL != "" {
		n++
	}
	if r.LargeImageURL != nil && *r.LargeImageURL != "" {
		n++
	}
	return n
}

// TableName returns the table name for the Product model
func (Product) TableName() string {
	return "products"
}

// TableName returns the table name for the DuplicateLink model
func (DuplicateLink) TableName() string {
	return "duplicate_links"
}
