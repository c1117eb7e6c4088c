package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"curation-service/internal/models"
	"gorm.io/gorm"
)

// CatalogViewCacheTTL bounds how long a stale assembled snapshot can serve
const CatalogViewCacheTTL = 10 * time.Minute

const catalogViewCacheKey = "curation:catalog:view"

// CurationRepositoryInterface abstracts persistence so the pipeline can be
// tested against a mock.
type CurationRepositoryInterface interface {
	FindByMerchantKey(ctx context.Context, merchantID int, merchantProductID string) (*models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) error
	UpdateProduct(ctx context.Context, product *models.Product) error
	GetActiveProducts(ctx context.Context) ([]*models.Product, error)
	GetAllProducts(ctx context.Context) ([]*models.Product, error)
	SaveCurationState(ctx context.Context, products []*models.Product) error
	CommitDuplicateResolution(ctx context.Context, products []*models.Product, links []models.DuplicateLink) error

	AppendIssue(ctx context.Context, issue *models.QualityIssue) error
	ResolveIssue(ctx context.Context, issueID uuid.UUID) error
	OpenIssues(ctx context.Context, productID uuid.UUID) ([]models.QualityIssue, error)

	CreateIngestionLog(ctx context.Context, log *models.IngestionLog) error
	UpdateIngestionLog(ctx context.Context, log *models.IngestionLog) error

	CacheCatalogView(ctx context.Context, view *models.CatalogView) error
	CachedCatalogView(ctx context.Context) (*models.CatalogView, error)
}

// CurationRepository is the gorm/redis-backed implementation
type CurationRepository struct {
	db    *gorm.DB
	redis *redis.Client
}

var _ CurationRepositoryInterface = (*CurationRepository)(nil)

func NewCurationRepository(db *gorm.DB, redisClient *redis.Client) *CurationRepository {
	return &CurationRepository{db: db, redis: redisClient}
}

// FindByMerchantKey looks up a product by its merchant-local identity.
// Returns (nil, nil) when no row exists.
func (r *CurationRepository) FindByMerchantKey(ctx context.Context, merchantID int, merchantProductID string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND merchant_product_id = ?", merchantID, merchantProductID).
		First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// CreateProduct inserts a new canonical product row
func (r *CurationRepository) CreateProduct(ctx context.Context, product *models.Product) error {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	product.IngestedAt = time.Now()
	product.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Create(product).Error
}

// UpdateProduct persists a full product row. Any row change makes the cached
// catalog snapshot stale, so it is invalidated alongside.
func (r *CurationRepository) UpdateProduct(ctx context.Context, product *models.Product) error {
	product.UpdatedAt = time.Now()
	err := r.db.WithContext(ctx).Save(product).Error
	if err == nil {
		r.invalidateCatalogCache(ctx)
	}
	return err
}

// GetActiveProducts loads the active record set the resolver and assembler
// operate on.
func (r *CurationRepository) GetActiveProducts(ctx context.Context) ([]*models.Product, error) {
	var products []*models.Product
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("ingested_at ASC, id ASC").
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

// GetAllProducts loads every row, including inactive ones, for validation
// and full re-evaluation passes.
func (r *CurationRepository) GetAllProducts(ctx context.Context) ([]*models.Product, error) {
	var products []*models.Product
	err := r.db.WithContext(ctx).
		Order("ingested_at ASC, id ASC").
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

// SaveCurationState batch-persists derived curation fields after scoring and
// lifecycle evaluation.
func (r *CurationRepository) SaveCurationState(ctx context.Context, products []*models.Product) error {
	if len(products) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range products {
			updates := map[string]interface{}{
				"quality_score":      p.QualityScore,
				"completeness_score": p.CompletenessScore,
				"is_nsfw":            p.IsNSFW,
				"freshness_status":   p.FreshnessStatus,
				"removal_reason":     p.RemovalReason,
				"price_band":         p.PriceBand,
				"product_hash":       p.ProductHash,
				"updated_at":         time.Now(),
			}
			if err := tx.Model(&models.Product{}).Where("id = ?", p.ID).Updates(updates).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// CommitDuplicateResolution writes canonical pointers and duplicate links in
// a single transaction so no reader observes a partially resolved set.
func (r *CurationRepository) CommitDuplicateResolution(ctx context.Context, products []*models.Product, links []models.DuplicateLink) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range products {
			updates := map[string]interface{}{
				"is_duplicate":         p.IsDuplicate,
				"canonical_product_id": p.CanonicalProductID,
				"quality_score":        p.QualityScore,
				"updated_at":           time.Now(),
			}
			if err := tx.Model(&models.Product{}).Where("id = ?", p.ID).Updates(updates).Error; err != nil {
				return err
			}
		}
		for i := range links {
			if links[i].ID == uuid.Nil {
				links[i].ID = uuid.New()
			}
			links[i].CreatedAt = time.Now()
		}
		if len(links) > 0 {
			if err := tx.Create(&links).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		r.invalidateCatalogCache(ctx)
	}
	return err
}

// AppendIssue adds one ledger entry. Entries are append-only.
func (r *CurationRepository) AppendIssue(ctx context.Context, issue *models.QualityIssue) error {
	if issue.ID == uuid.Nil {
		issue.ID = uuid.New()
	}
	if issue.DetectedAt.IsZero() {
		issue.DetectedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(issue).Error
}

// ResolveIssue stamps an issue resolved without touching its history
func (r *CurationRepository) ResolveIssue(ctx context.Context, issueID uuid.UUID) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.QualityIssue{}).
		Where("id = ? AND is_resolved = ?", issueID, false).
		Updates(map[string]interface{}{
			"is_resolved": true,
			"resolved_at": now,
		}).Error
}

// OpenIssues lists unresolved issues for a product, oldest first
func (r *CurationRepository) OpenIssues(ctx context.Context, productID uuid.UUID) ([]models.QualityIssue, error) {
	var issues []models.QualityIssue
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND is_resolved = ?", productID, false).
		Order("detected_at ASC").
		Find(&issues).Error
	return issues, err
}

// CreateIngestionLog opens a batch run record
func (r *CurationRepository) CreateIngestionLog(ctx context.Context, log *models.IngestionLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.StartedAt.IsZero() {
		log.StartedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(log).Error
}

// UpdateIngestionLog persists batch counters and final status
func (r *CurationRepository) UpdateIngestionLog(ctx context.Context, log *models.IngestionLog) error {
	return r.db.WithContext(ctx).Save(log).Error
}

// CacheCatalogView stores the assembled snapshot for the serving layer
func (r *CurationRepository) CacheCatalogView(ctx context.Context, view *models.CatalogView) error {
	if r.redis == nil {
		return nil
	}
	data, err := json.Marshal(view)
	if err != nil {
		return err
	}
	return r.redis.Set(ctx, catalogViewCacheKey, data, CatalogViewCacheTTL).Err()
}

// CachedCatalogView returns the last cached snapshot, or (nil, nil) on miss
func (r *CurationRepository) CachedCatalogView(ctx context.Context) (*models.CatalogView, error) {
	if r.redis == nil {
		return nil, nil
	}
	val, err := r.redis.Get(ctx, catalogViewCacheKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var view models.CatalogView
	if err := json.Unmarshal([]byte(val), &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (r *CurationRepository) invalidateCatalogCache(ctx context.Context) {
	if r.redis == nil {
		return
	}
	_ = r.redis.Del(ctx, catalogViewCacheKey).Err()
}
