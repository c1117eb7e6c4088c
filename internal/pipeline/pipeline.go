package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"curation-service/internal/catalog"
	"curation-service/internal/config"
	"curation-service/internal/dedup"
	"curation-service/internal/events"
	"curation-service/internal/ledger"
	"curation-service/internal/lifecycle"
	"curation-service/internal/models"
	"curation-service/internal/moderation"
	"curation-service/internal/quality"
	"curation-service/internal/repository"
)

// Pipeline drives a feed batch through scoring, moderation, persistence,
// duplicate resolution, lifecycle evaluation and catalog assembly.
type Pipeline struct {
	repo      repository.CurationRepositoryInterface
	scorer    *quality.Scorer
	screener  *moderation.Screener
	resolver  *dedup.Resolver
	tracker   *lifecycle.Tracker
	assembler *catalog.Assembler
	ledger    *ledger.Ledger
	publisher *events.Publisher
	cfg       *config.Config
	logger    *logrus.Entry
}

// New wires the pipeline. publisher may be nil when event publishing is
// disabled.
func New(
	repo repository.CurationRepositoryInterface,
	scorer *quality.Scorer,
	screener *moderation.Screener,
	resolver *dedup.Resolver,
	tracker *lifecycle.Tracker,
	assembler *catalog.Assembler,
	issueLedger *ledger.Ledger,
	publisher *events.Publisher,
	cfg *config.Config,
	logger *logrus.Logger,
) *Pipeline {
	return &Pipeline{
		repo:      repo,
		scorer:    scorer,
		screener:  screener,
		resolver:  resolver,
		tracker:   tracker,
		assembler: assembler,
		ledger:    issueLedger,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger.WithField("component", "curation-pipeline"),
	}
}

// scoredRecord pairs a feed row with its scoring and moderation outcome
type scoredRecord struct {
	record       *models.RawProductRecord
	quality      float64
	completeness float64
	issues       []quality.Issue
	nsfw         bool
	nsfwTerm     string
}

// ProcessBatch runs one feed batch end to end and returns its counters.
// Intake is chunked and scored in parallel; persistence and duplicate
// resolution run after all chunks finish.
func (p *Pipeline) ProcessBatch(ctx context.Context, feedName string, merchantID *int, records []*models.RawProductRecord) (*models.BatchStats, error) {
	started := time.Now().UTC()
	stats := &models.BatchStats{TotalRows: len(records)}

	log := &models.IngestionLog{
		FeedName:   &feedName,
		MerchantID: merchantID,
		StartedAt:  started,
		TotalRows:  len(records),
		Status:     models.IngestionStatusRunning,
	}
	if err := p.repo.CreateIngestionLog(ctx, log); err != nil {
		return nil, fmt.Errorf("failed to create ingestion log: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"feed":      feedName,
		"totalRows": len(records),
		"logId":     log.ID,
	}).Info("Starting curation batch")

	scored, err := p.scoreRecords(ctx, records)
	if err != nil {
		p.failLog(ctx, log, stats, started, err)
		return stats, err
	}

	for _, sr := range scored {
		if err := ctx.Err(); err != nil {
			p.failLog(ctx, log, stats, started, err)
			return stats, err
		}
		p.persistRecord(ctx, sr, log, stats)
	}

	summary, err := p.RunCuration(ctx)
	if err != nil {
		p.failLog(ctx, log, stats, started, err)
		return stats, err
	}
	stats.Duplicates = summary.Duplicates

	stats.Elapsed = time.Since(started)
	p.completeLog(ctx, log, stats, started)

	if p.publisher != nil {
		p.publisher.PublishBatchCompleted(ctx, log.ID, stats)
	}

	p.logger.WithFields(logrus.Fields{
		"feed":       feedName,
		"processed":  stats.Processed,
		"new":        stats.NewProducts,
		"updated":    stats.UpdatedProducts,
		"skipped":    stats.Skipped,
		"invalid":    stats.Invalid,
		"duplicates": stats.Duplicates,
		"elapsed":    stats.Elapsed.String(),
	}).Info("Curation batch completed")

	return stats, nil
}

// scoreRecords fans scoring and moderation out across workers in chunk
// order. Output order matches input order.
func (p *Pipeline) scoreRecords(ctx context.Context, records []*models.RawProductRecord) ([]*scoredRecord, error) {
	scored := make([]*scoredRecord, len(records))

	chunkSize := p.cfg.ChunkSize
	if chunkSize < 1 {
		chunkSize = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.WorkerCount)

	for start := 0; start < len(records); start += chunkSize {
		end := start + chunkSize
		if end > len(records) {
			end = len(records)
		}
		start, end := start, end
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				rec := records[i]
				score, completeness, issues := p.scorer.Score(rec)
				flagged, term := p.screener.Check(rec)
				scored[i] = &scoredRecord{
					record:       rec,
					quality:      score,
					completeness: completeness,
					issues:       issues,
					nsfw:         flagged,
					nsfwTerm:     term,
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scored, nil
}

// persistRecord upserts one scored row. Rows whose content hash is unchanged
// are skipped, which makes interrupted batches cheap to re-run.
func (p *Pipeline) persistRecord(ctx context.Context, sr *scoredRecord, log *models.IngestionLog, stats *models.BatchStats) {
	rec := sr.record
	stats.Processed++

	if strings.TrimSpace(rec.MerchantProductID) == "" || strings.TrimSpace(rec.Name) == "" {
		stats.Invalid++
		log.FailedRows++
		return
	}

	brand := ""
	if rec.Brand != nil {
		brand = *rec.Brand
	}
	hash := dedup.ContentHash(rec.Name, brand, rec.SearchPrice, rec.MerchantID)

	existing, err := p.repo.FindByMerchantKey(ctx, rec.MerchantID, rec.MerchantProductID)
	if err != nil {
		p.logger.WithError(err).WithFields(logrus.Fields{
			"merchantId":        rec.MerchantID,
			"merchantProductId": rec.MerchantProductID,
		}).Error("Failed to look up product")
		stats.Invalid++
		log.FailedRows++
		return
	}

	p.tallyQuality(sr, stats)

	if existing != nil && existing.ProductHash == hash {
		stats.Skipped++
		log.ProcessedRows++
		return
	}

	product := p.applyRecord(existing, sr, hash)
	if existing == nil {
		if err := p.repo.CreateProduct(ctx, product); err != nil {
			p.logger.WithError(err).WithField("merchantProductId", rec.MerchantProductID).Error("Failed to create product")
			stats.Invalid++
			log.FailedRows++
			return
		}
		stats.NewProducts++
		log.NewProducts++
	} else {
		if err := p.repo.UpdateProduct(ctx, product); err != nil {
			p.logger.WithError(err).WithField("productId", product.ID).Error("Failed to update product")
			stats.Invalid++
			log.FailedRows++
			return
		}
		stats.UpdatedProducts++
		log.UpdatedProducts++
	}
	log.ProcessedRows++

	p.ledger.Record(ctx, product.ID, &log.ID, sr.issues)
	reported := make(map[string]bool, len(sr.issues)+2)
	for _, issue := range sr.issues {
		reported[issue.Type] = true
	}
	if sr.nsfw {
		reported[models.IssueNSFWContent] = true
		p.ledger.RecordOne(ctx, &product.ID, models.IssueNSFWContent, models.SeverityCritical, map[string]interface{}{
			"matchedTerm": sr.nsfwTerm,
		})
	}
	if sr.quality < p.cfg.MinQualityScore {
		reported[models.IssueLowQualityScore] = true
		p.ledger.RecordOne(ctx, &product.ID, models.IssueLowQualityScore, models.SeverityWarning, map[string]interface{}{
			"qualityScore": sr.quality,
			"threshold":    p.cfg.MinQualityScore,
		})
	}
	if existing != nil {
		p.ledger.Reconcile(ctx, product.ID, reported)
	}
}

func (p *Pipeline) tallyQuality(sr *scoredRecord, stats *models.BatchStats) {
	critical := false
	for _, issue := range sr.issues {
		if issue.Severity == models.SeverityCritical {
			critical = true
			break
		}
	}
	if critical {
		stats.Invalid++
	} else {
		stats.Valid++
	}
	if sr.quality < p.cfg.MinQualityScore {
		stats.LowQuality++
	}
	if sr.nsfw {
		stats.NSFWFlagged++
	}
}

// applyRecord maps a scored feed row onto a new or existing product
func (p *Pipeline) applyRecord(existing *models.Product, sr *scoredRecord, hash string) *models.Product {
	rec := sr.record
	now := time.Now().UTC()

	product := existing
	if product == nil {
		product = &models.Product{
			ID:                uuid.New(),
			MerchantProductID: rec.MerchantProductID,
			MerchantID:        rec.MerchantID,
			IngestedAt:        now,
		}
	}

	product.MerchantName = rec.MerchantName
	product.FeedProductID = rec.FeedProductID
	product.Name = strings.TrimSpace(rec.Name)
	product.Brand = rec.Brand
	product.BrandID = rec.BrandID
	product.Description = rec.Description
	product.ShortDescription = rec.ShortDescription
	product.CategoryName = rec.CategoryName
	product.CategoryID = rec.CategoryID
	product.MerchantCategory = rec.MerchantCategory
	product.SearchPrice = rec.SearchPrice
	product.StorePrice = rec.StorePrice
	product.RRPPrice = rec.RRPPrice
	product.Currency = rec.Currency
	product.DeliveryCost = rec.DeliveryCost
	product.ImageURL = rec.ImageURL
	product.LargeImageURL = rec.LargeImageURL
	product.AlternateImages = models.StringArray(rec.AlternateImages)
	product.SuitableFor = rec.SuitableFor
	product.FashionCategory = rec.FashionCategory
	product.Size = rec.Size
	product.Material = rec.Material
	product.Pattern = rec.Pattern
	product.Colour = rec.Colour
	product.InStock = rec.InStock
	product.StockQuantity = rec.StockQuantity
	product.StockStatus = rec.StockStatus
	product.GTIN = rec.GTIN
	product.MPN = rec.MPN
	product.DeepLink = rec.DeepLink
	product.MerchantDeepLink = rec.MerchantDeepLink
	product.LastUpdated = rec.LastUpdated
	if product.LastUpdated == nil {
		product.LastUpdated = &now
	}

	product.QualityScore = sr.quality
	product.CompletenessScore = sr.completeness
	product.IsNSFW = sr.nsfw
	product.ProductHash = hash
	product.IsActive = true
	product.UpdatedAt = now

	return product
}

// CurationSummary reports the outcome of one curation pass
type CurationSummary struct {
	Products      int
	DuplicateSets int
	Duplicates    int
	CatalogSize   int
	RemovalsAdded int
}

// RunCuration re-resolves duplicates, re-evaluates lifecycle state and
// reassembles the catalog view over the full active record set.
func (p *Pipeline) RunCuration(ctx context.Context) (*CurationSummary, error) {
	products, err := p.repo.GetActiveProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active products: %w", err)
	}
	if len(products) == 0 {
		p.logger.Info("No active products, skipping curation pass")
		return &CurationSummary{}, nil
	}

	// Rescore from raw fields first. Resolution discounts duplicate scores,
	// so resolving without a rescore would compound the discount run over run.
	if err := p.rescore(ctx, products); err != nil {
		return nil, err
	}

	resolution, err := p.resolver.Resolve(ctx, products)
	if err != nil {
		return nil, fmt.Errorf("duplicate resolution failed: %w", err)
	}
	if resolution.ClusterDegraded {
		p.ledger.RecordOne(ctx, nil, models.IssueClusterUnsolved, models.SeverityWarning, map[string]interface{}{
			"products": len(products),
		})
	}
	if err := p.repo.CommitDuplicateResolution(ctx, products, resolution.Links); err != nil {
		return nil, fmt.Errorf("failed to commit duplicate resolution: %w", err)
	}
	if p.publisher != nil {
		methodByDuplicate := make(map[uuid.UUID]models.DuplicateMethod, len(resolution.Links))
		for _, link := range resolution.Links {
			methodByDuplicate[link.DuplicateID] = link.Method
		}
		for _, set := range resolution.Sets {
			ids := make([]uuid.UUID, len(set.Duplicates))
			method := models.MethodExactHash
			for i, d := range set.Duplicates {
				ids[i] = d.ID
				if i == 0 {
					if m, ok := methodByDuplicate[d.ID]; ok {
						method = m
					}
				}
			}
			p.publisher.PublishDuplicateResolved(ctx, set.Canonical.ID, ids, method)
		}
	}

	now := time.Now().UTC()
	var flagged []*models.Product
	for _, product := range products {
		hadReason := product.RemovalReason != nil
		p.tracker.Evaluate(now, product)
		if product.RemovalReason != nil && !hadReason {
			flagged = append(flagged, product)
		}
	}
	// Assembly derives the price bands the state save persists
	view := p.assembler.Assemble(products, now)

	if err := p.repo.SaveCurationState(ctx, products); err != nil {
		return nil, fmt.Errorf("failed to save curation state: %w", err)
	}
	if p.publisher != nil {
		for _, product := range flagged {
			p.publisher.PublishRemovalFlagged(ctx, product.ID, *product.RemovalReason)
		}
	}

	// Pointer validation walks every row: an active duplicate may point at
	// a canonical that has since gone inactive.
	if all, err := p.repo.GetAllProducts(ctx); err != nil {
		p.logger.WithError(err).Warn("Failed to load full product set for pointer validation")
	} else {
		p.ledger.ValidateReferences(ctx, all)
	}

	if err := p.repo.CacheCatalogView(ctx, view); err != nil {
		p.logger.WithError(err).Warn("Failed to cache catalog view")
	}
	p.exportCatalog(view)

	summary := &CurationSummary{
		Products:      len(products),
		DuplicateSets: len(resolution.Sets),
		Duplicates:    resolution.DuplicateCount,
		CatalogSize:   view.Total,
		RemovalsAdded: len(flagged),
	}
	p.logger.WithFields(logrus.Fields{
		"products":      summary.Products,
		"duplicateSets": summary.DuplicateSets,
		"duplicates":    summary.Duplicates,
		"catalogSize":   summary.CatalogSize,
	}).Info("Curation pass completed")

	return summary, nil
}

// rescore recomputes quality, completeness and moderation state for every
// product from its stored raw fields, in parallel.
func (p *Pipeline) rescore(ctx context.Context, products []*models.Product) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.WorkerCount)

	for _, product := range products {
		product := product
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec := recordFromProduct(product)
			score, completeness, _ := p.scorer.Score(rec)
			flagged, _ := p.screener.Check(rec)
			product.QualityScore = score
			product.CompletenessScore = completeness
			product.IsNSFW = flagged
			return nil
		})
	}
	return g.Wait()
}

// ReevaluateAll is the scheduled full re-evaluation over the active record
// set; the curation pass itself rescores every product.
func (p *Pipeline) ReevaluateAll(ctx context.Context) error {
	started := time.Now().UTC()
	summary, err := p.RunCuration(ctx)
	if err != nil {
		return err
	}
	p.logger.WithFields(logrus.Fields{
		"products": summary.Products,
		"elapsed":  time.Since(started).String(),
	}).Info("Full re-evaluation completed")
	return nil
}

// recordFromProduct projects a stored product back into feed-row shape so
// scheduled re-evaluation can reuse the scorer unchanged
func recordFromProduct(p *models.Product) *models.RawProductRecord {
	return &models.RawProductRecord{
		MerchantProductID: p.MerchantProductID,
		MerchantID:        p.MerchantID,
		MerchantName:      p.MerchantName,
		Name:              p.Name,
		Brand:             p.Brand,
		BrandID:           p.BrandID,
		Description:       p.Description,
		ShortDescription:  p.ShortDescription,
		CategoryName:      p.CategoryName,
		CategoryID:        p.CategoryID,
		MerchantCategory:  p.MerchantCategory,
		SearchPrice:       p.SearchPrice,
		StorePrice:        p.StorePrice,
		RRPPrice:          p.RRPPrice,
		Currency:          p.Currency,
		DeliveryCost:      p.DeliveryCost,
		ImageURL:          p.ImageURL,
		LargeImageURL:     p.LargeImageURL,
		AlternateImages:   []string(p.AlternateImages),
		SuitableFor:       p.SuitableFor,
		FashionCategory:   p.FashionCategory,
		Size:              p.Size,
		Material:          p.Material,
		Pattern:           p.Pattern,
		Colour:            p.Colour,
		InStock:           p.InStock,
		StockQuantity:     p.StockQuantity,
		StockStatus:       p.StockStatus,
		GTIN:              p.GTIN,
		MPN:               p.MPN,
		LastUpdated:       p.LastUpdated,
	}
}

func (p *Pipeline) exportCatalog(view *models.CatalogView) {
	if p.cfg.CatalogExportDir == "" {
		return
	}
	stamp := view.AssembledAt.Format("20060102-150405")
	path := filepath.Join(p.cfg.CatalogExportDir, fmt.Sprintf("catalog-%s.xlsx", stamp))
	if err := catalog.ExportXLSX(view, path); err != nil {
		p.logger.WithError(err).WithField("path", path).Warn("Failed to export catalog workbook")
		return
	}
	p.logger.WithFields(logrus.Fields{
		"path":    path,
		"entries": view.Total,
	}).Info("Catalog workbook exported")
}

func (p *Pipeline) failLog(ctx context.Context, log *models.IngestionLog, stats *models.BatchStats, started time.Time, cause error) {
	stats.Elapsed = time.Since(started)
	now := time.Now().UTC()
	msg := cause.Error()
	log.CompletedAt = &now
	log.Status = models.IngestionStatusFailed
	log.ErrorMessage = &msg
	log.RowsPerSecond = rowsPerSecond(log.ProcessedRows, stats.Elapsed)
	if err := p.repo.UpdateIngestionLog(ctx, log); err != nil {
		p.logger.WithError(err).Error("Failed to mark ingestion log as failed")
	}
}

func (p *Pipeline) completeLog(ctx context.Context, log *models.IngestionLog, stats *models.BatchStats, started time.Time) {
	now := time.Now().UTC()
	log.CompletedAt = &now
	log.Status = models.IngestionStatusCompleted
	log.DuplicatesFound = stats.Duplicates
	log.RowsPerSecond = rowsPerSecond(log.ProcessedRows, stats.Elapsed)
	if err := p.repo.UpdateIngestionLog(ctx, log); err != nil {
		p.logger.WithError(err).Error("Failed to complete ingestion log")
	}
}

func rowsPerSecond(rows int, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(rows) / elapsed.Seconds()
}
