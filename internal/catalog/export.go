package catalog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"
	"curation-service/internal/models"
)

var exportHeaders = []string{
	"id", "merchant_id", "merchant_product_id", "name", "brand", "category",
	"search_price", "rrp_price", "currency", "price_band",
	"discount_pct", "quality_score", "completeness_score",
	"freshness_status", "quality_rank", "category_rank", "brand_rank",
}

// ExportXLSX writes the assembled catalog view to an Excel workbook
func ExportXLSX(view *models.CatalogView, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Catalog"
	f.SetSheetName("Sheet1", sheetName)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, h)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for rowIdx, entry := range view.Entries {
		for colIdx, value := range exportRow(&entry) {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save catalog workbook: %w", err)
	}
	return nil
}

// ExportCSV writes the assembled catalog view as CSV
func ExportCSV(view *models.CatalogView, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create catalog export: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(exportHeaders); err != nil {
		return err
	}
	for _, entry := range view.Entries {
		row := exportRow(&entry)
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprintf("%v", v)
		}
		if err := writer.Write(cells); err != nil {
			return err
		}
	}
	return nil
}

func exportRow(e *models.CatalogEntry) []interface{} {
	return []interface{}{
		e.ID.String(),
		e.MerchantID,
		e.MerchantProductID,
		e.Name,
		strOrEmpty(e.Brand),
		strOrEmpty(e.CategoryName),
		floatOrEmpty(e.SearchPrice),
		floatOrEmpty(e.RRPPrice),
		strOrEmpty(e.Currency),
		bandOrEmpty(e.PriceBand),
		e.DiscountPercentage,
		e.QualityScore,
		e.CompletenessScore,
		string(e.FreshnessStatus),
		e.QualityRank,
		e.CategoryRank,
		e.BrandRank,
	}
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func floatOrEmpty(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', 2, 64)
}

func bandOrEmpty(b *models.PriceBand) string {
	if b == nil {
		return ""
	}
	return string(*b)
}
