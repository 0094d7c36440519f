package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/money"
)

type VariantWriter interface {
	Upsert(ctx context.Context, v domain.ProductVariant) (*domain.ProductVariant, error)
}

// CSVImporter reads catalog CSV exports and inserts/updates product variants.
// Every row with a key is one variant; rows without a key only carry extra
// images for the variant above them.
type CSVImporter struct {
	reader   *csv.Reader
	variants VariantWriter
	currency string
}

// NewCSVImporter builds an importer that only accepts prices in currency.
func NewCSVImporter(r io.Reader, repo VariantWriter, currency string) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	return &CSVImporter{
		reader:   csvr,
		variants: repo,
		currency: strings.ToUpper(strings.TrimSpace(currency)),
	}
}

type csvRow struct {
	ID          string
	Key         string
	ProductName string
	VariantName string
	SKU         string
	Cents       int64
	Currency    string
	ImageURLs   []string
}

// Run parses CSV rows and upserts variants by key.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)

	var (
		current  *csvRow
		imported int
	)

	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row: %w", err)
		}

		row, err := parseRow(record, index)
		if err != nil {
			return imported, err
		}
		if row == nil {
			continue
		}

		if row.Key != "" {
			if current != nil {
				if err := i.save(ctx, current); err != nil {
					return imported, err
				}
				imported++
			}
			current = row
			continue
		}

		if current != nil && len(row.ImageURLs) > 0 {
			current.ImageURLs = append(current.ImageURLs, row.ImageURLs...)
		}
	}

	if current != nil {
		if err := i.save(ctx, current); err != nil {
			return imported, err
		}
		imported++
	}

	return imported, nil
}

func (i *CSVImporter) save(ctx context.Context, row *csvRow) error {
	if row.Key == "" || row.ProductName == "" || row.SKU == "" || row.Cents <= 0 {
		return fmt.Errorf("invalid variant row (missing required fields) for key %q", row.Key)
	}
	if row.ID != "" && len(row.ID) != 36 {
		return fmt.Errorf("invalid id for key %q: %s", row.Key, row.ID)
	}
	if i.currency != "" && row.Currency != "" && !strings.EqualFold(row.Currency, i.currency) {
		return fmt.Errorf("variant %q priced in %s, store currency is %s", row.Key, row.Currency, i.currency)
	}

	v := domain.ProductVariant{
		ID:          row.ID,
		Key:         row.Key,
		SKU:         row.SKU,
		ProductName: row.ProductName,
		VariantName: row.VariantName,
		PriceCents:  row.Cents,
	}
	if len(row.ImageURLs) > 0 {
		v.ImageURL = row.ImageURLs[0]
	}

	if _, err := i.variants.Upsert(ctx, v); err != nil {
		return fmt.Errorf("upsert variant %q: %w", row.Key, err)
	}
	return nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.TrimSpace(h)] = i
	}
	return idx
}

// parseRow reads the price from centAmount, or from a decimal amount column
// when centAmount is absent.
func parseRow(record []string, index map[string]int) (*csvRow, error) {
	key := pick(record, index, "key")
	imageURL := pick(record, index, "variants.images.url")
	if key == "" && imageURL == "" {
		return nil, nil
	}

	row := &csvRow{
		ID:          pick(record, index, "id"),
		Key:         key,
		ProductName: pick(record, index, "name.en"),
		VariantName: pick(record, index, "variants.name.en"),
		SKU:         pick(record, index, "variants.sku"),
		Currency:    pick(record, index, "variants.prices.value.currencyCode"),
	}
	if imageURL != "" {
		row.ImageURLs = []string{imageURL}
	}
	if key == "" {
		return row, nil
	}

	if centStr := pick(record, index, "variants.prices.value.centAmount"); centStr != "" {
		cents, err := strconv.ParseInt(centStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse centAmount for key %q: %w", key, err)
		}
		row.Cents = cents
	} else if amount := pick(record, index, "variants.prices.value.amount"); amount != "" {
		cents, err := money.ParseCents(amount)
		if err != nil {
			return nil, fmt.Errorf("parse amount for key %q: %w", key, err)
		}
		row.Cents = cents
	}
	return row, nil
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
