package deal

import (
	"context"
	"fmt"
	"log"

	"flyerchef/internal/platform/flipp"
)

// Record is a normalized deal derived from a flyer item. Records live only
// for the duration of a generation request; they are never persisted on
// their own.
type Record struct {
	Merchant  string `json:"merchant"`
	FlyerID   int64  `json:"flyer_id"`
	Name      string `json:"name"`
	Price     string `json:"price"`
	ValidFrom string `json:"valid_from"`
	ValidTo   string `json:"valid_to"`
}

// FlyerSource defines the interface for the external flyer aggregator.
type FlyerSource interface {
	GroceryFlyers(ctx context.Context, postalCode string) ([]flipp.Flyer, error)
	FlyerItems(ctx context.Context, flyerID int64) ([]flipp.Item, error)
}

// Fetcher aggregates flyer items for a postal code into deal records.
type Fetcher struct {
	source FlyerSource
}

// NewFetcher creates a new Fetcher.
func NewFetcher(source FlyerSource) *Fetcher {
	return &Fetcher{source: source}
}

// FetchDeals lists the grocery flyers for a postal code and collects their
// items into deal records, preserving flyer order then item order. A flyer
// whose items cannot be fetched is skipped and counted; a partial result is
// preferred over total failure. Zero flyers is a valid outcome, not an error.
func (f *Fetcher) FetchDeals(ctx context.Context, postalCode string) ([]Record, int, error) {
	flyers, err := f.source.GroceryFlyers(ctx, postalCode)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch grocery flyers: %w", err)
	}

	records := []Record{}
	skipped := 0
	for _, flyer := range flyers {
		items, err := f.source.FlyerItems(ctx, flyer.ID)
		if err != nil {
			log.Printf("skipping flyer %d (%s): %v", flyer.ID, flyer.Merchant, err)
			skipped++
			continue
		}
		for _, item := range items {
			records = append(records, Record{
				Merchant:  flyer.Merchant,
				FlyerID:   flyer.ID,
				Name:      item.Name,
				Price:     item.Price,
				ValidFrom: item.ValidFrom,
				ValidTo:   item.ValidTo,
			})
		}
	}

	return records, skipped, nil
}
