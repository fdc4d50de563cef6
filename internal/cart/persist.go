package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"go.uber.org/zap"
)

// Only the items are stored. Totals are derived on read.
func (s *Store) persist(ctx context.Context, items []domain.LineItem) error {
	if items == nil {
		items = []domain.LineItem{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	return s.kv.Set(ctx, s.key, string(b))
}

func (s *Store) load(ctx context.Context) []domain.LineItem {
	log := logger.WithTrace(ctx, s.logger)

	raw, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		log.Warn("failed to read stored cart, starting empty", zap.Error(err))
		return nil
	}

	items, err := decodeItems(raw)
	if err != nil {
		log.Warn("stored cart is malformed, starting empty", zap.Error(err))
		return nil
	}
	return items
}

// legacyCart is the older stored shape that carried total and itemCount
// next to the items. The aggregates are ignored.
type legacyCart struct {
	Items []domain.LineItem `json:"items"`
}

// decodeItems parses stored items and restores the cart invariants: lines
// with a non-positive quantity are dropped and duplicate (product, size)
// lines are merged into the first one.
func decodeItems(raw string) ([]domain.LineItem, error) {
	data := bytes.TrimSpace([]byte(raw))

	var stored []domain.LineItem
	if len(data) > 0 && data[0] == '{' {
		var legacy legacyCart
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, fmt.Errorf("unmarshal cart failed: %w", err)
		}
		stored = legacy.Items
	} else if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}

	items := make([]domain.LineItem, 0, len(stored))
	for _, it := range stored {
		if it.Quantity < 1 {
			continue
		}
		if idx := indexOf(items, it.ProductID, it.Size); idx >= 0 {
			items[idx].Quantity += it.Quantity
			continue
		}
		items = append(items, it)
	}
	return items, nil
}
