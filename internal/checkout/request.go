package checkout

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront/internal/apperr"
)

// Request is one checkout attempt. Quantities are kept as the raw strings
// sent by the client and parsed per line; a nil map means the client sent
// no quantities object at all.
type Request struct {
	UserID           uuid.UUID
	SelectedProducts []string
	Quantities       map[string]string
}

// OutOfStockItem names one product that could not be fulfilled.
type OutOfStockItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	Requested string    `json:"requested"`
	Available int       `json:"available"`
}

// validate checks the request shape without touching storage and returns
// the selected ids deduplicated in selection order.
func (r Request) validate() ([]uuid.UUID, map[uuid.UUID]string, error) {
	if len(r.SelectedProducts) == 0 {
		return nil, nil, apperr.New(apperr.KindInvalidRequest, "no products selected")
	}
	if r.Quantities == nil {
		return nil, nil, apperr.New(apperr.KindInvalidRequest, "quantities must be an object keyed by product id")
	}

	ids := make([]uuid.UUID, 0, len(r.SelectedProducts))
	seen := make(map[uuid.UUID]struct{}, len(r.SelectedProducts))
	var invalid []string
	for _, raw := range r.SelectedProducts {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			invalid = append(invalid, raw)
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(invalid) > 0 {
		return nil, nil, apperr.New(apperr.KindInvalidRequest, "invalid products selected").
			WithDetails(map[string]any{"invalid_products": invalid})
	}

	quantities := make(map[uuid.UUID]string, len(r.Quantities))
	for key, value := range r.Quantities {
		id, err := uuid.Parse(strings.TrimSpace(key))
		if err != nil {
			// keys for unselected or malformed ids are not part of the order
			continue
		}
		quantities[id] = value
	}

	return ids, quantities, nil
}

// parseQuantity accepts positive base-10 integers only.
func parseQuantity(raw string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
