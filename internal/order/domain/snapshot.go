package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// SnapshotVersion is written into every new snapshot envelope.
const SnapshotVersion = 1

type snapshotEnvelope struct {
	Version int            `json:"v"`
	Items   []snapshotItem `json:"items"`
}

type snapshotItem struct {
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// legacyItem is the bare-array layout written before snapshots were versioned.
type legacyItem struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Total    decimal.Decimal `json:"total"`
}

func EncodeSnapshot(items []LineItem) (string, error) {
	env := snapshotEnvelope{
		Version: SnapshotVersion,
		Items:   make([]snapshotItem, 0, len(items)),
	}
	for _, item := range items {
		env.Items = append(env.Items, snapshotItem(item))
	}
	b, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	return string(b), nil
}

func DecodeSnapshot(blob string) ([]LineItem, error) {
	raw := bytes.TrimSpace([]byte(blob))
	if len(raw) > 0 && raw[0] == '[' {
		return decodeLegacy(raw)
	}

	var env snapshotEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if env.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedSnapshot, env.Version)
	}

	items := make([]LineItem, 0, len(env.Items))
	for _, it := range env.Items {
		items = append(items, LineItem(it))
	}
	return items, nil
}

func decodeLegacy(raw []byte) ([]LineItem, error) {
	var legacy []legacyItem
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return nil, fmt.Errorf("decode legacy snapshot: %w", err)
	}
	items := make([]LineItem, 0, len(legacy))
	for _, it := range legacy {
		items = append(items, LineItem{
			Name:      it.Name,
			UnitPrice: it.Price,
			Quantity:  it.Quantity,
			LineTotal: it.Total,
		})
	}
	return items, nil
}
