package guestcart

import (
	"encoding/json"
	"fmt"

	"storefront/internal/domain"
)

const snapshotVersion = 1

// Snapshot is the persisted form of a guest cart. Every saved snapshot is
// complete on its own, so a crash between two writes never leaves a mix.
type Snapshot struct {
	Version     int               `json:"version"`
	AnonymousID string            `json:"anonymousId,omitempty"`
	// Nonce names one filling of the cart. It is assigned by the first add
	// after creation or Destroy and survives Clear.
	Nonce       string            `json:"nonce,omitempty"`
	Lines       []domain.CartLine `json:"lines"`
}

// EncodeSnapshot serializes a snapshot to JSON.
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	s.Version = snapshotVersion
	if s.Lines == nil {
		s.Lines = []domain.CartLine{}
	}
	return json.Marshal(s)
}

// DecodeSnapshot parses a stored snapshot. An empty blob yields an empty
// snapshot. Duplicate variants are folded into one line.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	if len(data) == 0 {
		return Snapshot{Version: snapshotVersion}, nil
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode guest cart: %w", err)
	}
	if s.Version > snapshotVersion {
		return Snapshot{}, fmt.Errorf("decode guest cart: unsupported version %d", s.Version)
	}
	s.Version = snapshotVersion
	s.Lines = normalize(s.Lines)
	return s, nil
}

// normalize keeps one line per variant in first-seen order. Negative
// quantities are clamped to zero; zero lines survive so a stored KeepZero
// cart reads back unchanged.
func normalize(lines []domain.CartLine) []domain.CartLine {
	out := make([]domain.CartLine, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, l := range lines {
		if l.ProductVariantID == "" {
			continue
		}
		if l.Quantity < 0 {
			l.Quantity = 0
		}
		if i, ok := index[l.ProductVariantID]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		index[l.ProductVariantID] = len(out)
		out = append(out, l)
	}
	return out
}
