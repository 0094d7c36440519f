// Package merge folds a guest cart into the server cart of a user who just
// signed in or signed up.
package merge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"strings"

	"github.com/google/uuid"

	"storefront/internal/domain"
	cartrepo "storefront/internal/repository/cart"
)

type variantLookup interface {
	GetByID(ctx context.Context, id string) (*domain.ProductVariant, error)
}

// GuestSource is the guest cart being merged. Destroy runs only after the
// merge has committed.
type GuestSource interface {
	Lines() []domain.CartLine
	AnonymousID() string
	// Nonce changes every time the cart is refilled after Destroy.
	Nonce() string
	Destroy(ctx context.Context) error
}

type Service struct {
	repo     cartrepo.Repository
	variants variantLookup
	logger   *log.Logger
}

func New(repo cartrepo.Repository, variants variantLookup, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{repo: repo, variants: variants, logger: logger}
}

// Merge adds every guest line to the user's cart, creating the cart when
// needed. Lines for the same variant add up; new variants keep the guest
// price snapshot. A non-empty attemptToken is recorded once per user and a
// repeated token returns the cart untouched. Variants that no longer exist
// are skipped, including ones deleted while the merge runs.
func (s *Service) Merge(ctx context.Context, userID string, lines []domain.CartLine, attemptToken string) (*domain.Cart, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.ErrUnauthorized
	}
	guest, err := s.knownLines(ctx, domain.CollapseLines(lines))
	if err != nil {
		return nil, domain.AsTransactionFailure(err)
	}

	var (
		merged  *domain.Cart
		applied int
	)
	err = s.repo.RunInTx(ctx, func(tx cartrepo.Tx) error {
		cart, err := tx.LockOrCreateCart(ctx, userID)
		if err != nil {
			return err
		}
		if attemptToken != "" {
			fresh, err := tx.RecordMerge(ctx, userID, attemptToken)
			if err != nil {
				return err
			}
			if !fresh {
				s.logger.Printf("merge: user_id=%s token=%s already applied", userID, attemptToken)
				merged = cart
				return nil
			}
		}
		applied = 0
		for _, l := range guest {
			err := tx.AddToLine(ctx, cart.ID, l)
			if errors.Is(err, domain.ErrNotFound) {
				s.logger.Printf("merge: skip vanished variant_id=%s", l.ProductVariantID)
				continue
			}
			if err != nil {
				return err
			}
			applied++
		}
		merged, err = tx.Load(ctx, cart.ID)
		return err
	})
	if err != nil {
		s.logger.Printf("merge: user_id=%s lines=%d error=%v", userID, len(guest), err)
		return nil, domain.AsTransactionFailure(err)
	}
	s.logger.Printf("merge: user_id=%s cart_id=%s merged_lines=%d", userID, merged.ID, applied)
	return merged, nil
}

// MergeGuestCart merges src and destroys it afterwards. The attempt token is
// derived from the guest id, the nonce and the lines, so replaying the same
// filling after a lost response is a no-op while a refill under the same
// anonymous session merges again. A failed merge leaves src intact.
func (s *Service) MergeGuestCart(ctx context.Context, userID string, src GuestSource) (*domain.Cart, error) {
	lines := src.Lines()
	token := ""
	if nonce := src.Nonce(); nonce != "" {
		token = AttemptToken(src.AnonymousID(), nonce, lines)
	}
	cart, err := s.Merge(ctx, userID, lines, token)
	if err != nil {
		return nil, err
	}
	if err := src.Destroy(ctx); err != nil {
		// The token is recorded, so a retry with the same cart is harmless.
		s.logger.Printf("merge: destroy guest cart user_id=%s error=%v", userID, err)
	}
	return cart, nil
}

// AttemptToken returns a deterministic token for one filling of a guest cart.
func AttemptToken(anonymousID, nonce string, lines []domain.CartLine) string {
	type entry struct {
		V string `json:"v"`
		Q int    `json:"q"`
		P int64  `json:"p"`
	}
	entries := make([]entry, 0, len(lines))
	for _, l := range domain.CollapseLines(lines) {
		entries = append(entries, entry{V: l.ProductVariantID, Q: l.Quantity, P: l.UnitPriceCents})
	}
	body, _ := json.Marshal(entries)
	return "guest:" + uuid.NewSHA1(uuid.NameSpaceOID, append([]byte(anonymousID+"\n"+nonce+"\n"), body...)).String()
}

func (s *Service) knownLines(ctx context.Context, lines []domain.CartLine) ([]domain.CartLine, error) {
	if s.variants == nil {
		return lines, nil
	}
	out := lines[:0]
	for _, l := range lines {
		_, err := s.variants.GetByID(ctx, l.ProductVariantID)
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Printf("merge: skip unknown variant_id=%s", l.ProductVariantID)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}
