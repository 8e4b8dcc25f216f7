package cartclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// MergeFailure is a guest line that could not be committed to the server cart.
type MergeFailure struct {
	ProductID   string
	ProductName string
	Quantity    int64
	Err         error
}

// OutOfStock reports whether the server refused the line for lack of stock.
func (f MergeFailure) OutOfStock() bool { return IsInsufficientStock(f.Err) }

// MergeResult is the authoritative cart after the merge plus every guest
// line that was dropped on the way.
type MergeResult struct {
	Cart     *Cart
	Failures []MergeFailure
}

// Message is the single user-facing summary of the dropped lines, or "".
func (r *MergeResult) Message() string {
	n := len(r.Failures)
	if n == 0 {
		return ""
	}
	outOfStock := 0
	for _, f := range r.Failures {
		if f.OutOfStock() {
			outOfStock++
		}
	}
	switch {
	case outOfStock == n && n == 1:
		return "1 item could not be added — it is now out of stock"
	case outOfStock == n:
		return fmt.Sprintf("%d items could not be added — they are now out of stock", n)
	case n == 1:
		return "1 item could not be added to your cart"
	default:
		return fmt.Sprintf("%d items could not be added to your cart", n)
	}
}

// Merge replays the guest cart against the server cart, one line at a time
// and in order. A line the server refuses for good (out of stock, or the
// product is gone) is recorded and skipped. Any other error, such as a
// network failure, stops the merge and leaves that line and the ones after
// it in the guest cart, so Merge can simply be called again. Each guest line
// leaves the guest cart as soon as the server has answered for it, so a
// retried merge never adds a line twice. On success the guest cart is
// discarded and the server cart supersedes it.
func Merge(ctx context.Context, guest *LocalCartRepository, server CartRepository) (*MergeResult, error) {
	guestCart, err := guest.Get(ctx)
	if err != nil {
		return nil, err
	}

	result := &MergeResult{}
	for _, it := range guestCart.Items {
		_, err := server.AddItem(ctx, NewItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			UnitPrice:   it.UnitPriceSnapshot,
			Quantity:    it.Quantity,
		})
		if err != nil {
			if !refused(err) {
				log.Warn().Err(err).Str("product_id", it.ProductID).Msg("cartclient: merge interrupted")
				return nil, fmt.Errorf("cartclient: merge %s: %w", it.ProductID, err)
			}
			log.Warn().Err(err).Str("product_id", it.ProductID).Int64("qty", it.Quantity).Msg("cartclient: guest line not merged")
			result.Failures = append(result.Failures, MergeFailure{
				ProductID:   it.ProductID,
				ProductName: it.ProductName,
				Quantity:    it.Quantity,
				Err:         err,
			})
		}
		if _, err := guest.RemoveItem(ctx, it.ID); err != nil {
			return nil, err
		}
	}

	merged, err := server.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("cartclient: fetch merged cart: %w", err)
	}
	if err := guest.Discard(); err != nil {
		log.Warn().Err(err).Msg("cartclient: guest cart not discarded")
	}
	result.Cart = merged
	return result, nil
}

// refused reports whether the server answered with a refusal that a retry
// cannot change.
func refused(err error) bool {
	return IsInsufficientStock(err) || errors.Is(err, ErrNotFound)
}
