package cartclient

import "context"

// CartRepository is one cart's storage strategy, chosen once per session:
// LocalCartRepository for guests (no ledger contact), RemoteCartRepository
// for authenticated users (every call reserves or releases on the server).
// Every method returns the resulting cart.
type CartRepository interface {
	Get(ctx context.Context) (*Cart, error)
	AddItem(ctx context.Context, item NewItem) (*Cart, error)
	// SetQuantity sets an absolute quantity; qty <= 0 removes the line.
	SetQuantity(ctx context.Context, itemID string, qty int64) (*Cart, error)
	RemoveItem(ctx context.Context, itemID string) (*Cart, error)
	Clear(ctx context.Context) (*Cart, error)
}
