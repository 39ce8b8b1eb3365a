package cart

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

type State int

const (
	StateEditing State = iota
	StateSubmitting
)

func (s State) String() string {
	if s == StateSubmitting {
		return "submitting"
	}
	return "editing"
}

// SubmitResult is what the sales backend returns for a created sale.
type SubmitResult struct {
	ID    string
	Folio string
}

// Submitter sends a sale to the sales backend.
type Submitter interface {
	CreateSale(ctx context.Context, payload Payload) (SubmitResult, error)
}

type SubmitterFunc func(ctx context.Context, payload Payload) (SubmitResult, error)

func (f SubmitterFunc) CreateSale(ctx context.Context, payload Payload) (SubmitResult, error) {
	return f(ctx, payload)
}

// Receipt describes a completed submission. StaleProductIDs lists the
// catalog entries whose stock changed and may need a refetch.
type Receipt struct {
	SaleID          string
	Folio           string
	Totals          Totals
	StaleProductIDs []int64
}

// Session is one checkout: a cart, its context, and the Editing/Submitting
// state machine. It belongs to a single checkout flow.
type Session struct {
	mu      sync.Mutex
	cart    Cart
	ctx     Context
	state   State
	taxRate decimal.Decimal

	// OnStale, when set, is called after a successful submission with the
	// product ids that were sold.
	OnStale func(productIDs []int64)
}

func NewSession(taxRate decimal.Decimal) *Session {
	if taxRate.IsNegative() {
		taxRate = DefaultTaxRate
	}
	return &Session{ctx: DefaultContext(), taxRate: taxRate}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Cart() Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart
}

func (s *Session) Context() Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

func (s *Session) TaxRate() decimal.Decimal {
	return s.taxRate
}

func (s *Session) Totals() Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Totals(s.taxRate)
}

func (s *Session) Add(product Product) error {
	return s.mutate(func(c Cart) (Cart, error) { return c.Add(product) })
}

func (s *Session) Remove(productID int64) error {
	return s.mutate(func(c Cart) (Cart, error) { return c.Remove(productID) })
}

func (s *Session) SetQuantity(productID int64, quantity int) error {
	return s.mutate(func(c Cart) (Cart, error) { return c.SetQuantity(productID, quantity) })
}

func (s *Session) SyncCatalog(products []Product) error {
	return s.mutate(func(c Cart) (Cart, error) { return c.SyncCatalog(products), nil })
}

// SetContext replaces the customer and payment data.
func (s *Session) SetContext(ctx Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSubmitting {
		return ErrBusy
	}
	s.ctx = ctx
	return nil
}

// Reset empties the cart and restores the default context. Used on cancel.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSubmitting {
		return ErrBusy
	}
	s.resetLocked()
	return nil
}

// Submit validates the cart, sends it, and resolves the state machine. On
// failure the cart and context are kept so the user can retry.
func (s *Session) Submit(ctx context.Context, submitter Submitter) (Receipt, error) {
	s.mu.Lock()
	if s.state == StateSubmitting {
		s.mu.Unlock()
		return Receipt{}, ErrBusy
	}
	payload, err := s.cart.BuildPayload(s.ctx)
	if err != nil {
		s.mu.Unlock()
		return Receipt{}, err
	}
	totals := s.cart.Totals(s.taxRate)
	sold := s.cart.ProductIDs()
	s.state = StateSubmitting
	s.mu.Unlock()

	result, err := submitter.CreateSale(ctx, payload)

	s.mu.Lock()
	s.state = StateEditing
	if err != nil {
		s.mu.Unlock()
		return Receipt{}, newSubmissionError(err)
	}
	s.resetLocked()
	onStale := s.OnStale
	s.mu.Unlock()

	if onStale != nil {
		onStale(sold)
	}

	return Receipt{
		SaleID:          result.ID,
		Folio:           receiptFolio(result),
		Totals:          totals,
		StaleProductIDs: sold,
	}, nil
}

func (s *Session) mutate(fn func(Cart) (Cart, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSubmitting {
		return ErrBusy
	}
	next, err := fn(s.cart)
	if err != nil {
		return err
	}
	s.cart = next
	return nil
}

func (s *Session) resetLocked() {
	s.cart = Cart{}
	s.ctx = DefaultContext()
}

func receiptFolio(result SubmitResult) string {
	switch {
	case result.Folio != "":
		return result.Folio
	case result.ID != "":
		return result.ID
	default:
		return "N/A"
	}
}
