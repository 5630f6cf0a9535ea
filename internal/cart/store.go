package cart

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lesageromain2-creator/cafe-stockholm-commerce/internal/notify"
)

// Remote is the slice of the remote commerce API the store needs. The
// remote cart is the source of truth on conflict.
type Remote interface {
	FetchCart(ctx context.Context, sessionID string) ([]LineItem, error)
	UpsertItem(ctx context.Context, sessionID string, it LineItem) error
	RemoveItem(ctx context.Context, sessionID string, itemID string) error
}

// SnapshotStore persists a flat list of line items per session as a
// local fallback for when the remote cart is unreachable.
type SnapshotStore interface {
	Load(ctx context.Context, sessionID string) ([]LineItem, error)
	Save(ctx context.Context, sessionID string, items []LineItem) error
}

// Candidate is the input to AddItem.
type Candidate struct {
	ProductID string
	VariantID string
	Name      string
	SKU       string
	UnitPrice decimal.Decimal
	Quantity  int // defaults to 1
	MaxStock  int
	ImageRef  string
	Preview   io.Closer
}

// Store owns the cart state for one session. Mutations apply to local
// state immediately and in call order; reconciliation with the remote
// cart happens in the background and never blocks a mutation.
type Store struct {
	sessionID string
	remote    Remote
	snapshots SnapshotStore
	sink      notify.Sink
	logger    *log.Logger

	mu      sync.Mutex
	items   []LineItem
	pending []Mutation

	// syncMu serializes Sync runs so the journal prefix-trim below stays
	// valid; syncFailing is guarded by it.
	syncMu      sync.Mutex
	syncFailing bool

	syncInFlight atomic.Bool
	syncTimeout  time.Duration
}

// Options configures optional collaborators. Zero values mean "off".
type Options struct {
	Snapshots   SnapshotStore
	Sink        notify.Sink
	Logger      *log.Logger
	SyncTimeout time.Duration
}

func New(sessionID string, remote Remote, opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	sink := opts.Sink
	if sink == nil {
		sink = notify.NewLogSink(logger)
	}
	timeout := opts.SyncTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Store{
		sessionID:   sessionID,
		remote:      remote,
		snapshots:   opts.Snapshots,
		sink:        sink,
		logger:      logger,
		syncTimeout: timeout,
	}
}

// Restore loads the persisted snapshot, if any. Called once after New,
// before the store is handed to the UI layer.
func (s *Store) Restore(ctx context.Context) error {
	if s.snapshots == nil {
		return nil
	}
	items, err := s.snapshots.Load(ctx, s.sessionID)
	if err != nil {
		return fmt.Errorf("load cart snapshot: %w", err)
	}
	s.mu.Lock()
	if len(s.items) == 0 {
		s.items = items
	}
	s.mu.Unlock()
	return nil
}

// Close releases any transient resources still attached to line items.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		s.items[i].releasePreview()
	}
	s.items = nil
	s.pending = nil
}

// AddItem merges the candidate into the cart. An existing row with the
// same (productId, variantId) key has its quantity increased and clamped
// to the stock ceiling; exceeding MaxStock is resolved by clamping, not
// by raising an error. Schedules a background sync.
func (s *Store) AddItem(c Candidate) (LineItem, error) {
	if c.ProductID == "" {
		return LineItem{}, &ValidationError{Field: "productId", Message: "is required"}
	}
	if !c.UnitPrice.IsPositive() {
		return LineItem{}, &ValidationError{Field: "unitPrice", Message: "must be positive"}
	}
	if c.Quantity < 0 {
		return LineItem{}, &ValidationError{Field: "quantity", Message: "must not be negative"}
	}
	qty := c.Quantity
	if qty == 0 {
		qty = 1
	}

	s.mu.Lock()
	key := Key{ProductID: c.ProductID, VariantID: c.VariantID}
	var result LineItem
	if i, ok := s.indexOfKey(key); ok {
		s.items[i].Quantity = clampQuantity(s.items[i].Quantity+qty, s.items[i].MaxStock)
		result = s.items[i]
	} else {
		it := LineItem{
			ID:        uuid.NewString(),
			ProductID: c.ProductID,
			VariantID: c.VariantID,
			Name:      c.Name,
			SKU:       c.SKU,
			UnitPrice: c.UnitPrice,
			Quantity:  clampQuantity(qty, c.MaxStock),
			MaxStock:  c.MaxStock,
			ImageRef:  c.ImageRef,
			preview:   c.Preview,
		}
		s.items = append(s.items, it)
		result = it
	}
	s.pending = append(s.pending, Mutation{Kind: MutationUpsert, Key: key, Item: result})
	items := s.copyItems()
	s.mu.Unlock()

	s.persistSnapshot(items)
	s.scheduleSync()
	return result, nil
}

// UpdateQuantity sets a row's quantity, clamped to [1, MaxStock].
// Quantities below 1 are rejected; callers remove the row instead.
func (s *Store) UpdateQuantity(id string, quantity int) (LineItem, error) {
	if quantity <= 0 {
		return LineItem{}, &ValidationError{Field: "quantity", Message: "must be at least 1; remove the item instead"}
	}

	s.mu.Lock()
	i, ok := s.indexOfID(id)
	if !ok {
		s.mu.Unlock()
		return LineItem{}, &ValidationError{Field: "id", Message: "unknown line item"}
	}
	s.items[i].Quantity = clampQuantity(quantity, s.items[i].MaxStock)
	result := s.items[i]
	s.pending = append(s.pending, Mutation{Kind: MutationUpsert, Key: result.Key(), Item: result})
	items := s.copyItems()
	s.mu.Unlock()

	s.persistSnapshot(items)
	s.scheduleSync()
	return result, nil
}

// RemoveItem deletes a row and releases any transient resource the
// store owns for it.
func (s *Store) RemoveItem(id string) error {
	s.mu.Lock()
	i, ok := s.indexOfID(id)
	if !ok {
		s.mu.Unlock()
		return &ValidationError{Field: "id", Message: "unknown line item"}
	}
	it := s.items[i]
	s.items[i].releasePreview()
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.pending = append(s.pending, Mutation{Kind: MutationRemove, Key: it.Key(), Item: it})
	items := s.copyItems()
	s.mu.Unlock()

	s.persistSnapshot(items)
	s.scheduleSync()
	return nil
}

// Clear empties the cart, e.g. after a confirmed payment.
func (s *Store) Clear() {
	s.mu.Lock()
	for i := range s.items {
		it := s.items[i]
		s.items[i].releasePreview()
		s.pending = append(s.pending, Mutation{Kind: MutationRemove, Key: it.Key(), Item: it})
	}
	s.items = nil
	items := s.copyItems()
	s.mu.Unlock()

	s.persistSnapshot(items)
	s.scheduleSync()
}

// Items returns a copy of the current rows in insertion order.
func (s *Store) Items() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyItems()
}

// Subtotal is Σ(unitPrice × quantity) over current rows.
func (s *Store) Subtotal() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Subtotal(s.items)
}

// ItemCount is Σ(quantity) over current rows.
func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ItemCount(s.items)
}

// Sync pushes the pending mutation journal to the remote cart, fetches
// the remote state, and reconciles. A network failure is non-fatal: the
// local cart stays usable, pending mutations are kept for the next
// attempt, and the user gets one transient-error notification.
func (s *Store) Sync(ctx context.Context) error {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	s.mu.Lock()
	pending := make([]Mutation, len(s.pending))
	copy(pending, s.pending)
	s.mu.Unlock()

	acked := 0
	var pushErr error
	for _, m := range pending {
		switch m.Kind {
		case MutationRemove:
			pushErr = s.remote.RemoveItem(ctx, s.sessionID, m.Item.ID)
		default:
			pushErr = s.remote.UpsertItem(ctx, s.sessionID, m.Item)
		}
		if pushErr != nil {
			break
		}
		acked++
	}

	s.mu.Lock()
	// The pushed mutations are a prefix of the journal; anything newer
	// was appended after our copy and stays pending.
	s.pending = s.pending[acked:]
	s.mu.Unlock()

	if pushErr != nil {
		s.notifySyncFailure(ctx)
		return fmt.Errorf("push cart mutations: %w", pushErr)
	}

	remote, err := s.remote.FetchCart(ctx, s.sessionID)
	if err != nil {
		s.notifySyncFailure(ctx)
		return fmt.Errorf("fetch remote cart: %w", err)
	}
	s.syncFailing = false

	s.mu.Lock()
	merged := Reconcile(s.items, remote, s.pending)
	s.releaseDropped(merged)
	s.items = merged
	items := s.copyItems()
	s.mu.Unlock()

	s.persistSnapshot(items)
	return nil
}

// notifySyncFailure surfaces one transient-error notification per
// outage rather than one per retry. Caller holds syncMu.
func (s *Store) notifySyncFailure(ctx context.Context) {
	if s.syncFailing {
		return
	}
	s.syncFailing = true
	s.sink.Notify(ctx, notify.KindError, "Could not reach the store right now. Your cart is saved locally.")
}

// scheduleSync runs Sync in the background. A sync already in flight is
// enough: it pushes the whole journal, so overlapping runs are skipped.
func (s *Store) scheduleSync() {
	if s.remote == nil {
		return
	}
	if !s.syncInFlight.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer s.syncInFlight.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), s.syncTimeout)
		defer cancel()
		if err := s.Sync(ctx); err != nil {
			s.logger.Printf("cart sync for session %s: %v", s.sessionID, err)
		}
	}()
}

func (s *Store) persistSnapshot(items []LineItem) {
	if s.snapshots == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.snapshots.Save(ctx, s.sessionID, items); err != nil {
		s.logger.Printf("save cart snapshot for session %s: %v", s.sessionID, err)
	}
}

// releaseDropped closes previews on rows that did not survive the merge.
// Caller holds the lock.
func (s *Store) releaseDropped(merged []LineItem) {
	kept := make(map[Key]struct{}, len(merged))
	for _, it := range merged {
		kept[it.Key()] = struct{}{}
	}
	for i := range s.items {
		if _, ok := kept[s.items[i].Key()]; !ok {
			s.items[i].releasePreview()
		}
	}
}

func (s *Store) indexOfKey(k Key) (int, bool) {
	for i := range s.items {
		if s.items[i].Key() == k {
			return i, true
		}
	}
	return 0, false
}

func (s *Store) indexOfID(id string) (int, bool) {
	for i := range s.items {
		if s.items[i].ID == id {
			return i, true
		}
	}
	return 0, false
}

func (s *Store) copyItems() []LineItem {
	out := make([]LineItem, len(s.items))
	copy(out, s.items)
	return out
}
