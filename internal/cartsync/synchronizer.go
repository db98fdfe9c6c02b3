// Package cartsync presents a single normalized cart list to the UI layer
// regardless of authentication state, and merges the locally persisted guest
// cart into the server-side cart exactly once per login transition.
package cartsync

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"storefront-client/internal/api"
	"storefront-client/internal/domain"
	"storefront-client/internal/session"
	"storefront-client/internal/storage"
)

// CartService defines the remote cart operations the synchronizer depends
// on. Consumers define this interface, not the HTTP client implementation;
// api.Client satisfies it.
type CartService interface {
	FetchCart(ctx context.Context, sess session.Session) ([]domain.CartLine, error)
	AddLine(ctx context.Context, sess session.Session, input api.AddLineInput) error
	RemoveLine(ctx context.Context, sess session.Session, lineID int64) error
}

// Synchronizer reconciles guest and server carts and publishes the
// normalized in-memory cart list. Every publish replaces the whole list, so
// the UI never observes a mix of stale and fresh lines.
type Synchronizer struct {
	store   storage.KeyValue
	service CartService
	logger  *zap.Logger

	mu       sync.Mutex
	items    []domain.CartLine
	onChange func([]domain.CartLine)
}

// NewSynchronizer creates a Synchronizer over the given local storage and
// remote cart service.
func NewSynchronizer(store storage.KeyValue, service CartService, logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{store: store, service: service, logger: logger}
}

// OnChange registers a callback invoked with a copy of the cart list on
// every publish.
func (s *Synchronizer) OnChange(fn func([]domain.CartLine)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Items returns a copy of the currently published cart list.
func (s *Synchronizer) Items() []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyLines(s.items)
}

// ReloadCart refreshes the published cart list for the current session.
//
// Guest sessions read the locally persisted cart (a corrupt payload counts
// as empty), normalize it and publish — no network involved. Authenticated
// sessions first merge any pending guest lines into the server cart, one
// request per line, then fetch the server cart as the new source of truth.
// The guest cart key is deleted only when every line merged; otherwise the
// unmerged lines are retained for the next reload.
func (s *Synchronizer) ReloadCart(ctx context.Context) error {
	sess := session.Resolve(ctx, s.store)

	records := s.readGuestCart(ctx)

	if !sess.IsAuthenticated() {
		s.publish(normalizeRecords(records))
		return nil
	}

	if len(records) > 0 {
		if err := s.mergeGuestCart(ctx, sess, records); err != nil {
			return err
		}
	}

	serverLines, err := s.service.FetchCart(ctx, sess)
	if err != nil {
		// Fall back to rendering whatever is still persisted locally; the
		// next reload starts over from the retained guest lines.
		s.logger.Warn("failed to fetch server cart, rendering local cart", zap.Error(err))
		s.publish(normalizeRecords(s.readGuestCart(ctx)))
		return err
	}

	s.publish(normalizeLines(serverLines))
	return nil
}

// mergeGuestCart pushes every guest line to the server, all requests in
// flight together, and updates local storage once they have all settled:
// full success deletes the guest cart key, partial failure rewrites it with
// exactly the lines that did not merge.
func (s *Synchronizer) mergeGuestCart(ctx context.Context, sess session.Session, records []domain.GuestRecord) error {
	merged := make([]bool, len(records))

	g, gctx := errgroup.WithContext(ctx)
	for i, rec := range records {
		i, rec := i, rec // per-iteration copies; required under the go 1.21 directive
		g.Go(func() error {
			if err := s.service.AddLine(gctx, sess, addInputFromRecord(rec)); err != nil {
				s.logger.Warn("guest cart line failed to merge",
					zap.Int64("product_id", rec.ProductID), zap.Error(err))
				return nil // per-line failures are retained, never abort the merge
			}
			merged[i] = true
			return nil
		})
	}
	_ = g.Wait() // goroutines always return nil; Wait is a settle barrier

	var unmerged []domain.GuestRecord
	for i, rec := range records {
		if !merged[i] {
			unmerged = append(unmerged, rec)
		}
	}

	if len(unmerged) == 0 {
		if err := s.store.Delete(ctx, storage.KeyCart); err != nil {
			s.logger.Error("failed to delete merged guest cart", zap.Error(err))
			return err
		}
		return nil
	}

	s.logger.Warn("guest cart merged partially, retaining unmerged lines",
		zap.Int("total", len(records)), zap.Int("unmerged", len(unmerged)))
	data, err := domain.EncodeGuestCart(unmerged)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, storage.KeyCart, string(data)); err != nil {
		s.logger.Error("failed to persist unmerged guest cart lines", zap.Error(err))
		return err
	}
	return nil
}

// RemoveCartItem removes one line from the cart.
//
// Guest mode filters the id out of the persisted cart and publishes
// immediately; removing an absent id is a no-op. Authenticated mode issues
// the delete request first and only updates the published list on success —
// on failure the line stays visible and the error is returned for the
// caller to surface. No automatic retry.
func (s *Synchronizer) RemoveCartItem(ctx context.Context, lineID int64) error {
	sess := session.Resolve(ctx, s.store)

	if !sess.IsAuthenticated() {
		records := s.readGuestCart(ctx)
		remaining := make([]domain.GuestRecord, 0, len(records))
		for _, rec := range records {
			if rec.ID != lineID {
				remaining = append(remaining, rec)
			}
		}

		data, err := domain.EncodeGuestCart(remaining)
		if err != nil {
			return err
		}
		if err := s.store.Set(ctx, storage.KeyCart, string(data)); err != nil {
			s.logger.Error("failed to persist guest cart after removal", zap.Error(err))
			return err
		}
		s.publish(normalizeRecords(remaining))
		return nil
	}

	if err := s.service.RemoveLine(ctx, sess, lineID); err != nil {
		s.logger.Warn("failed to remove cart line",
			zap.Int64("line_id", lineID), zap.Error(err))
		return err
	}

	s.mu.Lock()
	remaining := make([]domain.CartLine, 0, len(s.items))
	for _, line := range s.items {
		if line.ID != lineID {
			remaining = append(remaining, line)
		}
	}
	s.mu.Unlock()

	s.publish(remaining)
	return nil
}

// readGuestCart loads and decodes the persisted guest cart. Read failures
// and corrupt payloads both degrade to an empty cart.
func (s *Synchronizer) readGuestCart(ctx context.Context) []domain.GuestRecord {
	raw, ok, err := s.store.Get(ctx, storage.KeyCart)
	if err != nil {
		s.logger.Warn("failed to read guest cart from storage", zap.Error(err))
		return []domain.GuestRecord{}
	}
	if !ok {
		return []domain.GuestRecord{}
	}
	return domain.DecodeGuestCart([]byte(raw))
}

// publish atomically replaces the published list and notifies the observer.
func (s *Synchronizer) publish(lines []domain.CartLine) {
	s.mu.Lock()
	s.items = lines
	fn := s.onChange
	snapshot := copyLines(lines)
	s.mu.Unlock()

	if fn != nil {
		fn(snapshot)
	}
}

func normalizeRecords(records []domain.GuestRecord) []domain.CartLine {
	lines := make([]domain.CartLine, 0, len(records))
	for _, rec := range records {
		lines = append(lines, rec.Normalize())
	}
	return lines
}

// normalizeLines re-applies image normalization to server-provided lines so
// the published list is fully normalized no matter where it came from.
func normalizeLines(lines []domain.CartLine) []domain.CartLine {
	normalized := make([]domain.CartLine, 0, len(lines))
	for _, line := range lines {
		line.ProductImages = domain.NormalizeImages(line.ProductImages)
		normalized = append(normalized, line)
	}
	return normalized
}

func copyLines(lines []domain.CartLine) []domain.CartLine {
	out := make([]domain.CartLine, len(lines))
	copy(out, lines)
	return out
}

func addInputFromRecord(rec domain.GuestRecord) api.AddLineInput {
	input := api.AddLineInput{
		ProductID:     rec.ProductID,
		Quantity:      rec.Quantity,
		ProductName:   rec.ProductName,
		Images:        domain.NormalizeImages(rec.Images),
		UnitPrice:     rec.UnitPrice,
		UnitSalePrice: rec.UnitSalePrice,
		Variant:       rec.Variant,
	}
	if rec.Variant != nil {
		input.VariantID = &rec.Variant.ID
	}
	return input
}
