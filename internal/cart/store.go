package cart

import (
	"context"
	"fmt"
	"log/slog"
)

// Store loads and saves a client's cart as a single unit. Every mutation
// rewrites the whole serialized sequence.
type Store struct {
	slot Slot
}

func NewStore(slot Slot) *Store {
	return &Store{slot: slot}
}

func slotKey(session string) string {
	return "cart:" + session
}

// Load returns the session's cart. Missing or unreadable content is an empty
// cart; only slot I/O failures are errors.
func (s *Store) Load(ctx context.Context, session string) (*Cart, error) {
	raw, ok, err := s.slot.Load(ctx, slotKey(session))
	if err != nil {
		return nil, fmt.Errorf("%w: load cart: %w", ErrSlotUnavailable, err)
	}
	return s.decode(ctx, session, raw, ok), nil
}

func (s *Store) decode(ctx context.Context, session, raw string, ok bool) *Cart {
	if !ok {
		return New()
	}
	c, valid := Decode(raw)
	if !valid {
		slog.DebugContext(ctx, "discarding unreadable cart payload", "session", session)
	}
	return c
}

// mutate applies fn to the stored cart and writes the result back as one
// atomic slot update, so concurrent requests on a session don't lose lines.
// When fn fails nothing is written and its error is returned as is.
func (s *Store) mutate(ctx context.Context, session string, fn func(*Cart) error) (*Cart, error) {
	var (
		result *Cart
		fnErr  error
	)
	err := s.slot.Update(ctx, slotKey(session), func(raw string, ok bool) (string, error) {
		c := s.decode(ctx, session, raw, ok)
		result = c
		if fnErr = fn(c); fnErr != nil {
			return "", fnErr
		}
		return Encode(c)
	})
	if fnErr != nil {
		return result, fnErr
	}
	if err != nil {
		return nil, fmt.Errorf("%w: save cart: %w", ErrSlotUnavailable, err)
	}
	return result, nil
}

// Add appends it and persists the cart.
func (s *Store) Add(ctx context.Context, session string, it Item) (*Cart, error) {
	return s.mutate(ctx, session, func(c *Cart) error {
		c.Add(it)
		return nil
	})
}

// Remove drops the line at index. Nothing is written on ErrOutOfRange.
func (s *Store) Remove(ctx context.Context, session string, index int) (*Cart, error) {
	return s.mutate(ctx, session, func(c *Cart) error {
		return c.Remove(index)
	})
}

// Clear removes the stored cart entirely.
func (s *Store) Clear(ctx context.Context, session string) error {
	if err := s.slot.Delete(ctx, slotKey(session)); err != nil {
		return fmt.Errorf("%w: clear cart: %w", ErrSlotUnavailable, err)
	}
	return nil
}
