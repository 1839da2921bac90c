package booking

import (
	"context"

	"github.com/Domenick1991/hotelbooking/internal/domain"
)

// ListBookings returns every stored booking in display form. The store is
// read only; normalization never writes back.
func (s *BookingService) ListBookings(ctx context.Context) []domain.Booking {
	stored := s.store.ReadAll(ctx)
	out := make([]domain.Booking, 0, len(stored))
	for _, b := range stored {
		out = append(out, domain.Normalize(b))
	}
	return out
}
