package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Domenick1991/hotelbooking/internal/domain"
	"github.com/Domenick1991/hotelbooking/internal/metrics"
	"go.uber.org/zap"
)

// RecordStore writes the primary repository first and then copies every
// successful change into the mirrors. The primary is authoritative; mirror
// failures are logged and dropped.
type RecordStore struct {
	primary       BookingRepository
	mirrors       []Mirror
	mirrorTimeout time.Duration
	logger        *zap.Logger
}

type StoreOption func(*RecordStore)

func WithMirror(m Mirror) StoreOption {
	return func(s *RecordStore) {
		if m != nil {
			s.mirrors = append(s.mirrors, m)
		}
	}
}

func WithMirrorTimeout(d time.Duration) StoreOption {
	return func(s *RecordStore) {
		if d > 0 {
			s.mirrorTimeout = d
		}
	}
}

func WithStoreLogger(l *zap.Logger) StoreOption {
	return func(s *RecordStore) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewRecordStore(primary BookingRepository, opts ...StoreOption) *RecordStore {
	s := &RecordStore{
		primary:       primary,
		mirrorTimeout: 2 * time.Second,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append writes the booking to the primary and, whatever the outcome, tries
// every mirror. The primary error is returned.
func (s *RecordStore) Append(ctx context.Context, booking domain.Booking) error {
	err := s.primary.Append(ctx, booking)
	if err != nil {
		metrics.IncPrimaryStoreError("append")
		s.logger.Error("primary append failed", zap.String("booking_id", booking.ID.String()), zap.Error(err))
	}
	s.MirrorBooking(ctx, booking)
	return err
}

// ReadAll never fails: an unreadable primary is reported as no data.
func (s *RecordStore) ReadAll(ctx context.Context) []domain.Booking {
	bookings, err := s.primary.ReadAll(ctx)
	if err != nil {
		metrics.IncPrimaryStoreError("read")
		s.logger.Error("primary read failed", zap.Error(err))
		return []domain.Booking{}
	}
	return bookings
}

func (s *RecordStore) Get(ctx context.Context, id domain.BookingID) (domain.Booking, error) {
	return s.primary.Get(ctx, id)
}

func (s *RecordStore) Update(ctx context.Context, id domain.BookingID, mutate Mutation) (domain.Booking, bool, error) {
	booking, changed, err := s.primary.Update(ctx, id, mutate)
	if err != nil {
		if errors.Is(err, domain.ErrStorage) {
			metrics.IncPrimaryStoreError("update")
		}
		return domain.Booking{}, false, err
	}
	if changed {
		s.MirrorBooking(ctx, booking)
	}
	return booking, changed, nil
}

// MirrorBooking upserts one snapshot into every mirror.
func (s *RecordStore) MirrorBooking(ctx context.Context, booking domain.Booking) {
	for _, m := range s.mirrors {
		if err := s.upsert(ctx, m, booking); err != nil {
			s.logger.Warn("mirror write failed",
				zap.String("mirror", m.Name()),
				zap.String("booking_id", booking.ID.String()),
				zap.Error(err))
		}
	}
}

// SyncMirrors copies every primary record into every mirror and returns the
// number of records that reached all of them.
func (s *RecordStore) SyncMirrors(ctx context.Context) (int, error) {
	bookings, err := s.primary.ReadAll(ctx)
	if err != nil {
		return 0, err
	}

	synced := 0
	for _, b := range bookings {
		if err := ctx.Err(); err != nil {
			return synced, err
		}
		ok := true
		for _, m := range s.mirrors {
			if err := s.upsert(ctx, m, b); err != nil {
				ok = false
				s.logger.Warn("mirror sync failed",
					zap.String("mirror", m.Name()),
					zap.String("booking_id", b.ID.String()),
					zap.Error(err))
			}
		}
		if ok {
			synced++
		}
	}
	return synced, nil
}

func (s *RecordStore) Mirrors() int { return len(s.mirrors) }

func (s *RecordStore) upsert(ctx context.Context, m Mirror, booking domain.Booking) error {
	ctx, cancel := context.WithTimeout(ctx, s.mirrorTimeout)
	defer cancel()

	err := m.Upsert(ctx, booking)
	if errors.Is(err, ErrStaleSnapshot) {
		metrics.IncMirrorStale(m.Name())
		s.logger.Debug("mirror kept newer snapshot",
			zap.String("mirror", m.Name()),
			zap.String("booking_id", booking.ID.String()))
		return nil
	}
	metrics.IncMirrorWrite(m.Name(), err == nil)
	return err
}
