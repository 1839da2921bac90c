package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Domenick1991/hotelbooking/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) (*FileBookingRepository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "bookings.json")
	repo, err := NewFileBookingRepository(path)
	require.NoError(t, err)
	return repo, path
}

func sampleBooking(id string) domain.Booking {
	return domain.Booking{
		ID:             domain.BookingID(id),
		HotelID:        "7",
		HotelName:      "Sea View",
		GuestName:      "Ann Lee",
		Email:          "ann@example.com",
		Phone:          "+100000",
		NumberOfGuests: 2,
		CheckIn:        "2025-06-01",
		CheckOut:       "2025-06-03",
		TotalAmount:    460,
		MealPackage:    domain.MealPackageBreakfast,
		Status:         domain.BookingStatusPending,
		CreatedAt:      time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestFileBookingRepository_CreatesFileOnInit(t *testing.T) {
	_, path := newTestRepo(t)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestFileBookingRepository_ReadAllRecreatesMissingFile(t *testing.T) {
	repo, path := newTestRepo(t)
	require.NoError(t, os.Remove(path))

	bookings, err := repo.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, bookings)
	assert.FileExists(t, path)
}

func TestFileBookingRepository_AppendAndGet(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, sampleBooking("1700000000001")))
	require.NoError(t, repo.Append(ctx, sampleBooking("1700000000002")))

	got, err := repo.Get(ctx, "1700000000002")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingID("1700000000002"), got.ID)
	assert.Nil(t, got.PaymentID)

	all, err := repo.ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestFileBookingRepository_NumericIDMatchesString(t *testing.T) {
	repo, path := newTestRepo(t)
	raw := `[{"id": 1700000000000, "guestName": "Bob", "status": "CONFIRMED"}]`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	got, err := repo.Get(context.Background(), domain.NewBookingID(" 1700000000000 "))
	require.NoError(t, err)
	assert.Equal(t, "Bob", got.GuestName)
	assert.Equal(t, domain.BookingStatus("CONFIRMED"), got.Status)
}

func TestFileBookingRepository_GetUnknown(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.Get(context.Background(), "42")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFileBookingRepository_UpdateWritesOnlyOnChange(t *testing.T) {
	repo, path := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Append(ctx, sampleBooking("1")))

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	calls := 0
	_, changed, err := repo.Update(ctx, "1", func(b *domain.Booking) (bool, error) {
		calls++
		return false, nil
	})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 1, calls)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	updated, changed, err := repo.Update(ctx, "1", func(b *domain.Booking) (bool, error) {
		b.GuestName = "Ann Smith"
		return true, nil
	})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "Ann Smith", updated.GuestName)

	stored, err := repo.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Ann Smith", stored.GuestName)
}

func TestFileBookingRepository_UpdateMutationErrorLeavesFile(t *testing.T) {
	repo, path := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Append(ctx, sampleBooking("1")))
	before, _ := os.ReadFile(path)

	boom := errors.New("boom")
	_, _, err := repo.Update(ctx, "1", func(b *domain.Booking) (bool, error) {
		b.Status = domain.BookingStatusCancelled
		return true, boom
	})
	assert.ErrorIs(t, err, boom)

	after, _ := os.ReadFile(path)
	assert.Equal(t, before, after)
}

func TestFileBookingRepository_UpdateUnknownID(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, _, err := repo.Update(context.Background(), "missing", func(b *domain.Booking) (bool, error) {
		t.Fatal("mutation must not run")
		return false, nil
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFileBookingRepository_CorruptFile(t *testing.T) {
	repo, path := newTestRepo(t)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := repo.ReadAll(context.Background())
	assert.ErrorIs(t, err, domain.ErrStorage)

	err = repo.Append(context.Background(), sampleBooking("1"))
	assert.ErrorIs(t, err, domain.ErrStorage)
}
