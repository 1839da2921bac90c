package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Domenick1991/hotelbooking/internal/domain"
)

// Mutation edits a booking in place and reports whether anything changed.
// Returning an error aborts the update without touching the file.
type Mutation func(b *domain.Booking) (changed bool, err error)

type BookingRepository interface {
	Append(ctx context.Context, booking domain.Booking) error
	ReadAll(ctx context.Context) ([]domain.Booking, error)
	Get(ctx context.Context, id domain.BookingID) (domain.Booking, error)
	Update(ctx context.Context, id domain.BookingID, mutate Mutation) (domain.Booking, bool, error)
}

// FileBookingRepository keeps every booking in one indented JSON array.
type FileBookingRepository struct {
	path string
	mu   sync.Mutex
}

func NewFileBookingRepository(path string) (*FileBookingRepository, error) {
	r := &FileBookingRepository{path: path}
	if err := r.ensureFile(); err != nil {
		return nil, &domain.StorageError{Op: "init", Err: err}
	}
	return r, nil
}

func (r *FileBookingRepository) Append(_ context.Context, booking domain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	bookings, err := r.load()
	if err != nil {
		return &domain.StorageError{Op: "append", Err: err}
	}
	bookings = append(bookings, booking)
	if err := r.write(bookings); err != nil {
		return &domain.StorageError{Op: "append", Err: err}
	}
	return nil
}

func (r *FileBookingRepository) ReadAll(_ context.Context) ([]domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bookings, err := r.load()
	if err != nil {
		return nil, &domain.StorageError{Op: "read", Err: err}
	}
	return bookings, nil
}

func (r *FileBookingRepository) Get(ctx context.Context, id domain.BookingID) (domain.Booking, error) {
	bookings, err := r.ReadAll(ctx)
	if err != nil {
		return domain.Booking{}, err
	}
	idx := indexOf(bookings, id)
	if idx < 0 {
		return domain.Booking{}, domain.ErrNotFound
	}
	return bookings[idx], nil
}

// Update applies mutate to the first record whose id matches and rewrites the
// file when mutate reports a change.
func (r *FileBookingRepository) Update(_ context.Context, id domain.BookingID, mutate Mutation) (domain.Booking, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bookings, err := r.load()
	if err != nil {
		return domain.Booking{}, false, &domain.StorageError{Op: "update", Err: err}
	}
	idx := indexOf(bookings, id)
	if idx < 0 {
		return domain.Booking{}, false, domain.ErrNotFound
	}

	updated := bookings[idx]
	changed, err := mutate(&updated)
	if err != nil {
		return domain.Booking{}, false, err
	}
	if !changed {
		return updated, false, nil
	}

	bookings[idx] = updated
	if err := r.write(bookings); err != nil {
		return domain.Booking{}, false, &domain.StorageError{Op: "update", Err: err}
	}
	return updated, true, nil
}

func indexOf(bookings []domain.Booking, id domain.BookingID) int {
	want := domain.NewBookingID(id.String())
	for i := range bookings {
		if domain.NewBookingID(bookings[i].ID.String()) == want {
			return i
		}
	}
	return -1
}

func (r *FileBookingRepository) ensureFile() error {
	if _, err := os.Stat(r.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	return os.WriteFile(r.path, []byte("[]"), 0o644)
}

func (r *FileBookingRepository) load() ([]domain.Booking, error) {
	if err := r.ensureFile(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, err
	}
	var bookings []domain.Booking
	if err := json.Unmarshal(data, &bookings); err != nil {
		return nil, fmt.Errorf("decode %s: %w", r.path, err)
	}
	if bookings == nil {
		bookings = []domain.Booking{}
	}
	return bookings, nil
}

func (r *FileBookingRepository) write(bookings []domain.Booking) error {
	data, err := json.MarshalIndent(bookings, "", "  ")
	if err != nil {
		return fmt.Errorf("encode bookings: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".bookings-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), r.path)
}
