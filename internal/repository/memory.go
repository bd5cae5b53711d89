package repository

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/metinatakli/seat-reservation-engine/internal/domain"
)

// MemoryOccupancyStore keeps occupancy records in process memory. It is used by tests and by
// the memory store mode for local development.
type MemoryOccupancyStore struct {
	mu    sync.RWMutex
	shows map[int]*domain.Occupancy
}

func NewMemoryOccupancyStore() *MemoryOccupancyStore {
	return &MemoryOccupancyStore{
		shows: make(map[int]*domain.Occupancy),
	}
}

func (m *MemoryOccupancyStore) RegisterShow(ctx context.Context, showID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.shows[showID]; !exists {
		m.shows[showID] = domain.NewOccupancy(showID, 0)
	}

	return nil
}

func (m *MemoryOccupancyStore) ReadOccupancy(ctx context.Context, showID int) (*domain.Occupancy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	occupancy, exists := m.shows[showID]
	if !exists {
		return nil, domain.ErrRecordNotFound
	}

	return &domain.Occupancy{
		ShowID:  occupancy.ShowID,
		Version: occupancy.Version,
		Seats:   maps.Clone(occupancy.Seats),
	}, nil
}

func (m *MemoryOccupancyStore) TryCommitSeats(
	ctx context.Context,
	showID int,
	seats []domain.SeatID,
	bookingRef string,
	expectedVersion int64) (int64, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	occupancy, exists := m.shows[showID]
	if !exists {
		return 0, domain.ErrRecordNotFound
	}

	if occupancy.Version != expectedVersion {
		return 0, domain.ErrVersionMismatch
	}

	if taken := occupancy.Taken(seats); len(taken) > 0 {
		return 0, &domain.SeatConflictError{ShowID: showID, Seats: taken}
	}

	for _, seat := range seats {
		occupancy.Seats[seat] = bookingRef
	}
	occupancy.Version++

	return occupancy.Version, nil
}

type MemoryBookingLedger struct {
	mu            sync.RWMutex
	bookings      map[string]*domain.Booking
	byShow        map[int][]string
	byIdempotency map[string]string // userID + key -> bookingID
	claims        map[string]*domain.IdempotencyClaim
	lastNumber    int64
}

func NewMemoryBookingLedger() *MemoryBookingLedger {
	return &MemoryBookingLedger{
		bookings:      make(map[string]*domain.Booking),
		byShow:        make(map[int][]string),
		byIdempotency: make(map[string]string),
		claims:        make(map[string]*domain.IdempotencyClaim),
	}
}

func (m *MemoryBookingLedger) Claim(ctx context.Context, claim *domain.IdempotencyClaim) (*domain.IdempotencyClaim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := idempotencyIndexKey(claim.UserID, claim.Key)

	stored, exists := m.claims[key]
	if !exists {
		stored = cloneClaim(claim)
		m.claims[key] = stored
	}

	return cloneClaim(stored), nil
}

func (m *MemoryBookingLedger) Append(ctx context.Context, booking *domain.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.bookings[booking.ID]; exists {
		return domain.ErrDuplicateSubmission
	}

	idempotencyKey := idempotencyIndexKey(booking.UserID, booking.IdempotencyKey)
	if booking.IdempotencyKey != "" {
		if _, exists := m.byIdempotency[idempotencyKey]; exists {
			return domain.ErrDuplicateSubmission
		}
	}

	m.lastNumber++
	booking.Number = m.lastNumber
	booking.CreatedAt = time.Now().UTC()

	stored := cloneBooking(booking)
	m.bookings[booking.ID] = stored
	m.byShow[booking.ShowID] = append(m.byShow[booking.ShowID], booking.ID)
	if booking.IdempotencyKey != "" {
		m.byIdempotency[idempotencyKey] = booking.ID
	}

	return nil
}

func (m *MemoryBookingLedger) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	booking, exists := m.bookings[id]
	if !exists {
		return nil, domain.ErrRecordNotFound
	}

	return cloneBooking(booking), nil
}

func (m *MemoryBookingLedger) GetByIdempotencyKey(ctx context.Context, userID, key string) (*domain.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, exists := m.byIdempotency[idempotencyIndexKey(userID, key)]
	if !exists {
		return nil, domain.ErrRecordNotFound
	}

	return cloneBooking(m.bookings[id]), nil
}

func (m *MemoryBookingLedger) ListByShow(ctx context.Context, showID int) ([]domain.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.byShow[showID]
	bookings := make([]domain.Booking, 0, len(ids))

	for _, id := range ids {
		bookings = append(bookings, *cloneBooking(m.bookings[id]))
	}

	return bookings, nil
}

func idempotencyIndexKey(userID, key string) string {
	return userID + "\x00" + key
}

func cloneClaim(claim *domain.IdempotencyClaim) *domain.IdempotencyClaim {
	c := *claim
	c.Seats = slices.Clone(claim.Seats)

	return &c
}

func cloneBooking(booking *domain.Booking) *domain.Booking {
	b := *booking
	b.Seats = slices.Clone(booking.Seats)

	return &b
}

// MemoryShowRepository stands in for the scheduling service in tests and memory mode.
type MemoryShowRepository struct {
	mu    sync.RWMutex
	shows map[int]domain.Show
}

func NewMemoryShowRepository(shows ...domain.Show) *MemoryShowRepository {
	repo := &MemoryShowRepository{
		shows: make(map[int]domain.Show, len(shows)),
	}

	for _, show := range shows {
		repo.Add(show)
	}

	return repo
}

func (m *MemoryShowRepository) Add(show domain.Show) {
	m.mu.Lock()
	defer m.mu.Unlock()

	show.Seats = slices.Clone(show.Seats)
	m.shows[show.ID] = show
}

func (m *MemoryShowRepository) GetByID(ctx context.Context, showID int) (*domain.Show, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	show, exists := m.shows[showID]
	if !exists {
		return nil, domain.ErrRecordNotFound
	}

	show.Seats = slices.Clone(show.Seats)

	return &show, nil
}
