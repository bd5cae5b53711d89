package mocks

import (
	"context"

	"github.com/metinatakli/seat-reservation-engine/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockOccupancyStore struct {
	mock.Mock
}

func (m *MockOccupancyStore) RegisterShow(ctx context.Context, showID int) error {
	args := m.Called(ctx, showID)
	return args.Error(0)
}

func (m *MockOccupancyStore) ReadOccupancy(ctx context.Context, showID int) (*domain.Occupancy, error) {
	args := m.Called(ctx, showID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Occupancy), args.Error(1)
}

func (m *MockOccupancyStore) TryCommitSeats(
	ctx context.Context,
	showID int,
	seats []domain.SeatID,
	bookingRef string,
	expectedVersion int64) (int64, error) {

	args := m.Called(ctx, showID, seats, bookingRef, expectedVersion)
	return args.Get(0).(int64), args.Error(1)
}
