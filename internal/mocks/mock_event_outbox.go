package mocks

import (
	"context"

	"github.com/metinatakli/seat-reservation-engine/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockEventOutbox struct {
	mock.Mock
}

func (m *MockEventOutbox) DispatchPending(
	ctx context.Context,
	limit int,
	publish func(ctx context.Context, event domain.BookingConfirmedEvent) error) (int, error) {

	args := m.Called(ctx, limit, publish)
	return args.Int(0), args.Error(1)
}
