package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/metinatakli/seat-reservation-engine/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Compares the occupancy version, then assigns every seat or none of them.
var commitSeatsScript = redis.NewScript(`
	-- KEYS[1] = occupancy hash (seat -> booking), KEYS[2] = occupancy version
	-- ARGV[1] = expected version, ARGV[2] = booking reference, ARGV[3..] = seat ids

	local version = redis.call("GET", KEYS[2])
	if not version then
		return {err = "show not found"}
	end

	if tonumber(version) ~= tonumber(ARGV[1]) then
		return {err = "version mismatch"}
	end

	local taken = {}
	for i = 3, #ARGV do
		if redis.call("HEXISTS", KEYS[1], ARGV[i]) == 1 then
			table.insert(taken, ARGV[i])
		end
	end

	if #taken > 0 then
		return {0, taken}
	end

	for i = 3, #ARGV do
		redis.call("HSET", KEYS[1], ARGV[i], ARGV[2])
	end

	return {1, redis.call("INCR", KEYS[2])}
`)

type RedisOccupancyStore struct {
	redis redis.UniversalClient
}

func NewRedisOccupancyStore(client redis.UniversalClient) *RedisOccupancyStore {
	return &RedisOccupancyStore{
		redis: client,
	}
}

func (r *RedisOccupancyStore) RegisterShow(ctx context.Context, showID int) error {
	err := r.redis.SetNX(ctx, occupancyVersionKey(showID), 0, 0).Err()
	if err != nil {
		return fmt.Errorf("failed to register show %d: %w", showID, err)
	}

	return nil
}

func (r *RedisOccupancyStore) ReadOccupancy(ctx context.Context, showID int) (*domain.Occupancy, error) {
	pipe := r.redis.TxPipeline()
	versionCmd := pipe.Get(ctx, occupancyVersionKey(showID))
	seatsCmd := pipe.HGetAll(ctx, occupancyKey(showID))

	_, err := pipe.Exec(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read occupancy of show %d: %w", showID, err)
	}

	version, err := versionCmd.Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrRecordNotFound
		}

		return nil, err
	}

	occupancy := domain.NewOccupancy(showID, version)
	for seatID, bookingRef := range seatsCmd.Val() {
		occupancy.Seats[domain.SeatID(seatID)] = bookingRef
	}

	return occupancy, nil
}

func (r *RedisOccupancyStore) TryCommitSeats(
	ctx context.Context,
	showID int,
	seats []domain.SeatID,
	bookingRef string,
	expectedVersion int64) (int64, error) {

	keys := []string{occupancyKey(showID), occupancyVersionKey(showID)}

	args := make([]interface{}, 0, len(seats)+2)
	args = append(args, expectedVersion, bookingRef)
	for _, seat := range seats {
		args = append(args, string(seat))
	}

	values, err := commitSeatsScript.Run(ctx, r.redis, keys, args...).Slice()
	if err != nil {
		switch {
		case redis.HasErrorPrefix(err, "show not found"):
			return 0, domain.ErrRecordNotFound
		case redis.HasErrorPrefix(err, "version mismatch"):
			return 0, domain.ErrVersionMismatch
		default:
			return 0, fmt.Errorf("failed to run commitSeatsScript: %w", err)
		}
	}

	if len(values) != 2 {
		return 0, fmt.Errorf("unexpected commitSeatsScript result length: %d", len(values))
	}

	committed, _ := values[0].(int64)
	if committed == 1 {
		newVersion, ok := values[1].(int64)
		if !ok {
			return 0, fmt.Errorf("unexpected occupancy version type %T", values[1])
		}

		return newVersion, nil
	}

	takenValues, _ := values[1].([]interface{})
	taken := make([]domain.SeatID, 0, len(takenValues))
	for _, v := range takenValues {
		if seatID, ok := v.(string); ok {
			taken = append(taken, domain.SeatID(seatID))
		}
	}

	return 0, &domain.SeatConflictError{ShowID: showID, Seats: taken}
}

// Both keys share the {showID} hash tag so the script stays in one cluster slot.
func occupancyKey(showID int) string {
	return fmt.Sprintf("occupancy:{%d}", showID)
}

func occupancyVersionKey(showID int) string {
	return fmt.Sprintf("occupancy_version:{%d}", showID)
}
