package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/seat-reservation-engine/internal/domain"
	"github.com/metinatakli/seat-reservation-engine/internal/events"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

var keysToIgnore = map[string]struct{}{
	"timestamp": {},
	"requestId": {},
	"createdAt": {},
	"id":        {},
}

func prepareRequest(method, path string, body io.Reader, headers map[string]string) (*http.Request, error) {
	req := httptest.NewRequest(method, path, body)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req, nil
}

func compareResponse(t *testing.T, body io.Reader, expectedResponse string) {
	var actual map[string]any
	require.NoError(t, json.NewDecoder(body).Decode(&actual))

	cleanMap(actual)

	var expected map[string]any
	require.NoError(t, json.Unmarshal([]byte(expectedResponse), &expected))

	// ignore indetermistic fields while comparing
	opts := cmpopts.IgnoreMapEntries(func(k string, _ any) bool {
		_, ok := keysToIgnore[k]
		return ok
	})

	if diff := cmp.Diff(expected, actual, opts); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

func cleanMap(m map[string]any) {
	for k := range m {
		if _, ok := keysToIgnore[k]; ok {
			delete(m, k)
			continue
		}

		switch v := m[k].(type) {
		case map[string]any:
			cleanMap(v)
		case []any:
			for _, item := range v {
				if nested, ok := item.(map[string]any); ok {
					cleanMap(nested)
				}
			}
		}
	}
}

func executeSQLFile(t testing.TB, db *pgxpool.Pool, path string) {
	t.Helper()

	script, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = db.Exec(context.Background(), string(script))
	require.NoError(t, err)
}

func flushAllCache(t testing.TB, redisClient *redis.Client) {
	t.Helper()

	require.NoError(t, redisClient.FlushAll(context.Background()).Err())
}

// setupShowState resets every table and loads the two test shows.
func setupShowState(t testing.TB, app *TestApp) {
	t.Helper()

	executeSQLFile(t, app.DB, "testdata/shows_down.sql")
	flushAllCache(t, app.RedisClient)
	purgeBookingEvents(t, app)

	executeSQLFile(t, app.DB, "testdata/shows_up.sql")
}

func authHeaders(t testing.TB, userID string) map[string]string {
	t.Helper()

	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(TestJWTSecret))
	require.NoError(t, err)

	return map[string]string{
		"Authorization": "Bearer " + token,
	}
}

func withHeader(headers map[string]string, key, value string) map[string]string {
	merged := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		merged[k] = v
	}
	merged[key] = value

	return merged
}

func occupiedSeats(t testing.TB, db *pgxpool.Pool, showID int) []string {
	t.Helper()

	rows, err := db.Query(context.Background(),
		`SELECT seat_id FROM seat_occupancy WHERE show_id = $1 ORDER BY seat_id`, showID)
	require.NoError(t, err)
	defer rows.Close()

	seats := make([]string, 0)
	for rows.Next() {
		var seat string
		require.NoError(t, rows.Scan(&seat))
		seats = append(seats, seat)
	}
	require.NoError(t, rows.Err())

	return seats
}

func countBookings(t testing.TB, db *pgxpool.Pool, showID int) int {
	t.Helper()

	var count int
	err := db.QueryRow(context.Background(), `SELECT COUNT(*) FROM bookings WHERE show_id = $1`, showID).Scan(&count)
	require.NoError(t, err)

	return count
}

func occupancyVersion(t testing.TB, db *pgxpool.Pool, showID int) int64 {
	t.Helper()

	var version int64
	err := db.QueryRow(context.Background(), `SELECT occupancy_version FROM shows WHERE id = $1`, showID).Scan(&version)
	require.NoError(t, err)

	return version
}

func withBrokerChannel(t testing.TB, app *TestApp, fn func(ch *amqp.Channel)) {
	t.Helper()

	conn, err := amqp.Dial(app.Config.AMQP.URL)
	require.NoError(t, err)
	defer conn.Close()

	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	fn(ch)
}

func purgeBookingEvents(t testing.TB, app *TestApp) {
	t.Helper()

	withBrokerChannel(t, app, func(ch *amqp.Channel) {
		_, err := ch.QueuePurge(events.BookingConfirmedQueue, false)
		require.NoError(t, err)
	})
}

// consumeBookingEvents drains the booking confirmed queue.
func consumeBookingEvents(t testing.TB, app *TestApp) []domain.BookingConfirmedEvent {
	t.Helper()

	var received []domain.BookingConfirmedEvent

	withBrokerChannel(t, app, func(ch *amqp.Channel) {
		for {
			msg, ok, err := ch.Get(events.BookingConfirmedQueue, true)
			require.NoError(t, err)

			if !ok {
				return
			}

			require.Equal(t, "application/json", msg.ContentType)

			var event domain.BookingConfirmedEvent
			require.NoError(t, json.Unmarshal(msg.Body, &event))
			require.Equal(t, event.BookingID, msg.MessageId)

			received = append(received, event)
		}
	})

	return received
}
