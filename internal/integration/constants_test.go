package integration_test

const (
	// User related constants
	TestUserId      = "user-1"
	TestOtherUserId = "user-2"
	TestJWTSecret   = "integration-test-secret"

	// Show related constants, see testdata/shows_up.sql
	TestShowId         = 1
	TestSmallShowId    = 2
	TestMissingShowId  = 999
	TestShowSeatPrice  = "12.5"
	TestSmallShowSeats = 4

	// Booking related constants
	TestIdempotencyKey = "5b0a3f8e-checkout-1"
)
