package handler

// ToReservationResponse exposes toReservationResponse for external tests.
var ToReservationResponse = toReservationResponse
