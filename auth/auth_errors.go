package auth

import "errors"

var (
	CredentialsRequiredErr = errors.New("credentials are required")
	InvalidStationIDErr    = errors.New("invalid station id")
	StationNotListedErr    = errors.New("station is not in the customer's station list")
	StationsUnknownErr     = errors.New("station list not loaded")
	WrongLevelErr          = errors.New("operation not allowed at the current session level")
	SessionTokenMissingErr = errors.New("session token is required")
)
