package auth

import (
	"fmt"
	"strings"

	"github.com/jrsteele09/tramcan-session/sessions"
	"github.com/jrsteele09/tramcan-session/tenants"
)

const maxCredentialLength = 256

// Validator holds the checks every operation runs before it touches the
// network or the store.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// ValidateCredentials checks an identifier/password pair. field names the
// identifier in messages.
func (v *Validator) ValidateCredentials(field, identifier, password string) error {
	if strings.TrimSpace(identifier) == "" {
		return fmt.Errorf("%w: %s is required", CredentialsRequiredErr, field)
	}
	if password == "" {
		return fmt.Errorf("%w: password is required", CredentialsRequiredErr)
	}
	if len(identifier) > maxCredentialLength || len(password) > maxCredentialLength {
		return fmt.Errorf("%w: %s or password too long", CredentialsRequiredErr, field)
	}
	return nil
}

func (v *Validator) ValidateStationID(stationID int64) error {
	if stationID <= 0 {
		return fmt.Errorf("%w: %d", InvalidStationIDErr, stationID)
	}
	return nil
}

// ValidateMembership checks stationID against the last fetched list.
// An unknown list fails as well: membership can never be assumed.
func (v *Validator) ValidateMembership(stations tenants.Stations, known bool, stationID int64) error {
	if !known {
		return StationsUnknownErr
	}
	if !stations.Contains(stationID) {
		return fmt.Errorf("%w: %d", StationNotListedErr, stationID)
	}
	return nil
}

// ValidateLevel checks the current level is one of allowed.
func (v *Validator) ValidateLevel(current sessions.Level, allowed ...sessions.Level) error {
	for _, level := range allowed {
		if current == level {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", WrongLevelErr, current)
}
