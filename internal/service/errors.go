package service

import "errors"

// DomainError is an expected outcome reported to the caller as a code, not a failure.
type DomainError struct {
	Code string
}

func (e *DomainError) Error() string {
	return e.Code
}

var (
	ErrNotLogged      = &DomainError{Code: "NOT_LOGGED"}
	ErrInvalidDuel    = &DomainError{Code: "INVALID_DUEL"}
	ErrUserNotFound   = &DomainError{Code: "USER_NOT_FOUND"}
	ErrAlreadyInDuel  = &DomainError{Code: "ALREADY_IN_DUEL"}
	ErrOpponentInDuel = &DomainError{Code: "OPPONENT_IN_DUEL"}
	ErrDuelNotFound   = &DomainError{Code: "DUEL_NOT_FOUND"}

	// Account codes keep the spelling existing game clients match on.
	ErrUserAlreadyExists = &DomainError{Code: "USER_Already_Exists"}
	ErrLoginUnknownUser  = &DomainError{Code: "USER_Not_found"}
	ErrWrongPassword     = &DomainError{Code: "PSSW_ERROR"}
	ErrMissingFields     = &DomainError{Code: "MISSING_FIELDS"}
	ErrUnknownField      = &DomainError{Code: "UNKNOWN_FIELD"}

	ErrAddSelf            = &DomainError{Code: "ADD_SELF"}
	ErrAlreadyFriend      = &DomainError{Code: "ALREADY_FRIEND"}
	ErrRequestAlreadySent = &DomainError{Code: "REQUEST_ALREADY_SENT"}

	ErrTournamentActive   = &DomainError{Code: "already_active"}
	ErrNoActiveTournament = &DomainError{Code: "no_active"}
)

// CodeOf returns the domain code of err, or "" when err is not a DomainError.
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
