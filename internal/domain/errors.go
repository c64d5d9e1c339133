package domain

import "errors"

// Error is a recoverable rejection reported back to the caller with a reason code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "duel arena error"
}

var (
	ErrUnknownPlayer     = &Error{Code: "unknown_player", Message: "player not found or not connected"}
	ErrAlreadyInMatch    = &Error{Code: "already_in_match", Message: "player already in a match"}
	ErrPlayerUnavailable = &Error{Code: "player_unavailable", Message: "player not available to play"}
	ErrOutOfTurn         = &Error{Code: "out_of_turn", Message: "move made out of turn"}
	ErrNotInProgress     = &Error{Code: "not_in_progress", Message: "match is not in progress"}
	ErrIllegalAction     = &Error{Code: "illegal_action", Message: "illegal move action"}
	ErrNotInMatch        = &Error{Code: "not_in_match", Message: "player is not in a match"}
	ErrNotParticipant    = &Error{Code: "not_participant", Message: "player is not a participant of this match"}
	ErrNotAPlayer        = &Error{Code: "not_a_player", Message: "spectators cannot play"}
	ErrInvalidSkills     = &Error{Code: "invalid_skills", Message: "skills exceed the allowed maximum"}
)

// ReasonCode returns the rejection code carried by err, or "internal" when err
// is not a domain rejection.
func ReasonCode(err error) string {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return "internal"
}

// IsRejection reports whether err is a recoverable caller-facing rejection.
func IsRejection(err error) bool {
	var de *Error
	return errors.As(err, &de)
}
