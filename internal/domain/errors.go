package domain

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error code sent to clients.
type Code string

const (
	CodeUnknown Code = "UNKNOWN"

	// Not found
	CodeRoomNotFound Code = "ROOM_NOT_FOUND"
	CodeNotInRoom    Code = "NOT_IN_ROOM"

	// Phase
	CodeVotingEnded      Code = "VOTING_ENDED"
	CodeVotingNotStarted Code = "VOTING_NOT_STARTED"
	CodeInvalidPhase     Code = "INVALID_PHASE"

	// Authorization
	CodePasswordRequired  Code = "PASSWORD_REQUIRED"
	CodeIncorrectPassword Code = "INCORRECT_PASSWORD"
	CodeNotHost           Code = "NOT_HOST"
	CodeNotPending        Code = "NOT_PENDING"
	CodeNotParticipant    Code = "NOT_PARTICIPANT"

	// Capacity
	CodeRoomFull      Code = "ROOM_FULL"
	CodeRateLimited   Code = "RATE_LIMITED"
	CodeCodeSpaceFull Code = "CODE_SPACE_EXHAUSTED"

	// Validation
	CodeInvalidRoomCode Code = "INVALID_ROOM_CODE"
	CodeInvalidName     Code = "INVALID_NAME"
	CodeInvalidMessage  Code = "INVALID_MESSAGE"
	CodeBadPayload      Code = "BAD_PAYLOAD"

	// State conflict
	CodeDuplicateProfile     Code = "DUPLICATE_PROFILE"
	CodeNoProfile            Code = "NO_PROFILE"
	CodeSelfVote             Code = "SELF_VOTE"
	CodeAlreadyVoted         Code = "ALREADY_VOTED"
	CodeInvalidProfile       Code = "INVALID_PROFILE"
	CodeInsufficientProfiles Code = "INSUFFICIENT_PROFILES"
)

type Category string

const (
	CategoryNotFound      Category = "not_found"
	CategoryPhase         Category = "phase"
	CategoryAuthorization Category = "authorization"
	CategoryCapacity      Category = "capacity"
	CategoryValidation    Category = "validation"
	CategoryConflict      Category = "conflict"
	CategoryInternal      Category = "internal"
)

func (c Code) Category() Category {
	switch c {
	case CodeRoomNotFound, CodeNotInRoom:
		return CategoryNotFound
	case CodeVotingEnded, CodeVotingNotStarted, CodeInvalidPhase:
		return CategoryPhase
	case CodePasswordRequired, CodeIncorrectPassword, CodeNotHost, CodeNotPending, CodeNotParticipant:
		return CategoryAuthorization
	case CodeRoomFull, CodeRateLimited:
		return CategoryCapacity
	case CodeInvalidRoomCode, CodeInvalidName, CodeInvalidMessage, CodeBadPayload:
		return CategoryValidation
	case CodeDuplicateProfile, CodeNoProfile, CodeSelfVote, CodeAlreadyVoted,
		CodeInvalidProfile, CodeInsufficientProfiles:
		return CategoryConflict
	default:
		return CategoryInternal
	}
}

var userMessages = map[Code]string{
	CodeRoomNotFound:         "Room not found. Check the code.",
	CodeNotInRoom:            "You are not in a room.",
	CodeVotingEnded:          "Voting has already ended.",
	CodeVotingNotStarted:     "Voting has not started yet.",
	CodeInvalidPhase:         "That is not possible right now.",
	CodePasswordRequired:     "This room requires a password.",
	CodeIncorrectPassword:    "Incorrect room password.",
	CodeNotHost:              "Only the host can do that.",
	CodeNotPending:           "That participant is not waiting for approval.",
	CodeNotParticipant:       "You have not joined this room.",
	CodeRoomFull:             "The room is full.",
	CodeRateLimited:          "Slow down a little.",
	CodeCodeSpaceFull:        "Could not allocate a room code.",
	CodeInvalidRoomCode:      "Room codes are 6 characters long.",
	CodeInvalidName:          "Names must be 1 to 50 characters.",
	CodeInvalidMessage:       "Message is empty or too long.",
	CodeBadPayload:           "Malformed request.",
	CodeDuplicateProfile:     "You already have a profile.",
	CodeNoProfile:            "Create a profile before voting.",
	CodeSelfVote:             "You cannot vote for your own profile.",
	CodeAlreadyVoted:         "You have already voted.",
	CodeInvalidProfile:       "Unknown profile.",
	CodeInsufficientProfiles: "Not enough profiles to end voting.",
}

// UserMessage is the default client-facing text for c.
func (c Code) UserMessage() string {
	if m, ok := userMessages[c]; ok {
		return m
	}
	return "Something went wrong."
}

// Error is a coded, user-facing failure. It never indicates a process fault.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Message
}

// Is matches by code so callers can use errors.Is(err, domain.NewError(code)).
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func NewError(code Code) *Error {
	return &Error{Code: code}
}

func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithMetadata attaches template values, e.g. the minimum profile count.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

// CodeOf extracts the code of a domain error, or CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}
