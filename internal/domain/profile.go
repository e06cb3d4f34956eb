package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

const (
	MaxDisplayNameLen = 50
	MaxChatMessageLen = 200
)

type ProfileID string

// Profile is a participant's nominated entry in the vote.
type Profile struct {
	ID          ProfileID `json:"id"`
	Owner       ConnID    `json:"ownerConnectionId"`
	DisplayName string    `json:"name"`
	AvatarRef   string    `json:"avatar,omitempty"`
	ModelRef    string    `json:"model,omitempty"`
}

// NewProfileID returns a time-ordered id, so later profiles sort after earlier ones.
func NewProfileID() ProfileID {
	id, err := uuid.NewV7()
	if err != nil {
		return ProfileID(uuid.NewString())
	}
	return ProfileID(id.String())
}

// CleanDisplayName trims and NFC-normalizes name and checks it is 1..MaxDisplayNameLen
// printable runes.
func CleanDisplayName(name string) (string, error) {
	return cleanText(name, MaxDisplayNameLen, CodeInvalidName)
}

// CleanChatMessage applies the display-name rules with a larger bound.
func CleanChatMessage(text string, maxLen int) (string, error) {
	if maxLen <= 0 {
		maxLen = MaxChatMessageLen
	}
	return cleanText(text, maxLen, CodeInvalidMessage)
}

func cleanText(s string, maxLen int, code Code) (string, error) {
	s = strings.TrimSpace(norm.NFC.String(s))
	n := utf8.RuneCountInString(s)
	if n == 0 {
		return "", Errorf(code, "must not be empty")
	}
	if n > maxLen {
		return "", Errorf(code, "must be at most %d characters", maxLen)
	}
	for _, r := range s {
		if !unicode.IsPrint(r) {
			return "", Errorf(code, "contains non-printable characters")
		}
	}
	return s, nil
}
