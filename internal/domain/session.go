// Package domain contains entities without logic, just meta-data
package domain

import (
	"crypto/rand"
	"errors"
	"regexp"
	"time"

	"github.com/oklog/ulid/v2"
)

const MaxSessionIDLen = 64

// DefaultSession is the implicit session used by clients that never name one.
// It is an ordinary key for the registry, not a separate code path.
const DefaultSession SessionID = "_default"

var (
	ErrSessionIDEmpty   = errors.New("session id empty")
	ErrSessionIDTooLong = errors.New("session id too long")
	ErrSessionIDInvalid = errors.New("session id invalid")
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)

type SessionID string

// NewSessionID mints a fresh ULID. ULIDs sort by mint time and are safe to
// embed in URLs and QR codes as-is.
func NewSessionID() SessionID {
	return SessionID(ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String())
}

// ParseSessionID validates an id received from a client. Ids minted by
// NewSessionID always pass; the check only rejects garbage.
func ParseSessionID(raw string) (SessionID, error) {
	if len(raw) == 0 {
		return "", ErrSessionIDEmpty
	}
	if len(raw) > MaxSessionIDLen {
		return "", ErrSessionIDTooLong
	}
	if !sessionIDPattern.MatchString(raw) {
		return "", ErrSessionIDInvalid
	}
	return SessionID(raw), nil
}

func (s SessionID) IsDefault() bool { return s == DefaultSession }
