package session

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel kinds, for use with errors.Is.
var (
	ErrNotFound          = errors.New("session not found")
	ErrAmbiguous         = errors.New("ambiguous session")
	ErrTurnOutOfRange    = errors.New("turn out of range")
	ErrLineOutOfRange    = errors.New("line out of range")
	ErrInvalidJSON       = errors.New("invalid json")
	ErrUnsupportedFormat = errors.New("unsupported session format")
)

// maxListedMatches caps the candidates named by an ambiguous-match error.
const maxListedMatches = 5

// Error is a user-actionable inspection failure. Kind is one of the
// sentinels above; the other fields are set depending on Kind.
type Error struct {
	Kind        error
	Input       string   // NotFound, Ambiguous
	Path        string   // UnsupportedFormat
	Matches     []string // Ambiguous: every candidate, sorted
	Suggestions []string // NotFound: near-miss file names
	Turn        int      // TurnOutOfRange
	Available   int      // TurnOutOfRange: messages actually present
	Line        int      // LineOutOfRange, InvalidJSON
	Err         error    // InvalidJSON: decoder error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrNotFound:
		msg := fmt.Sprintf("session not found: %s", e.Input)
		if len(e.Suggestions) > 0 {
			msg += " (did you mean " + strings.Join(e.Suggestions, ", ") + "?)"
		}
		return msg
	case ErrAmbiguous:
		shown := e.Matches
		if len(shown) > maxListedMatches {
			shown = append(shown[:maxListedMatches:maxListedMatches], "...")
		}
		return fmt.Sprintf("multiple sessions match %s: %s", e.Input, strings.Join(shown, ", "))
	case ErrTurnOutOfRange:
		return fmt.Sprintf("turn %d out of range (messages: %d)", e.Turn, e.Available)
	case ErrLineOutOfRange:
		return fmt.Sprintf("line %d out of range", e.Line)
	case ErrInvalidJSON:
		return fmt.Sprintf("invalid json at line %d: %v", e.Line, e.Err)
	case ErrUnsupportedFormat:
		return fmt.Sprintf("unsupported session format: %s (expected .jsonl)", e.Path)
	}
	return fmt.Sprintf("session error: %v", e.Kind)
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }
