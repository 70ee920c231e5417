package subcmd

import "fmt"

// Kind classifies a recoverable command failure. The dispatcher logs
// these and lets the process finish cleanly; anything else escapes.
type Kind int

const (
	// Processing indicates a failed processing step.
	Processing Kind = iota
	// Download indicates an unsuccessful download.
	Download
	// OptionMissed indicates a required option was not supplied.
	OptionMissed
)

func (k Kind) String() string {
	switch k {
	case Download:
		return "download"
	case OptionMissed:
		return "option missed"
	default:
		return "processing"
	}
}

// Error is the recoverable error class commands return.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Msg == "" {
			return e.Err.Error()
		}
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds a recoverable error of the given kind.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// RequireOption returns an OptionMissed error carrying prompt when ok
// is false.
func RequireOption(ok bool, prompt string) error {
	if !ok {
		return &Error{Kind: OptionMissed, Msg: prompt}
	}
	return nil
}
