package record

import "fmt"

// RequiredFieldError reports that a mandatory demographic field was absent
// from the document at its fixed path. Demographic extraction must fail fast
// rather than yield a null patient identity.
type RequiredFieldError struct {
	Field string
}

func (e *RequiredFieldError) Error() string {
	return fmt.Sprintf("required field missing: %s", e.Field)
}

// DateParseError reports a date value that was present in the document but
// could not be parsed in the expected representation. The entry containing
// the bad date is discarded; sibling entries are unaffected.
type DateParseError struct {
	Value string
	Err   error
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("unparseable date %q: %v", e.Value, e.Err)
}

func (e *DateParseError) Unwrap() error { return e.Err }
