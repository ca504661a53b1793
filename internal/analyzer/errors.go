package analyzer

import (
	"errors"
	"fmt"
)

// Oracle failure kinds. An OracleFailure wraps exactly one of these.
var (
	ErrOracleUnavailable = errors.New("oracle unavailable")
	ErrOracleTimeout     = errors.New("oracle timed out")
	ErrOracleMalformed   = errors.New("oracle returned malformed output")
)

// OracleFailure explains why the oracle tier produced no analysis.
type OracleFailure struct {
	Kind error
	Err  error
	// Raw is the unparseable response, when there was one.
	Raw string
}

func (f *OracleFailure) Error() string {
	if f.Err == nil {
		return f.Kind.Error()
	}
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

// Is lets errors.Is match on the failure kind.
func (f *OracleFailure) Is(target error) bool { return target == f.Kind }

func (f *OracleFailure) Unwrap() error { return f.Err }
