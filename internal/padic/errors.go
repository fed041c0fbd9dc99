package padic

import "errors"

// Usage errors. The call itself was invalid; retrying cannot help.
var (
	// ErrDomainMismatch is returned when values or elements from different
	// primes or precision trackers are mixed.
	ErrDomainMismatch = errors.New("conversion between different p-adic rings/fields not supported")

	// ErrIncompatibleDomain is returned by CopyTo when the target domain does
	// not share the element's precision tracker.
	ErrIncompatibleDomain = errors.New("domain must share the same precision tracker")

	// ErrNegativeValuationCoercion is returned when an element of negative
	// valuation is converted into an integer ring.
	ErrNegativeValuationCoercion = errors.New("element of negative valuation cannot be converted to the integer ring")

	// ErrInvalidPrime is returned when a domain is created for a non-prime.
	ErrInvalidPrime = errors.New("p must be prime")

	// ErrInvalidCap is returned for precision caps a policy cannot work with.
	ErrInvalidCap = errors.New("invalid precision cap")

	// ErrExponentOutOfRange is returned by Pow for an exponent whose inverse
	// does not fit in an int.
	ErrExponentOutOfRange = errors.New("exponent out of range")
)

// PrecisionError reports that bounded precision does not allow an operation
// to be carried out securely. Callers are expected to recover, typically by
// lifting operands to a higher precision and retrying.
type PrecisionError struct {
	msg string
}

func (e *PrecisionError) Error() string { return e.msg }

// Precision errors.
var (
	// ErrPrecisionInsufficient is returned by secure queries when the element is
	// indistinguishable from zero.
	ErrPrecisionInsufficient = &PrecisionError{msg: "not enough precision"}

	// ErrDivisionByIndistinguishableZero is returned by Div.
	ErrDivisionByIndistinguishableZero = &PrecisionError{msg: "cannot divide by something indistinguishable from zero"}

	// ErrInversionOfIndistinguishableZero is returned by Invert.
	ErrInversionOfIndistinguishableZero = &PrecisionError{msg: "cannot invert something indistinguishable from zero"}
)

// IsPrecisionError reports whether err (or anything it wraps) is a
// recoverable precision condition.
func IsPrecisionError(err error) bool {
	var pe *PrecisionError
	return errors.As(err, &pe)
}
