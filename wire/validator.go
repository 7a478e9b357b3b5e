package wire

import "errors"

// Validator accumulates frame-validation errors so a caller can run every
// size/field check on a frame and report all failures at once instead of
// stopping at the first one, mirroring the validation style used by
// github.com/soypat/lneto's ipv4/tcp frame packages.
type Validator struct {
	accum []error
}

// AddError records a validation failure.
func (v *Validator) AddError(err error) { v.accum = append(v.accum, err) }

// Err returns the joined validation error, or nil if nothing was recorded.
func (v *Validator) Err() error {
	switch len(v.accum) {
	case 0:
		return nil
	case 1:
		return v.accum[0]
	default:
		return errors.Join(v.accum...)
	}
}

// Reset clears all recorded errors for reuse.
func (v *Validator) Reset() { v.accum = v.accum[:0] }

// Sentinel errors shared across the ipv4 and tcp frame validators.
var (
	ErrShortBuffer        = errors.New("wire: short buffer")
	ErrBadTotalLength     = errors.New("wire: bad total length")
	ErrShortData          = errors.New("wire: short data")
	ErrBadIHL             = errors.New("wire: bad IHL")
	ErrBadVersion         = errors.New("wire: bad IP version")
	ErrInvalidLengthField = errors.New("wire: invalid length field")
	ErrZeroSource         = errors.New("wire: zero source port")
	ErrZeroDestination    = errors.New("wire: zero destination port")
)
