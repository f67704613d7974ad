package packer

import "errors"

var (
	// ErrScanTerminated marks an entry loop that stopped at the format's own
	// end-of-entries condition.
	ErrScanTerminated = errors.New("entry loop reached end of entries")
	// ErrBoundsExceeded marks a header or payload that would read past the
	// end of the host buffer. Only the current container is affected.
	ErrBoundsExceeded        = errors.New("entry exceeds buffer bounds")
	ErrCandidateTypeMismatch = errors.New("replacement image type differs from original")
	ErrCandidateMissing      = errors.New("no replacement candidate")
	// ErrReconstructionFatal aborts a structural rebuild. No partial output
	// is returned alongside it.
	ErrReconstructionFatal = errors.New("structural rebuild failed")
	ErrVerifyFailed        = errors.New("rebuilt output does not match plan")
	ErrUnknownVariant      = errors.New("unknown container variant")
)
