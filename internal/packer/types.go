package packer

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"example.com/logopack/internal/imgsniff"
)

// Variant names a container format.
type Variant int

const (
	VariantASUS Variant = iota + 1
	VariantMSI
)

func (v Variant) String() string {
	switch v {
	case VariantASUS:
		return "asus"
	case VariantMSI:
		return "msi"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

// ParseVariant accepts "asus" or "msi" in any case.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asus", "a":
		return VariantASUS, nil
	case "msi", "b":
		return VariantMSI, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownVariant, s)
}

// Container is one packer instance located in a host buffer.
type Container struct {
	Variant Variant
	Start   int
	// Header is the verbatim leading block of the container. It is empty for
	// formats whose entries start at the container offset.
	Header  []byte
	Entries []Entry
	Length  int
	// Stop records why the entry loop ended.
	Stop error
}

// End is the offset just past the last byte owned by the container.
func (c Container) End() int {
	return c.Start + c.Length
}

// Entry is one stored image. Payload, Metadata and Extra alias the host buffer.
type Entry struct {
	Index        int
	MetaOffset   int
	Offset       int
	DeclaredSize int
	Metadata     []byte
	Extra        []byte
	Payload      []byte
	Type         imgsniff.Type
}

// End is the offset just past the payload.
func (e Entry) End() int {
	return e.Offset + e.DeclaredSize
}

// Fingerprint is a fast non-cryptographic hash of the payload.
func (e Entry) Fingerprint() uint64 {
	return xxhash.Sum64(e.Payload)
}

// Anomaly is a recovered scan problem.
type Anomaly struct {
	Variant Variant
	Offset  int
	Err     error
}

func (a Anomaly) Error() string {
	return fmt.Sprintf("%s at 0x%08X: %v", a.Variant, a.Offset, a.Err)
}

func (a Anomaly) Unwrap() error {
	return a.Err
}
