package packer

import (
	"fmt"
	"sort"
)

// Policy holds everything that differs between container formats. The
// scanner and the rebuild engine only talk to a format through it.
type Policy interface {
	Variant() Variant
	// Find returns the offset of the next container signature at or after
	// from, or -1.
	Find(buf []byte, from int) int
	// Decode walks the entries of the container starting at start. It
	// returns the container, the offset to resume the signature search from
	// and the reason the entry loop stopped.
	Decode(buf []byte, start int) (Container, int, error)
	// EncodeMetadata returns the record written ahead of e's payload when
	// the payload is size bytes long.
	EncodeMetadata(host []byte, e Entry, size int) []byte
	// Stride is the payload alignment. Payloads are zero padded up to it.
	Stride() int
	// PackDir names the extraction directory of the n-th container, 1-based.
	PackDir(n int) string
	// Header opens a container when no stored header is available. Nil when
	// the first entry record starts the container.
	Header() []byte
	// Trailer closes an assembled container so a re-scan ends its entry
	// loop cleanly.
	Trailer() []byte
}

var policies = map[Variant]Policy{
	VariantASUS: asusPolicy{},
	VariantMSI:  msiPolicy{},
}

// PolicyFor returns the registered policy for v.
func PolicyFor(v Variant) (Policy, error) {
	p, ok := policies[v]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownVariant, int(v))
	}
	return p, nil
}

// Policies lists the registered policies in variant order.
func Policies() []Policy {
	out := make([]Policy, 0, len(policies))
	for _, p := range policies {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Variant() < out[j].Variant()
	})
	return out
}

func padding(size, stride int) int {
	if stride <= 1 {
		return 0
	}
	return (stride - size%stride) % stride
}
