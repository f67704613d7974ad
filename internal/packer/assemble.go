package packer

import (
	"fmt"
	"sort"
)

// Assemble emits cs back to back without a host dump. Every entry must carry
// its payload. Headers come from EncodeMetadata with no host, so stored
// Metadata and Extra bytes are kept and the format's fallbacks apply when
// they are absent. A container without a stored header gets the policy's
// Header and each container is closed by the policy's Trailer.
func Assemble(cs []Container) (Result, error) {
	res := Result{Strategy: StrategyAssembled}
	if len(cs) == 0 {
		return Result{}, fmt.Errorf("%w: nothing to assemble", ErrReconstructionFatal)
	}
	plan := NewPlan(nil)
	for ci, c := range cs {
		p, err := PolicyFor(c.Variant)
		if err != nil {
			return Result{}, fmt.Errorf("%w: container %d: %v", ErrReconstructionFatal, ci, err)
		}
		header := c.Header
		if len(header) == 0 {
			header = p.Header()
		}
		if len(header) > 0 {
			plan.Metadata(header)
		}

		entries := make([]Entry, len(c.Entries))
		copy(entries, c.Entries)
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].Index < entries[j].Index
		})
		for _, e := range entries {
			if len(e.Payload) == 0 {
				return Result{}, fmt.Errorf("%w: container %d entry %d has no payload",
					ErrReconstructionFatal, ci, e.Index)
			}
			meta := p.EncodeMetadata(nil, e, len(e.Payload))
			metaAt := plan.Size()
			pad := padding(len(e.Payload), p.Stride())
			plan.Metadata(meta)
			plan.Payload(e.Payload)
			plan.Padding(pad)
			res.Placements = append(res.Placements, Placement{
				Variant:    c.Variant,
				Container:  ci,
				Index:      e.Index,
				MetaOffset: metaAt,
				Offset:     metaAt + len(meta),
				Size:       len(e.Payload),
				Padding:    pad,
				Type:       e.Type,
			})
			res.Replaced++
			if e.DeclaredSize > 0 {
				res.Delta += len(e.Payload) - e.DeclaredSize
			}
		}
		if t := p.Trailer(); len(t) > 0 {
			plan.Metadata(t)
		}
	}
	res.Plan = plan
	res.Output = plan.Materialize()
	return res, nil
}
