package packer

import (
	"bytes"
	"fmt"
	"sort"

	"example.com/logopack/internal/imgsniff"
)

// Strategy is the rebuild method chosen for a set of classifications.
type Strategy int

const (
	StrategyNone Strategy = iota
	StrategyDirect
	StrategyStructural
	// StrategyAssembled builds containers without a host dump.
	StrategyAssembled
)

func (s Strategy) String() string {
	switch s {
	case StrategyNone:
		return "none"
	case StrategyDirect:
		return "direct"
	case StrategyStructural:
		return "structural"
	case StrategyAssembled:
		return "assembled"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// Placement records where an entry sits in the rebuilt buffer.
type Placement struct {
	Variant    Variant
	Container  int
	Index      int
	MetaOffset int
	Offset     int
	Size       int
	Padding    int
	Type       imgsniff.Type
}

// Result is the outcome of Rebuild.
type Result struct {
	Strategy    Strategy
	Output      []byte
	Plan        *Plan
	Placements  []Placement
	Replaced    int
	Delta       int
	Diagnostics []string
}

// Rebuild produces a new host buffer with every Modified classification
// applied. Without modifications the input is copied verbatim. When every
// replacement keeps its declared size the payloads are substituted in place;
// otherwise all containers are re-emitted with recomputed sizes and padding.
// host is never written to.
func Rebuild(host []byte, cs []Container, cls []Classification) (Result, error) {
	var res Result
	modified := make(map[int]Classification)
	sized := true
	for _, cl := range cls {
		switch cl.Status {
		case Modified:
			modified[cl.Entry.Offset] = cl
			res.Delta += cl.Delta
			if cl.Delta != 0 {
				sized = false
			}
		case Missing, TypeMismatch:
			res.Diagnostics = append(res.Diagnostics, fmt.Sprintf("kept original: %v", cl.Err))
		}
	}
	if len(modified) == 0 {
		res.Strategy = StrategyNone
		res.Output = bytes.Clone(host)
		res.Placements = originalPlacements(cs)
		return res, nil
	}

	if res.Delta == 0 && sized {
		plan, err := planDirect(host, cs, modified)
		if err == nil {
			res.Strategy = StrategyDirect
			res.Plan = plan
			res.Output = plan.Materialize()
			res.Placements = originalPlacements(cs)
			res.Replaced = len(modified)
			return res, nil
		}
		res.Diagnostics = append(res.Diagnostics, fmt.Sprintf("direct replace unavailable: %v", err))
	}

	plan, placements, err := planStructural(host, cs, modified)
	if err != nil {
		return Result{}, err
	}
	res.Strategy = StrategyStructural
	res.Plan = plan
	res.Output = plan.Materialize()
	res.Placements = placements
	res.Replaced = len(modified)
	return res, nil
}

func planDirect(host []byte, cs []Container, modified map[int]Classification) (*Plan, error) {
	known := make(map[int]Entry)
	for _, c := range cs {
		for _, e := range c.Entries {
			known[e.Offset] = e
		}
	}
	offsets := make([]int, 0, len(modified))
	for off := range modified {
		offsets = append(offsets, off)
	}
	sort.Ints(offsets)

	plan := NewPlan(host)
	cursor := 0
	for _, off := range offsets {
		cl := modified[off]
		e, ok := known[off]
		if !ok {
			return nil, fmt.Errorf("entry at 0x%08X is not part of a scanned container", off)
		}
		if len(cl.Bytes) != e.DeclaredSize {
			return nil, fmt.Errorf("entry %d at 0x%08X changes size by %d", e.Index, off, len(cl.Bytes)-e.DeclaredSize)
		}
		if off < cursor || e.End() > len(host) {
			return nil, fmt.Errorf("entry %d at 0x%08X overlaps or exceeds %d bytes", e.Index, off, len(host))
		}
		if err := plan.Copy(cursor, off); err != nil {
			return nil, err
		}
		plan.Payload(cl.Bytes)
		cursor = e.End()
	}
	if err := plan.Copy(cursor, len(host)); err != nil {
		return nil, err
	}
	return plan, nil
}

func planStructural(host []byte, cs []Container, modified map[int]Classification) (*Plan, []Placement, error) {
	plan := NewPlan(host)
	var placements []Placement
	cursor := 0
	used := 0
	for ci, c := range cs {
		p, err := PolicyFor(c.Variant)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: container %d: %v", ErrReconstructionFatal, ci, err)
		}
		headerEnd := c.Start + len(c.Header)
		if c.Start < cursor {
			return nil, nil, fmt.Errorf("%w: container %d at 0x%08X overlaps previous container ending at 0x%08X",
				ErrReconstructionFatal, ci, c.Start, cursor)
		}
		if headerEnd > len(host) || c.End() > len(host) || c.End() < headerEnd {
			return nil, nil, fmt.Errorf("%w: container %d header [0x%08X, 0x%08X) cannot be sliced from %d bytes",
				ErrReconstructionFatal, ci, c.Start, headerEnd, len(host))
		}
		if !bytes.Equal(host[c.Start:headerEnd], c.Header) {
			return nil, nil, fmt.Errorf("%w: container %d header does not match host at 0x%08X",
				ErrReconstructionFatal, ci, c.Start)
		}
		if err := plan.Copy(cursor, headerEnd); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrReconstructionFatal, err)
		}

		entries := make([]Entry, len(c.Entries))
		copy(entries, c.Entries)
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].Index < entries[j].Index
		})
		for _, e := range entries {
			payload := e.Payload
			typ := e.Type
			if cl, ok := modified[e.Offset]; ok {
				payload = cl.Bytes
				typ = cl.CandidateType
				used++
			}
			meta := p.EncodeMetadata(host, e, len(payload))
			metaAt := plan.Size()
			pad := padding(len(payload), p.Stride())
			plan.Metadata(meta)
			plan.Payload(payload)
			plan.Padding(pad)
			placements = append(placements, Placement{
				Variant:    c.Variant,
				Container:  ci,
				Index:      e.Index,
				MetaOffset: metaAt,
				Offset:     metaAt + len(meta),
				Size:       len(payload),
				Padding:    pad,
				Type:       typ,
			})
		}
		cursor = c.End()
	}
	if err := plan.Copy(cursor, len(host)); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrReconstructionFatal, err)
	}
	if used != len(modified) {
		return nil, nil, fmt.Errorf("%w: %d modified entries are not part of any container",
			ErrReconstructionFatal, len(modified)-used)
	}
	return plan, placements, nil
}

func originalPlacements(cs []Container) []Placement {
	var out []Placement
	for ci, c := range cs {
		stride := 1
		if p, err := PolicyFor(c.Variant); err == nil {
			stride = p.Stride()
		}
		for _, e := range c.Entries {
			out = append(out, Placement{
				Variant:    c.Variant,
				Container:  ci,
				Index:      e.Index,
				MetaOffset: e.MetaOffset,
				Offset:     e.Offset,
				Size:       e.DeclaredSize,
				Padding:    padding(e.DeclaredSize, stride),
				Type:       e.Type,
			})
		}
	}
	return out
}
