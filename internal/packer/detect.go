package packer

import (
	"bytes"
	"fmt"

	"example.com/logopack/internal/imgsniff"
)

// Status is the outcome of comparing an entry with its replacement candidate.
type Status int

const (
	Unchanged Status = iota
	Modified
	Missing
	TypeMismatch
)

func (s Status) String() string {
	switch s {
	case Unchanged:
		return "unchanged"
	case Modified:
		return "modified"
	case Missing:
		return "missing"
	case TypeMismatch:
		return "type-mismatch"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Candidate is a replacement payload handed in by a collaborator.
type Candidate struct {
	Index  int
	Offset int
	Bytes  []byte
	// Source describes where the bytes came from, typically a file path.
	Source string
}

// CandidateSource resolves the replacement for an entry. Implementations own
// any filesystem access.
type CandidateSource interface {
	Lookup(index, offset int, t imgsniff.Type) (Candidate, bool)
}

// CandidateKey identifies a candidate by entry index and payload offset.
type CandidateKey struct {
	Index  int
	Offset int
}

// CandidateMap is an in-memory CandidateSource.
type CandidateMap map[CandidateKey][]byte

func (m CandidateMap) Lookup(index, offset int, _ imgsniff.Type) (Candidate, bool) {
	b, ok := m[CandidateKey{Index: index, Offset: offset}]
	if !ok {
		return Candidate{}, false
	}
	return Candidate{Index: index, Offset: offset, Bytes: b}, true
}

// Classification pairs an entry with its detection result. Bytes holds the
// accepted replacement and is only set for Modified entries.
type Classification struct {
	Container     int
	Entry         Entry
	Status        Status
	Bytes         []byte
	Source        string
	CandidateType imgsniff.Type
	Delta         int
	Err           error
}

// Detect classifies every entry of c against src.
func Detect(c Container, src CandidateSource) []Classification {
	out := make([]Classification, 0, len(c.Entries))
	for _, e := range c.Entries {
		out = append(out, classify(e, src))
	}
	return out
}

// DetectAll runs Detect over every container and records the container
// position on each classification.
func DetectAll(cs []Container, src CandidateSource) []Classification {
	var out []Classification
	for i, c := range cs {
		for _, cl := range Detect(c, src) {
			cl.Container = i
			out = append(out, cl)
		}
	}
	return out
}

func classify(e Entry, src CandidateSource) Classification {
	cl := Classification{Entry: e, CandidateType: imgsniff.Unknown}
	if src == nil {
		cl.Status = Missing
		cl.Err = fmt.Errorf("%w: entry %d at 0x%08X", ErrCandidateMissing, e.Index, e.Offset)
		return cl
	}
	cand, ok := src.Lookup(e.Index, e.Offset, e.Type)
	if !ok {
		cl.Status = Missing
		cl.Err = fmt.Errorf("%w: entry %d at 0x%08X", ErrCandidateMissing, e.Index, e.Offset)
		return cl
	}
	cl.Source = cand.Source
	if bytes.Equal(cand.Bytes, e.Payload) {
		cl.Status = Unchanged
		cl.CandidateType = e.Type
		return cl
	}
	cl.CandidateType = imgsniff.Sniff(cand.Bytes)
	if cl.CandidateType != e.Type {
		cl.Status = TypeMismatch
		cl.Err = fmt.Errorf("%w: entry %d at 0x%08X is %s, candidate is %s",
			ErrCandidateTypeMismatch, e.Index, e.Offset, e.Type, cl.CandidateType)
		return cl
	}
	cl.Status = Modified
	cl.Bytes = cand.Bytes
	cl.Delta = len(cand.Bytes) - e.DeclaredSize
	return cl
}

// Summary counts classifications by status.
type Summary struct {
	Unchanged    int `json:"unchanged"`
	Modified     int `json:"modified"`
	Missing      int `json:"missing"`
	TypeMismatch int `json:"typeMismatch"`
	Delta        int `json:"delta"`
}

func Summarize(cls []Classification) Summary {
	var s Summary
	for _, cl := range cls {
		switch cl.Status {
		case Unchanged:
			s.Unchanged++
		case Modified:
			s.Modified++
			s.Delta += cl.Delta
		case Missing:
			s.Missing++
		case TypeMismatch:
			s.TypeMismatch++
		}
	}
	return s
}
