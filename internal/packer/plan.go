package packer

import (
	"fmt"
	"io"
)

// OpKind selects how an Op produces its bytes.
type OpKind int

const (
	OpCopy OpKind = iota
	OpMetadata
	OpPayload
	OpPadding
)

func (k OpKind) String() string {
	switch k {
	case OpCopy:
		return "copy"
	case OpMetadata:
		return "metadata"
	case OpPayload:
		return "payload"
	case OpPadding:
		return "padding"
	default:
		return fmt.Sprintf("op(%d)", int(k))
	}
}

// Op emits one run of output bytes. Copy ops reference [Src, Src+Len) of the
// source buffer; metadata and payload ops carry Data; padding ops emit Len
// zero bytes.
type Op struct {
	Kind OpKind
	Src  int
	Len  int
	Data []byte
}

// Plan is the ordered list of emissions that makes up a rebuilt buffer.
type Plan struct {
	src []byte
	Ops []Op
}

// NewPlan starts an empty plan whose copy ops read from src.
func NewPlan(src []byte) *Plan {
	return &Plan{src: src}
}

// Copy appends the verbatim span [from, to) of the source. Empty spans are
// dropped.
func (p *Plan) Copy(from, to int) error {
	if from < 0 || to > len(p.src) || from > to {
		return fmt.Errorf("copy span [%d, %d) outside source of %d bytes", from, to, len(p.src))
	}
	if from == to {
		return nil
	}
	if n := len(p.Ops); n > 0 {
		last := &p.Ops[n-1]
		if last.Kind == OpCopy && last.Src+last.Len == from {
			last.Len += to - from
			return nil
		}
	}
	p.Ops = append(p.Ops, Op{Kind: OpCopy, Src: from, Len: to - from})
	return nil
}

func (p *Plan) Metadata(b []byte) {
	p.Ops = append(p.Ops, Op{Kind: OpMetadata, Len: len(b), Data: b})
}

func (p *Plan) Payload(b []byte) {
	p.Ops = append(p.Ops, Op{Kind: OpPayload, Len: len(b), Data: b})
}

func (p *Plan) Padding(n int) {
	if n <= 0 {
		return
	}
	p.Ops = append(p.Ops, Op{Kind: OpPadding, Len: n})
}

// Size is the length of the materialized output.
func (p *Plan) Size() int {
	n := 0
	for _, op := range p.Ops {
		n += op.Len
	}
	return n
}

// Materialize builds the output buffer.
func (p *Plan) Materialize() []byte {
	out := make([]byte, 0, p.Size())
	for _, op := range p.Ops {
		switch op.Kind {
		case OpCopy:
			out = append(out, p.src[op.Src:op.Src+op.Len]...)
		case OpMetadata, OpPayload:
			out = append(out, op.Data...)
		case OpPadding:
			out = append(out, make([]byte, op.Len)...)
		}
	}
	return out
}

// WriteTo streams the output to w without building it in memory.
func (p *Plan) WriteTo(w io.Writer) (int64, error) {
	var (
		total int64
		zeros [64]byte
	)
	for _, op := range p.Ops {
		var chunk []byte
		switch op.Kind {
		case OpCopy:
			chunk = p.src[op.Src : op.Src+op.Len]
		case OpMetadata, OpPayload:
			chunk = op.Data
		case OpPadding:
			for left := op.Len; left > 0; {
				n := min(left, len(zeros))
				written, err := w.Write(zeros[:n])
				total += int64(written)
				if err != nil {
					return total, err
				}
				left -= n
			}
			continue
		}
		written, err := w.Write(chunk)
		total += int64(written)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Counts returns how many output bytes each op kind contributes.
func (p *Plan) Counts() map[OpKind]int {
	out := make(map[OpKind]int)
	for _, op := range p.Ops {
		out[op.Kind] += op.Len
	}
	return out
}
