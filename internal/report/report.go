// Package report renders the outcome of a repack run as JSON and PDF.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/opencontainers/go-digest"

	"example.com/logopack/internal/common"
	"example.com/logopack/internal/packer"
)

type EntryRow struct {
	Container int    `json:"container"`
	Variant   string `json:"variant"`
	Index     int    `json:"index"`
	Offset    int    `json:"offset"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	OldSize   int    `json:"oldSize"`
	NewSize   int    `json:"newSize"`
	Delta     int    `json:"delta"`
	Source    string `json:"source,omitempty"`
	Note      string `json:"note,omitempty"`
}

type RepackReport struct {
	CreatedAt       time.Time      `json:"createdAt"`
	Input           string         `json:"input"`
	Output          string         `json:"output,omitempty"`
	Backup          string         `json:"backup,omitempty"`
	Variant         string         `json:"variant"`
	Strategy        string         `json:"strategy"`
	InputDigest     digest.Digest  `json:"inputDigest"`
	OutputDigest    digest.Digest  `json:"outputDigest"`
	InputSize       int            `json:"inputSize"`
	OutputSize      int            `json:"outputSize"`
	InputSizeHuman  string         `json:"inputSizeHuman"`
	OutputSizeHuman string         `json:"outputSizeHuman"`
	Containers      int            `json:"containers"`
	Replaced        int            `json:"replaced"`
	Delta           int            `json:"delta"`
	Verified        bool           `json:"verified"`
	Summary         packer.Summary `json:"summary"`
	Entries         []EntryRow     `json:"entries"`
	PlanBytes       map[string]int `json:"planBytes,omitempty"`
	Diagnostics     []string       `json:"diagnostics,omitempty"`
}

// planKinds fixes the order op kinds are listed in.
var planKinds = []packer.OpKind{packer.OpCopy, packer.OpMetadata, packer.OpPayload, packer.OpPadding}

// planBytes breaks the output of a rebuild plan down by op kind. Verbatim
// copies without a plan yield nil.
func planBytes(p *packer.Plan) map[string]int {
	if p == nil {
		return nil
	}
	out := make(map[string]int)
	for kind, n := range p.Counts() {
		out[kind.String()] = n
	}
	return out
}

// PlanLine renders PlanBytes as "copy N, metadata N, ..." in op order.
func (r RepackReport) PlanLine() string {
	var parts []string
	for _, kind := range planKinds {
		if n, ok := r.PlanBytes[kind.String()]; ok {
			parts = append(parts, fmt.Sprintf("%s %d", kind, n))
		}
	}
	return strings.Join(parts, ", ")
}

// Build describes one rebuild of host. Paths are informational only.
func Build(input, output string, v packer.Variant, host []byte, cs []packer.Container, cls []packer.Classification, res packer.Result) RepackReport {
	rep := RepackReport{
		CreatedAt:       time.Now().UTC(),
		Input:           input,
		Output:          output,
		Variant:         v.String(),
		Strategy:        res.Strategy.String(),
		InputDigest:     common.DigestBytes(host),
		OutputDigest:    common.DigestBytes(res.Output),
		InputSize:       len(host),
		OutputSize:      len(res.Output),
		InputSizeHuman:  common.FormatBytes(int64(len(host))),
		OutputSizeHuman: common.FormatBytes(int64(len(res.Output))),
		Containers:      len(cs),
		Replaced:        res.Replaced,
		Delta:           res.Delta,
		Summary:         packer.Summarize(cls),
		PlanBytes:       planBytes(res.Plan),
		Diagnostics:     res.Diagnostics,
	}
	for _, cl := range cls {
		row := EntryRow{
			Container: cl.Container + 1,
			Variant:   v.String(),
			Index:     cl.Entry.Index,
			Offset:    cl.Entry.Offset,
			Type:      cl.Entry.Type.String(),
			Status:    cl.Status.String(),
			OldSize:   cl.Entry.DeclaredSize,
			NewSize:   cl.Entry.DeclaredSize,
			Source:    cl.Source,
		}
		if cl.Status == packer.Modified {
			row.NewSize = len(cl.Bytes)
			row.Delta = cl.Delta
		}
		if cl.Err != nil {
			row.Note = cl.Err.Error()
		}
		rep.Entries = append(rep.Entries, row)
	}
	return rep
}

func SaveJSON(rep RepackReport, out string) error {
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	return common.WriteFileAtomic(out, b, 0o644)
}

func LoadJSON(path string) (RepackReport, error) {
	var rep RepackReport
	b, err := os.ReadFile(path)
	if err != nil {
		return rep, err
	}
	err = json.Unmarshal(b, &rep)
	return rep, err
}
