package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"example.com/logopack/internal/candidates"
	"example.com/logopack/internal/common"
	"example.com/logopack/internal/hostio"
	"example.com/logopack/internal/packer"
	"example.com/logopack/internal/report"
)

type repackOptions struct {
	In        string
	Dir       string
	Out       string
	OutDir    string
	Format    string
	Report    string
	PDF       string
	QRSize    int
	Backup    bool
	BackupDir string
	Compress  bool
	Force     bool
	Audit     *common.ReplaceLog
}

type repackOutcome struct {
	Variant    packer.Variant
	Output     string
	Backup     string
	InputSize  int
	Containers int
	Entries    int
	Result     packer.Result
	Report     report.RepackReport
}

// resolveVariant maps the --format value to a variant. auto requires exactly
// one registered format to find entries in buf.
func resolveVariant(format string, buf []byte) (packer.Variant, error) {
	if format != "" && format != "auto" {
		return packer.ParseVariant(format)
	}
	found := packer.SniffVariant(buf)
	switch len(found) {
	case 0:
		return 0, errors.New("no known container format found")
	case 1:
		return found[0], nil
	default:
		return 0, fmt.Errorf("dump holds several formats %v, pass --format", found)
	}
}

// scanDump decodes the containers of buf and logs every anomaly.
func scanDump(name string, buf []byte, format string) (packer.Variant, []packer.Container, error) {
	v, err := resolveVariant(format, buf)
	if err != nil {
		return 0, nil, err
	}
	cs, anomalies, err := packer.Scan(buf, v)
	if err != nil {
		return 0, nil, err
	}
	for _, a := range anomalies {
		common.Logf("%s: %v", name, a)
	}
	return v, cs, nil
}

func repackFile(o repackOptions) (repackOutcome, error) {
	var out repackOutcome
	host, err := hostio.Open(o.In)
	if err != nil {
		return out, err
	}
	defer host.Close()
	buf := host.Bytes()
	out.InputSize = len(buf)

	v, cs, err := scanDump(o.In, buf, o.Format)
	if err != nil {
		return out, err
	}
	if len(cs) == 0 {
		return out, fmt.Errorf("no %s containers in %s", v, o.In)
	}
	out.Variant = v
	out.Containers = len(cs)
	for _, c := range cs {
		out.Entries += len(c.Entries)
	}

	src, err := candidates.OpenDir(o.Dir)
	if err != nil {
		return out, fmt.Errorf("open candidates: %w", err)
	}
	if err := candidates.CheckSource(o.Dir, common.DigestBytes(buf)); err != nil {
		if !o.Force || !errors.Is(err, candidates.ErrSourceMismatch) {
			return out, err
		}
		common.Logf("%s: %v, continuing", o.In, err)
	}
	cls := packer.DetectAll(cs, src)
	for _, cl := range cls {
		if cl.Status == packer.TypeMismatch {
			common.Logf("%s: %v", o.In, cl.Err)
		}
	}

	res, err := packer.Rebuild(buf, cs, cls)
	if err != nil {
		return out, err
	}
	for _, d := range res.Diagnostics {
		common.Logf("%s: %s", o.In, d)
	}
	if err := packer.Verify(res.Output, res.Placements); err != nil {
		return out, err
	}
	out.Result = res

	out.Output = o.Out
	if out.Output == "" {
		out.Output = hostio.DefaultOutputName(o.In, v)
		if o.OutDir != "" {
			out.Output = filepath.Join(o.OutDir, filepath.Base(out.Output))
		}
	}
	if filepath.Clean(out.Output) == filepath.Clean(o.In) {
		return out, errors.New("output must differ from input")
	}

	if o.Backup {
		path, _, err := hostio.Backup(o.In, o.BackupDir, o.Compress)
		if err != nil {
			return out, fmt.Errorf("backup: %w", err)
		}
		out.Backup = path
	}
	if err := hostio.WriteResult(out.Output, res); err != nil {
		return out, err
	}
	common.Logf("%s: %s rebuild, %d replaced, %+d bytes -> %s",
		o.In, res.Strategy, res.Replaced, len(res.Output)-len(buf), out.Output)

	rep := report.Build(o.In, out.Output, v, buf, cs, cls, res)
	rep.Backup = out.Backup
	rep.Verified = true
	out.Report = rep
	if line := rep.PlanLine(); line != "" {
		common.Logf("%s: emitted %s bytes", o.In, line)
	}

	if o.Audit != nil && res.Replaced > 0 {
		var entries []common.ReplaceEntry
		for _, cl := range cls {
			if cl.Status != packer.Modified {
				continue
			}
			entries = append(entries, common.ReplaceEntry{
				Input:        o.In,
				Output:       out.Output,
				Backup:       out.Backup,
				Variant:      v.String(),
				Strategy:     res.Strategy.String(),
				Container:    cl.Container + 1,
				Index:        cl.Entry.Index,
				Offset:       int64(cl.Entry.Offset),
				OldSize:      cl.Entry.DeclaredSize,
				NewSize:      len(cl.Bytes),
				OldDigest:    common.DigestBytes(cl.Entry.Payload),
				NewDigest:    common.DigestBytes(cl.Bytes),
				Source:       cl.Source,
				InputDigest:  rep.InputDigest,
				OutputDigest: rep.OutputDigest,
			})
		}
		if err := o.Audit.Append(entries...); err != nil {
			return out, fmt.Errorf("audit: %w", err)
		}
	}

	if o.Report != "" {
		if err := report.SaveJSON(rep, o.Report); err != nil {
			return out, fmt.Errorf("report: %w", err)
		}
	}
	if o.PDF != "" {
		if err := report.SavePDF(rep, o.PDF, o.QRSize); err != nil {
			return out, fmt.Errorf("pdf report: %w", err)
		}
	}
	return out, nil
}
