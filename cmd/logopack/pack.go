package main

import (
	"flag"
	"fmt"
	"path/filepath"

	"example.com/logopack/internal/candidates"
	"example.com/logopack/internal/common"
	"example.com/logopack/internal/hostio"
	"example.com/logopack/internal/packer"
	"example.com/logopack/internal/report"
)

type packOutcome struct {
	Original string
	Output   string
	Variant  packer.Variant
	Entries  int
	Result   packer.Result
	Report   report.RepackReport
}

// defaultPackName derives <dir>_<variant>_packed.bin next to the extraction
// directory.
func defaultPackName(dir string, v packer.Variant) string {
	clean := filepath.Clean(dir)
	return filepath.Join(filepath.Dir(clean), fmt.Sprintf("%s_%s_packed.bin", filepath.Base(clean), v))
}

// assembleDir builds the containers recorded in dir/structure.json from the
// image files below dir alone.
func assembleDir(dir string, st candidates.Structure) ([]packer.Container, packer.Result, error) {
	cs, err := st.Layout()
	if err != nil {
		return nil, packer.Result{}, err
	}
	if len(cs) == 0 {
		return nil, packer.Result{}, fmt.Errorf("%s in %s lists no containers", candidates.StructureFile, dir)
	}
	src, err := candidates.OpenDir(dir)
	if err != nil {
		return nil, packer.Result{}, fmt.Errorf("open candidates: %w", err)
	}
	if err := candidates.Resolve(cs, src); err != nil {
		return nil, packer.Result{}, err
	}
	res, err := packer.Assemble(cs)
	if err != nil {
		return nil, packer.Result{}, err
	}
	if err := packer.Verify(res.Output, res.Placements); err != nil {
		return nil, packer.Result{}, err
	}
	return cs, res, nil
}

// packFile rebuilds a dump from an extraction directory. When the original
// dump is known, or can be found through structure.json, it is repacked
// against it. Otherwise the recorded containers are assembled on their own.
func packFile(o repackOptions, orig string) (packOutcome, error) {
	var out packOutcome
	st, ok, err := candidates.ReadStructure(o.Dir)
	if err != nil {
		return out, err
	}
	if !ok {
		return out, fmt.Errorf("no %s in %s, run extract first", candidates.StructureFile, o.Dir)
	}
	if orig == "" {
		if found, ok := candidates.FindOriginal(o.Dir, st); ok {
			orig = found
			common.Logf("%s: found original dump %s", o.Dir, orig)
		}
	}

	if orig != "" {
		o.In = orig
		rp, err := repackFile(o)
		if err != nil {
			return out, err
		}
		out.Original = orig
		out.Output = rp.Output
		out.Variant = rp.Variant
		out.Entries = rp.Entries
		out.Result = rp.Result
		out.Report = rp.Report
		return out, nil
	}

	cs, res, err := assembleDir(o.Dir, st)
	if err != nil {
		return out, err
	}
	out.Variant = cs[0].Variant
	for _, c := range cs {
		out.Entries += len(c.Entries)
	}
	out.Result = res
	out.Output = o.Out
	if out.Output == "" {
		out.Output = defaultPackName(o.Dir, out.Variant)
		if o.OutDir != "" {
			out.Output = filepath.Join(o.OutDir, filepath.Base(out.Output))
		}
	}
	if err := hostio.WriteResult(out.Output, res); err != nil {
		return out, err
	}
	common.Logf("%s: assembled %d container(s), %d image(s) -> %s", o.Dir, len(cs), out.Entries, out.Output)

	rep := report.Build(o.Dir, out.Output, out.Variant, nil, cs, nil, res)
	rep.Verified = true
	out.Report = rep
	if o.Report != "" {
		if err := report.SaveJSON(rep, o.Report); err != nil {
			return out, fmt.Errorf("report: %w", err)
		}
	}
	return out, nil
}

func packCmd(args []string) error {
	fs := flag.NewFlagSet("pack", flag.ContinueOnError)
	dir := fs.String("dir", "", "extraction directory holding structure.json")
	out := fs.String("out", "", "output file (default <dir>_<format>_packed.bin, or <name>_<format>_repacked.bin with an original dump)")
	orig := fs.String("orig", "", "original dump (default: located through structure.json)")
	reportPath := fs.String("report", "", "JSON report output")
	configPath := fs.String("config", "", "YAML configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dir == "" {
		return required("--dir")
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	closer, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	opts := repackOptions{
		Dir:    *dir,
		Out:    *out,
		Format: "auto",
		Report: *reportPath,
		QRSize: cfg.Report.QRSize,
	}
	if opts.Out == "" {
		opts.OutDir = cfg.WorkDir
	}
	res, err := packFile(opts, *orig)
	if err != nil {
		return err
	}

	if res.Original != "" {
		fmt.Fprintf(stdout, "Original: %s\n", res.Original)
		fmt.Fprintf(stdout, "Format: %s, strategy: %s, replaced %d of %d image(s)\n",
			res.Variant, res.Result.Strategy, res.Result.Replaced, res.Entries)
	} else {
		fmt.Fprintf(stdout, "Format: %s, strategy: %s, %d image(s) from %s\n",
			res.Variant, res.Result.Strategy, res.Entries, *dir)
	}
	fmt.Fprintf(stdout, "Size: %s\n", common.FormatBytes(int64(len(res.Result.Output))))
	fmt.Fprintf(stdout, "Output: %s (%s)\n", res.Output, res.Report.OutputDigest)
	return nil
}
