package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"example.com/logopack/internal/candidates"
	"example.com/logopack/internal/common"
	"example.com/logopack/internal/hostio"
	"example.com/logopack/internal/imgsniff"
	"example.com/logopack/internal/manifest"
	"example.com/logopack/internal/packer"
	"example.com/logopack/internal/report"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

var stdout io.Writer = os.Stdout

const defaultAuditName = "logopack_audit.jsonl"

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	cmd := os.Args[1]
	args := os.Args[2:]
	var err error
	switch cmd {
	case "scan":
		err = scanCmd(args)
	case "extract":
		err = extractCmd(args)
	case "detect":
		err = detectCmd(args)
	case "repack":
		err = repackCmd(args)
	case "pack":
		err = packCmd(args)
	case "verify":
		err = verifyCmd(args)
	case "undo":
		err = undoCmd(args)
	case "batch":
		err = batchCmd(args)
	case "manifest":
		err = manifestCmd(args)
	case "verify-signature":
		err = verifySignatureCmd(args)
	default:
		usage()
		return
	}
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Printf(`logopack %s (built %s) <command> [options]

Commands:
  scan     --in <dump> [--format auto|asus|msi] [--json]
  extract  --in <dump> --out-dir <dir> [--format auto|asus|msi]
  detect   --in <dump> --dir <extracted> [--format auto|asus|msi]
  repack   --in <dump> --dir <extracted> [--out <file>] [--format auto|asus|msi] [--report <json>] [--pdf <pdf>] [--no-backup] [--force] [--config <yaml>]
  pack     --dir <extracted> [--out <file>] [--orig <dump>] [--report <json>] [--config <yaml>]
  verify   --in <repacked> --orig <dump> --dir <extracted> [--format auto|asus|msi]
  undo     --in <repacked> --audit <audit.jsonl> [--backup <file>] --out <restored>
  batch    --in <dir> --out-dir <dir> [--concurrency N] [--progress] [--format auto|asus|msi] [--no-backup] [--config <yaml>]
  manifest --inputs <comma-separated> --out <manifest.json> [--sign --key <key.pem> --cert <cert.pem> --jws-out <file>]
  verify-signature --manifest <manifest.json> --jws <signature.jws> --cert <cert.pem>
`, version, buildDate)
}

func required(names ...string) error {
	return fmt.Errorf("required: %s", strings.Join(names, ", "))
}

func scanCmd(args []string) error {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	in := fs.String("in", "", "input dump")
	format := fs.String("format", "auto", "container format: auto, asus or msi")
	asJSON := fs.Bool("json", false, "print the structure as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return required("--in")
	}

	host, err := hostio.Open(*in)
	if err != nil {
		return err
	}
	defer host.Close()
	v, cs, err := scanDump(*in, host.Bytes(), *format)
	if err != nil {
		return err
	}
	if *asJSON {
		b, err := json.MarshalIndent(candidates.Describe(*in, host.Bytes(), cs), "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, string(b))
		return nil
	}

	fmt.Fprintf(stdout, "%s: %s, %d %s container(s)\n", *in, common.FormatBytes(int64(host.Size())), len(cs), v)
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	for i, c := range cs {
		fmt.Fprintf(tw, "container %d\t0x%08X\t%s\t%d entries\n", i+1, c.Start, common.FormatBytes(int64(c.Length)), len(c.Entries))
		for _, e := range c.Entries {
			info := imgsniff.Describe(e.Payload)
			dims := "-"
			if info.Width > 0 {
				dims = fmt.Sprintf("%dx%d", info.Width, info.Height)
			}
			fmt.Fprintf(tw, "  #%d\t0x%08X\t%d\t%s\t%s\t%016x\n", e.Index, e.Offset, e.DeclaredSize, e.Type, dims, e.Fingerprint())
		}
	}
	return tw.Flush()
}

func extractCmd(args []string) error {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	in := fs.String("in", "", "input dump")
	outDir := fs.String("out-dir", "", "extraction directory")
	format := fs.String("format", "auto", "container format: auto, asus or msi")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" || *outDir == "" {
		return required("--in", "--out-dir")
	}

	host, err := hostio.Open(*in)
	if err != nil {
		return err
	}
	defer host.Close()
	_, cs, err := scanDump(*in, host.Bytes(), *format)
	if err != nil {
		return err
	}
	st, err := candidates.Extract(*outDir, *in, host.Bytes(), cs)
	if err != nil {
		return err
	}
	n := 0
	for _, c := range st.Containers {
		n += len(c.Entries)
	}
	fmt.Fprintf(stdout, "Extracted %d image(s) from %d container(s) to %s\n", n, len(st.Containers), *outDir)
	return nil
}

func detectCmd(args []string) error {
	fs := flag.NewFlagSet("detect", flag.ContinueOnError)
	in := fs.String("in", "", "input dump")
	dir := fs.String("dir", "", "directory with replacement images")
	format := fs.String("format", "auto", "container format: auto, asus or msi")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" || *dir == "" {
		return required("--in", "--dir")
	}

	host, err := hostio.Open(*in)
	if err != nil {
		return err
	}
	defer host.Close()
	_, cs, err := scanDump(*in, host.Bytes(), *format)
	if err != nil {
		return err
	}
	src, err := candidates.OpenDir(*dir)
	if err != nil {
		return err
	}
	cls := packer.DetectAll(cs, src)
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	for _, cl := range cls {
		fmt.Fprintf(tw, "%d\t#%d\t0x%08X\t%s\t%s\t%+d\n",
			cl.Container+1, cl.Entry.Index, cl.Entry.Offset, cl.Entry.Type, cl.Status, cl.Delta)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	s := packer.Summarize(cls)
	fmt.Fprintf(stdout, "unchanged %d, modified %d, missing %d, type mismatch %d, delta %+d bytes\n",
		s.Unchanged, s.Modified, s.Missing, s.TypeMismatch, s.Delta)
	return nil
}

func repackCmd(args []string) error {
	fs := flag.NewFlagSet("repack", flag.ContinueOnError)
	in := fs.String("in", "", "input dump")
	dir := fs.String("dir", "", "directory with replacement images")
	out := fs.String("out", "", "output file (default <name>_<format>_repacked.bin)")
	format := fs.String("format", "auto", "container format: auto, asus or msi")
	reportPath := fs.String("report", "", "JSON report output")
	pdfPath := fs.String("pdf", "", "PDF report output")
	noBackup := fs.Bool("no-backup", false, "skip the backup of the input")
	force := fs.Bool("force", false, "accept a --dir extracted from a different dump")
	configPath := fs.String("config", "", "YAML configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" || *dir == "" {
		return required("--in", "--dir")
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
		In:        *in,
		Dir:       *dir,
		Out:       *out,
		Format:    *format,
		Report:    *reportPath,
		PDF:       *pdfPath,
		QRSize:    cfg.Report.QRSize,
		Backup:    cfg.backupEnabled() && !*noBackup,
		BackupDir: cfg.Backup.Dir,
		Compress:  cfg.backupCompress(),
		Force:     *force,
	}
	if opts.Out == "" {
		opts.OutDir = cfg.WorkDir
	}
	if opts.BackupDir == "" && cfg.WorkDir != "" {
		opts.BackupDir = cfg.WorkDir
	}
	auditPath := cfg.Audit.Path
	if auditPath == "" {
		base := cfg.WorkDir
		if base == "" {
			base = filepath.Dir(*in)
		}
		auditPath = filepath.Join(base, defaultAuditName)
	}
	opts.Audit = common.NewReplaceLog(auditPath)

	res, err := repackFile(opts)
	if err != nil {
		return err
	}
	if opts.PDF == "" && cfg.Report.PDF {
		p := strings.TrimSuffix(res.Output, filepath.Ext(res.Output)) + "_report.pdf"
		if err := report.SavePDF(res.Report, p, cfg.Report.QRSize); err != nil {
			return fmt.Errorf("pdf report: %w", err)
		}
	}

	fmt.Fprintf(stdout, "Format: %s, strategy: %s, replaced %d of %d image(s)\n",
		res.Variant, res.Result.Strategy, res.Result.Replaced, res.Entries)
	fmt.Fprintf(stdout, "Size: %s -> %s\n", common.FormatBytes(int64(res.InputSize)), common.FormatBytes(int64(len(res.Result.Output))))
	if res.Backup != "" {
		fmt.Fprintf(stdout, "Backup: %s\n", res.Backup)
	}
	fmt.Fprintf(stdout, "Output: %s (%s)\n", res.Output, res.Report.OutputDigest)
	if res.Result.Replaced > 0 {
		fmt.Fprintf(stdout, "Audit: %s\n", auditPath)
	}
	return nil
}

func verifyCmd(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	in := fs.String("in", "", "repacked dump")
	orig := fs.String("orig", "", "original dump")
	dir := fs.String("dir", "", "directory with replacement images")
	format := fs.String("format", "auto", "container format: auto, asus or msi")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" || *orig == "" || *dir == "" {
		return required("--in", "--orig", "--dir")
	}

	host, err := hostio.Open(*orig)
	if err != nil {
		return err
	}
	defer host.Close()
	_, cs, err := scanDump(*orig, host.Bytes(), *format)
	if err != nil {
		return err
	}
	src, err := candidates.OpenDir(*dir)
	if err != nil {
		return err
	}
	res, err := packer.Rebuild(host.Bytes(), cs, packer.DetectAll(cs, src))
	if err != nil {
		return err
	}

	repacked, err := os.ReadFile(*in)
	if err != nil {
		return err
	}
	if err := packer.Verify(repacked, res.Placements); err != nil {
		return err
	}
	if !bytes.Equal(repacked, res.Output) {
		return fmt.Errorf("%w: %s differs from the expected rebuild (%s, want %s)",
			packer.ErrVerifyFailed, *in, common.DigestBytes(repacked), common.DigestBytes(res.Output))
	}
	fmt.Fprintf(stdout, "OK: %s matches a %s rebuild of %s (%d replaced)\n", *in, res.Strategy, *orig, res.Replaced)
	return nil
}

func undoCmd(args []string) error {
	fs := flag.NewFlagSet("undo", flag.ContinueOnError)
	in := fs.String("in", "", "repacked dump")
	audit := fs.String("audit", "", "audit log (jsonl)")
	backup := fs.String("backup", "", "backup file (default from the audit log)")
	out := fs.String("out", "", "restored output file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" || *audit == "" || *out == "" {
		return required("--in", "--audit", "--out")
	}

	entries, err := common.ReadReplaceLog(*audit)
	if err != nil {
		return fmt.Errorf("read audit: %w", err)
	}
	if len(entries) == 0 {
		return errors.New("audit log is empty")
	}
	repackedDigest, _, err := common.DigestOfFile(*in)
	if err != nil {
		return fmt.Errorf("digest input: %w", err)
	}

	// Match by content so renamed outputs can still be undone.
	var matched []common.ReplaceEntry
	for _, e := range entries {
		if e.OutputDigest == repackedDigest {
			matched = append(matched, e)
		}
	}
	if len(matched) == 0 {
		if byPath := common.ForOutput(entries, *in); len(byPath) > 0 {
			return fmt.Errorf("%s was modified after repacking: %w", *in, common.ErrDigestMismatch)
		}
		return fmt.Errorf("no audit entries for %s", *in)
	}
	last := matched[len(matched)-1]

	backupPath := *backup
	if backupPath == "" {
		backupPath = last.Backup
	}
	if backupPath == "" {
		return errors.New("no backup recorded, pass --backup")
	}
	if err := hostio.Restore(backupPath, *out, last.InputDigest); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Reverted %d replacement(s) into %s\n", len(matched), *out)
	fmt.Fprintf(stdout, "Repacked: %s\n", repackedDigest)
	fmt.Fprintf(stdout, "Restored: %s\n", last.InputDigest)
	return nil
}

func manifestCmd(args []string) error {
	fs := flag.NewFlagSet("manifest", flag.ContinueOnError)
	inputs := fs.String("inputs", "", "comma-separated paths")
	out := fs.String("out", "manifest.json", "output json")
	sign := fs.Bool("sign", false, "sign manifest (detached JWS over JSON)")
	keyPath := fs.String("key", "", "PEM private key for signing (requires --sign)")
	certPath := fs.String("cert", "", "PEM certificate describing signer (requires --sign)")
	jwsOut := fs.String("jws-out", "", "output JWS file (defaults to manifest path with .jws)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inputs == "" {
		return required("--inputs")
	}
	if *sign && (*keyPath == "" || *certPath == "") {
		return errors.New("--sign requires --key and --cert")
	}

	var paths []string
	for _, p := range strings.Split(*inputs, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		paths = append(paths, p)
	}
	if len(paths) == 0 {
		return errors.New("no input paths specified")
	}
	m, err := manifest.Build(paths)
	if err != nil {
		return err
	}
	if !*sign {
		if err := manifest.Save(m, *out); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Wrote %s with %d item(s)\n", *out, len(m.Items))
		return nil
	}

	keyBytes, err := os.ReadFile(*keyPath)
	if err != nil {
		return fmt.Errorf("read key: %w", err)
	}
	certBytes, err := os.ReadFile(*certPath)
	if err != nil {
		return fmt.Errorf("read cert: %w", err)
	}
	sigPath := *jwsOut
	if sigPath == "" {
		sigPath = strings.TrimSuffix(*out, filepath.Ext(*out)) + ".jws"
	}
	payload, sig, err := manifest.Sign(m, keyBytes, certBytes, sigPath)
	if err != nil {
		return err
	}
	if err := common.WriteFileAtomic(sigPath, sig, 0o644); err != nil {
		return fmt.Errorf("write jws: %w", err)
	}
	if err := common.WriteFileAtomic(*out, payload, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	fmt.Fprintf(stdout, "Wrote %s with %d item(s)\n", *out, len(m.Items))
	fmt.Fprintf(stdout, "Wrote signature %s\n", sigPath)
	return nil
}

func verifySignatureCmd(args []string) error {
	fs := flag.NewFlagSet("verify-signature", flag.ContinueOnError)
	manifestPath := fs.String("manifest", "", "manifest JSON file")
	jwsPath := fs.String("jws", "", "manifest JWS signature file")
	certPath := fs.String("cert", "", "signer certificate (PEM)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *manifestPath == "" || *jwsPath == "" || *certPath == "" {
		return required("--manifest", "--jws", "--cert")
	}
	manifestBytes, err := os.ReadFile(*manifestPath)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}
	jwsBytes, err := os.ReadFile(*jwsPath)
	if err != nil {
		return fmt.Errorf("read jws: %w", err)
	}
	certBytes, err := os.ReadFile(*certPath)
	if err != nil {
		return fmt.Errorf("read cert: %w", err)
	}
	if err := manifest.VerifySignature(manifestBytes, jwsBytes, certBytes); err != nil {
		return fmt.Errorf("verify signature: %w", err)
	}
	m, err := manifest.Load(*manifestPath)
	if err != nil {
		return err
	}
	if err := manifest.Check(m); err != nil {
		return err
	}
	fmt.Fprintln(stdout, "Signature OK")
	return nil
}
