package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"example.com/logopack/internal/common"
)

var dumpExts = []string{".bin", ".rom", ".cap", ".fd"}

type batchJob struct {
	In  string
	Dir string
}

// findBatchJobs pairs every dump in dir with the extraction directory of the
// same base name next to it. Dumps without one are skipped.
func findBatchJobs(dir string) ([]batchJob, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var jobs []batchJob
	for _, de := range des {
		if !de.Type().IsRegular() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(de.Name()))
		if !isDumpExt(ext) || strings.HasSuffix(strings.TrimSuffix(de.Name(), filepath.Ext(de.Name())), "_repacked") {
			continue
		}
		in := filepath.Join(dir, de.Name())
		cand := strings.TrimSuffix(in, filepath.Ext(in))
		if info, err := os.Stat(cand); err != nil || !info.IsDir() {
			common.Logf("batch: skip %s, no %s directory", in, filepath.Base(cand))
			continue
		}
		jobs = append(jobs, batchJob{In: in, Dir: cand})
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].In < jobs[j].In })
	return jobs, nil
}

func isDumpExt(ext string) bool {
	for _, e := range dumpExts {
		if e == ext {
			return true
		}
	}
	return false
}

func batchCmd(args []string) error {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	inDir := fs.String("in", ".", "directory of dumps, each with an extraction directory of the same name")
	outDir := fs.String("out-dir", "out", "results directory")
	concurrency := fs.Int("concurrency", 0, "maximum dumps repacked at once (default from config or CPU count)")
	progress := fs.Bool("progress", false, "display progress updates")
	format := fs.String("format", "auto", "container format: auto, asus or msi")
	noBackup := fs.Bool("no-backup", false, "skip backups of the inputs")
	configPath := fs.String("config", "", "YAML configuration file")
	if err := fs.Parse(args); err != nil {
		return err
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
	limit := cfg.Batch.Concurrency
	if *concurrency > 0 {
		limit = *concurrency
	}

	jobs, err := findBatchJobs(*inDir)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return fmt.Errorf("no dumps with extraction directories in %s", *inDir)
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}
	backupDir := cfg.Backup.Dir
	if backupDir == "" {
		backupDir = filepath.Join(*outDir, "backups")
	}
	auditPath := cfg.Audit.Path
	if auditPath == "" {
		auditPath = filepath.Join(*outDir, defaultAuditName)
	}
	audit := common.NewReplaceLog(auditPath)

	metrics := common.NewMetrics()
	metrics.SetTotalFiles(int64(len(jobs)))
	metrics.Start()
	stop := func() {}
	if *progress {
		stop = common.StartProgressPrinter(os.Stderr, metrics, 500*time.Millisecond)
	}

	var failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(limit)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			base := strings.TrimSuffix(filepath.Base(job.In), filepath.Ext(job.In))
			opts := repackOptions{
				In:        job.In,
				Dir:       job.Dir,
				OutDir:    *outDir,
				Format:    *format,
				Report:    filepath.Join(*outDir, base+"_report.json"),
				QRSize:    cfg.Report.QRSize,
				Backup:    cfg.backupEnabled() && !*noBackup,
				BackupDir: backupDir,
				Compress:  cfg.backupCompress(),
				Audit:     audit,
			}
			if cfg.Report.PDF {
				opts.PDF = filepath.Join(*outDir, base+"_report.pdf")
			}
			res, err := repackFile(opts)
			metrics.AddFile(int64(res.InputSize), res.Containers, res.Entries, res.Result.Replaced, err != nil)
			if err != nil {
				failed.Add(1)
				common.Logf("batch: %s: %v", job.In, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	stop()
	metrics.Stop()

	fmt.Fprintf(stdout, "Batch: %s\n", metrics.Snapshot())
	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d dump(s) failed", n, len(jobs))
	}
	return nil
}
