package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"

	"example.com/logopack/internal/common"
)

type logConfig struct {
	Directory  string `yaml:"directory"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	MaxBackups int    `yaml:"maxBackups"`
	Compress   bool   `yaml:"compress"`
}

type backupConfig struct {
	Enabled  *bool  `yaml:"enabled"`
	Dir      string `yaml:"dir"`
	Compress *bool  `yaml:"compress"`
}

type auditConfig struct {
	Path string `yaml:"path"`
}

type batchConfig struct {
	Concurrency int `yaml:"concurrency"`
}

type reportConfig struct {
	PDF    bool `yaml:"pdf"`
	QRSize int  `yaml:"qrSize"`
}

type config struct {
	WorkDir string       `yaml:"workDir"`
	Backup  backupConfig `yaml:"backup"`
	Audit   auditConfig  `yaml:"audit"`
	Logs    logConfig    `yaml:"logs"`
	Batch   batchConfig  `yaml:"batch"`
	Report  reportConfig `yaml:"report"`
}

func (c config) backupEnabled() bool  { return c.Backup.Enabled == nil || *c.Backup.Enabled }
func (c config) backupCompress() bool { return c.Backup.Compress == nil || *c.Backup.Compress }

// loadConfig reads path when set and fills in defaults. Relative paths are
// taken relative to the config file when they exist there.
func loadConfig(path string) (config, error) {
	var cfg config
	baseDir := "."
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return cfg, err
		}
		defer f.Close()
		dec := yaml.NewDecoder(f)
		if err := dec.Decode(&cfg); err != nil && err != io.EOF {
			return cfg, fmt.Errorf("decode %s: %w", path, err)
		}
		baseDir = filepath.Dir(path)
	}
	resolvePath := func(p string) string {
		p = strings.TrimSpace(p)
		if p == "" {
			return ""
		}
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		candidate := filepath.Clean(filepath.Join(baseDir, p))
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		return filepath.Clean(p)
	}
	cfg.WorkDir = resolvePath(cfg.WorkDir)
	cfg.Backup.Dir = resolvePath(cfg.Backup.Dir)
	cfg.Audit.Path = resolvePath(cfg.Audit.Path)
	cfg.Logs.Directory = resolvePath(cfg.Logs.Directory)
	if cfg.Batch.Concurrency <= 0 {
		cfg.Batch.Concurrency = runtime.NumCPU()
	}
	if cfg.Report.QRSize <= 0 {
		cfg.Report.QRSize = 128
	}
	if cfg.Logs.MaxSizeMB <= 0 {
		cfg.Logs.MaxSizeMB = 25
	}
	if cfg.Logs.MaxAgeDays <= 0 {
		cfg.Logs.MaxAgeDays = 7
	}
	if cfg.Logs.MaxBackups <= 0 {
		cfg.Logs.MaxBackups = 5
	}
	return cfg, nil
}

// setupLogging mirrors the logger to a rotating file when a log directory is
// configured. The returned closer releases the file.
func setupLogging(cfg config) (io.Closer, error) {
	if cfg.Logs.Directory == "" {
		return io.NopCloser(nil), nil
	}
	if err := os.MkdirAll(cfg.Logs.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Logs.Directory, "logopack.log"),
		MaxSize:    cfg.Logs.MaxSizeMB,
		MaxAge:     cfg.Logs.MaxAgeDays,
		MaxBackups: cfg.Logs.MaxBackups,
		Compress:   cfg.Logs.Compress,
	}
	common.SetLogOutput(io.MultiWriter(os.Stderr, rotator))
	return rotator, nil
}
