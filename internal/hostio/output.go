package hostio

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"example.com/logopack/internal/common"
	"example.com/logopack/internal/packer"
)

// DefaultOutputName derives <base>_<variant>_repacked.bin next to input.
func DefaultOutputName(input string, v packer.Variant) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(filepath.Dir(input), fmt.Sprintf("%s_%s_repacked.bin", base, v))
}

// WriteResult stores a rebuild result at path. Planned results are streamed
// from the plan so the rebuilt image is not held twice.
func WriteResult(path string, res packer.Result) error {
	if res.Plan == nil {
		return common.WriteFileAtomic(path, res.Output, 0o644)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	w := bufio.NewWriterSize(tmp, 1<<20)
	if _, err := res.Plan.WriteTo(w); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
