package candidates

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"example.com/logopack/internal/imgsniff"
)

// SupportedExts lists the extensions accepted as replacement candidates.
var SupportedExts = []string{".bin", ".jpg", ".jpeg", ".png", ".bmp", ".ico"}

var fileNamePattern = regexp.MustCompile(`(?i)^image_nr(\d+)_off0x([0-9a-f]+)\.([a-z0-9]+)$`)

// Name is the parsed form of a candidate file name.
type Name struct {
	Index  int
	Offset int
	Ext    string
}

// FileName returns image_nr<index>_off0x<offset>.<ext> with the offset as
// eight lowercase hex digits.
func FileName(index, offset int, t imgsniff.Type) string {
	return fmt.Sprintf("image_nr%d_off0x%08x.%s", index, offset, t.Ext())
}

// ParseFileName accepts any case and any hex width. Directory components
// are ignored.
func ParseFileName(name string) (Name, bool) {
	m := fileNamePattern.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return Name{}, false
	}
	index, err := strconv.Atoi(m[1])
	if err != nil {
		return Name{}, false
	}
	offset, err := strconv.ParseInt(m[2], 16, 64)
	if err != nil {
		return Name{}, false
	}
	return Name{Index: index, Offset: int(offset), Ext: "." + strings.ToLower(m[3])}, true
}

func supported(ext string) bool {
	ext = strings.ToLower(ext)
	for _, s := range SupportedExts {
		if s == ext {
			return true
		}
	}
	return false
}
