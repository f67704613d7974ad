package candidates

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"example.com/logopack/internal/common"
	"example.com/logopack/internal/imgsniff"
	"example.com/logopack/internal/packer"
)

// DirSource resolves replacement candidates from files named by FileName
// anywhere below a root directory.
type DirSource struct {
	root  string
	files map[packer.CandidateKey][]string
}

// OpenDir indexes every supported candidate file below root. The index is
// built once; file contents are read on lookup.
func OpenDir(root string) (*DirSource, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &fs.PathError{Op: "open", Path: root, Err: fs.ErrInvalid}
	}
	src := &DirSource{root: root, files: make(map[packer.CandidateKey][]string)}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name, ok := ParseFileName(d.Name())
		if !ok || !supported(name.Ext) {
			return nil
		}
		key := packer.CandidateKey{Index: name.Index, Offset: name.Offset}
		src.files[key] = append(src.files[key], path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	for key := range src.files {
		sort.Strings(src.files[key])
	}
	return src, nil
}

func (s *DirSource) Root() string { return s.root }

// Len is the number of distinct (index, offset) keys found.
func (s *DirSource) Len() int { return len(s.files) }

// Lookup prefers a file whose extension matches t and otherwise takes the
// first match in path order. Unreadable files count as missing.
func (s *DirSource) Lookup(index, offset int, t imgsniff.Type) (packer.Candidate, bool) {
	paths := s.files[packer.CandidateKey{Index: index, Offset: offset}]
	if len(paths) == 0 {
		return packer.Candidate{}, false
	}
	chosen := paths[0]
	if t != imgsniff.Unknown {
		for _, p := range paths {
			if imgsniff.TypeFromExt(filepath.Ext(p)) == t {
				chosen = p
				break
			}
		}
	}
	if len(paths) > 1 {
		common.Logf("entry %d at 0x%08X has %d candidates, using %s", index, offset, len(paths), chosen)
	}
	data, err := os.ReadFile(chosen)
	if err != nil {
		common.Logf("read candidate %s: %v", chosen, err)
		return packer.Candidate{}, false
	}
	return packer.Candidate{Index: index, Offset: offset, Bytes: data, Source: chosen}, true
}
