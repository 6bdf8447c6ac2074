package diff

import (
	"bytes"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/zeebo/xxh3"
)

type entry struct {
	abs     string
	size    int64
	symlink bool
}

type treeDelta struct {
	added    []string
	removed  []string
	modified []string
}

// listTree returns every non-directory entry under root keyed by its
// slash-separated relative path. Unreadable entries below root are logged
// and left out; only an unreadable root fails.
func listTree(root string, log *slog.Logger) (map[string]entry, error) {
	out := map[string]entry{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			log.Error("skip unreadable path in diff", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		e := entry{abs: path, symlink: d.Type()&fs.ModeSymlink != 0}
		if !e.symlink {
			info, err := d.Info()
			if err != nil {
				log.Error("skip unreadable path in diff", "path", path, "error", err)
				return nil
			}
			e.size = info.Size()
		}
		out[filepath.ToSlash(rel)] = e
		return nil
	})
	return out, err
}

// compareTrees classifies files as added, removed or modified. A file whose
// content cannot be compared is reported as modified; the line diff then
// skips it with its own log line.
func compareTrees(prevRoot, curRoot string, log *slog.Logger) (treeDelta, error) {
	var delta treeDelta
	prev, err := listTree(prevRoot, log)
	if err != nil {
		return delta, err
	}
	cur, err := listTree(curRoot, log)
	if err != nil {
		return delta, err
	}

	for rel, c := range cur {
		p, ok := prev[rel]
		if !ok {
			delta.added = append(delta.added, rel)
			continue
		}
		same, err := sameContent(p, c)
		if err != nil {
			log.Error("compare file failed", "file", rel, "error", err)
		}
		if err != nil || !same {
			delta.modified = append(delta.modified, rel)
		}
	}
	for rel := range prev {
		if _, ok := cur[rel]; !ok {
			delta.removed = append(delta.removed, rel)
		}
	}
	sort.Strings(delta.added)
	sort.Strings(delta.removed)
	sort.Strings(delta.modified)
	return delta, nil
}

func sameContent(a, b entry) (bool, error) {
	if a.symlink || b.symlink {
		if a.symlink != b.symlink {
			return false, nil
		}
		ta, err := os.Readlink(a.abs)
		if err != nil {
			return false, err
		}
		tb, err := os.Readlink(b.abs)
		if err != nil {
			return false, err
		}
		return ta == tb, nil
	}
	if a.size != b.size {
		return false, nil
	}
	ha, err := hashFile(a.abs)
	if err != nil {
		return false, err
	}
	hb, err := hashFile(b.abs)
	if err != nil {
		return false, err
	}
	return bytes.Equal(ha, hb), nil
}

func hashFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h := xxh3.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	sum := h.Sum128().Bytes()
	return sum[:], nil
}
