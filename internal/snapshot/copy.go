package snapshot

import (
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/zeebo/xxh3"
)

type copyStats struct {
	files  int
	bytes  int64
	hashes map[string]string
}

// fingerprint hashes the sorted (path, content hash) pairs of the copy.
func (c copyStats) fingerprint() string {
	paths := make([]string, 0, len(c.hashes))
	for p := range c.hashes {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	data := make([]byte, 0, len(paths)*64)
	for _, p := range paths {
		data = append(data, p...)
		data = append(data, 0)
		data = append(data, c.hashes[p]...)
		data = append(data, '\n')
	}
	sum := xxh3.Hash128(data).Bytes()
	return hex.EncodeToString(sum[:])
}

// copyTree recursively copies src into dest, overwriting existing files.
// skip is never descended into so a backup root living inside a project
// does not copy itself.
func copyTree(src, dest, skip string) (copyStats, error) {
	stats := copyStats{hashes: map[string]string{}}

	info, err := os.Stat(src)
	if err != nil {
		return stats, fmt.Errorf("stat source: %w", err)
	}
	if !info.IsDir() {
		return stats, fmt.Errorf("source %s is not a directory", src)
	}

	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() && filepath.Clean(path) == filepath.Clean(skip) {
			return filepath.SkipDir
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)

		switch {
		case d.IsDir():
			fi, err := d.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(target, fi.Mode().Perm()|0o700)
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			_ = os.Remove(target)
			if err := os.Symlink(link, target); err != nil {
				return err
			}
			stats.hashes[filepath.ToSlash(rel)] = "symlink:" + link
			return nil
		case d.Type().IsRegular():
			n, sum, err := copyFile(path, target)
			if err != nil {
				return err
			}
			stats.files++
			stats.bytes += n
			stats.hashes[filepath.ToSlash(rel)] = sum
			return nil
		default:
			// sockets, devices, fifos
			return nil
		}
	})
	return stats, err
}

func copyFile(src, dest string) (int64, string, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, "", err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return 0, "", err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, "", err
	}
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return 0, "", err
	}

	h := xxh3.New()
	n, err := io.Copy(io.MultiWriter(out, h), in)
	if err != nil {
		_ = out.Close()
		return n, "", err
	}
	if err := out.Close(); err != nil {
		return n, "", err
	}
	sum := h.Sum128().Bytes()
	return n, hex.EncodeToString(sum[:]), nil
}
