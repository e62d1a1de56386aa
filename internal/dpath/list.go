package dpath

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// List walks dir recursively and returns, for every regular file found
// underneath it, the Path relative to dir. Directories themselves are not
// emitted. This is how a storage server builds the file list it offers at
// registration time.
func List(dir string) ([]Path, error) {
	var out []Path
	err := filepath.Walk(dir, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		path, err := New(rel)
		if err != nil {
			return errors.Wrapf(err, "list %q: bad relative path %q", dir, rel)
		}
		out = append(out, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ToFile concatenates root with p's components to produce the local
// filesystem path a storage server should use to store p's bytes.
func (p Path) ToFile(root string) string {
	return filepath.Join(append([]string{root}, p.components...)...)
}
