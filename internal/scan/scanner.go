package scan

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Zuo-Peng/mmem/internal/parse"
)

type FileInfo struct {
	Path   string
	Format parse.Format
	Mtime  int64 // unix seconds
	Size   int64
}

// Walk lists every transcript file under root in lexical order. Unreadable
// subdirectories are skipped; a missing root is an error.
func Walk(root string) ([]FileInfo, error) {
	st, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("sessions root: %w", err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("sessions root %s is not a directory", root)
	}

	var files []FileInfo
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil // skip unreadable entries
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		format, ok := parse.FormatForPath(path)
		if !ok {
			return nil
		}
		files = append(files, FileInfo{
			Path:   path,
			Format: format,
			Mtime:  info.ModTime().Unix(),
			Size:   info.Size(),
		})
		return nil
	})
	return files, err
}
