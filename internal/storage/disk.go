package storage

import (
	"io/fs"
	"os"
	"path/filepath"
)

// DiskUsage is the on-disk footprint of the files a kinorec instance uses, in bytes.
type DiskUsage struct {
	Artifact   int64 `json:"artifact"`
	PosterDB   int64 `json:"poster_db"`
	TitleIndex int64 `json:"title_index"`
}

// Total returns the combined size.
func (u DiskUsage) Total() int64 {
	return u.Artifact + u.PosterDB + u.TitleIndex
}

// sqliteSidecars are the files SQLite keeps next to a database.
var sqliteSidecars = []string{"-wal", "-shm", "-journal"}

// MeasureDiskUsage sizes the catalog artifact, the poster database and the title index.
// Database files (artifact or poster DB) include their SQLite sidecars; the title index
// directory is summed recursively. Empty or missing paths count as zero.
func MeasureDiskUsage(artifactPath, posterDBPath, titleIndexPath string) (DiskUsage, error) {
	var u DiskUsage
	var err error
	if u.Artifact, err = databaseSize(artifactPath); err != nil {
		return DiskUsage{}, err
	}
	if u.PosterDB, err = databaseSize(posterDBPath); err != nil {
		return DiskUsage{}, err
	}
	if u.TitleIndex, err = pathSize(titleIndexPath); err != nil {
		return DiskUsage{}, err
	}
	return u, nil
}

func databaseSize(path string) (int64, error) {
	total, err := pathSize(path)
	if err != nil || path == "" {
		return total, err
	}
	for _, suffix := range sqliteSidecars {
		n, err := pathSize(path + suffix)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// pathSize returns the size of a file, or the recursive size of a directory.
func pathSize(path string) (int64, error) {
	if path == "" {
		return 0, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}
	var total int64
	err = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		total += fi.Size()
		return nil
	})
	return total, err
}
