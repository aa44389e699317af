package source

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// File represents a discovered frame image.
type File struct {
	// AbsPath is the absolute path to the file on disk.
	AbsPath string
	// RelPath is the path relative to the scanned directory.
	RelPath string
	// Name is the base name without extension; used for output names.
	Name string
	// Format is the source format (png, jpeg, webp, gif, bmp, tiff).
	Format string
	// Size is the file size in bytes.
	Size int64
}

// imageExtensions lists recognized image file extensions.
var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".gif":  true,
	".bmp":  true,
	".tiff": true,
	".tif":  true,
}

// ScanFrames walks dir and returns every image file in playback order
// (lexical order of the relative path).
func ScanFrames(dir string) ([]File, error) {
	var files []File

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			// Skip hidden directories.
			if strings.HasPrefix(info.Name(), ".") && path != dir {
				return filepath.SkipDir
			}
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if !imageExtensions[ext] {
			return nil
		}

		relPath, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		// Normalize format name.
		format := strings.TrimPrefix(ext, ".")
		if format == "jpg" {
			format = "jpeg"
		}
		if format == "tif" {
			format = "tiff"
		}

		files = append(files, File{
			AbsPath: path,
			RelPath: filepath.ToSlash(relPath),
			Name:    strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
			Format:  format,
			Size:    info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}
