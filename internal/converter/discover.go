package converter

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// CollectImages expands directory arguments into the image files they contain.
// Other arguments, including blank ones, are kept verbatim so validation sees them.
// Entries the walk cannot read are kept too and fail later as unreadable images.
func CollectImages(inputs []string, extensions []string) []string {
	extSet := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		extSet[strings.ToLower(ext)] = struct{}{}
	}

	var files []string
	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil || !info.IsDir() {
			files = append(files, in)
			continue
		}

		var found []string
		_ = filepath.WalkDir(in, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				// Keep unreadable entries so the batch reports them.
				found = append(found, path)
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if _, ok := extSet[strings.ToLower(filepath.Ext(d.Name()))]; ok {
				found = append(found, path)
			}
			return nil
		})
		sort.Strings(found)
		files = append(files, found...)
	}
	return files
}
