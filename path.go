package audiomix

import (
	"os"
	"path/filepath"
)

// CreateSoundsFromPath bulk-creates sounds from a directory tree. When
// category is empty, each immediate subdirectory of path is used as the
// category for the files directly inside it. Only that one level is
// visited: files directly inside path, and directories nested deeper, are
// not loaded. Returns the names successfully registered; files that fail to
// load are skipped rather than aborting the whole walk.
func (m *Manager) CreateSoundsFromPath(path, category, prefix string) ([]string, error) {
	if category == "" {
		return m.createSoundsFromPathAutoCategory(path, prefix)
	}
	m.CreateCategory(category, false)

	files, err := filesInDir(path)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, f := range files {
		sb, err := m.CreateSound(f, category, prefix)
		if err != nil {
			m.logf("createSoundsFromPath: skip %q: %v", f, err)
			continue
		}
		names = append(names, sb.name)
	}
	return names, nil
}

func (m *Manager) createSoundsFromPathAutoCategory(path, prefix string) ([]string, error) {
	dirs, err := subdirs(path)
	if err != nil {
		return nil, err
	}
	var all []string
	for _, dir := range dirs {
		category := filepath.Base(dir)
		names, err := m.CreateSoundsFromPath(dir, category, prefix)
		if err != nil {
			return all, err
		}
		all = append(all, names...)
	}
	return all, nil
}

// filesInDir returns the regular files directly inside dir (non-recursive),
// with full paths.
func filesInDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}

// subdirs returns the immediate subdirectories of dir, with full paths.
func subdirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(dir, e.Name()))
		}
	}
	return dirs, nil
}
