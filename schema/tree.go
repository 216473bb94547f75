package schema

import "sort"

// FileTree maps folder names to the file names they contain.
type FileTree map[string][]string

// Folders returns the folder names in sorted order.
func (t FileTree) Folders() []string {
	out := make([]string, 0, len(t))
	for folder := range t {
		out = append(out, folder)
	}
	sort.Strings(out)
	return out
}

// Contains reports whether the tree lists path.
func (t FileTree) Contains(path FilePath) bool {
	for _, name := range t[path.Folder] {
		if name == path.Name {
			return true
		}
	}
	return false
}

// Paths returns every file in folder then name order.
func (t FileTree) Paths() []FilePath {
	var out []FilePath
	for _, folder := range t.Folders() {
		names := append([]string(nil), t[folder]...)
		sort.Strings(names)
		for _, name := range names {
			out = append(out, FilePath{Folder: folder, Name: name})
		}
	}
	return out
}

// Count returns the number of files in the tree.
func (t FileTree) Count() int {
	n := 0
	for _, names := range t {
		n += len(names)
	}
	return n
}
