package schema

import (
	"strings"
	"unicode"
)

// FilePath addresses a file inside a project as folder/name.
type FilePath struct {
	Folder string
	Name   string
}

// ParseFilePath splits "folder/name" into a FilePath. Both parts are
// required and neither may contain further separators.
func ParseFilePath(raw string) (FilePath, error) {
	trimmed := strings.Trim(strings.TrimSpace(raw), "/")
	folder, name, ok := strings.Cut(trimmed, "/")
	if !ok {
		return FilePath{}, ErrInvalidPath
	}
	path := FilePath{Folder: folder, Name: name}
	if err := path.Validate(); err != nil {
		return FilePath{}, err
	}
	return path, nil
}

// Validate checks both path segments.
func (p FilePath) Validate() error {
	if err := validateSegment(p.Folder); err != nil {
		return err
	}
	return validateSegment(p.Name)
}

// IsZero reports whether the path is unset.
func (p FilePath) IsZero() bool {
	return p.Folder == "" && p.Name == ""
}

// String returns the folder/name form.
func (p FilePath) String() string {
	if p.IsZero() {
		return ""
	}
	return p.Folder + "/" + p.Name
}

// WithName returns the path with the file name replaced.
func (p FilePath) WithName(name string) FilePath {
	return FilePath{Folder: p.Folder, Name: name}
}

// Stem returns the file name without its extension.
func (p FilePath) Stem() string {
	if idx := strings.LastIndexByte(p.Name, '.'); idx > 0 {
		return p.Name[:idx]
	}
	return p.Name
}

func validateSegment(segment string) error {
	if segment == "" || strings.TrimSpace(segment) != segment {
		return ErrInvalidPath
	}
	if segment == "." || segment == ".." {
		return ErrInvalidPath
	}
	for _, r := range segment {
		if r == '/' || r == '\\' || unicode.IsControl(r) {
			return ErrInvalidPath
		}
	}
	return nil
}

// NormalizeProjectName trims a project name and rejects separators.
func NormalizeProjectName(name string) (ProjectName, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", ErrNoProject
	}
	if err := validateSegment(trimmed); err != nil {
		return "", err
	}
	return ProjectName(trimmed), nil
}

// NormalizeModelID validates a model identifier.
// Allowed characters: letters, digits, '.', '_', '-', '/', ':'.
func NormalizeModelID(model string) (ModelID, error) {
	trimmed := strings.TrimSpace(model)
	if trimmed == "" {
		return "", ErrInvalidRequest
	}
	for _, r := range trimmed {
		switch {
		case r == '.' || r == '_' || r == '-' || r == '/' || r == ':':
		case unicode.IsLetter(r) || unicode.IsDigit(r):
		default:
			return "", ErrInvalidRequest
		}
	}
	return ModelID(trimmed), nil
}
