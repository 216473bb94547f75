package schema

// ProjectName identifies a project on the backend.
type ProjectName string

// ModelID identifies a chat model.
type ModelID string

// ThemeName identifies a terminal theme.
type ThemeName string

// Project describes one entry of the project listing.
type Project struct {
	Name     ProjectName `json:"name"`
	Path     string      `json:"path,omitempty"`
	HasIndex bool        `json:"has_index"`
}

// Model describes a selectable chat model.
type Model struct {
	ID       ModelID `json:"id"`
	Label    string  `json:"label"`
	Provider string  `json:"provider,omitempty"`
}

// FileContent is the payload returned when reading a single file.
type FileContent struct {
	Filename    string `json:"filename,omitempty"`
	Folder      string `json:"folder,omitempty"`
	Content     string `json:"content"`
	ContentHTML string `json:"content_html"`
}

// Stats is the index and graph summary of a project.
type Stats struct {
	Project ProjectName `json:"project,omitempty"`
	Index   IndexStats  `json:"index"`
	Graph   GraphStats  `json:"graph"`
}

// IndexStats summarises the vector index.
type IndexStats struct {
	FileCount   int    `json:"file_count"`
	TotalChunks int    `json:"total_chunks"`
	Error       string `json:"error,omitempty"`
}

// GraphStats summarises the knowledge graph.
type GraphStats struct {
	NodeCount         int    `json:"node_count"`
	RelationshipCount int    `json:"relationship_count"`
	Error             string `json:"error,omitempty"`
}

// StatusMode selects the style of a status line.
type StatusMode string

const (
	// StatusInfo is the neutral in-flight style.
	StatusInfo StatusMode = "info"
	// StatusSuccess marks a completed operation.
	StatusSuccess StatusMode = "success"
	// StatusError marks a failed operation.
	StatusError StatusMode = "error"
	// StatusWarning marks a degraded but non-fatal outcome.
	StatusWarning StatusMode = "warning"
)
