package schema

// WriteFileRequest is the body of a file write or append.
type WriteFileRequest struct {
	Content string `json:"content"`
	Append  bool   `json:"append"`
}

// Result is the generic mutation response. Success=false carries Detail.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Detail  string `json:"detail,omitempty"`
	Path    string `json:"path,omitempty"`
}

// IndexResult is returned by a reindex request.
type IndexResult struct {
	Success  bool   `json:"success"`
	New      int    `json:"new"`
	Modified int    `json:"modified"`
	Deleted  int    `json:"deleted"`
	Detail   string `json:"detail,omitempty"`
}

// ChatRequest is the body of a chat question.
type ChatRequest struct {
	Question    string      `json:"question"`
	ShowSources bool        `json:"show_sources"`
	Project     ProjectName `json:"project"`
	Model       ModelID     `json:"model,omitempty"`
	UseGraph    bool        `json:"use_graph"`
	UseAgents   bool        `json:"use_agents"`
}

// ChatResponse is the answer to a chat question.
type ChatResponse struct {
	Answer  string   `json:"answer"`
	Agents  []string `json:"agents,omitempty"`
	Sources []string `json:"sources,omitempty"`
}

// PopulateStatus is the kick-off outcome of a graph population job.
type PopulateStatus string

const (
	// PopulateStarted means a new job was started.
	PopulateStarted PopulateStatus = "started"
	// PopulateAlreadyRunning means a job was already in flight.
	PopulateAlreadyRunning PopulateStatus = "already_running"
)

// PopulateResponse is returned when starting graph population.
type PopulateResponse struct {
	Status  PopulateStatus `json:"status"`
	Message string         `json:"message,omitempty"`
}

// GraphResult carries the final counts of a graph population job.
type GraphResult struct {
	Nodes         int `json:"nodes"`
	Relationships int `json:"relationships"`
}

// JobStatus is one poll of the graph population job.
type JobStatus struct {
	Running     bool         `json:"running"`
	Completed   bool         `json:"completed"`
	Error       *string      `json:"error"`
	Percent     int          `json:"percent"`
	Progress    int          `json:"progress"`
	Total       int          `json:"total"`
	Step        string       `json:"step"`
	CurrentFile string       `json:"current_file"`
	Elapsed     string       `json:"elapsed"`
	Result      *GraphResult `json:"result"`
}

// ErrorMessage returns the server-reported error, or "" when none.
func (s JobStatus) ErrorMessage() string {
	if s.Error == nil {
		return ""
	}
	return *s.Error
}

// Succeeded reports whether the status is the completed terminal signal.
func (s JobStatus) Succeeded() bool {
	return s.Completed && s.Result != nil
}

// WriteRequest is the pending AI write request. The same request is sent
// for preview and, with PreviewOnly cleared, for commit.
type WriteRequest struct {
	Action       WriteAction `json:"action"`
	FilePath     string      `json:"file_path"`
	Instruction  string      `json:"instruction"`
	PreviewOnly  bool        `json:"preview_only"`
	ContextFiles []string    `json:"context_files"`
}

// WriteResponse covers both the preview and commit response shapes.
type WriteResponse struct {
	Success         bool    `json:"success"`
	Preview         bool    `json:"preview"`
	Content         string  `json:"content,omitempty"`
	OriginalContent *string `json:"original_content,omitempty"`
	GenerationTime  float64 `json:"generation_time,omitempty"`
	Mode            string  `json:"mode,omitempty"`
	FilePath        string  `json:"file_path,omitempty"`
	TotalTime       float64 `json:"total_time,omitempty"`
	BackupCreated   bool    `json:"backup_created,omitempty"`
	Message         string  `json:"message,omitempty"`
	Detail          string  `json:"detail,omitempty"`
}

// APIKeyStatus is the masked view of the configured API key.
type APIKeyStatus struct {
	MaskedKey string `json:"masked_key"`
	HasKey    bool   `json:"has_key"`
}

// APIKeyUpdate is the body of an API key change.
type APIKeyUpdate struct {
	APIKey string `json:"api_key"`
}
