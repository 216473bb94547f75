package schema

import "errors"

var (
	// ErrInvalidRequest indicates a malformed request payload.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidPath indicates a folder/file path that cannot be addressed.
	ErrInvalidPath = errors.New("invalid file path")
	// ErrNoProject indicates no project is selected.
	ErrNoProject = errors.New("no project selected")
	// ErrNoOpenFile indicates an operation that needs an open file.
	ErrNoOpenFile = errors.New("no file open")
	// ErrNotEditing indicates a save outside edit mode.
	ErrNotEditing = errors.New("not in edit mode")
	// ErrNoChange indicates a save with unchanged content.
	ErrNoChange = errors.New("no change to save")
	// ErrEmptyQuestion indicates a blank chat question.
	ErrEmptyQuestion = errors.New("empty question")
	// ErrInvalidWriteRequest indicates a write draft that failed validation.
	ErrInvalidWriteRequest = errors.New("invalid write request")
	// ErrNoPendingWrite indicates a commit without a pending request.
	ErrNoPendingWrite = errors.New("no pending write request")
	// ErrNotPreviewed indicates a commit before a successful preview.
	ErrNotPreviewed = errors.New("write request has not been previewed")
	// ErrStalePreview indicates a preview answered after the workflow moved on.
	ErrStalePreview = errors.New("preview superseded")
	// ErrDeclined indicates the user declined a confirmation.
	ErrDeclined = errors.New("declined by user")
	// ErrNoFiles indicates an upload with nothing queued.
	ErrNoFiles = errors.New("no files to upload")
	// ErrUnsupportedExtension indicates a file outside the accepted set.
	ErrUnsupportedExtension = errors.New("unsupported file extension")
	// ErrJobTimeout indicates the job poller hit its poll ceiling.
	ErrJobTimeout = errors.New("job polling timed out")
	// ErrStatusUnreachable indicates the job status endpoint kept failing.
	ErrStatusUnreachable = errors.New("job status unreachable")
	// ErrBusy indicates another action is already in flight.
	ErrBusy = errors.New("another action is in progress")
	// ErrEmptyAPIKey indicates a blank API key.
	ErrEmptyAPIKey = errors.New("empty api key")
	// ErrProjectChanged indicates a response for a project that is no longer selected.
	ErrProjectChanged = errors.New("project changed during request")
	// ErrUnknownMessage indicates a transcript message id that does not exist.
	ErrUnknownMessage = errors.New("unknown message")
	// ErrAmbiguousMessage indicates a message id prefix matching several messages.
	ErrAmbiguousMessage = errors.New("ambiguous message id")
)
