package schema

// WriteAction is the kind of AI write requested.
type WriteAction string

const (
	// WriteRewrite rewrites an existing file.
	WriteRewrite WriteAction = "rewrite"
	// WriteAppend appends generated text to an existing file.
	WriteAppend WriteAction = "append"
	// WriteCreate creates a new file.
	WriteCreate WriteAction = "create"
	// WriteEdit applies targeted edits to an existing file.
	WriteEdit WriteAction = "edit"
)

// WriteActions lists the supported actions in display order.
func WriteActions() []WriteAction {
	return []WriteAction{WriteRewrite, WriteAppend, WriteCreate, WriteEdit}
}

// Valid reports whether a is a known action.
func (a WriteAction) Valid() bool {
	switch a {
	case WriteRewrite, WriteAppend, WriteCreate, WriteEdit:
		return true
	default:
		return false
	}
}

// Label returns the user-facing label of the action.
func (a WriteAction) Label() string {
	switch a {
	case WriteRewrite:
		return "Réécriture"
	case WriteAppend:
		return "Ajout"
	case WriteCreate:
		return "Création"
	case WriteEdit:
		return "Modification"
	default:
		return string(a)
	}
}
