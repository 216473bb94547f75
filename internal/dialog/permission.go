// Package dialog implements the blocking confirmations the client asks
// before mutating files: the permission modal with its content preview,
// and plain confirm/prompt/alert dialogs.
package dialog

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/tiktoken-go/tokenizer"
)

// Mode describes how a proposed mutation touches its target.
type Mode string

const (
	ModeAppend  Mode = "append"
	ModeReplace Mode = "replace"
	ModeCreate  Mode = "create"
)

// Label returns the user-facing label for the mode.
func (m Mode) Label() string {
	switch m {
	case ModeAppend:
		return "➕ Ajouter à la fin"
	case ModeReplace:
		return "🔄 Remplacer tout"
	case ModeCreate:
		return "📄 Créer nouveau"
	default:
		return string(m)
	}
}

// PermissionRequest describes a proposed file mutation.
type PermissionRequest struct {
	Action  string
	Target  string
	Content string
	Mode    Mode
}

const (
	// PreviewLimit is the number of characters shown in a preview.
	PreviewLimit = 800
	// TruncationNotice follows a truncated preview.
	TruncationNotice = "... (tronqué)"
)

// Preview is the rendered content of a permission modal.
type Preview struct {
	Action    string
	ModeLabel string
	Target    string
	// Size is the content length in bytes.
	Size int
	// Tokens is an estimate of the content's token count; -1 when the
	// tokenizer is unavailable.
	Tokens int
	// Excerpt is the first PreviewLimit characters of the content.
	Excerpt string
	// Body is Excerpt with &, < and > escaped.
	Body      string
	Truncated bool
}

// Notice returns the truncation notice, or "" when nothing was cut.
func (p Preview) Notice() string {
	if !p.Truncated {
		return ""
	}
	return TruncationNotice
}

var escaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// EscapeMarkup escapes &, < and > so text is never read as markup.
func EscapeMarkup(s string) string {
	return escaper.Replace(s)
}

// BuildPreview renders req for display.
func BuildPreview(req PermissionRequest) Preview {
	excerpt, truncated := truncateRunes(req.Content, PreviewLimit)
	return Preview{
		Action:    req.Action,
		ModeLabel: req.Mode.Label(),
		Target:    req.Target,
		Size:      len(req.Content),
		Tokens:    EstimateTokens(req.Content),
		Excerpt:   excerpt,
		Body:      EscapeMarkup(excerpt),
		Truncated: truncated,
	}
}

func truncateRunes(s string, limit int) (string, bool) {
	if utf8.RuneCountInString(s) <= limit {
		return s, false
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i], true
		}
		n++
	}
	return s, false
}

var (
	codec     tokenizer.Codec
	codecOnce sync.Once
	codecErr  error
)

// EstimateTokens returns the cl100k_base token count of text, or -1 when
// the codec cannot be loaded.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	codecOnce.Do(func() {
		codec, codecErr = tokenizer.Get(tokenizer.Cl100kBase)
	})
	if codecErr != nil {
		return -1
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return -1
	}
	return len(ids)
}
