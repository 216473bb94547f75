package chat

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"regexp"
	"strings"

	"pkt.systems/ecrituria/internal/dialog"
	"pkt.systems/ecrituria/internal/format"
	"pkt.systems/ecrituria/schema"
)

// Workspace is the file side of the client: the open file and the
// writes chat actions perform.
type Workspace interface {
	Project() schema.ProjectName
	OpenFile() (schema.FilePath, bool)
	// AppendToFile appends content to path and reloads it.
	AppendToFile(ctx context.Context, path schema.FilePath, content string) error
	// CreateFileWith writes content to a new file and opens it.
	CreateFileWith(ctx context.Context, path schema.FilePath, content string) error
}

// Clipboard receives copied text.
type Clipboard interface {
	Copy(text string) error
}

// OSC52 copies through the terminal's OSC 52 escape.
type OSC52 struct {
	Out io.Writer
}

// Copy writes text as an OSC 52 clipboard sequence.
func (o OSC52) Copy(text string) error {
	_, err := fmt.Fprintf(o.Out, "\x1b]52;c;%s\a", base64.StdEncoding.EncodeToString([]byte(text)))
	return err
}

var (
	agentPrefix = regexp.MustCompile(`(?m)^(Rechercheur|Coherence|Creatif|GraphRAG)\s*`)
	badgeLine   = regexp.MustCompile(`^(\[[^\]\n]+\] ?)+\n+`)
)

// CopyText returns the message text without badges or sources.
func CopyText(msg schema.ChatMessage) string {
	if msg.Answer != "" {
		return strings.TrimSpace(msg.Answer)
	}
	body := msg.Body
	if i := strings.Index(body, format.SourcesHeader); i >= 0 {
		body = body[:i]
	}
	return strings.TrimSpace(badgeLine.ReplaceAllString(body, ""))
}

// ApplyText returns the text written to files: CopyText with agent-name
// prefixes removed from line starts.
func ApplyText(msg schema.ChatMessage) string {
	return strings.TrimSpace(agentPrefix.ReplaceAllString(CopyText(msg), ""))
}

func (c *Client) message(id string) (schema.ChatMessage, error) {
	if id == "" {
		msg, ok := c.transcript.LastAnswer()
		if !ok {
			return schema.ChatMessage{}, schema.ErrUnknownMessage
		}
		return msg, nil
	}
	msg, ok := c.transcript.Get(id)
	if !ok || msg.Pending {
		return schema.ChatMessage{}, schema.ErrUnknownMessage
	}
	return msg, nil
}

// Copy hands the text of message id to the clipboard and returns it. An
// empty id copies the newest answer.
func (c *Client) Copy(id string) (string, error) {
	msg, err := c.message(id)
	if err != nil {
		return "", err
	}
	text := CopyText(msg)
	if c.clipboard != nil {
		if err := c.clipboard.Copy(text); err != nil {
			return text, err
		}
	}
	return text, nil
}

// AppendToOpenFile appends the answer to the open file after the
// permission modal accepts.
func (c *Client) AppendToOpenFile(ctx context.Context, id string) error {
	msg, err := c.message(id)
	if err != nil {
		return err
	}
	path, ok := c.workspace.OpenFile()
	if !ok {
		if c.dialogs != nil {
			_ = c.dialogs.Alert(ctx, "Ouvrez d'abord un fichier")
		}
		return schema.ErrNoOpenFile
	}
	text := ApplyText(msg)
	approved, err := c.dialogs.Permission(ctx, dialog.PermissionRequest{
		Action:  "ajouter du contenu",
		Target:  path.String(),
		Content: text,
		Mode:    dialog.ModeAppend,
	})
	if err != nil {
		return err
	}
	if !approved {
		return schema.ErrDeclined
	}
	return c.workspace.AppendToFile(ctx, path, text)
}

// CreateFileFrom prompts for a folder and file name and writes the answer
// to that new file.
func (c *Client) CreateFileFrom(ctx context.Context, id string) (schema.FilePath, error) {
	msg, err := c.message(id)
	if err != nil {
		return schema.FilePath{}, err
	}
	folder, ok, err := c.dialogs.Prompt(ctx, "Dossier (ex: personnages, lore, chapitres)", "notes")
	if err != nil {
		return schema.FilePath{}, err
	}
	if !ok || strings.TrimSpace(folder) == "" {
		return schema.FilePath{}, schema.ErrDeclined
	}
	name, ok, err := c.dialogs.Prompt(ctx, "Nom du fichier (avec .md)", "nouveau.md")
	if err != nil {
		return schema.FilePath{}, err
	}
	if !ok || strings.TrimSpace(name) == "" {
		return schema.FilePath{}, schema.ErrDeclined
	}
	path, err := schema.ParseFilePath(strings.TrimSpace(folder) + "/" + strings.TrimSpace(name))
	if err != nil {
		return schema.FilePath{}, err
	}
	if err := c.workspace.CreateFileWith(ctx, path, CopyText(msg)); err != nil {
		return schema.FilePath{}, err
	}
	return path, nil
}
