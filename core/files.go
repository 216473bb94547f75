package core

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"pkt.systems/ecrituria/internal/logx"
	"pkt.systems/ecrituria/schema"
)

const (
	// NewFileBody follows the title line of a created file.
	NewFileBody = "<!-- Écrivez votre contenu ici -->\n"

	promptFolder    = "📁 Dossier (ex: personnages, lore, chapitres):"
	promptFilename  = "📄 Nom du fichier (avec .md):"
	promptRename    = "✏️ Nouveau nom:"
	promptDuplicate = "📋 Nom de la copie:"
	defaultFolder   = "notes"
	defaultFilename = "nouveau.md"
)

type fileName struct {
	Folder string `validate:"required,max=128,excludesall=/\\"`
	Name   string `validate:"required,max=255,excludesall=/\\"`
}

var (
	namesOnce     sync.Once
	namesValidate *validator.Validate
)

// checkPath validates a user-supplied folder and file name.
func checkPath(folder, name string) (schema.FilePath, error) {
	namesOnce.Do(func() {
		namesValidate = validator.New(validator.WithRequiredStructEnabled())
	})
	candidate := fileName{Folder: strings.TrimSpace(folder), Name: strings.TrimSpace(name)}
	if err := namesValidate.Struct(candidate); err != nil {
		return schema.FilePath{}, fmt.Errorf("%w: %q/%q", schema.ErrInvalidPath, folder, name)
	}
	path := schema.FilePath{Folder: candidate.Folder, Name: candidate.Name}
	if err := path.Validate(); err != nil {
		return schema.FilePath{}, err
	}
	return path, nil
}

// NewFileContent is the seed of a created file.
func NewFileContent(name string) string {
	return "# " + strings.Replace(name, ".md", "", 1) + "\n\n" + NewFileBody
}

// DefaultCopyName is the suggested name of a duplicate.
func DefaultCopyName(name string) string {
	return strings.Replace(name, ".md", "", 1) + "_copie.md"
}

func (c *Controller) acquire() (func(), error) {
	if !c.busy.CompareAndSwap(false, true) {
		return nil, schema.ErrBusy
	}
	return func() { c.busy.Store(false) }, nil
}

// openPath returns the project and open file or an error naming what is missing.
func (c *Controller) openPath() (schema.ProjectName, schema.FilePath, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.Project == "" {
		return "", schema.FilePath{}, schema.ErrNoProject
	}
	if !c.session.HasOpenFile() {
		return "", schema.FilePath{}, schema.ErrNoOpenFile
	}
	return c.session.Project, c.session.OpenFile, nil
}

// ToggleEdit enters or leaves edit mode and reports the new mode. Entering
// seeds the draft with the raw text of the open file.
func (c *Controller) ToggleEdit(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if !c.session.HasOpenFile() {
		c.mu.Unlock()
		_ = c.dialogs.Alert(ctx, "Ouvrez d'abord un fichier")
		return false, schema.ErrNoOpenFile
	}
	c.session.Editing = !c.session.Editing
	if c.session.Editing {
		c.session.Draft = c.session.RawText
	} else {
		c.session.Draft = ""
	}
	editing := c.session.Editing
	event := c.viewerLocked()
	c.mu.Unlock()
	c.sink.OnViewer(event)
	return editing, nil
}

// SetDraft replaces the edit buffer.
func (c *Controller) SetDraft(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.session.Editing {
		return schema.ErrNotEditing
	}
	c.session.Draft = text
	return nil
}

// Save writes content over the open file, reloads it and leaves edit mode.
// Content identical to the file as opened returns ErrNoChange without a
// request.
func (c *Controller) Save(ctx context.Context, content string) error {
	release, err := c.acquire()
	if err != nil {
		return err
	}
	defer release()
	project, path, err := c.openPath()
	if err != nil {
		return err
	}
	c.mu.Lock()
	editing, original := c.session.Editing, c.session.RawText
	c.mu.Unlock()
	if !editing {
		return schema.ErrNotEditing
	}
	if content == original {
		_ = c.dialogs.Alert(ctx, "Aucune modification détectée")
		return schema.ErrNoChange
	}
	log := logx.WithProjectFile(ctx, project, path)
	if err := c.backend.WriteFile(ctx, project, path, content, false); err != nil {
		log.Warn("file save failed", "err", err)
		c.alertError(ctx, err)
		return err
	}
	log.Info("file saved", "bytes", len(content))
	_ = c.dialogs.Alert(ctx, "💾 Fichier sauvegardé !")
	return c.open(ctx, path)
}

// CancelEdit asks for confirmation, then drops the draft and leaves edit
// mode. It reports whether the edit was cancelled.
func (c *Controller) CancelEdit(ctx context.Context) (bool, error) {
	c.mu.Lock()
	editing := c.session.Editing
	c.mu.Unlock()
	if !editing {
		return false, schema.ErrNotEditing
	}
	ok, err := c.dialogs.Confirm(ctx, "Annuler les modifications ?")
	if err != nil || !ok {
		return false, err
	}
	c.mu.Lock()
	c.session.Editing = false
	c.session.Draft = ""
	event := c.viewerLocked()
	c.mu.Unlock()
	c.sink.OnViewer(event)
	return true, nil
}

// CreateFile creates folder/name with a title line and opens it. Blank
// arguments are prompted for.
func (c *Controller) CreateFile(ctx context.Context, folder, name string) (schema.FilePath, error) {
	release, err := c.acquire()
	if err != nil {
		return schema.FilePath{}, err
	}
	defer release()
	project := c.Project()
	if project == "" {
		return schema.FilePath{}, schema.ErrNoProject
	}
	if strings.TrimSpace(folder) == "" {
		value, ok, err := c.dialogs.Prompt(ctx, promptFolder, defaultFolder)
		if err != nil {
			return schema.FilePath{}, err
		}
		if !ok || strings.TrimSpace(value) == "" {
			return schema.FilePath{}, schema.ErrDeclined
		}
		folder = value
	}
	if strings.TrimSpace(name) == "" {
		value, ok, err := c.dialogs.Prompt(ctx, promptFilename, defaultFilename)
		if err != nil {
			return schema.FilePath{}, err
		}
		if !ok || strings.TrimSpace(value) == "" {
			return schema.FilePath{}, schema.ErrDeclined
		}
		name = value
	}
	path, err := checkPath(folder, name)
	if err != nil {
		return schema.FilePath{}, err
	}
	if err := c.writeAndOpen(ctx, project, path, NewFileContent(path.Name), "✅ Fichier créé !"); err != nil {
		return schema.FilePath{}, err
	}
	return path, nil
}

// Rename moves the open file to a new name in the same folder: the content
// is read, written under the new name, then the old file is deleted. A
// blank name is prompted for.
func (c *Controller) Rename(ctx context.Context, newName string) (schema.FilePath, error) {
	release, err := c.acquire()
	if err != nil {
		return schema.FilePath{}, err
	}
	defer release()
	project, old, err := c.openPath()
	if err != nil {
		return schema.FilePath{}, err
	}
	if strings.TrimSpace(newName) == "" {
		value, ok, err := c.dialogs.Prompt(ctx, promptRename, old.Name)
		if err != nil {
			return schema.FilePath{}, err
		}
		if !ok {
			return schema.FilePath{}, schema.ErrDeclined
		}
		newName = value
	}
	newName = strings.TrimSpace(newName)
	if newName == "" || newName == old.Name {
		return schema.FilePath{}, schema.ErrNoChange
	}
	target, err := checkPath(old.Folder, newName)
	if err != nil {
		return schema.FilePath{}, err
	}
	log := logx.WithProjectFile(ctx, project, old)
	content, err := c.backend.ReadFile(ctx, project, old)
	if err != nil {
		c.alertError(ctx, err)
		return schema.FilePath{}, err
	}
	if err := c.backend.WriteFile(ctx, project, target, content.Content, false); err != nil {
		log.Warn("rename copy failed", "to", target.String(), "err", err)
		c.alertError(ctx, err)
		return schema.FilePath{}, err
	}
	if err := c.backend.DeleteFile(ctx, project, old); err != nil {
		log.Warn("rename delete failed", "to", target.String(), "err", err)
		c.alertError(ctx, err)
		_, _ = c.LoadTree(ctx)
		return target, fmt.Errorf("copied to %s but kept %s: %w", target, old, err)
	}
	log.Info("file renamed", "to", target.String())
	_ = c.dialogs.Alert(ctx, "✅ Fichier renommé !")
	return target, c.reloadAndOpen(ctx, target)
}

// Duplicate copies the open file under a new name in the same folder and
// opens the copy. A blank name is prompted for with <base>_copie.md
// suggested.
func (c *Controller) Duplicate(ctx context.Context, newName string) (schema.FilePath, error) {
	release, err := c.acquire()
	if err != nil {
		return schema.FilePath{}, err
	}
	defer release()
	project, source, err := c.openPath()
	if err != nil {
		return schema.FilePath{}, err
	}
	if strings.TrimSpace(newName) == "" {
		value, ok, err := c.dialogs.Prompt(ctx, promptDuplicate, DefaultCopyName(source.Name))
		if err != nil {
			return schema.FilePath{}, err
		}
		if !ok || strings.TrimSpace(value) == "" {
			return schema.FilePath{}, schema.ErrDeclined
		}
		newName = value
	}
	target, err := checkPath(source.Folder, newName)
	if err != nil {
		return schema.FilePath{}, err
	}
	content, err := c.backend.ReadFile(ctx, project, source)
	if err != nil {
		c.alertError(ctx, err)
		return schema.FilePath{}, err
	}
	if err := c.writeAndOpen(ctx, project, target, content.Content, "📋 Fichier dupliqué !"); err != nil {
		return schema.FilePath{}, err
	}
	return target, nil
}

// Delete removes the open file after confirmation and closes the viewer.
func (c *Controller) Delete(ctx context.Context) error {
	release, err := c.acquire()
	if err != nil {
		return err
	}
	defer release()
	project, path, err := c.openPath()
	if err != nil {
		return err
	}
	ok, err := c.dialogs.Confirm(ctx, fmt.Sprintf("🗑️ Supprimer %q ?\n\nCette action est irréversible.", path.String()))
	if err != nil {
		return err
	}
	if !ok {
		return schema.ErrDeclined
	}
	log := logx.WithProjectFile(ctx, project, path)
	if err := c.backend.DeleteFile(ctx, project, path); err != nil {
		log.Warn("file delete failed", "err", err)
		c.alertError(ctx, err)
		return err
	}
	log.Info("file deleted")
	_ = c.dialogs.Alert(ctx, "🗑️ Fichier supprimé")
	c.mu.Lock()
	if c.session.OpenFile == path {
		tree := c.session.Tree
		c.session = Session{Project: c.session.Project, Tree: tree}
	}
	c.mu.Unlock()
	c.sink.OnViewer(schema.ViewerEvent{})
	_, err = c.LoadTree(ctx)
	return err
}

// AppendToFile appends content to path and reloads it when it is open.
func (c *Controller) AppendToFile(ctx context.Context, path schema.FilePath, content string) error {
	project := c.Project()
	if project == "" {
		return schema.ErrNoProject
	}
	log := logx.WithProjectFile(ctx, project, path)
	if err := c.backend.WriteFile(ctx, project, path, content, true); err != nil {
		log.Warn("append failed", "err", err)
		return err
	}
	log.Info("content appended", "bytes", len(content))
	if open, ok := c.OpenFile(); ok && open == path {
		return c.Open(ctx, path)
	}
	return nil
}

// CreateFileWith writes content to path, reloads the tree and opens it.
func (c *Controller) CreateFileWith(ctx context.Context, path schema.FilePath, content string) error {
	release, err := c.acquire()
	if err != nil {
		return err
	}
	defer release()
	project := c.Project()
	if project == "" {
		return schema.ErrNoProject
	}
	if err := c.backend.WriteFile(ctx, project, path, content, false); err != nil {
		logx.WithProjectFile(ctx, project, path).Warn("file create failed", "err", err)
		return err
	}
	return c.reloadAndOpen(ctx, path)
}

func (c *Controller) writeAndOpen(ctx context.Context, project schema.ProjectName, path schema.FilePath, content, done string) error {
	log := logx.WithProjectFile(ctx, project, path)
	if err := c.backend.WriteFile(ctx, project, path, content, false); err != nil {
		log.Warn("file write failed", "err", err)
		c.alertError(ctx, err)
		return err
	}
	log.Info("file written", "bytes", len(content))
	_ = c.dialogs.Alert(ctx, done)
	return c.reloadAndOpen(ctx, path)
}

func (c *Controller) reloadAndOpen(ctx context.Context, path schema.FilePath) error {
	if _, err := c.LoadTree(ctx); err != nil {
		return err
	}
	return c.open(ctx, path)
}
