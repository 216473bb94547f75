package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"pkt.systems/ecrituria"
	"pkt.systems/ecrituria/internal/apiclient"
	"pkt.systems/ecrituria/internal/diff"
	"pkt.systems/ecrituria/internal/format"
	"pkt.systems/ecrituria/internal/logx"
	"pkt.systems/ecrituria/internal/upload"
	"pkt.systems/ecrituria/internal/writer"
	"pkt.systems/ecrituria/schema"
	"pkt.systems/pslog"
)

// Printer receives the lines a command produces.
type Printer interface {
	Println(lines ...string)
}

// EditFunc edits text interactively and returns the result.
type EditFunc func(ctx context.Context, name, text string) (string, error)

// HandlerConfig configures slash command behavior.
type HandlerConfig struct {
	Out Printer
	// Edit opens the draft in an editor on /edit. Without it /edit only
	// toggles edit mode and /save takes a local file.
	Edit                EditFunc
	UploadFolder        string
	Extensions          []string
	DisableAuditLogging bool
}

// Handler routes shell input to the client components.
type Handler struct {
	client *ecrituria.Client
	cfg    HandlerConfig
}

// ErrQuit is returned by Handle for /quit.
var ErrQuit = errors.New("quit")

// UsageError reports a malformed command.
type UsageError struct {
	Usage string
}

func (e *UsageError) Error() string {
	return "usage: " + e.Usage
}

func usage(text string) error {
	return &UsageError{Usage: text}
}

// NewHandler constructs a command handler.
func NewHandler(client *ecrituria.Client, cfg HandlerConfig) *Handler {
	if cfg.Out == nil {
		cfg.Out = nopPrinter{}
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = upload.DefaultExtensions
	}
	return &Handler{client: client, cfg: cfg}
}

// Handle executes one line of shell input. Lines that are not slash
// commands are sent to the chat.
func (h *Handler) Handle(ctx context.Context, input string) error {
	if ctx == nil {
		return errors.New("missing context")
	}
	project := h.client.Controller.Project()
	log := logx.WithProject(ctx, project)
	ctx = logx.ContextWithProjectLogger(ctx, log, project)
	log = log.With("input_len", len(input))
	if strings.TrimSpace(input) == "" {
		return nil
	}
	cmd, ok := Parse(input)
	if !ok {
		log.Debug("command chat question")
		_, err := h.client.Chat.Send(ctx, input)
		return err
	}
	if !h.cfg.DisableAuditLogging {
		log.Debug("audit command", "command_type", "slash", "command", strings.TrimSpace(input))
	}
	log = log.With("command", cmd.Name, "args", len(cmd.Args))
	log.Info("command slash request")
	ctrl := h.client.Controller
	switch cmd.Name {
	case "":
		log.Warn("command slash rejected", "reason", "empty")
		return usage("/<commande> (voir /help)")
	case "help", "aide":
		h.cfg.Out.Println(helpLines()...)
		return nil
	case "quit", "exit", "q":
		return ErrQuit
	case "projects":
		return h.handleProjects(ctx)
	case "project":
		if cmd.Remainder == "" {
			return h.handleProjects(ctx)
		}
		_, err := ctrl.SelectProject(ctx, cmd.Remainder)
		return h.surface(err)
	case "tree":
		_, err := ctrl.LoadTree(ctx)
		return h.surface(err)
	case "open":
		if cmd.Remainder == "" {
			return usage("/open <dossier/fichier>")
		}
		path, err := schema.ParseFilePath(cmd.Remainder)
		if err != nil {
			return err
		}
		return h.surface(ctrl.Open(ctx, path))
	case "hl", "highlight":
		count, err := ctrl.Highlight(ctx, cmd.Remainder)
		if err != nil {
			return err
		}
		if cmd.Remainder != "" {
			h.cfg.Out.Println(fmt.Sprintf("🔍 %d occurrence(s) de %q", count, cmd.Remainder))
		}
		return nil
	case "reset":
		return ctrl.ResetHighlight()
	case "edit":
		return h.handleEdit(ctx)
	case "save":
		return h.handleSave(ctx, cmd)
	case "cancel":
		_, err := ctrl.CancelEdit(ctx)
		return err
	case "new":
		folder, name := "", ""
		if len(cmd.Args) > 0 {
			if path, err := schema.ParseFilePath(cmd.Args[0]); err == nil {
				folder, name = path.Folder, path.Name
			} else {
				folder = cmd.Args[0]
			}
		}
		if len(cmd.Args) > 1 {
			name = cmd.Args[1]
		}
		_, err := ctrl.CreateFile(ctx, folder, name)
		return err
	case "mv", "rename":
		_, err := ctrl.Rename(ctx, cmd.Remainder)
		return err
	case "cp", "duplicate":
		_, err := ctrl.Duplicate(ctx, cmd.Remainder)
		return err
	case "rm", "delete":
		return ctrl.Delete(ctx)
	case "models":
		return h.handleModels(ctx)
	case "model":
		return h.handleModel(ctx, cmd)
	case "graph":
		return h.handleToggle(cmd, "graph", h.client.Chat.SetUseGraph)
	case "agents":
		return h.handleToggle(cmd, "agents", h.client.Chat.SetUseAgents)
	case "populate":
		_, err := ctrl.PopulateGraph(ctx)
		return err
	case "stats":
		_, err := ctrl.Stats(ctx)
		return err
	case "reindex":
		_, err := ctrl.Reindex(ctx)
		return err
	case "upload":
		return h.handleUpload(ctx, cmd)
	case "write":
		return h.handleWrite(ctx, cmd)
	case "commit":
		_, err := h.client.Writer.Commit(ctx)
		return err
	case "discard":
		h.client.Writer.Cancel()
		h.cfg.Out.Println("🗑️ Écriture en attente abandonnée")
		return nil
	case "copy":
		return h.handleCopy(cmd)
	case "apply":
		id, err := h.messageID(cmd)
		if err != nil {
			return err
		}
		return h.client.Chat.AppendToOpenFile(ctx, id)
	case "newfrom":
		id, err := h.messageID(cmd)
		if err != nil {
			return err
		}
		_, err = h.client.Chat.CreateFileFrom(ctx, id)
		return err
	case "apikey":
		return h.handleAPIKey(ctx, cmd)
	default:
		log.Warn("command slash rejected", "reason", "unknown")
		return usage("commande inconnue /" + cmd.Name + " (voir /help)")
	}
}

// Describe returns the message to show for err when no component has
// already reported it.
func Describe(err error) (string, bool) {
	var usageErr *UsageError
	switch {
	case err == nil, errors.Is(err, ErrQuit), errors.Is(err, schema.ErrDeclined), errors.Is(err, schema.ErrNoChange):
		return "", false
	case errors.As(err, &usageErr):
		return usageErr.Error(), true
	case errors.Is(err, schema.ErrNoProject):
		return "Sélectionnez d'abord un projet (/project <nom>)", true
	case errors.Is(err, schema.ErrNoOpenFile):
		return "Ouvrez d'abord un fichier (/open <dossier/fichier>)", true
	case errors.Is(err, schema.ErrBusy):
		return "Une opération est déjà en cours", true
	case errors.Is(err, schema.ErrNotEditing):
		return "Passez d'abord en mode édition (/edit)", true
	case errors.Is(err, schema.ErrNoPendingWrite):
		return "Aucune écriture en attente (/write)", true
	case errors.Is(err, schema.ErrNotPreviewed):
		return "Générez d'abord un aperçu (/write)", true
	case errors.Is(err, schema.ErrEmptyQuestion):
		return "", false
	case errors.Is(err, schema.ErrUnknownMessage):
		return "Message introuvable", true
	case errors.Is(err, schema.ErrAmbiguousMessage):
		return "Plusieurs messages correspondent, précisez l'identifiant", true
	case errors.Is(err, schema.ErrInvalidWriteRequest), errors.Is(err, schema.ErrInvalidPath),
		errors.Is(err, schema.ErrNoFiles), errors.Is(err, schema.ErrUnsupportedExtension):
		return err.Error(), true
	default:
		return "", false
	}
}

// surface prints backend errors of operations that do not report them
// themselves.
func (h *Handler) surface(err error) error {
	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) {
		h.cfg.Out.Println(format.Error(apiclient.DetailOf(err)))
	}
	return err
}

func (h *Handler) handleProjects(ctx context.Context) error {
	projects, err := h.client.Controller.LoadProjects(ctx)
	if err != nil {
		return h.surface(err)
	}
	lines := make([]string, 0, len(projects)+1)
	lines = append(lines, "Projets:")
	current := h.client.Controller.Project()
	for _, p := range projects {
		marker := "  "
		if p.Name == current {
			marker = "▸ "
		}
		lines = append(lines, marker+format.Project(p))
	}
	h.cfg.Out.Println(lines...)
	return nil
}

func (h *Handler) handleModels(ctx context.Context) error {
	models, err := h.client.Controller.LoadModels(ctx)
	if err != nil {
		return h.surface(err)
	}
	current := h.client.Chat.Settings().Model
	lines := []string{"Modèles:"}
	for _, m := range models {
		marker := "  "
		if m.ID == current {
			marker = "▸ "
		}
		lines = append(lines, marker+string(m.ID)+" - "+m.Label)
	}
	h.cfg.Out.Println(lines...)
	return nil
}

func (h *Handler) handleModel(ctx context.Context, cmd Command) error {
	if len(cmd.Args) == 0 {
		return h.handleModels(ctx)
	}
	model, err := schema.NormalizeModelID(cmd.Args[0])
	if err != nil {
		return usage("/model <identifiant>")
	}
	h.client.Chat.SetModel(model)
	pslog.Ctx(ctx).Info("command model set", "model", model)
	h.cfg.Out.Println("🤖 Modèle: " + string(model))
	return nil
}

func (h *Handler) handleToggle(cmd Command, name string, set func(bool)) error {
	if len(cmd.Args) != 1 {
		return usage("/" + name + " on|off")
	}
	on, ok := parseSwitch(cmd.Args[0])
	if !ok {
		return usage("/" + name + " on|off")
	}
	set(on)
	state := "désactivé"
	if on {
		state = "activé"
	}
	h.cfg.Out.Println(fmt.Sprintf("⚙️ %s %s", name, state))
	return nil
}

func parseSwitch(value string) (bool, bool) {
	switch strings.ToLower(value) {
	case "on", "oui", "1", "true":
		return true, true
	case "off", "non", "0", "false":
		return false, true
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b, true
	}
	return false, false
}

func (h *Handler) handleEdit(ctx context.Context) error {
	ctrl := h.client.Controller
	editing, err := ctrl.ToggleEdit(ctx)
	if err != nil || !editing || h.cfg.Edit == nil {
		return err
	}
	session := ctrl.Session()
	edited, err := h.cfg.Edit(ctx, session.OpenFile.Name, session.Draft)
	if err != nil {
		return err
	}
	if err := ctrl.SetDraft(edited); err != nil {
		return err
	}
	h.cfg.Out.Println("✏️ Brouillon mis à jour, /save pour enregistrer ou /cancel pour annuler")
	return nil
}

func (h *Handler) handleSave(ctx context.Context, cmd Command) error {
	ctrl := h.client.Controller
	content := ctrl.Session().Draft
	if cmd.Remainder != "" {
		data, err := os.ReadFile(cmd.Remainder)
		if err != nil {
			return err
		}
		content = string(data)
	}
	return ctrl.Save(ctx, content)
}

func (h *Handler) handleUpload(ctx context.Context, cmd Command) error {
	folder := h.cfg.UploadFolder
	paths := cmd.Args
	if len(paths) > 1 && !strings.Contains(paths[0], ".") {
		folder, paths = paths[0], paths[1:]
	}
	if len(paths) == 0 {
		return usage("/upload [dossier] <fichiers...>")
	}
	accepted, rejected := upload.Filter(paths, h.cfg.Extensions)
	for _, path := range rejected {
		h.cfg.Out.Println("⚠️ Ignoré (extension non supportée): " + path)
	}
	queue := upload.NewQueue(h.cfg.Extensions)
	for _, path := range accepted {
		file, err := upload.FromPath(path)
		if err != nil {
			h.cfg.Out.Println(format.Error(err.Error()))
			continue
		}
		if added, err := queue.Add(file); err != nil || !added {
			continue
		}
		h.cfg.Out.Println(fmt.Sprintf("📄 %s (%s)", file.Name, upload.FormatSize(file.Size)))
	}
	return h.Upload(ctx, folder, queue.Take())
}

// Upload sends files to folder of the current project, prints one line
// per file and reloads the tree when anything was stored.
func (h *Handler) Upload(ctx context.Context, folder string, files []upload.File) error {
	summary, err := h.client.Uploads.Run(ctx, h.client.Controller.Project(), folder, files)
	lines := make([]string, 0, len(summary.Outcomes)+1)
	for _, outcome := range summary.Outcomes {
		lines = append(lines, outcome.Line())
	}
	if len(summary.Outcomes) > 0 {
		lines = append(lines, summary.Message())
	}
	h.cfg.Out.Println(lines...)
	if summary.Succeeded > 0 {
		if _, treeErr := h.client.Controller.LoadTree(ctx); treeErr != nil {
			pslog.Ctx(ctx).Warn("tree reload after upload failed", "err", treeErr)
		}
	}
	return err
}

func (h *Handler) handleWrite(ctx context.Context, cmd Command) error {
	const help = "/write <rewrite|append|create|edit> <dossier/fichier> <instruction>"
	if len(cmd.Args) < 2 {
		return usage(help)
	}
	action := schema.WriteAction(strings.ToLower(cmd.Args[0]))
	target := cmd.Args[1]
	instruction := cmd.textAfter(2)
	draft := writer.Draft{Action: action, Instruction: instruction}
	if action == schema.WriteCreate {
		path, err := schema.ParseFilePath(target)
		if err != nil {
			return err
		}
		draft.Folder, draft.Filename = path.Folder, path.Name
	} else {
		draft.Target = target
	}
	preview, err := h.client.Writer.Preview(ctx, h.client.Controller.Project(), draft)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if preview.HasOriginal {
		_ = diff.Render(&buf, preview.Diff)
	} else {
		buf.WriteString(preview.Content)
	}
	lines := []string{fmt.Sprintf("📝 Aperçu: %s de %s", action.Label(), preview.Request.FilePath)}
	lines = append(lines, format.SplitLines(buf.String())...)
	lines = append(lines, "/commit pour appliquer, /discard pour abandonner")
	h.cfg.Out.Println(lines...)
	return nil
}

func (h *Handler) messageID(cmd Command) (string, error) {
	ref := strings.TrimSpace(cmd.Remainder)
	if ref == "" || ref == "last" {
		msg, ok := h.client.Transcript.LastAnswer()
		if !ok {
			return "", schema.ErrUnknownMessage
		}
		return msg.ID, nil
	}
	var found string
	for _, msg := range h.client.Transcript.Messages() {
		if !strings.HasPrefix(msg.ID, ref) {
			continue
		}
		if found != "" {
			return "", schema.ErrAmbiguousMessage
		}
		found = msg.ID
	}
	if found == "" {
		return "", schema.ErrUnknownMessage
	}
	return found, nil
}

func (h *Handler) handleCopy(cmd Command) error {
	id, err := h.messageID(cmd)
	if err != nil {
		return err
	}
	if _, err := h.client.Chat.Copy(id); err != nil {
		return err
	}
	h.cfg.Out.Println("📋 Copié dans le presse-papiers")
	return nil
}

func (h *Handler) handleAPIKey(ctx context.Context, cmd Command) error {
	panel := h.client.APIKey
	if cmd.Remainder == "" {
		view, err := panel.Load(ctx)
		h.cfg.Out.Println("🔑 Clé API: "+view.Display, "   "+view.Hint)
		return err
	}
	view, err := panel.Save(ctx, cmd.Remainder)
	if err != nil {
		return err
	}
	h.cfg.Out.Println("🔑 Clé API: " + view.Display)
	return nil
}

func helpLines() []string {
	return []string{
		"Commandes",
		"  /project <nom>            choisir un projet (/projects pour la liste)",
		"  /tree                     recharger l'arborescence",
		"  /open <dossier/fichier>   ouvrir un fichier",
		"  /hl <terme>, /reset       surligner un terme, restaurer",
		"  /edit, /save [fichier], /cancel   mode édition",
		"  /new [dossier] [nom]      créer un fichier",
		"  /mv <nom>, /cp [nom], /rm renommer, dupliquer, supprimer",
		"  /model <id>, /models      modèle de chat",
		"  /graph on|off, /agents on|off   options du chat",
		"  /populate, /stats, /reindex     graphe et index",
		"  /upload [dossier] <fichiers...> ajouter des fichiers",
		"  /write <action> <dossier/fichier> <instruction>  aperçu d'écriture IA",
		"  /commit, /discard         appliquer ou abandonner l'écriture",
		"  /copy, /apply, /newfrom [id]    actions sur la dernière réponse",
		"  /apikey [clé]             afficher ou enregistrer la clé API",
		"  /quit                     quitter",
		"Toute autre ligne est une question posée au chat.",
	}
}

type nopPrinter struct{}

func (nopPrinter) Println(...string) {}
