package backendmock

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"pkt.systems/ecrituria/schema"
	"pkt.systems/pslog"
)

var uploadExtensions = map[string]bool{".md": true, ".txt": true}

// App builds the fiber application serving the backend contract. A nil
// logger disables request logging.
func (b *Backend) App(logger pslog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit:             10 * 1024 * 1024,
		UnescapePath:          true,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	app.Use(b.requestLogging(logger))
	b.RegisterRoutes(app.Group("/api"))
	return app
}

// Handler exposes the backend as a net/http handler.
func (b *Backend) Handler(logger pslog.Logger) http.Handler {
	return adaptor.FiberApp(b.App(logger))
}

// RegisterRoutes mounts every endpoint under r.
func (b *Backend) RegisterRoutes(r fiber.Router) {
	r.Get("/projects", b.listProjects)
	r.Get("/models", b.listModels)
	r.Get("/files/:project", b.listFiles)
	r.Get("/file/:project/:folder/:file", b.readFile)
	r.Post("/file/:project/:folder/:file", b.writeFile)
	r.Delete("/file/:project/:folder/:file", b.deleteFile)
	r.Post("/upload/:project/:folder", b.upload)
	r.Post("/index/:project", b.reindex)
	r.Get("/stats/:project", b.stats)
	r.Post("/chat", b.chat)
	r.Post("/graph/populate/:project", b.populateGraph)
	r.Get("/task/graph-status", b.graphStatus)
	r.Post("/ai-write/:project", b.aiWrite)
	r.Get("/config/apikey", b.getAPIKey)
	r.Post("/config/apikey", b.setAPIKey)
}

func (b *Backend) requestLogging(logger pslog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		method, path := c.Method(), c.Path()
		b.record(method, path)
		err := c.Next()
		if logger == nil {
			return err
		}
		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}
		logger.Info("http request", "method", method, "path", path, "status", status, "duration_ms", time.Since(start).Milliseconds())
		logger.Debug("http request details", "ua", c.Get(fiber.HeaderUserAgent))
		return err
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"detail": err.Error()})
}

func (b *Backend) listProjects(c *fiber.Ctx) error {
	b.mu.Lock()
	out := make([]schema.Project, 0, len(b.projects))
	for name := range b.projects {
		out = append(out, schema.Project{Name: name, Path: "data/" + string(name), HasIndex: b.indexed[name] != nil})
	}
	b.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return c.JSON(out)
}

func (b *Backend) listModels(c *fiber.Ctx) error {
	b.mu.Lock()
	out := append([]schema.Model(nil), b.models...)
	b.mu.Unlock()
	return c.JSON(out)
}

func (b *Backend) listFiles(c *fiber.Ctx) error {
	project := schema.ProjectName(param(c, "project"))
	b.mu.Lock()
	tree, ok := b.tree(project)
	b.mu.Unlock()
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "Projet non trouvé: "+string(project))
	}
	return c.JSON(tree)
}

func (b *Backend) readFile(c *fiber.Ctx) error {
	project, path, err := fileParams(c)
	if err != nil {
		return err
	}
	b.mu.Lock()
	content, ok := b.projects[project][path.Folder][path.Name]
	b.mu.Unlock()
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "Fichier non trouvé")
	}
	return c.JSON(schema.FileContent{
		Filename:    path.Name,
		Folder:      path.Folder,
		Content:     content,
		ContentHTML: markdownToHTML(content),
	})
}

func (b *Backend) writeFile(c *fiber.Ctx) error {
	project, path, err := fileParams(c)
	if err != nil {
		return err
	}
	var req schema.WriteFileRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Requête invalide")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.projects[project]; !ok {
		return fiber.NewError(fiber.StatusNotFound, "Projet non trouvé: "+string(project))
	}
	if b.failWrites != "" {
		return c.JSON(schema.Result{Success: false, Detail: b.failWrites})
	}
	b.putLocked(project, path, req.Content, req.Append)
	return c.JSON(schema.Result{Success: true, Path: path.String()})
}

func (b *Backend) deleteFile(c *fiber.Ctx) error {
	project, path, err := fileParams(c)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	files := b.projects[project][path.Folder]
	if _, ok := files[path.Name]; !ok {
		return fiber.NewError(fiber.StatusNotFound, "Fichier non trouvé")
	}
	if b.failWrites != "" {
		return c.JSON(schema.Result{Success: false, Detail: b.failWrites})
	}
	delete(files, path.Name)
	b.mutations++
	return c.JSON(schema.Result{Success: true})
}

func (b *Backend) upload(c *fiber.Ctx) error {
	project := schema.ProjectName(param(c, "project"))
	folder := param(c, "folder")
	header, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Champ 'file' manquant")
	}
	name := filepath.Base(header.Filename)
	if !uploadExtensions[strings.ToLower(filepath.Ext(name))] {
		return fiber.NewError(fiber.StatusBadRequest, "Extension non supportée: "+name)
	}
	file, err := header.Open()
	if err != nil {
		return err
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.projects[project]; !ok {
		return fiber.NewError(fiber.StatusNotFound, "Projet non trouvé: "+string(project))
	}
	if detail, ok := b.failUploads[name]; ok {
		return fiber.NewError(fiber.StatusInternalServerError, detail)
	}
	b.putLocked(project, schema.FilePath{Folder: folder, Name: name}, string(data), false)
	return c.JSON(schema.Result{Success: true, Path: folder + "/" + name})
}

func (b *Backend) reindex(c *fiber.Ctx) error {
	project := schema.ProjectName(param(c, "project"))
	b.mu.Lock()
	defer b.mu.Unlock()
	folders, ok := b.projects[project]
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "Projet non trouvé: "+string(project))
	}
	previous := b.indexed[project]
	current := map[string]string{}
	result := schema.IndexResult{Success: true}
	for folder, files := range folders {
		for name, content := range files {
			key := folder + "/" + name
			current[key] = content
			old, seen := previous[key]
			switch {
			case !seen:
				result.New++
			case old != content:
				result.Modified++
			}
		}
	}
	for key := range previous {
		if _, ok := current[key]; !ok {
			result.Deleted++
		}
	}
	b.indexed[project] = current
	return c.JSON(result)
}

func (b *Backend) stats(c *fiber.Ctx) error {
	project := schema.ProjectName(param(c, "project"))
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.projects[project]; !ok {
		return fiber.NewError(fiber.StatusNotFound, "Projet non trouvé: "+string(project))
	}
	out := schema.Stats{Project: project}
	if snapshot := b.indexed[project]; snapshot != nil {
		out.Index.FileCount = len(snapshot)
		for _, content := range snapshot {
			out.Index.TotalChunks += len(content)/500 + 1
		}
	} else {
		out.Index.Error = "Index non disponible"
	}
	if b.lastGraph != nil {
		out.Graph.NodeCount = b.lastGraph.Nodes
		out.Graph.RelationshipCount = b.lastGraph.Relationships
	}
	return c.JSON(out)
}

func (b *Backend) chat(c *fiber.Ctx) error {
	var req schema.ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Requête invalide")
	}
	b.mu.Lock()
	fn, delay := b.chatFunc, b.chatDelay
	b.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	if fn == nil {
		fn = defaultChat
	}
	resp, err := fn(req)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(resp)
}

func defaultChat(req schema.ChatRequest) (schema.ChatResponse, error) {
	resp := schema.ChatResponse{Answer: "Réponse à: " + req.Question}
	if req.ShowSources {
		resp.Sources = []string{"chapitres/ch1.md"}
	}
	if req.UseAgents {
		resp.Agents = []string{"Rechercheur", "Coherence"}
	}
	return resp, nil
}

func (b *Backend) populateGraph(c *fiber.Ctx) error {
	project := schema.ProjectName(param(c, "project"))
	b.mu.Lock()
	defer b.mu.Unlock()
	tree, ok := b.tree(project)
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "Projet non trouvé: "+string(project))
	}
	if b.graphRunning {
		return c.JSON(schema.PopulateResponse{Status: schema.PopulateAlreadyRunning, Message: "Population déjà en cours"})
	}
	b.graphRunning = true
	b.graphIdx = 0
	if len(b.graphScript) == 0 {
		b.graphScript = DefaultGraphScript(tree.Count())
	}
	return c.JSON(schema.PopulateResponse{Status: schema.PopulateStarted, Message: "Population du graphe lancée"})
}

func (b *Backend) graphStatus(c *fiber.Ctx) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.graphStatusFails > 0 {
		b.graphStatusFails--
		return fiber.NewError(fiber.StatusServiceUnavailable, "status unavailable")
	}
	if len(b.graphScript) == 0 {
		return c.JSON(schema.JobStatus{Running: b.graphRunning})
	}
	idx := b.graphIdx
	if idx >= len(b.graphScript) {
		idx = len(b.graphScript) - 1
	}
	status := b.graphScript[idx]
	b.graphIdx++
	if status.Succeeded() || status.ErrorMessage() != "" {
		b.graphRunning = false
		if status.Result != nil {
			result := *status.Result
			b.lastGraph = &result
		}
	}
	return c.JSON(status)
}

func (b *Backend) aiWrite(c *fiber.Ctx) error {
	project := schema.ProjectName(param(c, "project"))
	var req schema.WriteRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Requête invalide")
	}
	if !req.Action.Valid() {
		return fiber.NewError(fiber.StatusBadRequest, "Action invalide: "+string(req.Action))
	}
	if strings.TrimSpace(req.Instruction) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Instruction manquante")
	}
	path, err := schema.ParseFilePath(req.FilePath)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Chemin invalide: "+req.FilePath)
	}
	start := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.projects[project]; !ok {
		return fiber.NewError(fiber.StatusNotFound, "Projet non trouvé: "+string(project))
	}
	existing, exists := b.projects[project][path.Folder][path.Name]
	if req.Action == schema.WriteCreate && exists {
		return fiber.NewError(fiber.StatusConflict, "Le fichier existe déjà: "+path.String())
	}
	if req.Action != schema.WriteCreate && !exists {
		return fiber.NewError(fiber.StatusNotFound, "Fichier non trouvé")
	}
	generate := b.writeFunc
	if generate == nil {
		generate = defaultWrite
	}
	content := generate(req, existing)
	if req.PreviewOnly {
		resp := schema.WriteResponse{
			Success:        true,
			Preview:        true,
			Content:        content,
			GenerationTime: time.Since(start).Seconds(),
		}
		if exists {
			original := existing
			resp.OriginalContent = &original
		}
		return c.JSON(resp)
	}
	if b.failWrites != "" {
		return fiber.NewError(fiber.StatusInternalServerError, b.failWrites)
	}
	backup := false
	switch req.Action {
	case schema.WriteAppend:
		b.putLocked(project, path, "\n\n"+content, true)
	default:
		backup = exists
		b.putLocked(project, path, content, false)
	}
	return c.JSON(schema.WriteResponse{
		Success:       true,
		Mode:          string(req.Action),
		FilePath:      path.String(),
		TotalTime:     time.Since(start).Seconds(),
		BackupCreated: backup,
	})
}

func defaultWrite(req schema.WriteRequest, existing string) string {
	switch req.Action {
	case schema.WriteAppend:
		return req.Instruction
	case schema.WriteCreate:
		path, _ := schema.ParseFilePath(req.FilePath)
		return "# " + path.Stem() + "\n\n" + req.Instruction + "\n"
	default:
		return strings.TrimRight(existing, "\n") + "\n\n<!-- " + req.Instruction + " -->\n"
	}
}

func (b *Backend) getAPIKey(c *fiber.Ctx) error {
	b.mu.Lock()
	key := b.apiKey
	b.mu.Unlock()
	return c.JSON(schema.APIKeyStatus{MaskedKey: maskKey(key), HasKey: key != ""})
}

func (b *Backend) setAPIKey(c *fiber.Ctx) error {
	var req schema.APIKeyUpdate
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Requête invalide")
	}
	key := strings.TrimSpace(req.APIKey)
	if key == "" {
		return c.JSON(schema.Result{Success: false, Detail: "Clé API vide"})
	}
	b.mu.Lock()
	b.apiKey = key
	b.mu.Unlock()
	return c.JSON(schema.Result{Success: true, Message: "Clé API mise à jour"})
}

// param returns a decoded route parameter whether or not fiber already
// unescaped the path.
func param(c *fiber.Ctx, name string) string {
	raw := c.Params(name)
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

func fileParams(c *fiber.Ctx) (schema.ProjectName, schema.FilePath, error) {
	path := schema.FilePath{Folder: param(c, "folder"), Name: param(c, "file")}
	if err := path.Validate(); err != nil {
		return "", schema.FilePath{}, fiber.NewError(fiber.StatusBadRequest, "Chemin invalide")
	}
	return schema.ProjectName(param(c, "project")), path, nil
}
