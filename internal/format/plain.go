// Package format renders backend results as plain text lines for the
// terminal and the chat transcript.
package format

import (
	"fmt"
	"strings"

	"pkt.systems/ecrituria/schema"
)

const (
	// SourcesHeader introduces the source list of a chat answer.
	SourcesHeader = "📚 Sources:"
	// GraphTimeout is shown when the graph job outlives the poll ceiling.
	GraphTimeout = "⚠️ Timeout: population trop longue. Vérifie les logs serveur."
)

// ChatAnswer renders an answer with agent badges before it and the
// source list after it.
func ChatAnswer(resp schema.ChatResponse) string {
	var b strings.Builder
	if len(resp.Agents) > 0 {
		badges := make([]string, 0, len(resp.Agents))
		for _, agent := range resp.Agents {
			badges = append(badges, "["+agent+"]")
		}
		b.WriteString(strings.Join(badges, " "))
		b.WriteString("\n\n")
	}
	b.WriteString(resp.Answer)
	if len(resp.Sources) > 0 {
		b.WriteString("\n\n")
		b.WriteString(SourcesHeader)
		for _, source := range resp.Sources {
			b.WriteString("\n📄 ")
			b.WriteString(source)
		}
	}
	return b.String()
}

// Error renders a failure the way every action reports it.
func Error(detail string) string {
	return "❌ Erreur: " + detail
}

// JobStatus renders one polled status of the graph job.
func JobStatus(s schema.JobStatus) string {
	step := s.Step
	if step == "" {
		step = "En cours..."
	}
	line := step
	if s.Total > 0 {
		line += fmt.Sprintf(" (%d/%d - %d%%)", s.Progress, s.Total, s.Percent)
	}
	if s.CurrentFile != "" {
		line += " 📄 " + s.CurrentFile
	}
	if s.Elapsed != "" {
		line += " [" + s.Elapsed + "]"
	}
	return line
}

// GraphDone renders the completion of the graph job.
func GraphDone(s schema.JobStatus) string {
	if s.Result == nil {
		return "✅ Graphe peuplé avec succès!"
	}
	return strings.Join([]string{
		"✅ Graphe peuplé avec succès!",
		fmt.Sprintf("• %d nœuds", s.Result.Nodes),
		fmt.Sprintf("• %d relations", s.Result.Relationships),
		"⏱️ Temps: " + s.Elapsed,
	}, "\n")
}

// Populate renders the kick-off answer of the graph job.
func Populate(resp schema.PopulateResponse) string {
	switch resp.Status {
	case schema.PopulateAlreadyRunning:
		return "⏳ Population déjà en cours. Suivi de la progression..."
	case schema.PopulateStarted:
		return "✅ Population lancée! Suivi en temps réel..."
	default:
		return "🔄 Lancement de la population du graphe..."
	}
}

// Stats renders project statistics.
func Stats(project schema.ProjectName, s schema.Stats) string {
	lines := []string{
		fmt.Sprintf("📊 Statistiques - %s", project),
		"",
		"Index:",
		fmt.Sprintf("• Fichiers: %d", s.Index.FileCount),
		fmt.Sprintf("• Chunks: %d", s.Index.TotalChunks),
	}
	if s.Index.Error != "" {
		lines = append(lines, "• Erreur: "+s.Index.Error)
	}
	lines = append(lines,
		"",
		"Graphe:",
		fmt.Sprintf("• Nœuds: %d", s.Graph.NodeCount),
		fmt.Sprintf("• Relations: %d", s.Graph.RelationshipCount),
	)
	if s.Graph.Error != "" {
		lines = append(lines, "• Erreur: "+s.Graph.Error)
	}
	return strings.Join(lines, "\n")
}

// IndexResult renders a finished reindex.
func IndexResult(r schema.IndexResult) string {
	return fmt.Sprintf("✅ Réindexation terminée!\n• Nouveaux: %d\n• Modifiés: %d\n• Supprimés: %d", r.New, r.Modified, r.Deleted)
}

// Project renders a project entry; indexed projects carry a check mark.
func Project(p schema.Project) string {
	label := "📖 " + string(p.Name)
	if p.HasIndex {
		label += " ✓"
	}
	return label
}

// Tree renders a file tree, folders sorted.
func Tree(tree schema.FileTree) []string {
	if tree.Count() == 0 {
		return []string{"(aucun fichier)"}
	}
	var lines []string
	for _, folder := range tree.Folders() {
		lines = append(lines, "📁 "+folder)
		for _, name := range tree[folder] {
			lines = append(lines, "  📄 "+name)
		}
	}
	return lines
}

// SplitLines splits text into lines, dropping one trailing newline.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}

// MarkLines prefixes every line with marker.
func MarkLines(marker string, lines []string) []string {
	if marker == "" || len(lines) == 0 {
		return lines
	}
	marked := make([]string, 0, len(lines))
	for _, line := range lines {
		marked = append(marked, marker+line)
	}
	return marked
}
