package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pkt.systems/ecrituria/internal/jobpoll"
	"pkt.systems/ecrituria/internal/upload"
	"pkt.systems/ecrituria/schema"
)

// withSession runs fn against a one-shot session and always closes it.
func withSession(cmd *cobra.Command, opts *globalOptions, fn func(ctx context.Context, s *session) error) error {
	s, err := openSession(cmd, opts, oneShot)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(cmd.Context(), s)
}

// slashCmd builds a subcommand that replays shell lines.
func slashCmd(opts *globalOptions, use, short string, args cobra.PositionalArgs, lines func(args []string) []string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(ctx context.Context, s *session) error {
				return s.run(ctx, lines(args)...)
			})
		},
	}
}

// line builds a shell line, quoting arguments that hold spaces.
func line(parts ...string) string {
	quoted := make([]string, len(parts))
	for i, part := range parts {
		quoted[i] = quoteArg(part)
	}
	return "/" + strings.Join(quoted, " ")
}

func quoteArg(s string) string {
	if !strings.ContainsAny(s, " \t") {
		return s
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	return "'" + s + "'"
}

func newProjectsCmd(opts *globalOptions) *cobra.Command {
	return slashCmd(opts, "projects", "List projects", cobra.NoArgs, func([]string) []string {
		return []string{line("projects")}
	})
}

func newModelsCmd(opts *globalOptions) *cobra.Command {
	return slashCmd(opts, "models", "List chat models", cobra.NoArgs, func([]string) []string {
		return []string{line("models")}
	})
}

func newFilesCmd(opts *globalOptions) *cobra.Command {
	return slashCmd(opts, "files", "Show the file tree of the project", cobra.NoArgs, func([]string) []string {
		return []string{line("tree")}
	})
}

func newShowCmd(opts *globalOptions) *cobra.Command {
	var highlight string
	cmd := &cobra.Command{
		Use:   "show <folder/file>",
		Short: "Print a file of the project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(ctx context.Context, s *session) error {
				lines := []string{line("open", args[0])}
				if strings.TrimSpace(highlight) != "" {
					lines = append(lines, line("hl", highlight))
				}
				return s.run(ctx, lines...)
			})
		},
	}
	cmd.Flags().StringVar(&highlight, "highlight", "", "highlight a term")
	return cmd
}

func newNewCmd(opts *globalOptions) *cobra.Command {
	return slashCmd(opts, "new [folder] [name]", "Create a file", cobra.MaximumNArgs(2), func(args []string) []string {
		return []string{line(append([]string{"new"}, args...)...)}
	})
}

func newRmCmd(opts *globalOptions) *cobra.Command {
	return slashCmd(opts, "rm <folder/file>", "Delete a file", cobra.ExactArgs(1), func(args []string) []string {
		return []string{line("open", args[0]), line("rm")}
	})
}

func newMvCmd(opts *globalOptions) *cobra.Command {
	return slashCmd(opts, "mv <folder/file> <new-name>", "Rename a file", cobra.ExactArgs(2), func(args []string) []string {
		return []string{line("open", args[0]), line("mv", args[1])}
	})
}

func newCpCmd(opts *globalOptions) *cobra.Command {
	return slashCmd(opts, "cp <folder/file> [new-name]", "Duplicate a file", cobra.RangeArgs(1, 2), func(args []string) []string {
		return []string{line("open", args[0]), line(append([]string{"cp"}, args[1:]...)...)}
	})
}

func newEditCmd(opts *globalOptions) *cobra.Command {
	return slashCmd(opts, "edit <folder/file>", "Edit a file in $EDITOR", cobra.ExactArgs(1), func(args []string) []string {
		return []string{line("open", args[0]), line("edit"), line("save")}
	})
}

func newReindexCmd(opts *globalOptions) *cobra.Command {
	return slashCmd(opts, "reindex", "Reindex the project", cobra.NoArgs, func([]string) []string {
		return []string{line("reindex")}
	})
}

func newStatsCmd(opts *globalOptions) *cobra.Command {
	return slashCmd(opts, "stats", "Show project statistics", cobra.NoArgs, func([]string) []string {
		return []string{line("stats")}
	})
}

func newChatCmd(opts *globalOptions) *cobra.Command {
	var model string
	var graph bool
	var agents bool
	cmd := &cobra.Command{
		Use:   "chat <question...>",
		Short: "Ask the assistant a question about the project",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(ctx context.Context, s *session) error {
				var lines []string
				if model != "" {
					lines = append(lines, line("model", model))
				}
				if cmd.Flags().Changed("graph") {
					lines = append(lines, line("graph", onOff(graph)))
				}
				if cmd.Flags().Changed("agents") {
					lines = append(lines, line("agents", onOff(agents)))
				}
				if err := s.run(ctx, lines...); err != nil {
					return err
				}
				_, err := s.client.Chat.Send(ctx, strings.Join(args, " "))
				return s.report(err)
			})
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "", "chat model id (provider/model)")
	cmd.Flags().BoolVar(&graph, "graph", true, "use the knowledge graph")
	cmd.Flags().BoolVar(&agents, "agents", false, "use the agent pipeline")
	return cmd
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func newWriteCmd(opts *globalOptions) *cobra.Command {
	var commit bool
	cmd := &cobra.Command{
		Use:   "write <" + writeActionList() + "> <folder/file> <instruction...>",
		Short: "Preview an AI write, and apply it with --commit",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(ctx context.Context, s *session) error {
				lines := []string{line(append([]string{"write"}, args...)...)}
				if commit {
					lines = append(lines, line("commit"))
				}
				return s.run(ctx, lines...)
			})
		},
	}
	cmd.Flags().BoolVar(&commit, "commit", false, "apply the previewed write after confirmation")
	return cmd
}

func writeActionList() string {
	actions := schema.WriteActions()
	names := make([]string, 0, len(actions))
	for _, action := range actions {
		names = append(names, string(action))
	}
	return strings.Join(names, "|")
}

func newUploadCmd(opts *globalOptions) *cobra.Command {
	var folder string
	var watchDir string
	cmd := &cobra.Command{
		Use:   "upload [files...]",
		Short: "Upload files to the project, or keep uploading a watched folder",
		RunE: func(cmd *cobra.Command, args []string) error {
			if watchDir == "" && len(args) == 0 {
				return errors.New("upload needs files or --watch")
			}
			return withSession(cmd, opts, func(ctx context.Context, s *session) error {
				cfg := s.client.Config()
				target := folder
				if target == "" {
					target = cfg.Upload.Folder
				}
				if len(args) > 0 {
					parts := []string{"upload"}
					if target != "" {
						parts = append(parts, target)
					}
					if err := s.run(ctx, line(append(parts, args...)...)); err != nil {
						return err
					}
				}
				if watchDir == "" {
					return nil
				}
				if s.client.Controller.Project() == "" {
					return s.report(schema.ErrNoProject)
				}
				s.out.Println(fmt.Sprintf("👀 Surveillance de %s → %s", watchDir, target))
				return upload.Watch(ctx, watchDir, upload.WatchOptions{
					Extensions: cfg.Upload.Extensions,
					Debounce:   cfg.Upload.Debounce(),
				}, func(ctx context.Context, files []upload.File) {
					if err := s.handler.Upload(ctx, target, files); err != nil {
						s.logger.Warn("watched upload failed", "dir", watchDir, "err", err)
					}
				})
			})
		},
	}
	cmd.Flags().StringVarP(&folder, "folder", "f", "", "destination folder (default upload.folder)")
	cmd.Flags().StringVarP(&watchDir, "watch", "w", "", "watch a local folder and upload new or changed files")
	return cmd
}

func newGraphCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Knowledge graph operations",
	}
	var noWait bool
	populate := &cobra.Command{
		Use:   "populate",
		Short: "Populate the knowledge graph and follow the job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(ctx context.Context, s *session) error {
				run, err := s.client.Controller.PopulateGraph(ctx)
				if err != nil {
					return s.report(err)
				}
				if noWait {
					return nil
				}
				outcome, err := run.Wait(ctx)
				if err != nil {
					run.Cancel()
					return err
				}
				return graphOutcomeErr(outcome)
			})
		},
	}
	populate.Flags().BoolVar(&noWait, "no-wait", false, "return once the job has started")
	cmd.AddCommand(populate)
	return cmd
}

// graphOutcomeErr maps a finished graph job to the command result. The
// controller already reported the outcome.
func graphOutcomeErr(outcome jobpoll.Outcome) error {
	switch outcome.State {
	case jobpoll.StateCompleted, jobpoll.StateCancelled:
		return nil
	default:
		return errReported
	}
}

func newAPIKeyCmd(opts *globalOptions) *cobra.Command {
	cmd := slashCmd(opts, "apikey", "Show the masked backend API key", cobra.NoArgs, func([]string) []string {
		return []string{line("apikey")}
	})
	cmd.AddCommand(slashCmd(opts, "set <key>", "Store the backend API key", cobra.ExactArgs(1), func(args []string) []string {
		return []string{line("apikey", args[0])}
	}))
	return cmd
}
