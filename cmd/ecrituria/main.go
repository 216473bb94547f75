package main

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"pkt.systems/psi"
	"pkt.systems/pslog"
)

func main() {
	psi.Run(submain)
}

func submain(ctx context.Context) int {
	logger := pslog.LoggerFromEnv(
		pslog.WithEnvWriter(os.Stderr),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeConsole, MinLevel: pslog.ErrorLevel}),
	)
	ctx = pslog.ContextWithLogger(ctx, logger)
	log.SetOutput(pslog.LogLogger(logger).Writer())
	log.SetFlags(0)

	args := applyArgv0Alias(os.Args)
	root := newRootCmd()
	root.SetArgs(args[1:])

	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			pslog.Ctx(ctx).With("err", err).Error("ecrituria command failed")
		}
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "ecrituria",
		Short:         "Terminal client for the Écrituria writing assistant",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	opts.bind(root)

	root.AddCommand(newShellCmd(opts))
	root.AddCommand(newProjectsCmd(opts))
	root.AddCommand(newModelsCmd(opts))
	root.AddCommand(newFilesCmd(opts))
	root.AddCommand(newShowCmd(opts))
	root.AddCommand(newNewCmd(opts))
	root.AddCommand(newRmCmd(opts))
	root.AddCommand(newMvCmd(opts))
	root.AddCommand(newCpCmd(opts))
	root.AddCommand(newEditCmd(opts))
	root.AddCommand(newChatCmd(opts))
	root.AddCommand(newWriteCmd(opts))
	root.AddCommand(newUploadCmd(opts))
	root.AddCommand(newReindexCmd(opts))
	root.AddCommand(newStatsCmd(opts))
	root.AddCommand(newGraphCmd(opts))
	root.AddCommand(newAPIKeyCmd(opts))
	root.AddCommand(newMockBackendCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newDoctorCmd(opts))
	root.AddCommand(newVersionCmd())

	return root
}

func argv0Alias(base string) string {
	switch base {
	case "ecrituria-mock", "ecrituria-backend-mock":
		return "mock-backend"
	case "ecrituria-shell":
		return "shell"
	default:
		return ""
	}
}

func applyArgv0Alias(args []string) []string {
	if len(args) == 0 {
		return args
	}
	alias := argv0Alias(filepath.Base(args[0]))
	if alias == "" {
		return args
	}
	out := make([]string, 0, len(args)+1)
	out = append(out, args[0], alias)
	out = append(out, args[1:]...)
	return out
}
