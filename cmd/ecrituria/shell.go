package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"pkt.systems/ecrituria/internal/command"
	"pkt.systems/ecrituria/internal/version"
)

func newShellCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start the interactive writing shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts, interactive)
			if err != nil {
				return err
			}
			defer s.Close()
			s.out.Println(
				fmt.Sprintf("Écrituria %s - %s", version.Current(), s.client.API.BaseURL()),
				"Tapez /help pour la liste des commandes.",
			)
			return shellLoop(cmd.Context(), s)
		},
	}
}

// shellLoop reads lines until /quit, end of input or cancellation.
func shellLoop(ctx context.Context, s *session) error {
	for {
		s.out.Prompt(s.stdout, prompt(s))
		input, err := s.terminal.ReadLine(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				s.out.Prompt(s.stdout, "\n")
				return nil
			}
			return err
		}
		err = s.handler.Handle(ctx, input)
		if errors.Is(err, command.ErrQuit) {
			return nil
		}
		if err == nil {
			continue
		}
		if reported := s.report(err); reported != nil && !errors.Is(reported, errReported) {
			s.logger.Warn("shell command failed", "err", reported)
			s.out.Println("❌ " + reported.Error())
		}
	}
}

func prompt(s *session) string {
	project := string(s.client.Controller.Project())
	if project == "" {
		return "écrituria› "
	}
	if path, ok := s.client.Controller.OpenFile(); ok {
		return project + ":" + path.String() + "› "
	}
	return project + "› "
}
