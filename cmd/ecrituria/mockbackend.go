package main

import (
	"github.com/spf13/cobra"

	"pkt.systems/ecrituria/internal/backendmock"
	"pkt.systems/pslog"
)

func newMockBackendCmd() *cobra.Command {
	var addr string
	var seed bool
	cmd := &cobra.Command{
		Use:   "mock-backend",
		Short: "Serve an in-memory Écrituria backend for local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			backend := backendmock.New()
			if seed {
				backend.Seed()
			}
			logger.Info("mock backend listening", "addr", addr, "seeded", seed)
			return backend.ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVarP(&addr, "listen", "l", "127.0.0.1:8000", "listen address")
	cmd.Flags().BoolVar(&seed, "seed", true, "start with a demo project")
	return cmd
}
