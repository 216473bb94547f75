package backendmock

import (
	"context"
	"net"
	"net/http"
	"time"

	"pkt.systems/pslog"
)

const shutdownTimeout = 5 * time.Second

// ListenAndServe serves the backend on addr until ctx is cancelled.
func (b *Backend) ListenAndServe(ctx context.Context, addr string) error {
	logger := pslog.Ctx(ctx)
	server := &http.Server{
		Addr:              addr,
		Handler:           b.Handler(logger),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          pslog.LogLoggerWithLevel(logger, pslog.ErrorLevel),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

// Seed fills the backend with a small demo project.
func (b *Backend) Seed() {
	b.AddProject("demo", map[string]string{
		"chapitres/ch1.md":     "# Chapitre 1\n\nLe dragon vole au-dessus de la **citadelle**.\n",
		"chapitres/ch2.md":     "# Chapitre 2\n\nÉlise découvre la carte.\n",
		"personnages/elise.md": "# Élise\n\n- Cartographe\n- Curieuse\n",
		"lore/monde.md":        "# Le monde\n\nUn archipel de *sept* îles.\n",
		"notes/idees.txt":      "Idées en vrac.\n",
	})
	b.SetAPIKey("sk-or-v1-demo0000000000000000000000000000")
}
