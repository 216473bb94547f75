package appconfig

import (
	"testing"
	"time"
)

func TestDefaultConfigTimings(t *testing.T) {
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	if cfg.Progress.Tick() != 1500*time.Millisecond {
		t.Fatalf("unexpected tick %v", cfg.Progress.Tick())
	}
	if cfg.Progress.HideAfter() != 1200*time.Millisecond {
		t.Fatalf("unexpected hide delay %v", cfg.Progress.HideAfter())
	}
	if cfg.Graph.PollInterval() != 1500*time.Millisecond || cfg.Graph.MaxPolls != 200 {
		t.Fatalf("unexpected graph polling %v x %d", cfg.Graph.PollInterval(), cfg.Graph.MaxPolls)
	}
	if cfg.Chat.LongWait() != 25*time.Second {
		t.Fatalf("unexpected long wait %v", cfg.Chat.LongWait())
	}
	if len(cfg.Upload.Extensions) != 2 || cfg.Upload.Extensions[0] != ".md" {
		t.Fatalf("unexpected extensions %v", cfg.Upload.Extensions)
	}
}
