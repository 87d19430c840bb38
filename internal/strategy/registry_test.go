package strategy

import (
	"log/slog"
	"strings"
	"testing"
)

func TestRegistryUnknownName(t *testing.T) {
	r := DefaultRegistry()
	if _, err := r.New("bogus", testCfg(), testLogger()); err == nil {
		t.Fatal("want error for unregistered name")
	} else if !strings.Contains(err.Error(), "not registered") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDefaultRegistryBuildsEngines(t *testing.T) {
	r := DefaultRegistry()

	names := r.List()
	want := []string{NameMarketMaker, NameSupertrend}
	if len(names) != len(want) {
		t.Fatalf("List got %v want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("List got %v want %v", names, want)
		}
	}

	for _, name := range want {
		s, err := r.New(name, testCfg(), testLogger())
		if err != nil {
			t.Fatalf("New(%s): %v", name, err)
		}
		if s.Name() != name {
			t.Fatalf("Name got %s want %s", s.Name(), name)
		}
	}
}

func TestRegistryReplaceOverrides(t *testing.T) {
	r := NewRegistry()
	r.Register("custom", func(cfg Config, logger *slog.Logger) (Strategy, error) {
		return NewSupertrend(cfg, logger)
	})
	r.Register("custom", func(cfg Config, logger *slog.Logger) (Strategy, error) {
		return NewMarketMaker(cfg, logger)
	})

	s, err := r.New("custom", testCfg(), testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.Name() != NameMarketMaker {
		t.Fatalf("replacement constructor not used, got %s", s.Name())
	}
}
