package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.CatalogPath != "data/catalog.yaml" {
		t.Errorf("CatalogPath = %q, want default", cfg.CatalogPath)
	}
	if cfg.StartingEP != 100 {
		t.Errorf("StartingEP = %d, want 100", cfg.StartingEP)
	}
	if cfg.DeckSize != 10 {
		t.Errorf("DeckSize = %d, want 10", cfg.DeckSize)
	}
	if cfg.PolymeraseLimit != 1 {
		t.Errorf("PolymeraseLimit = %d, want 1", cfg.PolymeraseLimit)
	}
	if cfg.VictoryThreshold != 10000 {
		t.Errorf("VictoryThreshold = %d, want 10000", cfg.VictoryThreshold)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("VIRUS_PORT", "9999")
	t.Setenv("VIRUS_STARTING_EP", "250")
	t.Setenv("VIRUS_INTERFERON_DECAY", "3.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 9999 {
		t.Errorf("Port = %d, want 9999", cfg.Port)
	}
	if cfg.StartingEP != 250 {
		t.Errorf("StartingEP = %d, want 250", cfg.StartingEP)
	}
	if cfg.InterferonDecay != 3.5 {
		t.Errorf("InterferonDecay = %v, want 3.5", cfg.InterferonDecay)
	}
}

func TestEngineParams(t *testing.T) {
	cfg := Config{VictoryThreshold: 500, HistoryLimit: 20, InterferonDecay: 1.0, BaseDegradation: 0.05, YieldStride: 3}
	p := cfg.EngineParams()
	if p.VictoryThreshold != 500 || p.HistoryLimit != 20 || p.YieldStride != 3 {
		t.Errorf("EngineParams() = %+v, want config values carried over", p)
	}
}
