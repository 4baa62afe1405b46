package main

import (
	"flag"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestListFlag_RepeatedAppends(t *testing.T) {
	var dst = []string{"Default"}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Var(&listFlag{dst: &dst}, "exclude", "")
	if err := fs.Parse([]string{"-exclude", "Gold, Tea", "-exclude", "Slaves"}); err != nil {
		t.Fatal(err)
	}
	if want := []string{"Gold", "Tea", "Slaves"}; !slices.Equal(dst, want) {
		t.Errorf("exclude = %v, want %v", dst, want)
	}
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trader.yaml")
	body := "cap: 64\nexclude: [Beer]\nfrom: Sol/Abraham Lincoln\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	cfg, err := loadConfig(fs, []string{"-config", path, "-exclude", "Gold", "-exclude", "Tea", "-hops", "3"}, bindSearchFlags)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"Gold", "Tea"}; !slices.Equal(cfg.Exclude, want) {
		t.Errorf("Exclude = %v, want %v", cfg.Exclude, want)
	}
	if cfg.Cap != 64 || cfg.Hops != 3 || cfg.From != "Sol/Abraham Lincoln" {
		t.Errorf("Cap/Hops/From = %d/%d/%q, want 64/3/Sol/Abraham Lincoln", cfg.Cap, cfg.Hops, cfg.From)
	}
}
