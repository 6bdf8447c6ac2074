package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func isolate(t *testing.T) (home, work string) {
	t.Helper()
	home = t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("DEVLOG_HOME", "")
	t.Setenv("DEVLOG_CONFIG_PATH", "")
	t.Setenv("DEVLOG_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("DEVLOG_PROJECTS", "")
	work = t.TempDir()
	oldwd, _ := os.Getwd()
	if err := os.Chdir(work); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(oldwd) })
	return home, work
}

func TestLoadJSONCAndPrecedence(t *testing.T) {
	home, _ := isolate(t)

	globalDir := filepath.Join(home, ".devlog")
	if err := os.MkdirAll(globalDir, 0o755); err != nil {
		t.Fatal(err)
	}
	globalCfg := `{
  // global
  "provider": {"model": "global-model"},
  "publish": {"enabled": false}
}`
	if err := os.WriteFile(filepath.Join(globalDir, "config.json"), []byte(globalCfg), 0o644); err != nil {
		t.Fatal(err)
	}
	projectCfg := `{
  /* project level */
  "provider": {"model": "project-model"},
  "projects": ["/srv/a", "/srv/b", "/srv/a"]
}`
	if err := os.WriteFile("devlog.config.json", []byte(projectCfg), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.Model != "project-model" {
		t.Fatalf("model=%q", cfg.Provider.Model)
	}
	if cfg.Publish.Enabled {
		t.Fatalf("publish.enabled expected false from global config")
	}
	if len(cfg.Projects) != 2 {
		t.Fatalf("projects not deduplicated: %#v", cfg.Projects)
	}
}

func TestLoadYAML(t *testing.T) {
	_, work := isolate(t)

	yamlCfg := `
projects:
  - /srv/app
backup_root: /var/backups/devlog
changelog:
  path: /srv/log/changelog.md
  duplicate_headers: true
summary:
  max_output_tokens: 120
diff:
  external: false
  context_lines: 5
`
	path := filepath.Join(work, "custom.yaml")
	if err := os.WriteFile(path, []byte(yamlCfg), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BackupRoot != "/var/backups/devlog" {
		t.Fatalf("backup_root=%q", cfg.BackupRoot)
	}
	if !cfg.Changelog.DuplicateHeaders {
		t.Fatalf("duplicate_headers expected true")
	}
	if cfg.Summary.MaxOutputTokens != 120 {
		t.Fatalf("max_output_tokens=%d", cfg.Summary.MaxOutputTokens)
	}
	if cfg.Diff.UseExternal() {
		t.Fatalf("diff.external expected false")
	}
	if cfg.Diff.ContextLines != 5 {
		t.Fatalf("context_lines=%d", cfg.Diff.ContextLines)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestEnvOverride(t *testing.T) {
	isolate(t)
	t.Setenv("DEVLOG_MODEL", "env-model")
	t.Setenv("OPENAI_API_KEY", "sk-fallback")
	t.Setenv("DEVLOG_PROJECTS", "/srv/one"+string(os.PathListSeparator)+"/srv/two")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.Model != "env-model" {
		t.Fatalf("model=%q", cfg.Provider.Model)
	}
	if cfg.Provider.APIKey != "sk-fallback" {
		t.Fatalf("api key=%q", cfg.Provider.APIKey)
	}
	if len(cfg.Projects) != 2 || cfg.Projects[1] != "/srv/two" {
		t.Fatalf("projects=%#v", cfg.Projects)
	}
}

func TestAPIKeyPrecedence(t *testing.T) {
	isolate(t)
	t.Setenv("DEVLOG_API_KEY", "sk-primary")
	t.Setenv("OPENAI_API_KEY", "sk-fallback")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.APIKey != "sk-primary" {
		t.Fatalf("api key=%q", cfg.Provider.APIKey)
	}
}

func TestDefaultsAfterLoad(t *testing.T) {
	isolate(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Summary.MaxOutputTokens != DefaultSummaryMaxOutputTokens {
		t.Fatalf("max_output_tokens=%d", cfg.Summary.MaxOutputTokens)
	}
	if cfg.Summary.Temperature != DefaultSummaryTemperature {
		t.Fatalf("temperature=%v", cfg.Summary.Temperature)
	}
	if cfg.Diff.ContextLines != DefaultDiffContextLines {
		t.Fatalf("context_lines=%d", cfg.Diff.ContextLines)
	}
	if !cfg.Diff.UseExternal() {
		t.Fatalf("external diff expected on by default")
	}
	if !filepath.IsAbs(cfg.Changelog.Path) || !filepath.IsAbs(cfg.BackupRoot) {
		t.Fatalf("paths not absolute: %q %q", cfg.Changelog.Path, cfg.BackupRoot)
	}
}

func TestZeroContextLinesIsKept(t *testing.T) {
	_, work := isolate(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"zero", "diff:\n  context_lines: 0\n", 0},
		{"negative", "diff:\n  context_lines: -2\n", DefaultDiffContextLines},
		{"omitted", "diff:\n  tool: gdiff\n", DefaultDiffContextLines},
	}
	for _, tc := range tests {
		path := filepath.Join(work, tc.name+".yaml")
		if err := os.WriteFile(path, []byte(tc.body), 0o644); err != nil {
			t.Fatal(err)
		}
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if cfg.Diff.ContextLines != tc.want {
			t.Fatalf("%s: context_lines=%d, want %d", tc.name, cfg.Diff.ContextLines, tc.want)
		}
	}

	jsonPath := filepath.Join(work, "zero.json")
	if err := os.WriteFile(jsonPath, []byte(`{"diff": {"context_lines": 0}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(jsonPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Diff.ContextLines != 0 {
		t.Fatalf("json context_lines=%d, want 0", cfg.Diff.ContextLines)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for empty projects, got %v", err)
	}
	cfg.Projects = []string{"relative/path"}
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for relative project, got %v", err)
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		h, m    int
		wantErr bool
	}{
		{in: "00:00"},
		{in: "23:59", h: 23, m: 59},
		{in: "7:05", h: 7, m: 5},
		{in: "24:00", wantErr: true},
		{in: "12", wantErr: true},
		{in: "aa:bb", wantErr: true},
	}
	for _, tc := range tests {
		h, m, err := ParseClock(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseClock(%q) expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseClock(%q): %v", tc.in, err)
		}
		if h != tc.h || m != tc.m {
			t.Fatalf("ParseClock(%q)=%d:%d", tc.in, h, m)
		}
	}
}

func TestStripJSONCommentsKeepsStrings(t *testing.T) {
	in := []byte(`{"url": "http://example.com/a//b", /* c */ "x": 1 // tail
}`)
	out := string(stripJSONComments(in))
	if want := `"http://example.com/a//b"`; !strings.Contains(out, want) {
		t.Fatalf("string literal mangled: %s", out)
	}
	if strings.Contains(out, "tail") || strings.Contains(out, "/* c */") {
		t.Fatalf("comments not stripped: %s", out)
	}
}

