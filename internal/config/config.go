package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type ChangelogConfig struct {
	Path string `json:"path" yaml:"path"`
	// DuplicateHeaders 保留旧行为：每次更新都在顶部追加完整表头。
	// DuplicateHeaders keeps the legacy behavior of prepending a full header on every update.
	DuplicateHeaders bool `json:"duplicate_headers" yaml:"duplicate_headers"`
}

type ProviderConfig struct {
	BaseURL   string `json:"base_url" yaml:"base_url"`
	Model     string `json:"model" yaml:"model"`
	APIKey    string `json:"api_key" yaml:"api_key"`
	TimeoutMS int    `json:"timeout_ms" yaml:"timeout_ms"`
}

type SummaryConfig struct {
	MaxOutputTokens int     `json:"max_output_tokens" yaml:"max_output_tokens"`
	Temperature     float64 `json:"temperature" yaml:"temperature"`
	MaxInputTokens  int     `json:"max_input_tokens" yaml:"max_input_tokens"`
	Prompt          string  `json:"prompt" yaml:"prompt"`
}

type DiffConfig struct {
	External       *bool  `json:"external" yaml:"external"`
	Tool           string `json:"tool" yaml:"tool"`
	ContextLines   int    `json:"context_lines" yaml:"context_lines"`
	MaxOutputBytes int    `json:"max_output_bytes" yaml:"max_output_bytes"`
}

// UseExternal reports whether the external diff tool should be tried first.
func (d DiffConfig) UseExternal() bool {
	return d.External == nil || *d.External
}

type PublishConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Remote  string `json:"remote" yaml:"remote"`
	Branch  string `json:"branch" yaml:"branch"`
}

type ScheduleConfig struct {
	// At 每日运行时间，HH:MM 本地时间
	// At is the daily run time, HH:MM local time
	At string `json:"at" yaml:"at"`
}

type StorageConfig struct {
	BaseDir string `json:"base_dir" yaml:"base_dir"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	File   string `json:"file" yaml:"file"`
	Format string `json:"format" yaml:"format"`
}

type TelemetryConfig struct {
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	Insecure bool   `json:"insecure" yaml:"insecure"`
}

type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

type CommandConfig struct {
	TimeoutMS        int `json:"timeout_ms" yaml:"timeout_ms"`
	OutputLimitBytes int `json:"output_limit_bytes" yaml:"output_limit_bytes"`
}

type Config struct {
	Projects   []string        `json:"projects" yaml:"projects"`
	BackupRoot string          `json:"backup_root" yaml:"backup_root"`
	Changelog  ChangelogConfig `json:"changelog" yaml:"changelog"`
	Provider   ProviderConfig  `json:"provider" yaml:"provider"`
	Summary    SummaryConfig   `json:"summary" yaml:"summary"`
	Diff       DiffConfig      `json:"diff" yaml:"diff"`
	Publish    PublishConfig   `json:"publish" yaml:"publish"`
	Schedule   ScheduleConfig  `json:"schedule" yaml:"schedule"`
	Storage    StorageConfig   `json:"storage" yaml:"storage"`
	Log        LogConfig       `json:"log" yaml:"log"`
	Telemetry  TelemetryConfig `json:"telemetry" yaml:"telemetry"`
	Server     ServerConfig    `json:"server" yaml:"server"`
	Command    CommandConfig   `json:"command" yaml:"command"`
}

type fileChangelogConfig struct {
	Path             *string `json:"path" yaml:"path"`
	DuplicateHeaders *bool   `json:"duplicate_headers" yaml:"duplicate_headers"`
}

type fileSummaryConfig struct {
	MaxOutputTokens *int     `json:"max_output_tokens" yaml:"max_output_tokens"`
	Temperature     *float64 `json:"temperature" yaml:"temperature"`
	MaxInputTokens  *int     `json:"max_input_tokens" yaml:"max_input_tokens"`
	Prompt          *string  `json:"prompt" yaml:"prompt"`
}

type filePublishConfig struct {
	Enabled *bool   `json:"enabled" yaml:"enabled"`
	Remote  *string `json:"remote" yaml:"remote"`
	Branch  *string `json:"branch" yaml:"branch"`
}

type fileDiffConfig struct {
	External       *bool   `json:"external" yaml:"external"`
	Tool           *string `json:"tool" yaml:"tool"`
	ContextLines   *int    `json:"context_lines" yaml:"context_lines"`
	MaxOutputBytes *int    `json:"max_output_bytes" yaml:"max_output_bytes"`
}

type fileTelemetryConfig struct {
	Endpoint *string `json:"endpoint" yaml:"endpoint"`
	Insecure *bool   `json:"insecure" yaml:"insecure"`
}

type fileConfig struct {
	Projects   *[]string            `json:"projects" yaml:"projects"`
	BackupRoot *string              `json:"backup_root" yaml:"backup_root"`
	Changelog  *fileChangelogConfig `json:"changelog" yaml:"changelog"`
	Provider   *ProviderConfig      `json:"provider" yaml:"provider"`
	Summary    *fileSummaryConfig   `json:"summary" yaml:"summary"`
	Diff       *fileDiffConfig      `json:"diff" yaml:"diff"`
	Publish    *filePublishConfig   `json:"publish" yaml:"publish"`
	Schedule   *ScheduleConfig      `json:"schedule" yaml:"schedule"`
	Storage    *StorageConfig       `json:"storage" yaml:"storage"`
	Log        *LogConfig           `json:"log" yaml:"log"`
	Telemetry  *fileTelemetryConfig `json:"telemetry" yaml:"telemetry"`
	Server     *ServerConfig        `json:"server" yaml:"server"`
	Command    *CommandConfig       `json:"command" yaml:"command"`
}

func Default() Config {
	external := true
	return Config{
		BackupRoot: "~/project_backups",
		Changelog: ChangelogConfig{
			Path: "./changelog.md",
		},
		Provider: ProviderConfig{
			BaseURL:   DefaultProviderBaseURL,
			Model:     DefaultProviderModel,
			TimeoutMS: DefaultProviderTimeoutMS,
		},
		Summary: SummaryConfig{
			MaxOutputTokens: DefaultSummaryMaxOutputTokens,
			Temperature:     DefaultSummaryTemperature,
			MaxInputTokens:  DefaultSummaryMaxInputTokens,
			Prompt:          DefaultSummaryPrompt,
		},
		Diff: DiffConfig{
			External:       &external,
			Tool:           "diff",
			ContextLines:   DefaultDiffContextLines,
			MaxOutputBytes: DefaultDiffMaxOutputBytes,
		},
		Publish: PublishConfig{
			Enabled: true,
		},
		Schedule: ScheduleConfig{At: "00:00"},
		Storage:  StorageConfig{BaseDir: "~/.devlog"},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Command: CommandConfig{
			TimeoutMS:        DefaultCommandTimeoutMS,
			OutputLimitBytes: DefaultCommandOutputLimitBytes,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	for _, globalPath := range globalConfigPaths() {
		if err := mergeFromFile(&cfg, globalPath); err != nil {
			return Config{}, err
		}
	}

	resolvedPath := strings.TrimSpace(path)
	if envPath := strings.TrimSpace(os.Getenv("DEVLOG_CONFIG_PATH")); envPath != "" {
		resolvedPath = envPath
	}
	if resolvedPath == "" {
		resolvedPath = findProjectConfigPath()
	}
	if err := mergeFromFile(&cfg, resolvedPath); err != nil {
		return Config{}, err
	}

	if err := normalize(&cfg); err != nil {
		return Config{}, err
	}
	return applyEnv(cfg)
}

func globalConfigPaths() []string {
	if home := strings.TrimSpace(os.Getenv("DEVLOG_HOME")); home != "" {
		return []string{filepath.Join(home, "config.json"), filepath.Join(home, "config.yaml")}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(home, ".devlog", "config.json"),
		filepath.Join(home, ".devlog", "config.yaml"),
	}
}

func findProjectConfigPath() string {
	candidates := []string{
		ProjectConfigFile,
		"devlog.config.yaml",
		".devlog/config.json",
		".devlog/config.yaml",
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

func mergeFromFile(cfg *Config, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}

	resolved, err := expandPath(path)
	if err != nil {
		return fmt.Errorf("expand config path %q: %w", path, err)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %q: %w", resolved, err)
	}

	var fileCfg fileConfig
	switch strings.ToLower(filepath.Ext(resolved)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return fmt.Errorf("parse config %q: %w", resolved, err)
		}
	default:
		cleaned := stripJSONComments(data)
		if err := json.Unmarshal(cleaned, &fileCfg); err != nil {
			return fmt.Errorf("parse config %q: %w", resolved, err)
		}
	}
	applyFileConfig(cfg, fileCfg)
	return nil
}

func applyFileConfig(cfg *Config, fc fileConfig) {
	if fc.Projects != nil {
		cfg.Projects = append([]string(nil), (*fc.Projects)...)
	}
	if fc.BackupRoot != nil && strings.TrimSpace(*fc.BackupRoot) != "" {
		cfg.BackupRoot = *fc.BackupRoot
	}
	if fc.Changelog != nil {
		if fc.Changelog.Path != nil && strings.TrimSpace(*fc.Changelog.Path) != "" {
			cfg.Changelog.Path = *fc.Changelog.Path
		}
		if fc.Changelog.DuplicateHeaders != nil {
			cfg.Changelog.DuplicateHeaders = *fc.Changelog.DuplicateHeaders
		}
	}
	if fc.Provider != nil {
		cfg.Provider = mergeProvider(cfg.Provider, *fc.Provider)
	}
	if fc.Summary != nil {
		if fc.Summary.MaxOutputTokens != nil {
			cfg.Summary.MaxOutputTokens = *fc.Summary.MaxOutputTokens
		}
		if fc.Summary.Temperature != nil {
			cfg.Summary.Temperature = *fc.Summary.Temperature
		}
		if fc.Summary.MaxInputTokens != nil {
			cfg.Summary.MaxInputTokens = *fc.Summary.MaxInputTokens
		}
		if fc.Summary.Prompt != nil {
			cfg.Summary.Prompt = *fc.Summary.Prompt
		}
	}
	if fc.Diff != nil {
		cfg.Diff = mergeDiff(cfg.Diff, *fc.Diff)
	}
	if fc.Publish != nil {
		if fc.Publish.Enabled != nil {
			cfg.Publish.Enabled = *fc.Publish.Enabled
		}
		if fc.Publish.Remote != nil {
			cfg.Publish.Remote = strings.TrimSpace(*fc.Publish.Remote)
		}
		if fc.Publish.Branch != nil {
			cfg.Publish.Branch = strings.TrimSpace(*fc.Publish.Branch)
		}
	}
	if fc.Schedule != nil && strings.TrimSpace(fc.Schedule.At) != "" {
		cfg.Schedule.At = fc.Schedule.At
	}
	if fc.Storage != nil && strings.TrimSpace(fc.Storage.BaseDir) != "" {
		cfg.Storage.BaseDir = fc.Storage.BaseDir
	}
	if fc.Log != nil {
		cfg.Log = mergeLog(cfg.Log, *fc.Log)
	}
	if fc.Telemetry != nil {
		if fc.Telemetry.Endpoint != nil {
			cfg.Telemetry.Endpoint = strings.TrimSpace(*fc.Telemetry.Endpoint)
		}
		if fc.Telemetry.Insecure != nil {
			cfg.Telemetry.Insecure = *fc.Telemetry.Insecure
		}
	}
	if fc.Server != nil {
		cfg.Server.Addr = strings.TrimSpace(fc.Server.Addr)
	}
	if fc.Command != nil {
		if fc.Command.TimeoutMS > 0 {
			cfg.Command.TimeoutMS = fc.Command.TimeoutMS
		}
		if fc.Command.OutputLimitBytes > 0 {
			cfg.Command.OutputLimitBytes = fc.Command.OutputLimitBytes
		}
	}
}

func mergeProvider(base ProviderConfig, override ProviderConfig) ProviderConfig {
	if strings.TrimSpace(override.BaseURL) != "" {
		base.BaseURL = override.BaseURL
	}
	if strings.TrimSpace(override.Model) != "" {
		base.Model = override.Model
	}
	if strings.TrimSpace(override.APIKey) != "" {
		base.APIKey = override.APIKey
	}
	if override.TimeoutMS > 0 {
		base.TimeoutMS = override.TimeoutMS
	}
	return base
}

// mergeDiff applies the keys present in override; context_lines: 0 is a
// valid setting and is kept.
func mergeDiff(base DiffConfig, override fileDiffConfig) DiffConfig {
	if override.External != nil {
		v := *override.External
		base.External = &v
	}
	if override.Tool != nil && strings.TrimSpace(*override.Tool) != "" {
		base.Tool = strings.TrimSpace(*override.Tool)
	}
	if override.ContextLines != nil {
		base.ContextLines = *override.ContextLines
	}
	if override.MaxOutputBytes != nil && *override.MaxOutputBytes > 0 {
		base.MaxOutputBytes = *override.MaxOutputBytes
	}
	return base
}

func mergeLog(base LogConfig, override LogConfig) LogConfig {
	if strings.TrimSpace(override.Level) != "" {
		base.Level = override.Level
	}
	if strings.TrimSpace(override.File) != "" {
		base.File = override.File
	}
	if strings.TrimSpace(override.Format) != "" {
		base.Format = override.Format
	}
	return base
}

func normalize(cfg *Config) error {
	def := Default()
	if strings.TrimSpace(cfg.Provider.BaseURL) == "" {
		cfg.Provider.BaseURL = def.Provider.BaseURL
	}
	if strings.TrimSpace(cfg.Provider.Model) == "" {
		cfg.Provider.Model = def.Provider.Model
	}
	if cfg.Provider.TimeoutMS <= 0 {
		cfg.Provider.TimeoutMS = def.Provider.TimeoutMS
	}

	if cfg.Summary.MaxOutputTokens <= 0 {
		cfg.Summary.MaxOutputTokens = def.Summary.MaxOutputTokens
	}
	if cfg.Summary.Temperature < 0 || cfg.Summary.Temperature > 2 {
		cfg.Summary.Temperature = def.Summary.Temperature
	}
	if cfg.Summary.MaxInputTokens <= 0 {
		cfg.Summary.MaxInputTokens = def.Summary.MaxInputTokens
	}
	if strings.TrimSpace(cfg.Summary.Prompt) == "" {
		cfg.Summary.Prompt = def.Summary.Prompt
	}

	if cfg.Diff.External == nil {
		cfg.Diff.External = def.Diff.External
	}
	if strings.TrimSpace(cfg.Diff.Tool) == "" {
		cfg.Diff.Tool = def.Diff.Tool
	}
	if cfg.Diff.ContextLines < 0 {
		cfg.Diff.ContextLines = def.Diff.ContextLines
	}
	if cfg.Diff.MaxOutputBytes <= 0 {
		cfg.Diff.MaxOutputBytes = def.Diff.MaxOutputBytes
	}

	if _, _, err := ParseClock(cfg.Schedule.At); err != nil {
		return err
	}

	if cfg.Command.TimeoutMS <= 0 {
		cfg.Command.TimeoutMS = def.Command.TimeoutMS
	}
	if cfg.Command.OutputLimitBytes <= 0 {
		cfg.Command.OutputLimitBytes = def.Command.OutputLimitBytes
	}

	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	if cfg.Log.Format == "" {
		cfg.Log.Format = def.Log.Format
	}
	if cfg.Log.File != "" {
		logFile, err := expandPath(cfg.Log.File)
		if err != nil {
			return err
		}
		cfg.Log.File = logFile
	}

	storageDir, err := expandPath(cfg.Storage.BaseDir)
	if err != nil {
		return err
	}
	cfg.Storage.BaseDir = storageDir

	backupRoot, err := expandPath(cfg.BackupRoot)
	if err != nil {
		return err
	}
	cfg.BackupRoot = backupRoot

	changelogPath, err := expandPath(cfg.Changelog.Path)
	if err != nil {
		return err
	}
	cfg.Changelog.Path = changelogPath

	cfg.Projects = normalizePaths(cfg.Projects)
	return nil
}

func applyEnv(cfg Config) (Config, error) {
	if v := strings.TrimSpace(os.Getenv("DEVLOG_BASE_URL")); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("DEVLOG_MODEL")); v != "" {
		cfg.Provider.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("DEVLOG_API_KEY")); v != "" {
		cfg.Provider.APIKey = v
	} else if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("DEVLOG_BACKUP_ROOT")); v != "" {
		cfg.BackupRoot = v
	}
	if v := strings.TrimSpace(os.Getenv("DEVLOG_CHANGELOG")); v != "" {
		cfg.Changelog.Path = v
	}
	if v := strings.TrimSpace(os.Getenv("DEVLOG_PROJECTS")); v != "" {
		cfg.Projects = filepath.SplitList(v)
	}
	if v := strings.TrimSpace(os.Getenv("DEVLOG_LOG_LEVEL")); v != "" {
		cfg.Log.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("DEVLOG_MAX_OUTPUT_TOKENS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid DEVLOG_MAX_OUTPUT_TOKENS: %q", v)
		}
		cfg.Summary.MaxOutputTokens = n
	}

	return cfg, normalize(&cfg)
}

// Validate 检查运行一次每日任务所需的最少配置
// Validate checks the minimum configuration needed to run a daily cycle
func (c Config) Validate() error {
	if len(c.Projects) == 0 {
		return fmt.Errorf("%w: no projects configured", ErrInvalidConfig)
	}
	for _, p := range c.Projects {
		if !filepath.IsAbs(p) {
			return fmt.Errorf("%w: project path %q is not absolute", ErrInvalidConfig, p)
		}
	}
	if strings.TrimSpace(c.BackupRoot) == "" {
		return fmt.Errorf("%w: backup_root is empty", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.Changelog.Path) == "" {
		return fmt.Errorf("%w: changelog.path is empty", ErrInvalidConfig)
	}
	return nil
}

// ErrInvalidConfig marks configuration that cannot drive a cycle.
var ErrInvalidConfig = errors.New("invalid configuration")

// ParseClock parses an HH:MM time of day.
func ParseClock(s string) (hour, minute int, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0, nil
	}
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: schedule.at %q is not HH:MM", ErrInvalidConfig, s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%w: schedule.at %q has invalid hour", ErrInvalidConfig, s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: schedule.at %q has invalid minute", ErrInvalidConfig, s)
	}
	return hour, minute, nil
}

// DBPath returns the history database location under the storage dir.
func (c Config) DBPath() string {
	return filepath.Join(c.Storage.BaseDir, "devlog.db")
}

func normalizePaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	seen := map[string]struct{}{}
	for _, p := range paths {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" {
			continue
		}
		expanded, err := expandPath(trimmed)
		if err != nil {
			continue
		}
		if _, ok := seen[expanded]; ok {
			continue
		}
		seen[expanded] = struct{}{}
		out = append(out, expanded)
	}
	return out
}

func expandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		if path == "~" {
			path = home
		} else {
			path = filepath.Join(home, strings.TrimPrefix(path, "~/"))
		}
	}
	return filepath.Abs(path)
}

func stripJSONComments(data []byte) []byte {
	const (
		stateNormal = iota
		stateString
		stateLineComment
		stateBlockComment
	)

	state := stateNormal
	escaped := false
	out := bytes.Buffer{}

	for i := 0; i < len(data); i++ {
		c := data[i]
		next := byte(0)
		if i+1 < len(data) {
			next = data[i+1]
		}

		switch state {
		case stateNormal:
			if c == '"' {
				state = stateString
				out.WriteByte(c)
				continue
			}
			if c == '/' && next == '/' {
				state = stateLineComment
				i++
				continue
			}
			if c == '/' && next == '*' {
				state = stateBlockComment
				i++
				continue
			}
			out.WriteByte(c)
		case stateString:
			out.WriteByte(c)
			if escaped {
				escaped = false
				continue
			}
			if c == '\\' {
				escaped = true
				continue
			}
			if c == '"' {
				state = stateNormal
			}
		case stateLineComment:
			if c == '\n' {
				state = stateNormal
				out.WriteByte(c)
			}
		case stateBlockComment:
			if c == '*' && next == '/' {
				state = stateNormal
				i++
			}
		}
	}

	return out.Bytes()
}
