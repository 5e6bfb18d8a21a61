package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// DefaultConfigFile は設定ファイルの既定パスです
const DefaultConfigFile = "config.toml"

// ErrMissingConfig は必須設定が不足していることを示します
var ErrMissingConfig = errors.New("必須設定が不足しています")

// Config はアプリケーション全体の設定を保持します
type Config struct {
	Aha           AhaConfig     `toml:"aha"`
	Jira          JiraConfig    `toml:"jira"`
	Sync          SyncConfig    `toml:"sync"`
	Logging       LoggingConfig `toml:"logging"`
	FieldMappings FieldMappings `toml:"field_mappings"`
}

// AhaConfig はAha! APIの設定です
type AhaConfig struct {
	BaseURL   string        `toml:"base_url"`
	APIToken  string        `toml:"api_token"`
	ProductID string        `toml:"product_id"`
	PerPage   int           `toml:"per_page"`
	RateLimit time.Duration `toml:"rate_limit"`
}

// JiraConfig はJIRA APIの設定です
type JiraConfig struct {
	BaseURL       string        `toml:"base_url"`
	Username      string        `toml:"username"`
	APIToken      string        `toml:"api_token"`
	ProjectKey    string        `toml:"project_key"`
	IssueType     string        `toml:"issue_type"`
	DefaultStatus string        `toml:"default_status"`
	InitialStatus string        `toml:"initial_status"`
	AhaReference  string        `toml:"aha_reference_field"`
	RateLimit     time.Duration `toml:"rate_limit"`
}

// SyncConfig は同期処理の挙動を制御します
type SyncConfig struct {
	Label             string `toml:"label"`
	SyncComments      bool   `toml:"sync_comments"`
	SyncAttachments   bool   `toml:"sync_attachments"`
	AddRemoteLink     bool   `toml:"add_remote_link"`
	UpdateDescription bool   `toml:"update_description"`
	UpdateAttachments bool   `toml:"update_attachments"`
	DryRun            bool   `toml:"dry_run"`
	TestLimit         int    `toml:"test_limit"`
	MappingCSV        string `toml:"mapping_csv"`
}

// LoggingConfig はログ出力の設定です
type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// FieldPair はソースのパスとJIRAフィールドIDの組です
type FieldPair struct {
	Source string `toml:"source"`
	Target string `toml:"target"`
}

// PriorityMapping はスコアから優先度へのしきい値とラベルです
type PriorityMapping struct {
	Enabled         bool              `toml:"enabled"`
	HighThreshold   float64           `toml:"high_threshold"`
	MediumThreshold float64           `toml:"medium_threshold"`
	Labels          map[string]string `toml:"labels"`
}

// PriorityBands は優先度ラベルテーブルで使えるキーです
var PriorityBands = []string{"high", "medium", "low"}

// FieldMappings はAha!からJIRAへのフィールド対応表です
type FieldMappings struct {
	StatusMappings          map[string]string `toml:"status_mappings"`
	Priority                PriorityMapping   `toml:"priority"`
	AssigneeMappings        map[string]string `toml:"assignee_mappings"`
	CustomFields            []FieldPair       `toml:"custom_fields"`
	DescriptionCustomFields []string          `toml:"description_custom_fields"`
	XrefIDField             string            `toml:"xref_id_field"`
	XrefCreatedField        string            `toml:"xref_created_field"`
	XrefReporterField       string            `toml:"xref_reporter_field"`
	ReverseFields           []FieldPair       `toml:"reverse_fields"`
}

// DefaultConfig は既定値を設定したConfigを返します
func DefaultConfig() *Config {
	return &Config{
		Aha: AhaConfig{
			PerPage:   100,
			RateLimit: time.Second,
		},
		Jira: JiraConfig{
			IssueType:     "Story",
			DefaultStatus: "To Do",
			InitialStatus: "To Do",
			RateLimit:     500 * time.Millisecond,
		},
		Sync: SyncConfig{
			Label:             "aha-import",
			SyncComments:      true,
			SyncAttachments:   false,
			AddRemoteLink:     true,
			UpdateDescription: true,
			UpdateAttachments: true,
			TestLimit:         3,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		FieldMappings: FieldMappings{
			StatusMappings: map[string]string{},
			Priority: PriorityMapping{
				Enabled:         true,
				HighThreshold:   80,
				MediumThreshold: 50,
				Labels: map[string]string{
					"high":   "High",
					"medium": "Medium",
					"low":    "Low",
				},
			},
			AssigneeMappings: map[string]string{},
		},
	}
}

// LoadFromFile はTOMLファイルから設定を読み込みます。
// 認識できないキーがあればエラーになります。
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("設定ファイルが見つかりません: %s", path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("設定ファイル解析エラー: %w", err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, key := range undecoded {
			keys[i] = key.String()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("未知の設定キーがあります: %s", strings.Join(keys, ", "))
	}

	return cfg, nil
}

// LoadConfig は設定を次の優先順で読み込みます
// 1. 既定値
// 2. 設定ファイル (指定された場合)
// 3. 環境変数 (.env も読み込む)
func LoadConfig(path string) (*Config, error) {
	// .envファイルを読み込む
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileConfig
	}

	cfg.applyEnv()
	cfg.normalize()

	return cfg, nil
}

// applyEnv は環境変数で認証情報などを上書きします
func (c *Config) applyEnv() {
	c.Aha.BaseURL = getEnvWithDefault("AHA_BASE_URL", c.Aha.BaseURL)
	c.Aha.APIToken = getEnvWithDefault("AHA_API_TOKEN", c.Aha.APIToken)
	c.Aha.ProductID = getEnvWithDefault("AHA_PRODUCT_ID", c.Aha.ProductID)
	c.Jira.BaseURL = getEnvWithDefault("JIRA_URL", c.Jira.BaseURL)
	c.Jira.Username = getEnvWithDefault("JIRA_EMAIL", c.Jira.Username)
	c.Jira.APIToken = getEnvWithDefault("JIRA_API_TOKEN", c.Jira.APIToken)
	c.Jira.ProjectKey = getEnvWithDefault("JIRA_PROJECT_KEY", c.Jira.ProjectKey)
	c.Jira.AhaReference = getEnvWithDefault("JIRA_AHA_FIELD", c.Jira.AhaReference)
	c.Logging.Level = getEnvWithDefault("LOG_LEVEL", c.Logging.Level)
}

func (c *Config) normalize() {
	c.Aha.BaseURL = strings.TrimRight(strings.TrimSpace(c.Aha.BaseURL), "/")
	c.Jira.BaseURL = strings.TrimRight(strings.TrimSpace(c.Jira.BaseURL), "/")
	if c.FieldMappings.StatusMappings == nil {
		c.FieldMappings.StatusMappings = map[string]string{}
	}
	if c.FieldMappings.AssigneeMappings == nil {
		c.FieldMappings.AssigneeMappings = map[string]string{}
	}
	if c.FieldMappings.Priority.Labels == nil {
		c.FieldMappings.Priority.Labels = map[string]string{}
	}
}

// Validate は必須設定とマッピング表の整合性を確認します。
// 不足している設定はまとめて報告します。
func (c *Config) Validate() error {
	required := []setting{
		{"aha.base_url (AHA_BASE_URL)", c.Aha.BaseURL},
		{"aha.api_token (AHA_API_TOKEN)", c.Aha.APIToken},
		{"jira.base_url (JIRA_URL)", c.Jira.BaseURL},
		{"jira.username (JIRA_EMAIL)", c.Jira.Username},
		{"jira.api_token (JIRA_API_TOKEN)", c.Jira.APIToken},
		{"jira.project_key (JIRA_PROJECT_KEY)", c.Jira.ProjectKey},
		{"jira.issue_type", c.Jira.IssueType},
		{"jira.default_status", c.Jira.DefaultStatus},
	}

	if err := requireSettings(required); err != nil {
		return err
	}

	return c.FieldMappings.Validate()
}

// ValidateAha はAha!の読み取りだけに必要な設定を確認します
func (c *Config) ValidateAha() error {
	return requireSettings([]setting{
		{"aha.base_url (AHA_BASE_URL)", c.Aha.BaseURL},
		{"aha.api_token (AHA_API_TOKEN)", c.Aha.APIToken},
	})
}

type setting struct {
	key   string
	value string
}

func requireSettings(required []setting) error {
	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}
	return nil
}

// Validate はフィールドマッピング表を検証します
func (m *FieldMappings) Validate() error {
	p := m.Priority
	if p.MediumThreshold > p.HighThreshold {
		return fmt.Errorf("priority.medium_threshold (%v) が high_threshold (%v) を超えています", p.MediumThreshold, p.HighThreshold)
	}
	for band := range p.Labels {
		if !isPriorityBand(band) {
			return fmt.Errorf("priority.labels に不明なキーがあります: %s (high, medium, low のいずれか)", band)
		}
	}
	for i, pair := range m.CustomFields {
		if pair.Source == "" || pair.Target == "" {
			return fmt.Errorf("custom_fields[%d]: source と target は必須です", i)
		}
	}
	for i, pair := range m.ReverseFields {
		if pair.Source == "" || pair.Target == "" {
			return fmt.Errorf("reverse_fields[%d]: source と target は必須です", i)
		}
	}
	return nil
}

func isPriorityBand(band string) bool {
	for _, b := range PriorityBands {
		if b == band {
			return true
		}
	}
	return false
}

// デフォルト値付きで環境変数を取得
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
