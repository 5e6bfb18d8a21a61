package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ahatojira/api"
	"ahatojira/config"
	"ahatojira/services"
	"ahatojira/utils"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "ahajira",
	Short: "Aha!のアイデアをJIRAイシューに同期するツール",
	Long: `Aha! → JIRA 同期ツール

Aha!のプロダクトのアイデアを設定したフィールドマッピングでJIRAイシューに変換し、
コメント・リンク・添付ファイルも合わせて登録します。
既存のJIRAイシューをAha!のアイデアの内容で更新することもできます。

環境変数 (.env も読み込みます):
  AHA_BASE_URL        Aha! URL (例: https://yourcompany.aha.io)
  AHA_API_TOKEN       Aha! APIトークン
  AHA_PRODUCT_ID      Aha! プロダクトID
  JIRA_URL            JIRA URL
  JIRA_EMAIL          JIRA APIアカウントのメールアドレス
  JIRA_API_TOKEN      JIRA APIトークン
  JIRA_PROJECT_KEY    JIRAプロジェクトキー
  JIRA_AHA_FIELD      Aha!参照番号を保持するJIRAフィールドID
  LOG_LEVEL           ログレベル (debug, info, warn, error)`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigFile, "設定ファイルのパス")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "ログレベル (debug, info, warn, error)")
}

// app はコマンド実行に必要なクライアントとサービスをまとめたものです
type app struct {
	cfg     *config.Config
	ideas   *services.SyncService
	issues  *services.IssueSyncService
	runner  *services.Runner
	logFile *os.File
}

func (a *app) Close() {
	if a.logFile != nil {
		a.logFile.Close()
	}
}

// loadConfig は設定を読み込みログを設定します。
// --config が明示されず既定のファイルもない場合は環境変数のみを使います。
func loadConfig(cmd *cobra.Command) (*config.Config, *os.File, error) {
	path := configPath
	if flag := cmd.Flag("config"); flag != nil && !flag.Changed {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			path = ""
		}
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, nil, fmt.Errorf("設定の読み込みに失敗しました: %w", err)
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := utils.SetLevel(cfg.Logging.Level); err != nil {
		return nil, nil, err
	}

	var logFile *os.File
	if cfg.Logging.File != "" {
		logFile, err = utils.OpenLogFile(cfg.Logging.File)
		if err != nil {
			return nil, nil, err
		}
	}

	if path != "" {
		utils.LogDebug("設定ファイル %s を読み込みました", path)
	}
	return cfg, logFile, nil
}

// newApp は設定を検証しAPIクライアントとサービスを組み立てます。
// ahaOnly の場合はAha!の設定のみを必須とします。
func newApp(cmd *cobra.Command, ahaOnly bool) (*app, error) {
	cfg, logFile, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	if ahaOnly {
		err = cfg.ValidateAha()
	} else {
		err = cfg.Validate()
	}
	if err != nil {
		if logFile != nil {
			logFile.Close()
		}
		return nil, err
	}

	ahaClient := api.NewAhaClient(cmd.Context(), cfg, api.NewThrottle(cfg.Aha.RateLimit))
	jiraClient := api.NewJiraClient(cfg, api.NewThrottle(cfg.Jira.RateLimit))

	ideas := services.NewSyncService(cfg, ahaClient, jiraClient)
	issues := services.NewIssueSyncService(cfg, ahaClient, jiraClient)

	return &app{
		cfg:     cfg,
		ideas:   ideas,
		issues:  issues,
		runner:  services.NewRunner(cfg, ahaClient, jiraClient, ideas, issues, cmd.OutOrStdout()),
		logFile: logFile,
	}, nil
}

// productID は引数、設定の順でプロダクトIDを決めます
func (a *app) productID(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if a.cfg.Aha.ProductID != "" {
		return a.cfg.Aha.ProductID, nil
	}
	return "", fmt.Errorf("%w: プロダクトIDを引数か aha.product_id (AHA_PRODUCT_ID) で指定してください", config.ErrMissingConfig)
}
