package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"ahatojira/config"
	"ahatojira/models"
	"ahatojira/utils"
)

// AuthChecker は認証情報を確認できるクライアントです
type AuthChecker interface {
	CheckAuth(ctx context.Context) error
}

// Runner は認証チェック、同期、レポート出力をまとめて実行します
type Runner struct {
	config *config.Config
	aha    AuthChecker
	jira   AuthChecker
	ideas  *SyncService
	issues *IssueSyncService
	out    io.Writer
}

// NewRunner は新しいRunnerを作成します
func NewRunner(cfg *config.Config, aha AuthChecker, jira AuthChecker, ideas *SyncService, issues *IssueSyncService, out io.Writer) *Runner {
	if out == nil {
		out = os.Stdout
	}
	return &Runner{
		config: cfg,
		aha:    aha,
		jira:   jira,
		ideas:  ideas,
		issues: issues,
		out:    out,
	}
}

// CheckAuth はAha!とJIRAの両方の認証を確認します
func (r *Runner) CheckAuth(ctx context.Context) error {
	if err := r.aha.CheckAuth(ctx); err != nil {
		return fmt.Errorf("Aha!認証エラー: %w", err)
	}
	utils.LogInfo("Aha!認証成功")

	if err := r.jira.CheckAuth(ctx); err != nil {
		return fmt.Errorf("JIRA認証エラー: %w", err)
	}
	utils.LogInfo("JIRA認証成功")
	return nil
}

// RunSync はアイデアの同期を実行し、マッピングCSVとサマリーを出力します
func (r *Runner) RunSync(ctx context.Context, opts SyncOptions) (models.SyncResult, error) {
	startTime := time.Now()
	defer utils.TrackTime(startTime, "同期処理全体")

	if opts.ProductID == "" {
		return models.SyncResult{}, fmt.Errorf("%w: aha.product_id (AHA_PRODUCT_ID)", config.ErrMissingConfig)
	}

	result, err := r.ideas.SyncIdeas(ctx, opts)
	r.report("SYNC SUMMARY", result, opts.DryRun)
	return result, err
}

// RunIssueUpdate はAha!参照を持つJIRAイシューの更新を実行します
func (r *Runner) RunIssueUpdate(ctx context.Context, opts IssueSyncOptions) (models.SyncResult, error) {
	startTime := time.Now()
	defer utils.TrackTime(startTime, "イシュー更新処理全体")

	result, err := r.issues.SyncIssues(ctx, opts)
	r.report("UPDATE SUMMARY", result, opts.DryRun)
	return result, err
}

// report はサマリーを表示し、ドライランでなければマッピングCSVを書き出します。
// ドライランでは既存のCSVを残します。
func (r *Runner) report(title string, result models.SyncResult, dryRun bool) {
	if path := r.config.Sync.MappingCSV; path != "" && len(result.Records) > 0 && !dryRun {
		if err := WriteMappingCSV(path, result); err != nil {
			utils.LogWarn("マッピングCSVを書き込めませんでした: %v", err)
		}
	}
	PrintSummary(r.out, title, result)
}
