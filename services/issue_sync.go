package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ahatojira/api"
	"ahatojira/config"
	"ahatojira/models"
	"ahatojira/utils"
)

// ErrNoReference はイシューにAha!参照番号が設定されていないことを示します
var ErrNoReference = errors.New("Aha!参照がありません")

// syncedDescriptionPrefix はAha!から同期した説明文の先頭に付けます
const syncedDescriptionPrefix = "Synced from Aha:\n"

// IssueUpdater は既存のJIRAイシューを検索・更新する機能です
type IssueUpdater interface {
	AttachmentUploader
	SearchIssues(ctx context.Context, jql string, fields []string, limit int) ([]models.JiraIssue, error)
	UpdateIssue(ctx context.Context, issueKey string, fields map[string]interface{}) error
}

// IssueSyncOptions はイシュー更新の実行指定です
type IssueSyncOptions struct {
	Limit  int
	DryRun bool
}

// IssueSyncService はAha!参照を持つJIRAイシューをアイデアの内容で更新します
type IssueSyncService struct {
	config *config.Config
	source IdeaSource
	target IssueUpdater
}

// NewIssueSyncService は新しいイシュー更新サービスを作成します
func NewIssueSyncService(cfg *config.Config, source IdeaSource, target IssueUpdater) *IssueSyncService {
	return &IssueSyncService{
		config: cfg,
		source: source,
		target: target,
	}
}

// ListLinkedIssues はAha!参照フィールドが設定されたイシューを取得します
func (s *IssueSyncService) ListLinkedIssues(ctx context.Context, limit int) ([]models.JiraIssue, error) {
	refField := s.config.Jira.AhaReference
	if refField == "" {
		return nil, fmt.Errorf("%w: jira.aha_reference_field (JIRA_AHA_FIELD)", config.ErrMissingConfig)
	}

	jql := api.ReferenceJQL(s.config.Jira.ProjectKey, refField)
	fields := []string{"summary", "description", "attachment", refField}

	issues, err := s.target.SearchIssues(ctx, jql, fields, limit)
	if err != nil {
		return nil, err
	}
	utils.LogInfo("Aha!参照を持つJIRAイシューが %d 件見つかりました", len(issues))
	return issues, nil
}

// ReferenceOf はイシューのAha!参照番号を返します
func (s *IssueSyncService) ReferenceOf(issue models.JiraIssue) string {
	v, ok := issue.Field(s.config.Jira.AhaReference)
	if !ok {
		return ""
	}
	return v.Text()
}

// SyncIssues は対象イシューを1件ずつAha!のアイデアで更新します。
// イシュー検索が失敗した場合のみエラーを返します。
func (s *IssueSyncService) SyncIssues(ctx context.Context, opts IssueSyncOptions) (models.SyncResult, error) {
	result := models.SyncResult{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	defer utils.TrackTime(result.StartedAt, "イシュー更新")

	utils.LogInfo("JIRAイシューの更新を開始します (run=%s, project=%s)", result.RunID, s.config.Jira.ProjectKey)
	if opts.DryRun {
		utils.LogInfo("DRY RUN: JIRAへの書き込みは行いません")
	}

	issues, err := s.ListLinkedIssues(ctx, opts.Limit)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Fatal error: %v", err))
		result.FinishedAt = time.Now()
		return result, fmt.Errorf("イシュー検索エラー: %w", err)
	}
	result.Total = len(issues)

	for i, issue := range issues {
		utils.LogInfo("[%d/%d] イシュー %s を処理しています", i+1, len(issues), issue.Key)

		rec := s.syncIssue(ctx, issue, opts.DryRun)
		result.Records = append(result.Records, rec)

		if rec.Outcome == models.OutcomeFailure {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("Issue %s: %s", issue.Key, rec.Error))
			continue
		}
		result.Succeeded++
	}

	result.FinishedAt = time.Now()
	utils.LogInfo("更新完了 成功: %d/%d", result.Succeeded, result.Total)
	return result, nil
}

func (s *IssueSyncService) syncIssue(ctx context.Context, issue models.JiraIssue, dryRun bool) models.RecordResult {
	rec := models.RecordResult{
		TargetKey: issue.Key,
	}
	if summary, ok := issue.Field("summary"); ok {
		rec.Name = summary.Text()
	}
	fail := func(err error) models.RecordResult {
		utils.LogError("イシュー %s の処理エラー: %v", issue.Key, err)
		rec.Outcome = models.OutcomeFailure
		rec.Error = err.Error()
		return rec
	}

	ref := s.ReferenceOf(issue)
	if ref == "" {
		return fail(ErrNoReference)
	}
	rec.Reference = ref
	rec.SourceID = ref

	idea, err := s.source.GetIdea(ctx, ref)
	if err != nil {
		return fail(err)
	}
	if id := idea.Str("id"); id != "" {
		rec.SourceID = id
	}

	fields := s.buildUpdateFields(idea)

	var attachments []models.Attachment
	if s.config.Sync.UpdateAttachments {
		attachments, err = s.source.GetIdeaAttachments(ctx, ref)
		if err != nil {
			utils.LogWarn("アイデア %s の添付ファイルを取得できませんでした: %v", ref, err)
			attachments = nil
		}
	}

	if dryRun {
		utils.LogInfo("DRY RUN: %s を更新します fields=%v 添付ファイル %d 件", issue.Key, models.FieldNames(fields), len(attachments))
		rec.Outcome = models.OutcomeDryRun
		return rec
	}

	if len(fields) > 0 {
		if err := s.target.UpdateIssue(ctx, issue.Key, fields); err != nil {
			return fail(err)
		}
		utils.LogInfo("JIRAイシュー %s を更新しました", issue.Key)
	}
	rec.Outcome = models.OutcomeSuccess

	if len(attachments) > 0 {
		copied := copyAttachments(ctx, s.source, s.target, issue.Key, attachments)
		utils.LogInfo("イシュー %s に添付ファイルを %d/%d 件コピーしました", issue.Key, copied, len(attachments))
	}
	return rec
}

// buildUpdateFields はアイデアからイシュー更新用のフィールドを作ります
func (s *IssueSyncService) buildUpdateFields(idea models.Value) map[string]interface{} {
	fields := make(map[string]interface{})

	if s.config.Sync.UpdateDescription {
		if desc, ok := idea.Lookup("description"); ok && desc.Truthy() {
			fields["description"] = models.ADFDocument(syncedDescriptionPrefix + descriptionText(desc))
		}
	}

	for _, pair := range s.config.FieldMappings.ReverseFields {
		if value, ok := idea.Lookup(pair.Source); ok {
			fields[pair.Target] = value.Interface()
		}
	}
	return fields
}
