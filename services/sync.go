package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"ahatojira/config"
	"ahatojira/models"
	"ahatojira/utils"
)

// IdeaSource はAha!からアイデアを読み出す機能です
type IdeaSource interface {
	ListIdeas(ctx context.Context, productID string, limit int) ([]models.IdeaSummary, error)
	GetIdea(ctx context.Context, ideaID string) (models.Value, error)
	GetIdeaComments(ctx context.Context, ideaID string) ([]models.Comment, error)
	GetIdeaAttachments(ctx context.Context, ideaID string) ([]models.Attachment, error)
	DownloadAttachment(ctx context.Context, downloadURL string) ([]byte, error)
}

// AttachmentUploader はJIRAイシューに添付ファイルを追加する機能です
type AttachmentUploader interface {
	UploadAttachment(ctx context.Context, issueKey, filename string, content []byte) error
}

// IssueTarget はJIRAにイシューを書き込む機能です
type IssueTarget interface {
	UserDirectory
	AttachmentUploader
	CreateIssue(ctx context.Context, fields map[string]interface{}) (string, error)
	UpdateStatus(ctx context.Context, issueKey, targetStatus string) error
	AddComment(ctx context.Context, issueKey, text string) error
	AddRemoteLink(ctx context.Context, issueKey, linkURL, title string) error
}

// SyncOptions は1回の同期実行の指定です
type SyncOptions struct {
	ProductID string
	Limit     int
	DryRun    bool
}

// SyncService はAha!のアイデアからJIRAイシューを作成します
type SyncService struct {
	config *config.Config
	source IdeaSource
	target IssueTarget
	mapper *FieldMapper
}

// NewSyncService は新しい同期サービスを作成します
func NewSyncService(cfg *config.Config, source IdeaSource, target IssueTarget) *SyncService {
	return &SyncService{
		config: cfg,
		source: source,
		target: target,
		mapper: NewFieldMapper(cfg, target),
	}
}

// ListIdeas は書き込みを行わずにアイデア一覧を取得します
func (s *SyncService) ListIdeas(ctx context.Context, productID string, limit int) ([]models.IdeaSummary, error) {
	return s.source.ListIdeas(ctx, productID, limit)
}

// SyncIdeas はプロダクトのアイデアを1件ずつJIRAに同期します。
// 1件の失敗は結果に記録され、残りのアイデアの処理は続行します。
// アイデア一覧が取得できない場合のみエラーを返します。
func (s *SyncService) SyncIdeas(ctx context.Context, opts SyncOptions) (models.SyncResult, error) {
	result := models.SyncResult{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	defer utils.TrackTime(result.StartedAt, "アイデア同期")

	utils.LogInfo("Aha!からJIRAへの同期を開始します (run=%s, product=%s)", result.RunID, opts.ProductID)
	if opts.DryRun {
		utils.LogInfo("DRY RUN: JIRAへの書き込みは行いません")
	}

	ideas, err := s.source.ListIdeas(ctx, opts.ProductID, opts.Limit)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Fatal error: %v", err))
		result.FinishedAt = time.Now()
		return result, fmt.Errorf("アイデア一覧取得エラー: %w", err)
	}
	result.Total = len(ideas)

	for i, summary := range ideas {
		utils.LogInfo("[%d/%d] アイデア %s を処理しています", i+1, len(ideas), summary.Label())

		rec := s.syncIdea(ctx, summary, opts.DryRun)
		result.Records = append(result.Records, rec)

		if rec.Outcome == models.OutcomeFailure {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("Idea %s: %s", rec.SourceID, rec.Error))
			continue
		}
		result.Succeeded++
	}

	result.FinishedAt = time.Now()
	utils.LogInfo("同期完了 成功: %d, 失敗: %d, 合計: %d", result.Succeeded, result.Failed, result.Total)
	return result, nil
}

func (s *SyncService) syncIdea(ctx context.Context, summary models.IdeaSummary, dryRun bool) models.RecordResult {
	rec := models.RecordResult{
		SourceID:  summary.ID,
		Reference: summary.Label(),
		Name:      summary.Name,
	}
	fail := func(err error) models.RecordResult {
		utils.LogError("アイデア %s の処理エラー: %v", summary.ID, err)
		rec.Outcome = models.OutcomeFailure
		rec.Error = err.Error()
		return rec
	}

	idea, err := s.source.GetIdea(ctx, summary.ID)
	if err != nil {
		return fail(err)
	}
	if ref := idea.Str("reference_num"); ref != "" {
		rec.Reference = ref
	}
	rec.Name = IdeaName(idea)

	var comments []models.Comment
	if s.config.Sync.SyncComments {
		comments, err = s.source.GetIdeaComments(ctx, summary.ID)
		if err != nil {
			utils.LogWarn("アイデア %s のコメントを取得できませんでした: %v", summary.ID, err)
			comments = nil
		}
	}

	var attachments []models.Attachment
	if s.config.Sync.SyncAttachments {
		attachments, err = s.source.GetIdeaAttachments(ctx, summary.ID)
		if err != nil {
			utils.LogWarn("アイデア %s の添付ファイルを取得できませんでした: %v", summary.ID, err)
			attachments = nil
		}
	}

	payload := s.mapper.BuildIssuePayload(ctx, idea)
	if err := payload.Validate(); err != nil {
		return fail(err)
	}

	if dryRun {
		logDryRunPayload(rec.Reference, payload)
		utils.LogInfo("DRY RUN: コメント %d 件, 添付ファイル %d 件", len(comments), len(attachments))
		rec.Outcome = models.OutcomeDryRun
		return rec
	}

	key, err := s.target.CreateIssue(ctx, payload.Fields)
	if err != nil {
		return fail(err)
	}
	rec.TargetKey = key
	rec.Outcome = models.OutcomeSuccess
	utils.LogInfo("アイデア '%s' からJIRAイシュー %s を作成しました", rec.Name, key)

	s.writeSecondary(ctx, key, idea, payload, comments, attachments)
	return rec
}

// writeSecondary はイシュー作成後の付随的な書き込みを行います。
// 失敗しても警告のみで、レコードの成功は変わりません。
func (s *SyncService) writeSecondary(ctx context.Context, key string, idea models.Value, payload *models.IssuePayload,
	comments []models.Comment, attachments []models.Attachment) {
	if err := s.target.UpdateStatus(ctx, key, payload.Status); err != nil {
		utils.LogWarn("イシュー %s のステータスを '%s' に更新できませんでした: %v", key, payload.Status, err)
	}

	if url := idea.Str("url"); url != "" && s.config.Sync.AddRemoteLink {
		title := fmt.Sprintf("Aha! Idea: %s", IdeaName(idea))
		if err := s.target.AddRemoteLink(ctx, key, url, title); err != nil {
			utils.LogWarn("イシュー %s にリンクを追加できませんでした: %v", key, err)
		}
	}

	if text := FormatComments(comments); text != "" {
		if err := s.target.AddComment(ctx, key, text); err != nil {
			utils.LogWarn("イシュー %s にコメントを追加できませんでした: %v", key, err)
		} else {
			utils.LogInfo("イシュー %s に %d 件のコメントを追加しました", key, len(comments))
		}
	}

	if len(attachments) > 0 {
		copied := copyAttachments(ctx, s.source, s.target, key, attachments)
		utils.LogInfo("イシュー %s に添付ファイルを %d/%d 件コピーしました", key, copied, len(attachments))
	}
}

// copyAttachments はAha!の添付ファイルをダウンロードしてJIRAイシューにアップロードします。
// コピーできた件数を返します。
func copyAttachments(ctx context.Context, source IdeaSource, uploader AttachmentUploader, key string, attachments []models.Attachment) int {
	copied := 0
	for _, att := range attachments {
		if att.DownloadURL == "" {
			continue
		}

		content, err := source.DownloadAttachment(ctx, att.DownloadURL)
		if err != nil {
			utils.LogWarn("添付ファイル %s をダウンロードできませんでした: %v", att.Name(), err)
			continue
		}
		if len(content) == 0 {
			continue
		}

		if err := uploader.UploadAttachment(ctx, key, att.Name(), content); err != nil {
			utils.LogWarn("添付ファイル %s を %s にアップロードできませんでした: %v", att.Name(), key, err)
			continue
		}
		copied++
	}
	return copied
}

func logDryRunPayload(label string, payload *models.IssuePayload) {
	data, err := json.Marshal(payload.Fields)
	if err != nil {
		utils.LogWarn("DRY RUN: %s のペイロードを表示できません: %v", label, err)
		return
	}
	utils.LogInfo("DRY RUN: %s を作成します (status=%s)", label, payload.Status)
	utils.LogDebug("DRY RUN: %s fields=%v %s", label, models.FieldNames(payload.Fields), data)
}

// FieldInventory はサンプルのアイデアから見つかったフィールドの一覧です
type FieldInventory struct {
	Sampled        int
	StandardFields []string
	CustomFields   []string
	Sample         map[string]interface{}
}

// InspectFields は数件のアイデアを調べ、マッピングに使えるフィールドを列挙します
func (s *SyncService) InspectFields(ctx context.Context, productID string, sample int) (*FieldInventory, error) {
	if sample <= 0 {
		sample = 5
	}

	ideas, err := s.source.ListIdeas(ctx, productID, sample)
	if err != nil {
		return nil, fmt.Errorf("アイデア一覧取得エラー: %w", err)
	}
	if len(ideas) == 0 {
		return nil, fmt.Errorf("プロダクト %s にアイデアがありません", productID)
	}

	standard := make(map[string]bool)
	custom := make(map[string]bool)
	inv := &FieldInventory{}

	for _, summary := range ideas {
		idea, err := s.source.GetIdea(ctx, summary.ID)
		if err != nil {
			utils.LogWarn("アイデア %s をスキップします: %v", summary.ID, err)
			continue
		}
		inv.Sampled++

		for _, key := range idea.Keys() {
			standard[key] = true
		}
		if fields, ok := idea.Lookup("custom_fields"); ok {
			items, _ := fields.AsList()
			for _, field := range items {
				if name := field.Str("name"); name != "" {
					custom[name] = true
				}
			}
		}
		if inv.Sample == nil {
			inv.Sample = sampleStructure(idea)
		}
	}

	if inv.Sampled == 0 {
		return nil, fmt.Errorf("アイデアの詳細を1件も取得できませんでした")
	}

	inv.StandardFields = sortedKeys(standard)
	inv.CustomFields = sortedKeys(custom)
	return inv, nil
}

// sampleStructure はアイデアの主要フィールドだけを抜き出した簡易表示を作ります
func sampleStructure(idea models.Value) map[string]interface{} {
	sample := map[string]interface{}{
		"id":            idea.Str("id"),
		"name":          idea.Str("name"),
		"reference_num": idea.Str("reference_num"),
		"url":           idea.Str("url"),
		"created_at":    idea.Str("created_at"),
		"created_by":    idea.Str("created_by.email"),
		"feature":       idea.Str("feature.reference_num"),
	}

	var customSample []map[string]string
	if fields, ok := idea.Lookup("custom_fields"); ok {
		items, _ := fields.AsList()
		for i, field := range items {
			if i == 3 {
				break
			}
			kind := models.KindNull.String()
			if v, ok := field.Resolve("value"); ok {
				kind = v.Kind().String()
			}
			customSample = append(customSample, map[string]string{"name": field.Str("name"), "type": kind})
		}
	}
	sample["custom_fields_sample"] = customSample
	return sample
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
