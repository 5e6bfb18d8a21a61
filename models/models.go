package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// IdeaSummary はAha!のアイデア一覧の1件を表します
type IdeaSummary struct {
	ID           string `json:"id"`
	ReferenceNum string `json:"reference_num"`
	Name         string `json:"name"`
	CreatedAt    string `json:"created_at"`
	URL          string `json:"url"`
}

// Label はログやレポートで使うアイデアの表示名です
func (i IdeaSummary) Label() string {
	if i.ReferenceNum != "" {
		return i.ReferenceNum
	}
	return i.ID
}

// CommentAuthor はコメントの投稿者です
type CommentAuthor struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Comment はAha!のアイデアに付いたコメントです
type Comment struct {
	ID        Value         `json:"id"`
	Body      string        `json:"body"`
	CreatedAt string        `json:"created_at"`
	CreatedBy CommentAuthor `json:"created_by"`
}

// Attachment はAha!のアイデアの添付ファイルのメタデータです
type Attachment struct {
	ID          Value  `json:"id"`
	Filename    string `json:"filename"`
	DownloadURL string `json:"download_url"`
	ContentType string `json:"content_type"`
	FileSize    int64  `json:"file_size"`
}

// Name はアップロード時に使うファイル名を返します
func (a Attachment) Name() string {
	if a.Filename != "" {
		return a.Filename
	}
	return fmt.Sprintf("aha_attachment_%s", a.ID.Text())
}

// JiraIssue はJIRA検索APIから返されるイシューです
type JiraIssue struct {
	Key    string           `json:"key"`
	Fields map[string]Value `json:"fields"`
}

// Field はフィールドIDに対応する値を返します
func (i JiraIssue) Field(id string) (Value, bool) {
	v, ok := i.Fields[id]
	if !ok || v.IsNull() {
		return Value{}, false
	}
	return v, true
}

// ErrMissingRequiredField は必須フィールドが揃っていないペイロードを示します
var ErrMissingRequiredField = errors.New("必須フィールドがありません")

// RequiredIssueFields はイシュー作成に最低限必要なフィールドです
var RequiredIssueFields = []string{"project", "summary", "issuetype"}

// IssuePayload はJIRAイシュー作成用のペイロードです。
// Status は作成後にトランジションで適用します。
type IssuePayload struct {
	Fields map[string]interface{}
	Status string
}

// NewIssuePayload は空のペイロードを作成します
func NewIssuePayload() *IssuePayload {
	return &IssuePayload{Fields: make(map[string]interface{})}
}

// Validate は必須フィールドが揃っているかを確認します
func (p *IssuePayload) Validate() error {
	var missing []string
	for _, field := range RequiredIssueFields {
		if isBlank(p.Fields[field]) {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingRequiredField, strings.Join(missing, ", "))
	}
	return nil
}

// isBlank は値が空かどうかを判定します。
// {"key": ""} のようにすべての値が空のオブジェクトも空とみなします。
func isBlank(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case map[string]string:
		for _, inner := range v {
			if !isBlank(inner) {
				return false
			}
		}
		return true
	case map[string]interface{}:
		for _, inner := range v {
			if !isBlank(inner) {
				return false
			}
		}
		return true
	}
	return false
}

// FieldNames はフィールドIDを昇順で返します
func FieldNames(fields map[string]interface{}) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ADFDocument はテキストを1段落のAtlassian Document Formatに包みます
func ADFDocument(text string) map[string]interface{} {
	return map[string]interface{}{
		"type":    "doc",
		"version": 1,
		"content": []interface{}{
			map[string]interface{}{
				"type": "paragraph",
				"content": []interface{}{
					map[string]interface{}{
						"type": "text",
						"text": text,
					},
				},
			},
		},
	}
}

// Outcome は1レコードの処理結果です
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeDryRun  Outcome = "dry-run"
)

// RecordResult は1レコード分の処理記録です
type RecordResult struct {
	SourceID  string
	Reference string
	Name      string
	TargetKey string
	Outcome   Outcome
	Error     string
}

// SyncResult は1回の同期実行の結果です
type SyncResult struct {
	RunID      string
	Total      int
	Succeeded  int
	Failed     int
	Errors     []string
	Records    []RecordResult
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration は実行時間を返します
func (r SyncResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// IssueMapping はAha!参照番号からJIRAキーへのマッピングです
type IssueMapping map[string]string

// Mapping は成功したレコードの参照番号→イシューキーを返します
func (r SyncResult) Mapping() IssueMapping {
	mapping := make(IssueMapping)
	for _, rec := range r.Records {
		if rec.Outcome == OutcomeSuccess && rec.TargetKey != "" {
			mapping[rec.Reference] = rec.TargetKey
		}
	}
	return mapping
}
