package services

import (
	"context"
	"fmt"
	"strings"

	"ahatojira/config"
	"ahatojira/models"
	"ahatojira/utils"
)

const (
	defaultAhaStatus = "New"
	untitledIdea     = "Untitled Idea"
)

// UserDirectory はメールアドレスからJIRAアカウントIDを引く機能です
type UserDirectory interface {
	FindUserByEmail(ctx context.Context, email string) (string, error)
}

// FieldMapper はAha!のアイデアをJIRAイシューのペイロードに変換します
type FieldMapper struct {
	config    *config.Config
	directory UserDirectory
}

// NewFieldMapper は新しいフィールドマッパーを作成します。
// directory が nil の場合は対応表にないユーザーを割り当てません。
func NewFieldMapper(cfg *config.Config, directory UserDirectory) *FieldMapper {
	return &FieldMapper{
		config:    cfg,
		directory: directory,
	}
}

// MapStatus はAha!のワークフローステータスをJIRAのステータスに変換します
func (m *FieldMapper) MapStatus(idea models.Value) string {
	ahaStatus := idea.Str("workflow_status.name")
	if ahaStatus == "" {
		ahaStatus = defaultAhaStatus
	}

	if status, ok := m.config.FieldMappings.StatusMappings[ahaStatus]; ok {
		return status
	}
	return m.config.Jira.DefaultStatus
}

// PriorityBand はスコアをしきい値で "high" / "medium" / "low" に分類します
func PriorityBand(score float64, p config.PriorityMapping) string {
	switch {
	case score >= p.HighThreshold:
		return "high"
	case score >= p.MediumThreshold:
		return "medium"
	default:
		return "low"
	}
}

var defaultPriorityLabels = map[string]string{
	"high":   "High",
	"medium": "Medium",
	"low":    "Low",
}

// MapPriority はアイデアのスコアからJIRAの優先度名を返します。
// スコアがない、または数値でない場合は0として扱います。
func (m *FieldMapper) MapPriority(idea models.Value) string {
	var score float64
	if v, ok := idea.Lookup("score"); ok {
		if n, isNumber := v.AsNumber(); isNumber {
			score = n
		}
	}

	p := m.config.FieldMappings.Priority
	band := PriorityBand(score, p)
	if label, ok := p.Labels[band]; ok && label != "" {
		return label
	}
	return defaultPriorityLabels[band]
}

// MapAssignee はアイデアの担当者をJIRAアカウントIDに変換します。
// 見つからない場合は空文字列を返し、担当者は設定されません。
func (m *FieldMapper) MapAssignee(ctx context.Context, idea models.Value) string {
	email := idea.Str("assigned_to.email")
	if email == "" {
		return ""
	}

	if accountID, ok := m.config.FieldMappings.AssigneeMappings[email]; ok {
		return accountID
	}

	if m.directory == nil {
		return ""
	}
	accountID, err := m.directory.FindUserByEmail(ctx, email)
	if err != nil {
		utils.LogWarn("JIRAユーザーが見つかりませんでした %s: %v", email, err)
		return ""
	}
	return accountID
}

// FormatDescription はアイデアの詳細をJIRAの説明文に整形します
func (m *FieldMapper) FormatDescription(idea models.Value) string {
	var parts []string

	if desc, ok := idea.Lookup("description"); ok && desc.Truthy() {
		parts = append(parts, "*Original Description:*", descriptionText(desc), "")
	}

	if url := idea.Str("url"); url != "" {
		parts = append(parts, fmt.Sprintf("*Aha! Link:* %s", url), "")
	}

	if score, ok := idea.Lookup("score"); ok && score.Truthy() {
		parts = append(parts, fmt.Sprintf("*Score:* %s", score.Text()))
	}

	if categories, ok := idea.Lookup("categories"); ok && categories.Truthy() {
		parts = append(parts, fmt.Sprintf("*Categories:* %s", strings.Join(categoryNames(categories), ", ")))
	}

	selected := m.config.FieldMappings.DescriptionCustomFields
	if customFields, ok := idea.Lookup("custom_fields"); ok && customFields.Truthy() && len(selected) > 0 {
		parts = append(parts, "", "*Custom Fields:*")
		items, _ := customFields.AsList()
		for _, field := range items {
			name := field.Str("name")
			if name == "" {
				name = "Unknown Field"
			}
			if !contains(selected, name) {
				continue
			}
			value := "N/A"
			if v, ok := field.Lookup("value"); ok {
				value = v.Text()
			}
			parts = append(parts, fmt.Sprintf("• *%s:* %s", name, value))
		}
	}

	if portal, ok := idea.Lookup("portal"); ok && portal.Truthy() {
		parts = append(parts, "", "*Portal Information:*",
			fmt.Sprintf("• *Portal:* %s", withDefault(portal.Str("name"), "N/A")))
		if url := portal.Str("url"); url != "" {
			parts = append(parts, fmt.Sprintf("• *Portal URL:* %s", url))
		}
	}

	if createdBy, ok := idea.Lookup("created_by"); ok && createdBy.Truthy() {
		parts = append(parts, "", fmt.Sprintf("*Created by:* %s (%s)",
			withDefault(createdBy.Str("name"), "Unknown"),
			withDefault(createdBy.Str("email"), "N/A")))
	}

	if createdAt := idea.Str("created_at"); createdAt != "" {
		parts = append(parts, fmt.Sprintf("*Created:* %s", createdAt))
	}

	if feature, ok := idea.Lookup("feature"); ok && feature.Truthy() {
		parts = append(parts, "", "*Related Feature:*")
		if ref := feature.Str("reference_num"); ref != "" {
			parts = append(parts, fmt.Sprintf("• *Feature Reference:* %s", ref))
		}
		if url := feature.Str("url"); url != "" {
			parts = append(parts, fmt.Sprintf("• *Feature URL:* %s", url))
		}
		if name := feature.Str("name"); name != "" {
			parts = append(parts, fmt.Sprintf("• *Feature Name:* %s", name))
		}
	}

	return strings.Join(parts, "\n")
}

// BuildIssuePayload はアイデアからJIRAイシュー作成用のペイロードを組み立てます。
// 値がない、またはnullのフィールドは設定しません。
func (m *FieldMapper) BuildIssuePayload(ctx context.Context, idea models.Value) *models.IssuePayload {
	payload := models.NewIssuePayload()
	fields := payload.Fields

	fields["project"] = map[string]string{"key": m.config.Jira.ProjectKey}
	fields["summary"] = IdeaName(idea)
	fields["description"] = models.ADFDocument(m.FormatDescription(idea))
	fields["issuetype"] = map[string]string{"name": m.config.Jira.IssueType}

	if m.config.FieldMappings.Priority.Enabled {
		fields["priority"] = map[string]string{"name": m.MapPriority(idea)}
	}

	if accountID := m.MapAssignee(ctx, idea); accountID != "" {
		fields["assignee"] = map[string]string{"accountId": accountID}
	}

	var labels []string
	if categories, ok := idea.Lookup("categories"); ok {
		for _, name := range categoryNames(categories) {
			labels = append(labels, strings.ReplaceAll(name, " ", "_"))
		}
	}
	if m.config.Sync.Label != "" {
		labels = append(labels, m.config.Sync.Label)
	}
	if len(labels) > 0 {
		fields["labels"] = labels
	}

	fm := m.config.FieldMappings
	if ref := idea.Str("reference_num"); ref != "" && fm.XrefIDField != "" {
		fields[fm.XrefIDField] = ref
	}
	if createdAt := idea.Str("created_at"); createdAt != "" && fm.XrefCreatedField != "" {
		// 日付部分のみ
		if date, _, found := strings.Cut(createdAt, "T"); found {
			createdAt = date
		}
		fields[fm.XrefCreatedField] = createdAt
	}
	if email := idea.Str("created_by.email"); email != "" && fm.XrefReporterField != "" {
		fields[fm.XrefReporterField] = email
	}

	for _, pair := range fm.CustomFields {
		value, ok := idea.Lookup(pair.Source)
		if !ok {
			continue
		}
		fields[pair.Target] = value.Interface()
	}

	payload.Status = m.MapStatus(idea)
	return payload
}

// IdeaName はアイデア名を返します。名前がない場合は "Untitled Idea" です。
func IdeaName(idea models.Value) string {
	return withDefault(idea.Str("name"), untitledIdea)
}

func categoryNames(categories models.Value) []string {
	items, _ := categories.AsList()
	names := make([]string, 0, len(items))
	for _, cat := range items {
		names = append(names, cat.Str("name"))
	}
	return names
}

// descriptionText はAha!の説明フィールドを文字列にします。
// {"body": "..."} 形式の場合は本文を使います。
func descriptionText(desc models.Value) string {
	if body := desc.Str("body"); body != "" {
		return body
	}
	return desc.Text()
}

func withDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
