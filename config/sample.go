package config

import (
	"fmt"
	"os"
)

// SampleConfig は init-config で出力するサンプル設定です
const SampleConfig = `# Aha! → JIRA 同期ツール 設定ファイル
# 認証情報は .env または環境変数 (AHA_API_TOKEN, JIRA_API_TOKEN など) でも上書きできます。

[aha]
base_url = "https://your-company.aha.io"
api_token = "your-aha-api-token"
product_id = ""
per_page = 100
rate_limit = "1s"

[jira]
base_url = "https://your-company.atlassian.net"
username = "your-email@company.com"
api_token = "your-jira-api-token"
project_key = "PROJ"
issue_type = "Story"
default_status = "To Do"
initial_status = "To Do"
# update-issues で使うAha!参照番号のカスタムフィールド
aha_reference_field = "customfield_12345"
rate_limit = "500ms"

[sync]
label = "aha-import"
sync_comments = true
sync_attachments = false
add_remote_link = true
update_description = true
update_attachments = true
dry_run = false
test_limit = 3
mapping_csv = "aha_jira_mapping.csv"

[logging]
level = "info"
file = ""

[field_mappings]
description_custom_fields = []
xref_id_field = ""
xref_created_field = ""
xref_reporter_field = ""

[field_mappings.assignee_mappings]
"aha-user@company.com" = "jira-account-id"

[field_mappings.status_mappings]
"New" = "To Do"
"Under review" = "In Progress"
"Approved" = "To Do"
"Shipped" = "Done"

[field_mappings.priority]
enabled = true
high_threshold = 80.0
medium_threshold = 50.0

[field_mappings.priority.labels]
high = "High"
medium = "Medium"
low = "Low"

# Aha!のパス (ドット区切り、配列はインデックス) → JIRAフィールドID
[[field_mappings.custom_fields]]
source = "custom_fields.0.value"
target = "customfield_10001"

# update-issues でAha!からJIRAへ反映する追加フィールド
[[field_mappings.reverse_fields]]
source = "workflow_status.name"
target = "customfield_10002"
`

// WriteSample はサンプル設定をファイルに書き出します。既存ファイルは上書きしません。
func WriteSample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("ファイルが既に存在します: %s", path)
	}
	if err := os.WriteFile(path, []byte(SampleConfig), 0600); err != nil {
		return fmt.Errorf("サンプル設定書き込みエラー: %w", err)
	}
	return nil
}
