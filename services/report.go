package services

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"ahatojira/models"
	"ahatojira/utils"
)

const (
	keyError  = "ERROR"
	keyDryRun = "DRY RUN"
)

// mappingHeaders はマッピングCSVの列と順序です
var mappingHeaders = []string{
	"Aha Reference", "Aha ID", "Name", "JIRA Issue Key", "Outcome", "Error",
}

// WriteMappingCSV は同期結果をAha!参照番号とJIRAキーの対応表としてCSVに書き出します
func WriteMappingCSV(path string, result models.SyncResult) error {
	utils.LogInfo("マッピングCSVファイル '%s' を作成します", path)

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("CSVファイル作成エラー: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(mappingHeaders); err != nil {
		return fmt.Errorf("ヘッダー書き込みエラー: %w", err)
	}

	for _, rec := range result.Records {
		key := rec.TargetKey
		switch rec.Outcome {
		case models.OutcomeFailure:
			key = keyError
		case models.OutcomeDryRun:
			key = keyDryRun
		}

		row := []string{rec.Reference, rec.SourceID, rec.Name, key, string(rec.Outcome), rec.Error}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("行書き込みエラー: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("CSV書き込み完了エラー: %w", err)
	}

	utils.LogInfo("CSV書き込み完了: %d 行", len(result.Records))
	return nil
}

// LoadIssueMapping はマッピングCSVからAha!参照番号 → JIRAキーを読み込みます
func LoadIssueMapping(path string) (models.IssueMapping, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("マッピングCSVオープンエラー: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("マッピングCSV読み込みエラー: %w", err)
	}

	if len(records) < 1 {
		return nil, fmt.Errorf("マッピングデータが不足しています")
	}

	headers := records[0]
	refIndex, keyIndex := -1, -1
	for i, header := range headers {
		switch header {
		case "Aha Reference":
			refIndex = i
		case "JIRA Issue Key":
			keyIndex = i
		}
	}

	if refIndex == -1 || keyIndex == -1 {
		return nil, fmt.Errorf("マッピングに必要なカラムが見つかりません")
	}

	mapping := make(models.IssueMapping)
	for _, record := range records[1:] {
		if len(record) <= max(refIndex, keyIndex) {
			continue
		}

		ref := record[refIndex]
		key := record[keyIndex]
		if ref != "" && key != "" && key != keyError && key != keyDryRun {
			mapping[ref] = key
		}
	}

	utils.LogInfo("イシューマッピングをロードしました: %d 件", len(mapping))
	return mapping, nil
}

// PrintSummary は実行結果のサマリーを出力します
func PrintSummary(w io.Writer, title string, result models.SyncResult) {
	line := strings.Repeat("=", 50)
	fmt.Fprintln(w)
	fmt.Fprintln(w, line)
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "Run ID: %s\n", result.RunID)
	fmt.Fprintf(w, "Total processed: %d\n", result.Total)
	fmt.Fprintf(w, "Succeeded: %d\n", result.Succeeded)
	fmt.Fprintf(w, "Failed: %d\n", result.Failed)
	if d := result.Duration(); d > 0 {
		fmt.Fprintf(w, "Duration: %s\n", d.Round(time.Millisecond))
	}

	if len(result.Errors) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Errors encountered:")
		for _, msg := range result.Errors {
			fmt.Fprintf(w, "  - %s\n", msg)
		}
	}
}

// PrintIdeaList はアイデア一覧を出力します。mapping にあるアイデアはJIRAキーも表示します。
func PrintIdeaList(w io.Writer, ideas []models.IdeaSummary, mapping models.IssueMapping) {
	if len(ideas) == 0 {
		fmt.Fprintln(w, "No ideas found.")
		return
	}

	fmt.Fprintf(w, "Found %d ideas:\n", len(ideas))
	for i, idea := range ideas {
		line := fmt.Sprintf("  %d. %s: %s", i+1, idea.Label(), withDefault(idea.Name, untitledIdea))
		if key, ok := mapping[idea.Label()]; ok {
			line += fmt.Sprintf(" (JIRA: %s)", key)
		}
		fmt.Fprintln(w, line)
	}
}

// PrintIssueList はAha!参照を持つイシュー一覧を出力します
func PrintIssueList(w io.Writer, issues []models.JiraIssue, referenceOf func(models.JiraIssue) string) {
	if len(issues) == 0 {
		fmt.Fprintln(w, "No issues found with Aha references.")
		return
	}

	fmt.Fprintf(w, "Found %d issues with Aha references:\n", len(issues))
	for i, issue := range issues {
		summary := "No summary"
		if v, ok := issue.Field("summary"); ok {
			summary = v.Text()
		}
		fmt.Fprintf(w, "  %d. %s: %s (Aha: %s)\n", i+1, issue.Key, summary, withDefault(referenceOf(issue), "N/A"))
	}
}

// PrintFieldInventory はフィールド調査の結果と設定例を出力します
func PrintFieldInventory(w io.Writer, inv *FieldInventory) error {
	fmt.Fprintf(w, "Analyzed %d ideas.\n\n", inv.Sampled)

	fmt.Fprintln(w, "=== AVAILABLE STANDARD FIELDS ===")
	for _, field := range inv.StandardFields {
		fmt.Fprintf(w, "  - %s\n", field)
	}

	fmt.Fprintf(w, "\n=== AVAILABLE CUSTOM FIELDS (%d found) ===\n", len(inv.CustomFields))
	for _, field := range inv.CustomFields {
		fmt.Fprintf(w, "  - %s\n", field)
	}

	examples := inv.CustomFields
	if len(examples) > 3 {
		examples = examples[:3]
	}

	fmt.Fprintln(w, "\n=== CONFIGURATION EXAMPLES ===")
	fmt.Fprintln(w, "Add these to your config.toml under [field_mappings]:")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "description_custom_fields = [")
	for _, field := range examples {
		fmt.Fprintf(w, "  %q,\n", field)
	}
	fmt.Fprintln(w, "]")
	for i, field := range examples {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "# %s (インデックスはアイデアごとに確認してください)\n", field)
		fmt.Fprintln(w, "[[field_mappings.custom_fields]]")
		fmt.Fprintf(w, "source = \"custom_fields.%d.value\"\n", i)
		fmt.Fprintln(w, "target = \"customfield_10XXX\"")
	}

	if inv.Sample != nil {
		fmt.Fprintln(w, "\n=== SAMPLE IDEA STRUCTURE ===")
		data, err := json.MarshalIndent(inv.Sample, "", "  ")
		if err != nil {
			return fmt.Errorf("サンプル表示エラー: %w", err)
		}
		fmt.Fprintln(w, string(data))
	}
	return nil
}
