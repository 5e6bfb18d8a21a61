package main

import (
	"github.com/spf13/cobra"

	"ahatojira/services"
)

var listIssuesCmd = &cobra.Command{
	Use:   "list-issues",
	Short: "Aha!参照を持つJIRAイシューを一覧表示します",
	Args:  cobra.NoArgs,
	RunE:  runListIssues,
}

var updateIssuesCmd = &cobra.Command{
	Use:   "update-issues",
	Short: "Aha!参照を持つJIRAイシューをアイデアの内容で更新します",
	Long: `jira.aha_reference_field に参照番号が入っているJIRAイシューを検索し、
対応するAha!のアイデアの説明文・reverse_fields の値・添付ファイルで更新します。`,
	Args: cobra.NoArgs,
	RunE: runUpdateIssues,
}

var (
	listIssuesLimit   int
	updateIssuesLimit int
	updateDryRun      bool
)

func init() {
	rootCmd.AddCommand(listIssuesCmd, updateIssuesCmd)

	listIssuesCmd.Flags().IntVar(&listIssuesLimit, "limit", 0, "表示するイシューの最大数 (0は無制限)")
	updateIssuesCmd.Flags().IntVar(&updateIssuesLimit, "limit", 0, "処理するイシューの最大数 (0は無制限)")
	updateIssuesCmd.Flags().BoolVar(&updateDryRun, "dry-run", false, "更新内容を表示するだけでJIRAには書き込まない")
}

func runListIssues(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	issues, err := a.issues.ListLinkedIssues(cmd.Context(), listIssuesLimit)
	if err != nil {
		return err
	}

	services.PrintIssueList(cmd.OutOrStdout(), issues, a.issues.ReferenceOf)
	return nil
}

func runUpdateIssues(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.runner.CheckAuth(cmd.Context()); err != nil {
		return err
	}

	_, err = a.runner.RunIssueUpdate(cmd.Context(), services.IssueSyncOptions{
		Limit:  updateIssuesLimit,
		DryRun: updateDryRun || a.cfg.Sync.DryRun,
	})
	return err
}
