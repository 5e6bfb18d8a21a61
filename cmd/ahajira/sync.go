package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ahatojira/models"
	"ahatojira/services"
	"ahatojira/utils"
)

// テストモードで処理できる件数の範囲
const (
	minTestLimit = 1
	maxTestLimit = 5
)

var syncCmd = &cobra.Command{
	Use:   "sync [product-id]",
	Short: "プロダクトのすべてのアイデアをJIRAに同期します",
	Long: `Aha!のプロダクトのアイデアを1件ずつJIRAイシューとして作成します。

1件の失敗は記録され、残りのアイデアの処理は続行します。
完了後に件数のサマリーを表示し、sync.mapping_csv が設定されていれば
Aha!参照番号とJIRAキーの対応表をCSVに書き出します。`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSync,
}

var testCmd = &cobra.Command{
	Use:   "test [product-id]",
	Short: "少数のアイデアだけを同期して動作を確認します",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTest,
}

var listCmd = &cobra.Command{
	Use:   "list [product-id]",
	Short: "JIRAに書き込まずに対象のアイデアを一覧表示します",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runList,
}

var (
	syncDryRun bool
	syncLimit  int
	testDryRun bool
	testLimit  int
	listLimit  int
)

func init() {
	rootCmd.AddCommand(syncCmd, testCmd, listCmd)

	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "ペイロードを表示するだけでJIRAには書き込まない")
	syncCmd.Flags().IntVar(&syncLimit, "limit", 0, "処理するアイデアの最大数 (0は無制限)")

	testCmd.Flags().BoolVar(&testDryRun, "dry-run", false, "ペイロードを表示するだけでJIRAには書き込まない")
	testCmd.Flags().IntVar(&testLimit, "limit", 0, fmt.Sprintf("処理するアイデア数 (%d-%d, 既定は sync.test_limit)", minTestLimit, maxTestLimit))

	listCmd.Flags().IntVar(&listLimit, "limit", 0, "表示するアイデアの最大数 (0は無制限)")
}

func runSync(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	productID, err := a.productID(args)
	if err != nil {
		return err
	}

	return a.sync(cmd, services.SyncOptions{
		ProductID: productID,
		Limit:     syncLimit,
		DryRun:    syncDryRun || a.cfg.Sync.DryRun,
	})
}

func runTest(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	productID, err := a.productID(args)
	if err != nil {
		return err
	}

	limit := testLimit
	if limit == 0 {
		limit = a.cfg.Sync.TestLimit
	}
	if limit < minTestLimit || limit > maxTestLimit {
		return fmt.Errorf("テストモードの件数は %d から %d の範囲で指定してください: %d", minTestLimit, maxTestLimit, limit)
	}
	utils.LogInfo("テストモード: 最大 %d 件のアイデアを処理します", limit)

	return a.sync(cmd, services.SyncOptions{
		ProductID: productID,
		Limit:     limit,
		DryRun:    testDryRun || a.cfg.Sync.DryRun,
	})
}

func (a *app) sync(cmd *cobra.Command, opts services.SyncOptions) error {
	if err := a.runner.CheckAuth(cmd.Context()); err != nil {
		return err
	}

	_, err := a.runner.RunSync(cmd.Context(), opts)
	return err
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	productID, err := a.productID(args)
	if err != nil {
		return err
	}

	ideas, err := a.ideas.ListIdeas(cmd.Context(), productID, listLimit)
	if err != nil {
		return err
	}

	var mapping models.IssueMapping
	if path := a.cfg.Sync.MappingCSV; path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			mapping, err = services.LoadIssueMapping(path)
			if err != nil {
				utils.LogWarn("マッピングCSVを読み込めませんでした: %v", err)
			}
		}
	}

	services.PrintIdeaList(cmd.OutOrStdout(), ideas, mapping)
	return nil
}
