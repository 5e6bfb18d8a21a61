package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ahatojira/config"
	"ahatojira/services"
	"ahatojira/utils"
)

var initConfigCmd = &cobra.Command{
	Use:   "init-config",
	Short: "サンプル設定ファイルを作成します",
	Args:  cobra.NoArgs,
	RunE:  runInitConfig,
}

var inspectFieldsCmd = &cobra.Command{
	Use:   "inspect-fields [product-id]",
	Short: "アイデアを数件調べてマッピングに使えるフィールドを表示します",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInspectFields,
}

var authCheckCmd = &cobra.Command{
	Use:   "auth-check",
	Short: "Aha!とJIRAの認証情報を確認します",
	Long: `Aha!とJIRAのAPI認証情報が正しく設定されているかを確認します。
認証が成功すれば、他のコマンドも正常に動作する可能性が高いです。`,
	Args: cobra.NoArgs,
	RunE: runAuthCheck,
}

var (
	initConfigOutput string
	inspectSample    int
)

func init() {
	rootCmd.AddCommand(initConfigCmd, inspectFieldsCmd, authCheckCmd)

	initConfigCmd.Flags().StringVarP(&initConfigOutput, "output", "o", "config.sample.toml", "出力先のパス")
	inspectFieldsCmd.Flags().IntVar(&inspectSample, "sample", 5, "調べるアイデアの数")
}

func runInitConfig(cmd *cobra.Command, _ []string) error {
	if err := config.WriteSample(initConfigOutput); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "サンプル設定を作成しました: %s\n", initConfigOutput)
	fmt.Fprintf(cmd.OutOrStdout(), "%s にコピーして実際の値を設定してください\n", config.DefaultConfigFile)
	return nil
}

func runInspectFields(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	productID, err := a.productID(args)
	if err != nil {
		return err
	}

	utils.LogInfo("フィールドを調べるためにアイデアを取得しています...")
	inv, err := a.ideas.InspectFields(cmd.Context(), productID, inspectSample)
	if err != nil {
		return err
	}
	return services.PrintFieldInventory(cmd.OutOrStdout(), inv)
}

func runAuthCheck(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.runner.CheckAuth(cmd.Context()); err != nil {
		utils.LogError("認証情報を確認してください。")
		return err
	}

	utils.LogInfo("認証成功！ Aha!: %s, JIRA: %s", a.cfg.Aha.BaseURL, a.cfg.Jira.BaseURL)
	return nil
}
