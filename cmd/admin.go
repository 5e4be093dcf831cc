package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shouni/gemini-creative-gateway/internal/builder"
	"github.com/shouni/gemini-creative-gateway/internal/storage"
	"github.com/shouni/gemini-creative-gateway/pkg/prompts"
)

var (
	userID       string
	promptOpts   string
	logsLimit    int
	clearLogs    bool
	webhookClear bool
)

// verifyKeyCmd は API キーが使えるかを確認するのだ。
var verifyKeyCmd = &cobra.Command{
	Use:   "verify-key [key]",
	Short: "API キーが有効か確認するのだ。未指定なら GEMINI_API_KEY を使います。",
	Args:  cobra.MaximumNArgs(1),
	RunE:  verifyKeyCommand,
}

// webhookCmd はユーザーの Webhook を設定・確認するのだ。
var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Webhook の設定と疎通確認を行うのだ。",
}

var webhookSetCmd = &cobra.Command{
	Use:   "set [url]",
	Short: "Webhook URL を保存するのだ。--clear で解除します。",
	Args:  cobra.MaximumNArgs(1),
	RunE:  webhookSetCommand,
}

var webhookTestCmd = &cobra.Command{
	Use:   "test",
	Short: "診断用のペイロードを Webhook に送るのだ。",
	Args:  cobra.NoArgs,
	RunE:  webhookTestCommand,
}

// promptCmd は機能ごとのプロンプトを組み立てて表示するのだ。
var promptCmd = &cobra.Command{
	Use:       "prompt [kind]",
	Short:     "プロンプトビルダーの結果を表示するのだ。",
	Long:      "種類: " + kindList() + "\n--options に JSON でオプションを渡すのだ。",
	Args:      cobra.ExactArgs(1),
	ValidArgs: kindNames(),
	RunE:      promptCommand,
}

// logsCmd は監査ログを表示するのだ。
var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "監査ログを新しい順に表示するのだ。--clear で削除します。",
	Args:  cobra.NoArgs,
	RunE:  logsCommand,
}

func init() {
	webhookCmd.PersistentFlags().StringVar(&userID, "user", "cli", "対象のユーザー ID なのだ。")
	webhookSetCmd.Flags().BoolVar(&webhookClear, "clear", false, "Webhook URL を解除するのだ。")
	webhookCmd.AddCommand(webhookSetCmd, webhookTestCmd)

	promptCmd.Flags().StringVar(&promptOpts, "options", "", `オプションの JSON なのだ。例: {"productName":"Mug"}`)

	logsCmd.Flags().StringVar(&userID, "user", "cli", "対象のユーザー ID なのだ。")
	logsCmd.Flags().IntVarP(&logsLimit, "limit", "n", storage.DefaultListLimit, "表示する件数なのだ。")
	logsCmd.Flags().BoolVar(&clearLogs, "clear", false, "ログをすべて削除するのだ。")
}

// withApp は共通コンポーネントを組み立てて fn を実行するのだ。
func withApp(ctx context.Context, fn func(*builder.AppContext) error) error {
	appCtx, err := builder.Build(ctx, loadConfig())
	if err != nil {
		return fmt.Errorf("アプリケーションの初期化に失敗したのだ: %w", err)
	}
	defer func() { _ = appCtx.Close() }()
	return fn(appCtx)
}

func verifyKeyCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withApp(ctx, func(appCtx *builder.AppContext) error {
		key := appCtx.Config.GeminiAPIKey
		if len(args) == 1 {
			key = args[0]
		}
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("検証する API キーが無いのだ。引数か GEMINI_API_KEY で指定してほしいのだ")
		}

		gw, err := appCtx.NewGateway(appCtx.Sessions.Get("cli"))
		if err != nil {
			return err
		}
		if !gw.VerifyCredential(ctx, key) {
			return fmt.Errorf("API キーは無効なのだ")
		}
		fmt.Fprintln(cmd.OutOrStdout(), "API キーは有効なのだ")
		return nil
	})
}

func webhookSetCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	target := ""
	switch {
	case webhookClear:
	case len(args) == 1:
		target = args[0]
	default:
		return fmt.Errorf("URL を指定するか --clear を付けてほしいのだ")
	}

	return withApp(ctx, func(appCtx *builder.AppContext) error {
		if err := appCtx.Dispatcher.SetWebhookURL(ctx, userID, target); err != nil {
			return err
		}
		if target == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "Webhook を解除したのだ")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "Webhook を保存したのだ:", target)
		}
		return nil
	})
}

func webhookTestCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withApp(ctx, func(appCtx *builder.AppContext) error {
		result := appCtx.Dispatcher.SendTest(ctx, userID)
		fmt.Fprintln(cmd.OutOrStdout(), result.Message)
		if !result.Success {
			return fmt.Errorf("テスト送信に失敗したのだ")
		}
		return nil
	})
}

func promptCommand(cmd *cobra.Command, args []string) error {
	b, err := prompts.NewBuilder()
	if err != nil {
		return err
	}
	prompt, err := b.BuildJSON(prompts.Kind(args[0]), []byte(promptOpts))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), prompt)
	return nil
}

func logsCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withApp(ctx, func(appCtx *builder.AppContext) error {
		if clearLogs {
			n, err := appCtx.Store.ClearLogs(ctx, userID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d 件のログを削除したのだ\n", n)
			return nil
		}

		entries, err := appCtx.Store.ListLogs(ctx, userID, storage.NormalizeLimit(logsLimit))
		if err != nil {
			return err
		}
		if flags.LogFormat == "json" {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tMODALITY\tSTATUS\tMODEL\tPROMPT")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.Modality, e.Status, e.Model, e.PromptSummary)
		}
		return w.Flush()
	})
}

func kindNames() []string {
	kinds := prompts.Kinds()
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, string(k))
	}
	return names
}

func kindList() string {
	return strings.Join(kindNames(), ", ")
}
