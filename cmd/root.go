package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	clibase "github.com/shouni/go-cli-base"
	"github.com/spf13/cobra"

	"github.com/shouni/gemini-creative-gateway/internal/config"
)

// globalFlags は全サブコマンドで共通のフラグなのだ。
type globalFlags struct {
	LogLevel  string
	LogFormat string
	DBPath    string
}

var flags globalFlags

const appName = "creative-gateway"

// addAppFlags は、全サブコマンドに効くグローバルフラグを定義するのだ。
func addAppFlags(rootCmd *cobra.Command) {
	rootCmd.Long = `Gemini のマルチモーダル生成を 1 つの窓口から呼び出すためのサーバーと CLI なのだ。
serve で HTTP API を起動し、generate で手元から直接生成できるのだよ。`
	rootCmd.SilenceUsage = true

	rootCmd.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "", "ログレベル (debug, info, warn, error) なのだ。未指定なら LOG_LEVEL を使います。")
	rootCmd.PersistentFlags().StringVar(&flags.LogFormat, "log-format", "text", "ログ形式 (text, json) なのだ。")
	rootCmd.PersistentFlags().StringVar(&flags.DBPath, "db", "", "SQLite のパスなのだ。'memory' でインメモリになります。未指定なら GATEWAY_DB_PATH を使います。")
}

// preRunAppE は、コマンド実行前にロガーを設定するのだ。
func preRunAppE(cmd *cobra.Command, args []string) error {
	level := flags.LogLevel
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	logger, err := newLogger(level, flags.LogFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}

// loadConfig は環境変数の設定にフラグの上書きを反映して返すのだ。
func loadConfig() *config.Config {
	cfg := config.LoadConfig()
	if flags.DBPath != "" {
		cfg.DBPath = flags.DBPath
	}
	return cfg
}

func newLogger(level, format string) (*slog.Logger, error) {
	var lv slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		lv = slog.LevelInfo
	case "debug":
		lv = slog.LevelDebug
	case "warn", "warning":
		lv = slog.LevelWarn
	case "error":
		lv = slog.LevelError
	default:
		return nil, fmt.Errorf("不明なログレベルなのだ: %s", level)
	}

	opts := &slog.HandlerOptions{Level: lv}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("不明なログ形式なのだ: %s", format)
	}
}

// Execute は、アプリケーションのメインエントリポイントなのだ。
// main.go から呼び出されて、cobra のコマンドライン解析を開始するのだよ。
func Execute() {
	clibase.Execute(
		appName,
		addAppFlags,
		preRunAppE,
		serveCmd,
		generateCmd,
		verifyKeyCmd,
		webhookCmd,
		promptCmd,
		logsCmd,
	)
}
