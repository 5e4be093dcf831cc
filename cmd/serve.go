package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shouni/gemini-creative-gateway/internal/builder"
)

const shutdownTimeout = 30 * time.Second

var listenAddr string

// serveCmd は HTTP API サーバーを起動するのだ。
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "HTTP API サーバーを起動するのだ。",
	Long: `生成ゲートウェイを HTTP API として公開するのだ。
SIGINT / SIGTERM を受け取ると、処理中のリクエストと Webhook の配送を待ってから停止するのだよ。`,
	RunE: serveCommand,
}

func init() {
	serveCmd.Flags().StringVarP(&listenAddr, "addr", "a", "", "待ち受けアドレスなのだ。未指定なら GATEWAY_LISTEN_ADDR を使います。")
}

func serveCommand(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := loadConfig()
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}

	appCtx, err := builder.Build(ctx, cfg)
	if err != nil {
		return fmt.Errorf("アプリケーションの初期化に失敗したのだ: %w", err)
	}
	defer func() {
		if err := appCtx.Close(); err != nil {
			slog.Error("ストアのクローズに失敗したのだ", "error", err)
		}
	}()

	app, err := builder.BuildServer(appCtx)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("サーバーを起動するのだ！", "addr", cfg.ListenAddr, "db", cfg.DBPath, "archive", appCtx.Archive != nil)
		errCh <- app.Listen(cfg.ListenAddr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("サーバーが異常終了したのだ: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("停止シグナルを受け取ったのだ。シャットダウンします")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		return fmt.Errorf("シャットダウンに失敗したのだ: %w", err)
	}
	slog.Info("サーバーを停止したのだ")
	return nil
}
