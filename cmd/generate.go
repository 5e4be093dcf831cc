package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shouni/gemini-creative-gateway/internal/builder"
	"github.com/shouni/gemini-creative-gateway/pkg/domain"
	"github.com/shouni/gemini-creative-gateway/pkg/generator"
)

// generateOptions は generate 系サブコマンドのフラグなのだ。
type generateOptions struct {
	Output       string
	Attachments  []string
	SystemPrompt string
	Model        string
	AspectRatio  string
	Count        int
	Negative     string
	Seed         int64
	HDR          bool
	PersonPolicy string
	Image        string
	Actor        string
	Speed        float64
	Pitch        float64
	Volume       float64
}

var genOpts generateOptions

// generateCmd は、ゲートウェイを通して手元から生成を実行するのだ。
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "GEMINI_API_KEY を使ってテキスト・画像・動画・音声を生成するのだ。",
}

var generateTextCmd = &cobra.Command{
	Use:   "text [prompt]",
	Short: "テキストを生成するのだ。--attach を付けると画像付きで生成します。",
	Args:  cobra.MinimumNArgs(1),
	RunE:  generateTextCommand,
}

var generateImageCmd = &cobra.Command{
	Use:   "image [prompt]",
	Short: "画像を生成するのだ。",
	Args:  cobra.MinimumNArgs(1),
	RunE:  generateImageCommand,
}

var generateComposeCmd = &cobra.Command{
	Use:   "compose [prompt]",
	Short: "参照画像を合成・編集した画像を生成するのだ。",
	Args:  cobra.MinimumNArgs(1),
	RunE:  generateComposeCommand,
}

var generateVideoCmd = &cobra.Command{
	Use:   "video [prompt]",
	Short: "動画を生成するのだ。完了までポーリングします。",
	Args:  cobra.MinimumNArgs(1),
	RunE:  generateVideoCommand,
}

var generateVoiceCmd = &cobra.Command{
	Use:   "voice [script]",
	Short: "台本を読み上げた音声を生成するのだ。",
	Args:  cobra.MinimumNArgs(1),
	RunE:  generateVoiceCommand,
}

func init() {
	generateCmd.PersistentFlags().StringVarP(&genOpts.Output, "output", "o", "", "保存パス（ローカル or gs://...）なのだ。")

	generateTextCmd.Flags().StringSliceVar(&genOpts.Attachments, "attach", nil, "添付画像（ファイルパスまたは URL）なのだ。")
	generateTextCmd.Flags().StringVar(&genOpts.SystemPrompt, "system", "", "システムプロンプトなのだ。")
	generateTextCmd.Flags().StringVar(&genOpts.Model, "model", "", "使用する Gemini モデル名なのだ。")

	generateImageCmd.Flags().StringVar(&genOpts.AspectRatio, "aspect-ratio", "1:1", "アスペクト比なのだ。")
	generateImageCmd.Flags().IntVarP(&genOpts.Count, "count", "n", 1, "生成する枚数なのだ。")
	generateImageCmd.Flags().StringVar(&genOpts.Negative, "negative", "", "ネガティブプロンプトなのだ。")
	generateImageCmd.Flags().Int64Var(&genOpts.Seed, "seed", 0, "シード値なのだ。0 なら指定しません。")
	generateImageCmd.Flags().BoolVar(&genOpts.HDR, "hdr", false, "HDR 表現をプロンプトに加えるのだ。")
	generateImageCmd.Flags().StringVar(&genOpts.PersonPolicy, "person", "", "人物生成の許可 (dont_allow, allow_adult, allow_all) なのだ。")

	generateComposeCmd.Flags().StringSliceVar(&genOpts.Attachments, "attach", nil, "参照画像（ファイルパスまたは URL）なのだ。")

	generateVideoCmd.Flags().StringVar(&genOpts.AspectRatio, "aspect-ratio", "16:9", "アスペクト比なのだ。")
	generateVideoCmd.Flags().StringVar(&genOpts.Model, "model", "", "使用する動画モデル名なのだ。")
	generateVideoCmd.Flags().StringVar(&genOpts.Image, "image", "", "開始フレームにする画像（ファイルパスまたは URL）なのだ。")

	generateVoiceCmd.Flags().StringVar(&genOpts.Actor, "actor", domain.DefaultVoiceActorID, "話者 ID なのだ。")
	generateVoiceCmd.Flags().Float64Var(&genOpts.Speed, "speed", 1.0, "話す速さなのだ。")
	generateVoiceCmd.Flags().Float64Var(&genOpts.Pitch, "pitch", 0, "声の高さなのだ。")
	generateVoiceCmd.Flags().Float64Var(&genOpts.Volume, "volume", 1.0, "音量なのだ。")

	generateCmd.AddCommand(generateTextCmd, generateImageCmd, generateComposeCmd, generateVideoCmd, generateVoiceCmd)
}

// withGateway は CLI 用のゲートウェイを組み立てて fn を実行するのだ。
func withGateway(ctx context.Context, fn func(*generator.Gateway) error) error {
	appCtx, err := builder.Build(ctx, loadConfig())
	if err != nil {
		return fmt.Errorf("アプリケーションの初期化に失敗したのだ: %w", err)
	}
	defer func() { _ = appCtx.Close() }()

	gw, err := builder.BuildCLIGateway(appCtx)
	if err != nil {
		return err
	}
	return fn(gw)
}

func generateTextCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	prompt := strings.Join(args, " ")

	attachments, err := readAttachments(genOpts.Attachments)
	if err != nil {
		return err
	}

	return withGateway(ctx, func(gw *generator.Gateway) error {
		var text string
		var err error
		if len(attachments) > 0 {
			text, err = gw.GenerateMultimodalText(ctx, prompt, attachments)
		} else {
			var opts []generator.TextOption
			if genOpts.SystemPrompt != "" {
				opts = append(opts, generator.WithSystemPrompt(genOpts.SystemPrompt))
			}
			if genOpts.Model != "" {
				opts = append(opts, generator.WithTextModel(genOpts.Model))
			}
			text, err = gw.GenerateText(ctx, prompt, opts...)
		}
		if err != nil {
			return err
		}

		if genOpts.Output != "" {
			return writeOutput(ctx, genOpts.Output, domain.Media{Data: []byte(text), MIMEType: "text/plain; charset=utf-8"})
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	})
}

func generateImageCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := outputOrDefault("image.png")

	req := generator.ImageRequest{
		Prompt:         strings.Join(args, " "),
		AspectRatio:    genOpts.AspectRatio,
		Count:          genOpts.Count,
		NegativePrompt: genOpts.Negative,
		HDR:            genOpts.HDR,
		PersonPolicy:   domain.PersonPolicy(genOpts.PersonPolicy),
		OnProgress: func(partial []domain.Media) {
			slog.Info("画像を生成したのだ", "done", len(partial), "total", max(genOpts.Count, 1))
		},
	}
	if genOpts.Seed != 0 {
		seed := genOpts.Seed
		req.Seed = &seed
	}

	return withGateway(ctx, func(gw *generator.Gateway) error {
		images, err := gw.GenerateImages(ctx, req)
		if err != nil {
			return err
		}
		for i, img := range images {
			if err := writeOutput(ctx, indexedPath(out, i), img); err != nil {
				return err
			}
		}
		return nil
	})
}

func generateComposeCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := outputOrDefault("compose.png")

	attachments, err := readAttachments(genOpts.Attachments)
	if err != nil {
		return err
	}

	return withGateway(ctx, func(gw *generator.Gateway) error {
		result, err := gw.ComposeImage(ctx, strings.Join(args, " "), attachments)
		if err != nil {
			return err
		}
		if result.Text != "" {
			fmt.Fprintln(cmd.OutOrStdout(), result.Text)
		}
		if result.Image == nil {
			slog.Warn("画像は返されなかったのだ")
			return nil
		}
		return writeOutput(ctx, out, *result.Image)
	})
}

func generateVideoCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := outputOrDefault("video.mp4")

	req := generator.VideoRequest{
		Prompt:      strings.Join(args, " "),
		Model:       genOpts.Model,
		AspectRatio: genOpts.AspectRatio,
	}
	if genOpts.Image != "" {
		a, err := readAttachment(genOpts.Image)
		if err != nil {
			return err
		}
		req.Image = &a
	}

	return withGateway(ctx, func(gw *generator.Gateway) error {
		slog.Info("動画の生成を開始するのだ。完了まで数分かかることがあります")
		video, err := gw.GenerateVideo(ctx, req)
		if err != nil {
			return err
		}
		return writeOutput(ctx, out, *video)
	})
}

func generateVoiceCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := outputOrDefault("voice.wav")

	req := generator.VoiceRequest{
		Script:  strings.Join(args, " "),
		ActorID: genOpts.Actor,
		Speed:   genOpts.Speed,
		Pitch:   genOpts.Pitch,
		Volume:  genOpts.Volume,
	}

	return withGateway(ctx, func(gw *generator.Gateway) error {
		audio, err := gw.GenerateVoice(ctx, req)
		if err != nil {
			return err
		}
		return writeOutput(ctx, out, *audio)
	})
}

func outputOrDefault(def string) string {
	if genOpts.Output != "" {
		return genOpts.Output
	}
	return def
}

func readAttachments(refs []string) ([]domain.Attachment, error) {
	attachments := make([]domain.Attachment, 0, len(refs))
	for _, ref := range refs {
		a, err := readAttachment(ref)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, a)
	}
	return attachments, nil
}
