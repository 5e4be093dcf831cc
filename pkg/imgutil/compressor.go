package imgutil

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
)

const (
	// DefaultQuality は参照画像を再エンコードするときの JPEG 品質です。
	DefaultQuality = 75
	// DefaultThreshold を超える参照画像だけを再エンコードします。
	DefaultThreshold = 512 * 1024
)

// UploadOptions は参照画像をバックエンドへ送る前の正規化設定です。
type UploadOptions struct {
	Enabled   bool
	Quality   int
	Threshold int
}

// DefaultUploadOptions は既定の正規化設定を返します。
func DefaultUploadOptions() UploadOptions {
	return UploadOptions{
		Enabled:   true,
		Quality:   DefaultQuality,
		Threshold: DefaultThreshold,
	}
}

// PrepareForUpload はしきい値を超える画像を JPEG に再エンコードします。
// 再エンコードで小さくならない場合は元のデータをそのまま返すのだ。
func PrepareForUpload(data []byte, opts UploadOptions) ([]byte, error) {
	if !opts.Enabled || len(data) <= opts.Threshold {
		return data, nil
	}

	quality := opts.Quality
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	compressed, err := CompressToJPEG(data, quality)
	if err != nil {
		return nil, fmt.Errorf("参照画像の再エンコードに失敗しました: %w", err)
	}
	if len(compressed) >= len(data) {
		return data, nil
	}
	return compressed, nil
}

// CompressToJPEG は画像データ（PNG, GIF, JPEG等）をJPEG形式に圧縮します。
func CompressToJPEG(data []byte, quality int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
