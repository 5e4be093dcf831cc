package utils

import (
	"errors"
	"fmt"
	"math"
)

// ErrSeedOutOfRange は、シード値が SDK の受け付ける int32 の範囲に収まらないことを表します。
var ErrSeedOutOfRange = errors.New("seed is out of range")

// DereferenceSeed は、int64のポインタを安全にデリファレンスします。
// ポインタがnilの場合は0を返します。
func DereferenceSeed(seed *int64) int64 {
	if seed == nil {
		return 0
	}
	return *seed
}

// ValidateSeed は count 枚分ずらしたシード値がすべて int32 に収まるかを確認するのだ。
// nil は未指定として常に許可します。
func ValidateSeed(seed *int64, count int) error {
	if seed == nil {
		return nil
	}
	last := int64(max(count, 1) - 1)
	if *seed < math.MinInt32 || *seed > math.MaxInt32-last {
		return fmt.Errorf("%w: %d (must be between %d and %d for %d image(s))", ErrSeedOutOfRange, *seed, math.MinInt32, math.MaxInt32-last, last+1)
	}
	return nil
}

// SeedAt は i 枚目に使うシード値を返すのだ。
// 同じシードで同じ画像ばかりにならないよう、枚数分だけずらすのだよ。
// 範囲の確認は ValidateSeed で済ませておきます。
func SeedAt(seed *int64, i int) *int64 {
	if seed == nil {
		return nil
	}
	v := *seed + int64(i)
	return &v
}

// SeedToInt32Ptr は *int64 のシード値を SDK 用の *int32 に変換します。
// int32 の範囲を超える値は切り捨てずに ErrSeedOutOfRange を返します。
func SeedToInt32Ptr(seed *int64) (*int32, error) {
	if seed == nil {
		return nil, nil
	}
	if err := ValidateSeed(seed, 1); err != nil {
		return nil, err
	}
	v := int32(*seed)
	return &v, nil
}
