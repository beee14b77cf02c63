// Package palette 为图表系列生成确定性的颜色序列
package palette

import (
	"fmt"
	"math"
)

// TransparentAlpha 半透明填充色的不透明度
const TransparentAlpha = 0.2

// Color 一个颜色：精选色用 RGB 表示，超出部分用 HSL 色相旋转生成
type Color struct {
	R, G, B uint8
	Hue     float64
	HSL     bool
	Alpha   float64
}

// curated 前 15 个精选颜色
var curated = []Color{
	{R: 54, G: 162, B: 235},
	{R: 255, G: 99, B: 132},
	{R: 75, G: 192, B: 192},
	{R: 255, G: 159, B: 64},
	{R: 153, G: 102, B: 255},
	{R: 255, G: 205, B: 86},
	{R: 46, G: 204, B: 113},
	{R: 231, G: 76, B: 60},
	{R: 52, G: 73, B: 94},
	{R: 233, G: 30, B: 99},
	{R: 0, G: 150, B: 136},
	{R: 121, G: 85, B: 72},
	{R: 96, G: 125, B: 139},
	{R: 205, G: 220, B: 57},
	{R: 63, G: 81, B: 181},
}

const (
	goldenAngle = 137.5
	saturation  = 70
	lightness   = 50
)

// CuratedSize 精选颜色数量
func CuratedSize() int {
	return len(curated)
}

// Palette 返回 count 个不透明颜色；同样的 count 总是得到同样的序列
func Palette(count int) []Color {
	if count <= 0 {
		return nil
	}
	colors := make([]Color, count)
	for i := range colors {
		colors[i] = At(i)
	}
	return colors
}

// At 第 i 个调色板颜色
func At(i int) Color {
	if i < 0 {
		i = -i
	}
	if i < len(curated) {
		c := curated[i]
		c.Alpha = 1
		return c
	}
	return Color{
		Hue:   math.Mod(float64(i)*goldenAngle, 360),
		HSL:   true,
		Alpha: 1,
	}
}

// Transparent 返回 Palette(total)[index] 的半透明版本（同色相，降低不透明度）
// index 超出范围时按 total 取模。
func Transparent(index, total int) Color {
	if total > 0 {
		index = ((index % total) + total) % total
	}
	return At(index).WithAlpha(TransparentAlpha)
}

// WithAlpha 返回修改不透明度后的颜色
func (c Color) WithAlpha(alpha float64) Color {
	c.Alpha = alpha
	return c
}

// String CSS 颜色字符串
func (c Color) String() string {
	if c.HSL {
		if c.Alpha >= 1 {
			return fmt.Sprintf("hsl(%s, %d%%, %d%%)", trim(c.Hue), saturation, lightness)
		}
		return fmt.Sprintf("hsla(%s, %d%%, %d%%, %s)", trim(c.Hue), saturation, lightness, trim(c.Alpha))
	}
	if c.Alpha >= 1 {
		return fmt.Sprintf("rgb(%d, %d, %d)", c.R, c.G, c.B)
	}
	return fmt.Sprintf("rgba(%d, %d, %d, %s)", c.R, c.G, c.B, trim(c.Alpha))
}

// Strings 把颜色序列转换为 CSS 字符串
func Strings(colors []Color) []string {
	out := make([]string, len(colors))
	for i, c := range colors {
		out[i] = c.String()
	}
	return out
}

func trim(f float64) string {
	return fmt.Sprintf("%g", f)
}
