package discord

import "math/rand/v2"

// RandomColor 生成一个随机 RGB 颜色，用于首次遇到的目录。
// 通道值压到 64-255 区间，避免太暗的 embed 色条。
func RandomColor() [3]uint32 {
	return [3]uint32{
		uint32(64 + rand.IntN(192)),
		uint32(64 + rand.IntN(192)),
		uint32(64 + rand.IntN(192)),
	}
}

// ColorValue 把 RGB 三元组压缩为 Discord embed 要求的整数色值。
func ColorValue(rgb [3]uint32) uint32 {
	r := rgb[0] & 0xff
	g := rgb[1] & 0xff
	b := rgb[2] & 0xff
	return r<<16 | g<<8 | b
}
