package music

import (
	"fmt"
	"strings"
)

// Song 表示一首歌曲。搜索只返回基础字段，
// 播放地址、歌词、评论由各平台按需懒加载补全。
type Song struct {
	ID         string    // 平台内歌曲标识，仅在所属平台内有意义
	Name       string    // 歌曲名
	Artists    string    // 歌手名（多位以 / 分隔）
	DurationMs int64     // 时长（毫秒），0 表示未知
	AudioURL   string    // 播放地址，懒加载
	CoverURL   string    // 封面地址
	Lyrics     []LyricLine
	Comments   []Comment
}

// LyricLine 一行带时间戳的歌词。
type LyricLine struct {
	TimeMs int64
	Text   string
}

// Comment 歌曲评论。
type Comment struct {
	User    string
	Content string
	Liked   int64
}

// String 实现 Stringer 接口。
func (s Song) String() string {
	return fmt.Sprintf("%s - %s", s.Name, s.Artists)
}

// Resolved 播放地址是否已补全。
func (s *Song) Resolved() bool {
	return s.AudioURL != ""
}

// Lines 返回文本方式发送时的歌曲信息。
func (s *Song) Lines() string {
	var b strings.Builder
	b.WriteString("🎶" + s.Name + " - " + s.Artists)
	if s.DurationMs > 0 {
		b.WriteString(" " + FormatDuration(s.DurationMs))
	}
	if s.AudioURL != "" {
		b.WriteString("\n" + s.AudioURL)
	}
	return b.String()
}

// FormatDuration 将毫秒时长格式化为 mm:ss 或 h:mm:ss。
func FormatDuration(durationMs int64) string {
	duration := durationMs / 1000
	hours := duration / 3600
	minutes := (duration % 3600) / 60
	seconds := duration % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// Platform 平台静态描述，构造后不可变。
type Platform struct {
	Name        string   // 规范名，如 netease
	DisplayName string   // 展示名，如 网易云音乐
	Keywords    []string // 触发词，命令首词命中即路由到该平台
}
