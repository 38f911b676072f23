package music

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// lrcTimeTag 匹配 [mm:ss] / [mm:ss.xx] / [mm:ss.xxx] 形式的时间标签。
var lrcTimeTag = regexp.MustCompile(`\[(\d+):(\d{2})(?:\.(\d{1,3}))?\]`)

// ParseLRC 解析 LRC 歌词文本，返回按时间排序的歌词行。
// 元信息标签（[ti:..]、[ar:..] 等）和空白行会被跳过；
// 一行带多个时间标签时会展开为多行。
func ParseLRC(text string) []LyricLine {
	var lines []LyricLine
	for _, raw := range strings.Split(text, "\n") {
		raw = strings.TrimRight(raw, "\r")
		tags := lrcTimeTag.FindAllStringSubmatch(raw, -1)
		if len(tags) == 0 {
			continue
		}
		content := strings.TrimSpace(lrcTimeTag.ReplaceAllString(raw, ""))
		if content == "" {
			continue
		}
		for _, tag := range tags {
			minutes, _ := strconv.ParseInt(tag[1], 10, 64)
			seconds, _ := strconv.ParseInt(tag[2], 10, 64)
			var fracMs int64
			if tag[3] != "" {
				// 补齐到毫秒精度："5"->500ms、"50"->500ms、"500"->500ms
				frac := tag[3] + strings.Repeat("0", 3-len(tag[3]))
				fracMs, _ = strconv.ParseInt(frac, 10, 64)
			}
			lines = append(lines, LyricLine{
				TimeMs: minutes*60_000 + seconds*1_000 + fracMs,
				Text:   content,
			})
		}
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].TimeMs < lines[j].TimeMs })
	return lines
}
