package music

import "testing"

func TestParseLRC(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []LyricLine
	}{
		{
			name: "标准两行",
			text: "[00:12.50]故事的小黄花\n[00:16.00]从出生那年就飘着",
			want: []LyricLine{
				{TimeMs: 12500, Text: "故事的小黄花"},
				{TimeMs: 16000, Text: "从出生那年就飘着"},
			},
		},
		{
			name: "跳过元信息标签",
			text: "[ti:晴天]\n[ar:周杰伦]\n[00:05.00]前奏",
			want: []LyricLine{{TimeMs: 5000, Text: "前奏"}},
		},
		{
			name: "跳过空内容行",
			text: "[00:01.00]\n[00:02.00]有词",
			want: []LyricLine{{TimeMs: 2000, Text: "有词"}},
		},
		{
			name: "多时间标签展开为多行",
			text: "[00:10.00][01:10.00]重复的副歌",
			want: []LyricLine{
				{TimeMs: 10000, Text: "重复的副歌"},
				{TimeMs: 70000, Text: "重复的副歌"},
			},
		},
		{
			name: "无小数部分",
			text: "[01:02]整秒",
			want: []LyricLine{{TimeMs: 62000, Text: "整秒"}},
		},
		{
			name: "三位毫秒",
			text: "[00:01.234]精确",
			want: []LyricLine{{TimeMs: 1234, Text: "精确"}},
		},
		{
			name: "一位小数补齐到毫秒",
			text: "[00:01.5]半秒",
			want: []LyricLine{{TimeMs: 1500, Text: "半秒"}},
		},
		{
			name: "乱序输入按时间排序",
			text: "[00:30.00]后\n[00:10.00]前",
			want: []LyricLine{
				{TimeMs: 10000, Text: "前"},
				{TimeMs: 30000, Text: "后"},
			},
		},
		{
			name: "空文本",
			text: "",
			want: nil,
		},
		{
			name: "兼容 CRLF 换行",
			text: "[00:01.00]第一行\r\n[00:02.00]第二行",
			want: []LyricLine{
				{TimeMs: 1000, Text: "第一行"},
				{TimeMs: 2000, Text: "第二行"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseLRC(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("行数: got %d, want %d (%v)", len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("第 %d 行: got %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}
