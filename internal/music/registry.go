package music

import (
	"context"
	"strings"

	"github.com/mozillazg/go-pinyin"

	"github.com/moxigua/diange/internal/logger"
)

// Registry 平台注册表。按名称、触发词或展示名的拼音查找平台，
// 新增平台只需注册实现，核心流程无需改动。
type Registry struct {
	providers   []Provider
	defaultName string
	pinyinArgs  pinyin.Args
}

// NewRegistry 创建注册表。defaultName 是 "点歌" 命令使用的默认平台。
func NewRegistry(defaultName string) *Registry {
	args := pinyin.NewArgs()
	args.Style = pinyin.Normal
	return &Registry{
		defaultName: defaultName,
		pinyinArgs:  args,
	}
}

// Register 注册平台。
func (r *Registry) Register(p Provider) {
	r.providers = append(r.providers, p)
	logger.Debugf("[registry] 已注册平台 %s，触发词: %v", p.Platform().Name, p.Platform().Keywords)
}

// Providers 返回全部已注册平台。
func (r *Registry) Providers() []Provider {
	return r.providers
}

// Keywords 返回所有平台的触发词。
func (r *Registry) Keywords() []string {
	var words []string
	for _, p := range r.providers {
		words = append(words, p.Platform().Keywords...)
	}
	return words
}

// Default 返回默认平台，未配置或找不到时返回 nil。
func (r *Registry) Default() Provider {
	return r.ByName(r.defaultName)
}

// ByName 按平台名、展示名或展示名拼音查找平台。
func (r *Registry) ByName(name string) Provider {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil
	}
	for _, p := range r.providers {
		pf := p.Platform()
		if strings.ToLower(pf.Name) == name ||
			strings.ToLower(pf.DisplayName) == name ||
			r.toPinyin(pf.DisplayName) == name {
			return p
		}
	}
	return nil
}

// ByKeyword 按命令首词匹配触发词查找平台。
func (r *Registry) ByKeyword(word string) Provider {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return nil
	}
	for _, p := range r.providers {
		for _, kw := range p.Platform().Keywords {
			if strings.Contains(word, strings.ToLower(kw)) {
				return p
			}
		}
	}
	return nil
}

// IsTrigger 判断词是否命中任一平台触发词。
func (r *Registry) IsTrigger(word string) bool {
	return r.ByKeyword(word) != nil
}

// Search 调用平台搜索并在边界吸收失败：任何错误只记录日志，
// 调用方拿到空列表。结果数强制不超过 limit。
func (r *Registry) Search(ctx context.Context, p Provider, keyword string, limit int, extra string) []Song {
	if p == nil || keyword == "" || limit < 1 {
		return nil
	}
	songs, err := p.Search(ctx, keyword, limit, extra)
	if err != nil {
		logger.Warnf("[registry] %s 搜索 %q 失败: %v", p.Platform().Name, keyword, err)
		return nil
	}
	if len(songs) > limit {
		songs = songs[:limit]
	}
	return songs
}

// toPinyin 将展示名中的汉字转为不带声调的拼音串，
// 非汉字字符原样保留，如 "网易云音乐" -> "wangyiyunyinyue"。
func (r *Registry) toPinyin(text string) string {
	var b strings.Builder
	for _, ch := range strings.ToLower(text) {
		syllables := pinyin.Pinyin(string(ch), r.pinyinArgs)
		if len(syllables) > 0 && len(syllables[0]) > 0 {
			b.WriteString(syllables[0][0])
		} else {
			b.WriteRune(ch)
		}
	}
	return b.String()
}
