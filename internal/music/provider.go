package music

import "context"

// Tag 平台能力标签，发送方式的可用性判断只依赖标签集合，
// 不依赖具体实现类型。
type Tag string

const (
	// TagCardAddressable 平台歌曲可通过音乐卡片引用。
	TagCardAddressable Tag = "card-addressable"
)

// Provider 定义一个音乐平台实现。
// 所有补全方法（ResolveAudio、FetchLyrics、FetchComments）必须幂等：
// 字段已填充时直接返回；平台没有对应数据时保持字段为空且不报错。
type Provider interface {
	// Platform 返回平台静态描述。
	Platform() Platform

	// Tags 返回平台能力标签。
	Tags() []Tag

	// Search 根据关键词搜索歌曲，返回数量不超过 limit。
	// extra 是触发本次搜索的原始命令词，个别平台用来区分子频道。
	Search(ctx context.Context, keyword string, limit int, extra string) ([]Song, error)

	// ResolveAudio 补全歌曲播放地址。
	ResolveAudio(ctx context.Context, song *Song) error

	// FetchLyrics 补全歌词。
	FetchLyrics(ctx context.Context, song *Song) error

	// FetchComments 补全评论。
	FetchComments(ctx context.Context, song *Song) error
}

// HasTag 判断平台是否声明了指定标签。
func HasTag(p Provider, tag Tag) bool {
	for _, t := range p.Tags() {
		if t == tag {
			return true
		}
	}
	return false
}
