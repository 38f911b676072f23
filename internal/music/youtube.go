package music

import (
	"context"
	"errors"
	"fmt"

	"github.com/moxigua/diange/internal/extractor"
	"github.com/moxigua/diange/internal/logger"
)

// YoutubeProvider Youtube 平台实现，搜索与下载都走外部提取器。
// 搜索结果的 AudioURL 是视频页地址而非直接文件，
// 下载器会识别这类地址并交给提取器处理。
type YoutubeProvider struct {
	pool *extractor.Pool
}

// NewYoutubeProvider 创建 Youtube 平台。
func NewYoutubeProvider(pool *extractor.Pool) *YoutubeProvider {
	return &YoutubeProvider{pool: pool}
}

// Platform 实现 Provider 接口。
func (p *YoutubeProvider) Platform() Platform {
	return Platform{
		Name:        "youtube",
		DisplayName: "Youtube",
		Keywords:    []string{"yt点歌", "油管点歌", "youtube点歌"},
	}
}

// Tags 实现 Provider 接口。
func (p *YoutubeProvider) Tags() []Tag {
	return nil
}

// Search 实现 Provider 接口。
func (p *YoutubeProvider) Search(ctx context.Context, keyword string, limit int, extra string) ([]Song, error) {
	entries, err := p.pool.Search(ctx, keyword, limit)
	if err != nil {
		if errors.Is(err, extractor.ErrUnavailable) {
			return nil, fmt.Errorf("youtube 搜索不可用: %w", ErrCapabilityUnavailable)
		}
		return nil, err
	}

	songs := make([]Song, 0, len(entries))
	for _, e := range entries {
		songs = append(songs, Song{
			ID:         e.ID,
			Name:       e.Title,
			Artists:    e.Uploader,
			DurationMs: int64(e.Duration * 1000),
			AudioURL:   e.URL,
			CoverURL:   e.Thumbnail,
		})
	}
	logger.Debugf("[youtube] 搜索 %q 返回 %d 首歌曲", keyword, len(songs))
	return songs, nil
}

// ResolveAudio 实现 Provider 接口。
// 搜索阶段已带上视频页地址，无需二次解析。
func (p *YoutubeProvider) ResolveAudio(ctx context.Context, song *Song) error {
	if song.Resolved() {
		return nil
	}
	song.AudioURL = "https://www.youtube.com/watch?v=" + song.ID
	return nil
}

// FetchLyrics 实现 Provider 接口。Youtube 无歌词接口，字段保持为空。
func (p *YoutubeProvider) FetchLyrics(ctx context.Context, song *Song) error {
	return nil
}

// FetchComments 实现 Provider 接口。Youtube 评论不抓取，字段保持为空。
func (p *YoutubeProvider) FetchComments(ctx context.Context, song *Song) error {
	return nil
}
