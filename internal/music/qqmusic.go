package music

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/moxigua/diange/internal/logger"
)

// QQMusicProvider QQ音乐平台实现。
// 依赖 QQMusicApi 服务：https://github.com/jsososo/QQMusicApi
type QQMusicProvider struct {
	baseURL    string
	httpClient *http.Client
}

// NewQQMusicProvider 创建 QQ 音乐平台。
func NewQQMusicProvider(baseURL string, client *http.Client) *QQMusicProvider {
	if baseURL == "" {
		baseURL = "http://localhost:3300"
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &QQMusicProvider{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: client,
	}
}

// Platform 实现 Provider 接口。
func (p *QQMusicProvider) Platform() Platform {
	return Platform{
		Name:        "qq",
		DisplayName: "QQ音乐",
		Keywords:    []string{"qq点歌", "企鹅点歌"},
	}
}

// Tags 实现 Provider 接口。
func (p *QQMusicProvider) Tags() []Tag {
	return nil
}

// qqSearchResponse 搜索结果。
type qqSearchResponse struct {
	Result int `json:"result"`
	Data   struct {
		List []struct {
			SongMID  string `json:"songmid"`
			SongName string `json:"songname"`
			Singer   []struct {
				Name string `json:"name"`
			} `json:"singer"`
			AlbumMID string `json:"albummid"`
			Interval int64  `json:"interval"` // 秒
		} `json:"list"`
	} `json:"data"`
}

// qqSongURLResponse 歌曲 URL 结果。
type qqSongURLResponse struct {
	Result int    `json:"result"`
	Data   string `json:"data"`
}

// qqLyricResponse 歌词结果。
type qqLyricResponse struct {
	Result int `json:"result"`
	Data   struct {
		Lyric string `json:"lyric"`
	} `json:"data"`
}

// Search 实现 Provider 接口。
func (p *QQMusicProvider) Search(ctx context.Context, keyword string, limit int, extra string) ([]Song, error) {
	if limit <= 0 {
		limit = 10
	}

	u := fmt.Sprintf("%s/search?key=%s&pageSize=%d", p.baseURL, url.QueryEscape(keyword), limit)
	var resp qqSearchResponse
	if err := p.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}
	if resp.Result != 100 {
		return nil, fmt.Errorf("QQ 音乐 API 返回错误: result=%d", resp.Result)
	}

	songs := make([]Song, 0, len(resp.Data.List))
	for _, item := range resp.Data.List {
		var artists []string
		for _, s := range item.Singer {
			artists = append(artists, s.Name)
		}
		var cover string
		if item.AlbumMID != "" {
			cover = fmt.Sprintf("https://y.gtimg.cn/music/photo_new/T002R300x300M000%s.jpg", item.AlbumMID)
		}
		songs = append(songs, Song{
			ID:         item.SongMID,
			Name:       item.SongName,
			Artists:    strings.Join(artists, "/"),
			DurationMs: item.Interval * 1000,
			CoverURL:   cover,
		})
	}
	logger.Debugf("[qqmusic] 搜索 %q 返回 %d 首歌曲", keyword, len(songs))
	return songs, nil
}

// ResolveAudio 实现 Provider 接口：补全播放地址，幂等。
func (p *QQMusicProvider) ResolveAudio(ctx context.Context, song *Song) error {
	if song.Resolved() {
		return nil
	}

	u := fmt.Sprintf("%s/song/url?id=%s", p.baseURL, url.QueryEscape(song.ID))
	var resp qqSongURLResponse
	if err := p.getJSON(ctx, u, &resp); err != nil {
		return err
	}
	if resp.Result != 100 {
		return fmt.Errorf("QQ 音乐 API 返回错误: result=%d", resp.Result)
	}
	if resp.Data == "" {
		return fmt.Errorf("无法获取播放地址，可能是 VIP 歌曲: %w", ErrNotFound)
	}

	song.AudioURL = resp.Data
	return nil
}

// FetchLyrics 实现 Provider 接口：补全歌词，幂等。
func (p *QQMusicProvider) FetchLyrics(ctx context.Context, song *Song) error {
	if len(song.Lyrics) > 0 {
		return nil
	}

	u := fmt.Sprintf("%s/lyric?songmid=%s", p.baseURL, url.QueryEscape(song.ID))
	var resp qqLyricResponse
	if err := p.getJSON(ctx, u, &resp); err != nil {
		return err
	}
	if resp.Result != 100 {
		return fmt.Errorf("QQ 音乐 API 返回错误: result=%d", resp.Result)
	}

	song.Lyrics = ParseLRC(resp.Data.Lyric)
	return nil
}

// FetchComments 实现 Provider 接口。
// QQMusicApi 未提供评论接口，保持字段为空是合法结果。
func (p *QQMusicProvider) FetchComments(ctx context.Context, song *Song) error {
	return nil
}

// getJSON 发起 GET 请求并解析 JSON 响应。
func (p *QQMusicProvider) getJSON(ctx context.Context, u string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("请求 QQ 音乐 API 失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("QQ 音乐 API 返回错误状态码: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	return nil
}
