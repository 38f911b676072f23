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

// NeteaseProvider 网易云音乐平台实现。
// 依赖 NeteaseCloudMusicApi 服务：https://github.com/Binaryify/NeteaseCloudMusicApi
type NeteaseProvider struct {
	baseURL    string
	httpClient *http.Client
}

// NewNeteaseProvider 创建网易云音乐平台。
func NewNeteaseProvider(baseURL string, client *http.Client) *NeteaseProvider {
	if baseURL == "" {
		baseURL = "http://localhost:3000"
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &NeteaseProvider{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: client,
	}
}

// Platform 实现 Provider 接口。
func (p *NeteaseProvider) Platform() Platform {
	return Platform{
		Name:        "netease",
		DisplayName: "网易云音乐",
		Keywords:    []string{"网易点歌", "网易nj", "wy点歌"},
	}
}

// Tags 实现 Provider 接口。网易歌曲可用音乐卡片引用。
func (p *NeteaseProvider) Tags() []Tag {
	return []Tag{TagCardAddressable}
}

// neteaseSearchResponse 搜索 API 响应结构。
type neteaseSearchResponse struct {
	Code   int `json:"code"`
	Result struct {
		Songs []struct {
			ID      int64  `json:"id"`
			Name    string `json:"name"`
			Artists []struct {
				Name string `json:"name"`
			} `json:"artists"`
			Duration int64 `json:"duration"`
			Album    struct {
				PicURL string `json:"picUrl"`
			} `json:"album"`
		} `json:"songs"`
	} `json:"result"`
}

// neteaseSongURLResponse 获取歌曲 URL 响应结构。
type neteaseSongURLResponse struct {
	Code int `json:"code"`
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

// neteaseLyricResponse 歌词响应结构。
type neteaseLyricResponse struct {
	Code int `json:"code"`
	LRC  struct {
		Lyric string `json:"lyric"`
	} `json:"lrc"`
}

// neteaseCommentResponse 热门评论响应结构。
type neteaseCommentResponse struct {
	Code        int `json:"code"`
	HotComments []struct {
		User struct {
			Nickname string `json:"nickname"`
		} `json:"user"`
		Content    string `json:"content"`
		LikedCount int64  `json:"likedCount"`
	} `json:"hotComments"`
}

// Search 实现 Provider 接口。
func (p *NeteaseProvider) Search(ctx context.Context, keyword string, limit int, extra string) ([]Song, error) {
	if limit <= 0 {
		limit = 10
	}

	u := fmt.Sprintf("%s/search?keywords=%s&limit=%d", p.baseURL, url.QueryEscape(keyword), limit)
	var resp neteaseSearchResponse
	if err := p.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 200 {
		return nil, fmt.Errorf("搜索失败，错误码: %d", resp.Code)
	}

	songs := make([]Song, 0, len(resp.Result.Songs))
	for _, s := range resp.Result.Songs {
		var artists []string
		for _, a := range s.Artists {
			artists = append(artists, a.Name)
		}
		songs = append(songs, Song{
			ID:         fmt.Sprintf("%d", s.ID),
			Name:       s.Name,
			Artists:    strings.Join(artists, "/"),
			DurationMs: s.Duration,
			CoverURL:   s.Album.PicURL,
		})
	}
	logger.Debugf("[netease] 搜索 %q 返回 %d 首歌曲", keyword, len(songs))
	return songs, nil
}

// ResolveAudio 实现 Provider 接口：补全播放地址，幂等。
func (p *NeteaseProvider) ResolveAudio(ctx context.Context, song *Song) error {
	if song.Resolved() {
		return nil
	}

	// br=999000 请求最高码率，避免返回试听片段
	u := fmt.Sprintf("%s/song/url?id=%s&br=999000", p.baseURL, url.QueryEscape(song.ID))
	var resp neteaseSongURLResponse
	if err := p.getJSON(ctx, u, &resp); err != nil {
		return err
	}
	if resp.Code != 200 {
		return fmt.Errorf("获取播放地址失败，错误码: %d", resp.Code)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return fmt.Errorf("无法获取播放地址，可能需要 VIP: %w", ErrNotFound)
	}

	song.AudioURL = resp.Data[0].URL
	return nil
}

// FetchLyrics 实现 Provider 接口：补全歌词，幂等。
// 平台没有歌词时保持字段为空且不报错。
func (p *NeteaseProvider) FetchLyrics(ctx context.Context, song *Song) error {
	if len(song.Lyrics) > 0 {
		return nil
	}

	u := fmt.Sprintf("%s/lyric?id=%s", p.baseURL, url.QueryEscape(song.ID))
	var resp neteaseLyricResponse
	if err := p.getJSON(ctx, u, &resp); err != nil {
		return err
	}
	if resp.Code != 200 {
		return fmt.Errorf("获取歌词失败，错误码: %d", resp.Code)
	}

	song.Lyrics = ParseLRC(resp.LRC.Lyric)
	return nil
}

// FetchComments 实现 Provider 接口：补全热门评论，幂等。
func (p *NeteaseProvider) FetchComments(ctx context.Context, song *Song) error {
	if len(song.Comments) > 0 {
		return nil
	}

	u := fmt.Sprintf("%s/comment/music?id=%s&limit=10", p.baseURL, url.QueryEscape(song.ID))
	var resp neteaseCommentResponse
	if err := p.getJSON(ctx, u, &resp); err != nil {
		return err
	}
	if resp.Code != 200 {
		return fmt.Errorf("获取评论失败，错误码: %d", resp.Code)
	}

	for _, c := range resp.HotComments {
		song.Comments = append(song.Comments, Comment{
			User:    c.User.Nickname,
			Content: c.Content,
			Liked:   c.LikedCount,
		})
	}
	return nil
}

// getJSON 发起 GET 请求并解析 JSON 响应。
func (p *NeteaseProvider) getJSON(ctx context.Context, u string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("请求网易云 API 失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("网易云 API 返回错误状态码: %d", resp.StatusCode)
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
