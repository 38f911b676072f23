// Package sender 实现歌曲投递：按配置顺序逐个尝试发送方式，
// 首个成功即停，全部失败只向用户报告一次。
package sender

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/moxigua/diange/internal/channel"
	"github.com/moxigua/diange/internal/config"
	"github.com/moxigua/diange/internal/downloader"
	"github.com/moxigua/diange/internal/logger"
	"github.com/moxigua/diange/internal/music"
)

// Mode 发送方式。
type Mode string

const (
	ModeCard   Mode = "card"   // 音乐卡片
	ModeRecord Mode = "record" // 语音消息
	ModeFile   Mode = "file"   // 文件附件
	ModeText   Mode = "text"   // 纯文本，兜底
)

// ErrExhausted 所有发送方式都失败。失败通知已发给用户，
// 调用方不应再发第二条。
var ErrExhausted = errors.New("所有发送方式均失败")

// Renderer 歌词渲染协作方，把歌词画成图片。
type Renderer interface {
	DrawLyrics(lines []music.LyricLine) ([]byte, error)
}

// Sender 歌曲发送器。
type Sender struct {
	modes          []Mode
	enableComments bool
	enableLyrics   bool
	dl             *downloader.Downloader
	renderer       Renderer
}

// New 创建发送器。renderer 可为 nil，歌词将退化为文本发送。
func New(cfg config.SendConfig, dl *downloader.Downloader, renderer Renderer) *Sender {
	modes := make([]Mode, 0, len(cfg.Modes))
	for _, m := range cfg.Modes {
		modes = append(modes, Mode(m))
	}
	return &Sender{
		modes:          modes,
		enableComments: cfg.EnableComments,
		enableLyrics:   cfg.EnableLyrics,
		dl:             dl,
		renderer:       renderer,
	}
}

// Supported 判断 (发送方式, 渠道, 平台) 组合是否可尝试。
// 只看能力声明，不看具体类型；text 永远可用，保证降级链非空。
func Supported(mode Mode, ch channel.Channel, p music.Provider) bool {
	switch mode {
	case ModeCard:
		return ch.Accepts(channel.MediaCard) && music.HasTag(p, music.TagCardAddressable)
	case ModeRecord:
		return ch.Accepts(channel.MediaVoice)
	case ModeFile:
		return ch.Accepts(channel.MediaFile)
	case ModeText:
		return true
	default:
		return false
	}
}

// SendSong 按降级顺序发送歌曲。
// 返回 ErrExhausted 时失败通知已经发出，调用方只需记录日志。
func (s *Sender) SendSong(ctx context.Context, ch channel.Channel, p music.Provider, song *music.Song) error {
	logger.Debugf("[sender] 点歌: %s -> %s", p.Platform().DisplayName, song)

	sent := false
	for _, mode := range s.modes {
		if !Supported(mode, ch, p) {
			logger.Debugf("[sender] %s 不支持，跳过", mode)
			continue
		}
		if s.trySend(ctx, mode, ch, p, song) {
			logger.Debugf("[sender] %s 发送成功", mode)
			sent = true
			break
		}
		logger.Debugf("[sender] %s 发送失败，尝试下一种", mode)
	}

	if !sent {
		if err := ch.SendText(ctx, "歌曲发送失败"); err != nil {
			logger.Errorf("[sender] 发送失败通知失败: %v", err)
		}
		return ErrExhausted
	}

	// 附加内容不影响主流程
	if s.enableComments {
		if err := s.SendComment(ctx, ch, p, song); err != nil {
			logger.Debugf("[sender] 附发评论失败: %v", err)
		}
	}
	if s.enableLyrics {
		if err := s.SendLyrics(ctx, ch, p, song); err != nil {
			logger.Debugf("[sender] 附发歌词失败: %v", err)
		}
	}
	return nil
}

// trySend 尝试单个发送方式，任何错误都只算该方式失败。
func (s *Sender) trySend(ctx context.Context, mode Mode, ch channel.Channel, p music.Provider, song *music.Song) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[sender] %s 发送 panic: %v", mode, r)
			ok = false
		}
	}()

	var err error
	switch mode {
	case ModeCard:
		err = s.sendCard(ctx, ch, p, song)
	case ModeRecord:
		err = s.sendRecord(ctx, ch, p, song)
	case ModeFile:
		err = s.sendFile(ctx, ch, p, song)
	case ModeText:
		err = s.sendText(ctx, ch, p, song)
	default:
		err = fmt.Errorf("未知发送方式: %s", mode)
	}
	if err != nil {
		logger.Warnf("[sender] %s 发送异常: %v", mode, err)
		return false
	}
	return true
}

// sendCard 发音乐卡片，由渠道用平台内 ID 渲染可播放卡片。
func (s *Sender) sendCard(ctx context.Context, ch channel.Channel, p music.Provider, song *music.Song) error {
	return ch.SendMedia(ctx, channel.Media{
		Kind:         channel.MediaCard,
		CardPlatform: p.Platform().Name,
		CardID:       song.ID,
	})
}

// sendRecord 发语音消息，直接引用远端播放地址。
func (s *Sender) sendRecord(ctx context.Context, ch channel.Channel, p music.Provider, song *music.Song) error {
	if err := p.ResolveAudio(ctx, song); err != nil {
		return fmt.Errorf("获取播放地址失败: %w", err)
	}
	if !song.Resolved() {
		return fmt.Errorf("播放地址为空: %w", music.ErrNotFound)
	}
	return ch.SendMedia(ctx, channel.Media{
		Kind: channel.MediaVoice,
		URL:  song.AudioURL,
	})
}

// sendFile 下载音频后以文件附件发送。
func (s *Sender) sendFile(ctx context.Context, ch channel.Channel, p music.Provider, song *music.Song) error {
	if err := p.ResolveAudio(ctx, song); err != nil {
		return fmt.Errorf("获取播放地址失败: %w", err)
	}
	if !song.Resolved() {
		return fmt.Errorf("播放地址为空: %w", music.ErrNotFound)
	}

	filePath, err := s.dl.DownloadSong(ctx, song.AudioURL)
	if err != nil {
		return fmt.Errorf("音频文件下载失败: %w", err)
	}

	// 搜索阶段拿不到时长的来源，用本地文件补一次
	if song.DurationMs == 0 {
		if ms, err := downloader.ProbeDuration(filePath); err == nil {
			song.DurationMs = ms
		}
	}

	filename := SanitizeFilename(fmt.Sprintf("%s - %s%s", song.Name, song.Artists, filepath.Ext(filePath)))
	return ch.SendMedia(ctx, channel.Media{
		Kind:     channel.MediaFile,
		Path:     filePath,
		Filename: filename,
	})
}

// sendText 发文本信息，兜底方式。播放地址尽力补全，失败不阻断。
func (s *Sender) sendText(ctx context.Context, ch channel.Channel, p music.Provider, song *music.Song) error {
	if err := p.ResolveAudio(ctx, song); err != nil {
		logger.Debugf("[sender] 文本方式补全播放地址失败: %v", err)
	}
	return ch.SendText(ctx, song.Lines())
}

// SendComment 发送一条随机热门评论。
func (s *Sender) SendComment(ctx context.Context, ch channel.Channel, p music.Provider, song *music.Song) error {
	if len(song.Comments) == 0 {
		if err := p.FetchComments(ctx, song); err != nil {
			return fmt.Errorf("获取评论失败: %w", err)
		}
	}
	if len(song.Comments) == 0 {
		return music.ErrNotFound
	}
	comment := song.Comments[rand.Intn(len(song.Comments))]
	return ch.SendText(ctx, comment.Content)
}

// SendLyrics 发送歌词，有渲染器且渠道收图片时发图片，否则发文本。
func (s *Sender) SendLyrics(ctx context.Context, ch channel.Channel, p music.Provider, song *music.Song) error {
	if len(song.Lyrics) == 0 {
		if err := p.FetchLyrics(ctx, song); err != nil {
			return fmt.Errorf("获取歌词失败: %w", err)
		}
	}
	if len(song.Lyrics) == 0 {
		return music.ErrNotFound
	}

	if s.renderer != nil && ch.Accepts(channel.MediaImage) {
		img, err := s.renderer.DrawLyrics(song.Lyrics)
		if err != nil {
			return fmt.Errorf("歌词渲染失败: %w", err)
		}
		return ch.SendMedia(ctx, channel.Media{Kind: channel.MediaImage, Data: img})
	}

	var b strings.Builder
	for _, line := range song.Lyrics {
		b.WriteString(line.Text)
		b.WriteByte('\n')
	}
	return ch.SendText(ctx, strings.TrimRight(b.String(), "\n"))
}

// illegalFilenameChars 常见文件系统/路径/URI 语境下的非法字符。
var illegalFilenameChars = regexp.MustCompile(`[\\/:*?"<>|]`)

// SanitizeFilename 清洗展示文件名，非法字符替换为下划线，扩展名保留。
func SanitizeFilename(name string) string {
	return illegalFilenameChars.ReplaceAllString(name, "_")
}
