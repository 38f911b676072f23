// Package bot 把入站消息路由到点歌、查歌词、歌单等命令，
// 并管理多结果时的选择会话。
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/moxigua/diange/internal/channel"
	"github.com/moxigua/diange/internal/config"
	"github.com/moxigua/diange/internal/logger"
	"github.com/moxigua/diange/internal/music"
	"github.com/moxigua/diange/internal/playlist"
	"github.com/moxigua/diange/internal/sender"
	"github.com/moxigua/diange/internal/session"
)

// Bot 点歌机器人核心。
type Bot struct {
	cfg    *config.Config
	reg    *music.Registry
	sender *sender.Sender
	bus    *session.Bus
	store  *playlist.Store // 可为 nil，歌单命令将提示不可用

	mu     sync.Mutex
	active map[string]struct{} // 有选择会话在等待的会话集合
}

// New 创建机器人。
func New(cfg *config.Config, reg *music.Registry, snd *sender.Sender, bus *session.Bus, store *playlist.Store) *Bot {
	return &Bot{
		cfg:    cfg,
		reg:    reg,
		sender: snd,
		bus:    bus,
		store:  store,
		active: make(map[string]struct{}),
	}
}

// HandleMessage 处理一条入站消息。消息先进总线供等待中的
// 选择会话消费，随后照常走命令路由——新命令既能取消旧会话，
// 也会立刻得到处理。调用方应每条消息一个 goroutine。
func (b *Bot) HandleMessage(ctx context.Context, ch channel.Channel, msg session.Message) {
	b.bus.Publish(msg)
	b.route(ctx, ch, msg)
}

// route 命令路由。
func (b *Bot) route(ctx context.Context, ch channel.Channel, msg session.Message) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	cmd, arg, _ := strings.Cut(text, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "查歌词":
		b.handleLyricsQuery(ctx, ch, arg)
	case "歌单收藏":
		b.handleCollect(ctx, ch, msg.SenderID, arg)
	case "歌单取藏":
		b.handleUncollect(ctx, ch, msg.SenderID, arg)
	case "歌单列表":
		b.handleListPlaylist(ctx, ch, msg)
	case "歌单点歌":
		b.handlePlayFromPlaylist(ctx, ch, msg, arg)
	default:
		var p music.Provider
		if cmd == "点歌" {
			p = b.reg.Default()
		} else {
			p = b.reg.ByKeyword(cmd)
		}
		if p == nil {
			return // 不是本机器人的命令
		}
		b.handleSongRequest(ctx, ch, p, msg, cmd, arg)
	}
}

// handleSongRequest 点歌主流程：搜索、消歧、投递。
func (b *Bot) handleSongRequest(ctx context.Context, ch channel.Channel, p music.Provider, msg session.Message, cmd, arg string) {
	if arg == "" {
		b.reply(ctx, ch, "未指定歌名")
		return
	}

	// 末尾的独立数字视为预先给出的序号
	index := 0
	songName := arg
	fields := strings.Fields(arg)
	if n, err := strconv.Atoi(fields[len(fields)-1]); err == nil && n > 0 {
		index = n
		songName = strings.TrimSpace(strings.TrimSuffix(arg, fields[len(fields)-1]))
	}
	if songName == "" {
		b.reply(ctx, ch, "未指定歌名")
		return
	}

	logger.Debugf("[bot] 通过 %s 搜索歌曲: %s", p.Platform().DisplayName, songName)
	songs := b.reg.Search(ctx, p, songName, b.cfg.Provider.SongLimit, cmd)
	if len(songs) == 0 {
		b.reply(ctx, ch, fmt.Sprintf("搜索【%s】无结果", songName))
		return
	}

	// 单结果直接当作选中第 1 首
	if len(songs) == 1 {
		index = 1
	}

	if index >= 1 && index <= len(songs) {
		b.deliver(ctx, ch, p, &songs[index-1], msg.SenderID)
		return
	}

	b.disambiguate(ctx, ch, p, songs, msg)
}

// disambiguate 发出编号列表并等待用户选择。
// 同一会话同时只允许一个选择会话。
func (b *Bot) disambiguate(ctx context.Context, ch channel.Channel, p music.Provider, songs []music.Song, msg session.Message) {
	convID := msg.ConversationID

	b.mu.Lock()
	if _, busy := b.active[convID]; busy {
		b.mu.Unlock()
		logger.Debugf("[bot] 会话 %s 已有选择会话，忽略新请求", convID)
		return
	}
	b.active[convID] = struct{}{}
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.active, convID)
		b.mu.Unlock()
	}()

	var lines []string
	lines = append(lines, fmt.Sprintf("【%s】", p.Platform().DisplayName))
	for i, song := range songs {
		lines = append(lines, fmt.Sprintf("%d. %s - %s", i+1, song.Name, song.Artists))
	}
	b.reply(ctx, ch, strings.Join(lines, "\n"))

	timeout := time.Duration(b.cfg.Send.SelectTimeoutSec) * time.Second
	var selected *music.Song

	err := b.bus.Wait(ctx, convID, timeout, func(ctrl *session.Controller, m session.Message) {
		token := strings.ToLower(m.FirstToken())
		if token == "" {
			return
		}
		// 用户改发了新命令，静默结束本次选择
		if token == "点歌" || b.reg.IsTrigger(token) {
			ctrl.Stop()
			return
		}
		n, err := strconv.Atoi(token)
		if err != nil {
			return // 与选择无关的闲聊，继续等
		}
		if n < 1 || n > len(songs) {
			return // 超范围的序号同样忽略
		}
		selected = &songs[n-1]
		ctrl.Stop()
	})

	if errors.Is(err, music.ErrTimeout) {
		b.reply(ctx, ch, "点歌超时！")
		return
	}
	if err != nil {
		logger.Warnf("[bot] 选择会话异常结束: %v", err)
		return
	}
	if selected != nil {
		b.deliver(ctx, ch, p, selected, msg.SenderID)
	}
}

// deliver 投递歌曲并记录播放历史。
func (b *Bot) deliver(ctx context.Context, ch channel.Channel, p music.Provider, song *music.Song, userID string) {
	if err := b.sender.SendSong(ctx, ch, p, song); err != nil {
		// 失败通知已由 sender 发出，这里只记录
		logger.Warnf("[bot] 歌曲投递失败: %s: %v", song, err)
		return
	}
	if b.store != nil {
		if err := b.store.RecordPlay(ctx, userID, *song, p.Platform().Name); err != nil {
			logger.Debugf("[bot] 记录播放历史失败: %v", err)
		}
	}
}

// handleLyricsQuery 查歌词 <搜索词>。
func (b *Bot) handleLyricsQuery(ctx context.Context, ch channel.Channel, keyword string) {
	p := b.reg.Default()
	if p == nil {
		b.reply(ctx, ch, "无可用平台")
		return
	}
	if keyword == "" {
		b.reply(ctx, ch, "未指定搜索词")
		return
	}
	songs := b.reg.Search(ctx, p, keyword, 1, "查歌词")
	if len(songs) == 0 {
		b.reply(ctx, ch, "没找到相关歌曲")
		return
	}
	if err := b.sender.SendLyrics(ctx, ch, p, &songs[0]); err != nil {
		logger.Warnf("[bot] 发送歌词失败: %v", err)
		b.reply(ctx, ch, fmt.Sprintf("【%s】歌词获取失败", songs[0].Name))
	}
}

// handleCollect 歌单收藏 <歌名>。
func (b *Bot) handleCollect(ctx context.Context, ch channel.Channel, userID, keyword string) {
	if b.store == nil {
		b.reply(ctx, ch, "歌单功能未启用")
		return
	}
	p := b.reg.Default()
	if p == nil {
		b.reply(ctx, ch, "无可用平台")
		return
	}
	if keyword == "" {
		b.reply(ctx, ch, "未指定歌名")
		return
	}

	songs := b.reg.Search(ctx, p, keyword, 1, "歌单收藏")
	if len(songs) == 0 {
		b.reply(ctx, ch, fmt.Sprintf("搜索【%s】无结果", keyword))
		return
	}

	song := songs[0]
	added, err := b.store.Add(ctx, userID, song, p.Platform().Name)
	if err != nil {
		logger.Errorf("[bot] 收藏失败: %v", err)
		b.reply(ctx, ch, "收藏失败")
		return
	}
	if added {
		b.reply(ctx, ch, fmt.Sprintf("已收藏【%s_%s】", song.Name, song.Artists))
	} else {
		b.reply(ctx, ch, fmt.Sprintf("【%s】已在你的歌单中", song.Name))
	}
}

// handleUncollect 歌单取藏 <歌名>。
func (b *Bot) handleUncollect(ctx context.Context, ch channel.Channel, userID, keyword string) {
	if b.store == nil {
		b.reply(ctx, ch, "歌单功能未启用")
		return
	}
	p := b.reg.Default()
	if p == nil {
		b.reply(ctx, ch, "无可用平台")
		return
	}
	if keyword == "" {
		b.reply(ctx, ch, "未指定歌名")
		return
	}

	songs := b.reg.Search(ctx, p, keyword, 1, "歌单取藏")
	if len(songs) == 0 {
		b.reply(ctx, ch, fmt.Sprintf("搜索【%s】无结果", keyword))
		return
	}

	song := songs[0]
	removed, err := b.store.Remove(ctx, userID, song.ID, p.Platform().Name)
	if err != nil {
		logger.Errorf("[bot] 取消收藏失败: %v", err)
		b.reply(ctx, ch, "取消收藏失败")
		return
	}
	if removed {
		b.reply(ctx, ch, fmt.Sprintf("已取消收藏【%s_%s】", song.Name, song.Artists))
	} else {
		b.reply(ctx, ch, fmt.Sprintf("【%s】不在你的歌单中", song.Name))
	}
}

// handleListPlaylist 歌单列表。
func (b *Bot) handleListPlaylist(ctx context.Context, ch channel.Channel, msg session.Message) {
	if b.store == nil {
		b.reply(ctx, ch, "歌单功能未启用")
		return
	}

	entries, err := b.store.List(ctx, msg.SenderID)
	if err != nil {
		logger.Errorf("[bot] 获取歌单失败: %v", err)
		b.reply(ctx, ch, "获取歌单失败")
		return
	}
	if len(entries) == 0 {
		b.reply(ctx, ch, "你的歌单是空的，使用「歌单收藏 <歌名>」来添加歌曲")
		return
	}

	name := msg.SenderName
	if name == "" {
		name = msg.SenderID
	}
	var lines []string
	lines = append(lines, fmt.Sprintf("【%s的歌单】", name))
	for i, e := range entries {
		lines = append(lines, fmt.Sprintf("%d. %s - %s", i+1, e.Song.Name, e.Song.Artists))
	}
	b.reply(ctx, ch, strings.Join(lines, "\n"))
}

// handlePlayFromPlaylist 歌单点歌 <序号>。
func (b *Bot) handlePlayFromPlaylist(ctx context.Context, ch channel.Channel, msg session.Message, arg string) {
	if b.store == nil {
		b.reply(ctx, ch, "歌单功能未启用")
		return
	}

	idx, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || idx < 1 {
		b.reply(ctx, ch, "请输入有效的序号")
		return
	}

	entries, err := b.store.List(ctx, msg.SenderID)
	if err != nil {
		logger.Errorf("[bot] 获取歌单失败: %v", err)
		b.reply(ctx, ch, "获取歌单失败")
		return
	}
	if len(entries) == 0 {
		b.reply(ctx, ch, "你的歌单是空的")
		return
	}
	if idx > len(entries) {
		b.reply(ctx, ch, fmt.Sprintf("序号超出范围，你的歌单只有%d首歌", len(entries)))
		return
	}

	entry := entries[idx-1]
	p := b.reg.ByName(entry.Platform)
	if p == nil {
		// 收藏时的平台已不可用，退回默认平台
		p = b.reg.Default()
	}
	if p == nil {
		b.reply(ctx, ch, "无可用平台")
		return
	}
	b.deliver(ctx, ch, p, &entry.Song, msg.SenderID)
}

// reply 发送文本回复，失败只记录日志。
func (b *Bot) reply(ctx context.Context, ch channel.Channel, text string) {
	if err := ch.SendText(ctx, text); err != nil {
		logger.Errorf("[bot] 发送回复失败: %v", err)
	}
}
