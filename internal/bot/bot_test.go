package bot

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/moxigua/diange/internal/channel"
	"github.com/moxigua/diange/internal/config"
	"github.com/moxigua/diange/internal/database"
	"github.com/moxigua/diange/internal/downloader"
	"github.com/moxigua/diange/internal/music"
	"github.com/moxigua/diange/internal/playlist"
	"github.com/moxigua/diange/internal/sender"
	"github.com/moxigua/diange/internal/session"
)

// textChannel 只收文本的测试渠道，记录全部发出的文本。
type textChannel struct {
	mu    sync.Mutex
	texts []string
}

func (c *textChannel) SendText(ctx context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, text)
	return nil
}

func (c *textChannel) SendMedia(ctx context.Context, m channel.Media) error {
	return fmt.Errorf("文本渠道不支持媒体")
}

func (c *textChannel) DestinationID() string               { return "group1" }
func (c *textChannel) IsPrivate() bool                     { return false }
func (c *textChannel) Accepts(kind channel.MediaKind) bool { return false }

func (c *textChannel) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.texts))
	copy(out, c.texts)
	return out
}

// waitTexts 等待渠道积累到 n 条文本。
func (c *textChannel) waitTexts(t *testing.T, n int) []string {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if texts := c.snapshot(); len(texts) >= n {
			return texts
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("等待 %d 条文本超时，实际收到: %v", n, c.snapshot())
	return nil
}

// fakeProvider 测试用平台，搜索结果固定。
type fakeProvider struct {
	platform music.Platform
	songs    []music.Song
}

func (p *fakeProvider) Platform() music.Platform { return p.platform }
func (p *fakeProvider) Tags() []music.Tag        { return nil }

func (p *fakeProvider) Search(ctx context.Context, keyword string, limit int, extra string) ([]music.Song, error) {
	return p.songs, nil
}

func (p *fakeProvider) ResolveAudio(ctx context.Context, song *music.Song) error  { return nil }
func (p *fakeProvider) FetchLyrics(ctx context.Context, song *music.Song) error   { return nil }
func (p *fakeProvider) FetchComments(ctx context.Context, song *music.Song) error { return nil }

type botFixture struct {
	bot   *Bot
	ch    *textChannel
	bus   *session.Bus
	store *playlist.Store
}

func newBotFixture(t *testing.T, songs []music.Song) *botFixture {
	t.Helper()

	cfg := config.Default()
	cfg.Provider.SongLimit = 10
	cfg.Send.SelectTimeoutSec = 1
	cfg.Send.Modes = []string{"text"}

	reg := music.NewRegistry("fake")
	reg.Register(&fakeProvider{
		platform: music.Platform{Name: "fake", DisplayName: "测试平台", Keywords: []string{"测试点歌"}},
		songs:    songs,
	})

	dl := downloader.New(filepath.Join(t.TempDir(), "songs"), nil, nil)
	if err := dl.Init(false); err != nil {
		t.Fatalf("初始化下载器失败: %v", err)
	}
	snd := sender.New(cfg.Send, dl, nil)

	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("打开数据库失败: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("迁移失败: %v", err)
	}
	store := playlist.NewStore(db)

	bus := session.NewBus()
	return &botFixture{
		bot:   New(cfg, reg, snd, bus, store),
		ch:    &textChannel{},
		bus:   bus,
		store: store,
	}
}

// handle 模拟一条入站消息，调用方式与生产路径一致。
func (f *botFixture) handle(ctx context.Context, text string, wg *sync.WaitGroup) {
	msg := session.Message{
		ConversationID: f.ch.DestinationID(),
		SenderID:       "user1",
		SenderName:     "小明",
		Text:           text,
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		f.bot.HandleMessage(ctx, f.ch, msg)
	}()
}

var threeSongs = []music.Song{
	{ID: "1", Name: "晴天", Artists: "周杰伦"},
	{ID: "2", Name: "夜曲", Artists: "周杰伦"},
	{ID: "3", Name: "七里香", Artists: "周杰伦"},
}

func TestBot_DisambiguateAndSelect(t *testing.T) {
	f := newBotFixture(t, threeSongs)
	ctx := context.Background()
	var wg sync.WaitGroup

	f.handle(ctx, "点歌 周杰伦", &wg)

	// 第一条是编号列表
	texts := f.ch.waitTexts(t, 1)
	if !strings.Contains(texts[0], "1. 晴天") || !strings.Contains(texts[0], "3. 七里香") {
		t.Fatalf("编号列表内容: %q", texts[0])
	}

	// 等选择会话就绪后回复序号
	for !f.bus.HasSubscriber(f.ch.DestinationID()) {
		time.Sleep(time.Millisecond)
	}
	f.handle(ctx, "2", &wg)

	texts = f.ch.waitTexts(t, 2)
	if !strings.Contains(texts[1], "夜曲") {
		t.Fatalf("应投递第 2 首: %q", texts[1])
	}
	wg.Wait()

	// 成功投递应记录播放历史
	plays, err := f.store.RecentPlays(ctx, "user1", 10)
	if err != nil {
		t.Fatalf("读取播放历史失败: %v", err)
	}
	if len(plays) != 1 || plays[0].Song.Name != "夜曲" {
		t.Fatalf("播放历史: %+v", plays)
	}
}

func TestBot_DisambiguateIgnoresNoise(t *testing.T) {
	f := newBotFixture(t, threeSongs)
	ctx := context.Background()
	var wg sync.WaitGroup

	f.handle(ctx, "点歌 周杰伦", &wg)
	f.ch.waitTexts(t, 1)
	for !f.bus.HasSubscriber(f.ch.DestinationID()) {
		time.Sleep(time.Millisecond)
	}

	// 闲聊和超范围序号都应被忽略，继续等待
	f.handle(ctx, "哈哈哈", &wg)
	f.handle(ctx, "99", &wg)
	time.Sleep(50 * time.Millisecond)
	if got := f.ch.snapshot(); len(got) != 1 {
		t.Fatalf("无关消息不应产生回复: %v", got)
	}

	f.handle(ctx, "3", &wg)
	texts := f.ch.waitTexts(t, 2)
	if !strings.Contains(texts[1], "七里香") {
		t.Fatalf("应投递第 3 首: %q", texts[1])
	}
	wg.Wait()
}

func TestBot_DisambiguateCancelledByNewCommand(t *testing.T) {
	f := newBotFixture(t, threeSongs)
	ctx := context.Background()
	var wg sync.WaitGroup

	f.handle(ctx, "点歌 周杰伦", &wg)
	f.ch.waitTexts(t, 1)
	for !f.bus.HasSubscriber(f.ch.DestinationID()) {
		time.Sleep(time.Millisecond)
	}

	// 新点歌命令静默取消当前选择（空歌名只触发提示）
	f.handle(ctx, "点歌", &wg)
	wg.Wait()

	texts := f.ch.snapshot()
	if len(texts) != 2 {
		t.Fatalf("消息数: %v", texts)
	}
	if texts[1] != "未指定歌名" {
		t.Errorf("第二条应是新命令的提示: %q", texts[1])
	}
	if f.bus.HasSubscriber(f.ch.DestinationID()) {
		t.Error("选择会话应已结束")
	}
}

func TestBot_DisambiguateTimeout(t *testing.T) {
	f := newBotFixture(t, threeSongs)
	ctx := context.Background()
	var wg sync.WaitGroup

	f.handle(ctx, "点歌 周杰伦", &wg)
	texts := f.ch.waitTexts(t, 2) // 列表 + 超时提示
	wg.Wait()

	if texts[1] != "点歌超时！" {
		t.Fatalf("超时提示: %q", texts[1])
	}
}

func TestBot_SingleResultAutoPlay(t *testing.T) {
	f := newBotFixture(t, threeSongs[:1])
	ctx := context.Background()
	var wg sync.WaitGroup

	f.handle(ctx, "点歌 晴天", &wg)
	texts := f.ch.waitTexts(t, 1)
	wg.Wait()

	if len(texts) != 1 || !strings.Contains(texts[0], "晴天") {
		t.Fatalf("唯一结果应直接投递: %v", texts)
	}
	if strings.Contains(texts[0], "1.") {
		t.Errorf("唯一结果不应发编号列表: %q", texts[0])
	}
}

func TestBot_ExplicitIndex(t *testing.T) {
	f := newBotFixture(t, threeSongs)
	ctx := context.Background()
	var wg sync.WaitGroup

	f.handle(ctx, "点歌 周杰伦 2", &wg)
	texts := f.ch.waitTexts(t, 1)
	wg.Wait()

	if !strings.Contains(texts[0], "夜曲") {
		t.Fatalf("带序号点歌应直接投递第 2 首: %q", texts[0])
	}
}

func TestBot_KeywordRouting(t *testing.T) {
	f := newBotFixture(t, threeSongs[:1])
	ctx := context.Background()
	var wg sync.WaitGroup

	// 平台触发词与「点歌」等效
	f.handle(ctx, "测试点歌 晴天", &wg)
	texts := f.ch.waitTexts(t, 1)
	wg.Wait()
	if !strings.Contains(texts[0], "晴天") {
		t.Fatalf("触发词点歌应投递: %q", texts[0])
	}
}

func TestBot_UnknownCommandIgnored(t *testing.T) {
	f := newBotFixture(t, threeSongs)
	ctx := context.Background()
	var wg sync.WaitGroup

	f.handle(ctx, "今天天气不错", &wg)
	f.handle(ctx, "", &wg)
	wg.Wait()

	if texts := f.ch.snapshot(); len(texts) != 0 {
		t.Fatalf("与点歌无关的消息不应回复: %v", texts)
	}
}

func TestBot_EmptySongName(t *testing.T) {
	f := newBotFixture(t, threeSongs)
	ctx := context.Background()
	var wg sync.WaitGroup

	f.handle(ctx, "点歌", &wg)
	texts := f.ch.waitTexts(t, 1)
	wg.Wait()
	if texts[0] != "未指定歌名" {
		t.Fatalf("空歌名提示: %q", texts[0])
	}
}

func TestBot_NoSearchResult(t *testing.T) {
	f := newBotFixture(t, nil)
	ctx := context.Background()
	var wg sync.WaitGroup

	f.handle(ctx, "点歌 不存在的歌", &wg)
	texts := f.ch.waitTexts(t, 1)
	wg.Wait()
	if !strings.Contains(texts[0], "无结果") {
		t.Fatalf("无结果提示: %q", texts[0])
	}
}

func TestBot_PlaylistCommands(t *testing.T) {
	f := newBotFixture(t, threeSongs[:1])
	ctx := context.Background()
	var wg sync.WaitGroup

	f.handle(ctx, "歌单收藏 晴天", &wg)
	texts := f.ch.waitTexts(t, 1)
	if texts[0] != "已收藏【晴天_周杰伦】" {
		t.Fatalf("收藏回复: %q", texts[0])
	}
	wg.Wait()

	// 重复收藏
	f.handle(ctx, "歌单收藏 晴天", &wg)
	texts = f.ch.waitTexts(t, 2)
	if texts[1] != "【晴天】已在你的歌单中" {
		t.Fatalf("重复收藏回复: %q", texts[1])
	}
	wg.Wait()

	// 列表
	f.handle(ctx, "歌单列表", &wg)
	texts = f.ch.waitTexts(t, 3)
	if !strings.Contains(texts[2], "小明的歌单") || !strings.Contains(texts[2], "1. 晴天 - 周杰伦") {
		t.Fatalf("歌单列表: %q", texts[2])
	}
	wg.Wait()

	// 按序号点歌
	f.handle(ctx, "歌单点歌 1", &wg)
	texts = f.ch.waitTexts(t, 4)
	if !strings.Contains(texts[3], "晴天") {
		t.Fatalf("歌单点歌回复: %q", texts[3])
	}
	wg.Wait()

	// 超范围序号
	f.handle(ctx, "歌单点歌 99", &wg)
	texts = f.ch.waitTexts(t, 5)
	if !strings.Contains(texts[4], "序号超出范围") {
		t.Fatalf("超范围回复: %q", texts[4])
	}
	wg.Wait()

	// 取消收藏
	f.handle(ctx, "歌单取藏 晴天", &wg)
	texts = f.ch.waitTexts(t, 6)
	if texts[5] != "已取消收藏【晴天_周杰伦】" {
		t.Fatalf("取消收藏回复: %q", texts[5])
	}
	wg.Wait()

	// 空歌单提示
	f.handle(ctx, "歌单列表", &wg)
	texts = f.ch.waitTexts(t, 7)
	if !strings.Contains(texts[6], "你的歌单是空的") {
		t.Fatalf("空歌单回复: %q", texts[6])
	}
	wg.Wait()
}

func TestBot_LyricsQuery(t *testing.T) {
	songs := []music.Song{{ID: "1", Name: "晴天", Artists: "周杰伦"}}
	f := newBotFixture(t, songs)
	ctx := context.Background()
	var wg sync.WaitGroup

	// fakeProvider 不提供歌词，应回复获取失败
	f.handle(ctx, "查歌词 晴天", &wg)
	texts := f.ch.waitTexts(t, 1)
	wg.Wait()
	if !strings.Contains(texts[0], "歌词获取失败") {
		t.Fatalf("查歌词回复: %q", texts[0])
	}
}
