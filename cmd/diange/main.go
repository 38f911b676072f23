package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/moxigua/diange/internal/bot"
	"github.com/moxigua/diange/internal/channel"
	"github.com/moxigua/diange/internal/config"
	"github.com/moxigua/diange/internal/database"
	"github.com/moxigua/diange/internal/downloader"
	"github.com/moxigua/diange/internal/extractor"
	"github.com/moxigua/diange/internal/logger"
	"github.com/moxigua/diange/internal/music"
	"github.com/moxigua/diange/internal/playlist"
	"github.com/moxigua/diange/internal/sender"
	"github.com/moxigua/diange/internal/session"
)

func main() {
	configPath := flag.String("config", "configs/diange.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 监听系统信号，优雅关闭
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Infof("[main] 收到信号 %v，正在关闭...", sig)
		cancel()
	}()

	if err := run(ctx, cfg); err != nil && err != context.Canceled {
		logger.Errorf("[main] 运行出错: %v", err)
		os.Exit(1)
	}
	logger.Infof("[main] 已停止")
}

func run(ctx context.Context, cfg *config.Config) error {
	httpClient, err := newHTTPClient(cfg.HTTP)
	if err != nil {
		return err
	}

	pool := extractor.NewPool(cfg.Extractor)

	dl := downloader.New(cfg.Cache.Dir, httpClient, pool)
	if err := dl.Init(cfg.Cache.ClearOnStart); err != nil {
		return err
	}

	reg := music.NewRegistry(cfg.Provider.Default)
	reg.Register(music.NewNeteaseProvider(cfg.Provider.NeteaseAPI, httpClient))
	reg.Register(music.NewQQMusicProvider(cfg.Provider.QQAPI, httpClient))
	reg.Register(music.NewYoutubeProvider(pool))
	logger.Infof("[main] 已注册触发词: %v", reg.Keywords())

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return err
	}
	store := playlist.NewStore(db)

	snd := sender.New(cfg.Send, dl, nil)
	bus := session.NewBus()
	b := bot.New(cfg, reg, snd, bus, store)

	// 控制台交互：一行一条消息，方便本地验证整条流水线
	console := channel.NewConsole(os.Stdout, "console")
	logger.Infof("[main] 控制台模式，输入「点歌 <歌名>」开始")

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	var wg sync.WaitGroup
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				wg.Wait()
				return nil
			}
			msg := session.Message{
				ConversationID: console.DestinationID(),
				SenderID:       "local",
				SenderName:     "local",
				Text:           line,
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				b.HandleMessage(ctx, console, msg)
			}()
		}
	}
}

// newHTTPClient 创建全进程共享的出站 HTTP 客户端。
func newHTTPClient(cfg config.HTTPConfig) (*http.Client, error) {
	transport := &http.Transport{}
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("解析代理地址失败: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	return &http.Client{
		Transport: transport,
		Timeout:   time.Duration(cfg.TimeoutSec) * time.Second,
	}, nil
}
