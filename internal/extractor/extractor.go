// Package extractor 封装外部媒体提取工具 yt-dlp。
// 提取是阻塞的长耗时子进程调用，统一经由有界工作池执行，
// 避免并发请求各自无限制地拉起子进程。
package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/lrstanley/go-ytdlp"

	"github.com/moxigua/diange/internal/config"
	"github.com/moxigua/diange/internal/logger"
)

// ErrUnavailable 未安装 yt-dlp 或配置中关闭了提取器。
var ErrUnavailable = errors.New("yt-dlp 不可用")

// Entry 一条提取器搜索结果。
type Entry struct {
	ID        string
	Title     string
	Uploader  string
	Thumbnail string
	URL       string
	Duration  float64 // 秒
}

// Pool 有界提取器工作池。池满时新任务排队等待（背压），
// 已启动的 yt-dlp 进程不做协作式取消，任其运行完毕。
type Pool struct {
	sem          chan struct{}
	audioFormat  string
	audioQuality string
	cookiesFile  string
	available    bool
}

// NewPool 根据配置创建工作池。
func NewPool(cfg config.ExtractorConfig) *Pool {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	available := cfg.Enabled
	if available {
		if _, err := exec.LookPath("yt-dlp"); err != nil {
			logger.Warnf("[extractor] 未找到 yt-dlp，提取器已禁用: %v", err)
			available = false
		}
	}
	return &Pool{
		sem:          make(chan struct{}, workers),
		audioFormat:  cfg.AudioFormat,
		audioQuality: cfg.AudioQuality,
		cookiesFile:  cfg.CookiesFile,
		available:    available,
	}
}

// Available 提取器是否可用。
func (p *Pool) Available() bool {
	return p.available
}

// acquire 占用一个工作槽位，池满时阻塞等待。
func (p *Pool) acquire(ctx context.Context) error {
	select {
	case p.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) release() {
	<-p.sem
}

// Search 用 ytsearchN: 做快速扁平搜索，不解析流地址。
func (p *Pool) Search(ctx context.Context, keyword string, limit int) ([]Entry, error) {
	if !p.available {
		return nil, ErrUnavailable
	}
	if limit <= 0 {
		limit = 10
	}
	if err := p.acquire(ctx); err != nil {
		return nil, err
	}
	defer p.release()

	dl := ytdlp.New().
		Quiet().
		NoWarnings().
		IgnoreErrors().
		FlatPlaylist().
		SkipDownload().
		DumpJSON()
	p.withCookies(dl)

	query := fmt.Sprintf("ytsearch%d:%s", limit, keyword)
	result, err := dl.Run(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp 搜索失败: %w", err)
	}

	entries, err := parseEntries(result.Stdout)
	if err != nil {
		return nil, err
	}
	logger.Debugf("[extractor] 搜索 %q 返回 %d 条结果", keyword, len(entries))
	return entries, nil
}

// Download 提取指定页面的音频并转码到目标格式。
// outputTemplate 是不含扩展名判定的 yt-dlp 输出模板，
// 最终文件是否存在由调用方校验。
func (p *Pool) Download(ctx context.Context, pageURL, outputTemplate string) error {
	if !p.available {
		return ErrUnavailable
	}
	if err := p.acquire(ctx); err != nil {
		return err
	}
	defer p.release()

	dl := ytdlp.New().
		Quiet().
		NoWarnings().
		ExtractAudio().
		AudioFormat(p.audioFormat).
		AudioQuality(p.audioQuality).
		Output(outputTemplate)
	p.withCookies(dl)

	if _, err := dl.Run(ctx, pageURL); err != nil {
		return fmt.Errorf("yt-dlp 提取失败: %w", err)
	}
	return nil
}

// withCookies 提供了 cookies 文件时附加认证，缺失不算错误，
// 只是未登录状态下部分内容不可见。
func (p *Pool) withCookies(dl *ytdlp.Command) {
	if p.cookiesFile == "" {
		return
	}
	if _, err := os.Stat(p.cookiesFile); err != nil {
		return
	}
	dl.Cookies(p.cookiesFile)
}

// ytdlpEntry --dump-json 输出的单条记录（只取需要的字段）。
type ytdlpEntry struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Uploader   string  `json:"uploader"`
	Channel    string  `json:"channel"`
	Duration   float64 `json:"duration"`
	URL        string  `json:"url"`
	WebpageURL string  `json:"webpage_url"`
	Thumbnails []struct {
		URL string `json:"url"`
	} `json:"thumbnails"`
}

// parseEntries 解析 --dump-json 的逐行 JSON 输出。
func parseEntries(stdout string) ([]Entry, error) {
	var entries []Entry
	dec := json.NewDecoder(strings.NewReader(stdout))
	for {
		var raw ytdlpEntry
		if err := dec.Decode(&raw); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("解析 yt-dlp 输出失败: %w", err)
		}
		if raw.ID == "" {
			continue
		}

		uploader := raw.Uploader
		if uploader == "" {
			uploader = raw.Channel
		}
		pageURL := raw.WebpageURL
		if pageURL == "" {
			pageURL = raw.URL
		}
		if pageURL == "" {
			pageURL = "https://www.youtube.com/watch?v=" + raw.ID
		}
		thumbnail := ""
		if len(raw.Thumbnails) > 0 {
			thumbnail = raw.Thumbnails[len(raw.Thumbnails)-1].URL
		}
		if thumbnail == "" {
			thumbnail = fmt.Sprintf("https://i.ytimg.com/vi/%s/hqdefault.jpg", raw.ID)
		}

		entries = append(entries, Entry{
			ID:        raw.ID,
			Title:     raw.Title,
			Uploader:  uploader,
			Thumbnail: thumbnail,
			URL:       pageURL,
			Duration:  raw.Duration,
		})
	}
	return entries, nil
}
