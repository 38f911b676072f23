// Package downloader 负责把远端音频/图片取到本地：
// 图片整体读入内存，音频流式落盘，无直链的来源交给外部提取器。
package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/hajimehoshi/go-mp3"

	"github.com/moxigua/diange/internal/extractor"
	"github.com/moxigua/diange/internal/logger"
	"github.com/moxigua/diange/internal/music"
)

// copyChunkSize 音频落盘的写入块大小，用于限制峰值内存而非优化 IO。
const copyChunkSize = 32 * 1024

// Extractor 下载器需要的外部提取能力。
type Extractor interface {
	Available() bool
	Download(ctx context.Context, pageURL, outputTemplate string) error
}

// Downloader 媒体下载器。
// 下载文件名一律来自新生成的 UUID 而非歌曲元数据，
// 因此并发下载之间不会互相覆盖。
type Downloader struct {
	client   *http.Client
	songsDir string
	ext      Extractor
}

// New 创建下载器。client 为全进程共享的出站连接池。
func New(songsDir string, client *http.Client, ext Extractor) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Downloader{
		client:   client,
		songsDir: songsDir,
		ext:      ext,
	}
}

// Init 准备缓存目录。clear 为真时重建目录：存在则清空，不存在则新建。
func (d *Downloader) Init(clear bool) error {
	if clear {
		if err := os.RemoveAll(d.songsDir); err != nil {
			return fmt.Errorf("清空缓存目录失败: %w", err)
		}
		logger.Debugf("[downloader] 缓存目录已重建: %s", d.songsDir)
	}
	if err := os.MkdirAll(d.songsDir, 0755); err != nil {
		return fmt.Errorf("创建缓存目录失败: %w", err)
	}
	return nil
}

// SongsDir 返回缓存目录。
func (d *Downloader) SongsDir() string {
	return d.songsDir
}

// DownloadImage 下载图片，整体读入内存。
// downgradeTLS 为真时将 https 降级为 http，
// 这是针对证书链损坏的个别图源的显式兼容开关，默认不开。
func (d *Downloader) DownloadImage(ctx context.Context, rawURL string, downgradeTLS bool) ([]byte, error) {
	if downgradeTLS {
		rawURL = strings.Replace(rawURL, "https://", "http://", 1)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("图片下载失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("图片下载失败，HTTP 状态码: %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取图片数据失败: %w", err)
	}
	return data, nil
}

// DownloadSong 下载歌曲，返回本地文件路径。
// 提取器来源（如 Youtube 页面地址）自动转交提取器处理。
func (d *Downloader) DownloadSong(ctx context.Context, rawURL string) (string, error) {
	if IsExtractorURL(rawURL) {
		return d.downloadViaExtractor(ctx, rawURL)
	}

	name := uuid.New().String()
	filePath := filepath.Join(d.songsDir, name+".mp3")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("创建请求失败: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("歌曲下载失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("歌曲下载失败，HTTP 状态码: %d", resp.StatusCode)
	}

	f, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("创建歌曲文件失败: %w", err)
	}

	// 流式写入，固定块大小限制峰值内存
	buf := make([]byte, copyChunkSize)
	if _, err := io.CopyBuffer(f, resp.Body, buf); err != nil {
		f.Close()
		return "", fmt.Errorf("写入歌曲文件失败: %w", err)
	}
	// 路径交出去之前必须落盘完整
	if err := f.Sync(); err != nil {
		f.Close()
		return "", fmt.Errorf("刷新歌曲文件失败: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("关闭歌曲文件失败: %w", err)
	}

	logger.Debugf("[downloader] 歌曲下载完成: %s", filePath)
	return filePath, nil
}

// downloadViaExtractor 经外部提取器下载并转码。
// 提取器正常退出不代表成功，最终文件存在才算成功。
func (d *Downloader) downloadViaExtractor(ctx context.Context, pageURL string) (string, error) {
	if d.ext == nil || !d.ext.Available() {
		return "", fmt.Errorf("该来源需要提取器: %w", music.ErrCapabilityUnavailable)
	}

	name := uuid.New().String()
	template := filepath.Join(d.songsDir, name)
	finalPath := filepath.Join(d.songsDir, name+".mp3")

	if err := d.ext.Download(ctx, pageURL, template); err != nil {
		if errors.Is(err, extractor.ErrUnavailable) {
			return "", fmt.Errorf("该来源需要提取器: %w", music.ErrCapabilityUnavailable)
		}
		return "", fmt.Errorf("%w: %v", music.ErrExtraction, err)
	}

	if _, err := os.Stat(finalPath); err != nil {
		return "", fmt.Errorf("%w: 输出文件未生成", music.ErrExtraction)
	}

	logger.Debugf("[downloader] 提取完成: %s", finalPath)
	return finalPath, nil
}

// IsExtractorURL 判断地址是否属于无直链、需走提取器的来源。
func IsExtractorURL(rawURL string) bool {
	return strings.Contains(rawURL, "youtube.com") || strings.Contains(rawURL, "youtu.be")
}

// ProbeDuration 解码本地 mp3 文件，返回时长（毫秒）。
// 用于给搜索阶段拿不到时长的歌曲补上时长。
func ProbeDuration(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("打开音频文件失败: %w", err)
	}
	defer f.Close()

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		return 0, fmt.Errorf("解码音频文件失败: %w", err)
	}

	// go-mp3 输出固定为 16bit 双声道，每采样 4 字节
	samples := decoder.Length() / 4
	if decoder.SampleRate() <= 0 {
		return 0, fmt.Errorf("音频采样率无效")
	}
	return samples * 1000 / int64(decoder.SampleRate()), nil
}
