package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config 是点歌机器人的顶层配置结构。
type Config struct {
	DataDir   string          `yaml:"data_dir"`
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Provider  ProviderConfig  `yaml:"provider"`
	Send      SendConfig      `yaml:"send"`
	Cache     CacheConfig     `yaml:"cache"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Database  DatabaseConfig  `yaml:"database"`
}

// LogConfig 日志配置。
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
}

// HTTPConfig 出站 HTTP 客户端配置。
type HTTPConfig struct {
	// Proxy HTTP 代理地址，如 http://127.0.0.1:7890，为空则直连。
	Proxy string `yaml:"proxy"`
	// TimeoutSec 单次请求超时（秒）。
	TimeoutSec int `yaml:"timeout_sec"`
}

// ProviderConfig 音乐平台配置。
type ProviderConfig struct {
	// Default 默认平台名，"点歌" 命令未指定平台时使用。
	Default string `yaml:"default"`
	// SongLimit 搜索返回的最大歌曲数。
	SongLimit int `yaml:"song_limit"`
	// NeteaseAPI NeteaseCloudMusicApi 服务地址。
	NeteaseAPI string `yaml:"netease_api"`
	// QQAPI QQMusicApi 服务地址。
	QQAPI string `yaml:"qq_api"`
}

// SendConfig 歌曲发送配置。
type SendConfig struct {
	// Modes 发送方式降级顺序，可选 card、record、file、text。
	Modes []string `yaml:"modes"`
	// SelectTimeoutSec 点歌选择的等待超时（秒）。
	SelectTimeoutSec int `yaml:"select_timeout_sec"`
	// EnableComments 发送成功后附带一条热门评论。
	EnableComments bool `yaml:"enable_comments"`
	// EnableLyrics 发送成功后附带歌词。
	EnableLyrics bool `yaml:"enable_lyrics"`
}

// CacheConfig 歌曲缓存目录配置。
type CacheConfig struct {
	// Dir 下载缓存目录，为空则使用 <data_dir>/songs。
	Dir string `yaml:"dir"`
	// ClearOnStart 启动时重建缓存目录。
	ClearOnStart bool `yaml:"clear_on_start"`
}

// ExtractorConfig 外部提取器（yt-dlp）配置。
type ExtractorConfig struct {
	// Enabled 是否启用提取器。关闭后 Youtube 平台及相关下载不可用。
	Enabled bool `yaml:"enabled"`
	// Workers 提取器工作协程上限，同时运行的 yt-dlp 进程数。
	Workers int `yaml:"workers"`
	// AudioFormat 提取后转码的目标格式。
	AudioFormat string `yaml:"audio_format"`
	// AudioQuality 目标码率，如 192K。
	AudioQuality string `yaml:"audio_quality"`
	// CookiesFile Netscape 格式 cookies 文件路径，为空则使用 <data_dir>/cookies.txt（存在时）。
	CookiesFile string `yaml:"cookies_file"`
}

// DatabaseConfig 数据库配置。
type DatabaseConfig struct {
	// Path SQLite 文件路径，为空则使用 <data_dir>/diange.db。
	Path string `yaml:"path"`
}

// Load 读取 YAML 配置文件并返回 Config。
// 支持 ${VAR_NAME} 形式的环境变量展开。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
	}

	// 展开环境变量，如 ${DIANGE_HTTP_PROXY}
	expanded := os.Expand(string(data), func(key string) string {
		return os.Getenv(key)
	})

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
	}

	setDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default 返回填充默认值的配置（不读取文件）。
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// setDefaults 为未设置的配置项填充默认值。
func setDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		home, _ := os.UserHomeDir()
		if home != "" {
			cfg.DataDir = filepath.Join(home, ".diange")
		} else {
			cfg.DataDir = "./.diange-data"
		}
	} else if strings.HasPrefix(cfg.DataDir, "~/") {
		// Go 不会自动展开 ~，需要手动替换为用户主目录
		home, _ := os.UserHomeDir()
		if home != "" {
			cfg.DataDir = home + cfg.DataDir[1:]
		}
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.HTTP.TimeoutSec == 0 {
		cfg.HTTP.TimeoutSec = 30
	}
	if cfg.Provider.Default == "" {
		cfg.Provider.Default = "netease"
	}
	if cfg.Provider.SongLimit == 0 {
		cfg.Provider.SongLimit = 10
	}
	if cfg.Provider.NeteaseAPI == "" {
		cfg.Provider.NeteaseAPI = "http://localhost:3000"
	}
	if cfg.Provider.QQAPI == "" {
		cfg.Provider.QQAPI = "http://localhost:3300"
	}
	if len(cfg.Send.Modes) == 0 {
		cfg.Send.Modes = []string{"card", "record", "file", "text"}
	}
	if cfg.Send.SelectTimeoutSec == 0 {
		cfg.Send.SelectTimeoutSec = 30
	}
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = filepath.Join(cfg.DataDir, "songs")
	}
	if cfg.Extractor.Workers == 0 {
		cfg.Extractor.Workers = 2
	}
	if cfg.Extractor.AudioFormat == "" {
		cfg.Extractor.AudioFormat = "mp3"
	}
	if cfg.Extractor.AudioQuality == "" {
		cfg.Extractor.AudioQuality = "192K"
	}
	if cfg.Extractor.CookiesFile == "" {
		cfg.Extractor.CookiesFile = filepath.Join(cfg.DataDir, "cookies.txt")
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = filepath.Join(cfg.DataDir, "diange.db")
	}
}

// validate 校验配置取值。
func validate(cfg *Config) error {
	for _, mode := range cfg.Send.Modes {
		switch mode {
		case "card", "record", "file", "text":
		default:
			return fmt.Errorf("未知的发送方式: %s", mode)
		}
	}
	if cfg.Provider.SongLimit < 1 {
		return fmt.Errorf("song_limit 必须大于 0")
	}
	return nil
}
