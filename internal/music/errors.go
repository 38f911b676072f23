package music

import "errors"

var (
	// ErrNotFound 搜索无结果，或歌曲没有歌词/评论。
	ErrNotFound = errors.New("未找到相关内容")

	// ErrCapabilityUnavailable 可选能力缺失，
	// 如未安装 yt-dlp 或目标渠道不支持该发送方式。
	ErrCapabilityUnavailable = errors.New("能力不可用")

	// ErrExtraction 外部提取器运行了但没有产出有效文件。
	ErrExtraction = errors.New("音频提取失败")

	// ErrTimeout 交互等待超时。
	ErrTimeout = errors.New("等待超时")

	// ErrCancelled 用户主动取消。
	ErrCancelled = errors.New("已取消")
)
