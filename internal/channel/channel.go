// Package channel 定义目标渠道契约。核心流程不关心具体消息平台，
// 只依赖这里的发送原语和渠道声明的媒体能力。
package channel

import "context"

// MediaKind 媒体类型。
type MediaKind string

const (
	// MediaImage 图片，payload 为内存字节。
	MediaImage MediaKind = "image"
	// MediaVoice 语音消息，引用远端地址。
	MediaVoice MediaKind = "voice"
	// MediaFile 文件附件，引用本地路径。
	MediaFile MediaKind = "file"
	// MediaCard 可播放的音乐卡片，引用平台内歌曲 ID。
	MediaCard MediaKind = "card"
)

// Media 一条待发送的媒体内容，按 Kind 取用对应字段。
type Media struct {
	Kind MediaKind

	// Data 内存数据（image）。
	Data []byte
	// URL 远端地址（voice）。
	URL string
	// Path 本地文件路径（file）。
	Path string
	// Filename 展示文件名（file），已清洗。
	Filename string

	// CardPlatform/CardID 卡片引用的平台与歌曲（card）。
	CardPlatform string
	CardID       string
}

// Channel 一个可发送内容的目标渠道。
// 实现必须提供稳定的 DestinationID，点歌选择回复靠它关联会话。
type Channel interface {
	// SendText 发送纯文本。
	SendText(ctx context.Context, text string) error

	// SendMedia 发送媒体内容。
	SendMedia(ctx context.Context, m Media) error

	// DestinationID 返回渠道的稳定标识（群号、会话 ID 等）。
	DestinationID() string

	// IsPrivate 是否为私聊渠道。
	IsPrivate() bool

	// Accepts 渠道是否接受该媒体类型。
	Accepts(kind MediaKind) bool
}
