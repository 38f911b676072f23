package channel

import (
	"context"
	"fmt"
	"io"
)

// Console 控制台渠道，开发调试用。
// 只接受文本和文件，媒体内容打印摘要而不真正传输。
type Console struct {
	out io.Writer
	id  string
}

// NewConsole 创建控制台渠道。
func NewConsole(out io.Writer, id string) *Console {
	if id == "" {
		id = "console"
	}
	return &Console{out: out, id: id}
}

// SendText 实现 Channel 接口。
func (c *Console) SendText(ctx context.Context, text string) error {
	_, err := fmt.Fprintln(c.out, text)
	return err
}

// SendMedia 实现 Channel 接口。
func (c *Console) SendMedia(ctx context.Context, m Media) error {
	switch m.Kind {
	case MediaFile:
		_, err := fmt.Fprintf(c.out, "[文件] %s (%s)\n", m.Filename, m.Path)
		return err
	case MediaImage:
		_, err := fmt.Fprintf(c.out, "[图片] %d 字节\n", len(m.Data))
		return err
	default:
		return fmt.Errorf("控制台渠道不支持 %s", m.Kind)
	}
}

// DestinationID 实现 Channel 接口。
func (c *Console) DestinationID() string {
	return c.id
}

// IsPrivate 实现 Channel 接口。
func (c *Console) IsPrivate() bool {
	return true
}

// Accepts 实现 Channel 接口。
func (c *Console) Accepts(kind MediaKind) bool {
	return kind == MediaFile || kind == MediaImage
}
