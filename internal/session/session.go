// Package session 提供会话内的消息等待原语：
// 向某个会话注册一个短生命周期订阅，逐条消费后续消息，
// 直到处理器主动结束或超时，随后订阅立即注销。
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/moxigua/diange/internal/logger"
	"github.com/moxigua/diange/internal/music"
)

// subscriberBuffer 单个订阅的消息缓冲大小。
const subscriberBuffer = 16

// Message 一条入站消息。
type Message struct {
	ConversationID string // 会话标识，与渠道 DestinationID 对应
	SenderID       string
	SenderName     string
	Text           string
}

// FirstToken 返回消息的首个空白分隔词。
func (m Message) FirstToken() string {
	fields := strings.Fields(m.Text)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Controller 等待控制器，处理器调用 Stop 结束本次等待。
type Controller struct {
	stopped bool
}

// Stop 结束等待。
func (c *Controller) Stop() {
	c.stopped = true
}

// Bus 进程内消息总线，按会话分发入站消息给活跃订阅。
type Bus struct {
	mu   sync.Mutex
	subs map[string][]chan Message
}

// NewBus 创建消息总线。
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]chan Message)}
}

// Publish 把消息分发给该会话的所有活跃订阅。
// 订阅方消费过慢时丢弃消息，不阻塞发布方。
func (b *Bus) Publish(msg Message) {
	b.mu.Lock()
	subs := b.subs[msg.ConversationID]
	channels := make([]chan Message, len(subs))
	copy(channels, subs)
	b.mu.Unlock()

	for _, ch := range channels {
		select {
		case ch <- msg:
		default:
			logger.Warnf("[session] 会话 %s 的订阅缓冲已满，丢弃消息", msg.ConversationID)
		}
	}
}

// HasSubscriber 会话当前是否有活跃订阅。
func (b *Bus) HasSubscriber(conversationID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[conversationID]) > 0
}

// subscribe 注册订阅，返回消息通道和注销函数。
func (b *Bus) subscribe(conversationID string) (<-chan Message, func()) {
	ch := make(chan Message, subscriberBuffer)

	b.mu.Lock()
	b.subs[conversationID] = append(b.subs[conversationID], ch)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[conversationID]
		for i, c := range subs {
			if c == ch {
				b.subs[conversationID] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		if len(b.subs[conversationID]) == 0 {
			delete(b.subs, conversationID)
		}
	}
	return ch, cancel
}

// Wait 在指定会话上等待消息，每收到一条调用一次 handler，
// 直到 handler 调用 Stop、超时（返回 music.ErrTimeout）
// 或 ctx 取消。返回前订阅一定被注销。
func (b *Bus) Wait(ctx context.Context, conversationID string, timeout time.Duration, handler func(ctrl *Controller, msg Message)) error {
	ch, cancel := b.subscribe(conversationID)
	defer cancel()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	ctrl := &Controller{}
	for {
		select {
		case msg := <-ch:
			handler(ctrl, msg)
			if ctrl.stopped {
				return nil
			}
		case <-timer.C:
			return music.ErrTimeout
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
