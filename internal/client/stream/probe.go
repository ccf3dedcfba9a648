// Package stream drives the consultation WebSocket: it waits for the
// connection acknowledgment, sends one chat message and collects the
// streamed reply.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	model "github.com/zhouzirui/goalprobe/internal/model/stream"
)

var (
	// ErrAckTimeout means no frame arrived before the connect timeout.
	ErrAckTimeout = errors.New("timed out waiting for connected frame")
	// ErrUnexpectedAck means the first frame was not a connected frame.
	ErrUnexpectedAck = errors.New("first frame was not a connected frame")
	// ErrNoResponse means the receive timeout expired before any chunk arrived.
	ErrNoResponse = errors.New("timed out before any response chunk arrived")
)

// ServerError carries the payload of an error frame.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return "server sent error frame: " + e.Message
}

// Options 控制一次流式探测的超时与输出。
type Options struct {
	HandshakeTimeout time.Duration // WebSocket 握手超时
	ConnectTimeout   time.Duration // 等待 connected 帧的超时
	ReceiveTimeout   time.Duration // 每次读取的超时
	WriteTimeout     time.Duration // 发送消息的超时
	Echo             io.Writer     // 增量回显 stream_chunk 内容
	Logger           *log.Logger
}

// DefaultOptions 默认选项。
func DefaultOptions() Options {
	return Options{
		HandshakeTimeout: 10 * time.Second,
		ConnectTimeout:   5 * time.Second,
		ReceiveTimeout:   20 * time.Second,
		WriteTimeout:     10 * time.Second,
		Echo:             os.Stdout,
		Logger:           log.Default(),
	}
}

// Result 是累计得到的回复。
type Result struct {
	Reply     string
	Completed bool // 收到了 stream_complete
	TimedOut  bool // 读取超时但已有部分回复
	Frames    int
}

// Probe 是一次性的 WebSocket 流式探测器。
type Probe struct {
	opts   Options
	dialer *websocket.Dialer
}

// NewProbe 创建探测器，未设置的选项使用默认值。
func NewProbe(opts Options) *Probe {
	defaults := DefaultOptions()
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaults.HandshakeTimeout
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaults.ConnectTimeout
	}
	if opts.ReceiveTimeout <= 0 {
		opts.ReceiveTimeout = defaults.ReceiveTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaults.WriteTimeout
	}
	if opts.Echo == nil {
		opts.Echo = io.Discard
	}
	if opts.Logger == nil {
		opts.Logger = defaults.Logger
	}

	return &Probe{
		opts: opts,
		dialer: &websocket.Dialer{
			HandshakeTimeout: opts.HandshakeTimeout,
			Proxy:            http.ProxyFromEnvironment,
		},
	}
}

// ConsultationURL 返回某个咨询的 WebSocket 地址。
func ConsultationURL(wsBase, consultationID string) string {
	return strings.TrimRight(wsBase, "/") + "/api/v1/consultations/" + url.PathEscape(consultationID) + "/ws"
}

// Run 连接 wsURL，等待 connected 帧，发送 message，并累积流式回复。
// 返回的 Result 在出错时也包含已收到的部分内容。
func (p *Probe) Run(ctx context.Context, wsURL string, header http.Header, message string) (Result, error) {
	logger := p.opts.Logger
	logger.Println("Connecting to WebSocket...")

	conn, resp, err := p.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return Result{}, fmt.Errorf("websocket dial failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return Result{}, fmt.Errorf("websocket dial failed: %w", err)
	}
	defer conn.Close()

	// 阻塞读取不感知 ctx，取消时直接关闭连接。
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	logger.Println("✅ Connected!")

	if err := p.awaitConnected(conn); err != nil {
		return Result{}, err
	}

	logger.Println("")
	logger.Println(strings.Repeat("=", 60))
	logger.Println("TEST: Asking AI for help (WITHOUT mentioning the goal)")
	logger.Println("Expected: AI should know about the goal and reference it")
	logger.Println(strings.Repeat("=", 60))

	conn.SetWriteDeadline(time.Now().Add(p.opts.WriteTimeout))
	if err := conn.WriteJSON(model.Frame{Type: model.TypeMessage, Content: message}); err != nil {
		return Result{}, fmt.Errorf("send message: %w", err)
	}

	logger.Println("")
	logger.Println("📡 AI Response:")
	logger.Println(strings.Repeat("-", 60))

	result, err := p.collect(conn)
	if err != nil && ctx.Err() != nil {
		return result, fmt.Errorf("stream interrupted: %w", ctx.Err())
	}
	return result, err
}

func (p *Probe) awaitConnected(conn *websocket.Conn) error {
	conn.SetReadDeadline(time.Now().Add(p.opts.ConnectTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w after %s", ErrAckTimeout, p.opts.ConnectTimeout)
		}
		return fmt.Errorf("read connected frame: %w", err)
	}

	frames, err := model.ParseRecords(data)
	if err != nil {
		return fmt.Errorf("read connected frame: %w", err)
	}
	if len(frames) == 0 || frames[0].Type != model.TypeConnected {
		got := ""
		if len(frames) > 0 {
			got = frames[0].Type
		}
		return fmt.Errorf("%w: got %q", ErrUnexpectedAck, got)
	}

	p.opts.Logger.Printf("✅ Connected: %s", frames[0].Type)
	return nil
}

func (p *Probe) collect(conn *websocket.Conn) (Result, error) {
	var (
		result Result
		reply  strings.Builder
	)

	for !result.Completed {
		conn.SetReadDeadline(time.Now().Add(p.opts.ReceiveTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			result.Reply = reply.String()
			if !isTimeout(err) {
				return result, fmt.Errorf("read stream: %w", err)
			}
			p.opts.Logger.Println("⚠️  Timeout waiting for response")
			if reply.Len() == 0 {
				return result, ErrNoResponse
			}
			p.opts.Logger.Println("But we got partial response, analyzing...")
			result.TimedOut = true
			return result, nil
		}

		records, err := model.ParseRecords(data)
		if err != nil {
			result.Reply = reply.String()
			return result, err
		}

		// 同一条物理消息中 stream_complete 之后的记录仍需处理。
		for _, record := range records {
			result.Frames++
			switch record.Type {
			case model.TypeStreamChunk:
				content, err := record.Text()
				if err != nil {
					result.Reply = reply.String()
					return result, err
				}
				reply.WriteString(content)
				io.WriteString(p.opts.Echo, content)
			case model.TypeStreamComplete:
				io.WriteString(p.opts.Echo, "\n")
				p.opts.Logger.Println(strings.Repeat("-", 60))
				result.Completed = true
			case model.TypeError:
				result.Reply = reply.String()
				message := record.ErrorText()
				p.opts.Logger.Printf("❌ Error: %s", message)
				return result, &ServerError{Message: message}
			case model.TypeMessageReceived:
			default:
				p.opts.Logger.Printf("ignoring frame type %q", record.Type)
			}
		}
	}

	result.Reply = reply.String()
	return result, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
