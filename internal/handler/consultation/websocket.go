package consultation

import (
	"context"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/goalprobe/internal/model/consultation"
	"github.com/zhouzirui/goalprobe/internal/model/persona"
	"github.com/zhouzirui/goalprobe/internal/model/stream"
	"github.com/zhouzirui/goalprobe/internal/service/ai"
	consultationService "github.com/zhouzirui/goalprobe/internal/service/consultation"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// WebSocketHandler 咨询对话的WebSocket处理器
type WebSocketHandler struct {
	consultationSvc *consultationService.Service
	personaStore    persona.Store
	responder       ai.Responder
	// batch 为 true 时最后一个 stream_chunk 与 stream_complete 合并为一条物理消息发送。
	batch    bool
	upgrader websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(consultationSvc *consultationService.Service, personaStore persona.Store, responder ai.Responder, batch bool) *WebSocketHandler {
	return &WebSocketHandler{
		consultationSvc: consultationSvc,
		personaStore:    personaStore,
		responder:       responder,
		batch:           batch,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterWebSocketRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterWebSocketRoutes(r chi.Router) {
	r.Get("/consultations/{consultationID}/ws", h.handleWebSocket)
}

// socketWriter 串行化对连接的写入，gorilla 连接只允许一个并发写者。
type socketWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (sw *socketWriter) write(frames ...stream.Frame) error {
	payload, err := stream.EncodeBatch(frames...)
	if err != nil {
		return err
	}

	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return sw.conn.WriteMessage(websocket.TextMessage, payload)
}

func (sw *socketWriter) ping() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return sw.conn.WriteMessage(websocket.PingMessage, nil)
}

type connectionState struct {
	consultation consultation.Consultation
	persona      *persona.Persona
	request      ai.Request
}

// handleWebSocket 处理WebSocket连接
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	consultationID := chi.URLParam(r, "consultationID")

	c, err := h.consultationSvc.Get(r.Context(), consultationID)
	if err != nil {
		http.Error(w, "consultation not found", http.StatusNotFound)
		return
	}

	state := &connectionState{consultation: c}
	if p, ok := h.personaStore.FindByID(c.Persona); ok {
		state.persona = &p
	}

	g, err := h.consultationSvc.ResolveGoal(r.Context(), c)
	if err != nil {
		// 目标在咨询期间被删除时照常对话，只是失去上下文。
		log.Printf("[websocket] consultation=%s context goal unavailable: %v", c.ID, err)
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[websocket] new connection for consultation: %s", consultationID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	writer := &socketWriter{conn: conn}

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	go h.pingLoop(ctx, writer)

	state.request = ai.Request{ConsultationID: c.ID, Persona: state.persona, Goal: g}

	if err := writer.write(stream.Frame{Type: stream.TypeConnected, ConsultationID: c.ID}); err != nil {
		log.Printf("[websocket] send connected failed: %v", err)
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("[websocket] read error: %v", err)
			}
			return
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))

		frames, err := stream.ParseBatch(data)
		if err != nil {
			h.sendError(writer, "invalid frame: "+err.Error())
			continue
		}

		for _, frame := range frames {
			h.handleFrame(ctx, writer, state, frame)
		}
	}
}

func (h *WebSocketHandler) handleFrame(ctx context.Context, writer *socketWriter, state *connectionState, frame stream.Frame) {
	switch frame.Type {
	case stream.TypeMessage:
		h.handleMessage(ctx, writer, state, frame.Content)
	default:
		h.sendError(writer, "unsupported message type: "+frame.Type)
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, writer *socketWriter, state *connectionState, text string) {
	if strings.TrimSpace(text) == "" {
		h.sendError(writer, "content is required")
		return
	}

	consultationID := state.consultation.ID
	history, err := h.consultationSvc.LoadTranscript(ctx, consultationID)
	if err != nil {
		h.sendError(writer, "consultation not found")
		return
	}

	saved, err := h.consultationSvc.SaveMessage(ctx, consultation.Message{
		ConsultationID: consultationID,
		Sender:         consultation.SenderUser,
		Content:        text,
	})
	if err != nil {
		h.sendError(writer, "save message failed: "+err.Error())
		return
	}

	if err := writer.write(stream.Frame{Type: stream.TypeMessageReceived, MessageID: saved.ID}); err != nil {
		log.Printf("[websocket] send message_received failed: %v", err)
		return
	}

	req := state.request
	req.History = history
	req.UserText = text

	// 暂存上一块，以便最后一块可与 stream_complete 合并发送。
	var pending *stream.Frame
	emit := func(chunk string) error {
		if pending != nil && h.batch {
			if err := writer.write(*pending); err != nil {
				return err
			}
		}
		frame := stream.Frame{Type: stream.TypeStreamChunk, Content: chunk}
		if !h.batch {
			return writer.write(frame)
		}
		pending = &frame
		return nil
	}

	reply, err := h.responder.Stream(ctx, req, emit)
	if err != nil {
		log.Printf("[websocket] consultation=%s ai reply failed: %v", consultationID, err)
		h.sendError(writer, "ai generation failed: "+err.Error())
		return
	}

	complete := stream.Frame{Type: stream.TypeStreamComplete, MessageID: saved.ID}
	if pending != nil {
		err = writer.write(*pending, complete)
	} else {
		err = writer.write(complete)
	}
	if err != nil {
		log.Printf("[websocket] send stream_complete failed: %v", err)
		return
	}

	if _, err := h.consultationSvc.SaveMessage(ctx, consultation.Message{
		ConsultationID: consultationID,
		Sender:         consultation.SenderAssistant,
		Content:        reply,
	}); err != nil {
		log.Printf("[websocket] save assistant message failed: %v", err)
	}
}

func (h *WebSocketHandler) sendError(writer *socketWriter, message string) {
	if err := writer.write(stream.Frame{Type: stream.TypeError, Error: message}); err != nil {
		log.Printf("[websocket] send error frame failed: %v", err)
	}
}

// pingLoop 定期发送ping消息
func (h *WebSocketHandler) pingLoop(ctx context.Context, writer *socketWriter) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := writer.ping(); err != nil {
				return
			}
		}
	}
}
