// websocket.go - WebSocket upload protocol and score progress push
package api

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/shipment-insights/backend/internal/models"
	"github.com/shipment-insights/backend/internal/storage"
)

// WebSocket message types
const (
	// Client -> Server messages
	MsgTypeUploadInit     = "upload:init"
	MsgTypeUploadChunk    = "upload:chunk"
	MsgTypeUploadComplete = "upload:complete"
	MsgTypeScoreSubscribe = "score:subscribe"
	MsgTypePing           = "ping"

	// Server -> Client messages
	MsgTypeAck         = "ack"
	MsgTypeProgress    = "progress"
	MsgTypeComplete    = "complete"
	MsgTypeError       = "error"
	MsgTypeProcessing  = "processing"
	MsgTypeScoreStatus = "score:status"
	MsgTypePong        = "pong"
)

// scoreStatusInterval paces the score status push loop
const scoreStatusInterval = 500 * time.Millisecond

// WebSocket message structure
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Upload init payload
type UploadInitPayload struct {
	FileName    string `json:"fileName"`
	TotalChunks int    `json:"totalChunks"`
	TotalSize   int64  `json:"totalSize"`
	Encoding    string `json:"encoding,omitempty"` // "gzip", "none"
}

// Upload chunk payload
type UploadChunkPayload struct {
	UploadID   string `json:"uploadId"`
	ChunkIndex int    `json:"chunkIndex"`
	Data       string `json:"data"` // Base64 encoded chunk
	IsLast     bool   `json:"isLast,omitempty"`
}

// Upload complete payload
type UploadCompletePayload struct {
	UploadID       string `json:"uploadId"`
	FileName       string `json:"fileName"`
	TotalChunks    int    `json:"totalChunks"`
	OriginalSize   int64  `json:"originalSize"`
	CompressedSize int64  `json:"compressedSize,omitempty"`
	Encoding       string `json:"encoding,omitempty"`
}

// Score subscription payload
type ScoreSubscribePayload struct {
	SessionID string `json:"sessionId"`
}

// WebSocket progress response
type WSProgressResponse struct {
	Type     string  `json:"type"`
	UploadID string  `json:"uploadId,omitempty"`
	Progress float64 `json:"progress"`
	Stage    string  `json:"stage,omitempty"`
	Message  string  `json:"message,omitempty"`
}

// WebSocket completion response
type WSCompleteResponse struct {
	Type     string           `json:"type"`
	UploadID string           `json:"uploadId,omitempty"`
	FileInfo *models.FileInfo `json:"fileInfo,omitempty"`
	Result   interface{}      `json:"result,omitempty"`
}

// WebSocket error response
type WSErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// UploadSession tracks an in-progress upload over WebSocket
type UploadSession struct {
	ID             string
	FileName       string
	TotalChunks    int
	ReceivedChunks map[int]bool
	Chunks         [][]byte
	OriginalSize   int64
	Encoding       string
	CreatedAt      time.Time
}

// WebSocketHandler manages WebSocket connections for uploads and score
// progress push
type WebSocketHandler struct {
	store      storage.Store
	sessionMgr SessionManager
	upgrader   websocket.Upgrader
	uploads    map[string]*UploadSession
	uploadsMu  sync.RWMutex
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(store storage.Store, sessionMgr SessionManager) *WebSocketHandler {
	return &WebSocketHandler{
		store:      store,
		sessionMgr: sessionMgr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from dev server
				return true
			},
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
		},
		uploads: make(map[string]*UploadSession),
	}
}

// HandleWebSocket upgrades the HTTP connection and runs the message loop
func (wsh *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	fmt.Println("[WebSocket] Client connected")

	// Send welcome message
	wsh.sendMessage(ws, WSMessage{
		Type:      "connected",
		Timestamp: time.Now().UnixMilli(),
	})

	// Main message loop
	for {
		var msg WSMessage
		err := ws.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				fmt.Printf("[WebSocket] Connection error: %v\n", err)
			}
			break
		}

		switch msg.Type {
		case MsgTypePing:
			// Respond with pong to keep connection alive
			wsh.sendMessage(ws, WSMessage{Type: MsgTypePong, Timestamp: time.Now().UnixMilli()})
		case MsgTypeUploadInit:
			wsh.handleUploadInit(ws, msg)
		case MsgTypeUploadChunk:
			wsh.handleUploadChunk(ws, msg)
		case MsgTypeUploadComplete:
			wsh.handleUploadComplete(ws, msg)
		case MsgTypeScoreSubscribe:
			wsh.handleScoreSubscribe(ws, msg)
		default:
			wsh.sendError(ws, "Unknown message type: "+msg.Type, "INVALID_TYPE")
		}
	}

	fmt.Println("[WebSocket] Client disconnected")
	return nil
}

// handleUploadInit initializes a new chunked upload session
func (wsh *WebSocketHandler) handleUploadInit(ws *websocket.Conn, msg WSMessage) {
	var payload UploadInitPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		wsh.sendError(ws, "Invalid init payload: "+err.Error(), "INVALID_PAYLOAD")
		return
	}

	uploadID := generateUploadID()
	session := &UploadSession{
		ID:             uploadID,
		FileName:       payload.FileName,
		TotalChunks:    payload.TotalChunks,
		ReceivedChunks: make(map[int]bool),
		Chunks:         make([][]byte, payload.TotalChunks),
		OriginalSize:   payload.TotalSize,
		Encoding:       payload.Encoding,
		CreatedAt:      time.Now(),
	}

	wsh.uploadsMu.Lock()
	wsh.uploads[uploadID] = session
	wsh.uploadsMu.Unlock()

	// Send acknowledgment
	wsh.sendMessage(ws, WSMessage{
		Type:      MsgTypeAck,
		ID:        uploadID,
		Timestamp: time.Now().UnixMilli(),
	})

	fmt.Printf("[WebSocket] Upload initialized: %s (%d chunks, %d bytes)\n",
		uploadID, payload.TotalChunks, payload.TotalSize)
}

// handleUploadChunk receives and stores a chunk
func (wsh *WebSocketHandler) handleUploadChunk(ws *websocket.Conn, msg WSMessage) {
	var payload UploadChunkPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		wsh.sendError(ws, "Invalid chunk payload: "+err.Error(), "INVALID_PAYLOAD")
		return
	}

	wsh.uploadsMu.Lock()
	session, exists := wsh.uploads[payload.UploadID]
	wsh.uploadsMu.Unlock()

	if !exists {
		wsh.sendError(ws, "Upload session not found: "+payload.UploadID, "SESSION_NOT_FOUND")
		return
	}

	// Decode base64 chunk
	chunkData, err := base64.StdEncoding.DecodeString(payload.Data)
	if err != nil {
		wsh.sendError(ws, "Invalid base64 data: "+err.Error(), "INVALID_DATA")
		return
	}

	if payload.ChunkIndex < 0 || payload.ChunkIndex >= session.TotalChunks {
		wsh.sendError(ws, fmt.Sprintf("Chunk index out of range: %d", payload.ChunkIndex), "INVALID_CHUNK")
		return
	}

	// Store chunk
	session.ReceivedChunks[payload.ChunkIndex] = true
	session.Chunks[payload.ChunkIndex] = chunkData

	// Calculate progress
	received := len(session.ReceivedChunks)
	progress := float64(received) / float64(session.TotalChunks) * 100

	// Send progress update
	wsh.sendMessage(ws, WSMessage{
		Type:      MsgTypeProgress,
		ID:        payload.UploadID,
		Timestamp: time.Now().UnixMilli(),
		Payload: mustJSON(WSProgressResponse{
			Type:     MsgTypeProgress,
			UploadID: payload.UploadID,
			Progress: progress,
			Stage:    "uploading",
			Message:  fmt.Sprintf("Received chunk %d/%d", received, session.TotalChunks),
		}),
	})
}

// handleUploadComplete assembles chunks and saves the dataset file
func (wsh *WebSocketHandler) handleUploadComplete(ws *websocket.Conn, msg WSMessage) {
	var payload UploadCompletePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		wsh.sendError(ws, "Invalid complete payload: "+err.Error(), "INVALID_PAYLOAD")
		return
	}

	wsh.uploadsMu.Lock()
	session, exists := wsh.uploads[payload.UploadID]
	wsh.uploadsMu.Unlock()

	if !exists {
		wsh.sendError(ws, "Upload session not found: "+payload.UploadID, "SESSION_NOT_FOUND")
		return
	}

	// Verify all chunks received
	if len(session.ReceivedChunks) != session.TotalChunks {
		wsh.sendError(ws, fmt.Sprintf("Missing chunks: got %d, expected %d",
			len(session.ReceivedChunks), session.TotalChunks), "INCOMPLETE_UPLOAD")
		return
	}

	// Send processing status
	wsh.sendMessage(ws, WSMessage{
		Type:      MsgTypeProcessing,
		ID:        payload.UploadID,
		Timestamp: time.Now().UnixMilli(),
		Payload: mustJSON(WSProgressResponse{
			Type:     MsgTypeProcessing,
			UploadID: payload.UploadID,
			Progress: 50,
			Stage:    "assembling",
			Message:  "Assembling file chunks...",
		}),
	})

	// Concatenate all chunks
	totalSize := 0
	for _, chunk := range session.Chunks {
		totalSize += len(chunk)
	}

	assembledData := make([]byte, 0, totalSize)
	for _, chunk := range session.Chunks {
		assembledData = append(assembledData, chunk...)
	}

	// Decompress if needed
	if payload.Encoding == "gzip" || session.Encoding == "gzip" {
		wsh.sendMessage(ws, WSMessage{
			Type:      MsgTypeProcessing,
			ID:        payload.UploadID,
			Timestamp: time.Now().UnixMilli(),
			Payload: mustJSON(WSProgressResponse{
				Type:     MsgTypeProcessing,
				UploadID: payload.UploadID,
				Progress: 75,
				Stage:    "decompressing",
				Message:  "Decompressing file...",
			}),
		})

		decompressed, err := decompressGzip(assembledData)
		if err != nil {
			fmt.Printf("[WebSocket] Decompression failed, using as-is: %v\n", err)
			// Continue with assembled data
		} else {
			assembledData = decompressed
		}
	}

	// Save file
	info, err := wsh.store.SaveBytes(payload.FileName, assembledData)
	if err != nil {
		wsh.sendError(ws, "Failed to save file: "+err.Error(), "SAVE_ERROR")
		return
	}

	// Clean up session
	wsh.uploadsMu.Lock()
	delete(wsh.uploads, payload.UploadID)
	wsh.uploadsMu.Unlock()

	// Send completion
	wsh.sendMessage(ws, WSMessage{
		Type:      MsgTypeComplete,
		ID:        payload.UploadID,
		Timestamp: time.Now().UnixMilli(),
		Payload: mustJSON(WSCompleteResponse{
			Type:     MsgTypeComplete,
			UploadID: payload.UploadID,
			FileInfo: info,
		}),
	})

	fmt.Printf("[WebSocket] Upload complete: %s (%d bytes)\n", info.ID, info.Size)
}

// handleScoreSubscribe pushes scoring session status until the run finishes
// or the connection drops
func (wsh *WebSocketHandler) handleScoreSubscribe(ws *websocket.Conn, msg WSMessage) {
	var payload ScoreSubscribePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		wsh.sendError(ws, "Invalid subscribe payload: "+err.Error(), "INVALID_PAYLOAD")
		return
	}

	session, ok := wsh.sessionMgr.GetSession(payload.SessionID)
	if !ok {
		wsh.sendError(ws, "Session not found: "+payload.SessionID, "SESSION_NOT_FOUND")
		return
	}

	fmt.Printf("[WebSocket] Score subscription: %s\n", payload.SessionID)

	ticker := time.NewTicker(scoreStatusInterval)
	defer ticker.Stop()

	for {
		wsh.sessionMgr.TouchSession(payload.SessionID)
		wsh.sendMessage(ws, WSMessage{
			Type:      MsgTypeScoreStatus,
			ID:        payload.SessionID,
			Timestamp: time.Now().UnixMilli(),
			Payload:   mustJSON(session),
		})

		if session.Status == models.SessionStatusComplete ||
			session.Status == models.SessionStatusError {
			wsh.sendMessage(ws, WSMessage{
				Type:      MsgTypeComplete,
				ID:        payload.SessionID,
				Timestamp: time.Now().UnixMilli(),
				Payload: mustJSON(WSCompleteResponse{
					Type:   MsgTypeComplete,
					Result: session,
				}),
			})
			return
		}

		<-ticker.C

		session, ok = wsh.sessionMgr.GetSession(payload.SessionID)
		if !ok {
			wsh.sendError(ws, "Session expired: "+payload.SessionID, "SESSION_NOT_FOUND")
			return
		}
	}
}

// Helper methods

func (wsh *WebSocketHandler) sendMessage(ws *websocket.Conn, msg WSMessage) {
	if err := ws.WriteJSON(msg); err != nil {
		fmt.Printf("[WebSocket] Failed to send message: %v\n", err)
	}
}

func (wsh *WebSocketHandler) sendError(ws *websocket.Conn, message, code string) {
	wsh.sendMessage(ws, WSMessage{
		Type:      MsgTypeError,
		Timestamp: time.Now().UnixMilli(),
		Payload: mustJSON(WSErrorResponse{
			Type:    MsgTypeError,
			Message: message,
			Code:    code,
		}),
	})
}

func generateUploadID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixMilli(), time.Now().Nanosecond())
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}

func decompressGzip(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return io.ReadAll(reader)
}
