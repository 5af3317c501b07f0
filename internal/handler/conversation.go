package handler

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"leadmatch/internal/model"
)

// maxVoiceBytes caps an uploaded voice message
const maxVoiceBytes = 25 << 20

// Conversation is the client dialogue used by the handler
type Conversation interface {
	Start(ctx context.Context, clientID, handle, name string) (*model.ConversationResponse, error)
	HandleMessage(ctx context.Context, clientID, text string) (*model.ConversationResponse, error)
	HandleVoice(ctx context.Context, clientID string, audio []byte, filename string) (*model.ConversationResponse, error)
	SelectApartment(ctx context.Context, clientID string, index int) (*model.ConversationResponse, error)
	SubmitContact(ctx context.Context, clientID, contact string) (*model.ConversationResponse, error)
	Cancel(ctx context.Context, clientID string) *model.ConversationResponse
}

// ConversationHandler handles client-facing dialogue requests
type ConversationHandler struct {
	conversation Conversation
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(conversation Conversation) *ConversationHandler {
	return &ConversationHandler{conversation: conversation}
}

// Start handles POST /api/v1/clients/:id/start
func (h *ConversationHandler) Start(c *gin.Context) {
	var req model.StartRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}
	}

	startTime := time.Now()
	resp, err := h.conversation.Start(c.Request.Context(), c.Param("id"), req.Handle, req.Name)
	h.respond(c, "Start", startTime, resp, err)
}

// Message handles POST /api/v1/clients/:id/messages
func (h *ConversationHandler) Message(c *gin.Context) {
	var req model.MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	startTime := time.Now()
	resp, err := h.conversation.HandleMessage(c.Request.Context(), c.Param("id"), req.Text)
	h.respond(c, "Message", startTime, resp, err)
}

// Voice handles POST /api/v1/clients/:id/voice (multipart field "audio")
func (h *ConversationHandler) Voice(c *gin.Context) {
	file, err := c.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: audio file is required"})
		return
	}
	if file.Size > maxVoiceBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Audio file too large"})
		return
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	defer f.Close()

	audio, err := io.ReadAll(io.LimitReader(f, maxVoiceBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read audio"})
		return
	}

	startTime := time.Now()
	resp, err := h.conversation.HandleVoice(c.Request.Context(), c.Param("id"), audio, file.Filename)
	h.respond(c, "Voice", startTime, resp, err)
}

// Select handles POST /api/v1/clients/:id/selection
func (h *ConversationHandler) Select(c *gin.Context) {
	var req model.SelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	startTime := time.Now()
	resp, err := h.conversation.SelectApartment(c.Request.Context(), c.Param("id"), req.Index)
	h.respond(c, "Selection", startTime, resp, err)
}

// Contact handles POST /api/v1/clients/:id/contact
func (h *ConversationHandler) Contact(c *gin.Context) {
	var req model.ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	startTime := time.Now()
	resp, err := h.conversation.SubmitContact(c.Request.Context(), c.Param("id"), req.Contact)
	h.respond(c, "Contact", startTime, resp, err)
}

// Cancel handles POST /api/v1/clients/:id/cancel
func (h *ConversationHandler) Cancel(c *gin.Context) {
	startTime := time.Now()
	resp := h.conversation.Cancel(c.Request.Context(), c.Param("id"))
	h.respond(c, "Cancel", startTime, resp, nil)
}

func (h *ConversationHandler) respond(c *gin.Context, op string, startTime time.Time, resp *model.ConversationResponse, err error) {
	if err != nil {
		respondError(c, op, err)
		return
	}
	if resp.Replies == nil {
		resp.Replies = []string{}
	}
	resp.Took = time.Since(startTime).Milliseconds()
	c.JSON(http.StatusOK, resp)
}
