package api

import (
	"net/http"
	"time"

	"whatsapp-console/internal/config"
	"whatsapp-console/internal/database"
	"whatsapp-console/internal/lifecycle"
	"whatsapp-console/internal/models"
	"whatsapp-console/internal/query"
	"whatsapp-console/internal/store"
	"whatsapp-console/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ChatHandler struct {
	Config  *config.Config
	Store   *store.Store
	Cache   *query.Cache
	Tracker *lifecycle.Tracker
	Hub     *ws.Hub
}

func NewChatHandler(cfg *config.Config, st *store.Store, cache *query.Cache, tracker *lifecycle.Tracker, hub *ws.Hub) *ChatHandler {
	return &ChatHandler{Config: cfg, Store: st, Cache: cache, Tracker: tracker, Hub: hub}
}

// GetChatHistory returns the message thread for a phone number.
func (h *ChatHandler) GetChatHistory(c *gin.Context) {
	phone := c.Param("phone")

	contact, ok := h.Store.ContactByPhone(phone)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Contact not found"})
		return
	}

	data, err := h.Cache.Get(query.KeyChats(phone), h.Config.ChatsTTL, func() (interface{}, error) {
		return h.Store.MessagesForContact(contact.ID), nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, data)
}

// MarkRead clears the unread counter for a thread.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	phone := c.Param("phone")

	contact, ok := h.Store.ContactByPhone(phone)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Contact not found"})
		return
	}

	if err := database.DB.Model(&models.Contact{}).Where("id = ?", contact.ID).Update("unread_count", 0).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark thread read"})
		return
	}
	h.Store.MarkThreadRead(contact.ID)
	h.Cache.Invalidate(query.KeyContacts)

	c.JSON(http.StatusOK, gin.H{"status": "Thread marked read"})
}

type SendRequest struct {
	Phone    string `json:"phone" binding:"required"`
	Message  string `json:"message" binding:"required"`
	MediaURL string `json:"media_url"`
}

// SendMessage creates an outbound message with status sent and schedules its
// delivery acknowledgments.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if len(req.Message) > 4096 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Message must be less than 4096 characters"})
		return
	}

	contact, ok := h.Store.ContactByPhone(req.Phone)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Contact not found"})
		return
	}

	msgType := "text"
	if req.MediaURL != "" {
		msgType = "image"
	}

	msg := models.Message{
		ID:        uuid.NewString(),
		ContactID: contact.ID,
		Content:   req.Message,
		Type:      msgType,
		Direction: models.DirectionOut,
		Status:    models.StatusSent,
		MediaURL:  req.MediaURL,
		Timestamp: time.Now(),
	}

	if err := h.persistOutbound(&msg, contact); err != nil {
		h.Hub.NotifyError("Failed to send message", "Please try again.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send message"})
		return
	}

	c.JSON(http.StatusOK, msg)
}

type SendTemplateRequest struct {
	Phone      string   `json:"phone" binding:"required"`
	TemplateID string   `json:"template_id" binding:"required"`
	Parameters []string `json:"parameters"`
}

// SendTemplate renders an approved template and sends it as a template message.
func (h *ChatHandler) SendTemplate(c *gin.Context) {
	var req SendTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	contact, ok := h.Store.ContactByPhone(req.Phone)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Contact not found"})
		return
	}

	tmpl, ok := h.Store.TemplateByID(req.TemplateID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
		return
	}
	if tmpl.Status != "approved" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Template is not approved"})
		return
	}

	msg := models.Message{
		ID:         uuid.NewString(),
		ContactID:  contact.ID,
		Content:    tmpl.Render(req.Parameters),
		Type:       "template",
		Direction:  models.DirectionOut,
		Status:     models.StatusSent,
		TemplateID: tmpl.ID,
		Timestamp:  time.Now(),
	}

	if err := h.persistOutbound(&msg, contact); err != nil {
		h.Hub.NotifyError("Failed to send template", "Please try again.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send template"})
		return
	}

	c.JSON(http.StatusOK, msg)
}

// persistOutbound writes the message and the contact's refreshed preview to
// the database, applies both to the store, starts the delivery lifecycle and
// broadcasts the new message. The database write happens first so a failure
// leaves the store untouched.
func (h *ChatHandler) persistOutbound(msg *models.Message, contact models.Contact) error {
	if err := database.DB.Create(msg).Error; err != nil {
		return err
	}
	preview := map[string]interface{}{
		"last_message":      msg.Content,
		"last_message_time": msg.Timestamp,
	}
	if err := database.DB.Model(&models.Contact{}).Where("id = ?", contact.ID).Updates(preview).Error; err != nil {
		return err
	}

	h.Store.AddMessage(*msg)
	h.Tracker.Track(msg.ID)

	h.Cache.Invalidate(query.KeyContacts, query.KeyDashboard)
	h.Cache.Invalidate(query.KeyChats(contact.Phone))
	h.Hub.NotifyMessage(*msg)
	return nil
}
