// Package webhook receives provider callbacks: inbound messages from contacts
// and delivery acknowledgments for outbound messages. Acks are applied through
// the lifecycle guard, so duplicates and out-of-order arrivals are dropped.
package webhook

import (
	"encoding/json"
	"log"
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

type Handler struct {
	Config  *config.Config
	Store   *store.Store
	Cache   *query.Cache
	Tracker *lifecycle.Tracker
	Hub     *ws.Hub
}

func NewHandler(cfg *config.Config, st *store.Store, cache *query.Cache, tracker *lifecycle.Tracker, hub *ws.Hub) *Handler {
	return &Handler{Config: cfg, Store: st, Cache: cache, Tracker: tracker, Hub: hub}
}

// Envelope is the provider event wrapper: {type, data}.
type Envelope struct {
	Type string          `json:"type" binding:"required"`
	Data json.RawMessage `json:"data" binding:"required"`
}

type InboundMessage struct {
	Phone   string `json:"phone"`
	Name    string `json:"name"`
	Content string `json:"content"`
	Type    string `json:"type"`
}

type StatusAck struct {
	MessageID string               `json:"message_id"`
	Status    models.MessageStatus `json:"status"`
}

// VerifyWebhook answers the subscription handshake.
func (h *Handler) VerifyWebhook(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode != "" && token != "" {
		if mode == "subscribe" && token == h.Config.VerifyToken {
			log.Println("Webhook verified successfully!")
			c.String(http.StatusOK, challenge)
		} else {
			c.Status(http.StatusForbidden)
		}
	} else {
		c.Status(http.StatusBadRequest)
	}
}

// HandleEvent dispatches a provider event envelope.
func (h *Handler) HandleEvent(c *gin.Context) {
	var envelope Envelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		log.Printf("Error binding webhook JSON: %v", err)
		c.Status(http.StatusBadRequest)
		return
	}

	switch envelope.Type {
	case "message":
		h.handleInbound(c, envelope.Data)
	case "status":
		h.handleStatus(c, envelope.Data)
	default:
		log.Printf("Ignoring webhook event type %q", envelope.Type)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
	}
}

func (h *Handler) handleInbound(c *gin.Context, data json.RawMessage) {
	var in InboundMessage
	if err := json.Unmarshal(data, &in); err != nil || in.Phone == "" || in.Content == "" {
		c.Status(http.StatusBadRequest)
		return
	}
	if in.Type == "" {
		in.Type = "text"
	}
	log.Printf("Received %s message from %s", in.Type, in.Phone)

	contact, ok := h.Store.ContactByPhone(in.Phone)
	if !ok {
		// Auto-save unknown senders, like any inbox would.
		name := in.Name
		if name == "" {
			name = in.Phone
		}
		contact = models.Contact{
			ID:        uuid.NewString(),
			Name:      name,
			Phone:     in.Phone,
			Status:    "active",
			CreatedAt: time.Now(),
		}
		contact.SetTags(nil)
		if err := database.DB.Create(&contact).Error; err != nil {
			log.Printf("Error saving contact: %v", err)
			c.Status(http.StatusInternalServerError)
			return
		}
		h.Store.UpsertContact(contact)
	}

	msg := models.Message{
		ID:        uuid.NewString(),
		ContactID: contact.ID,
		Content:   in.Content,
		Type:      in.Type,
		Direction: models.DirectionIn,
		Status:    models.StatusRead,
		Timestamp: time.Now(),
	}
	if err := database.DB.Create(&msg).Error; err != nil {
		log.Printf("Error saving inbound message: %v", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if err := database.DB.Model(&models.Contact{}).Where("id = ?", contact.ID).Updates(map[string]interface{}{
		"last_message":      msg.Content,
		"last_message_time": msg.Timestamp,
		"unread_count":      contact.UnreadCount + 1,
	}).Error; err != nil {
		log.Printf("Error updating contact preview: %v", err)
	}

	h.Store.AddMessage(msg)
	h.Cache.Invalidate(query.KeyContacts, query.KeyDashboard)
	h.Cache.Invalidate(query.KeyChats(contact.Phone))
	h.Hub.NotifyMessage(msg)
	h.Hub.NotifySuccess("New message from "+contact.Name, truncate(in.Content, 50))

	c.JSON(http.StatusOK, gin.H{"status": "received", "message_id": msg.ID})
}

func (h *Handler) handleStatus(c *gin.Context, data json.RawMessage) {
	var ack StatusAck
	if err := json.Unmarshal(data, &ack); err != nil || ack.MessageID == "" {
		c.Status(http.StatusBadRequest)
		return
	}

	applied := h.Tracker.ApplyAck(ack.MessageID, ack.Status)
	if !applied {
		log.Printf("Dropped %s ack for message %s", ack.Status, ack.MessageID)
	}

	c.JSON(http.StatusOK, gin.H{"status": "processed", "applied": applied})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
