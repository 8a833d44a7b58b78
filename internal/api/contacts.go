package api

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
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

type ContactHandler struct {
	Config  *config.Config
	Store   *store.Store
	Cache   *query.Cache
	Tracker *lifecycle.Tracker
	Hub     *ws.Hub
}

func NewContactHandler(cfg *config.Config, st *store.Store, cache *query.Cache, tracker *lifecycle.Tracker, hub *ws.Hub) *ContactHandler {
	return &ContactHandler{Config: cfg, Store: st, Cache: cache, Tracker: tracker, Hub: hub}
}

var phoneRe = regexp.MustCompile(`^[\d\s\-+()]+$`)

func validContact(name, phone string) string {
	name = strings.TrimSpace(name)
	switch {
	case len(name) < 2:
		return "Name must be at least 2 characters"
	case len(name) > 100:
		return "Name must be less than 100 characters"
	case len(phone) < 10:
		return "Phone number must be at least 10 digits"
	case len(phone) > 20:
		return "Phone number must be less than 20 digits"
	case !phoneRe.MatchString(phone):
		return "Please enter a valid phone number"
	}
	return ""
}

func (h *ContactHandler) GetContacts(c *gin.Context) {
	data, err := h.Cache.Get(query.KeyContacts, h.Config.ContactsTTL, func() (interface{}, error) {
		return h.Store.Snapshot().Contacts, nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, data)
}

type CreateContactRequest struct {
	Name  string   `json:"name" binding:"required"`
	Phone string   `json:"phone" binding:"required"`
	Email string   `json:"email"`
	Tags  []string `json:"tags"`
}

func (h *ContactHandler) CreateContact(c *gin.Context) {
	var req CreateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if msg := validContact(req.Name, req.Phone); msg != "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": msg})
		return
	}
	if _, exists := h.Store.ContactByPhone(req.Phone); exists {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "A contact with this phone already exists"})
		return
	}

	contact := models.Contact{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(req.Name),
		Phone:     req.Phone,
		Email:     req.Email,
		Status:    "active",
		CreatedAt: time.Now(),
	}
	contact.SetTags(req.Tags)

	if err := database.DB.Create(&contact).Error; err != nil {
		h.Hub.NotifyError("Failed to create contact", "Please try again.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create contact"})
		return
	}

	h.Store.UpsertContact(contact)
	h.Cache.Invalidate(query.KeyContacts, query.KeyDashboard)
	h.Hub.NotifySuccess("Contact created", contact.Name+" has been added to your contacts.")

	c.JSON(http.StatusCreated, contact)
}

type UpdateContactRequest struct {
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	Tags   []string `json:"tags"`
	Status string   `json:"status"`
}

func (h *ContactHandler) UpdateContact(c *gin.Context) {
	id := c.Param("id")
	var req UpdateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	contact, ok := h.Store.ContactByID(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Contact not found"})
		return
	}

	if req.Name != "" {
		contact.Name = strings.TrimSpace(req.Name)
	}
	if req.Email != "" {
		contact.Email = req.Email
	}
	if req.Status == "active" || req.Status == "inactive" {
		contact.Status = req.Status
	}
	if req.Tags != nil {
		contact.SetTags(req.Tags)
	}

	if err := database.DB.Save(&contact).Error; err != nil {
		h.Hub.NotifyError("Failed to update contact", "Please try again.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update contact"})
		return
	}

	h.Store.UpsertContact(contact)
	h.Cache.Invalidate(query.KeyContacts)
	h.Hub.NotifySuccess("Contact updated", "")

	c.JSON(http.StatusOK, contact)
}

func (h *ContactHandler) DeleteContact(c *gin.Context) {
	h.deleteContacts(c, []string{c.Param("id")})
}

type BulkDeleteRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

func (h *ContactHandler) BulkDeleteContacts(c *gin.Context) {
	var req BulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if len(req.IDs) == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "No contacts selected"})
		return
	}
	h.deleteContacts(c, req.IDs)
}

func (h *ContactHandler) deleteContacts(c *gin.Context, ids []string) {
	// Cancel pending delivery timers before the contacts disappear so a late
	// timer can't touch a dangling thread.
	for _, id := range ids {
		h.Tracker.CancelContact(id)
	}

	result := database.DB.Where("id IN ?", ids).Delete(&models.Contact{})
	if result.Error != nil {
		h.Hub.NotifyError("Failed to delete contacts", "Please try again.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete contacts"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Contact not found"})
		return
	}

	removed := h.Store.RemoveContacts(ids)
	h.Cache.Invalidate(query.KeyContacts, query.KeyDashboard)
	h.Cache.InvalidatePrefix("chats:")
	if len(removed) == 1 {
		h.Hub.NotifySuccess("Contact deleted", "")
	} else {
		h.Hub.NotifySuccess(fmt.Sprintf("%d contacts deleted", len(removed)), "")
	}

	c.JSON(http.StatusOK, gin.H{"status": "Contacts deleted", "deleted": len(removed)})
}

type TagRequest struct {
	Tag string `json:"tag" binding:"required"`
}

// AddTag adds a tag to a contact. Tags are a set: re-adding an existing tag
// leaves exactly one occurrence.
func (h *ContactHandler) AddTag(c *gin.Context) {
	id := c.Param("id")
	var req TagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	contact, ok := h.Store.ContactByID(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Contact not found"})
		return
	}

	tags := contact.TagList()
	exists := false
	for _, t := range tags {
		if t == req.Tag {
			exists = true
			break
		}
	}
	if !exists {
		// Persist the new tag set before touching the store.
		next := contact
		next.SetTags(append(tags, req.Tag))
		if err := database.DB.Model(&models.Contact{}).Where("id = ?", id).Update("tags", next.Tags).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save tag"})
			return
		}
		h.Store.AddTag(id, req.Tag)
		h.Cache.Invalidate(query.KeyContacts)
	}

	contact, _ = h.Store.ContactByID(id)
	c.JSON(http.StatusOK, contact)
}

func (h *ContactHandler) RemoveTag(c *gin.Context) {
	id := c.Param("id")
	tag := c.Param("tag")

	contact, ok := h.Store.ContactByID(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Contact not found"})
		return
	}

	tags := contact.TagList()
	kept := make([]string, 0, len(tags))
	for _, t := range tags {
		if t != tag {
			kept = append(kept, t)
		}
	}
	if len(kept) != len(tags) {
		next := contact
		next.SetTags(kept)
		if err := database.DB.Model(&models.Contact{}).Where("id = ?", id).Update("tags", next.Tags).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove tag"})
			return
		}
		h.Store.RemoveTag(id, tag)
		h.Cache.Invalidate(query.KeyContacts)
	}

	contact, _ = h.Store.ContactByID(id)
	c.JSON(http.StatusOK, contact)
}

func (h *ContactHandler) ExportContacts(c *gin.Context) {
	contacts := h.Store.Snapshot().Contacts

	// Build CSV content
	csv := "Name,Phone,Email,Tags,Status,Created At\n"
	for _, contact := range contacts {
		tags := strings.Join(contact.TagList(), ";")
		csv += fmt.Sprintf("%s,%s,%s,%s,%s,%s\n",
			contact.Name, contact.Phone, contact.Email, tags, contact.Status,
			contact.CreatedAt.Format(time.RFC3339))
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=contacts.csv")
	c.String(http.StatusOK, csv)
}
