package api

import (
	"net/http"
	"strings"
	"time"

	"whatsapp-console/internal/campaign"
	"whatsapp-console/internal/config"
	"whatsapp-console/internal/database"
	"whatsapp-console/internal/models"
	"whatsapp-console/internal/query"
	"whatsapp-console/internal/store"
	"whatsapp-console/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CampaignHandler struct {
	Config *config.Config
	Store  *store.Store
	Cache  *query.Cache
	Runner *campaign.Runner
	Hub    *ws.Hub
}

func NewCampaignHandler(cfg *config.Config, st *store.Store, cache *query.Cache, runner *campaign.Runner, hub *ws.Hub) *CampaignHandler {
	return &CampaignHandler{Config: cfg, Store: st, Cache: cache, Runner: runner, Hub: hub}
}

func (h *CampaignHandler) GetCampaigns(c *gin.Context) {
	data, err := h.Cache.Get(query.KeyCampaigns, h.Config.CampaignsTTL, func() (interface{}, error) {
		return h.Store.Snapshot().Campaigns, nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, data)
}

func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	cam, ok := h.Store.CampaignByID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Campaign not found"})
		return
	}
	c.JSON(http.StatusOK, cam)
}

type CreateCampaignRequest struct {
	Name        string   `json:"name" binding:"required"`
	TemplateID  string   `json:"template_id" binding:"required"`
	ContactIDs  []string `json:"contact_ids"`
	ScheduledAt string   `json:"scheduled_at"` // RFC3339, empty for draft
}

func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	var req CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	name := strings.TrimSpace(req.Name)
	if len(name) < 3 || len(name) > 100 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Campaign name must be between 3 and 100 characters"})
		return
	}
	if len(req.ContactIDs) == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Please choose at least one contact"})
		return
	}

	tmpl, ok := h.Store.TemplateByID(req.TemplateID)
	if !ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Please select a template"})
		return
	}

	// Unknown contact ids are rejected up front rather than skipped mid-run.
	for _, id := range req.ContactIDs {
		if _, ok := h.Store.ContactByID(id); !ok {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Campaign references an unknown contact"})
			return
		}
	}

	cam := models.Campaign{
		ID:            uuid.NewString(),
		Name:          name,
		Status:        models.CampaignDraft,
		TemplateID:    tmpl.ID,
		TemplateName:  tmpl.Name,
		TotalContacts: len(req.ContactIDs),
		CreatedAt:     time.Now(),
	}
	cam.SetContactIDs(req.ContactIDs)

	if req.ScheduledAt != "" {
		at, err := time.Parse(time.RFC3339, req.ScheduledAt)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "scheduled_at must be RFC3339"})
			return
		}
		cam.Status = models.CampaignScheduled
		cam.ScheduledAt = &at
	}

	if err := database.DB.Create(&cam).Error; err != nil {
		h.Hub.NotifyError("Failed to create campaign", "Please try again.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create campaign"})
		return
	}

	h.Store.UpsertCampaign(cam)
	h.Cache.Invalidate(query.KeyCampaigns, query.KeyDashboard)
	h.Hub.NotifySuccess("Campaign created", cam.Name)

	c.JSON(http.StatusCreated, cam)
}

// StartCampaign begins sending a draft or scheduled campaign immediately.
func (h *CampaignHandler) StartCampaign(c *gin.Context) {
	id := c.Param("id")
	cam, ok := h.Store.CampaignByID(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Campaign not found"})
		return
	}
	if cam.Status != models.CampaignDraft && cam.Status != models.CampaignScheduled {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Campaign cannot be started from status " + string(cam.Status)})
		return
	}

	go h.Runner.Run(id)

	c.JSON(http.StatusOK, gin.H{"status": "Campaign started"})
}

func (h *CampaignHandler) PauseCampaign(c *gin.Context) {
	if err := h.Runner.Pause(c.Param("id")); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	h.Cache.Invalidate(query.KeyCampaigns)
	c.JSON(http.StatusOK, gin.H{"status": "Campaign paused"})
}

func (h *CampaignHandler) ResumeCampaign(c *gin.Context) {
	if err := h.Runner.Resume(c.Param("id")); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	h.Cache.Invalidate(query.KeyCampaigns)
	c.JSON(http.StatusOK, gin.H{"status": "Campaign resumed"})
}

func (h *CampaignHandler) DeleteCampaign(c *gin.Context) {
	id := c.Param("id")
	cam, ok := h.Store.CampaignByID(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Campaign not found"})
		return
	}
	if cam.Status == models.CampaignRunning {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Pause the campaign before deleting it"})
		return
	}

	if err := database.DB.Delete(&models.Campaign{}, "id = ?", id).Error; err != nil {
		h.Hub.NotifyError("Failed to delete campaign", "Please try again.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete campaign"})
		return
	}

	h.Store.RemoveCampaign(id)
	h.Cache.Invalidate(query.KeyCampaigns, query.KeyDashboard)
	h.Hub.NotifySuccess("Campaign deleted", cam.Name)

	c.JSON(http.StatusOK, gin.H{"status": "Campaign deleted"})
}
