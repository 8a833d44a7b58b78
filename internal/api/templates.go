package api

import (
	"net/http"

	"whatsapp-console/internal/config"
	"whatsapp-console/internal/query"
	"whatsapp-console/internal/store"

	"github.com/gin-gonic/gin"
)

// Templates are read-only in the console; they are synced or seeded, never
// created here.
type TemplateHandler struct {
	Config *config.Config
	Store  *store.Store
	Cache  *query.Cache
}

func NewTemplateHandler(cfg *config.Config, st *store.Store, cache *query.Cache) *TemplateHandler {
	return &TemplateHandler{Config: cfg, Store: st, Cache: cache}
}

func (h *TemplateHandler) GetTemplates(c *gin.Context) {
	data, err := h.Cache.Get(query.KeyTemplates, h.Config.TemplatesTTL, func() (interface{}, error) {
		return h.Store.Snapshot().Templates, nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, data)
}

func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	tmpl, ok := h.Store.TemplateByID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
		return
	}
	c.JSON(http.StatusOK, tmpl)
}
