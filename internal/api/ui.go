package api

import (
	"net/http"

	"whatsapp-console/internal/store"
	"whatsapp-console/internal/ws"

	"github.com/gin-gonic/gin"
)

// UIHandler manages the dashboard flags held in the store (theme, sidebar,
// search, selection). Changes are synced to every connected dashboard over
// the event stream.
type UIHandler struct {
	Store *store.Store
	Hub   *ws.Hub
}

func NewUIHandler(st *store.Store, hub *ws.Hub) *UIHandler {
	return &UIHandler{Store: st, Hub: hub}
}

type UIState struct {
	SelectedContactID string `json:"selected_contact_id"`
	SidebarOpen       bool   `json:"sidebar_open"`
	SearchQuery       string `json:"search_query"`
	Theme             string `json:"theme"`
}

func (h *UIHandler) uiState() UIState {
	state := h.Store.Snapshot()
	return UIState{
		SelectedContactID: state.SelectedContactID,
		SidebarOpen:       state.SidebarOpen,
		SearchQuery:       state.SearchQuery,
		Theme:             state.Theme,
	}
}

func (h *UIHandler) GetUIState(c *gin.Context) {
	c.JSON(http.StatusOK, h.uiState())
}

// ToggleTheme flips light/dark; toggling twice restores the original theme.
func (h *UIHandler) ToggleTheme(c *gin.Context) {
	theme := h.Store.ToggleTheme()
	h.Hub.BroadcastEvent("sync", gin.H{"theme": theme})
	c.JSON(http.StatusOK, gin.H{"theme": theme})
}

type SidebarRequest struct {
	Open *bool `json:"open" binding:"required"`
}

func (h *UIHandler) SetSidebar(c *gin.Context) {
	var req SidebarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	h.Store.SetSidebarOpen(*req.Open)
	c.JSON(http.StatusOK, h.uiState())
}

type SearchRequest struct {
	Query string `json:"query"`
}

func (h *UIHandler) SetSearch(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	h.Store.SetSearchQuery(req.Query)
	c.JSON(http.StatusOK, h.uiState())
}

type SelectContactRequest struct {
	ContactID string `json:"contact_id"`
}

// SelectContact records the open thread. An empty id clears the selection.
func (h *UIHandler) SelectContact(c *gin.Context) {
	var req SelectContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if req.ContactID != "" {
		if _, ok := h.Store.ContactByID(req.ContactID); !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Contact not found"})
			return
		}
	}
	h.Store.SetSelectedContact(req.ContactID)
	c.JSON(http.StatusOK, h.uiState())
}
