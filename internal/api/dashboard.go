package api

import (
	"net/http"
	"time"

	"whatsapp-console/internal/config"
	"whatsapp-console/internal/models"
	"whatsapp-console/internal/query"
	"whatsapp-console/internal/store"

	"github.com/gin-gonic/gin"
)

type DashboardHandler struct {
	Config *config.Config
	Store  *store.Store
	Cache  *query.Cache
}

func NewDashboardHandler(cfg *config.Config, st *store.Store, cache *query.Cache) *DashboardHandler {
	return &DashboardHandler{Config: cfg, Store: st, Cache: cache}
}

type DashboardStats struct {
	TotalContacts  int         `json:"total_contacts"`
	ActiveChats    int         `json:"active_chats"`
	TotalCampaigns int         `json:"total_campaigns"`
	MessagesSent   int         `json:"messages_sent"`
	DeliveryRate   float64     `json:"delivery_rate"`
	ReadRate       float64     `json:"read_rate"`
	Chart          []ChartData `json:"chart"`
}

type ChartData struct {
	Name      string `json:"name"`
	Sent      int    `json:"sent"`
	Delivered int    `json:"delivered"`
	Read      int    `json:"read"`
}

func (h *DashboardHandler) GetStats(c *gin.Context) {
	data, err := h.Cache.Get(query.KeyDashboard, h.Config.DashboardTTL, func() (interface{}, error) {
		return h.computeStats(), nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, data)
}

func (h *DashboardHandler) computeStats() DashboardStats {
	state := h.Store.Snapshot()

	stats := DashboardStats{
		TotalContacts:  len(state.Contacts),
		TotalCampaigns: len(state.Campaigns),
	}

	for _, contact := range state.Contacts {
		if contact.UnreadCount > 0 {
			stats.ActiveChats++
		}
	}

	var delivered, read int
	for _, msg := range state.Messages {
		if msg.Direction != models.DirectionOut {
			continue
		}
		stats.MessagesSent++
		// Read implies delivered for rate purposes.
		if msg.Status == models.StatusDelivered || msg.Status == models.StatusRead {
			delivered++
		}
		if msg.Status == models.StatusRead {
			read++
		}
	}
	if stats.MessagesSent > 0 {
		stats.DeliveryRate = float64(delivered) / float64(stats.MessagesSent) * 100
		stats.ReadRate = float64(read) / float64(stats.MessagesSent) * 100
	}

	stats.Chart = h.chart(state.Messages)
	return stats
}

// chart buckets the last seven days of outbound traffic by day.
func (h *DashboardHandler) chart(messages []models.Message) []ChartData {
	today := time.Now().Truncate(24 * time.Hour)
	chart := make([]ChartData, 7)
	index := make(map[string]int, 7)
	for i := 0; i < 7; i++ {
		day := today.AddDate(0, 0, i-6)
		key := day.Format("2006-01-02")
		chart[i] = ChartData{Name: day.Format("Mon")}
		index[key] = i
	}

	for _, msg := range messages {
		if msg.Direction != models.DirectionOut {
			continue
		}
		i, ok := index[msg.Timestamp.Format("2006-01-02")]
		if !ok {
			continue
		}
		chart[i].Sent++
		if msg.Status == models.StatusDelivered || msg.Status == models.StatusRead {
			chart[i].Delivered++
		}
		if msg.Status == models.StatusRead {
			chart[i].Read++
		}
	}
	return chart
}
