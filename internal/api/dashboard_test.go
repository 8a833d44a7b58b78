package api

import (
	"net/http"
	"testing"
	"time"

	"whatsapp-console/internal/config"
	"whatsapp-console/internal/models"
	"whatsapp-console/internal/query"
	"whatsapp-console/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeStats(t *testing.T) {
	now := time.Now()
	st := store.New()
	st.Hydrate(
		[]models.Contact{
			{ID: "c-1", Name: "A B", Phone: "+1", UnreadCount: 2},
			{ID: "c-2", Name: "C D", Phone: "+2"},
		},
		[]models.Message{
			{ID: "m-1", ContactID: "c-1", Direction: models.DirectionOut, Status: models.StatusRead, Timestamp: now},
			{ID: "m-2", ContactID: "c-1", Direction: models.DirectionOut, Status: models.StatusDelivered, Timestamp: now},
			{ID: "m-3", ContactID: "c-2", Direction: models.DirectionOut, Status: models.StatusSent, Timestamp: now},
			{ID: "m-4", ContactID: "c-2", Direction: models.DirectionOut, Status: models.StatusFailed, Timestamp: now},
			{ID: "m-5", ContactID: "c-1", Direction: models.DirectionIn, Status: models.StatusRead, Timestamp: now},
		},
		[]models.Campaign{{ID: "cam-1", Name: "X"}},
		nil,
	)

	h := &DashboardHandler{Store: st, Cache: query.NewCache()}
	stats := h.computeStats()

	assert.Equal(t, 2, stats.TotalContacts)
	assert.Equal(t, 1, stats.ActiveChats)
	assert.Equal(t, 1, stats.TotalCampaigns)
	assert.Equal(t, 4, stats.MessagesSent)
	assert.InDelta(t, 50.0, stats.DeliveryRate, 0.01)
	assert.InDelta(t, 25.0, stats.ReadRate, 0.01)

	// Today's bucket is the last of the seven.
	assert.Len(t, stats.Chart, 7)
	today := stats.Chart[6]
	assert.Equal(t, 4, today.Sent)
	assert.Equal(t, 2, today.Delivered)
	assert.Equal(t, 1, today.Read)
}

func TestStatsServedFromOwnWindow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	st := store.New()
	st.UpsertContact(models.Contact{ID: "c-1", Name: "A B", Phone: "+1"})

	// Campaign lists would refetch immediately; the dashboard window is its own.
	cfg := &config.Config{DashboardTTL: time.Minute, CampaignsTTL: 0}
	h := NewDashboardHandler(cfg, st, query.NewCache())
	r := gin.New()
	r.GET("/dashboard/stats", h.GetStats)

	w := doJSON(r, http.MethodGet, "/dashboard/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	first := w.Body.String()
	assert.Contains(t, first, `"total_contacts":1`)

	st.UpsertContact(models.Contact{ID: "c-2", Name: "C D", Phone: "+2"})

	w = doJSON(r, http.MethodGet, "/dashboard/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, first, w.Body.String())
}
