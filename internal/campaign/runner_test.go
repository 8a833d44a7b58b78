package campaign

import (
	"fmt"
	"testing"
	"time"

	"whatsapp-console/internal/database"
	"whatsapp-console/internal/lifecycle"
	"whatsapp-console/internal/models"
	"whatsapp-console/internal/query"
	"whatsapp-console/internal/store"
	"whatsapp-console/internal/ws"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupDB(t *testing.T) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	database.DB = db
}

func setupRunner(t *testing.T, deliveredAfter, readAfter time.Duration, contacts int) (*Runner, *store.Store, models.Campaign) {
	t.Helper()
	setupDB(t)

	st := store.New()
	tracker := lifecycle.NewTracker(st, deliveredAfter, readAfter, 0)
	tracker.SetPersist(func(messageID string, status models.MessageStatus) error {
		return database.DB.Model(&models.Message{}).Where("id = ?", messageID).Update("status", status).Error
	})
	t.Cleanup(tracker.Stop)
	hub := ws.NewHub()
	go hub.Run()

	tmpl := models.Template{ID: "tpl-1", Name: "welcome", Status: "approved", Content: "Welcome aboard"}
	require.NoError(t, database.DB.Create(&tmpl).Error)
	st.SetTemplates([]models.Template{tmpl})

	ids := make([]string, 0, contacts)
	for i := 0; i < contacts; i++ {
		c := models.Contact{
			ID:    fmt.Sprintf("c-%d", i),
			Name:  fmt.Sprintf("Contact %d", i),
			Phone: fmt.Sprintf("+1555000%04d", i),
		}
		require.NoError(t, database.DB.Create(&c).Error)
		st.UpsertContact(c)
		ids = append(ids, c.ID)
	}

	cam := models.Campaign{
		ID:            "cam-1",
		Name:          "Welcome Outreach",
		Status:        models.CampaignDraft,
		TemplateID:    tmpl.ID,
		TemplateName:  tmpl.Name,
		TotalContacts: contacts,
	}
	cam.SetContactIDs(ids)
	require.NoError(t, database.DB.Create(&cam).Error)
	st.UpsertCampaign(cam)

	r := NewRunner(st, tracker, query.NewCache(), hub)
	r.SendInterval = 0
	return r, st, cam
}

func TestRunToCompletion(t *testing.T) {
	r, st, cam := setupRunner(t, 10*time.Millisecond, 20*time.Millisecond, 3)

	r.Run(cam.ID)

	require.Eventually(t, func() bool {
		current, ok := st.CampaignByID(cam.ID)
		return ok && current.Status == models.CampaignCompleted
	}, 2*time.Second, 10*time.Millisecond)

	current, _ := st.CampaignByID(cam.ID)
	assert.Equal(t, 3, current.Sent)
	assert.Equal(t, 3, current.Delivered)
	assert.Equal(t, 3, current.Read)
	assert.Equal(t, 0, current.Failed)
	assert.NotNil(t, current.CompletedAt)

	// One outbound template message per target, all read.
	var count int64
	require.NoError(t, database.DB.Model(&models.Message{}).
		Where("campaign_id = ? AND status = ?", cam.ID, models.StatusRead).
		Count(&count).Error)
	assert.EqualValues(t, 3, count)
}

func TestCounterInvariantsDuringRun(t *testing.T) {
	r, st, cam := setupRunner(t, 5*time.Millisecond, 10*time.Millisecond, 5)

	done := make(chan struct{})
	go func() {
		r.Run(cam.ID)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		current, ok := st.CampaignByID(cam.ID)
		require.True(t, ok)
		assert.LessOrEqual(t, current.Sent, current.TotalContacts)
		assert.LessOrEqual(t, current.Delivered, current.Sent)
		assert.LessOrEqual(t, current.Read, current.Delivered)
		if current.Status == models.CampaignCompleted {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("campaign never completed: %+v", current)
		case <-time.After(5 * time.Millisecond):
		}
	}
	<-done
}

func TestDeletedTargetCountsAsFailed(t *testing.T) {
	r, st, cam := setupRunner(t, 10*time.Millisecond, 20*time.Millisecond, 3)

	// Drop one target between creation and run.
	st.RemoveContacts([]string{"c-1"})

	r.Run(cam.ID)

	require.Eventually(t, func() bool {
		current, ok := st.CampaignByID(cam.ID)
		return ok && current.Status == models.CampaignCompleted
	}, 2*time.Second, 10*time.Millisecond)

	current, _ := st.CampaignByID(cam.ID)
	assert.Equal(t, 3, current.Sent)
	assert.Equal(t, 2, current.Read)
	assert.Equal(t, 1, current.Failed)
}

func TestPauseStopsBetweenSends(t *testing.T) {
	r, st, cam := setupRunner(t, time.Hour, time.Hour, 4)
	r.SendInterval = 20 * time.Millisecond

	go r.Run(cam.ID)

	require.Eventually(t, func() bool {
		current, ok := st.CampaignByID(cam.ID)
		return ok && current.Sent >= 1
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, r.Pause(cam.ID))

	// Let an in-flight iteration finish before sampling the offset.
	time.Sleep(50 * time.Millisecond)
	paused, _ := st.CampaignByID(cam.ID)
	sentAtPause := paused.Sent
	assert.Equal(t, models.CampaignPaused, paused.Status)
	assert.Less(t, sentAtPause, paused.TotalContacts)

	// No further sends while paused.
	time.Sleep(100 * time.Millisecond)
	still, _ := st.CampaignByID(cam.ID)
	assert.Equal(t, sentAtPause, still.Sent)

	require.NoError(t, r.Resume(cam.ID))
	require.Eventually(t, func() bool {
		current, ok := st.CampaignByID(cam.ID)
		return ok && current.Sent == current.TotalContacts
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPauseRequiresRunning(t *testing.T) {
	r, _, cam := setupRunner(t, time.Hour, time.Hour, 1)

	assert.Error(t, r.Pause(cam.ID))
	assert.Error(t, r.Resume(cam.ID))
	assert.Error(t, r.Pause("missing"))
}
