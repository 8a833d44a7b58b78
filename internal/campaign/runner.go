// Package campaign runs bulk template sends. A running campaign pushes one
// template message per target contact through the same store and lifecycle
// path as a chat send, and its counters are fed by lifecycle transitions, so
// sent <= total, delivered <= sent and read <= delivered hold throughout.
package campaign

import (
	"errors"
	"log"
	"time"

	"whatsapp-console/internal/database"
	"whatsapp-console/internal/lifecycle"
	"whatsapp-console/internal/models"
	"whatsapp-console/internal/query"
	"whatsapp-console/internal/store"
	"whatsapp-console/internal/ws"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

type Runner struct {
	Store   *store.Store
	Tracker *lifecycle.Tracker
	Cache   *query.Cache
	Hub     *ws.Hub

	cron *cron.Cron

	// pace between individual sends of one campaign; zero in tests
	SendInterval time.Duration
}

func NewRunner(st *store.Store, tracker *lifecycle.Tracker, cache *query.Cache, hub *ws.Hub) *Runner {
	r := &Runner{
		Store:        st,
		Tracker:      tracker,
		Cache:        cache,
		Hub:          hub,
		SendInterval: 100 * time.Millisecond,
	}
	tracker.OnTransition(r.handleTransition)
	return r
}

// StartScheduler begins scanning for due scheduled campaigns.
func (r *Runner) StartScheduler() {
	r.cron = cron.New()
	if _, err := r.cron.AddFunc("@every 30s", r.scanScheduled); err != nil {
		log.Fatalf("Failed to register campaign scheduler: %v", err)
	}
	r.cron.Start()
	log.Println("Campaign scheduler started")
}

func (r *Runner) StopScheduler() {
	if r.cron != nil {
		r.cron.Stop()
	}
}

func (r *Runner) scanScheduled() {
	now := time.Now()
	for _, cam := range r.Store.Snapshot().Campaigns {
		if cam.Status == models.CampaignScheduled && cam.ScheduledAt != nil && !cam.ScheduledAt.After(now) {
			log.Printf("Starting scheduled campaign %s (%s)", cam.Name, cam.ID)
			go r.Run(cam.ID)
		}
	}
}

// Run sends the campaign to every target contact. Safe to call in a goroutine;
// it returns when all sends are issued, the campaign is paused, or it is gone.
func (r *Runner) Run(id string) {
	cam, ok := r.setStatus(id, models.CampaignRunning)
	if !ok {
		return
	}
	r.Hub.NotifyCampaign(cam)
	r.Cache.Invalidate(query.KeyCampaigns, query.KeyDashboard)

	tmpl, ok := r.Store.TemplateByID(cam.TemplateID)
	if !ok {
		log.Printf("Campaign %s references missing template %s", cam.ID, cam.TemplateID)
		return
	}

	targets := cam.ContactIDList()
	for i := cam.Sent; i < len(targets); i++ {
		current, ok := r.Store.CampaignByID(id)
		if !ok || current.Status != models.CampaignRunning {
			// Paused or deleted mid-run; Resume picks up at the sent offset.
			return
		}

		contact, ok := r.Store.ContactByID(targets[i])
		if !ok {
			// Target deleted since creation; count it as failed so the
			// counters still add up to the total.
			r.bump(id, func(c *models.Campaign) {
				if c.Sent < c.TotalContacts {
					c.Sent++
				}
				c.Failed++
			})
			continue
		}

		if err := r.sendOne(&cam, tmpl, contact); err != nil {
			log.Printf("Campaign %s: failed to send to %s: %v", cam.ID, contact.Phone, err)
			r.bump(id, func(c *models.Campaign) {
				if c.Sent < c.TotalContacts {
					c.Sent++
				}
				c.Failed++
			})
			continue
		}

		r.bump(id, func(c *models.Campaign) {
			if c.Sent < c.TotalContacts {
				c.Sent++
			}
		})

		if r.SendInterval > 0 {
			time.Sleep(r.SendInterval)
		}
	}

	r.maybeComplete(id)
}

func (r *Runner) sendOne(cam *models.Campaign, tmpl models.Template, contact models.Contact) error {
	msg := models.Message{
		ID:         uuid.NewString(),
		ContactID:  contact.ID,
		CampaignID: cam.ID,
		Content:    tmpl.Render(nil),
		Type:       "template",
		Direction:  models.DirectionOut,
		Status:     models.StatusSent,
		TemplateID: tmpl.ID,
		Timestamp:  time.Now(),
	}

	if err := database.DB.Create(&msg).Error; err != nil {
		return err
	}

	r.Store.AddMessage(msg)
	r.Tracker.Track(msg.ID)
	r.Hub.NotifyMessage(msg)
	r.Cache.Invalidate(query.KeyChats(contact.Phone))
	return nil
}

// Pause stops a running campaign between sends.
func (r *Runner) Pause(id string) error {
	cam, ok := r.Store.CampaignByID(id)
	if !ok {
		return errors.New("campaign not found")
	}
	if cam.Status != models.CampaignRunning {
		return errors.New("campaign is not running")
	}
	if updated, ok := r.setStatus(id, models.CampaignPaused); ok {
		r.Hub.NotifyCampaign(updated)
	}
	return nil
}

// Resume continues a paused campaign from where it stopped.
func (r *Runner) Resume(id string) error {
	cam, ok := r.Store.CampaignByID(id)
	if !ok {
		return errors.New("campaign not found")
	}
	if cam.Status != models.CampaignPaused {
		return errors.New("campaign is not paused")
	}
	go r.Run(id)
	return nil
}

// handleTransition feeds the campaign counters from message lifecycle events.
func (r *Runner) handleTransition(msg models.Message, from, to models.MessageStatus) {
	if msg.CampaignID == "" {
		return
	}

	r.bump(msg.CampaignID, func(c *models.Campaign) {
		switch to {
		case models.StatusDelivered:
			if c.Delivered < c.Sent {
				c.Delivered++
			}
		case models.StatusRead:
			if c.Read < c.Delivered {
				c.Read++
			}
		case models.StatusFailed:
			c.Failed++
		}
	})

	r.maybeComplete(msg.CampaignID)
}

// bump persists and applies a counter mutation, then broadcasts the update.
func (r *Runner) bump(id string, fn func(*models.Campaign)) {
	updated, ok := r.Store.UpdateCampaign(id, fn)
	if !ok {
		return
	}
	if err := database.DB.Save(&updated).Error; err != nil {
		log.Printf("Error persisting campaign %s counters: %v", id, err)
	}
	r.Hub.NotifyCampaign(updated)
	r.Cache.Invalidate(query.KeyCampaigns, query.KeyDashboard)
}

// maybeComplete marks a campaign completed once every message has reached a
// terminal state (read or failed).
func (r *Runner) maybeComplete(id string) {
	cam, ok := r.Store.CampaignByID(id)
	if !ok || cam.Status != models.CampaignRunning {
		return
	}
	if cam.Sent < cam.TotalContacts || cam.Read+cam.Failed < cam.TotalContacts {
		return
	}

	now := time.Now()
	updated, ok := r.Store.UpdateCampaign(id, func(c *models.Campaign) {
		c.Status = models.CampaignCompleted
		c.CompletedAt = &now
	})
	if !ok {
		return
	}
	if err := database.DB.Save(&updated).Error; err != nil {
		log.Printf("Error persisting campaign %s completion: %v", id, err)
	}
	log.Printf("Campaign %s completed (%d sent, %d failed)", updated.Name, updated.Sent, updated.Failed)
	r.Hub.NotifyCampaign(updated)
	r.Cache.Invalidate(query.KeyCampaigns, query.KeyDashboard)
}

func (r *Runner) setStatus(id string, status models.CampaignStatus) (models.Campaign, bool) {
	updated, ok := r.Store.UpdateCampaign(id, func(c *models.Campaign) {
		c.Status = status
	})
	if !ok {
		return models.Campaign{}, false
	}
	if err := database.DB.Save(&updated).Error; err != nil {
		log.Printf("Error persisting campaign %s status: %v", id, err)
	}
	return updated, true
}
