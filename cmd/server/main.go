package main

import (
	"log"
	"net/http"

	"whatsapp-console/internal/api"
	"whatsapp-console/internal/auth"
	"whatsapp-console/internal/campaign"
	"whatsapp-console/internal/config"
	"whatsapp-console/internal/database"
	"whatsapp-console/internal/lifecycle"
	"whatsapp-console/internal/models"
	"whatsapp-console/internal/query"
	"whatsapp-console/internal/store"
	"whatsapp-console/internal/webhook"
	"whatsapp-console/internal/ws"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.LoadConfig()
	database.InitGorm(cfg)

	appStore := store.New()
	hydrateStore(appStore)

	hub := ws.NewHub()
	go hub.Run()

	cache := query.NewCache()

	tracker := lifecycle.NewTracker(appStore, cfg.DeliveredAfter, cfg.ReadAfter, cfg.AckTimeout)
	tracker.SetPersist(func(messageID string, status models.MessageStatus) error {
		return database.DB.Model(&models.Message{}).Where("id = ?", messageID).Update("status", status).Error
	})
	tracker.OnTransition(func(msg models.Message, from, to models.MessageStatus) {
		hub.NotifyStatus(msg)
		cache.Invalidate(query.KeyDashboard)
		if contact, ok := appStore.ContactByID(msg.ContactID); ok {
			cache.Invalidate(query.KeyChats(contact.Phone))
		}
	})

	runner := campaign.NewRunner(appStore, tracker, cache, hub)
	runner.StartScheduler()
	defer runner.StopScheduler()

	// Every state change pushes a lightweight sync hint so idle dashboards
	// know to refetch.
	appStore.Subscribe(func(state store.State) {
		hub.BroadcastEvent("sync", map[string]int{
			"contacts":  len(state.Contacts),
			"messages":  len(state.Messages),
			"campaigns": len(state.Campaigns),
		})
	})

	r := gin.Default()

	// CORS Middleware
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	authHandler := api.NewAuthHandler(cfg)
	contactHandler := api.NewContactHandler(cfg, appStore, cache, tracker, hub)
	chatHandler := api.NewChatHandler(cfg, appStore, cache, tracker, hub)
	campaignHandler := api.NewCampaignHandler(cfg, appStore, cache, runner, hub)
	templateHandler := api.NewTemplateHandler(cfg, appStore, cache)
	dashboardHandler := api.NewDashboardHandler(cfg, appStore, cache)
	uiHandler := api.NewUIHandler(appStore, hub)
	webhookHandler := webhook.NewHandler(cfg, appStore, cache, tracker, hub)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "clients": hub.ClientCount()})
	})

	// Webhook Routes (provider-facing, verified by token)
	r.GET("/webhook", webhookHandler.VerifyWebhook)
	r.POST("/webhook", webhookHandler.HandleEvent)

	// Auth Routes
	r.POST("/auth/register", authHandler.Register)
	r.POST("/auth/login", authHandler.Login)

	// Dashboard API Routes
	apiGroup := r.Group("/api")
	apiGroup.Use(auth.Middleware(cfg.JWTSecret))
	{
		apiGroup.GET("/auth/me", authHandler.Me)
		apiGroup.POST("/auth/logout", authHandler.Logout)

		// CRM Routes
		apiGroup.GET("/contacts", contactHandler.GetContacts)
		apiGroup.POST("/contacts", contactHandler.CreateContact)
		apiGroup.PUT("/contacts/:id", contactHandler.UpdateContact)
		apiGroup.DELETE("/contacts/:id", contactHandler.DeleteContact)
		apiGroup.POST("/contacts/bulk-delete", contactHandler.BulkDeleteContacts)
		apiGroup.POST("/contacts/:id/tags", contactHandler.AddTag)
		apiGroup.DELETE("/contacts/:id/tags/:tag", contactHandler.RemoveTag)
		apiGroup.GET("/contacts/export", contactHandler.ExportContacts)

		// Chat Routes
		apiGroup.GET("/chats/:phone", chatHandler.GetChatHistory)
		apiGroup.POST("/chats/:phone/read", chatHandler.MarkRead)
		apiGroup.POST("/send", chatHandler.SendMessage)
		apiGroup.POST("/send-template", chatHandler.SendTemplate)

		// Campaign Routes
		apiGroup.GET("/campaigns", campaignHandler.GetCampaigns)
		apiGroup.GET("/campaigns/:id", campaignHandler.GetCampaign)
		apiGroup.POST("/campaigns", campaignHandler.CreateCampaign)
		apiGroup.DELETE("/campaigns/:id", campaignHandler.DeleteCampaign)
		apiGroup.POST("/campaigns/:id/start", campaignHandler.StartCampaign)
		apiGroup.POST("/campaigns/:id/pause", campaignHandler.PauseCampaign)
		apiGroup.POST("/campaigns/:id/resume", campaignHandler.ResumeCampaign)

		// Template Routes
		apiGroup.GET("/templates", templateHandler.GetTemplates)
		apiGroup.GET("/templates/:id", templateHandler.GetTemplate)

		// Dashboard + UI Routes
		apiGroup.GET("/dashboard/stats", dashboardHandler.GetStats)
		apiGroup.GET("/ui", uiHandler.GetUIState)
		apiGroup.POST("/ui/theme/toggle", uiHandler.ToggleTheme)
		apiGroup.PUT("/ui/sidebar", uiHandler.SetSidebar)
		apiGroup.PUT("/ui/search", uiHandler.SetSearch)
		apiGroup.PUT("/ui/selected-contact", uiHandler.SelectContact)

		// Event stream (token via query parameter)
		apiGroup.GET("/ws", func(c *gin.Context) {
			hub.ServeWs(c.Writer, c.Request)
		})
	}

	log.Printf("Server starting on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}

// hydrateStore loads the working set from the database.
func hydrateStore(appStore *store.Store) {
	var contacts []models.Contact
	var messages []models.Message
	var campaigns []models.Campaign
	var templates []models.Template

	if err := database.DB.Order("created_at DESC").Find(&contacts).Error; err != nil {
		log.Fatalf("Failed to load contacts: %v", err)
	}
	if err := database.DB.Order("timestamp ASC").Find(&messages).Error; err != nil {
		log.Fatalf("Failed to load messages: %v", err)
	}
	if err := database.DB.Order("created_at DESC").Find(&campaigns).Error; err != nil {
		log.Fatalf("Failed to load campaigns: %v", err)
	}
	if err := database.DB.Find(&templates).Error; err != nil {
		log.Fatalf("Failed to load templates: %v", err)
	}

	appStore.Hydrate(contacts, messages, campaigns, templates)
	log.Printf("Store hydrated: %d contacts, %d messages, %d campaigns, %d templates",
		len(contacts), len(messages), len(campaigns), len(templates))
}
