// Seeds the database with demo contacts, templates and campaigns so the
// console has something to show on first boot. Running it twice is safe:
// existing rows are kept.
package main

import (
	"log"
	"time"

	"whatsapp-console/internal/auth"
	"whatsapp-console/internal/config"
	"whatsapp-console/internal/database"
	"whatsapp-console/internal/models"

	"github.com/google/uuid"
)

func main() {
	cfg := config.LoadConfig()
	database.InitGorm(cfg)

	log.Println("Seeding demo data...")

	seedUser()
	contacts := seedContacts()
	templates := seedTemplates()
	seedCampaign(contacts, templates)

	log.Println("Seeding completed")
}

func seedUser() {
	var count int64
	database.DB.Model(&models.User{}).Count(&count)
	if count > 0 {
		log.Println("Users already present, skipping")
		return
	}

	hash, err := auth.HashPassword("Admin1234")
	if err != nil {
		log.Fatalf("Failed to hash demo password: %v", err)
	}
	user := models.User{
		ID:           uuid.NewString(),
		Name:         "Demo Admin",
		Email:        "admin@example.com",
		PasswordHash: hash,
	}
	if err := database.DB.Create(&user).Error; err != nil {
		log.Fatalf("Failed to seed user: %v", err)
	}
	log.Println("Seeded demo user admin@example.com")
}

func seedContacts() []models.Contact {
	var existing []models.Contact
	database.DB.Find(&existing)
	if len(existing) > 0 {
		log.Printf("Contacts already present (%d), skipping", len(existing))
		return existing
	}

	seed := []struct {
		name  string
		phone string
		email string
		tags  []string
	}{
		{"Sarah Johnson", "+14155551001", "sarah.j@example.com", []string{"customer", "vip"}},
		{"Mike Chen", "+14155551002", "mike.chen@example.com", []string{"customer"}},
		{"Emily Rodriguez", "+14155551003", "", []string{"lead"}},
		{"David Kim", "+14155551004", "david.kim@example.com", []string{"customer", "support"}},
		{"Lisa Thompson", "+14155551005", "", []string{"lead", "newsletter"}},
	}

	contacts := make([]models.Contact, 0, len(seed))
	for _, s := range seed {
		contact := models.Contact{
			ID:        uuid.NewString(),
			Name:      s.name,
			Phone:     s.phone,
			Email:     s.email,
			Status:    "active",
			CreatedAt: time.Now(),
		}
		contact.SetTags(s.tags)
		if err := database.DB.Create(&contact).Error; err != nil {
			log.Fatalf("Failed to seed contact %s: %v", s.name, err)
		}
		contacts = append(contacts, contact)
	}
	log.Printf("Seeded %d contacts", len(contacts))
	return contacts
}

func seedTemplates() []models.Template {
	var existing []models.Template
	database.DB.Find(&existing)
	if len(existing) > 0 {
		log.Printf("Templates already present (%d), skipping", len(existing))
		return existing
	}

	seed := []models.Template{
		{
			ID:         uuid.NewString(),
			Name:       "welcome_message",
			Category:   "utility",
			Language:   "en",
			Status:     "approved",
			Content:    "Hi {{1}}! Welcome to our service. Reply HELP for assistance.",
			Parameters: `["name"]`,
			FooterText: "Reply STOP to unsubscribe",
		},
		{
			ID:         uuid.NewString(),
			Name:       "order_confirmation",
			Category:   "utility",
			Language:   "en",
			Status:     "approved",
			Content:    "Your order {{1}} has been confirmed and will arrive by {{2}}.",
			Parameters: `["order_id","delivery_date"]`,
		},
		{
			ID:         uuid.NewString(),
			Name:       "summer_sale",
			Category:   "marketing",
			Language:   "en",
			Status:     "approved",
			Content:    "Summer sale is on! Get {{1}}% off everything until Sunday.",
			Parameters: `["discount"]`,
			HeaderType: "image",
		},
		{
			ID:       uuid.NewString(),
			Name:     "account_verification",
			Category: "authentication",
			Language: "en",
			Status:   "pending",
			Content:  "Your verification code is {{1}}. It expires in 10 minutes.",
		},
	}

	for i := range seed {
		if err := database.DB.Create(&seed[i]).Error; err != nil {
			log.Fatalf("Failed to seed template %s: %v", seed[i].Name, err)
		}
	}
	log.Printf("Seeded %d templates", len(seed))
	return seed
}

func seedCampaign(contacts []models.Contact, templates []models.Template) {
	var count int64
	database.DB.Model(&models.Campaign{}).Count(&count)
	if count > 0 {
		log.Println("Campaigns already present, skipping")
		return
	}
	if len(contacts) == 0 || len(templates) == 0 {
		return
	}

	ids := make([]string, 0, len(contacts))
	for _, c := range contacts {
		ids = append(ids, c.ID)
	}

	cam := models.Campaign{
		ID:            uuid.NewString(),
		Name:          "Welcome Outreach",
		Status:        models.CampaignDraft,
		TemplateID:    templates[0].ID,
		TemplateName:  templates[0].Name,
		TotalContacts: len(ids),
		CreatedAt:     time.Now(),
	}
	cam.SetContactIDs(ids)

	if err := database.DB.Create(&cam).Error; err != nil {
		log.Fatalf("Failed to seed campaign: %v", err)
	}
	log.Printf("Seeded campaign %s targeting %d contacts", cam.Name, cam.TotalContacts)
}
