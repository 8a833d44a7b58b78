package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// MessageStatus is the delivery state of an outbound message.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
)

// Rank orders the forward delivery states: sent < delivered < read.
// Failed and unknown statuses rank below sent so they never satisfy a
// forward-transition guard.
func (s MessageStatus) Rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	default:
		return 0
	}
}

type MessageDirection string

const (
	DirectionIn  MessageDirection = "in"
	DirectionOut MessageDirection = "out"
)

type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignRunning   CampaignStatus = "running"
	CampaignCompleted CampaignStatus = "completed"
	CampaignPaused    CampaignStatus = "paused"
)

// User is a console account
type User struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"type:varchar(255)" json:"name"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"type:varchar(255)" json:"-"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (User) TableName() string {
	return "users"
}

// Contact represents a WhatsApp contact
type Contact struct {
	ID              string     `gorm:"primaryKey" json:"id"`
	Name            string     `gorm:"type:varchar(255);not null" json:"name"`
	Phone           string     `gorm:"type:varchar(50);uniqueIndex;not null" json:"phone"`
	Email           string     `gorm:"type:varchar(255)" json:"email,omitempty"`
	Tags            string     `gorm:"type:text" json:"tags"` // JSON array string
	Status          string     `gorm:"type:varchar(20);default:'active'" json:"status"`
	LastMessage     string     `gorm:"type:text" json:"last_message,omitempty"`
	LastMessageTime *time.Time `json:"last_message_time,omitempty"`
	UnreadCount     int        `gorm:"default:0" json:"unread_count"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Contact) TableName() string {
	return "contacts"
}

// TagList decodes the stored tag set. Returns an empty slice for empty or
// malformed content.
func (c *Contact) TagList() []string {
	if c.Tags == "" {
		return []string{}
	}
	var tags []string
	if err := json.Unmarshal([]byte(c.Tags), &tags); err != nil {
		return []string{}
	}
	return tags
}

// SetTags stores the given tags, dropping duplicates while keeping first-seen
// order. Contact.tags is a set.
func (c *Contact) SetTags(tags []string) {
	seen := make(map[string]bool, len(tags))
	unique := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		unique = append(unique, t)
	}
	data, _ := json.Marshal(unique)
	c.Tags = string(data)
}

// Message represents a WhatsApp message
type Message struct {
	ID         string           `gorm:"primaryKey" json:"id"`
	ContactID  string           `gorm:"index;not null" json:"contact_id"`
	CampaignID string           `gorm:"index" json:"campaign_id,omitempty"`
	Content    string           `gorm:"type:text" json:"content"`
	Type       string           `gorm:"type:varchar(50);default:'text'" json:"type"` // text, image, document, template
	Direction  MessageDirection `gorm:"type:varchar(10);not null" json:"direction"`
	Status     MessageStatus    `gorm:"type:varchar(20);not null" json:"status"`
	TemplateID string           `gorm:"type:varchar(255)" json:"template_id,omitempty"`
	MediaURL   string           `gorm:"type:text" json:"media_url,omitempty"`
	Timestamp  time.Time        `gorm:"index" json:"timestamp"`
	CreatedAt  time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Message) TableName() string {
	return "messages"
}

// Campaign represents a bulk template send
type Campaign struct {
	ID            string         `gorm:"primaryKey" json:"id"`
	Name          string         `gorm:"type:varchar(255);not null" json:"name"`
	Status        CampaignStatus `gorm:"type:varchar(20);default:'draft'" json:"status"`
	TemplateID    string         `gorm:"type:varchar(255);not null" json:"template_id"`
	TemplateName  string         `gorm:"type:varchar(255)" json:"template_name"`
	ContactIDs    string         `gorm:"type:text" json:"contact_ids"` // JSON array string
	TotalContacts int            `gorm:"default:0" json:"total_contacts"`
	Sent          int            `gorm:"default:0" json:"sent"`
	Delivered     int            `gorm:"default:0" json:"delivered"`
	Read          int            `gorm:"default:0" json:"read"`
	Failed        int            `gorm:"default:0" json:"failed"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	ScheduledAt   *time.Time     `json:"scheduled_at,omitempty"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Campaign) TableName() string {
	return "campaigns"
}

func (c *Campaign) ContactIDList() []string {
	if c.ContactIDs == "" {
		return []string{}
	}
	var ids []string
	if err := json.Unmarshal([]byte(c.ContactIDs), &ids); err != nil {
		return []string{}
	}
	return ids
}

func (c *Campaign) SetContactIDs(ids []string) {
	data, _ := json.Marshal(ids)
	c.ContactIDs = string(data)
}

// IsTerminal reports whether the campaign can no longer send
func (c *Campaign) IsTerminal() bool {
	return c.Status == CampaignCompleted
}

// Template represents a WhatsApp message template
type Template struct {
	ID            string    `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"type:varchar(255);not null" json:"name"`
	Category      string    `gorm:"type:varchar(100)" json:"category"` // marketing, utility, authentication
	Language      string    `gorm:"type:varchar(50)" json:"language"`
	Status        string    `gorm:"type:varchar(50)" json:"status"` // approved, pending, rejected
	Content       string    `gorm:"type:text" json:"content"`
	Parameters    string    `gorm:"type:text" json:"parameters"` // JSON array of positional placeholders
	HeaderType    string    `gorm:"type:varchar(20)" json:"header_type,omitempty"`
	HeaderContent string    `gorm:"type:text" json:"header_content,omitempty"`
	FooterText    string    `gorm:"type:varchar(255)" json:"footer_text,omitempty"`
	Buttons       string    `gorm:"type:text" json:"buttons"` // JSON array of buttons
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Template) TableName() string {
	return "templates"
}

// Render substitutes positional placeholders {{1}}, {{2}}, ... with the given
// values. Missing values leave their placeholder in place.
func (t *Template) Render(params []string) string {
	content := t.Content
	for i, p := range params {
		placeholder := fmt.Sprintf("{{%d}}", i+1)
		content = strings.ReplaceAll(content, placeholder, p)
	}
	return content
}

func (t *Template) ParameterList() []string {
	if t.Parameters == "" {
		return []string{}
	}
	var params []string
	if err := json.Unmarshal([]byte(t.Parameters), &params); err != nil {
		return []string{}
	}
	return params
}
