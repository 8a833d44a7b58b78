// Package store holds the in-memory working set for the console: the single
// source of truth for domain collections and dashboard UI flags. It is hydrated
// from the database at startup and mutated only through the command methods
// below; handlers persist first and apply here on success, so a failed write
// never leaves a half-applied state.
package store

import (
	"sync"

	"whatsapp-console/internal/models"
)

// State is the full console state. Mutation is by whole-state replacement:
// every command builds fresh slices, so snapshots handed to readers are never
// edited underneath them.
type State struct {
	Contacts  []models.Contact
	Messages  []models.Message
	Campaigns []models.Campaign
	Templates []models.Template

	SelectedContactID string
	SidebarOpen       bool
	SearchQuery       string
	Theme             string // "light" or "dark"
}

// Partial is a shallow patch applied by SetState. Nil fields are left as-is.
type Partial struct {
	Contacts  *[]models.Contact
	Messages  *[]models.Message
	Campaigns *[]models.Campaign
	Templates *[]models.Template

	SelectedContactID *string
	SidebarOpen       *bool
	SearchQuery       *string
	Theme             *string
}

// Listener is invoked synchronously after every mutation with a snapshot of
// the new state.
type Listener func(State)

// Store owns the state. All access goes through its methods; callers never
// hold a reference to the live state.
type Store struct {
	mu        sync.RWMutex
	state     State
	listeners map[int]Listener
	nextID    int
}

func New() *Store {
	return &Store{
		state: State{
			Contacts:    []models.Contact{},
			Messages:    []models.Message{},
			Campaigns:   []models.Campaign{},
			Templates:   []models.Template{},
			SidebarOpen: true,
			Theme:       "light",
		},
		listeners: make(map[int]Listener),
	}
}

// Snapshot returns a copy of the current state. Slices are copied so callers
// cannot mutate what the store holds.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyState(s.state)
}

// Subscribe registers a listener and returns its unsubscribe function.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// SetState shallow-merges a partial into the current state. An empty Partial
// still notifies but leaves the state unchanged.
func (s *Store) SetState(p Partial) {
	s.update(func(st State) State {
		if p.Contacts != nil {
			st.Contacts = *p.Contacts
		}
		if p.Messages != nil {
			st.Messages = *p.Messages
		}
		if p.Campaigns != nil {
			st.Campaigns = *p.Campaigns
		}
		if p.Templates != nil {
			st.Templates = *p.Templates
		}
		if p.SelectedContactID != nil {
			st.SelectedContactID = *p.SelectedContactID
		}
		if p.SidebarOpen != nil {
			st.SidebarOpen = *p.SidebarOpen
		}
		if p.SearchQuery != nil {
			st.SearchQuery = *p.SearchQuery
		}
		if p.Theme != nil {
			st.Theme = *p.Theme
		}
		return st
	})
}

// Update applies an updater to the current state and replaces it wholesale.
func (s *Store) Update(fn func(State) State) {
	s.update(fn)
}

func (s *Store) update(fn func(State) State) {
	s.mu.Lock()
	s.state = fn(copyState(s.state))
	snapshot := copyState(s.state)
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(snapshot)
	}
}

// Hydrate replaces all domain collections, typically from the database at boot.
func (s *Store) Hydrate(contacts []models.Contact, messages []models.Message, campaigns []models.Campaign, templates []models.Template) {
	s.SetState(Partial{
		Contacts:  &contacts,
		Messages:  &messages,
		Campaigns: &campaigns,
		Templates: &templates,
	})
}

// --- Contact commands ---

func (s *Store) UpsertContact(contact models.Contact) {
	s.update(func(st State) State {
		for i, c := range st.Contacts {
			if c.ID == contact.ID {
				st.Contacts[i] = contact
				return st
			}
		}
		st.Contacts = append(st.Contacts, contact)
		return st
	})
}

// RemoveContacts drops the given contact ids. Messages referencing them are
// kept (queryable by id, excluded from contact-filtered views), but their
// pending delivery timers must be cancelled by the caller.
func (s *Store) RemoveContacts(ids []string) []string {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	var removed []string
	s.update(func(st State) State {
		kept := make([]models.Contact, 0, len(st.Contacts))
		for _, c := range st.Contacts {
			if drop[c.ID] {
				removed = append(removed, c.ID)
				continue
			}
			kept = append(kept, c)
		}
		st.Contacts = kept
		if drop[st.SelectedContactID] {
			st.SelectedContactID = ""
		}
		return st
	})
	return removed
}

// AddTag adds a tag to a contact with set semantics: adding an existing tag
// is a no-op. Reports whether the tag set changed.
func (s *Store) AddTag(contactID, tag string) bool {
	changed := false
	s.update(func(st State) State {
		for i, c := range st.Contacts {
			if c.ID != contactID {
				continue
			}
			tags := c.TagList()
			for _, t := range tags {
				if t == tag {
					return st
				}
			}
			c.SetTags(append(tags, tag))
			st.Contacts[i] = c
			changed = true
			return st
		}
		return st
	})
	return changed
}

func (s *Store) RemoveTag(contactID, tag string) {
	s.update(func(st State) State {
		for i, c := range st.Contacts {
			if c.ID != contactID {
				continue
			}
			tags := c.TagList()
			kept := make([]string, 0, len(tags))
			for _, t := range tags {
				if t != tag {
					kept = append(kept, t)
				}
			}
			c.SetTags(kept)
			st.Contacts[i] = c
			return st
		}
		return st
	})
}

func (s *Store) ContactByID(id string) (models.Contact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.state.Contacts {
		if c.ID == id {
			return c, true
		}
	}
	return models.Contact{}, false
}

func (s *Store) ContactByPhone(phone string) (models.Contact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.state.Contacts {
		if c.Phone == phone {
			return c, true
		}
	}
	return models.Contact{}, false
}

// --- Message commands ---

// AddMessage appends a message and refreshes the owning contact's denormalized
// preview. Inbound messages bump the unread counter.
func (s *Store) AddMessage(msg models.Message) {
	s.update(func(st State) State {
		st.Messages = append(st.Messages, msg)
		for i, c := range st.Contacts {
			if c.ID != msg.ContactID {
				continue
			}
			ts := msg.Timestamp
			c.LastMessage = msg.Content
			c.LastMessageTime = &ts
			if msg.Direction == models.DirectionIn {
				c.UnreadCount++
			}
			st.Contacts[i] = c
			break
		}
		return st
	})
}

// SetMessageStatus applies a status to a message if it exists. The forward
// guard lives in the lifecycle tracker; this is the raw state write.
func (s *Store) SetMessageStatus(id string, status models.MessageStatus) bool {
	found := false
	s.update(func(st State) State {
		for i, m := range st.Messages {
			if m.ID == id {
				m.Status = status
				st.Messages[i] = m
				found = true
				break
			}
		}
		return st
	})
	return found
}

func (s *Store) MessageByID(id string) (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.state.Messages {
		if m.ID == id {
			return m, true
		}
	}
	return models.Message{}, false
}

// MessagesForContact returns the contact's thread in insertion order.
func (s *Store) MessagesForContact(contactID string) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var msgs []models.Message
	for _, m := range s.state.Messages {
		if m.ContactID == contactID {
			msgs = append(msgs, m)
		}
	}
	return msgs
}

// MarkThreadRead clears the unread counter for a contact.
func (s *Store) MarkThreadRead(contactID string) {
	s.update(func(st State) State {
		for i, c := range st.Contacts {
			if c.ID == contactID {
				c.UnreadCount = 0
				st.Contacts[i] = c
				break
			}
		}
		return st
	})
}

// --- Campaign commands ---

func (s *Store) UpsertCampaign(campaign models.Campaign) {
	s.update(func(st State) State {
		for i, c := range st.Campaigns {
			if c.ID == campaign.ID {
				st.Campaigns[i] = campaign
				return st
			}
		}
		st.Campaigns = append(st.Campaigns, campaign)
		return st
	})
}

// UpdateCampaign applies fn to the campaign with the given id and returns the
// updated copy. Unknown ids are a no-op.
func (s *Store) UpdateCampaign(id string, fn func(*models.Campaign)) (models.Campaign, bool) {
	var updated models.Campaign
	found := false
	s.update(func(st State) State {
		for i, c := range st.Campaigns {
			if c.ID == id {
				fn(&c)
				st.Campaigns[i] = c
				updated = c
				found = true
				break
			}
		}
		return st
	})
	return updated, found
}

func (s *Store) RemoveCampaign(id string) {
	s.update(func(st State) State {
		kept := make([]models.Campaign, 0, len(st.Campaigns))
		for _, c := range st.Campaigns {
			if c.ID != id {
				kept = append(kept, c)
			}
		}
		st.Campaigns = kept
		return st
	})
}

func (s *Store) CampaignByID(id string) (models.Campaign, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.state.Campaigns {
		if c.ID == id {
			return c, true
		}
	}
	return models.Campaign{}, false
}

// --- Template commands ---

func (s *Store) SetTemplates(templates []models.Template) {
	s.SetState(Partial{Templates: &templates})
}

func (s *Store) TemplateByID(id string) (models.Template, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.state.Templates {
		if t.ID == id {
			return t, true
		}
	}
	return models.Template{}, false
}

// --- UI commands ---

func (s *Store) SetSelectedContact(id string) {
	s.SetState(Partial{SelectedContactID: &id})
}

func (s *Store) SetSidebarOpen(open bool) {
	s.SetState(Partial{SidebarOpen: &open})
}

func (s *Store) SetSearchQuery(query string) {
	s.SetState(Partial{SearchQuery: &query})
}

// ToggleTheme flips light/dark. Toggling twice restores the original value.
func (s *Store) ToggleTheme() string {
	var theme string
	s.update(func(st State) State {
		if st.Theme == "light" {
			st.Theme = "dark"
		} else {
			st.Theme = "light"
		}
		theme = st.Theme
		return st
	})
	return theme
}

func copyState(st State) State {
	out := st
	out.Contacts = append([]models.Contact(nil), st.Contacts...)
	out.Messages = append([]models.Message(nil), st.Messages...)
	out.Campaigns = append([]models.Campaign(nil), st.Campaigns...)
	out.Templates = append([]models.Template(nil), st.Templates...)
	return out
}
