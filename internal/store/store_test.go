package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whatsapp-console/internal/models"
)

func contact(id, name, phone string) models.Contact {
	c := models.Contact{ID: id, Name: name, Phone: phone, Status: "active", CreatedAt: time.Now()}
	c.SetTags(nil)
	return c
}

func TestSetStateShallowMerge(t *testing.T) {
	s := New()

	contacts := []models.Contact{contact("c1", "Ann", "+1000000001")}
	query := "ann"

	s.SetState(Partial{Contacts: &contacts})
	s.SetState(Partial{SearchQuery: &query})

	state := s.Snapshot()
	assert.Len(t, state.Contacts, 1)
	assert.Equal(t, "ann", state.SearchQuery)
	// Prior slots survive later partials
	assert.Equal(t, "light", state.Theme)
	assert.True(t, state.SidebarOpen)
}

func TestSetStateEmptyPartialIsNoOp(t *testing.T) {
	s := New()
	contacts := []models.Contact{contact("c1", "Ann", "+1000000001")}
	s.SetState(Partial{Contacts: &contacts})

	before := s.Snapshot()
	s.SetState(Partial{})
	after := s.Snapshot()

	assert.Equal(t, before.Contacts, after.Contacts)
	assert.Equal(t, before.Theme, after.Theme)
	assert.Equal(t, before.SearchQuery, after.SearchQuery)
}

func TestSubscribeNotifiesAndUnsubscribes(t *testing.T) {
	s := New()

	calls := 0
	unsubscribe := s.Subscribe(func(State) { calls++ })

	s.SetSearchQuery("a")
	s.SetSearchQuery("b")
	assert.Equal(t, 2, calls)

	unsubscribe()
	s.SetSearchQuery("c")
	assert.Equal(t, 2, calls)
}

func TestSnapshotIsIsolated(t *testing.T) {
	s := New()
	s.UpsertContact(contact("c1", "Ann", "+1000000001"))

	snap := s.Snapshot()
	snap.Contacts[0].Name = "Mutated"

	current, ok := s.ContactByID("c1")
	require.True(t, ok)
	assert.Equal(t, "Ann", current.Name)
}

func TestAddTagSetSemantics(t *testing.T) {
	s := New()
	s.UpsertContact(contact("c1", "Ann", "+1000000001"))

	assert.True(t, s.AddTag("c1", "vip"))
	assert.False(t, s.AddTag("c1", "vip"))

	c, ok := s.ContactByID("c1")
	require.True(t, ok)
	assert.Equal(t, []string{"vip"}, c.TagList())

	s.RemoveTag("c1", "vip")
	c, _ = s.ContactByID("c1")
	assert.Empty(t, c.TagList())
}

func TestAddTagUnknownContact(t *testing.T) {
	s := New()
	assert.False(t, s.AddTag("nope", "vip"))
}

func TestBulkRemoveContactsKeepsMessages(t *testing.T) {
	s := New()
	s.UpsertContact(contact("A", "Ann", "+1000000001"))
	s.UpsertContact(contact("B", "Bob", "+1000000002"))
	s.UpsertContact(contact("C", "Cid", "+1000000003"))
	s.AddMessage(models.Message{ID: "m1", ContactID: "A", Content: "hi", Direction: models.DirectionOut, Status: models.StatusSent, Timestamp: time.Now()})

	removed := s.RemoveContacts([]string{"A", "B"})
	assert.ElementsMatch(t, []string{"A", "B"}, removed)

	state := s.Snapshot()
	require.Len(t, state.Contacts, 1)
	assert.Equal(t, "C", state.Contacts[0].ID)

	// The message survives; thread endpoints go dark because the contact
	// lookup fails, not because the message is gone.
	_, ok := s.MessageByID("m1")
	assert.True(t, ok)
	require.Len(t, s.MessagesForContact("A"), 1)
	_, ok = s.ContactByID("A")
	assert.False(t, ok)
}

func TestRemoveContactsClearsSelection(t *testing.T) {
	s := New()
	s.UpsertContact(contact("A", "Ann", "+1000000001"))
	s.SetSelectedContact("A")

	s.RemoveContacts([]string{"A"})
	assert.Empty(t, s.Snapshot().SelectedContactID)
}

func TestAddMessageUpdatesPreview(t *testing.T) {
	s := New()
	s.UpsertContact(contact("c1", "Ann", "+1000000001"))

	out := models.Message{ID: "m1", ContactID: "c1", Content: "hello", Direction: models.DirectionOut, Status: models.StatusSent, Timestamp: time.Now()}
	s.AddMessage(out)

	c, _ := s.ContactByID("c1")
	assert.Equal(t, "hello", c.LastMessage)
	assert.Equal(t, 0, c.UnreadCount)

	in := models.Message{ID: "m2", ContactID: "c1", Content: "hey", Direction: models.DirectionIn, Status: models.StatusRead, Timestamp: time.Now()}
	s.AddMessage(in)

	c, _ = s.ContactByID("c1")
	assert.Equal(t, "hey", c.LastMessage)
	assert.Equal(t, 1, c.UnreadCount)

	s.MarkThreadRead("c1")
	c, _ = s.ContactByID("c1")
	assert.Equal(t, 0, c.UnreadCount)
}

func TestToggleThemeInvolution(t *testing.T) {
	s := New()
	original := s.Snapshot().Theme

	assert.Equal(t, "dark", s.ToggleTheme())
	assert.Equal(t, "light", s.ToggleTheme())
	assert.Equal(t, original, s.Snapshot().Theme)
}

func TestUpdateCampaignUnknownIsNoOp(t *testing.T) {
	s := New()
	_, ok := s.UpdateCampaign("nope", func(c *models.Campaign) { c.Sent++ })
	assert.False(t, ok)
}
