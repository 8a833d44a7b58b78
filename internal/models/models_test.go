package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusRankOrdering(t *testing.T) {
	assert.Less(t, StatusSent.Rank(), StatusDelivered.Rank())
	assert.Less(t, StatusDelivered.Rank(), StatusRead.Rank())
	assert.Less(t, StatusFailed.Rank(), StatusSent.Rank())
	assert.Equal(t, 0, MessageStatus("bogus").Rank())
}

func TestContactTagsAreASet(t *testing.T) {
	c := Contact{}
	c.SetTags([]string{"vip", "lead", "vip", "", "lead"})
	assert.Equal(t, []string{"vip", "lead"}, c.TagList())

	c.Tags = ""
	assert.Empty(t, c.TagList())

	c.Tags = "{not json"
	assert.Empty(t, c.TagList())
}

func TestCampaignContactIDRoundTrip(t *testing.T) {
	cam := Campaign{}
	cam.SetContactIDs([]string{"a", "b"})
	assert.Equal(t, []string{"a", "b"}, cam.ContactIDList())

	cam.ContactIDs = ""
	assert.Empty(t, cam.ContactIDList())
}

func TestTemplateRender(t *testing.T) {
	tpl := Template{Content: "Hi {{1}}, your order {{2}} has shipped. Thanks, {{1}}!"}

	assert.Equal(t, "Hi Sarah, your order #42 has shipped. Thanks, Sarah!",
		tpl.Render([]string{"Sarah", "#42"}))

	// Missing params leave their placeholder in place.
	assert.Equal(t, "Hi Sarah, your order {{2}} has shipped. Thanks, Sarah!",
		tpl.Render([]string{"Sarah"}))

	assert.Equal(t, tpl.Content, tpl.Render(nil))
}

func TestCampaignIsTerminal(t *testing.T) {
	cam := Campaign{Status: CampaignRunning}
	assert.False(t, cam.IsTerminal())
	cam.Status = CampaignCompleted
	assert.True(t, cam.IsTerminal())
}
