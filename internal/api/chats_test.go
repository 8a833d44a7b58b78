package api

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"whatsapp-console/internal/database"
	"whatsapp-console/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatRouter(env *testEnv) *gin.Engine {
	h := NewChatHandler(env.cfg, env.store, env.cache, env.tracker, env.hub)
	r := gin.New()
	r.GET("/chats/:phone", h.GetChatHistory)
	r.POST("/chats/:phone/read", h.MarkRead)
	r.POST("/send", h.SendMessage)
	r.POST("/send-template", h.SendTemplate)
	return r
}

func TestSendMessage(t *testing.T) {
	env := setupEnv(t)
	r := chatRouter(env)
	seedContact(t, env, "c-1", "Sarah", "+15550001111")

	w := doJSON(r, http.MethodPost, "/send", `{"phone":"+15550001111","message":"hello"}`)
	require.Equal(t, http.StatusOK, w.Code)

	msgs := env.store.MessagesForContact("c-1")
	require.Len(t, msgs, 1)
	assert.Equal(t, models.StatusSent, msgs[0].Status)
	assert.Equal(t, models.DirectionOut, msgs[0].Direction)
	assert.Equal(t, "text", msgs[0].Type)

	contact, _ := env.store.ContactByID("c-1")
	assert.Equal(t, "hello", contact.LastMessage)

	var count int64
	require.NoError(t, database.DB.Model(&models.Message{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestSendMessageValidation(t *testing.T) {
	env := setupEnv(t)
	r := chatRouter(env)
	seedContact(t, env, "c-1", "Sarah", "+15550001111")

	w := doJSON(r, http.MethodPost, "/send", `{"phone":"+15550001111"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	long := strings.Repeat("x", 4097)
	w = doJSON(r, http.MethodPost, "/send", `{"phone":"+15550001111","message":"`+long+`"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = doJSON(r, http.MethodPost, "/send", `{"phone":"+19990000000","message":"hi"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.Empty(t, env.store.MessagesForContact("c-1"))
}

func TestSendTemplate(t *testing.T) {
	env := setupEnv(t)
	r := chatRouter(env)
	seedContact(t, env, "c-1", "Sarah", "+15550001111")
	env.store.SetTemplates([]models.Template{
		{ID: "tpl-1", Name: "welcome", Status: "approved", Content: "Hi {{1}}!"},
		{ID: "tpl-2", Name: "draft", Status: "pending", Content: "Soon"},
	})

	w := doJSON(r, http.MethodPost, "/send-template",
		`{"phone":"+15550001111","template_id":"tpl-1","parameters":["Sarah"]}`)
	require.Equal(t, http.StatusOK, w.Code)

	msgs := env.store.MessagesForContact("c-1")
	require.Len(t, msgs, 1)
	assert.Equal(t, "Hi Sarah!", msgs[0].Content)
	assert.Equal(t, "template", msgs[0].Type)
	assert.Equal(t, "tpl-1", msgs[0].TemplateID)

	w = doJSON(r, http.MethodPost, "/send-template",
		`{"phone":"+15550001111","template_id":"tpl-2"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = doJSON(r, http.MethodPost, "/send-template",
		`{"phone":"+15550001111","template_id":"missing"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChatHistoryAndMarkRead(t *testing.T) {
	env := setupEnv(t)
	r := chatRouter(env)
	seedContact(t, env, "c-1", "Sarah", "+15550001111")
	env.store.AddMessage(models.Message{
		ID:        "m-1",
		ContactID: "c-1",
		Content:   "ping",
		Direction: models.DirectionIn,
		Status:    models.StatusRead,
		Timestamp: time.Now(),
	})

	w := doJSON(r, http.MethodGet, "/chats/+15550001111", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ping")

	w = doJSON(r, http.MethodGet, "/chats/+19990000000", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	before, _ := env.store.ContactByID("c-1")
	require.Equal(t, 1, before.UnreadCount)

	w = doJSON(r, http.MethodPost, "/chats/+15550001111/read", "")
	require.Equal(t, http.StatusOK, w.Code)
	after, _ := env.store.ContactByID("c-1")
	assert.Equal(t, 0, after.UnreadCount)
}
