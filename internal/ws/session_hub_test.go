package ws

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/labtrack/labtrack_backend/internal/database"
	"github.com/labtrack/labtrack_backend/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func createUser(t *testing.T, db *gorm.DB, username string) models.User {
	t.Helper()
	user := models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		IsActive:     true,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func createLab(t *testing.T, db *gorm.DB, labID, labName string, members ...models.User) {
	t.Helper()
	lab := models.Lab{LabID: labID, LabName: labName, Classes: "1,2"}
	require.NoError(t, db.Create(&lab).Error)
	for i := range members {
		require.NoError(t, db.Model(&lab).Association("Users").Append(&members[i]))
	}
}

// feedServer serves the session feed with the given user pre-loaded in
// the context, standing in for the auth middleware.
func feedServer(t *testing.T, db *gorm.DB, hub *SessionHub, user models.User) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws/lab/:lab_id",
		func(c *gin.Context) { c.Set("user", user) },
		SessionMonitorHandler(db, hub),
	)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dialFeed(srv *httptest.Server, labID string) (*websocket.Conn, *http.Response, error) {
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/lab/" + labID
	return websocket.DefaultDialer.Dial(url, nil)
}

func TestSessionFeedUpgradeAuthorization(t *testing.T) {
	db := newTestDB(t)
	hub := NewSessionHub()
	go hub.Run()

	member := createUser(t, db, "alice")
	outsider := createUser(t, db, "bob")
	createLab(t, db, "L1", "Lab One", member)

	// A non-member may not subscribe to the lab's feed.
	conn, resp, err := dialFeed(feedServer(t, db, hub, outsider), "L1")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	if conn != nil {
		conn.Close()
	}

	// An unknown lab is a 404, even for a member.
	conn, resp, err = dialFeed(feedServer(t, db, hub, member), "nope")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	if conn != nil {
		conn.Close()
	}

	conn, _, err = dialFeed(feedServer(t, db, hub, member), "L1")
	require.NoError(t, err)
	conn.Close()
}

func TestSessionFeedFiltersByLab(t *testing.T) {
	db := newTestDB(t)
	hub := NewSessionHub()
	go hub.Run()

	member := createUser(t, db, "alice")
	createLab(t, db, "L1", "Lab One", member)
	createLab(t, db, "L2", "Lab Two", member)

	conn, _, err := dialFeed(feedServer(t, db, hub, member), "L1")
	require.NoError(t, err)
	defer conn.Close()

	// Let the hub register the client before broadcasting.
	time.Sleep(50 * time.Millisecond)

	// The other-lab session is pushed first: if filtering were broken it
	// would arrive as the first frame.
	hub.Broadcast(SessionPayload{
		LabID:        "L2",
		MachineName:  "pc-02",
		StudentName:  "joao",
		ClassVar:     "1B",
		SessionStart: "20/01/2025 09:00:00",
	})
	hub.Broadcast(SessionPayload{
		LabID:        "L1",
		MachineName:  "pc-01",
		StudentName:  "maria",
		ClassVar:     "1A",
		SessionStart: "20/01/2025 08:30:00",
		CPUUsage:     12.5,
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var got SessionPayload
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, "L1", got.LabID)
	assert.Equal(t, "maria", got.StudentName)
	assert.Equal(t, "20/01/2025 08:30:00", got.SessionStart)
	assert.Equal(t, 12.5, got.CPUUsage)
}
