package controllers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/labtrack/labtrack_backend/internal/database"
	"github.com/labtrack/labtrack_backend/internal/middleware"
	"github.com/labtrack/labtrack_backend/internal/models"
	"github.com/labtrack/labtrack_backend/internal/utils"
)

const (
	testAPIKey    = "test-api-key"
	testJWTSecret = "test-jwt-secret"
	testPassword  = "pw123456"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

// newTestRouter wires the same routes as routes.Register, minus the
// websocket feed.
func newTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	labCtrl := &LabController{DB: db}
	machineCtrl := &MachineController{DB: db}
	sessionCtrl := &SessionController{DB: db}
	taskCtrl := &TaskController{DB: db}

	authMW := middleware.AuthMiddleware(db, testJWTSecret)
	apiKeyMW := middleware.RequireAPIKey(testAPIKey)

	lab := r.Group("/lab", apiKeyMW)
	lab.GET("/:lab_id", labCtrl.GetLab)
	lab.GET("/:lab_id/machines", labCtrl.GetMachinesForLab)
	lab.GET("/:lab_id/students", labCtrl.GetStudentsForLab)
	lab.GET("/:lab_id/users", labCtrl.GetUsersForLab)
	lab.POST("/new_lab", authMW, labCtrl.CreateLab)
	lab.PATCH("/update/:lab_id", authMW, labCtrl.UpdateLab)
	lab.DELETE("/delete/:lab_id", authMW, labCtrl.DeleteLab)
	lab.POST("/join/:lab_id", authMW, labCtrl.JoinLab)

	machine := r.Group("/machine_config", apiKeyMW)
	machine.GET("/:machine_key", machineCtrl.GetMachineConfig)
	machine.POST("/new_machine", machineCtrl.PostNewMachineConfig)
	machine.PATCH("/update/:machine_key", machineCtrl.UpdateMachineConfig)
	machine.DELETE("/delete/:machine_key", authMW, machineCtrl.DeleteMachine)
	machine.PATCH("/update/:machine_key/last_check", authMW, machineCtrl.UpdateLastCheck)
	machine.PATCH("/update/:machine_key/state_cleanliness", authMW, machineCtrl.UpdateStateCleanliness)

	session := r.Group("/session", apiKeyMW)
	session.POST("/new/:machine_key", sessionCtrl.NewSession)
	session.GET("/lab/:lab_id", sessionCtrl.GetSessionsForLab)
	session.GET("/machine/:machine_key", sessionCtrl.GetSessionsForMachine)
	session.GET("/student/:student_id", sessionCtrl.GetSessionsForStudent)

	tasks := r.Group("/tasks", apiKeyMW, authMW)
	tasks.POST("/new", taskCtrl.NewTask)
	tasks.GET("/lab/:lab_id", taskCtrl.GetTasksForLab)
	tasks.GET("/machine/:machine_key", taskCtrl.GetTasksForMachine)
	tasks.POST("/complete/:task_id", taskCtrl.CompleteTask)

	return r
}

func createUser(t *testing.T, db *gorm.DB, username string) models.User {
	t.Helper()
	hash, err := utils.HashPassword(testPassword)
	require.NoError(t, err)
	user := models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		IsActive:     true,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func tokenFor(t *testing.T, user models.User) string {
	t.Helper()
	now := time.Now().UTC()
	claims := middleware.Claims{
		UserID:   user.UserID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

// doJSON performs a request with the api-key set; token may be empty for
// kiosk-style calls.
func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("api-key", testAPIKey)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func itoa(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func createLab(t *testing.T, r *gin.Engine, token, labID, labName, classes string) {
	t.Helper()
	rec := doJSON(t, r, http.MethodPost, "/lab/new_lab", token, gin.H{
		"lab_id":   labID,
		"lab_name": labName,
		"classes":  classes,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func registerMachine(t *testing.T, r *gin.Engine, key, name, labID string) {
	t.Helper()
	rec := doJSON(t, r, http.MethodPost, "/machine_config/new_machine", "", gin.H{
		"machine_key":       key,
		"machine_name":      name,
		"motherboard":       "B450M",
		"memory":            "16GB",
		"storage":           "512GB SSD",
		"state_cleanliness": "BOM",
		"last_checked":      "15/01/2025",
		"lab_id":            labID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func postSession(t *testing.T, r *gin.Engine, machineKey, student, class, password, start string) *httptest.ResponseRecorder {
	t.Helper()
	return doJSON(t, r, http.MethodPost, "/session/new/"+machineKey, "", gin.H{
		"student_name":  student,
		"password":      password,
		"class_var":     class,
		"session_start": start,
		"cpu_usage":     12.5,
		"ram_usage":     43.1,
		"cpu_temp":      55.0,
	})
}
