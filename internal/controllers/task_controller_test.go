package controllers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labtrack/labtrack_backend/internal/models"
)

func TestNewTaskDuplicateNameCaseInsensitive(t *testing.T) {
	db := newTestDB(t)
	r := newTestRouter(db)
	token := tokenFor(t, createUser(t, db, "alice"))
	createLab(t, r, token, "L1", "Lab One", "1,2")
	registerMachine(t, r, "key-1", "pc-01", "L1")

	rec := doJSON(t, r, http.MethodPost, "/tasks/new", token, gin.H{
		"task_name": "Clean Fans", "lab_id": "L1", "machines": []string{"key-1"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, r, http.MethodPost, "/tasks/new", token, gin.H{
		"task_name": "clean fans", "lab_id": "L1", "machines": []string{"key-1"},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestNewTaskForeignMachineRejectedAtomically(t *testing.T) {
	db := newTestDB(t)
	r := newTestRouter(db)
	token := tokenFor(t, createUser(t, db, "alice"))
	createLab(t, r, token, "L1", "Lab One", "1,2")
	createLab(t, r, token, "L2", "Lab Two", "3")
	registerMachine(t, r, "key-1", "pc-01", "L1")
	registerMachine(t, r, "key-2", "pc-02", "L2") // belongs to the other lab

	rec := doJSON(t, r, http.MethodPost, "/tasks/new", token, gin.H{
		"task_name": "clean fans", "lab_id": "L1", "machines": []string{"key-1", "key-2"},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// All-or-nothing: no task row was persisted.
	var count int64
	require.NoError(t, db.Model(&models.Task{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestNewTaskEmptyMachineSet(t *testing.T) {
	db := newTestDB(t)
	r := newTestRouter(db)
	token := tokenFor(t, createUser(t, db, "alice"))
	createLab(t, r, token, "L1", "Lab One", "1,2")

	rec := doJSON(t, r, http.MethodPost, "/tasks/new", token, gin.H{
		"task_name": "clean fans", "lab_id": "L1", "machines": []string{},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestNewTaskNonMember(t *testing.T) {
	db := newTestDB(t)
	r := newTestRouter(db)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	createLab(t, r, tokenFor(t, alice), "L1", "Lab One", "1,2")
	registerMachine(t, r, "key-1", "pc-01", "L1")

	rec := doJSON(t, r, http.MethodPost, "/tasks/new", tokenFor(t, bob), gin.H{
		"task_name": "clean fans", "lab_id": "L1", "machines": []string{"key-1"},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCompleteTask(t *testing.T) {
	db := newTestDB(t)
	r := newTestRouter(db)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	aliceToken := tokenFor(t, alice)
	createLab(t, r, aliceToken, "L1", "Lab One", "1,2")
	registerMachine(t, r, "key-1", "pc-01", "L1")

	rec := doJSON(t, r, http.MethodPost, "/tasks/new", aliceToken, gin.H{
		"task_name": "clean fans", "lab_id": "L1", "machines": []string{"key-1"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var task models.Task
	require.NoError(t, db.First(&task).Error)

	// Only the creator may complete, even another lab member may not.
	rec = doJSON(t, r, http.MethodPost, "/lab/join/L1", tokenFor(t, bob), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, r, http.MethodPost, "/tasks/complete/"+itoa(task.TaskID), tokenFor(t, bob), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, r, http.MethodPost, "/tasks/complete/"+itoa(task.TaskID), aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Completion is one-way; a second attempt conflicts and the flag
	// stays set.
	rec = doJSON(t, r, http.MethodPost, "/tasks/complete/"+itoa(task.TaskID), aliceToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NoError(t, db.First(&task, task.TaskID).Error)
	assert.True(t, task.IsComplete)
}

func TestGetTasksFlattensMachines(t *testing.T) {
	db := newTestDB(t)
	r := newTestRouter(db)
	token := tokenFor(t, createUser(t, db, "alice"))
	createLab(t, r, token, "L1", "Lab One", "1,2")
	registerMachine(t, r, "key-1", "pc-01", "L1")
	registerMachine(t, r, "key-2", "pc-02", "L1")

	rec := doJSON(t, r, http.MethodPost, "/tasks/new", token, gin.H{
		"task_name":        "clean fans",
		"task_description": "dust everything",
		"lab_id":           "L1",
		"machines":         []string{"key-1", "key-2"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, r, http.MethodGet, "/tasks/lab/L1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tasks := decodeList(t, rec)
	require.Len(t, tasks, 1)
	assert.ElementsMatch(t, []interface{}{"key-1", "key-2"}, tasks[0]["machine_keys"])
	assert.ElementsMatch(t, []interface{}{"pc-01", "pc-02"}, tasks[0]["machine_names"])
	assert.Equal(t, false, tasks[0]["is_complete"])

	// The machine view returns the same flattened shape.
	rec = doJSON(t, r, http.MethodGet, "/tasks/machine/key-1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tasks = decodeList(t, rec)
	require.Len(t, tasks, 1)
	assert.Equal(t, "clean fans", tasks[0]["task_name"])
}

func TestGetTasksMembershipGated(t *testing.T) {
	db := newTestDB(t)
	r := newTestRouter(db)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	createLab(t, r, tokenFor(t, alice), "L1", "Lab One", "1,2")
	registerMachine(t, r, "key-1", "pc-01", "L1")

	rec := doJSON(t, r, http.MethodGet, "/tasks/lab/L1", tokenFor(t, bob), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = doJSON(t, r, http.MethodGet, "/tasks/machine/key-1", tokenFor(t, bob), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
