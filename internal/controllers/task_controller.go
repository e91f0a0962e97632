package controllers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/labtrack/labtrack_backend/internal/httperr"
	"github.com/labtrack/labtrack_backend/internal/models"
	"github.com/labtrack/labtrack_backend/internal/utils"
)

type TaskController struct {
	DB *gorm.DB
}

type newTaskRequest struct {
	TaskName        string   `json:"task_name" binding:"required"`
	TaskDescription string   `json:"task_description"`
	LabID           string   `json:"lab_id" binding:"required"`
	Machines        []string `json:"machines"`
}

// NewTask creates a task and its machine associations all-or-nothing.
// The requested machine keys are resolved in one batched query filtered
// by the task's lab; a count mismatch means at least one key is invalid
// or belongs to another lab.
func (tc *TaskController) NewTask(c *gin.Context) {
	var req newTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user := currentUser(c)

	var count int64
	if err := tc.DB.Model(&models.Task{}).
		Where("lower(task_name) = ?", strings.ToLower(req.TaskName)).
		Count(&count).Error; err != nil {
		httperr.Respond(c, err)
		return
	}
	if count > 0 {
		httperr.Respond(c, httperr.Conflict("a task with this name already exists"))
		return
	}

	var lab models.Lab
	if err := tc.DB.Where("lab_id = ?", req.LabID).First(&lab).Error; err != nil {
		httperr.Respond(c, httperr.NotFound("lab not found"))
		return
	}
	member, err := isMember(tc.DB, req.LabID, user.ID)
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	if !member {
		httperr.Respond(c, httperr.Forbidden("operation not authorized"))
		return
	}

	if len(req.Machines) == 0 {
		httperr.Respond(c, httperr.Unprocessable("a task needs at least one machine"))
		return
	}

	var machines []models.Machine
	if err := tc.DB.Where("machine_key IN ? AND lab_id = ?", req.Machines, req.LabID).
		Find(&machines).Error; err != nil {
		httperr.Respond(c, err)
		return
	}
	if len(machines) != len(req.Machines) {
		httperr.Respond(c, httperr.NotFound("one or more machines were not found or do not belong to the lab"))
		return
	}

	task := models.Task{
		TaskName:        req.TaskName,
		TaskDescription: req.TaskDescription,
		TaskCreation:    time.Now(),
		LabID:           req.LabID,
		UserID:          user.ID,
		Machines:        machines,
	}
	if err := tc.DB.Create(&task).Error; err != nil {
		if isUniqueViolation(err) {
			httperr.Respond(c, httperr.BadRequest("failed to create task: "+err.Error()))
			return
		}
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "task registered", "task_id": task.TaskID})
}

func taskResponse(tasks []models.Task) []gin.H {
	out := make([]gin.H, 0, len(tasks))
	for _, t := range tasks {
		keys := make([]string, 0, len(t.Machines))
		names := make([]string, 0, len(t.Machines))
		for _, m := range t.Machines {
			keys = append(keys, m.MachineKey)
			names = append(names, m.MachineName)
		}
		out = append(out, gin.H{
			"task_id":          t.TaskID,
			"task_name":        t.TaskName,
			"task_description": t.TaskDescription,
			"is_complete":      t.IsComplete,
			"task_creation":    utils.FormatDateTime(t.TaskCreation),
			"machine_keys":     keys,
			"machine_names":    names,
		})
	}
	return out
}

func (tc *TaskController) GetTasksForLab(c *gin.Context) {
	labID := c.Param("lab_id")
	user := currentUser(c)

	var lab models.Lab
	if err := tc.DB.Where("lab_id = ?", labID).First(&lab).Error; err != nil {
		httperr.Respond(c, httperr.NotFound("lab not found"))
		return
	}
	member, err := isMember(tc.DB, labID, user.ID)
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	if !member {
		httperr.Respond(c, httperr.Forbidden("operation not authorized"))
		return
	}

	var tasks []models.Task
	if err := tc.DB.Where("lab_id = ?", labID).Preload("Machines").Find(&tasks).Error; err != nil {
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, taskResponse(tasks))
}

func (tc *TaskController) GetTasksForMachine(c *gin.Context) {
	machineKey := c.Param("machine_key")
	user := currentUser(c)

	var machine models.Machine
	if err := tc.DB.Where("machine_key = ?", machineKey).First(&machine).Error; err != nil {
		httperr.Respond(c, httperr.NotFound("machine not found"))
		return
	}
	member, err := isMember(tc.DB, machine.LabID, user.ID)
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	if !member {
		httperr.Respond(c, httperr.Forbidden("operation not authorized"))
		return
	}

	var tasks []models.Task
	if err := tc.DB.
		Joins("JOIN task_machine_association tma ON tma.task_id = tasks.task_id").
		Where("tma.machine_key = ?", machineKey).
		Preload("Machines").
		Find(&tasks).Error; err != nil {
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, taskResponse(tasks))
}

// CompleteTask flips is_complete once; only the creating user may do it
// and a second completion is rejected. There is no reopen transition.
func (tc *TaskController) CompleteTask(c *gin.Context) {
	taskID, err := strconv.ParseUint(c.Param("task_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}
	user := currentUser(c)

	var task models.Task
	if err := tc.DB.First(&task, uint(taskID)).Error; err != nil {
		httperr.Respond(c, httperr.NotFound("task not found"))
		return
	}
	if task.UserID != user.ID {
		httperr.Respond(c, httperr.Forbidden("operation not authorized"))
		return
	}
	if task.IsComplete {
		httperr.Respond(c, httperr.Conflict("task was already completed"))
		return
	}

	if err := tc.DB.Model(&task).Update("is_complete", true).Error; err != nil {
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "task completed"})
}
