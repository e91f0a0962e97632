package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/labtrack/labtrack_backend/internal/httperr"
	"github.com/labtrack/labtrack_backend/internal/models"
	"github.com/labtrack/labtrack_backend/internal/utils"
	"github.com/labtrack/labtrack_backend/internal/ws"
)

type SessionController struct {
	DB  *gorm.DB
	Hub *ws.SessionHub // optional; nil disables live broadcasts
}

type newSessionRequest struct {
	StudentName  string  `json:"student_name" binding:"required"`
	Password     string  `json:"password" binding:"required"`
	ClassVar     string  `json:"class_var" binding:"required"`
	SessionStart string  `json:"session_start" binding:"required"`
	CPUUsage     float64 `json:"cpu_usage"`
	RAMUsage     float64 `json:"ram_usage"`
	CPUTemp      float64 `json:"cpu_temp"`
}

// NewSession records one login event: resolve the machine, verify or
// auto-register the student, then write the session and its metrics row.
func (sc *SessionController) NewSession(c *gin.Context) {
	machineKey := c.Param("machine_key")

	var req newSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var machine models.Machine
	if err := sc.DB.Where("machine_key = ?", machineKey).First(&machine).Error; err != nil {
		httperr.Respond(c, httperr.NotFound("machine not found"))
		return
	}

	sessionStart, err := utils.ParseDateTime(req.SessionStart)
	if err != nil {
		httperr.Respond(c, httperr.Unprocessable(err.Error()))
		return
	}

	student, err := verifyStudent(sc.DB, req.StudentName, req.Password, req.ClassVar)
	if err != nil {
		httperr.Respond(c, err)
		return
	}

	session := models.Session{
		SessionStart: sessionStart,
		MachineKey:   machineKey,
		StudentID:    student.StudentID,
		LabID:        machine.LabID,
	}
	err = sc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&session).Error; err != nil {
			return err
		}
		metrics := models.SystemMetrics{
			SessionID: session.SessionID,
			CPUUsage:  req.CPUUsage,
			RAMUsage:  req.RAMUsage,
			CPUTemp:   req.CPUTemp,
		}
		return tx.Create(&metrics).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			httperr.Respond(c, httperr.BadRequest("failed to create session, try again"))
			return
		}
		httperr.Respond(c, err)
		return
	}

	sc.Hub.Broadcast(ws.SessionPayload{
		LabID:        machine.LabID,
		MachineName:  machine.MachineName,
		StudentName:  student.StudentName,
		ClassVar:     student.ClassVar,
		SessionStart: utils.FormatDateTime(session.SessionStart),
		CPUUsage:     req.CPUUsage,
		RAMUsage:     req.RAMUsage,
		CPUTemp:      req.CPUTemp,
	})

	c.JSON(http.StatusCreated, gin.H{"message": "session registered"})
}

func sessionResponse(sessions []models.Session) []gin.H {
	out := make([]gin.H, 0, len(sessions))
	for _, s := range sessions {
		entry := gin.H{
			"session_start": utils.FormatDateTime(s.SessionStart),
			"student_name":  s.Student.StudentName,
			"class_var":     s.Student.ClassVar,
			"machine_name":  s.Machine.MachineName,
		}
		if s.Metrics != nil {
			entry["cpu_usage"] = s.Metrics.CPUUsage
			entry["ram_usage"] = s.Metrics.RAMUsage
			entry["cpu_temp"] = s.Metrics.CPUTemp
		}
		out = append(out, entry)
	}
	return out
}

func (sc *SessionController) findSessions(c *gin.Context, column string, value interface{}, emptyMsg string) {
	var sessions []models.Session
	if err := sc.DB.Where(column+" = ?", value).
		Preload("Student").Preload("Machine").Preload("Metrics").
		Find(&sessions).Error; err != nil {
		httperr.Respond(c, err)
		return
	}
	if len(sessions) == 0 {
		httperr.Respond(c, httperr.NotFound(emptyMsg))
		return
	}
	c.JSON(http.StatusOK, sessionResponse(sessions))
}

func (sc *SessionController) GetSessionsForLab(c *gin.Context) {
	labID := c.Param("lab_id")
	var lab models.Lab
	if err := sc.DB.Where("lab_id = ?", labID).First(&lab).Error; err != nil {
		httperr.Respond(c, httperr.NotFound("lab not found"))
		return
	}
	sc.findSessions(c, "lab_id", labID, "no sessions found for this lab")
}

func (sc *SessionController) GetSessionsForMachine(c *gin.Context) {
	machineKey := c.Param("machine_key")
	var machine models.Machine
	if err := sc.DB.Where("machine_key = ?", machineKey).First(&machine).Error; err != nil {
		httperr.Respond(c, httperr.NotFound("machine not found"))
		return
	}
	sc.findSessions(c, "machine_key", machineKey, "no sessions found for this machine")
}

func (sc *SessionController) GetSessionsForStudent(c *gin.Context) {
	studentID, err := strconv.ParseUint(c.Param("student_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid student id"})
		return
	}
	var student models.Student
	if err := sc.DB.First(&student, uint(studentID)).Error; err != nil {
		httperr.Respond(c, httperr.NotFound("student not found"))
		return
	}
	sc.findSessions(c, "student_id", uint(studentID), "no sessions found for this student")
}
