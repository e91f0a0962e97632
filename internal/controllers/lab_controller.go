package controllers

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/labtrack/labtrack_backend/internal/httperr"
	"github.com/labtrack/labtrack_backend/internal/models"
	"github.com/labtrack/labtrack_backend/internal/utils"
)

type LabController struct {
	DB *gorm.DB
}

type createLabRequest struct {
	LabID   string `json:"lab_id" binding:"required"`
	LabName string `json:"lab_name" binding:"required"`
	Classes string `json:"classes"`
}

// updateLabRequest lists every patchable lab field explicitly; absent
// fields are left untouched.
type updateLabRequest struct {
	LabName *string `json:"lab_name"`
	Classes *string `json:"classes"`
}

// GetLab returns the lab summary with live counts; nothing is cached.
func (lc *LabController) GetLab(c *gin.Context) {
	labID := c.Param("lab_id")

	var lab models.Lab
	if err := lc.DB.Where("lab_id = ?", labID).First(&lab).Error; err != nil {
		httperr.Respond(c, httperr.NotFound("lab not found"))
		return
	}

	var machineCount, studentCount, userCount, taskCount int64
	if err := lc.DB.Model(&models.Machine{}).Where("lab_id = ?", labID).Count(&machineCount).Error; err != nil {
		httperr.Respond(c, err)
		return
	}
	if err := lc.DB.Model(&models.Session{}).Where("lab_id = ?", labID).Distinct("student_id").Count(&studentCount).Error; err != nil {
		httperr.Respond(c, err)
		return
	}
	if err := lc.DB.Table("user_lab_association").Where("lab_id = ?", labID).Count(&userCount).Error; err != nil {
		httperr.Respond(c, err)
		return
	}
	if err := lc.DB.Model(&models.Task{}).Where("lab_id = ?", labID).Count(&taskCount).Error; err != nil {
		httperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"lab_id":        lab.LabID,
		"lab_name":      lab.LabName,
		"classes":       lab.Classes,
		"machine_count": machineCount,
		"student_count": studentCount,
		"user_count":    userCount,
		"task_count":    taskCount,
	})
}

// CreateLab registers a new lab; the creating user becomes its first
// member.
func (lc *LabController) CreateLab(c *gin.Context) {
	var req createLabRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user := currentUser(c)

	var count int64
	if err := lc.DB.Model(&models.Lab{}).
		Where("lab_id = ? OR lab_name = ?", req.LabID, req.LabName).
		Count(&count).Error; err != nil {
		httperr.Respond(c, err)
		return
	}
	if count > 0 {
		httperr.Respond(c, httperr.Conflict("a lab with this id or name already exists"))
		return
	}

	lab := models.Lab{LabID: req.LabID, LabName: req.LabName, Classes: req.Classes}
	err := lc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&lab).Error; err != nil {
			return err
		}
		return tx.Model(&lab).Association("Users").Append(&user)
	})
	if err != nil {
		if isUniqueViolation(err) {
			httperr.Respond(c, httperr.Conflict("a lab with this id or name already exists"))
			return
		}
		httperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "lab created", "lab_id": lab.LabID})
}

// UpdateLab applies the patch field by field; only members may update,
// and an update that changes nothing is reported as such.
func (lc *LabController) UpdateLab(c *gin.Context) {
	labID := c.Param("lab_id")
	user := currentUser(c)

	var lab models.Lab
	if err := lc.DB.Where("lab_id = ?", labID).First(&lab).Error; err != nil {
		httperr.Respond(c, httperr.NotFound("lab not found"))
		return
	}

	member, err := isMember(lc.DB, labID, user.ID)
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	if !member {
		httperr.Respond(c, httperr.Forbidden("operation not authorized"))
		return
	}

	var req updateLabRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	changed := false
	if req.LabName != nil && *req.LabName != lab.LabName {
		lab.LabName = *req.LabName
		changed = true
	}
	if req.Classes != nil && *req.Classes != lab.Classes {
		lab.Classes = *req.Classes
		changed = true
	}
	if !changed {
		c.JSON(http.StatusOK, gin.H{"message": "nothing changed"})
		return
	}

	if err := lc.DB.Save(&lab).Error; err != nil {
		if isUniqueViolation(err) {
			httperr.Respond(c, httperr.Conflict("a lab with this name already exists"))
			return
		}
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "lab updated"})
}

// DeleteLab removes the lab and every dependent row. Deletes run in one
// transaction so a failure leaves the lab intact.
func (lc *LabController) DeleteLab(c *gin.Context) {
	labID := c.Param("lab_id")
	user := currentUser(c)

	var lab models.Lab
	if err := lc.DB.Where("lab_id = ?", labID).First(&lab).Error; err != nil {
		httperr.Respond(c, httperr.NotFound("lab not found"))
		return
	}

	member, err := isMember(lc.DB, labID, user.ID)
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	if !member {
		httperr.Respond(c, httperr.Forbidden("operation not authorized"))
		return
	}

	err = lc.DB.Transaction(func(tx *gorm.DB) error {
		var sessionIDs []uint
		if err := tx.Model(&models.Session{}).Where("lab_id = ?", labID).Pluck("session_id", &sessionIDs).Error; err != nil {
			return err
		}
		if len(sessionIDs) > 0 {
			if err := tx.Where("session_id IN ?", sessionIDs).Delete(&models.SystemMetrics{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("lab_id = ?", labID).Delete(&models.Session{}).Error; err != nil {
			return err
		}
		var taskIDs []uint
		if err := tx.Model(&models.Task{}).Where("lab_id = ?", labID).Pluck("task_id", &taskIDs).Error; err != nil {
			return err
		}
		if len(taskIDs) > 0 {
			if err := tx.Exec("DELETE FROM task_machine_association WHERE task_id IN ?", taskIDs).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("lab_id = ?", labID).Delete(&models.Task{}).Error; err != nil {
			return err
		}
		if err := tx.Where("lab_id = ?", labID).Delete(&models.Machine{}).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM user_lab_association WHERE lab_id = ?", labID).Error; err != nil {
			return err
		}
		return tx.Delete(&lab).Error
	})
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "lab deleted"})
}

// JoinLab adds the current user to the lab's members; joining twice is a
// conflict.
func (lc *LabController) JoinLab(c *gin.Context) {
	labID := c.Param("lab_id")
	user := currentUser(c)

	var lab models.Lab
	if err := lc.DB.Where("lab_id = ?", labID).First(&lab).Error; err != nil {
		httperr.Respond(c, httperr.NotFound("lab not found"))
		return
	}

	member, err := isMember(lc.DB, labID, user.ID)
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	if member {
		httperr.Respond(c, httperr.Conflict("user is already a member of this lab"))
		return
	}

	if err := lc.DB.Model(&lab).Association("Users").Append(&user); err != nil {
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "joined lab"})
}

// GetMachinesForLab lists the lab's machines for the desktop client.
func (lc *LabController) GetMachinesForLab(c *gin.Context) {
	labID := c.Param("lab_id")

	var lab models.Lab
	if err := lc.DB.Where("lab_id = ?", labID).First(&lab).Error; err != nil {
		httperr.Respond(c, httperr.NotFound("lab not found"))
		return
	}

	var machines []models.Machine
	if err := lc.DB.Where("lab_id = ?", labID).Find(&machines).Error; err != nil {
		httperr.Respond(c, err)
		return
	}

	out := make([]gin.H, 0, len(machines))
	for _, m := range machines {
		out = append(out, gin.H{
			"machine_key":       m.MachineKey,
			"machine_name":      m.MachineName,
			"motherboard":       m.Motherboard,
			"memory":            m.Memory,
			"storage":           m.Storage,
			"state_cleanliness": m.StateCleanliness,
			"last_checked":      utils.FormatDate(m.LastChecked),
		})
	}
	c.JSON(http.StatusOK, out)
}

// GetStudentsForLab reduces the lab's sessions to one entry per student,
// keeping only each student's chronologically latest session.
func (lc *LabController) GetStudentsForLab(c *gin.Context) {
	labID := c.Param("lab_id")

	var lab models.Lab
	if err := lc.DB.Where("lab_id = ?", labID).First(&lab).Error; err != nil {
		httperr.Respond(c, httperr.NotFound("lab not found"))
		return
	}

	var sessions []models.Session
	if err := lc.DB.Where("lab_id = ?", labID).
		Preload("Student").Preload("Machine").
		Find(&sessions).Error; err != nil {
		httperr.Respond(c, err)
		return
	}
	if len(sessions) == 0 {
		httperr.Respond(c, httperr.NotFound("no sessions found for this lab"))
		return
	}

	latest := make(map[uint]models.Session, len(sessions))
	for _, s := range sessions {
		cur, ok := latest[s.StudentID]
		if !ok || s.SessionStart.After(cur.SessionStart) {
			latest[s.StudentID] = s
		}
	}

	out := make([]gin.H, 0, len(latest))
	for _, s := range latest {
		out = append(out, gin.H{
			"student_name":  s.Student.StudentName,
			"class_var":     s.Student.ClassVar,
			"session_start": utils.FormatDateTime(s.SessionStart),
			"machine_name":  s.Machine.MachineName,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i]["student_name"].(string) < out[j]["student_name"].(string)
	})
	c.JSON(http.StatusOK, out)
}

// GetUsersForLab lists the lab's members.
func (lc *LabController) GetUsersForLab(c *gin.Context) {
	labID := c.Param("lab_id")

	var lab models.Lab
	if err := lc.DB.Where("lab_id = ?", labID).Preload("Users").First(&lab).Error; err != nil {
		httperr.Respond(c, httperr.NotFound("lab not found"))
		return
	}

	out := make([]gin.H, 0, len(lab.Users))
	for _, u := range lab.Users {
		out = append(out, gin.H{
			"user_id":  u.UserID,
			"username": u.Username,
			"email":    u.Email,
		})
	}
	c.JSON(http.StatusOK, out)
}
