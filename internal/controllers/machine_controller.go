package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/labtrack/labtrack_backend/internal/httperr"
	"github.com/labtrack/labtrack_backend/internal/models"
	"github.com/labtrack/labtrack_backend/internal/utils"
)

type MachineController struct {
	DB *gorm.DB
}

type newMachineRequest struct {
	MachineKey       string `json:"machine_key" binding:"required"`
	MachineName      string `json:"machine_name" binding:"required"`
	Motherboard      string `json:"motherboard"`
	Memory           string `json:"memory"`
	Storage          string `json:"storage"`
	StateCleanliness string `json:"state_cleanliness" binding:"required"`
	LastChecked      string `json:"last_checked" binding:"required"`
	LabID            string `json:"lab_id" binding:"required"`
}

type lastCheckRequest struct {
	LastChecked string `json:"last_checked" binding:"required"`
}

type cleanlinessRequest struct {
	StateCleanliness string `json:"state_cleanliness" binding:"required"`
}

// updateMachineRequest lists every patchable machine field explicitly.
// This is the bulk kiosk endpoint; absent fields are left untouched.
type updateMachineRequest struct {
	MachineName      *string `json:"machine_name"`
	Motherboard      *string `json:"motherboard"`
	Memory           *string `json:"memory"`
	Storage          *string `json:"storage"`
	StateCleanliness *string `json:"state_cleanliness"`
	LastChecked      *string `json:"last_checked"`
	LabID            *string `json:"lab_id"`
}

func (mc *MachineController) machineByKey(key string) (models.Machine, *httperr.Error) {
	var machine models.Machine
	if err := mc.DB.Where("machine_key = ?", key).First(&machine).Error; err != nil {
		return machine, httperr.NotFound("machine not found")
	}
	return machine, nil
}

// requireLabMember checks membership through Machine -> Lab -> Users.
func (mc *MachineController) requireLabMember(c *gin.Context, machine models.Machine) bool {
	user := currentUser(c)
	member, err := isMember(mc.DB, machine.LabID, user.ID)
	if err != nil {
		httperr.Respond(c, err)
		return false
	}
	if !member {
		httperr.Respond(c, httperr.Forbidden("operation not authorized"))
		return false
	}
	return true
}

func (mc *MachineController) GetMachineConfig(c *gin.Context) {
	machine, herr := mc.machineByKey(c.Param("machine_key"))
	if herr != nil {
		httperr.Respond(c, herr)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"machine_name":      machine.MachineName,
		"motherboard":       machine.Motherboard,
		"memory":            machine.Memory,
		"storage":           machine.Storage,
		"state_cleanliness": machine.StateCleanliness,
		"last_checked":      utils.FormatDate(machine.LastChecked),
		"lab_id":            machine.LabID,
	})
}

// PostNewMachineConfig registers a machine once. Registration is not an
// upsert: a duplicate key or duplicate name both fail, and the lab must
// already exist.
func (mc *MachineController) PostNewMachineConfig(c *gin.Context) {
	var req newMachineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	state, err := models.ParseStateCleanliness(req.StateCleanliness)
	if err != nil {
		httperr.Respond(c, httperr.Unprocessable(err.Error()))
		return
	}
	lastChecked, err := utils.ParseDate(req.LastChecked)
	if err != nil {
		httperr.Respond(c, httperr.Unprocessable(err.Error()))
		return
	}

	var lab models.Lab
	if err := mc.DB.Where("lab_id = ?", req.LabID).First(&lab).Error; err != nil {
		httperr.Respond(c, httperr.NotFound("lab not found"))
		return
	}

	var count int64
	if err := mc.DB.Model(&models.Machine{}).
		Where("machine_key = ? OR machine_name = ?", req.MachineKey, req.MachineName).
		Count(&count).Error; err != nil {
		httperr.Respond(c, err)
		return
	}
	if count > 0 {
		httperr.Respond(c, httperr.BadRequest("machine already registered"))
		return
	}

	machine := models.Machine{
		MachineKey:       req.MachineKey,
		MachineName:      req.MachineName,
		Motherboard:      req.Motherboard,
		Memory:           req.Memory,
		Storage:          req.Storage,
		StateCleanliness: state,
		LastChecked:      lastChecked,
		LabID:            req.LabID,
	}
	if err := mc.DB.Create(&machine).Error; err != nil {
		if isUniqueViolation(err) {
			httperr.Respond(c, httperr.BadRequest("machine already registered"))
			return
		}
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "machine registered"})
}

func (mc *MachineController) DeleteMachine(c *gin.Context) {
	machine, herr := mc.machineByKey(c.Param("machine_key"))
	if herr != nil {
		httperr.Respond(c, herr)
		return
	}
	if !mc.requireLabMember(c, machine) {
		return
	}

	err := mc.DB.Transaction(func(tx *gorm.DB) error {
		var sessionIDs []uint
		if err := tx.Model(&models.Session{}).Where("machine_key = ?", machine.MachineKey).Pluck("session_id", &sessionIDs).Error; err != nil {
			return err
		}
		if len(sessionIDs) > 0 {
			if err := tx.Where("session_id IN ?", sessionIDs).Delete(&models.SystemMetrics{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("machine_key = ?", machine.MachineKey).Delete(&models.Session{}).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM task_machine_association WHERE machine_key = ?", machine.MachineKey).Error; err != nil {
			return err
		}
		return tx.Delete(&machine).Error
	})
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "machine deleted from lab"})
}

// UpdateLastCheck is the narrow, member-gated mutation of the check date.
func (mc *MachineController) UpdateLastCheck(c *gin.Context) {
	machine, herr := mc.machineByKey(c.Param("machine_key"))
	if herr != nil {
		httperr.Respond(c, herr)
		return
	}
	if !mc.requireLabMember(c, machine) {
		return
	}

	var req lastCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	lastChecked, err := utils.ParseDate(req.LastChecked)
	if err != nil {
		httperr.Respond(c, httperr.Unprocessable(err.Error()))
		return
	}

	if err := mc.DB.Model(&machine).Update("last_checked", lastChecked).Error; err != nil {
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "last check updated"})
}

// UpdateStateCleanliness is the narrow, member-gated mutation of the
// cleaning state.
func (mc *MachineController) UpdateStateCleanliness(c *gin.Context) {
	machine, herr := mc.machineByKey(c.Param("machine_key"))
	if herr != nil {
		httperr.Respond(c, herr)
		return
	}
	if !mc.requireLabMember(c, machine) {
		return
	}

	var req cleanlinessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	state, err := models.ParseStateCleanliness(req.StateCleanliness)
	if err != nil {
		httperr.Respond(c, httperr.Unprocessable(err.Error()))
		return
	}

	if err := mc.DB.Model(&machine).Update("state_cleanliness", state).Error; err != nil {
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "cleanliness state updated"})
}

// UpdateMachineConfig is the bulk kiosk endpoint: each present field that
// differs from the stored value is applied. It is gated by the api-key
// only; there is deliberately no lab-membership check here, the kiosk
// holds no user credentials.
func (mc *MachineController) UpdateMachineConfig(c *gin.Context) {
	machine, herr := mc.machineByKey(c.Param("machine_key"))
	if herr != nil {
		httperr.Respond(c, herr)
		return
	}

	var req updateMachineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	changed := false
	if req.MachineName != nil && *req.MachineName != machine.MachineName {
		machine.MachineName = *req.MachineName
		changed = true
	}
	if req.Motherboard != nil && *req.Motherboard != machine.Motherboard {
		machine.Motherboard = *req.Motherboard
		changed = true
	}
	if req.Memory != nil && *req.Memory != machine.Memory {
		machine.Memory = *req.Memory
		changed = true
	}
	if req.Storage != nil && *req.Storage != machine.Storage {
		machine.Storage = *req.Storage
		changed = true
	}
	if req.StateCleanliness != nil {
		state, err := models.ParseStateCleanliness(*req.StateCleanliness)
		if err != nil {
			httperr.Respond(c, httperr.Unprocessable(err.Error()))
			return
		}
		if state != machine.StateCleanliness {
			machine.StateCleanliness = state
			changed = true
		}
	}
	if req.LastChecked != nil {
		lastChecked, err := utils.ParseDate(*req.LastChecked)
		if err != nil {
			httperr.Respond(c, httperr.Unprocessable(err.Error()))
			return
		}
		if !lastChecked.Equal(machine.LastChecked) {
			machine.LastChecked = lastChecked
			changed = true
		}
	}
	if req.LabID != nil && *req.LabID != machine.LabID {
		var lab models.Lab
		if err := mc.DB.Where("lab_id = ?", *req.LabID).First(&lab).Error; err != nil {
			httperr.Respond(c, httperr.NotFound("lab not found"))
			return
		}
		machine.LabID = *req.LabID
		changed = true
	}

	if !changed {
		c.JSON(http.StatusOK, gin.H{"message": "nothing changed"})
		return
	}

	if err := mc.DB.Save(&machine).Error; err != nil {
		if isUniqueViolation(err) {
			httperr.Respond(c, httperr.BadRequest("machine name already in use"))
			return
		}
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "machine config updated"})
}
