package models

import "time"

// Task is a maintenance action assigned to a subset of a lab's machines.
// Its only state transition is created -> complete; there is no reopen.
type Task struct {
	TaskID          uint   `gorm:"primaryKey"`
	TaskName        string `gorm:"size:100;uniqueIndex"`
	TaskDescription string `gorm:"type:text"`
	IsComplete      bool
	TaskCreation    time.Time

	LabID string `gorm:"size:10;index"`
	Lab   Lab    `gorm:"foreignKey:LabID"`

	UserID uint `gorm:"index"` // creating user; only they may complete it
	User   User `gorm:"foreignKey:UserID"`

	Machines []Machine `gorm:"many2many:task_machine_association;foreignKey:TaskID;joinForeignKey:TaskID;References:MachineKey;joinReferences:MachineKey"`
}
