package models

import (
	"fmt"
	"strings"
	"time"
)

// StateCleanliness is the closed cleaning-state enumeration. Values are
// stored exactly as the upper-case constants; parsing is case-insensitive.
type StateCleanliness string

const (
	StateBom     StateCleanliness = "BOM"
	StateRegular StateCleanliness = "REGULAR"
	StateUrgente StateCleanliness = "URGENTE"
)

// ParseStateCleanliness maps a free-form value onto the enum or rejects it.
func ParseStateCleanliness(s string) (StateCleanliness, error) {
	switch StateCleanliness(strings.ToUpper(strings.TrimSpace(s))) {
	case StateBom:
		return StateBom, nil
	case StateRegular:
		return StateRegular, nil
	case StateUrgente:
		return StateUrgente, nil
	}
	return "", fmt.Errorf("invalid cleanliness state %q (expected BOM, REGULAR or URGENTE)", s)
}

// Machine is a registered lab computer. The machine_key is a long random
// token issued by the kiosk on first run and never changes.
type Machine struct {
	MachineKey       string           `gorm:"size:64;primaryKey"`
	MachineName      string           `gorm:"size:100;uniqueIndex"`
	Motherboard      string           `gorm:"size:100"`
	Memory           string           `gorm:"size:100"`
	Storage          string           `gorm:"size:100"`
	StateCleanliness StateCleanliness `gorm:"size:16"`
	LastChecked      time.Time

	LabID string `gorm:"size:10;index"`
	Lab   Lab    `gorm:"foreignKey:LabID"`

	Sessions []Session `gorm:"foreignKey:MachineKey"`
	Tasks    []Task    `gorm:"many2many:task_machine_association;foreignKey:MachineKey;joinForeignKey:MachineKey;References:TaskID;joinReferences:TaskID"`
}
