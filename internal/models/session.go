package models

import "time"

// Session is one student login event on one machine. The lab reference is
// denormalized from the owning machine at creation time. Sessions are
// immutable once written.
type Session struct {
	SessionID    uint `gorm:"primaryKey"`
	SessionStart time.Time

	MachineKey string  `gorm:"size:64;index"`
	Machine    Machine `gorm:"foreignKey:MachineKey"`

	StudentID uint    `gorm:"index"`
	Student   Student `gorm:"foreignKey:StudentID"`

	LabID string `gorm:"size:10;index"`
	Lab   Lab    `gorm:"foreignKey:LabID"`

	Metrics *SystemMetrics `gorm:"foreignKey:SessionID"`
}

// SystemMetrics holds the hardware readings reported at login, one row
// per session.
type SystemMetrics struct {
	MetricsID uint `gorm:"primaryKey"`
	SessionID uint `gorm:"uniqueIndex"`
	CPUUsage  float64
	RAMUsage  float64
	CPUTemp   float64
}
