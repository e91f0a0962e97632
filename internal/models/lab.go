package models

// Lab is the tenancy boundary: machines, sessions and tasks all hang off
// a lab, and the users associated through user_lab_association are the
// lab's administrators.
type Lab struct {
	LabID   string `gorm:"size:10;primaryKey" json:"lab_id"`
	LabName string `gorm:"size:100;uniqueIndex" json:"lab_name"`
	Classes string `gorm:"size:50" json:"classes"` // comma-joined class names

	Users    []User    `gorm:"many2many:user_lab_association;foreignKey:LabID;joinForeignKey:LabID;References:ID;joinReferences:UserID" json:"-"`
	Machines []Machine `gorm:"foreignKey:LabID" json:"-"`
	Sessions []Session `gorm:"foreignKey:LabID" json:"-"`
	Tasks    []Task    `gorm:"foreignKey:LabID" json:"-"`
}
