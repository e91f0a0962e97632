package models

// Student identity is the pair (lowercased name, class); there is no
// schema-level uniqueness on it, the session handler's lookup is
// authoritative. The first login establishes the password.
type Student struct {
	StudentID    uint   `gorm:"primaryKey"`
	StudentName  string `gorm:"size:100"`
	PasswordHash string `gorm:"size:255"`
	ClassVar     string `gorm:"size:50"`

	Sessions []Session `gorm:"foreignKey:StudentID"`
}
