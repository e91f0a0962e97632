package controllers

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/labtrack/labtrack_backend/internal/httperr"
	"github.com/labtrack/labtrack_backend/internal/models"
	"github.com/labtrack/labtrack_backend/internal/utils"
)

// verifyStudent resolves a student by lowered name and class or registers
// a new one. The first login establishes the password; afterwards a wrong
// password or wrong class is rejected without revealing which was wrong.
func verifyStudent(db *gorm.DB, studentName, password, classVar string) (models.Student, error) {
	name := strings.ToLower(studentName)

	var student models.Student
	err := db.Where("student_name = ?", name).First(&student).Error
	switch {
	case err == nil:
		if student.ClassVar != classVar {
			return student, httperr.Unauthorized("wrong student name, class or password")
		}
		if !utils.CheckPassword(student.PasswordHash, password) {
			return student, httperr.Unauthorized("wrong student name, class or password")
		}
		return student, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		hashed, herr := utils.HashPassword(password)
		if herr != nil {
			return student, herr
		}
		student = models.Student{
			StudentName:  name,
			PasswordHash: hashed,
			ClassVar:     classVar,
		}
		if cerr := db.Create(&student).Error; cerr != nil {
			return student, httperr.BadRequest("failed to register student, try again")
		}
		return student, nil
	default:
		return student, err
	}
}
