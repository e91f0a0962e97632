package controllers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/labtrack/labtrack_backend/internal/models"
)

// currentUser returns the user loaded by the auth middleware. Routes
// calling this must be registered behind AuthMiddleware.
func currentUser(c *gin.Context) models.User {
	uVal, _ := c.Get("user")
	return uVal.(models.User)
}

// isMember reports whether the user belongs to the lab, i.e. may
// administer its machines and tasks.
func isMember(db *gorm.DB, labID string, userID uint) (bool, error) {
	var count int64
	err := db.Table("user_lab_association").
		Where("lab_id = ? AND user_id = ?", labID, userID).
		Count(&count).Error
	return count > 0, err
}

// isUniqueViolation matches duplicate-key failures both through gorm's
// translated error and the raw postgres error code.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
