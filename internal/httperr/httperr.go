// Package httperr carries the typed HTTP error taxonomy used by every
// controller: handlers return *Error values and Respond translates them,
// converting anything untyped into a generic 500 with the error string.
package httperr

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Error struct {
	Status int
	Detail string
}

func (e *Error) Error() string {
	return e.Detail
}

func New(status int, detail string) *Error {
	return &Error{Status: status, Detail: detail}
}

func NotFound(detail string) *Error {
	return New(http.StatusNotFound, detail)
}

func BadRequest(detail string) *Error {
	return New(http.StatusBadRequest, detail)
}

func Conflict(detail string) *Error {
	return New(http.StatusConflict, detail)
}

func Forbidden(detail string) *Error {
	return New(http.StatusForbidden, detail)
}

func Unauthorized(detail string) *Error {
	return New(http.StatusUnauthorized, detail)
}

func Unprocessable(detail string) *Error {
	return New(http.StatusUnprocessableEntity, detail)
}

// Respond writes err to the response. Typed errors keep their status and
// detail; everything else becomes a 500 carrying the error's string form.
func Respond(c *gin.Context, err error) {
	var herr *Error
	if errors.As(err, &herr) {
		c.JSON(herr.Status, gin.H{"error": herr.Detail})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
