package utils

import (
	"fmt"
	"time"
)

// Wire formats for dates. Machines report last_checked as DD/MM/YYYY and
// sessions report session_start as DD/MM/YYYY HH:MM:SS; responses echo
// the same formats back.
const (
	DateLayout     = "02/01/2006"
	DateTimeLayout = "02/01/2006 15:04:05"
)

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected DD/MM/YYYY", s)
	}
	return t, nil
}

func ParseDateTime(s string) (time.Time, error) {
	t, err := time.Parse(DateTimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q, expected DD/MM/YYYY HH:MM:SS", s)
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

func FormatDateTime(t time.Time) string {
	return t.Format(DateTimeLayout)
}
