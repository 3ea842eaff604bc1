package db

import (
	"errors"

	"gorm.io/gorm"
)

// IsNotFound reports whether GORM could not find the requested row.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
