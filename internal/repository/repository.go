package repository

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mall/pkg/utils"
)

// forUpdate row lock held until the surrounding transaction ends
var forUpdate = clause.Locking{Strength: "UPDATE"}

// notFound translates gorm's not-found into a NotFound AppError
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.NewErrorf(utils.CodeNotFound, "%s not found", what)
	}
	return err
}
