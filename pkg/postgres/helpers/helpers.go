package helpers

import "gorm.io/gorm"

// RunInTransaction runs fn inside tx when the caller already holds one,
// otherwise inside a new transaction on db that commits when fn succeeds.
func RunInTransaction[T any](db *gorm.DB, tx *gorm.DB, fn func(*gorm.DB) (T, error)) (T, error) {
	if tx != nil {
		return fn(tx)
	}
	var res T
	err := db.Transaction(func(inner *gorm.DB) error {
		var err error
		res, err = fn(inner)
		return err
	})
	return res, err
}
