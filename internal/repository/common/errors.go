package common

import (
	"errors"

	"github.com/lib/pq"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation сообщает о нарушении уникального индекса. Если constraint
// не пустой, совпасть должно и имя индекса.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || string(pqErr.Code) != pgUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
