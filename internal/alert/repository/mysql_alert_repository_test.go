package repository

import (
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
)

func TestIsMySQLUniqueViolation(t *testing.T) {
	t.Run("duplicate entry code", func(t *testing.T) {
		err := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
		assert.True(t, isMySQLUniqueViolation(err))
	})

	t.Run("wrapped duplicate entry", func(t *testing.T) {
		err := fmt.Errorf("failed to create alert: %w", &mysql.MySQLError{Number: 1062})
		assert.True(t, isMySQLUniqueViolation(err))
	})

	t.Run("other mysql error code", func(t *testing.T) {
		err := &mysql.MySQLError{Number: 1452} // foreign key constraint fails
		assert.False(t, isMySQLUniqueViolation(err))
	})

	t.Run("nil error", func(t *testing.T) {
		assert.False(t, isMySQLUniqueViolation(nil))
	})
}
