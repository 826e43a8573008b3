package domain

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewCustomerID(t *testing.T) {
	id := NewCustomerID(time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
	assert.Regexp(t, regexp.MustCompile(`^QB2026-\d{4}$`), id)
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleCustomer.Valid())
	assert.True(t, RoleAdmin.Valid())
	assert.False(t, Role("ROOT").Valid())
}

func TestUserName(t *testing.T) {
	u := &User{FirstName: "Ada", LastName: "Lovelace"}
	assert.Equal(t, "Ada Lovelace", u.Name())
}
