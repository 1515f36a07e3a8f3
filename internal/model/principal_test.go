package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCanAccessUser(t *testing.T) {
	owner := uuid.New()
	other := uuid.New()

	admin := Principal{UserUUID: uuid.New(), UserType: UserTypeAdmin}
	assert.True(t, admin.CanAccessUser(owner))
	assert.True(t, admin.CanAccessUser(other))

	customer := Principal{UserUUID: owner, UserType: UserTypeCustomer}
	assert.True(t, customer.CanAccessUser(owner))
	assert.False(t, customer.CanAccessUser(other))
}
