package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueParseRoundTrip(t *testing.T) {
	parser := NewParser("test-secret")
	userUUID := uuid.New()

	token, err := parser.Issue(userUUID, "customer", time.Hour)
	require.NoError(t, err)

	claims, err := parser.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, userUUID, claims.UserUUID)
	assert.Equal(t, "customer", claims.UserType)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := NewParser("secret-a").Issue(uuid.New(), "admin", time.Hour)
	require.NoError(t, err)

	_, err = NewParser("secret-b").Parse(token)
	assert.Error(t, err)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	parser := NewParser("test-secret")
	token, err := parser.Issue(uuid.New(), "customer", -time.Minute)
	require.NoError(t, err)

	_, err = parser.Parse(token)
	assert.Error(t, err)
}

func TestParseRejectsMissingUserUUID(t *testing.T) {
	parser := NewParser("test-secret")
	token, err := parser.Issue(uuid.Nil, "customer", time.Hour)
	require.NoError(t, err)

	_, err = parser.Parse(token)
	assert.Error(t, err)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := NewParser("test-secret").Parse("not-a-token")
	assert.Error(t, err)
}
