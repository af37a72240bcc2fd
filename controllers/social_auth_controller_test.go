package controllers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convoyapp/convoy/models"
)

func TestFindOrCreateGoogleMatchesByEmail(t *testing.T) {
	db := setupTestDB(t)
	router := newTestRouter(db, &testMailer{})

	_, id := registerUser(t, router, "alice", "alice@example.com")

	ctrl := NewSocialAuthController(db)
	user, err := ctrl.findOrCreate(providerGoogle, &socialProfile{
		ExternalID: "google-123",
		Name:       "Alice From Google",
		Email:      "alice@example.com",
		Picture:    "https://example.com/pic.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)

	// An external login never rewrites an existing profile
	var stored models.User
	require.NoError(t, db.First(&stored, id).Error)
	assert.Equal(t, "alice", stored.Name)
	assert.Empty(t, stored.Provider)
	assert.Empty(t, stored.ProfileImage)
}

func TestFindOrCreateGoogleCreatesPasswordlessUser(t *testing.T) {
	db := setupTestDB(t)

	ctrl := NewSocialAuthController(db)
	user, err := ctrl.findOrCreate(providerGoogle, &socialProfile{
		ExternalID: "google-456",
		Name:       "New Person",
		Email:      "new@example.com",
		Picture:    "https://example.com/new.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, providerGoogle, user.Provider)
	assert.Equal(t, "google-456", user.ExternalID)
	assert.Empty(t, user.PasswordHash)
	assert.True(t, user.IsActive)
}

func TestFindOrCreateFacebookScopedByProvider(t *testing.T) {
	db := setupTestDB(t)

	ctrl := NewSocialAuthController(db)
	googleUser, err := ctrl.findOrCreate(providerGoogle, &socialProfile{
		ExternalID: "shared-id",
		Name:       "Google Person",
		Email:      "gperson@example.com",
	})
	require.NoError(t, err)

	// Same external id under another provider is a different account
	fbUser, err := ctrl.findOrCreate(providerFacebook, &socialProfile{
		ExternalID: "shared-id",
		Name:       "Facebook Person",
		Email:      "fbperson@example.com",
	})
	require.NoError(t, err)
	assert.NotEqual(t, googleUser.ID, fbUser.ID)
	assert.Equal(t, providerFacebook, fbUser.Provider)
}

func TestFindOrCreateRepeatLoginKeepsProfile(t *testing.T) {
	db := setupTestDB(t)

	ctrl := NewSocialAuthController(db)
	first, err := ctrl.findOrCreate(providerFacebook, &socialProfile{
		ExternalID: "fb-789",
		Name:       "Original Name",
		Email:      "fb789@example.com",
		Picture:    "https://example.com/v1.jpg",
	})
	require.NoError(t, err)

	second, err := ctrl.findOrCreate(providerFacebook, &socialProfile{
		ExternalID: "fb-789",
		Name:       "Changed Name",
		Email:      "fb789@example.com",
		Picture:    "https://example.com/v2.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Original Name", second.Name)
	assert.Equal(t, "https://example.com/v1.jpg", second.ProfileImage)
}
