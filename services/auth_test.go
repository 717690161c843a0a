package services

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/current-see/solar_api/dto"
	"github.com/current-see/solar_api/model"
)

func registerReq(email string) dto.RegisterRequest {
	return dto.RegisterRequest{
		Email:     email,
		FirstName: "Ada",
		LastName:  "Lovelace",
		Password:  "Str0ng!Pass",
	}
}

func TestRegisterOpensAccountWithBonus(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.authSvc.Register(registerReq("ada@example.com"))
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", resp.Email)
	assert.Equal(t, RegistrationBonus, resp.Profile.SolarBalance)
	require.NotNil(t, resp.Tokens)
	assert.NotEmpty(t, resp.Tokens.AccessToken)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.authSvc.Register(registerReq("dup@example.com"))
	require.NoError(t, err)

	_, err = env.authSvc.Register(registerReq("dup@example.com"))
	requireAppError(t, err, http.StatusConflict)
}

func TestRegisterRetiresVisitorSession(t *testing.T) {
	env := newTestEnv(t)
	session := env.newSession(t, "device-1")

	req := registerReq("promoted@example.com")
	req.SessionID = session.ID

	resp, err := env.authSvc.Register(req)
	require.NoError(t, err)

	var stored model.VisitorSession
	require.NoError(t, env.db.Where("id = ?", session.ID).First(&stored).Error)
	assert.False(t, stored.IsActive)
	assert.Equal(t, resp.UserID, stored.PromotedToUserID)

	// A retired session can no longer act as a subject.
	_, err = env.sessionSvc.GetActiveSession(session.ID)
	requireAppError(t, err, http.StatusUnauthorized)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.authSvc.Register(registerReq("login@example.com"))
	require.NoError(t, err)

	resp, err := env.authSvc.Login(dto.LoginRequest{Email: "login@example.com", Password: "Str0ng!Pass"})
	require.NoError(t, err)
	require.NotNil(t, resp.Tokens)

	userID, err := env.authSvc.jwtSvc.VerifyJWTToken(resp.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.UserID, userID)
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.authSvc.Register(registerReq("wrong@example.com"))
	require.NoError(t, err)

	_, err = env.authSvc.Login(dto.LoginRequest{Email: "wrong@example.com", Password: "not-it"})
	requireAppError(t, err, http.StatusUnauthorized)
}

func TestCreateOrGetSessionReusesActiveSession(t *testing.T) {
	env := newTestEnv(t)

	first, err := env.sessionSvc.CreateOrGetSession(dto.CreateSessionRequest{DeviceID: "device-9"})
	require.NoError(t, err)

	second, err := env.sessionSvc.CreateOrGetSession(dto.CreateSessionRequest{DeviceID: "device-9"})
	require.NoError(t, err)
	assert.Equal(t, first.Session.ID, second.Session.ID)
}

func TestGetProfile(t *testing.T) {
	env := newTestEnv(t)

	registered, err := env.authSvc.Register(registerReq("profile@example.com"))
	require.NoError(t, err)

	profile, err := env.authSvc.GetProfile(registered.UserID)
	require.NoError(t, err)
	assert.Equal(t, "profile@example.com", profile.Email)
	assert.Equal(t, RegistrationBonus, profile.SolarBalance)
	assert.Equal(t, 0.0, profile.TotalSpent)
}
