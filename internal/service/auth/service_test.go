package auth

import (
	"context"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/GintGld/livempd/internal/lib/logger/handlers/slogdiscard"
	"github.com/GintGld/livempd/internal/models"
	"github.com/GintGld/livempd/internal/service"
	jwtSrv "github.com/GintGld/livempd/internal/service/jwt"
)

const passDefaultLen = 10

func randomPassword() string {
	return gofakeit.Password(true, true, true, true, false, passDefaultLen)
}

func TestLogin(t *testing.T) {
	secret := []byte(gofakeit.LetterN(32))
	rootPass := randomPassword()
	tokenTTL := time.Hour

	hash, err := bcrypt.GenerateFromPassword([]byte(rootPass), bcrypt.MinCost)
	require.NoError(t, err)

	a := New(slogdiscard.NewDiscardLogger(), jwtSrv.New(secret), hash, tokenTTL)

	timestamp := time.Now()

	tokenString, err := a.Login(context.Background(), models.RootLogin, rootPass)
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	token, err := jwt.NewParser().ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	require.NoError(t, err)
	require.True(t, token.Valid)

	keys := make([]string, 0, len(claims))
	for k := range claims {
		keys = append(keys, k)
	}
	assert.ElementsMatch(t, []string{"uid", "login", "exp"}, keys)

	// give some gap for TTL due to uncertainty
	const deltaSeconds = 1
	assert.Equal(t, models.RootLogin, claims["login"].(string))
	assert.Equal(t, models.RootID, int64(claims["uid"].(float64)))
	assert.InDelta(t, timestamp.Add(tokenTTL).Unix(), claims["exp"].(float64), deltaSeconds)
}

func TestLoginFail(t *testing.T) {
	rootPass := randomPassword()

	hash, err := bcrypt.GenerateFromPassword([]byte(rootPass), bcrypt.MinCost)
	require.NoError(t, err)

	a := New(slogdiscard.NewDiscardLogger(), jwtSrv.New([]byte("secret")), hash, time.Hour)

	testCases := []struct {
		desc  string
		login string
		pass  string
	}{
		{desc: "wrong password", login: models.RootLogin, pass: randomPassword()},
		{desc: "unknown login", login: gofakeit.Username(), pass: rootPass},
		{desc: "empty password", login: models.RootLogin, pass: ""},
	}

	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			_, err := a.Login(context.Background(), tC.login, tC.pass)
			assert.ErrorIs(t, err, service.ErrInvalidCredentials)
		})
	}
}
