package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/GintGld/livempd/internal/lib/logger/sl"
	"github.com/GintGld/livempd/internal/models"
	"github.com/GintGld/livempd/internal/service"

	"golang.org/x/crypto/bcrypt"
)

// Auth authorizes segment publishers.
// The only publisher is root.
type Auth struct {
	log          *slog.Logger
	jwtMaker     jwtMaker
	rootPassHash []byte
	tokenTTL     time.Duration
}

type jwtMaker interface {
	NewToken(pub models.Publisher, duration time.Duration) (string, error)
}

// New returns new instance of authentication service
func New(
	log *slog.Logger,
	jwtMaker jwtMaker,
	rootPassHash []byte,
	tokenTTL time.Duration,
) *Auth {
	return &Auth{
		log:          log,
		jwtMaker:     jwtMaker,
		rootPassHash: rootPassHash,
		tokenTTL:     tokenTTL,
	}
}

// Login checks credentials and returns access token.
func (a *Auth) Login(_ context.Context, login string, password string) (string, error) {
	const op = "Auth.Login"

	log := a.log.With(
		slog.String("op", op),
		slog.String("login", login),
	)

	log.Info("attempting to login")

	if login != models.RootLogin {
		log.Info("unknown publisher")

		return "", fmt.Errorf("%s: %w", op, service.ErrInvalidCredentials)
	}

	if err := bcrypt.CompareHashAndPassword(a.rootPassHash, []byte(password)); err != nil {
		log.Info("invalid credentials", sl.Err(err))

		return "", fmt.Errorf("%s: %w", op, service.ErrInvalidCredentials)
	}

	log.Info("root logged successfully")

	token, err := a.jwtMaker.NewToken(models.Publisher{ID: models.RootID, Login: models.RootLogin}, a.tokenTTL)
	if err != nil {
		log.Error("failed to generate token", sl.Err(err))

		return "", fmt.Errorf("%s: %w", op, err)
	}

	return token, nil
}
