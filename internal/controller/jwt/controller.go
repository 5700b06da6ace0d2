package jwtController

import (
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/GintGld/livempd/internal/models"
)

// tokenKey is the fiber.Ctx local
// the verified token is stored in.
const tokenKey = "user"

type JWT struct {
	secret []byte
}

func New(secret []byte) *JWT {
	return &JWT{secret: secret}
}

func (jwtController *JWT) AuthRequired() func(*fiber.Ctx) error {
	return jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{Key: jwtController.secret},
		ContextKey: tokenKey,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "authentication error",
			})
		},
	})
}

// RootRequired checks that the verified
// token belongs to root. Must follow AuthRequired.
func (jwtController *JWT) RootRequired() func(*fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		pub, ok := Publisher(c)
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JWT",
			})
		}

		if pub.Login != models.RootLogin {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "available for root only",
			})
		}

		return c.Next()
	}
}

// Publisher returns publisher from the verified token.
func Publisher(c *fiber.Ctx) (models.Publisher, bool) {
	token, ok := c.Locals(tokenKey).(*jwt.Token)
	if !ok {
		return models.Publisher{}, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Publisher{}, false
	}

	login, ok := claims["login"].(string)
	if !ok {
		return models.Publisher{}, false
	}
	uid, _ := claims["uid"].(float64)

	return models.Publisher{ID: int64(uid), Login: login}, true
}
