package controller

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	jwtController "github.com/GintGld/livempd/internal/controller/jwt"
	"github.com/GintGld/livempd/internal/models"
	"github.com/GintGld/livempd/internal/service"
)

const contentTypeMPD = "application/dash+xml"

// New returns fiber.App serving the live
// manifest and accepting new segments.
func New(
	timeout time.Duration,
	jwtCtr *jwtController.JWT,
	dash Dash,
) *fiber.App {
	dashCtr := dashController{
		timeout: timeout,
		dash:    dash,
	}

	app := fiber.New()

	app.Get("/manifest.mpd", dashCtr.manifest)
	app.Get("/timeline", dashCtr.timeline)
	app.Get("/status", dashCtr.status)

	app.Post("/segments", jwtCtr.AuthRequired(), dashCtr.newSegment)
	app.Post("/start", jwtCtr.AuthRequired(), jwtCtr.RootRequired(), dashCtr.start)
	app.Post("/stop", jwtCtr.AuthRequired(), jwtCtr.RootRequired(), dashCtr.stop)

	return app
}

type dashController struct {
	timeout time.Duration
	dash    Dash
}

type Dash interface {
	Run(ctx context.Context) error
	Stop()
	IsRunning() bool
	Closed() bool
	Ingest(ctx context.Context, segment models.Segment) error
	Attributes() models.Attributes
	Manifest() (string, error)
}

func (dashCtr *dashController) manifest(c *fiber.Ctx) error {
	res, err := dashCtr.dash.Manifest()
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	c.Set(fiber.HeaderContentType, contentTypeMPD)
	c.Set(fiber.HeaderCacheControl, "no-cache")

	return c.Status(fiber.StatusOK).SendString(res)
}

func (dashCtr *dashController) timeline(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(dashCtr.dash.Attributes())
}

func (dashCtr *dashController) status(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"running": dashCtr.dash.IsRunning(),
		"closed":  dashCtr.dash.Closed(),
	})
}

// newSegment accepts {"index": int, "start": int, "duration": int}.
func (dashCtr *dashController) newSegment(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), dashCtr.timeout)
	defer cancel()

	form := new(models.Segment)

	if err := c.BodyParser(form); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid body",
		})
	}

	if err := dashCtr.dash.Ingest(ctx, *form); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidSegment):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid segment",
			})
		case errors.Is(err, service.ErrOutOfOrderSegment):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "out of order segment",
			})
		case errors.Is(err, service.ErrSessionClosed):
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "session closed",
			})
		case errors.Is(err, service.ErrTimeout):
			return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{
				"error": "timeout",
			})
		}

		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.SendStatus(fiber.StatusCreated)
}

func (dashCtr *dashController) start(c *fiber.Ctx) error {
	// closed session never restarts
	if dashCtr.dash.Closed() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "session closed",
		})
	}

	if dashCtr.dash.IsRunning() {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"running": true,
		})
	}

	go dashCtr.dash.Run(context.Background())

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"running": true,
	})
}

func (dashCtr *dashController) stop(c *fiber.Ctx) error {
	dashCtr.dash.Stop()

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"running": false,
	})
}
