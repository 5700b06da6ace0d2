package router

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"golang.org/x/crypto/bcrypt"

	"github.com/GintGld/livempd/internal/config"
	"github.com/GintGld/livempd/internal/lib/logger/sl"
	"github.com/GintGld/livempd/internal/lib/template"
	"github.com/GintGld/livempd/internal/metrics"
	"github.com/GintGld/livempd/internal/models"
	"github.com/GintGld/livempd/internal/storage"
	"github.com/GintGld/livempd/internal/storage/sqlite"

	authSrv "github.com/GintGld/livempd/internal/service/auth"
	cleanerSrv "github.com/GintGld/livempd/internal/service/cleaner"
	dashSrv "github.com/GintGld/livempd/internal/service/dash"
	jwtSrv "github.com/GintGld/livempd/internal/service/jwt"
	manifestSrv "github.com/GintGld/livempd/internal/service/manifest"
	"github.com/GintGld/livempd/internal/service/params"
	"github.com/GintGld/livempd/internal/service/timeline"
	"github.com/GintGld/livempd/internal/service/window"

	authCtr "github.com/GintGld/livempd/internal/controller/auth"
	dashCtr "github.com/GintGld/livempd/internal/controller/dash"
	jwtCtr "github.com/GintGld/livempd/internal/controller/jwt"
)

const sessionTimeout = 5 * time.Second

type App struct {
	log     *slog.Logger
	address string
	app     *fiber.App
	dash    *dashSrv.Dash
	cleaner *cleanerSrv.Cleaner
	notices chan models.EvictionNotice
	dashOn  bool

	ctx    context.Context
	cancel context.CancelFunc
}

// New returns configured router.App
func New(
	log *slog.Logger,
	journal *sqlite.Storage,
	address string,
	timeout time.Duration,
	tokenTTL time.Duration,
	secret []byte,
	rootPass []byte,
	mpdCfg config.Mpd,
	dashCfg config.Dash,
) *App {
	// Session parameters
	p, err := params.New(params.Raw{
		MpdOutput:                          mpdCfg.Output,
		BaseURLs:                           mpdCfg.BaseURLs,
		MinBufferTime:                      mpdCfg.MinBufferTime,
		MinimumUpdatePeriod:                mpdCfg.MinimumUpdatePeriod,
		SuggestedPresentationDelay:         mpdCfg.SuggestedPresentationDelay,
		TimeShiftBufferDepth:               mpdCfg.TimeShiftBufferDepth,
		PreservedSegmentsOutsideLiveWindow: mpdCfg.PreservedSegmentsOutsideLiveWindow,
		UTCTimings:                         mpdCfg.UTCTimings,
		DefaultLanguage:                    mpdCfg.DefaultLanguage,
		GenerateStaticLiveMPD:              mpdCfg.GenerateStaticLiveMPD,
		GenerateDashIfIopCompliantMPD:      mpdCfg.GenerateDashIfIopCompliantMPD,
		AllowApproximateSegmentTimeline:    mpdCfg.AllowApproximateSegmentTimeline,
		Timescale:                          mpdCfg.Timescale,
		Tolerance:                          mpdCfg.Tolerance,
	})
	if err != nil {
		panic("invalid mpd config: " + err.Error())
	}

	rep := manifestSrv.Representation{
		ID:                mpdCfg.Representation.ID,
		ContentType:       mpdCfg.Representation.ContentType,
		MimeType:          mpdCfg.Representation.MimeType,
		Codecs:            mpdCfg.Representation.Codecs,
		Lang:              mpdCfg.Representation.Lang,
		Bandwidth:         mpdCfg.Representation.Bandwidth,
		AudioSamplingRate: mpdCfg.Representation.AudioSamplingRate,
		Initialization:    mpdCfg.Representation.Initialization,
		Media:             mpdCfg.Representation.Media,
	}
	caps := manifestSrv.Capabilities{
		ExactTiming: template.UsesTime(rep.Media),
	}

	start := sessionStart(log, journal, dashCfg.Restore)

	// Create sevices
	metrics := metrics.New()

	tl := timeline.New(log, manifestSrv.CompactionTolerance(p, caps))
	win := window.New(log)
	man := manifestSrv.New(log, p, caps, rep, start)

	notices := make(chan models.EvictionNotice, dashCfg.NoticeBuffer)

	dash := dashSrv.New(
		log,
		p,
		start,
		dashCfg.RefreshPeriod,
		tl,
		win,
		man,
		journal,
		metrics,
		notices,
	)

	cleaner := cleanerSrv.New(
		log,
		dashCfg.SegmentDir,
		rep.Media,
		rep.ID,
		rep.Bandwidth,
		dashCfg.CleanupDelay,
		metrics,
	)

	jwt := jwtSrv.New(secret)

	rootPassHash, err := bcrypt.GenerateFromPassword(rootPass, bcrypt.DefaultCost)
	if err != nil {
		panic("invalid root password")
	}
	auth := authSrv.New(
		log,
		jwt,
		rootPassHash,
		tokenTTL,
	)

	// Create controller helper
	jwtCtr := jwtCtr.New(secret)

	app := fiber.New()

	// Mount controllers to an app
	app.Mount("/login", authCtr.New(timeout, auth))
	app.Mount("/dash", dashCtr.New(timeout, jwtCtr, dash))
	app.Static("/stream", dashCfg.SegmentDir)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	ctx, cancel := context.WithCancel(context.Background())

	return &App{
		log:     log,
		address: address,
		app:     app,
		dash:    dash,
		cleaner: cleaner,
		notices: notices,
		dashOn:  dashCfg.OnStart,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// sessionStart returns availability start time
// of the journaled session or starts a new one.
func sessionStart(log *slog.Logger, journal *sqlite.Storage, restore bool) time.Time {
	const op = "router.sessionStart"

	log = log.With(
		slog.String("op", op),
	)

	ctx, cancel := context.WithTimeout(context.Background(), sessionTimeout)
	defer cancel()

	if restore {
		start, err := journal.SessionStart(ctx)
		if err == nil {
			log.Info("restore session", slog.Time("start", start))
			return start
		}
		if !errors.Is(err, storage.ErrSessionNotFound) {
			log.Error("failed to get session", sl.Err(err))
		}
	}

	start := time.Now()
	if err := journal.SaveSessionStart(ctx, start); err != nil {
		log.Error("failed to save session", sl.Err(err))
	}

	log.Info("new session", slog.Time("start", start))

	return start
}

func (a *App) MustRun() {
	if err := a.Run(); err != nil {
		panic(err)
	}
}

func (a *App) Run() error {
	const op = "router.Run"

	log := a.log.With(
		slog.String("op", op),
	)

	go a.cleaner.Run(a.ctx, a.notices)

	if a.dashOn {
		go func() {
			if err := a.dash.Run(a.ctx); err != nil {
				log.Error("dash stopped with error", sl.Err(err))
			}
		}()
	}

	return a.app.Listen(a.address)
}

func (a *App) Stop() {
	a.dash.Stop()
	a.cancel()
	a.app.Shutdown()
}
