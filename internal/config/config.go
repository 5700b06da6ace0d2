package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/GintGld/livempd/internal/models"
)

type Config struct {
	Env         string        `yaml:"env" env-required:"true"`
	StoragePath string        `yaml:"storage_path" env-required:"true"`
	TokenTTL    time.Duration `yaml:"token_ttl" env-default:"1h"`
	HTTPServer  `yaml:"http_server"`
	Mpd         `yaml:"mpd"`
	Dash        `yaml:"dash"`
}

type HTTPServer struct {
	Address      string        `yaml:"address" env-default:"localhost:8080"`
	Timeout      time.Duration `yaml:"timeout" env-default:"4s"`
	IddleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// Mpd holds the manifest configuration record.
type Mpd struct {
	Output                             string             `yaml:"output" env-required:"true"`
	BaseURLs                           []string           `yaml:"base_urls"`
	MinBufferTime                      time.Duration      `yaml:"min_buffer_time" env-default:"2s"`
	MinimumUpdatePeriod                time.Duration      `yaml:"minimum_update_period" env-default:"2s"`
	SuggestedPresentationDelay         time.Duration      `yaml:"suggested_presentation_delay" env-default:"0s"`
	TimeShiftBufferDepth               time.Duration      `yaml:"time_shift_buffer_depth" env-default:"30s"`
	PreservedSegmentsOutsideLiveWindow int                `yaml:"preserved_segments_outside_live_window" env-default:"10"`
	UTCTimings                         []models.UTCTiming `yaml:"utc_timings"`
	DefaultLanguage                    string             `yaml:"default_language"`
	GenerateStaticLiveMPD              bool               `yaml:"generate_static_live_mpd" env-default:"false"`
	GenerateDashIfIopCompliantMPD      bool               `yaml:"generate_dash_if_iop_compliant_mpd" env-default:"false"`
	AllowApproximateSegmentTimeline    bool               `yaml:"allow_approximate_segment_timeline" env-default:"true"`
	Timescale                          int64              `yaml:"timescale" env-default:"90000"`
	Tolerance                          int64              `yaml:"tolerance" env-default:"2"`
	Representation                     `yaml:"representation"`
}

type Representation struct {
	ID                string `yaml:"id" env-default:"0"`
	ContentType       string `yaml:"content_type" env-default:"audio"`
	MimeType          string `yaml:"mime_type" env-default:"audio/mp4"`
	Codecs            string `yaml:"codecs" env-default:"mp4a.40.2"`
	Lang              string `yaml:"lang"`
	Bandwidth         int64  `yaml:"bandwidth" env-default:"96000"`
	AudioSamplingRate int64  `yaml:"audio_sampling_rate" env-default:"44100"`
	Initialization    string `yaml:"initialization" env-default:"init-$RepresentationID$.m4s"`
	Media             string `yaml:"media" env-default:"chunk-$RepresentationID$-$Number%05d$.m4s"`
}

type Dash struct {
	OnStart       bool          `yaml:"on_start" env-default:"true"`
	Restore       bool          `yaml:"restore" env-default:"true"`
	RefreshPeriod time.Duration `yaml:"refresh_period" env-default:"2s"`
	SegmentDir    string        `yaml:"segment_dir" env-required:"true"`
	CleanupDelay  time.Duration `yaml:"cleanup_delay" env-default:"30s"`
	NoticeBuffer  int           `yaml:"notice_buffer" env-default:"16"`
}

func MustLoad() *Config {
	configPath := fetchConfigPath()
	if configPath == "" {
		panic("config path is empty")
	}

	return MustLoadPath(configPath)
}

func MustLoadPath(configPath string) *Config {
	// check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("cannot read config: " + err.Error())
	}

	return &cfg
}

// fetchConfigPath fetches config path from command line flag or environment variable.
// Priority: flag > env > default.
// Default value is empty string.
func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	return res
}
