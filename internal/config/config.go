package config

import (
	"encoding/json"
	"errors"
	"os"
	"time"
)

// DefaultPath is the configuration file consulted when --config is not given.
const DefaultPath = "/etc/watchpot/config.json"

// Config holds the full agent configuration. All fields have documented
// defaults filled by Validate; only the transport block has required fields,
// and those are enforced by RequireTransport so capture-only and cleanup-only
// runs work without mail credentials.
type Config struct {
	// PhotosDir is the archive root holding one daily_YYYYMMDD bucket per day.
	PhotosDir string `json:"photos_dir"`

	// JournalDir holds the run journal database. Defaults to PhotosDir.
	JournalDir string `json:"journal_dir,omitempty"`

	// PhotoPrefix is the capture filename prefix (<prefix>_YYYYMMDD_<slot>.jpg).
	PhotoPrefix string `json:"photo_prefix,omitempty"`

	PhotoWidth   int `json:"photo_width,omitempty"`
	PhotoHeight  int `json:"photo_height,omitempty"`
	PhotoQuality int `json:"photo_quality,omitempty"`

	// MinPhotoBytes is the smallest byte size accepted as a plausible photo.
	// Smaller outputs are treated as corrupt captures and deleted.
	MinPhotoBytes int64 `json:"min_photo_bytes,omitempty"`

	// CaptureTimes and ReportTimes are daily "HH:MM" trigger points.
	CaptureTimes []string `json:"capture_times,omitempty"`
	ReportTimes  []string `json:"report_times,omitempty"`

	// ToleranceMinutes is the half-width of the match window around each
	// trigger point. The external trigger cadence must be coarser than twice
	// this value or a slot can fire twice.
	ToleranceMinutes int `json:"tolerance_minutes,omitempty"`

	CaptureAttempts int `json:"capture_attempts,omitempty"`
	CaptureBackoffS int `json:"capture_backoff_s,omitempty"`
	CaptureTimeoutS int `json:"capture_timeout_s,omitempty"`

	RetentionDays int `json:"retention_days,omitempty"`

	// Transport settings. Server, port, sender, password and recipients are
	// required before any dispatch (see RequireTransport).
	SMTPServer     string   `json:"smtp_server,omitempty"`
	SMTPPort       int      `json:"smtp_port,omitempty"`
	SenderEmail    string   `json:"sender_email,omitempty"`
	SenderPassword string   `json:"sender_password,omitempty"`
	Recipients     []string `json:"recipients,omitempty"`

	// UseTLS enables the STARTTLS upgrade before authentication. Defaults to
	// true. Credentials are only sent over an encrypted (or localhost)
	// connection; disable this only for relays that accept mail without
	// authenticating.
	UseTLS *bool `json:"use_tls,omitempty"`

	SubjectTemplate string `json:"subject_template,omitempty"`
	BodyTemplate    string `json:"body_template,omitempty"`

	SendAttempts int `json:"send_attempts,omitempty"`
	SendBackoffS int `json:"send_backoff_s,omitempty"`
	SendTimeoutS int `json:"send_timeout_s,omitempty"`

	// AttachmentBudgetMB caps the consolidated artifact size; above it the
	// dispatch falls back to attaching every photo individually.
	AttachmentBudgetMB int `json:"attachment_budget_mb,omitempty"`

	// Animated summary geometry, passed through to the convert tool.
	GifWidth      int `json:"gif_width,omitempty"`
	GifHeight     int `json:"gif_height,omitempty"`
	GifCropOffset int `json:"gif_crop_offset,omitempty"`
	GifFrameDelay int `json:"gif_frame_delay,omitempty"` // centiseconds

	// AttachLatestPhoto attaches one representative photo alongside the
	// consolidated artifact; LatestSelection picks it: first|last|middle|random.
	AttachLatestPhoto bool   `json:"attach_latest_photo,omitempty"`
	LatestSelection   string `json:"latest_selection,omitempty"`

	// External tool names, overridable for testing.
	CameraCommand  string `json:"camera_command,omitempty"`
	ConvertCommand string `json:"convert_command,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.fillDefaults()
	return cfg
}

// Load reads configuration from path. A missing file yields the default
// configuration (capture and cleanup work out of the box; dispatch will
// fail RequireTransport until credentials are configured).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Tolerance returns the scheduler match window half-width.
func (c *Config) Tolerance() time.Duration {
	return time.Duration(c.ToleranceMinutes) * time.Minute
}

// CaptureBackoff returns the delay between capture attempts.
func (c *Config) CaptureBackoff() time.Duration {
	return time.Duration(c.CaptureBackoffS) * time.Second
}

// CaptureTimeout returns the per-attempt device timeout.
func (c *Config) CaptureTimeout() time.Duration {
	return time.Duration(c.CaptureTimeoutS) * time.Second
}

// SendBackoff returns the delay between dispatch attempts.
func (c *Config) SendBackoff() time.Duration {
	return time.Duration(c.SendBackoffS) * time.Second
}

// SendTimeout returns the per-attempt transport timeout.
func (c *Config) SendTimeout() time.Duration {
	return time.Duration(c.SendTimeoutS) * time.Second
}

// AttachmentBudgetBytes returns the consolidated artifact size budget.
func (c *Config) AttachmentBudgetBytes() int64 {
	return int64(c.AttachmentBudgetMB) * 1024 * 1024
}

// TLSEnabled reports whether the STARTTLS upgrade is enabled (default true).
func (c *Config) TLSEnabled() bool {
	if c.UseTLS == nil {
		return true
	}
	return *c.UseTLS
}
