package config

import (
	"fmt"
	"regexp"

	"github.com/mzanella/watchpot/internal/errors"
)

var timePointPattern = regexp.MustCompile(`^([01]?\d|2[0-3]):[0-5]\d$`)

var validSelections = map[string]bool{
	"first": true, "last": true, "middle": true, "random": true,
}

// Validate fills defaults and rejects fatally-misconfigured fields.
// Transport credentials are not checked here; see RequireTransport.
func (c *Config) Validate() error {
	c.fillDefaults()

	for _, p := range c.CaptureTimes {
		if !timePointPattern.MatchString(p) {
			return errors.NewInvalidConfig(fmt.Sprintf("capture_times entry %q is not HH:MM", p))
		}
	}
	for _, p := range c.ReportTimes {
		if !timePointPattern.MatchString(p) {
			return errors.NewInvalidConfig(fmt.Sprintf("report_times entry %q is not HH:MM", p))
		}
	}

	if c.ToleranceMinutes < 0 {
		return errors.NewInvalidConfig("tolerance_minutes must be >= 0")
	}
	if c.CaptureAttempts < 1 {
		return errors.NewInvalidConfig("capture_attempts must be >= 1")
	}
	if c.SendAttempts < 1 {
		return errors.NewInvalidConfig("send_attempts must be >= 1")
	}
	if c.RetentionDays < 1 {
		return errors.NewInvalidConfig("retention_days must be >= 1")
	}
	if !validSelections[c.LatestSelection] {
		return errors.NewInvalidConfig(fmt.Sprintf("latest_selection %q must be one of: first, last, middle, random", c.LatestSelection))
	}

	return nil
}

// RequireTransport checks that the transport block is complete. Called on the
// dispatch path only; a missing credential is fatal, not retryable.
func (c *Config) RequireTransport() error {
	if c.SMTPServer == "" {
		return errors.NewInvalidConfig("smtp_server is required")
	}
	if c.SMTPPort <= 0 {
		return errors.NewInvalidConfig("smtp_port is required")
	}
	if c.SenderEmail == "" {
		return errors.NewInvalidConfig("sender_email is required")
	}
	if c.SenderPassword == "" {
		return errors.NewInvalidConfig("sender_password is required")
	}
	if len(c.Recipients) == 0 {
		return errors.NewInvalidConfig("recipients must not be empty")
	}
	return nil
}

// fillDefaults sets every unset field to its documented default.
func (c *Config) fillDefaults() {
	if c.PhotosDir == "" {
		c.PhotosDir = "/var/lib/watchpot/photos"
	}
	if c.JournalDir == "" {
		c.JournalDir = c.PhotosDir
	}
	if c.PhotoPrefix == "" {
		c.PhotoPrefix = "watchpot"
	}
	if c.PhotoWidth == 0 {
		c.PhotoWidth = 1920
	}
	if c.PhotoHeight == 0 {
		c.PhotoHeight = 1080
	}
	if c.PhotoQuality == 0 {
		c.PhotoQuality = 95
	}
	if c.MinPhotoBytes == 0 {
		c.MinPhotoBytes = 10 * 1024
	}
	if len(c.CaptureTimes) == 0 {
		c.CaptureTimes = []string{"08:00", "12:00", "16:00"}
	}
	if len(c.ReportTimes) == 0 {
		c.ReportTimes = []string{"18:00"}
	}
	if c.ToleranceMinutes == 0 {
		c.ToleranceMinutes = 5
	}
	if c.CaptureAttempts == 0 {
		c.CaptureAttempts = 3
	}
	if c.CaptureBackoffS == 0 {
		c.CaptureBackoffS = 10
	}
	if c.CaptureTimeoutS == 0 {
		c.CaptureTimeoutS = 30
	}
	if c.RetentionDays == 0 {
		c.RetentionDays = 7
	}
	if c.SubjectTemplate == "" {
		c.SubjectTemplate = "WatchPot report {{.Date}} ({{.Count}} photos)"
	}
	if c.BodyTemplate == "" {
		c.BodyTemplate = "WatchPot daily report for {{.Date}}.\n\n" +
			"Photos captured: {{.Count}}\nSchedule: {{.Schedule}}\n"
	}
	if c.SendAttempts == 0 {
		c.SendAttempts = 3
	}
	if c.SendBackoffS == 0 {
		c.SendBackoffS = 30
	}
	if c.SendTimeoutS == 0 {
		c.SendTimeoutS = 60
	}
	if c.AttachmentBudgetMB == 0 {
		c.AttachmentBudgetMB = 20
	}
	if c.GifWidth == 0 {
		c.GifWidth = 800
	}
	if c.GifHeight == 0 {
		c.GifHeight = 600
	}
	if c.GifFrameDelay == 0 {
		c.GifFrameDelay = 80
	}
	if c.LatestSelection == "" {
		c.LatestSelection = "last"
	}
	if c.CameraCommand == "" {
		c.CameraCommand = "rpicam-still"
	}
	if c.ConvertCommand == "" {
		c.ConvertCommand = "convert"
	}
}
