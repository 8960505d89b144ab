// Package schedule decides whether a moment matches a configured daily
// trigger point. It is pure: slot idempotence lives in the archive (a capture
// record already existing for the slot), not here.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Match reports whether now falls within tolerance of one of the configured
// "HH:MM" points, taken on now's calendar date. When several points are in
// range the closest wins, so two points nearer together than twice the
// tolerance can never both fire for the same moment. Malformed points are
// skipped. The returned slot is the matched point as a compact "HHMM" label.
//
// Comparison is at minute precision: a zero tolerance matches only when now
// is in the exact configured minute.
func Match(points []string, tolerance time.Duration, now time.Time) (slot string, ok bool) {
	nowMin := now.Truncate(time.Minute)

	best := time.Duration(-1)
	for _, p := range points {
		hour, minute, err := parsePoint(p)
		if err != nil {
			continue
		}

		at := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
		diff := nowMin.Sub(at)
		if diff < 0 {
			diff = -diff
		}

		if diff <= tolerance && (best < 0 || diff < best) {
			best = diff
			slot = fmt.Sprintf("%02d%02d", hour, minute)
		}
	}

	return slot, best >= 0
}

// FormatPoints joins the valid points into a human-readable schedule line
// ("08:00, 12:00"). Malformed entries are dropped.
func FormatPoints(points []string) string {
	valid := make([]string, 0, len(points))
	for _, p := range points {
		hour, minute, err := parsePoint(p)
		if err != nil {
			continue
		}
		valid = append(valid, fmt.Sprintf("%02d:%02d", hour, minute))
	}
	return strings.Join(valid, ", ")
}

// SlotLabel converts a "HH:MM" point to its "HHMM" label.
func SlotLabel(point string) (string, error) {
	hour, minute, err := parsePoint(point)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%02d%02d", hour, minute), nil
}

func parsePoint(p string) (hour, minute int, err error) {
	h, m, found := strings.Cut(strings.TrimSpace(p), ":")
	if !found {
		return 0, 0, fmt.Errorf("time point %q is not HH:MM", p)
	}
	hour, err = strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("time point %q has invalid hour", p)
	}
	minute, err = strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("time point %q has invalid minute", p)
	}
	return hour, minute, nil
}
