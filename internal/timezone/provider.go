// Package timezone resolves "now" and user-typed clock times in the
// administrator-configured UTC offset.
package timezone

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"peregovorka/internal/domain"
	"peregovorka/internal/models"

	"github.com/rs/zerolog"
)

var (
	ErrFormat = errors.New("invalid time format")
	ErrRange  = errors.New("timezone offset out of range")
)

var clockRe = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

// Provider reads the offset from the settings store on every call, so a
// SetOffset is visible to the very next Now or Parse.
type Provider struct {
	settings domain.SettingsStore
	now      func() time.Time
	logger   *zerolog.Logger
}

var _ domain.TimeProvider = (*Provider)(nil)

func NewProvider(settings domain.SettingsStore, logger *zerolog.Logger) *Provider {
	l := logger.With().Str("component", "timezone").Logger()
	return &Provider{
		settings: settings,
		now:      time.Now,
		logger:   &l,
	}
}

// SetClock replaces the wall clock. Tests only.
func (p *Provider) SetClock(now func() time.Time) {
	p.now = now
}

// CurrentOffset returns the configured offset in hours. A corrupt stored value
// is logged and treated as UTC.
func (p *Provider) CurrentOffset(ctx context.Context) (int, error) {
	v, err := p.settings.GetSetting(ctx, models.SettingTimezoneOffset, models.DefaultTimezoneOffset)
	if err != nil {
		return 0, fmt.Errorf("failed to read timezone setting: %w", err)
	}
	offset, err := ParseOffset(v)
	if err != nil {
		p.logger.Warn().Err(err).Str("value", v).Msg("Stored timezone offset is invalid, using UTC")
		return 0, nil
	}
	return offset, nil
}

func (p *Provider) Now(ctx context.Context) (time.Time, error) {
	offset, err := p.CurrentOffset(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return p.now().In(Location(offset)), nil
}

// ParseClockTime turns "H:MM" or "HH:MM" into today's date at that time in the configured offset.
func (p *Provider) ParseClockTime(ctx context.Context, text string) (time.Time, error) {
	now, err := p.Now(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return clockOn(now, text)
}

// ParseTimeRange parses "<start>-<end>" against a single reading of the offset and the clock.
// It does not check that end is after start.
func (p *Provider) ParseTimeRange(ctx context.Context, text string) (time.Time, time.Time, error) {
	startText, endText, ok := strings.Cut(text, "-")
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: expected HH:MM-HH:MM, got %q", ErrFormat, text)
	}

	now, err := p.Now(ctx)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start, err := clockOn(now, startText)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := clockOn(now, endText)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

// SetOffset persists the offset. Values outside [-12, 14] fail with ErrRange and change nothing.
func (p *Provider) SetOffset(ctx context.Context, hours int) error {
	if hours < models.MinTimezoneOffset || hours > models.MaxTimezoneOffset {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrRange, hours, models.MinTimezoneOffset, models.MaxTimezoneOffset)
	}
	if err := p.settings.SetSetting(ctx, models.SettingTimezoneOffset, FormatOffset(hours)); err != nil {
		return fmt.Errorf("failed to save timezone setting: %w", err)
	}
	p.logger.Info().Int("offset", hours).Msg("Timezone changed")
	return nil
}

func clockOn(day time.Time, text string) (time.Time, error) {
	m := clockRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return time.Time{}, fmt.Errorf("%w: %q is not HH:MM", ErrFormat, text)
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if hour > 23 || minute > 59 {
		return time.Time{}, fmt.Errorf("%w: %q is not a valid clock time", ErrFormat, text)
	}
	y, mo, d := day.Date()
	return time.Date(y, mo, d, hour, minute, 0, 0, day.Location()), nil
}

// ParseOffset accepts the stored form ("+3", "-5", "0") and checks the range.
func ParseOffset(v string) (int, error) {
	offset, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrFormat, v)
	}
	if offset < models.MinTimezoneOffset || offset > models.MaxTimezoneOffset {
		return 0, fmt.Errorf("%w: %d", ErrRange, offset)
	}
	return offset, nil
}

// FormatOffset renders the stored form, always signed.
func FormatOffset(hours int) string {
	if hours < 0 {
		return strconv.Itoa(hours)
	}
	return "+" + strconv.Itoa(hours)
}

// Display renders "UTC+3".
func Display(hours int) string {
	return "UTC" + FormatOffset(hours)
}

func Location(hours int) *time.Location {
	return time.FixedZone(Display(hours), hours*3600)
}

// Describe builds the value returned to callers asking for the current zone.
func Describe(hours int) models.Timezone {
	return models.Timezone{
		Offset:  hours,
		Value:   FormatOffset(hours),
		Display: Display(hours),
	}
}
