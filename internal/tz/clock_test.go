package tz

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var referenceInstant = time.Date(2024, time.January, 15, 0, 30, 0, 0, time.UTC)

func TestFormatOffset(t *testing.T) {
	t.Parallel()

	tests := []struct {
		minutes int
		want    string
	}{
		{0, "+00:00"},
		{-300, "-05:00"},
		{540, "+09:00"},
		{345, "+05:45"},
		{-210, "-03:30"},
		{840, "+14:00"},
		{-720, "-12:00"},
		{-30, "-00:30"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, FormatOffset(tt.minutes))
		})
	}
}

func TestResolveOffsetWithinRange(t *testing.T) {
	t.Parallel()

	clk := New(NewSystemProvider())
	zones := []string{
		"Asia/Seoul", "Asia/Tokyo", "Asia/Kolkata", "Asia/Kathmandu", "Europe/London",
		"America/New_York", "America/St_Johns", "Pacific/Honolulu", "Pacific/Kiritimati",
		"Pacific/Pago_Pago", "Australia/Sydney", "Pacific/Auckland", "UTC",
	}
	for _, zone := range zones {
		minutes, fallback := clk.ResolveOffset(zone, referenceInstant)
		require.False(t, fallback, zone)
		require.GreaterOrEqual(t, minutes, MinOffsetMinutes, zone)
		require.LessOrEqual(t, minutes, MaxOffsetMinutes, zone)
	}
}

func TestResolveOffsetKnownValues(t *testing.T) {
	t.Parallel()

	clk := New(nil)
	tests := []struct {
		zone string
		want int
	}{
		{"Asia/Seoul", 540},
		{"America/New_York", -300},
		{"Asia/Kathmandu", 345},
		{"Australia/Sydney", 660},
		{"UTC", 0},
	}
	for _, tt := range tests {
		got, fallback := clk.ResolveOffset(tt.zone, referenceInstant)
		require.False(t, fallback)
		require.Equal(t, tt.want, got, tt.zone)
	}
}

func TestResolveOffsetAcrossDSTTransition(t *testing.T) {
	t.Parallel()

	clk := New(nil)
	// US clocks sprang forward at 2021-03-14 07:00 UTC.
	transition := time.Date(2021, time.March, 14, 7, 0, 0, 0, time.UTC)

	before, fallback := clk.ResolveOffset("America/New_York", transition.Add(-time.Second))
	require.False(t, fallback)
	after, fallback := clk.ResolveOffset("America/New_York", transition)
	require.False(t, fallback)

	require.Equal(t, -300, before)
	require.Equal(t, -240, after)
}

func TestResolveOffsetInvalidZoneFallsBackToUTC(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	var hooked []string
	clk := New(NewSystemProvider(),
		WithLogger(zap.New(core)),
		WithFallbackHook(func(name string, _ error) { hooked = append(hooked, name) }),
	)

	for _, zone := range []string{"Mars/Olympus_Mons", "", "Local"} {
		minutes, fallback := clk.ResolveOffset(zone, referenceInstant)
		require.Zero(t, minutes)
		require.True(t, fallback)
	}
	require.Equal(t, []string{"Mars/Olympus_Mons", "", "Local"}, hooked)
	require.Equal(t, 3, logs.FilterMessage("timezone lookup failed; using UTC").Len())
}

func TestResolveOffsetRecoversProviderPanic(t *testing.T) {
	t.Parallel()

	clk := New(panicProvider{})
	require.NotPanics(t, func() {
		minutes, fallback := clk.ResolveOffset("Asia/Seoul", referenceInstant)
		require.Zero(t, minutes)
		require.True(t, fallback)
	})
}

func TestResolveOffsetKeepsLocalMeanTime(t *testing.T) {
	t.Parallel()

	// Sitka kept Russian local mean time, +14:58:47, until 1867.
	instant := time.Date(1850, time.January, 1, 0, 0, 0, 0, time.UTC)
	clk := New(NewSystemProvider())

	seconds, fallback := clk.ResolveOffsetSeconds("America/Sitka", instant)
	require.False(t, fallback)
	require.Equal(t, 14*3600+58*60+47, seconds)

	minutes, fallback := clk.ResolveOffset("America/Sitka", instant)
	require.False(t, fallback)
	require.Equal(t, 898, minutes)
	require.Greater(t, minutes, MaxOffsetMinutes)
}

func TestResolveOffsetPassesThroughProviderValue(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	clk := New(fixedProvider{seconds: 20 * 3600}, WithLogger(zap.New(core)))
	minutes, fallback := clk.ResolveOffset("Etc/Bogus", referenceInstant)
	require.Equal(t, 20*60, minutes)
	require.False(t, fallback)
	require.Zero(t, logs.Len())
}

func TestConvertKeepsOffsetSeconds(t *testing.T) {
	t.Parallel()

	instant := time.Date(1850, time.January, 1, 0, 0, 0, 0, time.UTC)
	clk := New(nil)

	seoul := clk.Convert(instant, "Asia/Seoul")
	require.False(t, seoul.Fallback)
	require.Equal(t, 8*3600+27*60+52, seoul.OffsetSeconds)
	require.Equal(t, 507, seoul.OffsetMinutes)
	require.Equal(t, LocalFields{
		Year: 1850, Month: time.January, Day: 1,
		Hour: 8, Minute: 27, Second: 52,
		Weekday: time.Tuesday,
	}, seoul.Fields)

	sitka := clk.Convert(instant, "America/Sitka")
	require.False(t, sitka.Fallback)
	require.Equal(t, 14, sitka.Fields.Hour)
	require.Equal(t, 58, sitka.Fields.Minute)
	require.Equal(t, 47, sitka.Fields.Second)

	odd := New(fixedProvider{seconds: -(3*3600 + 90)}).Convert(referenceInstant, "Etc/Odd")
	require.Equal(t, -3*3600-90, odd.OffsetSeconds)
	require.Equal(t, -181, odd.OffsetMinutes)
	require.Equal(t, 21, odd.Fields.Hour)
	require.Equal(t, 28, odd.Fields.Minute)
	require.Equal(t, 30, odd.Fields.Second)
}

func TestConvertFields(t *testing.T) {
	t.Parallel()

	clk := New(nil)
	instant := referenceInstant.Add(250 * time.Millisecond)

	seoul := clk.Convert(instant, "Asia/Seoul")
	require.Equal(t, LocalFields{
		Year: 2024, Month: time.January, Day: 15,
		Hour: 9, Minute: 30, Second: 0, Millisecond: 250,
		Weekday: time.Monday,
	}, seoul.Fields)
	require.Equal(t, 540, seoul.OffsetMinutes)
	require.Equal(t, 540*60, seoul.OffsetSeconds)

	la := clk.Convert(instant, "America/Los_Angeles")
	require.Equal(t, 14, la.Fields.Day)
	require.Equal(t, 16, la.Fields.Hour)
	require.Equal(t, time.Sunday, la.Fields.Weekday)
	require.Equal(t, -480, la.OffsetMinutes)
}

func TestConvertIgnoresInstantLocation(t *testing.T) {
	t.Parallel()

	clk := New(nil)
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	fixed := time.FixedZone("elsewhere", -7*3600)

	a := clk.Convert(referenceInstant.In(tokyo), "Europe/Paris")
	b := clk.Convert(referenceInstant.In(fixed), "Europe/Paris")
	require.Equal(t, a, b)
}

func TestConvertIdempotent(t *testing.T) {
	t.Parallel()

	clk := New(nil)
	first := clk.Convert(referenceInstant, "Australia/Sydney")
	second := clk.Convert(referenceInstant, "Australia/Sydney")
	require.Equal(t, first, second)
}

func TestSystemProviderCachesLocation(t *testing.T) {
	t.Parallel()

	p := NewSystemProvider()
	first, err := p.Location("Europe/London")
	require.NoError(t, err)
	second, err := p.Location("Europe/London")
	require.NoError(t, err)
	require.Same(t, first, second)

	_, err = p.Location("Nowhere/Special")
	require.ErrorIs(t, err, ErrUnknownZone)
}

func TestDaytime(t *testing.T) {
	t.Parallel()

	for hour := 0; hour < 24; hour++ {
		require.Equal(t, hour >= 6 && hour < 18, Daytime(hour), "hour %d", hour)
	}
	require.False(t, Daytime(5))
	require.True(t, Daytime(6))
	require.True(t, Daytime(17))
	require.False(t, Daytime(18))
}

func ExampleFormatOffset() {
	fmt.Println(FormatOffset(540))
	fmt.Println(FormatOffset(-300))
	fmt.Println(FormatOffset(0))
	// Output:
	// +09:00
	// -05:00
	// +00:00
}

type panicProvider struct{}

func (panicProvider) Location(string) (*time.Location, error) {
	return nil, errors.New("unused")
}

func (panicProvider) Offset(string, time.Time) (int, error) {
	panic("tz database corrupted")
}

type fixedProvider struct {
	seconds int
}

func (fixedProvider) Location(string) (*time.Location, error) {
	return time.UTC, nil
}

func (p fixedProvider) Offset(string, time.Time) (int, error) {
	return p.seconds, nil
}
