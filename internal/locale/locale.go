// Package locale defines the two display languages and their text rules.
package locale

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Language is a supported display language.
type Language string

// Supported languages.
const (
	Korean  Language = "ko"
	English Language = "en"
)

// ErrUnsupported signals a language outside the supported pair.
var ErrUnsupported = errors.New("unsupported language")

var (
	supported = []Language{Korean, English}
	matcher   = language.NewMatcher([]language.Tag{language.Korean, language.English})
)

// Supported lists the languages in display order.
func Supported() []Language {
	return append([]Language(nil), supported...)
}

// Valid reports whether l is one of the supported languages.
func (l Language) Valid() bool {
	return l == Korean || l == English
}

// Toggle returns the other supported language.
func (l Language) Toggle() Language {
	if l == Korean {
		return English
	}
	return Korean
}

// Parse resolves a BCP 47 tag such as "en-US" or "ko_KR" to a supported language.
func Parse(s string) (Language, error) {
	raw := strings.TrimSpace(s)
	tag, err := language.Parse(strings.ReplaceAll(raw, "_", "-"))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnsupported, raw)
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return "", fmt.Errorf("%w: %q", ErrUnsupported, raw)
	}
	return supported[idx], nil
}

// Negotiate picks a language from an Accept-Language header, or fallback when nothing matches.
func Negotiate(acceptLanguage string, fallback Language) Language {
	if strings.TrimSpace(acceptLanguage) == "" {
		return fallback
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return fallback
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return fallback
	}
	return supported[idx]
}

var koreanWeekdays = [...]string{"일요일", "월요일", "화요일", "수요일", "목요일", "금요일", "토요일"}

// Meridiem returns the AM/PM indicator for a 24-hour clock hour.
func (l Language) Meridiem(hour int) string {
	am := hour < 12
	switch {
	case l == Korean && am:
		return "오전"
	case l == Korean:
		return "오후"
	case am:
		return "AM"
	default:
		return "PM"
	}
}

// FormatDate renders the calendar date of wall. Only the wall fields are read;
// its location is ignored.
func (l Language) FormatDate(wall time.Time) string {
	if l == Korean {
		return fmt.Sprintf("%d년 %d월 %d일 %s", wall.Year(), int(wall.Month()), wall.Day(), koreanWeekdays[wall.Weekday()])
	}
	return wall.Format("Monday, January 2, 2006")
}

// ZoneLabel formats the timezone caption, e.g. "Seoul (UTC+09:00)".
func (l Language) ZoneLabel(place, offset string) string {
	return fmt.Sprintf("%s (UTC%s)", place, offset)
}
