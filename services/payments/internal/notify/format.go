package notify

import (
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// FormatAmount renders an amount in minor units for the guest's locale.
func FormatAmount(minor int64, code, locale string) string {
	unit, err := currency.ParseISO(strings.ToUpper(code))
	if err != nil {
		return fmt.Sprintf("%.2f %s", float64(minor)/100, strings.ToUpper(code))
	}

	scale, _ := currency.Standard.Rounding(unit)
	major := float64(minor) / math.Pow10(scale)

	p := message.NewPrinter(localeTag(locale))
	return p.Sprint(currency.Symbol(unit.Amount(major)))
}

func localeTag(locale string) language.Tag {
	if locale == "" {
		return language.English
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return language.English
	}
	return tag
}

// FormatTime renders t in tz, falling back to UTC for unknown zones.
func FormatTime(t time.Time, tz string) string {
	loc, err := time.LoadLocation(tz)
	if err != nil || tz == "" {
		loc = time.UTC
	}
	return t.In(loc).Format("Monday, January 2, 2006 at 15:04 MST")
}
