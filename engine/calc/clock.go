package calc

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kopibot/kopibot/engine/catalog"
)

// Time arithmetic: "outlet opens at 9:00, I arrive at 8:30, how long do I
// wait?" or "add 45 minutes to 10:15". Clock times are reduced to
// minutes-since-midnight; differences and sums wrap modulo 24 hours.

var (
	clockColonRe   = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\s*(am|pm)?\b`)
	clockMeridenRe = regexp.MustCompile(`\b(\d{1,2})\s*(am|pm)\b`)
	addSpanRe      = regexp.MustCompile(`\b(?:add|plus|in|after)\s+(\d{1,3})\s*(minutes?|mins?|hours?|hrs?)\b`)
	timeCueRe      = regexp.MustCompile(`\b(wait|until|till|how long|opens?|closes?|closing|opening|arrive|arriving|reach|later|from now|add)\b`)
)

func parseClockTimes(s string) []int {
	var out []int
	consumed := s
	for _, m := range clockColonRe.FindAllStringSubmatch(consumed, -1) {
		h, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		out = append(out, meridianMinutes(h, mm, m[3]))
	}
	// Strip HH:MM matches so "8:30am" is not re-read as "30am".
	consumed = clockColonRe.ReplaceAllString(consumed, " ")
	for _, m := range clockMeridenRe.FindAllStringSubmatch(consumed, -1) {
		h, _ := strconv.Atoi(m[1])
		out = append(out, meridianMinutes(h, 0, m[2]))
	}
	return out
}

func meridianMinutes(h, m int, meridian string) int {
	switch strings.ToLower(meridian) {
	case "am":
		if h == 12 {
			h = 0
		}
	case "pm":
		if h != 12 {
			h += 12
		}
	}
	return (h*60 + m) % 1440
}

// tryClockArithmetic returns a Result when the utterance is a time question,
// or nil when it is not.
func tryClockArithmetic(lower string) (*Result, *Error) {
	if !timeCueRe.MatchString(lower) {
		return nil, nil
	}
	times := parseClockTimes(lower)

	if m := addSpanRe.FindStringSubmatch(lower); m != nil && len(times) >= 1 {
		span, _ := strconv.Atoi(m[1])
		if strings.HasPrefix(m[2], "h") {
			span *= 60
		}
		target := (times[0] + span) % 1440
		return &Result{
			Value:      float64(target),
			Expression: fmt.Sprintf("%s + %s", catalog.FormatClock(times[0]), m[1]+" "+m[2]),
			Text:       catalog.FormatClock(target),
			IsTime:     true,
		}, nil
	}

	if len(times) >= 2 {
		diff := times[1] - times[0]
		if diff < 0 {
			diff += 1440
		}
		// "how long until X" questions read better as the shorter direction.
		if diff > 720 {
			diff = 1440 - diff
		}
		return &Result{
			Value:      float64(diff),
			Expression: fmt.Sprintf("%s to %s", catalog.FormatClock(times[0]), catalog.FormatClock(times[1])),
			Text:       formatDuration(diff),
			IsTime:     true,
		}, nil
	}
	return nil, nil
}

func formatDuration(minutes int) string {
	h, m := minutes/60, minutes%60
	switch {
	case h == 0:
		return fmt.Sprintf("%d minutes", m)
	case m == 0:
		return fmt.Sprintf("%d hours", h)
	default:
		return fmt.Sprintf("%d hours %d minutes", h, m)
	}
}
