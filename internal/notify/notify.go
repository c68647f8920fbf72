// Package notify raises notifications when a track matches a configured
// regular expression.
package notify

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"adsbtrack/internal/track"
)

// DefaultNotifiedTTL is how long an address is remembered as notified after
// its track is evicted
const DefaultNotifiedTTL = time.Hour

// maxRemembered bounds the notified set
const maxRemembered = 4096

// Columns a rule can match against
const (
	ColumnICAO     = "icao"
	ColumnCallsign = "callsign"
	ColumnFlight   = "flight"
	ColumnAltitude = "altitude"
	ColumnSpeed    = "speed"
	ColumnHeading  = "heading"
	ColumnRange    = "range"
	ColumnCategory = "category"
	ColumnStatus   = "status"
	ColumnSquawk   = "squawk"
)

var columns = []string{
	ColumnICAO, ColumnCallsign, ColumnFlight, ColumnAltitude, ColumnSpeed,
	ColumnHeading, ColumnRange, ColumnCategory, ColumnStatus, ColumnSquawk,
}

var placeholderExp = regexp.MustCompile(`\$\{([a-z]+)\}`)

// Rule matches a regular expression against one column
type Rule struct {
	Column     string `yaml:"column"`
	Match      string `yaml:"match"`
	Message    string `yaml:"message"`
	AutoTarget bool   `yaml:"auto_target"`
}

// Notification is a rule that matched a track
type Notification struct {
	ICAO       uint32    `json:"-"`
	Hex        string    `json:"icao"`
	Callsign   string    `json:"callsign,omitempty"`
	Column     string    `json:"column"`
	Message    string    `json:"message"`
	AutoTarget bool      `json:"autoTarget"`
	Time       time.Time `json:"time"`
}

type compiledRule struct {
	Rule
	exp *regexp.Regexp
}

// Notifier checks tracks against the rules. Each aircraft is notified at
// most once, including after it has been evicted and seen again within the
// notified TTL.
type Notifier struct {
	rules    []compiledRule
	notified *expirable.LRU[uint32, struct{}]
	logger   *logrus.Logger
}

// NewNotifier compiles the rules
func NewNotifier(rules []Rule, ttl time.Duration, logger *logrus.Logger) (*Notifier, error) {
	if ttl <= 0 {
		ttl = DefaultNotifiedTTL
	}
	n := &Notifier{
		notified: expirable.NewLRU[uint32, struct{}](maxRemembered, nil, ttl),
		logger:   logger,
	}
	for i, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		n.rules = append(n.rules, compiledRule{Rule: r, exp: regexp.MustCompile(r.Match)})
	}
	return n, nil
}

// Validate checks the column name and compiles the expression
func (r Rule) Validate() error {
	if !validColumn(r.Column) {
		return fmt.Errorf("unknown column %q", r.Column)
	}
	if _, err := regexp.Compile(r.Match); err != nil {
		return fmt.Errorf("invalid expression: %w", err)
	}
	return nil
}

// Len returns the number of rules
func (n *Notifier) Len() int {
	return len(n.rules)
}

// Check returns the notifications for every rule a matches. Empty column
// values never match.
func (n *Notifier) Check(a *track.Aircraft, now time.Time) []Notification {
	if len(n.rules) == 0 {
		return nil
	}
	if a.Notified {
		return nil
	}
	if n.notified.Contains(a.ICAO) {
		a.Notified = true
		return nil
	}

	var out []Notification
	for _, r := range n.rules {
		value := Value(a, r.Column)
		if value == "" || !r.exp.MatchString(value) {
			continue
		}
		out = append(out, Notification{
			ICAO:       a.ICAO,
			Hex:        a.Hex,
			Callsign:   a.Callsign,
			Column:     r.Column,
			Message:    Substitute(r.Message, a),
			AutoTarget: r.AutoTarget,
			Time:       now,
		})
	}

	if len(out) > 0 {
		a.Notified = true
		n.notified.Add(a.ICAO, struct{}{})
		n.logger.WithFields(logrus.Fields{
			"icao":    a.Hex,
			"matches": len(out),
		}).Info("Aircraft matched notification rule")
	}
	return out
}

// Value formats one column of a track for matching and templates. Invalid
// fields give an empty string.
func Value(a *track.Aircraft, column string) string {
	switch column {
	case ColumnICAO:
		return a.Hex
	case ColumnCallsign:
		return a.Callsign
	case ColumnFlight:
		return a.Flight
	case ColumnAltitude:
		if a.AltitudeValid {
			return strconv.Itoa(a.Altitude)
		}
	case ColumnSpeed:
		if a.SpeedValid {
			return strconv.Itoa(int(a.Speed + 0.5))
		}
	case ColumnHeading:
		if a.HeadingValid {
			return strconv.Itoa(int(a.Heading + 0.5))
		}
	case ColumnRange:
		if a.PositionValid && a.Range > 0 {
			return strconv.FormatFloat(a.Range/1000, 'f', 1, 64)
		}
	case ColumnCategory:
		if a.Category != track.CategoryNone {
			return a.Category.String()
		}
	case ColumnStatus:
		if a.Emergency != track.EmergencyNone {
			return a.Emergency.String()
		}
	case ColumnSquawk:
		if a.SquawkValid {
			return fmt.Sprintf("%04d", a.Squawk)
		}
	}
	return ""
}

// Substitute replaces ${column} placeholders with the track's values.
// ${latitude} and ${longitude} are also accepted. Unknown placeholders are
// left as they are.
func Substitute(template string, a *track.Aircraft) string {
	if !strings.Contains(template, "${") {
		return template
	}
	return placeholderExp.ReplaceAllStringFunc(template, func(m string) string {
		name := m[2 : len(m)-1]
		switch name {
		case "latitude":
			if a.PositionValid {
				return strconv.FormatFloat(a.Latitude, 'f', 5, 64)
			}
			return ""
		case "longitude":
			if a.PositionValid {
				return strconv.FormatFloat(a.Longitude, 'f', 5, 64)
			}
			return ""
		}
		if !validColumn(name) {
			return m
		}
		return Value(a, name)
	})
}

func validColumn(column string) bool {
	return slices.Contains(columns, column)
}
