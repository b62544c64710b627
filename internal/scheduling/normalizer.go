package scheduling

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"slotguard/pkg/model"
)

var ErrUnknownTimezone = errors.New("unknown timezone")

// Frame is an instant expressed in a provider's wall clock.
type Frame struct {
	Weekday     model.Weekday
	MinuteOfDay int
	Local       time.Time
}

// Normalizer maps absolute instants onto a provider's local weekday and
// minute of day. It never consults the process's local zone.
type Normalizer struct {
	locations sync.Map
}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

func (n *Normalizer) Location(timezone string) (*time.Location, error) {
	tz := strings.TrimSpace(timezone)
	// "" and "Local" resolve to UTC and the host zone respectively.
	if tz == "" || tz == "Local" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTimezone, timezone)
	}
	if loc, ok := n.locations.Load(tz); ok {
		return loc.(*time.Location), nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTimezone, timezone)
	}
	n.locations.Store(tz, loc)
	return loc, nil
}

func (n *Normalizer) Normalize(timezone string, instant time.Time) (Frame, error) {
	loc, err := n.Location(timezone)
	if err != nil {
		return Frame{}, err
	}
	local := instant.In(loc)
	return Frame{
		Weekday:     model.WeekdayOf(local.Weekday()),
		MinuteOfDay: local.Hour()*60 + local.Minute(),
		Local:       local,
	}, nil
}
