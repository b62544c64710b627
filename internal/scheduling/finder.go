package scheduling

import (
	"sort"
	"time"

	"slotguard/pkg/model"
)

const (
	DefaultStep               = 15 * time.Minute
	DefaultAlternatives       = 10
	DefaultAlternativesPerDay = 3
)

type FinderConfig struct {
	Step   time.Duration
	Limit  int
	PerDay int // 0 disables the per-day cap
}

type AlternativeFinder struct {
	normalizer *Normalizer
	validator  *SlotValidator
	cfg        FinderConfig
	now        func() time.Time
}

func NewAlternativeFinder(normalizer *Normalizer, validator *SlotValidator, cfg FinderConfig, now func() time.Time) *AlternativeFinder {
	if cfg.Step <= 0 {
		cfg.Step = DefaultStep
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultAlternatives
	}
	if now == nil {
		now = time.Now
	}
	return &AlternativeFinder{normalizer: normalizer, validator: validator, cfg: cfg, now: now}
}

type candidate struct {
	at       time.Time
	day      int
	distance time.Duration
}

// Suggest lists open start instants in the ISO week (provider local time)
// that contains anchor, nearest to anchor first. busy holds the provider's
// scheduled sessions; the one with excludingID is ignored. An empty result
// means no availability this week.
func (f *AlternativeFinder) Suggest(p *model.Provider, anchor time.Time, busy []Interval, excludingID string) []time.Time {
	alternatives := []time.Time{}
	if !p.IsReady() {
		return alternatives
	}
	loc, err := f.normalizer.Location(p.Timezone)
	if err != nil {
		return alternatives
	}

	local := anchor.In(loc)
	offset := model.WeekdayOf(local.Weekday()).ISOIndex()
	year, month, day := local.Date()
	now := f.now()
	duration := p.SessionDuration()
	step := int(f.cfg.Step / time.Minute)
	if step <= 0 {
		step = 1
	}

	var candidates []candidate
	for i, weekday := range model.Weekdays {
		window, ok := p.WeeklyAvailability.Window(weekday)
		if !ok || !window.Enabled {
			continue
		}
		date := time.Date(year, month, day-offset+i, 0, 0, 0, 0, loc)
		dy, dm, dd := date.Date()

		for minute := window.StartMinute; minute <= window.EndMinute; minute += step {
			at := time.Date(dy, dm, dd, minute/60, minute%60, 0, 0, loc)

			// Wall times skipped by a DST jump normalize elsewhere; drop them.
			frame, err := f.normalizer.Normalize(p.Timezone, at)
			if err != nil || frame.Weekday != weekday || frame.MinuteOfDay != minute {
				continue
			}
			if f.validator.Validate(p, at) != nil {
				continue
			}
			if !at.After(now) {
				continue
			}
			if overlapsAny(busy, at, at.Add(duration), excludingID) {
				continue
			}
			candidates = append(candidates, candidate{at: at, day: i, distance: absDuration(at.Sub(anchor))})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].at.Before(candidates[j].at)
	})

	// The per-day cap skips nearer candidates once a day is full, so a busy
	// anchor day still leaves room for suggestions later in the week.
	// PerDay == 0 keeps the plain nearest-first order.
	perDay := make(map[int]int, 7)
	for _, c := range candidates {
		if len(alternatives) >= f.cfg.Limit {
			break
		}
		if f.cfg.PerDay > 0 && perDay[c.day] >= f.cfg.PerDay {
			continue
		}
		perDay[c.day]++
		alternatives = append(alternatives, c.at.UTC())
	}
	return alternatives
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
