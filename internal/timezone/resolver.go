package timezone

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	// Embed the tz database so resolution does not depend on the host.
	_ "time/tzdata"

	"github.com/teemow/agenda/internal/model"
)

// WallClockLayout is the default layout for wall-clock conversions.
const WallClockLayout = "2006-01-02 15:04:05"

var wallClockLayouts = []string{
	WallClockLayout,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	time.RFC3339,
}

var offsetPattern = regexp.MustCompile(`^(?i:utc|gmt)?([+-])(\d{1,2})(?::?(\d{2}))?$`)

// Resolver resolves zone names and performs conversions. Loaded zones are
// cached; the cache only grows and never changes an entry once written.
type Resolver struct {
	local *time.Location
	clock func() time.Time

	mu    sync.RWMutex
	cache map[string]*time.Location
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLocal sets the zone used for empty or "local" zone names.
func WithLocal(loc *time.Location) Option {
	return func(r *Resolver) {
		if loc != nil {
			r.local = loc
		}
	}
}

// WithClock overrides the clock used by Now.
func WithClock(clock func() time.Time) Option {
	return func(r *Resolver) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// NewResolver creates a Resolver. Without options the process local zone and
// the wall clock are used.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		local: time.Local,
		clock: time.Now,
		cache: make(map[string]*time.Location),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Local returns the default zone.
func (r *Resolver) Local() *time.Location {
	return r.local
}

// Resolve maps a zone name or offset to a location. It fails with an
// unknown_time_zone error naming the "timezone" field.
func (r *Resolver) Resolve(name string) (*time.Location, error) {
	return r.ResolveField("timezone", name)
}

// ResolveField is Resolve with a caller-chosen argument name for errors.
func (r *Resolver) ResolveField(field, name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	switch strings.ToLower(name) {
	case "", "local":
		return r.local, nil
	case "utc", "z", "gmt", "etc/utc":
		return time.UTC, nil
	}

	r.mu.RLock()
	loc, ok := r.cache[name]
	r.mu.RUnlock()
	if ok {
		return loc, nil
	}

	loc, err := load(name)
	if err != nil {
		return nil, model.UnknownTimeZone(field, name)
	}

	r.mu.Lock()
	r.cache[name] = loc
	r.mu.Unlock()
	return loc, nil
}

func load(name string) (*time.Location, error) {
	if m := offsetPattern.FindStringSubmatch(name); m != nil {
		hours, _ := strconv.Atoi(m[2])
		minutes := 0
		if m[3] != "" {
			minutes, _ = strconv.Atoi(m[3])
		}
		if hours > 14 || minutes > 59 {
			return nil, fmt.Errorf("offset out of range: %s", name)
		}
		secs := hours*3600 + minutes*60
		if m[1] == "-" {
			secs = -secs
		}
		return time.FixedZone(FormatOffset(secs), secs), nil
	}
	// LoadLocation accepts "Local", which would make the result host
	// dependent; that spelling is handled by ResolveField.
	if name == "Local" {
		return nil, fmt.Errorf("ambiguous zone name %q", name)
	}
	return time.LoadLocation(name)
}

// Convert returns t as seen from zone to. The instant is unchanged.
func (r *Resolver) Convert(t time.Time, from, to *time.Location) time.Time {
	if from != nil {
		t = t.In(from)
	}
	return t.In(to)
}

// ParseWallClock interprets value as a wall-clock time in loc. RFC 3339
// values carry their own offset and are only re-anchored to loc.
func ParseWallClock(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range wallClockLayouts {
		if layout == time.RFC3339 {
			if t, err := time.Parse(layout, value); err == nil {
				return t.In(loc), nil
			}
			continue
		}
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized datetime %q, use %s", value, WallClockLayout)
}

// Endpoint is one side of a Conversion.
type Endpoint struct {
	Datetime    string
	Timezone    string
	ISODatetime string
	Date        string
	Time        string
}

// Conversion is the result of converting a wall-clock time between zones.
type Conversion struct {
	Original  Endpoint
	Converted Endpoint

	// OffsetHours is the target offset minus the source offset.
	OffsetHours float64
}

// ConvertWallClock parses value in the zone named from and converts it to the
// zone named to.
func (r *Resolver) ConvertWallClock(value, from, to string) (Conversion, error) {
	src, err := r.ResolveField("fromTimezone", from)
	if err != nil {
		return Conversion{}, err
	}
	dst, err := r.ResolveField("toTimezone", to)
	if err != nil {
		return Conversion{}, err
	}
	t, err := ParseWallClock(value, src)
	if err != nil {
		return Conversion{}, model.InvalidArgument("time", "%v", err)
	}
	converted := r.Convert(t, src, dst)

	_, srcOffset := t.Zone()
	_, dstOffset := converted.Zone()

	return Conversion{
		Original: Endpoint{
			Datetime:    t.Format(WallClockLayout),
			Timezone:    zoneName(src, from),
			ISODatetime: t.Format(time.RFC3339),
			Date:        t.Format(time.DateOnly),
			Time:        t.Format(time.TimeOnly),
		},
		Converted: Endpoint{
			Datetime:    converted.Format(WallClockLayout),
			Timezone:    zoneName(dst, to),
			ISODatetime: converted.Format(time.RFC3339),
			Date:        converted.Format(time.DateOnly),
			Time:        converted.Format(time.TimeOnly),
		},
		OffsetHours: float64(dstOffset-srcOffset) / 3600,
	}, nil
}

// TimeInfo describes an instant in a particular zone.
type TimeInfo struct {
	Year      int
	Month     int
	Day       int
	Weekday   string
	ISODate   string
	Hour      int
	Minute    int
	Second    int
	ISOTime   string
	Zone      string
	UTCOffset string

	// UTCOffsetHours is the zone offset as fractional hours.
	UTCOffsetHours float64

	ISODatetime   string
	UnixTimestamp int64
}

// Now returns the current instant as seen in the named zone.
func (r *Resolver) Now(name string) (TimeInfo, error) {
	loc, err := r.Resolve(name)
	if err != nil {
		return TimeInfo{}, err
	}
	return Describe(r.clock(), loc, zoneName(loc, name)), nil
}

// Describe builds a TimeInfo for t in loc.
func Describe(t time.Time, loc *time.Location, name string) TimeInfo {
	local := t.In(loc)
	_, offset := local.Zone()
	return TimeInfo{
		Year:           local.Year(),
		Month:          int(local.Month()),
		Day:            local.Day(),
		Weekday:        local.Weekday().String(),
		ISODate:        local.Format(time.DateOnly),
		Hour:           local.Hour(),
		Minute:         local.Minute(),
		Second:         local.Second(),
		ISOTime:        local.Format(time.TimeOnly),
		Zone:           name,
		UTCOffset:      local.Format("-0700"),
		UTCOffsetHours: float64(offset) / 3600,
		ISODatetime:    local.Format(time.RFC3339),
		UnixTimestamp:  t.Unix(),
	}
}

// ListZones returns the catalogue zones whose region (first path segment)
// equals region, case-insensitively. An empty region returns every zone.
// The result is a fresh slice in lexical order.
func ListZones(region string) []string {
	region = strings.TrimSuffix(strings.TrimSpace(region), "/")
	out := make([]string, 0, len(catalogue))
	for _, name := range catalogue {
		if region == "" || strings.EqualFold(Region(name), region) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Region returns the first path segment of a zone name, or "Other" for
// names without one.
func Region(name string) string {
	if i := strings.IndexByte(name, '/'); i > 0 {
		return name[:i]
	}
	return "Other"
}

// ZoneDetail is a zone with its current offset.
type ZoneDetail struct {
	Name           string
	UTCOffset      string
	UTCOffsetHours float64
	CurrentTime    string
}

// ZoneListing groups zone details by region.
type ZoneListing struct {
	Regions  []string
	ByRegion map[string][]ZoneDetail
	Total    int
}

// DescribeZones resolves each zone in names at the resolver's current time
// and groups them by region. Names that fail to load are skipped.
func (r *Resolver) DescribeZones(names []string) ZoneListing {
	now := r.clock()
	listing := ZoneListing{ByRegion: make(map[string][]ZoneDetail)}
	for _, name := range names {
		loc, err := r.ResolveField("region", name)
		if err != nil {
			continue
		}
		local := now.In(loc)
		_, offset := local.Zone()
		region := Region(name)
		if _, ok := listing.ByRegion[region]; !ok {
			listing.Regions = append(listing.Regions, region)
		}
		listing.ByRegion[region] = append(listing.ByRegion[region], ZoneDetail{
			Name:           name,
			UTCOffset:      local.Format("-0700"),
			UTCOffsetHours: float64(offset) / 3600,
			CurrentTime:    local.Format(time.TimeOnly),
		})
		listing.Total++
	}
	sort.Strings(listing.Regions)
	return listing
}

// FormatOffset renders an offset in seconds as "+02:00".
func FormatOffset(secs int) string {
	sign := '+'
	if secs < 0 {
		sign = '-'
		secs = -secs
	}
	return fmt.Sprintf("%c%02d:%02d", sign, secs/3600, (secs%3600)/60)
}

// zoneName prefers the caller's spelling unless it was empty or "local".
func zoneName(loc *time.Location, requested string) string {
	switch strings.ToLower(strings.TrimSpace(requested)) {
	case "", "local":
		return loc.String()
	}
	return strings.TrimSpace(requested)
}
