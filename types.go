package rosen

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ID references a single row of the topology or schedule repository.
// Only positive numbers are valid; 0 means "none".
type ID int64

func (id ID) String() string {
	return fmt.Sprintf("<%d>", int64(id))
}

// GraphKind determines which loader path populates a layout.
type GraphKind int

const (
	KindNone GraphKind = iota
	KindStation
	KindSegment
	KindLine
)

func (k GraphKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindStation:
		return "station"
	case KindSegment:
		return "segment"
	case KindLine:
		return "line"
	default:
		return fmt.Sprintf("GraphKind(%d)", int(k))
	}
}

// ParseGraphKind is the inverse of GraphKind.String.
func ParseGraphKind(s string) (GraphKind, error) {
	switch s {
	case "none", "":
		return KindNone, nil
	case "station":
		return KindStation, nil
	case "segment":
		return KindSegment, nil
	case "line":
		return KindLine, nil
	}
	return KindNone, fmt.Errorf("unknown graph kind %q", s)
}

type StationType int8

const (
	StationNormal StationType = iota
	// StationSimpleStop lets trains stop, but not start or end there.
	StationSimpleStop
	// StationJunction is not a real station but a junction between two lines.
	StationJunction
)

func (t StationType) String() string {
	switch t {
	case StationNormal:
		return "normal"
	case StationSimpleStop:
		return "simple-stop"
	case StationJunction:
		return "junction"
	default:
		return fmt.Sprintf("StationType(%d)", int(t))
	}
}

// TrackType is a bitset of station track (platform) classifications.
type TrackType int8

const (
	TrackElectrified TrackType = 1 << 0
	TrackThrough     TrackType = 1 << 1
)

func (t TrackType) Has(flag TrackType) bool { return t&flag == flag }

// JobCategory classifies a job (train run). Values below CategoryRegional are freight-like.
type JobCategory int

const (
	CategoryFreight JobCategory = iota
	CategoryLIS
	CategoryPostal
	CategoryRegional
	CategoryFastRegional
	CategoryLocal
	CategoryIntercity
	CategoryExpress
	CategoryDirect
	CategoryHighSpeed
	nCategories
)

var categoryNames = [nCategories]string{
	"freight", "lis", "postal", "regional", "fast-regional",
	"local", "intercity", "express", "direct", "high-speed",
}

func (c JobCategory) String() string {
	if c < 0 || c >= nCategories {
		return fmt.Sprintf("JobCategory(%d)", int(c))
	}
	return categoryNames[c]
}

// IsPassenger reports whether c carries passengers.
func (c JobCategory) IsPassenger() bool { return c >= CategoryRegional && c < nCategories }

// TimeOfDay is a wall-clock time as milliseconds since midnight.
type TimeOfDay int64

const (
	MsecPerHour = int64(time.Hour / time.Millisecond)
	MsecPerDay  = 24 * MsecPerHour
)

// Clock builds a TimeOfDay from hours, minutes and seconds.
func Clock(h, m, s int) TimeOfDay {
	return TimeOfDay((int64(h)*3600 + int64(m)*60 + int64(s)) * 1000)
}

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("parse time of day %q: want HH:MM or HH:MM:SS", s)
	}
	var v [3]int
	for i, p := range parts {
		if p == "" || strings.TrimLeft(p, "0123456789") != "" {
			return 0, fmt.Errorf("parse time of day %q: bad field %q", s, p)
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, fmt.Errorf("parse time of day %q: %w", s, err)
		}
		v[i] = n
	}
	h, m, sec := v[0], v[1], v[2]
	if h > 23 || m > 59 || sec > 59 {
		return 0, fmt.Errorf("time of day %q out of range", s)
	}
	return Clock(h, m, sec), nil
}

// HourFraction returns the time in (fractional) hours since midnight.
func (t TimeOfDay) HourFraction() float64 {
	return float64(t) / float64(MsecPerHour)
}

func (t TimeOfDay) String() string {
	ms := int64(t)
	return fmt.Sprintf("%02d:%02d:%02d", ms/MsecPerHour, ms/60000%60, ms/1000%60)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%d", int64(t))), nil
}

// UnmarshalJSON accepts milliseconds since midnight or a "HH:MM[:SS]" string.
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		parsed, err := ParseTimeOfDay(string(data[1 : len(data)-1]))
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	}
	ms, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("time of day %s: %w", data, err)
	}
	*t = TimeOfDay(ms)
	return nil
}
