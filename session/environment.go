package session

import (
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"ospi/api/models"
)

// Browser and operating system codes used by the classifier's training data.
const (
	BrowserChrome  = 1
	BrowserFirefox = 2
	BrowserSafari  = 3
	BrowserEdge    = 4
	BrowserOpera   = 5

	OSWindows = 1
	OSMac     = 2
	OSLinux   = 3
	OSAndroid = 4
	OSIOS     = 5
)

const (
	VisitorNew       = "New_Visitor"
	VisitorReturning = "Returning_Visitor"

	maxRegion      = 9
	maxTrafficType = 20
)

var monthNames = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// DetectBrowser maps a User-Agent to a browser code, defaulting to Chrome.
// Edge and Opera advertise "Chrome" too, so they are matched first.
func DetectBrowser(userAgent string) int {
	switch {
	case strings.Contains(userAgent, "Edg"):
		return BrowserEdge
	case strings.Contains(userAgent, "OPR"), strings.Contains(userAgent, "Opera"):
		return BrowserOpera
	case strings.Contains(userAgent, "Firefox"):
		return BrowserFirefox
	case strings.Contains(userAgent, "Chrome"):
		return BrowserChrome
	case strings.Contains(userAgent, "Safari"):
		return BrowserSafari
	default:
		return BrowserChrome
	}
}

// DetectOperatingSystem maps a User-Agent to an OS code, defaulting to Windows.
func DetectOperatingSystem(userAgent string) int {
	switch {
	case strings.Contains(userAgent, "Windows"):
		return OSWindows
	case strings.Contains(userAgent, "iPhone"), strings.Contains(userAgent, "iPad"), strings.Contains(userAgent, "iOS"):
		return OSIOS
	case strings.Contains(userAgent, "Mac"):
		return OSMac
	case strings.Contains(userAgent, "Android"):
		return OSAndroid
	case strings.Contains(userAgent, "Linux"):
		return OSLinux
	default:
		return OSWindows
	}
}

// MonthName returns the three letter month abbreviation for t.
func MonthName(t time.Time) string {
	return monthNames[t.Month()-1]
}

// MonthNumber is the inverse of MonthName. It returns 0 for unknown names.
func MonthNumber(name string) int {
	for i, m := range monthNames {
		if m == name {
			return i + 1
		}
	}
	return 0
}

func IsWeekend(t time.Time) bool {
	day := t.Weekday()
	return day == time.Saturday || day == time.Sunday
}

// Sampler seeds a fresh FeatureVector from ambient context.
type Sampler interface {
	Sample(now time.Time) models.FeatureVector
}

// EnvironmentSampler samples client identity from a User-Agent and fills the
// fields the client cannot report (region, traffic type, visitor type) at
// random.
type EnvironmentSampler struct {
	userAgent string

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewEnvironmentSampler returns a sampler for one client. A nil rnd uses a
// randomly seeded source.
func NewEnvironmentSampler(userAgent string, rnd *rand.Rand) *EnvironmentSampler {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &EnvironmentSampler{userAgent: userAgent, rnd: rnd}
}

func (e *EnvironmentSampler) Sample(now time.Time) models.FeatureVector {
	e.mu.Lock()
	region := e.rnd.IntN(maxRegion) + 1
	traffic := e.rnd.IntN(maxTrafficType) + 1
	visitor := VisitorNew
	if e.rnd.IntN(2) == 1 {
		visitor = VisitorReturning
	}
	e.mu.Unlock()

	return models.FeatureVector{
		BounceRate:          1.0,
		ExitRate:            1.0,
		Month:               MonthName(now),
		OperatingSystemCode: DetectOperatingSystem(e.userAgent),
		BrowserCode:         DetectBrowser(e.userAgent),
		RegionCode:          region,
		TrafficTypeCode:     traffic,
		VisitorTypeLabel:    visitor,
		IsWeekend:           IsWeekend(now),
	}
}
