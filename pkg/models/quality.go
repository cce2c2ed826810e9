package models

import "strconv"

// Quality is the requested maximum video height in pixels.
// QualityUnknown means no height ceiling was selected.
type Quality int

const (
	QualityUnknown Quality = 0
	Quality144     Quality = 144
	Quality240     Quality = 240
	Quality360     Quality = 360
	Quality480     Quality = 480
	Quality720     Quality = 720
	Quality1080    Quality = 1080
)

var validQualities = map[int]Quality{
	144:  Quality144,
	240:  Quality240,
	360:  Quality360,
	480:  Quality480,
	720:  Quality720,
	1080: Quality1080,
}

// ParseQuality maps user input like "720" to a Quality,
// falling back to QualityUnknown for anything unrecognized
func ParseQuality(s string) Quality {
	n, err := strconv.Atoi(s)
	if err != nil {
		return QualityUnknown
	}
	if q, ok := validQualities[n]; ok {
		return q
	}
	return QualityUnknown
}

// Height returns the numeric height ceiling, or 0 when unknown
func (q Quality) Height() int {
	return int(q)
}

// String returns a display form like "720p", or "UN" when unknown
func (q Quality) String() string {
	if q == QualityUnknown {
		return "UN"
	}
	return strconv.Itoa(int(q)) + "p"
}
