package models

import "time"

// CurrentTimeModel is the fixture clock as the inference routes see it.
// EpochSeconds is the floored timestamp an inference made now would use.
type CurrentTimeModel struct {
	ReadableTime string `json:"readableTime"`
	Time         int64  `json:"time"`
	EpochSeconds int64  `json:"epochSeconds"`
	Timezone     string `json:"timezone"`
}

// NewCurrentTimeModel describes t, rendered in loc.
func NewCurrentTimeModel(t time.Time, loc *time.Location) CurrentTimeModel {
	if loc != nil {
		t = t.In(loc)
	}
	return CurrentTimeModel{
		ReadableTime: t.Format(time.RFC3339),
		Time:         t.UnixMilli(),
		EpochSeconds: t.Unix(),
		Timezone:     t.Location().String(),
	}
}
