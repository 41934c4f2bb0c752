package model

import "encoding/json"

// IndicatorResult is the indicator view of a series after an append.
// SMA and EMA are nil until enough samples have been seen.
type IndicatorResult struct {
	SeriesID  string   `json:"series"`
	TS        int64    `json:"timestamp"` // timestamp of the sample that produced this view
	Value     float64  `json:"value"`
	Count     int      `json:"count"`
	SMAPeriod int      `json:"sma_period"`
	EMAPeriod int      `json:"ema_period"`
	SMA       *float64 `json:"sma"`
	EMA       *float64 `json:"ema"`
}

// Channel returns the fan-out channel name: "series:{id}".
func (r *IndicatorResult) Channel() string {
	return "series:" + r.SeriesID
}

// PubSubChannel returns the Redis PubSub channel: "pub:series:{id}".
func (r *IndicatorResult) PubSubChannel() string {
	return "pub:" + r.Channel()
}

// LatestKey returns the Redis key holding the latest result: "series:latest:{id}".
func (r *IndicatorResult) LatestKey() string {
	return "series:latest:" + r.SeriesID
}

// JSON returns the JSON-encoded indicator result.
func (r *IndicatorResult) JSON() []byte {
	b, _ := json.Marshal(r)
	return b
}
