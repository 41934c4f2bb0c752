package gateway

import (
	"encoding/json"
	"strconv"
	"time"
)

const replayDepth = 500

// Broadcaster builds envelopes and fans them out to matching clients.
type Broadcaster struct {
	hub *Hub
	now func() time.Time
}

// NewBroadcaster creates a Broadcaster backed by the given Hub.
func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub, now: time.Now}
}

// Broadcast sends data on channel to every subscribed client. srcTS, when
// non-zero, is the event time used for latency tracking.
//
// Envelope: {"channel":"...","data":<data>,"ts":"<RFC3339Nano>","seq":N,"channel_seq":M}
// seq is global, channel_seq counts per channel for gap detection.
func (b *Broadcaster) Broadcast(channel string, data []byte, srcTS time.Time) {
	now := b.now().UTC()

	if b.hub.Latency != nil && !srcTS.IsZero() {
		if latencyMs := float64(now.Sub(srcTS).Microseconds()) / 1000.0; latencyMs >= 0 {
			b.hub.Latency.Record(latencyMs)
		}
	}

	b.hub.mu.Lock()
	b.hub.channelSeqs[channel]++
	channelSeq := b.hub.channelSeqs[channel]
	b.hub.seq++
	seq := b.hub.seq
	b.hub.latest[channel] = latestEntry{Data: data, TS: now, Seq: channelSeq}
	rb, exists := b.hub.replayBufs[channel]
	if !exists {
		rb = NewReplayBuffer(replayDepth)
		b.hub.replayBufs[channel] = rb
	}
	b.hub.mu.Unlock()

	buf := appendEnvelope(make([]byte, 0, len(channel)+len(data)+160), channel, data, now, seq, channelSeq)
	rb.Push(channelSeq, buf)

	drops := 0
	b.hub.mu.RLock()
	for client := range b.hub.clients {
		if !client.matchesChannel(channel) {
			continue
		}
		select {
		case client.send <- buf:
		default:
			drops++
		}
	}
	b.hub.mu.RUnlock()

	if drops > 0 && b.hub.Metrics != nil {
		b.hub.Metrics.BroadcastDrops.Add(float64(drops))
	}
}

// appendEnvelope writes the envelope JSON by hand; only channel names that
// need escaping go through encoding/json.
func appendEnvelope(buf []byte, channel string, data []byte, now time.Time, seq, channelSeq int64) []byte {
	buf = append(buf, `{"channel":`...)
	if plainJSONString(channel) {
		buf = append(buf, '"')
		buf = append(buf, channel...)
		buf = append(buf, '"')
	} else {
		quoted, _ := json.Marshal(channel)
		buf = append(buf, quoted...)
	}
	buf = append(buf, `,"data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, `,"channel_seq":`...)
	buf = strconv.AppendInt(buf, channelSeq, 10)
	buf = append(buf, '}')
	return buf
}

func plainJSONString(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 || c == '"' || c == '\\' || c >= 0x80 || c == '<' || c == '>' || c == '&' {
			return false
		}
	}
	return true
}
