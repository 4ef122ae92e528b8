package web

import (
	"encoding/json"
	"time"

	"github.com/sweeney/baby-doll/internal/store"
)

// HistoryJSON is the JSON representation of /history.json.
type HistoryJSON struct {
	History HistoryInner `json:"history"`
}

// HistoryInner contains recent events and tend statistics.
type HistoryInner struct {
	Events    []HistoryEvent `json:"events"`
	TendStats []TendStatJSON `json:"tend_stats"`
}

// HistoryEvent is one stored activity event.
type HistoryEvent struct {
	ID          int64  `json:"id"`
	Session     string `json:"session"`
	Timestamp   string `json:"timestamp"`
	Event       string `json:"event"`
	State       string `json:"state"`
	Need        string `json:"need,omitempty"`
	TimeToTendS *int64 `json:"time_to_tend_s,omitempty"`
	Channel     string `json:"channel,omitempty"`
	HoldS       *int64 `json:"hold_s,omitempty"`
	Message     string `json:"message"`
}

// TendStatJSON summarizes time to tend for one need.
type TendStatJSON struct {
	Need  string `json:"need"`
	Count int    `json:"count"`
	AvgS  int64  `json:"avg_s"`
	MaxS  int64  `json:"max_s"`
}

func formatHistory(entries []store.Entry, stats []store.TendStat) []byte {
	h := HistoryInner{
		Events:    make([]HistoryEvent, 0, len(entries)),
		TendStats: make([]TendStatJSON, 0, len(stats)),
	}
	for _, en := range entries {
		e := en.Event
		he := HistoryEvent{
			ID:        en.ID,
			Session:   en.Session,
			Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(e.Kind),
			State:     string(e.State),
			Need:      string(e.Need),
			Channel:   string(e.Channel),
			Message:   e.Message,
		}
		if e.HasTimeToTend() {
			s := int64(e.TimeToTend / time.Second)
			he.TimeToTendS = &s
		}
		if e.HasHoldDuration() {
			s := int64(e.HoldDuration / time.Second)
			he.HoldS = &s
		}
		h.Events = append(h.Events, he)
	}
	for _, st := range stats {
		h.TendStats = append(h.TendStats, TendStatJSON{
			Need:  string(st.Need),
			Count: st.Count,
			AvgS:  int64(st.Avg / time.Second),
			MaxS:  int64(st.Max / time.Second),
		})
	}

	data, _ := json.MarshalIndent(HistoryJSON{History: h}, "", "  ")
	return data
}
