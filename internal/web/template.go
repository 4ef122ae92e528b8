package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/baby-doll/internal/logic"
	"github.com/sweeney/baby-doll/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"duration": formatDuration,
	"stateOrUnknown": func(s logic.BabyState) string {
		if s == "" {
			return "UNKNOWN"
		}
		return string(s)
	},
	"stateClass": func(s logic.BabyState) string {
		switch s {
		case logic.StateSleeping:
			return "sleeping"
		case logic.StateHungry, logic.StateWetDiaper:
			return "need"
		}
		return "unknown"
	},
	"since": func(now, t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return formatDuration(now.Sub(t)) + " ago"
	},
}).Parse(indexHTML))

func formatDuration(d time.Duration) string {
	d = d.Truncate(time.Second)
	days := int(d.Hours()) / 24
	h := int(d.Hours()) % 24
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
	}
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Baby Doll</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.sleeping { color: green; font-weight: bold; }
.need { color: red; font-weight: bold; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Baby Doll</h1>

<h2>Baby</h2>
<table>
<tr><th>State</th><td id="baby-state" class="{{stateClass .Baby.State}}">{{stateOrUnknown .Baby.State}}</td></tr>
{{if .Baby.NeedStart}}<tr><th>Waiting</th><td>{{duration .NeedDuration}}</td></tr>{{end}}
<tr><th>Last fed</th><td>{{since .Now .Baby.LastFed}}</td></tr>
<tr><th>Last diaper change</th><td>{{since .Now .Baby.LastDiaperChange}}</td></tr>
<tr><th>Asleep since</th><td>{{since .Now .Baby.LastSleepStart}}</td></tr>
{{if .LastEvent}}<tr><th>Last event</th><td>{{.LastEvent.Message}}</td></tr>{{end}}
</table>

<h2>Buttons</h2>
<table>
{{range .Buttons}}<tr><th>{{.Channel}} (hold {{duration .Required}})</th><td>{{if .Confirmed}}held, confirmed{{else if .Pressed}}pressed {{duration .Held}}{{else}}released{{end}}</td></tr>
{{end}}</table>

<h2>Event Counts</h2>
<table>
<tr><th>Fed</th><td>{{.Counts.Fed}}</td></tr>
<tr><th>Diaper changed</th><td>{{.Counts.DiaperChanged}}</td></tr>
<tr><th>Incorrect actions</th><td>{{.Counts.IncorrectActions}}</td></tr>
<tr><th>Failed holds</th><td>{{.Counts.FailedHolds}}</td></tr>
<tr><th>Bounces</th><td>{{.Counts.Bounces}}</td></tr>
<tr><th>Reminders</th><td>{{.Counts.Reminders}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Session</th><td>{{.Session}}</td></tr>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Uptime</th><td>{{duration .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/history.json">History</a></p>
</body>
</html>
`

type buttonView struct {
	logic.ButtonSnapshot
	Held time.Duration
}

func renderHTML(w io.Writer, snap status.Snapshot) {
	buttons := make([]buttonView, 0, len(snap.Buttons))
	for _, b := range snap.Buttons {
		v := buttonView{ButtonSnapshot: b}
		if b.Pressed {
			v.Held = snap.Now.Sub(b.PressStart)
		}
		buttons = append(buttons, v)
	}
	// Snapshot has methods but the template needs plain fields.
	data := struct {
		status.Snapshot
		Buttons      []buttonView
		Uptime       time.Duration
		NeedDuration time.Duration
	}{
		Snapshot:     snap,
		Buttons:      buttons,
		Uptime:       snap.Uptime(),
		NeedDuration: snap.NeedDuration(),
	}
	indexTmpl.Execute(w, data)
}
