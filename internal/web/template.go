package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/display-sensor/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
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
	},
	"stateOrUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
	"onoff": func(b bool) string {
		if b {
			return "ON"
		}
		return "OFF"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Display Sensor</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.ON, .on { color: green; font-weight: bold; }
.OFF, .off { color: #888; }
.UNKNOWN, .unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Display Sensor</h1>

<h2>Display</h2>
<table>
<tr><th>Phase</th><td id="phase" class="{{stateOrUnknown (printf "%s" .Phase)}}">{{stateOrUnknown (printf "%s" .Phase)}}{{if .Counter}} ({{.Counter}}){{end}}</td></tr>
<tr><th>Power</th><td id="power" class="{{stateOrUnknown (printf "%s" .Power)}}">{{stateOrUnknown (printf "%s" .Power)}}</td></tr>
<tr><th>Kind</th><td>{{.DisplayKind}}</td></tr>
<tr><th>Brightness</th><td>
<form method="post" action="/brightness">
<input type="hidden" name="redirect" value="1">
<input type="range" name="level" min="0" max="255" value="{{.Brightness}}">
<button type="submit">set</button> {{.Brightness}}
</form>
</td></tr>
<tr><th>Ready</th><td>{{if .Ready}}yes{{else}}no{{end}}</td></tr>
</table>

<h2>Sensor</h2>
<table>
{{if .Config.SensorEnabled}}<tr><th>Motion</th><td class="{{onoff .Raw}}">{{onoff .Raw}}</td></tr>
<tr><th>Presence</th><td id="presence" class="{{onoff .Presence}}">{{onoff .Presence}}</td></tr>
<tr><th>Debounce</th><td>{{.DebouncePhase}}{{if .DebounceRemaining}} ({{.DebounceRemaining}}){{end}}</td></tr>
<tr><th>Ticks</th><td>{{.Ticks}}</td></tr>{{else}}<tr><th>Sensor</th><td>disabled</td></tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Presence</th><td>{{.Counts.PresenceOn}}</td></tr>
<tr><th>Absence</th><td>{{.Counts.PresenceOff}}</td></tr>
<tr><th>Display ON</th><td>{{.Counts.DisplayOn}}</td></tr>
<tr><th>Display OFF</th><td>{{.Counts.DisplayOff}}</td></tr>
<tr><th>Failed commands</th><td>{{.Counts.CommandFailures}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Pin</th><td>BCM {{.Config.Pin}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Debounce</th><td>on {{.Config.DebounceOn}} / off {{.Config.DebounceOff}} ticks</td></tr>
<tr><th>Display delays</th><td>on {{.Config.OnDelay}} / off {{.Config.OffDelay}} ticks</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() and Ready() methods but the template needs fields.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Ready  bool
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Ready:    snap.Ready(),
	}
	return indexTmpl.Execute(w, data)
}
