package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/irrigator/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		switch {
		case days > 0:
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		case h > 0:
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		case m > 0:
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"minutes": func(secs uint32) string {
		return fmt.Sprintf("%.1f", float64(secs)/60)
	},
	"liters": func(l *float64) string {
		if l == nil {
			return "-"
		}
		return fmt.Sprintf("%.1f L", *l)
	},
	"yesno": func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Irrigator</title>
<style>
body { font-family: monospace; max-width: 720px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.fault, .disconnected { color: red; }
.connected { color: green; }
</style>
</head>
<body>
<h1>Irrigator</h1>

<h2>Pumps</h2>
{{if .Status.Pumps}}<table>
<tr><th>Pump</th><th>State</th><th>Policy</th><th>Runs</th><th>Rest (min)</th><th>Daily</th><th>Switch</th></tr>
{{range .Status.Pumps}}<tr>
<td><a href="/pumps/{{.ID}}.json">{{.ID}}</a></td>
<td class="{{if .Pumping}}on{{else}}off{{end}}">{{.State}}</td>
<td>{{.Policy}}</td>
<td>{{.Activations}}</td>
<td>{{minutes .RestIntervalSeconds}}</td>
<td>{{liters .DailyLiters}}</td>
<td>{{if .SwitchPressed}}pressed{{else}}-{{end}}</td>
</tr>
{{end}}</table>{{else}}<p>Waiting for the first tick.</p>{{end}}

<h2>Sensors</h2>
<table>
<tr><th>Water</th><td class="{{if .Status.Sensors.Water.Present}}on{{else}}fault{{end}}">{{if .Status.Sensors.Water.Present}}present{{else}}absent{{end}}</td></tr>
<tr><th>Air</th><td{{if .Status.Sensors.Air.Fault}} class="fault"{{end}}>{{printf "%.1f" .Status.Sensors.Air.TemperatureC}} °C, {{printf "%.0f" .Status.Sensors.Air.HumidityPct}} %, dew point {{printf "%.1f" .Status.Sensors.Air.DewPointC}} °C{{if .Status.Sensors.Air.Fault}} (fault){{end}}</td></tr>
<tr><th>Air wants water</th><td>{{yesno .Status.Sensors.Air.WantsWater}}</td></tr>
{{range .Status.Sensors.Soil}}<tr><th>Soil {{.ID}}</th><td>probes dry {{index .Dry 0}}/{{index .Dry 1}}, counts {{index .DryCounts 0}}/{{index .DryCounts 1}}, wants water {{yesno .WantsWater}}</td></tr>
{{end}}<tr><th>Knob</th><td>{{.Status.Knob}} / 1023</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .Status.MQTT.Connected}}connected{{else}}disconnected{{end}}">{{if .Status.MQTT.Connected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Status.MQTT.Broker}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.Status.StartTime}}</td></tr>
<tr><th>Poll</th><td>{{.Status.Config.PollMs}}ms</td></tr>
<tr><th>Cycle</th><td>{{.Status.Config.CycleSeconds}}s</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Status.Config.HeartbeatMs 0}}disabled{{else}}{{.Status.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Status.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	data := struct {
		Status status.StatusInner
		Uptime time.Duration
	}{
		Status: status.BuildInner(snap),
		Uptime: snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
