package notification

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/telhawk-systems/loginwatch/internal/models"
)

// Report kinds delivered over notification channels.
const (
	KindAnomalousLogin     = "anomalous_login"
	KindSuspiciousActivity = "suspicious_activity"
	KindCriticalAlert      = "critical_alert"
)

// Report is a rendered security report ready for delivery.
type Report struct {
	Kind      string    `json:"kind"`
	Subject   string    `json:"subject"`
	HTML      string    `json:"html"`
	Generated time.Time `json:"generated"`
}

var anomalousTmpl = template.Must(template.New("anomalous").Parse(`
<h2 style="color: #d9534f;">Security Alert: Unusual Login Activity</h2>
<p>An unusual login attempt has been detected:</p>
<table border="1" cellpadding="8" cellspacing="0">
  <tr><th>Field</th><th>Value</th></tr>
  <tr><td>Computer Name</td><td>{{.ComputerName}}</td></tr>
  <tr><td>User Name</td><td>{{.UserName}}</td></tr>
  <tr><td>IP Address</td><td>{{.IPAddress}}</td></tr>
  <tr><td>Event Time</td><td>{{.Time.Format "2006-01-02 15:04:05 MST"}}</td></tr>
  <tr><td>Event Type</td><td>{{.EventType}}</td></tr>
  <tr><td>Status</td><td>{{.Status}}</td></tr>
</table>
<p><strong>Action Required:</strong> Please review this login attempt and take appropriate action if suspicious.</p>
<p style="font-size: 12px;">This is an automated security alert. Please do not reply.</p>
`))

type summaryData struct {
	Events      []models.Event
	Total       int
	UniqueIPs   int
	UniqueUsers int
	Recent      []models.Event
}

var summaryTmpl = template.Must(template.New("summary").Parse(`
<h2 style="color: #d9534f;">Daily Security Report</h2>
<p>Summary of suspicious activities detected in the last 24 hours:</p>
<table border="1" cellpadding="8" cellspacing="0">
  <tr><th>Metric</th><th>Value</th></tr>
  <tr><td>Total Suspicious Events</td><td>{{.Total}}</td></tr>
  <tr><td>Unique IPs</td><td>{{.UniqueIPs}}</td></tr>
  <tr><td>Unique Users</td><td>{{.UniqueUsers}}</td></tr>
</table>
<h3>Recent Suspicious Activities</h3>
<table border="1" cellpadding="8" cellspacing="0">
  <tr><th>Time</th><th>User</th><th>IP</th><th>Computer</th><th>Event Type</th></tr>
  {{range .Recent}}<tr><td>{{.Time.Format "2006-01-02 15:04:05"}}</td><td>{{.UserName}}</td><td>{{.IPAddress}}</td><td>{{.ComputerName}}</td><td>{{.EventType}}</td></tr>
  {{end}}
</table>
<p style="font-size: 12px;">This is an automated security report. Please do not reply.</p>
`))

var criticalTmpl = template.Must(template.New("critical").Parse(`
<h2 style="color: #d9534f;">CRITICAL SECURITY ALERT</h2>
<p><strong>Multiple failed login attempts have been detected:</strong></p>
<table border="1" cellpadding="8" cellspacing="0">
  <tr><th>Time</th><th>User</th><th>IP</th><th>Computer</th></tr>
  {{range .Recent}}<tr><td>{{.Time.Format "2006-01-02 15:04:05"}}</td><td>{{.UserName}}</td><td>{{.IPAddress}}</td><td>{{.ComputerName}}</td></tr>
  {{end}}
</table>
<p><strong>Immediate action recommended:</strong> review the source addresses and consider blocking the affected identities.</p>
<p style="font-size: 12px;">This is an automated security alert. Please do not reply.</p>
`))

// AnomalousLoginAlert renders an alert for a single unusual login event.
func AnomalousLoginAlert(ev models.Event) (*Report, error) {
	var buf bytes.Buffer
	if err := anomalousTmpl.Execute(&buf, ev); err != nil {
		return nil, fmt.Errorf("render anomalous login alert: %w", err)
	}
	return &Report{
		Kind:      KindAnomalousLogin,
		Subject:   "Security Alert: Unusual Login Activity Detected",
		HTML:      buf.String(),
		Generated: time.Now().UTC(),
	}, nil
}

// SuspiciousActivitySummary renders the daily rollup of suspicious events.
func SuspiciousActivitySummary(events []models.Event) (*Report, error) {
	data := summarize(events)
	var buf bytes.Buffer
	if err := summaryTmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render suspicious activity summary: %w", err)
	}
	return &Report{
		Kind:      KindSuspiciousActivity,
		Subject:   "Daily Security Report: Suspicious Activities",
		HTML:      buf.String(),
		Generated: time.Now().UTC(),
	}, nil
}

// CriticalSecurityAlert renders an alert for a burst of failed logins.
func CriticalSecurityAlert(events []models.Event) (*Report, error) {
	data := summarize(events)
	var buf bytes.Buffer
	if err := criticalTmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render critical security alert: %w", err)
	}
	return &Report{
		Kind:      KindCriticalAlert,
		Subject:   "CRITICAL: Multiple Failed Login Attempts Detected",
		HTML:      buf.String(),
		Generated: time.Now().UTC(),
	}, nil
}

func summarize(events []models.Event) summaryData {
	ips := make(map[string]struct{})
	users := make(map[string]struct{})
	for _, ev := range events {
		ips[ev.IPAddress] = struct{}{}
		users[ev.UserName] = struct{}{}
	}
	recent := events
	if len(recent) > 5 {
		recent = recent[:5]
	}
	return summaryData{
		Events:      events,
		Total:       len(events),
		UniqueIPs:   len(ips),
		UniqueUsers: len(users),
		Recent:      recent,
	}
}
