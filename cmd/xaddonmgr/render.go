package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"xaddonmgr/pkg/model"
)

var (
	dim     = lipgloss.Color("#6B7280")
	success = lipgloss.Color("#22C55E")
	danger  = lipgloss.Color("#EF4444")
	warning = lipgloss.Color("#F59E0B")

	headerStyle   = lipgloss.NewStyle().Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(dim)
	criticalStyle = lipgloss.NewStyle().Foreground(danger).Bold(true)
	warnStyle     = lipgloss.NewStyle().Foreground(warning)
	infoStyle     = lipgloss.NewStyle().Foreground(dim)
	okStyle       = lipgloss.NewStyle().Foreground(success)
)

func renderPacks(packs []model.SceneryPack) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-5s %-4s %-5s %-45s %s", "SCORE", "CAT", "STATE", "NAME", "CONTENT")))
	b.WriteString("\n")
	for _, p := range packs {
		state := "on"
		switch p.Status {
		case model.StatusDisabled:
			state = "off"
		case model.StatusDuplicateHidden:
			state = "dup"
		}

		content := ""
		if n := len(p.Airports); n > 0 {
			content = fmt.Sprintf("%d apt", n)
		}
		if n := len(p.Tiles); n > 0 {
			if content != "" {
				content += ", "
			}
			content += fmt.Sprintf("%d tiles", n)
		}

		line := fmt.Sprintf("%5d %-4s %-5s %-45s %s", p.Score, p.Category.ShortCode(), state, truncate(p.Name, 45), content)
		if p.Status != model.StatusActive {
			line = dimStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func renderReport(report model.ValidationReport) string {
	if len(report.Issues) == 0 {
		return okStyle.Render("No layering issues found.") + "\n"
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%d issue(s) found", len(report.Issues))))
	b.WriteString("\n")
	for _, issue := range report.Issues {
		var tag string
		switch issue.Severity {
		case model.SeverityCritical:
			tag = criticalStyle.Render("CRIT")
		case model.SeverityWarning:
			tag = warnStyle.Render("WARN")
		default:
			tag = infoStyle.Render("INFO")
		}
		b.WriteString(fmt.Sprintf("%s  %s: %s\n", tag, issue.IssueType, issue.Message))
		if issue.FixSuggestion != "" {
			b.WriteString(dimStyle.Render("      fix: " + issue.FixSuggestion))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func renderPrompt(text string, p model.FlightPrompt) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%q", text)))
	b.WriteString("\n")

	loc := func(l *model.FlightPromptLocation) string {
		if l == nil {
			return dimStyle.Render("(unconstrained)")
		}
		switch l.Kind {
		case "icao":
			return l.ICAO
		case "near_city":
			return fmt.Sprintf("near %s (%.4f, %.4f)", l.Name, l.Lat, l.Lon)
		case "region":
			return "region " + l.Name
		case "here":
			return "current location"
		case "any":
			return "anywhere"
		default:
			return fmt.Sprintf("airport matching %q", l.Name)
		}
	}

	b.WriteString(fmt.Sprintf("  origin:      %s\n", loc(p.Origin)))
	b.WriteString(fmt.Sprintf("  destination: %s\n", loc(p.Destination)))
	if p.Aircraft != "" {
		b.WriteString(fmt.Sprintf("  aircraft:    %s\n", p.Aircraft))
	}
	if p.DurationMinutes != nil {
		b.WriteString(fmt.Sprintf("  duration:    %d min\n", *p.DurationMinutes))
	}
	if kw := renderKeywords(p.Keywords); kw != "" {
		b.WriteString(fmt.Sprintf("  keywords:    %s\n", kw))
	}
	if p.IgnoreGuardrails {
		b.WriteString(warnStyle.Render("  guardrails ignored"))
		b.WriteString("\n")
	}
	return b.String()
}

func renderKeywords(kw model.FlightPromptKeywords) string {
	var parts []string
	add := func(label, v string) {
		if v != "" {
			parts = append(parts, label+"="+v)
		}
	}
	add("duration", kw.Duration)
	add("surface", kw.Surface)
	add("type", kw.FlightType)
	add("time", kw.Time)
	add("weather", kw.Weather)
	return strings.Join(parts, " ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
