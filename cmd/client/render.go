package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"google.golang.org/protobuf/types/known/structpb"
)

var (
	keyStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	headerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Bold(true)
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true)
	criticalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

func statusStyle(status string) lipgloss.Style {
	switch status {
	case "COMPLETED":
		return okStyle
	case "COMPENSATED_FAILURE", "PENDING":
		return warnStyle
	case "UNRECOVERABLE_FAILURE":
		return criticalStyle
	default:
		return headerStyle
	}
}

// renderOutcome prints the status first, then every other field sorted by name
func renderOutcome(resp *structpb.Struct) string {
	fields := resp.AsMap()

	var b strings.Builder
	if status, ok := fields["status"].(string); ok {
		b.WriteString(headerStyle.Render("Transfer "))
		b.WriteString(statusStyle(status).Render(status))
		b.WriteString("\n")
	}
	if remediation, _ := fields["requires_remediation"].(bool); remediation {
		b.WriteString(criticalStyle.Render("Manual remediation required: funds left the source account"))
		b.WriteString("\n")
	}
	renderFields(&b, fields, "  ")
	return strings.TrimRight(b.String(), "\n")
}

func renderFields(b *strings.Builder, fields map[string]interface{}, indent string) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == "status" || k == "requires_remediation" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		b.WriteString(indent)
		b.WriteString(keyStyle.Render(k + ":"))
		if nested, ok := fields[k].(map[string]interface{}); ok {
			b.WriteString("\n")
			renderFields(b, nested, indent+"  ")
			continue
		}
		b.WriteString(" ")
		b.WriteString(formatValue(fields[k]))
		b.WriteString("\n")
	}
}

func formatValue(v interface{}) string {
	switch value := v.(type) {
	case bool:
		if value {
			return "yes"
		}
		return "no"
	case string:
		return value
	default:
		return fmt.Sprint(value)
	}
}
