package main

import (
	"encoding/json"
	"io"

	"github.com/fatih/color"

	"github.com/animus-labs/stamps/internal/domain"
)

var (
	passedColor  = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	failedColor  = color.New(color.FgRed, color.Bold)
	otherColor   = color.New(color.FgCyan)
)

func colorStatus(status domain.StatusID) string {
	switch status {
	case domain.StatusPassed, domain.StatusFixed:
		return passedColor.Sprint(status)
	case domain.StatusWarning, domain.StatusExplained, domain.StatusInvestigating:
		return warningColor.Sprint(status)
	case domain.StatusFailed, domain.StatusDefective:
		return failedColor.Sprint(status)
	default:
		return otherColor.Sprint(status)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
