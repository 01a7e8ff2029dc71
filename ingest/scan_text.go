package ingest

import (
	"strings"

	"validation-recorder/models"
)

// DefaultDataSource is the data source name the scanner prints after each
// table it starts checking ("dim_customers in postgres").
const DefaultDataSource = "postgres"

var bannerMarkers = []string{
	"Scan summary:",
	"checks PASSED:",
	"checks FAILED:",
	"Oops!",
}

var statusTokens = []string{"[PASSED]", "[FAILED]", "[ERROR]"}

// ParseScanText recovers check results from the scanner's console output.
// Every check is attributed to the most recent "<table> in <dataSource>" line;
// status lines seen before any such line are dropped. Text output carries no
// metrics, diagnostics or locations.
func ParseScanText(output, scanID, dataSource string) []models.ScanCheck {
	if dataSource == "" {
		dataSource = DefaultDataSource
	}
	tableMarker := " in " + dataSource

	var checks []models.ScanCheck
	currentTable := ""

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(stripTimestampPrefix(line))
		if line == "" || isBanner(line) {
			continue
		}

		if idx := strings.Index(line, tableMarker); idx >= 0 {
			currentTable = strings.TrimLeft(line[:idx], "- ")
			continue
		}

		status, ok := statusToken(line)
		if !ok || currentTable == "" {
			continue
		}

		name := strings.Trim(line[:strings.Index(line, "[")], "- ")
		checks = append(checks, models.ScanCheck{
			ScanID:    scanID,
			TableName: currentTable,
			CheckName: name,
			CheckType: models.DefaultCheckType,
			Status:    status,
		})
	}

	return checks
}

// stripTimestampPrefix removes a leading "[...]" log prefix.
func stripTimestampPrefix(line string) string {
	trimmed := strings.TrimLeft(line, " \t")
	if !strings.HasPrefix(trimmed, "[") {
		return line
	}
	end := strings.Index(trimmed, "]")
	if end < 0 {
		return line
	}
	// a line that is only a status token is not a timestamp
	if isStatusToken(trimmed[:end+1]) {
		return line
	}
	return trimmed[end+1:]
}

func isBanner(line string) bool {
	for _, marker := range bannerMarkers {
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}

func isStatusToken(s string) bool {
	for _, token := range statusTokens {
		if s == token {
			return true
		}
	}
	return false
}

// statusToken returns the earliest bracketed status on the line, without
// brackets.
func statusToken(line string) (string, bool) {
	best := -1
	status := ""
	for _, token := range statusTokens {
		idx := strings.Index(line, token)
		if idx >= 0 && (best < 0 || idx < best) {
			best = idx
			status = strings.Trim(token, "[]")
		}
	}
	return status, best >= 0
}
