package logging

import (
	"path/filepath"
	"strings"
	"time"
)

const runStamp = "20060102_150405"

// RunFile names a per-run artifact in dir as
// <service>.<start>[.<session prefix>]<ext>. The session prefix is the first
// eight characters of sessionID, enough to tell concurrent runs apart.
func RunFile(dir string, start time.Time, sessionID, ext string) string {
	parts := []string{ServiceName, start.Format(runStamp)}
	if sessionID != "" {
		if len(sessionID) > 8 {
			sessionID = sessionID[:8]
		}
		parts = append(parts, sessionID)
	}
	return filepath.Join(dir, strings.Join(parts, ".")+ext)
}

// LogFilePath is the text log for a run.
func LogFilePath(dir string, start time.Time, sessionID string) string {
	return RunFile(dir, start, sessionID, ".log")
}
