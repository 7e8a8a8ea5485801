// Package util provides utility functions for the application.
package util

import (
	"fmt"
	"io"
)

// na returns "N/A" if the input string is empty, otherwise it returns the input string.
func na(v string) string {
	if v == "" {
		return "N/A"
	}
	return v
}

// PrintBuildInfo writes the build version, date, and commit set via -ldflags.
func PrintBuildInfo(w io.Writer, buildVersion, buildDate, buildCommit string) {
	if w == nil {
		return
	}
	_, _ = fmt.Fprintf(w, "Build version: %s\nBuild date: %s\nBuild commit: %s\n",
		na(buildVersion), na(buildDate), na(buildCommit))
}
