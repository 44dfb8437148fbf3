package buildhandler

import (
	"regexp"
	"strings"
)

// Maven prints one "[INFO] Downloading from ..." line per artifact probe;
// contiguous runs collapse into a single placeholder line. The
// unapproved-licenses warning block keeps its header but its per-file
// entries collapse the same way.
var (
	downloadLineRegex  = regexp.MustCompile(`^\[INFO\] Download(ing|ed) from`)
	licenseHeaderRegex = regexp.MustCompile(`^\[WARNING\] Files with unapproved licenses:`)
	licenseEntryRegex  = regexp.MustCompile(`^\s+\?/\.m2/repository`)
)

const (
	downloadPlaceholder = "[CRAB] Downloading stuff"
	licensePlaceholder  = "[CRAB] List of all the unapproved licenses..."
)

// cleanOutput collapses Maven download spam and unapproved-license blocks
// into single placeholder lines, leaving the lines a human (or a test
// assertion) actually cares about.
func cleanOutput(raw string) string {
	lines := strings.Split(raw, "\n")
	lines = mergeDownloadLines(lines)
	lines = mergeUnapprovedLicenses(lines)
	return strings.Join(lines, "\n")
}

// mergeDownloadLines replaces each contiguous run of download lines with
// one placeholder.
func mergeDownloadLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	inBlock := false
	for _, line := range lines {
		if downloadLineRegex.MatchString(line) {
			if !inBlock {
				out = append(out, downloadPlaceholder)
				inBlock = true
			}
			continue
		}
		out = append(out, line)
		inBlock = false
	}
	return out
}

// mergeUnapprovedLicenses keeps the warning header, replaces the indented
// per-file entries that follow it with one placeholder, and resumes
// normal output at the first non-entry line.
func mergeUnapprovedLicenses(lines []string) []string {
	out := make([]string, 0, len(lines))
	inBlock := false
	for _, line := range lines {
		if licenseHeaderRegex.MatchString(line) {
			out = append(out, line, licensePlaceholder)
			inBlock = true
			continue
		}
		if inBlock && licenseEntryRegex.MatchString(line) {
			continue
		}
		inBlock = false
		out = append(out, line)
	}
	return out
}
