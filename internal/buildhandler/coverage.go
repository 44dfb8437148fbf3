package buildhandler

import (
	"encoding/xml"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var packageDeclRegex = regexp.MustCompile(`(?m)^\s*package\s+([\w.]+)\s*;`)

// deriveFQC parses sourcePath's Java package declaration and returns its
// fully-qualified class name (package/Base, slash-separated) plus the
// file's base name, for matching against a JaCoCo report's
// class[@name]/class[@sourcefilename] attributes.
func deriveFQC(sourcePath string) (fqc string, base string, err error) {
	if !strings.HasSuffix(sourcePath, ".java") {
		return "", "", ErrNotJavaFile
	}
	base = filepath.Base(sourcePath)

	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return "", "", fmt.Errorf("%w: %s", ErrUnparseableSource, err)
	}

	m := packageDeclRegex.FindSubmatch(data)
	if m == nil {
		return "", "", ErrNoPackageDecl
	}
	pkg := strings.ReplaceAll(string(m[1]), ".", "/")
	className := strings.TrimSuffix(base, ".java")
	return pkg + "/" + className, base, nil
}

// jacocoReport is the subset of JaCoCo's XML report schema needed to
// resolve a single class's line coverage.
type jacocoReport struct {
	Packages []jacocoPackage `xml:"package"`
}

type jacocoPackage struct {
	Classes []jacocoClass `xml:"class"`
}

type jacocoClass struct {
	Name           string          `xml:"name,attr"`
	SourceFileName string          `xml:"sourcefilename,attr"`
	Counters       []jacocoCounter `xml:"counter"`
}

type jacocoCounter struct {
	Type    string `xml:"type,attr"`
	Missed  int    `xml:"missed,attr"`
	Covered int    `xml:"covered,attr"`
}

// coverageInReport scans report (a JaCoCo XML document, named either
// jacoco.xml for Maven or jacocoTestReport.xml for Gradle) for the
// class matching fqc/base and returns its line coverage percentage.
// Returns ok=false if the class is not listed in this report at all.
func coverageInReport(reportPath, fqc, base string) (coverage float64, ok bool, err error) {
	f, err := os.Open(reportPath)
	if err != nil {
		return 0, false, err
	}
	defer f.Close()

	var report jacocoReport
	dec := xml.NewDecoder(f)
	dec.Strict = false
	if err := dec.Decode(&report); err != nil {
		return 0, false, fmt.Errorf("buildhandler: parse coverage report %s: %w", reportPath, err)
	}

	for _, pkg := range report.Packages {
		for _, class := range pkg.Classes {
			if class.SourceFileName != base || class.Name != fqc {
				continue
			}
			for _, counter := range class.Counters {
				if counter.Type != "LINE" {
					continue
				}
				denom := counter.Covered + counter.Missed
				if denom == 0 {
					return 0, true, nil
				}
				pct := float64(counter.Covered) / float64(denom) * 100
				return pct, true, nil
			}
			return 0, true, nil
		}
	}
	return 0, false, nil
}

// findCoverageReports walks repoDir for every report file relevant to
// system: Maven's jacoco.xml files anywhere under target/site, Gradle's
// jacocoTestReport.xml files anywhere under build/reports/jacoco (the
// XML report jacocoTestReport emits alongside its human-readable HTML
// one, which shares Maven's report schema).
func findCoverageReports(repoDir string, system BuildSystem) ([]string, error) {
	var anchor, name string
	switch system {
	case BuildSystemMaven:
		anchor, name = "target/site", "jacoco.xml"
	case BuildSystemGradle:
		anchor, name = "build/reports/jacoco", "jacocoTestReport.xml"
	default:
		return nil, fmt.Errorf("buildhandler: no coverage reports for build system %q", system)
	}

	var reports []string
	root := filepath.Join(repoDir, filepath.FromSlash(anchor))
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return fs.SkipDir
			}
			return err
		}
		if !d.IsDir() && d.Name() == name {
			reports = append(reports, path)
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return reports, nil
}

// coverageForFile implements the per-file coverage lookup shared by both
// Maven and Gradle handlers: derive the class's FQC, scan every matching
// report, and yield a CoverageHit per report that lists the class. A
// class absent from a report that does list other classes is reported
// as -1 for that report; a class entirely absent from every report
// yields ErrFileNotCovered.
func coverageForFile(repoDir string, system BuildSystem, sourcePath string) ([]CoverageHit, error) {
	fqc, base, err := deriveFQC(sourcePath)
	if err != nil {
		return nil, err
	}

	reports, err := findCoverageReports(repoDir, system)
	if err != nil {
		return nil, err
	}

	var hits []CoverageHit
	found := false
	for _, report := range reports {
		pct, ok, err := coverageInReport(report, fqc, base)
		if err != nil {
			continue
		}
		if !ok {
			hits = append(hits, CoverageHit{Report: report, Coverage: -1})
			continue
		}
		found = true
		hits = append(hits, CoverageHit{Report: report, Coverage: pct})
	}

	if !found {
		return nil, ErrFileNotCovered
	}
	return hits, nil
}
