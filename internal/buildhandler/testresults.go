package buildhandler

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// mavenSummaryLine matches Maven Surefire's per-module summary, e.g.
// "[INFO] Tests run: 12, Failures: 1, Errors: 0, Skipped: 2". A build
// emits one such line per module; all occurrences are summed.
var mavenSummaryLine = regexp.MustCompile(`Tests run:\s*(\d+),\s*Failures:\s*(\d+),\s*Errors:\s*(\d+),\s*Skipped:\s*(\d+)`)

// parseMavenTestSummary sums every "[INFO] Tests run: ..." line found in
// output. passed = total - failures - errors; skipped tests are not
// subtracted, so they are counted in Passed.
func parseMavenTestSummary(output string) (TestSummary, error) {
	matches := mavenSummaryLine.FindAllStringSubmatch(output, -1)
	if len(matches) == 0 {
		return TestSummary{}, ErrNoTestResults
	}

	var total, failures, errorsCount int
	for _, m := range matches {
		total += atoi(m[1])
		failures += atoi(m[2])
		errorsCount += atoi(m[3])
	}
	return TestSummary{
		Total:  total,
		Failed: failures + errorsCount,
		Passed: total - failures - errorsCount,
	}, nil
}

// parseGradleTestSummary reads build/reports/tests/test/index.html and
// extracts the "tests" and "failures" counters Gradle's HTML report
// renders, per the infoBox#tests / infoBox#failures selectors.
func parseGradleTestSummary(reportPath string) (TestSummary, error) {
	f, err := os.Open(reportPath)
	if err != nil {
		return TestSummary{}, ErrNoTestResults
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return TestSummary{}, ErrNoTestResults
	}

	total, ok := counterValue(doc, "div.infoBox#tests > div.counter")
	if !ok {
		return TestSummary{}, ErrNoTestResults
	}
	failed, ok := counterValue(doc, "div.infoBox#failures > div.counter")
	if !ok {
		return TestSummary{}, ErrNoTestResults
	}

	return TestSummary{Total: total, Failed: failed, Passed: total - failed}, nil
}

func counterValue(doc *goquery.Document, selector string) (int, bool) {
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return 0, false
	}
	text := strings.TrimSpace(sel.Text())
	v, err := strconv.Atoi(text)
	if err != nil {
		return 0, false
	}
	return v, true
}

func atoi(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}
