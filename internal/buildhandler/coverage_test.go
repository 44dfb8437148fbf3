package buildhandler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJacocoXML = `<?xml version="1.0" encoding="UTF-8"?>
<report name="demo">
  <package name="com/example/app">
    <class name="com/example/app/Widget" sourcefilename="Widget.java">
      <counter type="INSTRUCTION" missed="10" covered="30"/>
      <counter type="LINE" missed="2" covered="8"/>
    </class>
    <class name="com/example/app/Uncovered" sourcefilename="Uncovered.java">
      <counter type="LINE" missed="5" covered="0"/>
    </class>
  </package>
</report>`

func TestDeriveFQC_ParsesPackageDeclaration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Widget.java")
	require.NoError(t, os.WriteFile(path, []byte("package com.example.app;\n\nclass Widget {}\n"), 0o644))

	fqc, base, err := deriveFQC(path)
	require.NoError(t, err)
	assert.Equal(t, "com/example/app/Widget", fqc)
	assert.Equal(t, "Widget.java", base)
}

func TestDeriveFQC_RejectsNonJavaFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("not java"), 0o644))

	_, _, err := deriveFQC(path)
	assert.ErrorIs(t, err, ErrNotJavaFile)
}

func TestDeriveFQC_RejectsMissingPackageDeclaration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Widget.java")
	require.NoError(t, os.WriteFile(path, []byte("class Widget {}\n"), 0o644))

	_, _, err := deriveFQC(path)
	assert.ErrorIs(t, err, ErrNoPackageDecl)
}

func writeJacocoFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "jacoco.xml")
	require.NoError(t, os.WriteFile(path, []byte(sampleJacocoXML), 0o644))
	return path
}

func TestCoverageInReport_ComputesLinePercentage(t *testing.T) {
	path := writeJacocoFixture(t)
	pct, ok, err := coverageInReport(path, "com/example/app/Widget", "Widget.java")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 80.0, pct, 0.01)
}

func TestCoverageInReport_ZeroDenominatorIsZero(t *testing.T) {
	path := writeJacocoFixture(t)
	pct, ok, err := coverageInReport(path, "com/example/app/Uncovered", "Uncovered.java")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0.0, pct)
}

func TestCoverageInReport_AbsentClassIsNotOK(t *testing.T) {
	path := writeJacocoFixture(t)
	_, ok, err := coverageInReport(path, "com/example/app/Missing", "Missing.java")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCoverageForFile_MavenLayout(t *testing.T) {
	repoDir := t.TempDir()
	reportDir := filepath.Join(repoDir, "target", "site", "jacoco")
	require.NoError(t, os.MkdirAll(reportDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(reportDir, "jacoco.xml"), []byte(sampleJacocoXML), 0o644))

	srcPath := filepath.Join(repoDir, "Widget.java")
	require.NoError(t, os.WriteFile(srcPath, []byte("package com.example.app;\nclass Widget {}\n"), 0o644))

	hits, err := coverageForFile(repoDir, BuildSystemMaven, srcPath)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 80.0, hits[0].Coverage, 0.01)
}

func TestCoverageForFile_NoReportsRaisesFileNotCovered(t *testing.T) {
	repoDir := t.TempDir()
	srcPath := filepath.Join(repoDir, "Widget.java")
	require.NoError(t, os.WriteFile(srcPath, []byte("package com.example.app;\nclass Widget {}\n"), 0o644))

	_, err := coverageForFile(repoDir, BuildSystemMaven, srcPath)
	assert.ErrorIs(t, err, ErrFileNotCovered)
}

func TestCoverageForFile_GradleLayout(t *testing.T) {
	repoDir := t.TempDir()
	reportDir := filepath.Join(repoDir, "build", "reports", "jacoco", "test")
	require.NoError(t, os.MkdirAll(reportDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(reportDir, "jacocoTestReport.xml"), []byte(sampleJacocoXML), 0o644))

	srcPath := filepath.Join(repoDir, "Widget.java")
	require.NoError(t, os.WriteFile(srcPath, []byte("package com.example.app;\nclass Widget {}\n"), 0o644))

	hits, err := coverageForFile(repoDir, BuildSystemGradle, srcPath)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 80.0, hits[0].Coverage, 0.01)
}
