package support

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/gridsplit/internal/persist"
	"github.com/MeKo-Tech/gridsplit/internal/pipeline"
	"github.com/MeKo-Tech/gridsplit/internal/testutil"
	"github.com/MeKo-Tech/gridsplit/internal/utils"
	"github.com/cucumber/godog"
)

// RegisterCommonSteps registers fixture, command and output steps.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a ruled form "([^"]*)" with (\d+) rows and (\d+) columns$`, testCtx.aRuledForm)
	sc.Step(`^a scanned PDF "([^"]*)" of a form with (\d+) rows and (\d+) columns$`, testCtx.aScannedPDF)
	sc.Step(`^a directory "([^"]*)" containing (\d+) ruled forms$`, testCtx.aDirectoryOfForms)
	sc.Step(`^a file "([^"]*)" containing "([^"]*)"$`, testCtx.aFileContaining)
	sc.Step(`^the environment variable "([^"]*)" is "([^"]*)"$`, testCtx.theEnvironmentVariableIs)

	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)
	sc.Step(`^the output should be a JSON result with (\d+) regions$`, testCtx.theOutputShouldBeAJSONResultWithRegions)
	sc.Step(`^the output should be a JSON document with (\d+) regions$`, testCtx.theOutputShouldBeAJSONDocumentWithRegions)
	sc.Step(`^the output should have (\d+) CSV records$`, testCtx.theOutputShouldHaveCSVRecords)
	sc.Step(`^the output should have (\d+) lines$`, testCtx.theOutputShouldHaveLines)
	sc.Step(`^the directory "([^"]*)" should contain (\d+) region files$`, testCtx.theDirectoryShouldContainRegionFiles)
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, testCtx.theFileShouldContain)
}

// formImage renders a rows x cols form of 40x30 cells divided by black
// one-pixel lines.
func formImage(rows, cols int) image.Image {
	spec := testutil.DefaultGridSpec()
	spec.RowHeights = make([]int, rows)
	spec.ColWidths = make([]int, cols)
	for i := range spec.RowHeights {
		spec.RowHeights[i] = 30
	}
	for i := range spec.ColWidths {
		spec.ColWidths[i] = 40
	}
	return testutil.GenerateGrid(spec).Image
}

func (testCtx *TestContext) writeForm(path string, rows, cols int) error {
	data, err := utils.EncodePNG(formImage(rows, cols))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func (testCtx *TestContext) aRuledForm(name string, rows, cols int) error {
	return testCtx.writeForm(testCtx.Path(name), rows, cols)
}

func (testCtx *TestContext) aScannedPDF(name string, rows, cols int) error {
	doc, err := persist.RenderPDF(formImage(rows, cols), 72)
	if err != nil {
		return fmt.Errorf("failed to render PDF: %w", err)
	}
	return os.WriteFile(testCtx.Path(name), doc, 0o600)
}

func (testCtx *TestContext) aDirectoryOfForms(dir string, count int) error {
	for i := 1; i <= count; i++ {
		if err := testCtx.writeForm(filepath.Join(testCtx.Path(dir), fmt.Sprintf("form_%d.png", i)), 2, 2); err != nil {
			return err
		}
	}
	return nil
}

func (testCtx *TestContext) aFileContaining(name, content string) error {
	content = strings.ReplaceAll(content, `\n`, "\n")
	path := testCtx.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o600)
}

func (testCtx *TestContext) theEnvironmentVariableIs(name, value string) error {
	testCtx.AddEnvVar(name, value)
	return nil
}

// iRunCommand executes a command line in the scenario directory. A leading
// "gridsplit" runs the binary built for the suite.
func (testCtx *TestContext) iRunCommand(command string) error {
	testCtx.LastCommand = command

	parts := strings.Fields(command)
	if len(parts) == 0 {
		return errors.New("empty command")
	}
	if parts[0] == "gridsplit" {
		bin := os.Getenv(EnvBinary)
		if bin == "" {
			return fmt.Errorf("%s is not set", EnvBinary)
		}
		parts[0] = bin
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Dir = testCtx.TempDir
	cmd.Env = append(os.Environ(), testCtx.EnvVars...)

	var stdout, combined bytes.Buffer
	cmd.Stdout = io.MultiWriter(&stdout, &combined)
	cmd.Stderr = &combined

	err := cmd.Run()
	testCtx.LastStdout = stdout.String()
	testCtx.LastOutput = combined.String()
	testCtx.LastError = err

	testCtx.LastExitCode = 0
	if err != nil {
		exitError := &exec.ExitError{}
		if errors.As(err, &exitError) {
			testCtx.LastExitCode = exitError.ExitCode()
		} else {
			testCtx.LastExitCode = -1
		}
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command failed with exit code %d: %w\nOutput: %s",
			testCtx.LastExitCode, testCtx.LastError, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command succeeded when it should have failed\nOutput: %s", testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldContain(expectedText string) error {
	if !strings.Contains(testCtx.LastStdout, expectedText) {
		return fmt.Errorf("output does not contain '%s'\nActual output: %s", expectedText, testCtx.LastStdout)
	}
	return nil
}

func (testCtx *TestContext) theErrorShouldMention(errorText string) error {
	if !strings.Contains(strings.ToLower(testCtx.LastOutput), strings.ToLower(errorText)) {
		return fmt.Errorf("error output does not mention '%s'\nActual output: %s", errorText, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldBeAJSONResultWithRegions(count int) error {
	var res pipeline.SplitResult
	if err := json.Unmarshal([]byte(testCtx.LastStdout), &res); err != nil {
		return fmt.Errorf("output is not a JSON result: %w\nOutput: %s", err, testCtx.LastStdout)
	}
	if len(res.Regions) != count {
		return fmt.Errorf("expected %d regions, got %d", count, len(res.Regions))
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldBeAJSONDocumentWithRegions(count int) error {
	var doc struct {
		Pages []struct {
			Images []pipeline.SplitResult `json:"images"`
		} `json:"pages"`
	}
	if err := json.Unmarshal([]byte(testCtx.LastStdout), &doc); err != nil {
		return fmt.Errorf("output is not a JSON document: %w\nOutput: %s", err, testCtx.LastStdout)
	}
	n := 0
	for _, p := range doc.Pages {
		for _, img := range p.Images {
			n += len(img.Regions)
		}
	}
	if n != count {
		return fmt.Errorf("expected %d regions, got %d", count, n)
	}
	return nil
}

// theOutputShouldHaveCSVRecords counts CSV data records, ignoring headers
// and the "# source" separators of multi-image output.
func (testCtx *TestContext) theOutputShouldHaveCSVRecords(count int) error {
	var data []string
	for _, line := range strings.Split(testCtx.LastStdout, "\n") {
		if line == "" || strings.HasPrefix(line, "# ") || strings.HasPrefix(line, "index,") {
			continue
		}
		data = append(data, line)
	}
	records, err := csv.NewReader(strings.NewReader(strings.Join(data, "\n"))).ReadAll()
	if err != nil {
		return fmt.Errorf("output is not CSV: %w", err)
	}
	if len(records) != count {
		return fmt.Errorf("expected %d CSV records, got %d\nOutput: %s", count, len(records), testCtx.LastStdout)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldHaveLines(count int) error {
	lines := strings.Split(strings.TrimRight(testCtx.LastStdout, "\n"), "\n")
	if len(lines) != count {
		return fmt.Errorf("expected %d lines, got %d\nOutput: %q", count, len(lines), testCtx.LastStdout)
	}
	return nil
}

func (testCtx *TestContext) theDirectoryShouldContainRegionFiles(dir string, count int) error {
	matches, err := filepath.Glob(filepath.Join(testCtx.Path(dir), "Crop_*.*"))
	if err != nil {
		return err
	}
	if len(matches) != count {
		return fmt.Errorf("expected %d region files in %s, found %d", count, dir, len(matches))
	}
	return nil
}

func (testCtx *TestContext) theFileShouldExist(name string) error {
	if _, err := os.Stat(testCtx.Path(name)); err != nil {
		return fmt.Errorf("file %s does not exist: %w", name, err)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldContain(name, expected string) error {
	data, err := os.ReadFile(testCtx.Path(name))
	if err != nil {
		return err
	}
	if !strings.Contains(string(data), expected) {
		return fmt.Errorf("file %s does not contain '%s'", name, expected)
	}
	return nil
}
