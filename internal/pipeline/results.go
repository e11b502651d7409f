package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Output formats understood by Format.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatYAML = "yaml"
)

// ToJSON serializes a single result to pretty JSON.
func ToJSON(res *SplitResult) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToYAML serializes a single result to YAML.
func ToYAML(res *SplitResult) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	b, err := yaml.Marshal(res)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToPlainText lists region text in row-major order, one block per region.
// Regions in the same row are tab separated.
func ToPlainText(res *SplitResult) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	var rows []string
	var cells []string
	row := 0
	flush := func() {
		if len(cells) > 0 {
			rows = append(rows, strings.Join(cells, "\t"))
		}
		cells = cells[:0]
	}
	for _, r := range res.Regions {
		if r.Row != row {
			flush()
			row = r.Row
		}
		cells = append(cells, strings.ReplaceAll(strings.TrimSpace(r.Text), "\n", " "))
	}
	flush()
	return strings.Join(rows, "\n"), nil
}

// ToCSV exports per-region data as CSV with header.
func ToCSV(res *SplitResult) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"index", "row", "col", "x", "y", "w", "h", "text", "path", "error"})
	for _, r := range res.Regions {
		_ = w.Write([]string{
			strconv.Itoa(r.Index),
			strconv.Itoa(r.Row),
			strconv.Itoa(r.Col),
			strconv.Itoa(r.Box.X),
			strconv.Itoa(r.Box.Y),
			strconv.Itoa(r.Box.W),
			strconv.Itoa(r.Box.H),
			r.Text,
			r.Path,
			r.Error,
		})
	}
	w.Flush()
	return buf.String(), w.Error()
}

// Format renders res in the named format.
func Format(res *SplitResult, format string) (string, error) {
	switch strings.ToLower(format) {
	case "", FormatText:
		return ToPlainText(res)
	case FormatJSON:
		return ToJSON(res)
	case FormatCSV:
		return ToCSV(res)
	case FormatYAML:
		return ToYAML(res)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// FormatAll renders several results. JSON and YAML produce a single list;
// text and CSV concatenate per-result output under a header line.
func FormatAll(results []*SplitResult, format string) (string, error) {
	switch strings.ToLower(format) {
	case FormatJSON:
		b, err := json.MarshalIndent(results, "", "  ")
		return string(b), err
	case FormatYAML:
		b, err := yaml.Marshal(results)
		return string(b), err
	}
	var sb strings.Builder
	for i, res := range results {
		out, err := Format(res, format)
		if err != nil {
			return "", err
		}
		if len(results) > 1 {
			if i > 0 {
				sb.WriteString("\n")
			}
			fmt.Fprintf(&sb, "# %s\n", resultLabel(res, i))
		}
		sb.WriteString(out)
		if !strings.HasSuffix(out, "\n") {
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

func resultLabel(res *SplitResult, i int) string {
	switch {
	case res == nil:
		return fmt.Sprintf("result %d", i+1)
	case res.Source != "" && res.Page > 0:
		return fmt.Sprintf("%s (page %d)", res.Source, res.Page)
	case res.Source != "":
		return res.Source
	case res.Page > 0:
		return fmt.Sprintf("page %d", res.Page)
	}
	return fmt.Sprintf("result %d", i+1)
}
