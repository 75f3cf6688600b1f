package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/jdziat/workbench-jobs/pkg/core"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

// readObject parses a JSON object from inline text or, when file is set,
// from that file ("-" reads stdin).
func readObject(inline, file string, stdin io.Reader) (map[string]any, error) {
	raw := []byte(inline)
	switch file {
	case "":
	case "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		raw = b
	default:
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	out, err := core.DecodeRawParameters(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parameters must be a JSON object: %w", err)
	}
	return out, nil
}

func pidString(pid *int) string {
	if pid == nil {
		return "-"
	}
	return strconv.Itoa(*pid)
}
