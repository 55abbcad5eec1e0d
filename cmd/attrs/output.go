package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/pbaille/attrs/internal/attribute"
	"github.com/pbaille/attrs/internal/domain"
)

func renderTable(w io.Writer, header []string, rows [][]string) error {
	table := tablewriter.NewWriter(w)
	if err := table.Append(header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

func renderAttributes(w io.Writer, attrs []domain.Attribute) error {
	rows := make([][]string, len(attrs))
	for i, a := range attrs {
		rows[i] = []string{a.Key, a.Title, a.Scope, string(a.ValueType), string(a.Status), flags(a)}
	}
	return renderTable(w, []string{"KEY", "TITLE", "SCOPE", "TYPE", "STATUS", "FLAGS"}, rows)
}

func flags(a domain.Attribute) string {
	var f []string
	if a.IsCanonical {
		f = append(f, "canonical")
	}
	if a.IsPrimary {
		f = append(f, "primary")
	}
	return strings.Join(f, ",")
}

func renderValues(w io.Writer, values []domain.SubjectValue) error {
	rows := make([][]string, len(values))
	for i, v := range values {
		evidence := ""
		if v.Evidence != nil {
			evidence = truncate(*v.Evidence, 40)
		}
		rows[i] = []string{
			v.AttributeKey,
			truncate(v.Display(), 40),
			strconv.FormatFloat(v.Confidence, 'f', 2, 64),
			evidence,
		}
	}
	return renderTable(w, []string{"ATTRIBUTE", "VALUE", "CONFIDENCE", "EVIDENCE"}, rows)
}

func renderImport(w io.Writer, subjects []int64, results map[int64]attribute.Result) error {
	rows := make([][]string, len(subjects))
	for i, id := range subjects {
		res := results[id]
		rows[i] = []string{
			strconv.FormatInt(id, 10),
			res.BatchID,
			strconv.Itoa(res.Applied),
			strconv.Itoa(len(res.Skipped)),
		}
	}
	return renderTable(w, []string{"SUBJECT", "BATCH", "APPLIED", "SKIPPED"}, rows)
}

func printResult(res attribute.Result) {
	fmt.Printf("Batch %s: %d applied, %d skipped\n", res.BatchID, res.Applied, len(res.Skipped))
	for _, s := range res.Skipped {
		if s.Key != "" {
			fmt.Printf("  - item %d (%s): %s\n", s.Index, s.Key, s.Reason)
		} else {
			fmt.Printf("  - item %d: %s\n", s.Index, s.Reason)
		}
	}
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
