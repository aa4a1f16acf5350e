package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/handiism/mailmirror/internal/download"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// maxDiagnosticsWidth bounds the diagnostics column of the failure table.
const maxDiagnosticsWidth = 60

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func renderSummary(s download.Summary) string {
	headers := []string{"Pieces", "Skipped", "Downloaded", "Failed", "Size", "Duration"}
	row := []string{
		humanize.Comma(int64(s.Pieces)),
		humanize.Comma(int64(s.Skipped)),
		fmt.Sprintf("%d/%d", s.Downloaded, s.Pending),
		humanize.Comma(int64(s.Failed)),
		humanize.Bytes(uint64(max(s.Bytes, 0))),
		s.Duration.Round(time.Millisecond).String(),
	}
	aligns := []columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight}
	return renderTable(headers, [][]string{row}, aligns)
}

func renderFailures(failures []*download.DownloadError) string {
	rows := make([][]string, 0, len(failures))
	for _, f := range failures {
		rows = append(rows, []string{f.Path, text.Trim(f.Diagnostics, maxDiagnosticsWidth)})
	}
	return renderTable([]string{"Failed path", "Diagnostics"}, rows, nil)
}
