package main

import (
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// colorEnabled reports whether w is an interactive terminal that should get
// coloured output. NO_COLOR disables colour regardless.
func colorEnabled(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func renderTable(headers []string, rows [][]string, aligns []columnAlignment, color bool) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	if color {
		style := table.StyleRounded
		style.Color.Header = text.Colors{text.Bold, text.FgCyan}
		tw.SetStyle(style)
	}

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

// printTable renders rows to the command's stdout, colouring headers on a TTY.
func printTable(w io.Writer, headers []string, rows [][]string, aligns []columnAlignment) {
	io.WriteString(w, renderTable(headers, rows, aligns, colorEnabled(w))+"\n")
}

// availabilityLabel renders yes/no, green or red when colour is enabled.
func availabilityLabel(available, color bool) string {
	return colorize(yesNo(available), available, color)
}

func colorize(label string, good, color bool) string {
	if !color {
		return label
	}
	if good {
		return text.FgGreen.Sprint(label)
	}
	return text.FgRed.Sprint(label)
}
