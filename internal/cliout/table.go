// Package cliout renders CLI command output as plain, borderless tables,
// matching the style rtftpd's admin JSON surface is summarized into.
package cliout

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

func newTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	return table
}

// Table renders headers and rows as a plain table.
func Table(w io.Writer, headers []string, rows [][]string) {
	table := newTable(w)
	table.SetAutoFormatHeaders(true)
	table.SetHeader(headers)
	for _, row := range rows {
		table.Append(row)
	}
	table.Render()
}

// KeyValue renders a two-column key:value table with no header row, for
// single-record detail views (e.g. one config's show output).
func KeyValue(w io.Writer, pairs [][2]string) {
	table := newTable(w)
	table.SetAutoFormatHeaders(false)
	table.SetColumnSeparator(":")
	for _, pair := range pairs {
		table.Append([]string{pair[0], pair[1]})
	}
	table.Render()
}
