/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package driver

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

// WriteReport writes the run summary to w as a two-column markdown table.
func WriteReport(w io.Writer, res *Result) error {
	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Header: tw.CellConfig{
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
				Formatting: tw.CellFormatting{AutoFormat: tw.Off},
			},
			Row: tw.CellConfig{
				Alignment: tw.CellAlignment{Global: tw.AlignLeft},
			},
			MaxWidth: 80,
		}),
		tablewriter.WithHeader([]string{"Metric", "Value"}),
		tablewriter.WithRenderer(renderer.NewBlueprint()),
		tablewriter.WithRendition(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleMarkdown),
			Borders: tw.Border{Left: tw.On, Top: tw.Off, Right: tw.On, Bottom: tw.Off},
		}),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
	)

	rows := [][]string{
		{"Session", res.Session},
		{"Model", res.Model},
		{"Outcome", string(res.Outcome)},
		{"Turns", strconv.Itoa(res.Turns)},
		{"Tool calls", fmt.Sprintf("%d (%d errors)", res.ToolCalls, res.ToolErrors)},
		{"Summarizations", strconv.Itoa(res.Summarizations)},
		{"Input tokens", strconv.FormatInt(res.Usage.InputTokens, 10)},
		{"Output tokens", strconv.FormatInt(res.Usage.OutputTokens, 10)},
		{"Duration", res.Duration.Round(time.Millisecond).String()},
	}
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}
