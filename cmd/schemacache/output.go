package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/tordrt/schemacache/internal/cache"
)

const (
	statusCached   = "cached"
	statusCompiled = "compiled"
	statusFailed   = "failed"
	statusCleared  = "cleared"
)

var statusColors = map[string]*color.Color{
	statusCached:   color.New(color.FgCyan),
	statusCompiled: color.New(color.FgGreen, color.Bold),
	statusFailed:   color.New(color.FgRed, color.Bold),
	statusCleared:  color.New(color.FgYellow),
}

func printStatus(w io.Writer, status, subject string) {
	label := fmt.Sprintf("%-8s", status)
	if c, ok := statusColors[status]; ok {
		label = c.Sprint(label)
	}
	fmt.Fprintf(w, "%s %s\n", label, subject)
}

func printResults(w io.Writer, results cache.Results) {
	for _, res := range results {
		subject := res.Table
		if res.Err != nil {
			subject = fmt.Sprintf("%s: %v", res.Table, res.Err)
		}
		printStatus(w, resultStatus(res), subject)
	}
	fmt.Fprintf(w, "%d tables, %d cached\n", len(results), results.Hits())
}
