package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/scholarseek/engine/internal/engine"
)

// Prints the progression ladder, optionally marking where a given saved
// count lands: check_levels [count]
func main() {
	count := -1
	if len(os.Args) > 1 {
		n, err := strconv.Atoi(os.Args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid count %q\n", os.Args[1])
			os.Exit(1)
		}
		count = n
	}

	currentIdx := -1
	if count >= 0 {
		currentIdx = engine.LevelIndex(count)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"#", "Level", "Range", "Size", ""})

	for i, lvl := range engine.Levels() {
		marker := ""
		if i == currentIdx {
			offset, size, fraction := engine.Progress(count, lvl)
			marker = fmt.Sprintf("<- %d/%d (%.0f%%)", offset, size, fraction*100)
		}
		t.AppendRow(table.Row{
			i + 1,
			lvl.Emoji + " " + lvl.Name,
			fmt.Sprintf("%d-%d", lvl.Min, lvl.Max),
			lvl.Max - lvl.Min + 1,
			marker,
		})
	}
	t.Render()
}
