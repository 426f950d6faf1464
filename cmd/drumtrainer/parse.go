package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cbegin/drumtrainer-go/internal/notation"
	"github.com/cbegin/drumtrainer-go/internal/pattern"
)

var parseJSON bool

var parseCmd = &cobra.Command{
	Use:   "parse <notation-file|->",
	Short: "Parse notation and print the resulting grid",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runParse,
}

func init() {
	parseCmd.Flags().BoolVar(&parseJSON, "json", false, "Print the parse result as JSON")
}

func runParse(cmd *cobra.Command, args []string) error {
	text, err := readNotation(args)
	if err != nil {
		return err
	}
	res, err := notation.ParseDetailed(text)
	if err != nil {
		return err
	}
	if parseJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	p := res.Pattern
	c := res.Complexity
	fmt.Printf("format %s, %d steps, %d steps per beat", res.Format, p.Len(), pattern.StepsPerBeat(c))
	if res.BPM > 0 {
		fmt.Printf(", %.0f BPM", res.BPM)
	}
	fmt.Println()
	for _, inst := range p.Keys() {
		var b strings.Builder
		for _, n := range p.Track(inst) {
			switch {
			case !n.Active:
				b.WriteByte('.')
			case n.Type == pattern.Ghost:
				b.WriteByte('g')
			case n.Type == pattern.Accent:
				b.WriteByte('X')
			default:
				b.WriteByte('x')
			}
		}
		fmt.Printf("%-11s %s\n", inst, b.String())
	}
	for _, d := range res.Diagnostics {
		fmt.Printf("warning: %s\n", d)
	}
	return nil
}
