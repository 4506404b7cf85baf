package main

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/fumin/binac"
	"github.com/fumin/binac/ac"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	app := &cli.App{
		Name:      "compress",
		Usage:     "arithmetic code a file with static symbol frequencies",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.UintFlag{
				Name:    "window",
				Aliases: []string{"w"},
				Value:   16,
				Usage:   "bits of coding precision",
				EnvVars: []string{"BINAC_WINDOW"},
			},
			&cli.BoolFlag{Name: "table", Usage: "print the segment table to stderr"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "verbosity"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		cli.ShowAppHelpAndExit(c, 1)
	}
	window := ac.Window(c.Uint("window"))

	w := bufio.NewWriter(os.Stdout)
	f, n, err := binac.Compress(w, name, window)
	if err != nil {
		return errors.Wrap(err, "")
	}
	if err := w.Flush(); err != nil {
		return errors.Wrap(err, "")
	}
	if c.Bool("table") && f.Table != nil {
		renderTable(os.Stderr, f.Table)
	}
	if c.Bool("verbose") {
		log.Printf("%s: %d bytes, %d bits coded, %d byte frame at window %d", name, f.Count, len(f.Bits), n, window)
	}
	return nil
}

func renderTable(w io.Writer, t *ac.Table[byte]) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"symbol", "count", "low", "high", "width"})
	var total uint64
	for i := 0; i < t.Len(); i++ {
		seg := t.Segment(i)
		tw.AppendRow(table.Row{fmt.Sprintf("%q", t.Symbol(i)), t.Count(i), seg.Low, seg.High, seg.Width()})
		total += t.Count(i)
	}
	tw.AppendFooter(table.Row{"", total, "", "", t.Window().N()})
	tw.Render()
}
