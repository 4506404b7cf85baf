package main

import (
	"bufio"
	"log"
	"os"

	"github.com/fumin/binac"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	app := &cli.App{
		Name:  "decompress",
		Usage: "decode a frame written by compress from stdin to stdout",
		Action: func(c *cli.Context) error {
			w := bufio.NewWriter(os.Stdout)
			if err := binac.Decompress(w, bufio.NewReader(os.Stdin)); err != nil {
				return errors.Wrap(err, "")
			}
			return errors.Wrap(w.Flush(), "")
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatalf("%+v", err)
	}
}
