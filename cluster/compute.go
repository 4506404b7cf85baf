// Command cluster prints the normalized compression distance between every pair of files in a directory.
//
// The complexity of a file is the size of its compressed form.
// Besides the static arithmetic coder, zstd, s2 and lz4 are available as baselines.
package main

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fumin/binac"
	"github.com/fumin/binac/ac"
	"github.com/gocarina/gocsv"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	app := &cli.App{
		Name:  "cluster",
		Usage: "normalized compression distance matrix of the files in a directory",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "estimator",
				Aliases: []string{"e"},
				Value:   "binac",
				Usage:   "complexity estimator: binac, zstd, s2 or lz4",
				EnvVars: []string{"BINAC_ESTIMATOR"},
			},
			&cli.UintFlag{
				Name:    "window",
				Aliases: []string{"w"},
				Value:   24,
				Usage:   "bits of coding precision for the binac estimator",
				EnvVars: []string{"BINAC_WINDOW"},
			},
			&cli.StringFlag{Name: "dir", Aliases: []string{"d"}, Value: "mammals10", Usage: "data directory"},
			&cli.StringFlag{Name: "csv", Usage: "write the distances to this file as csv"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(c *cli.Context) error {
	items, err := listFiles(c.String("dir"))
	if err != nil {
		return errors.Wrap(err, "")
	}
	est, err := newEstimator(c.String("estimator"), ac.Window(c.Uint("window")))
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer est.close()
	rows, err := distanceMatrix(est, items)
	if err != nil {
		return errors.Wrap(err, "")
	}

	if fpath := c.String("csv"); fpath != "" {
		f, err := os.Create(fpath)
		if err != nil {
			return errors.Wrap(err, "")
		}
		defer f.Close()
		if err := gocsv.MarshalFile(&rows, f); err != nil {
			return errors.Wrap(err, "")
		}
		return errors.Wrap(f.Close(), "")
	}
	if err := gocsv.Marshal(&rows, os.Stdout); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

type item struct {
	name string
	data []byte
}

type row struct {
	X        string  `csv:"x"`
	Y        string  `csv:"y"`
	Distance float64 `csv:"distance"`
}

// estimator measures the complexity of byte strings, caching the results of named items.
type estimator struct {
	kind   string
	window ac.Window
	zstd   *zstd.Encoder
	cache  map[string]float64
}

func newEstimator(kind string, window ac.Window) (*estimator, error) {
	e := &estimator{kind: kind, window: window, cache: make(map[string]float64)}
	switch kind {
	case "binac":
		if err := window.Validate(); err != nil {
			return nil, errors.Wrap(err, "")
		}
	case "zstd":
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		e.zstd = enc
	case "s2", "lz4":
	default:
		return nil, errors.Errorf("unknown estimator %q", kind)
	}
	return e, nil
}

func (e *estimator) close() {
	if e.zstd != nil {
		e.zstd.Close()
	}
}

func (e *estimator) item(x item) (float64, error) {
	if size, ok := e.cache[x.name]; ok {
		return size, nil
	}
	size, err := e.complexity(x.data)
	if err != nil {
		return -1, errors.Wrapf(err, "%s", x.name)
	}
	e.cache[x.name] = size
	return size, nil
}

func (e *estimator) complexity(data []byte) (float64, error) {
	switch e.kind {
	case "binac":
		f, err := binac.NewFrame(data, e.window)
		if err != nil {
			return -1, errors.Wrap(err, "")
		}
		b, err := f.Marshal()
		if err != nil {
			return -1, errors.Wrap(err, "")
		}
		return float64(len(b)), nil
	case "zstd":
		return float64(len(e.zstd.EncodeAll(data, nil))), nil
	case "s2":
		return float64(len(s2.EncodeBest(nil, data))), nil
	case "lz4":
		var c lz4.Compressor
		dst := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := c.CompressBlock(data, dst)
		if err != nil {
			return -1, errors.Wrap(err, "")
		}
		// Incompressible blocks are reported as zero.
		if n == 0 {
			n = len(data)
		}
		return float64(n), nil
	}
	return -1, errors.Errorf("unknown estimator %q", e.kind)
}

func (e *estimator) distance(x, y item) (float64, error) {
	xy := make([]byte, 0, len(x.data)+len(y.data))
	xy = append(append(xy, x.data...), y.data...)
	kxy, err := e.complexity(xy)
	if err != nil {
		return -1, errors.Wrap(err, "")
	}
	kx, err := e.item(x)
	if err != nil {
		return -1, errors.Wrap(err, "")
	}
	ky, err := e.item(y)
	if err != nil {
		return -1, errors.Wrap(err, "")
	}

	dist := (kxy - min(kx, ky)) / max(kx, ky)
	return dist, nil
}

func distanceMatrix(e *estimator, items []item) ([]row, error) {
	if len(items) < 2 {
		return nil, nil
	}
	n := len(items)
	mat := make([]row, 0, n*(n-1)/2)
	for i, x := range items[:n-1] {
		for _, y := range items[i+1:] {
			dist, err := e.distance(x, y)
			if err != nil {
				return nil, errors.Wrap(err, "")
			}
			mat = append(mat, row{X: x.name, Y: y.name, Distance: dist})
			log.Printf("\"%s\"-\"%s\": %f", x.name, y.name, dist)
		}
	}
	return mat, nil
}

func listFiles(dir string) ([]item, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	items := make([]item, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		fpath := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(fpath)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		items = append(items, item{name: name, data: data})
	}
	return items, nil
}
