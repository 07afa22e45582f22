package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/carlmjohnson/versioninfo"
	"github.com/go-spatial/geom"
	"github.com/iancoleman/strcase"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/pdok/tilepyramid/gpkg"
	"github.com/pdok/tilepyramid/job"
	"github.com/pdok/tilepyramid/tilemath"
	"github.com/pdok/tilepyramid/tiles"
)

const GEOPACKAGE string = `geopackage`
const TABLE string = `table`
const URL string = `url`
const BBOX string = `bbox`
const MINZOOM string = `minzoom`
const MAXZOOM string = `maxzoom`
const GOOGLE string = `google`
const COMPRESSFORMAT string = `compressFormat`
const COMPRESSQUALITY string = `compressQuality`
const JOB string = `job`
const LOGLEVEL string = `loglevel`
const QUIET string = `quiet`

//nolint:funlen
func main() {
	app := cli.NewApp()
	app.Name = "tilepyramid"
	app.Usage = "A Golang raster tile pyramid generator for GeoPackages"
	app.Version = versioninfo.Short()

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    GEOPACKAGE,
			Aliases: []string{"g"},
			Usage:   "Target GPKG, created when it does not exist",
			EnvVars: []string{strcase.ToScreamingSnake(GEOPACKAGE)},
		},
		&cli.StringFlag{
			Name:    TABLE,
			Aliases: []string{"t"},
			Usage:   "Tile table to create or extend",
			EnvVars: []string{strcase.ToScreamingSnake(TABLE)},
		},
		&cli.StringFlag{
			Name:    URL,
			Aliases: []string{"u"},
			Usage:   "Tile source URL template with {z}, {x} and {y} placeholders",
			EnvVars: []string{strcase.ToScreamingSnake(URL)},
		},
		&cli.StringFlag{
			Name:    BBOX,
			Aliases: []string{"b"},
			Usage:   "Bounding box to cover: minLon,minLat,maxLon,maxLat in WGS84. Defaults to the whole world",
			EnvVars: []string{strcase.ToScreamingSnake(BBOX)},
		},
		&cli.IntFlag{
			Name:    MINZOOM,
			Usage:   "Lowest zoom level to generate",
			EnvVars: []string{strcase.ToScreamingSnake(MINZOOM)},
		},
		&cli.IntFlag{
			Name:    MAXZOOM,
			Usage:   "Highest zoom level to generate (inclusive)",
			EnvVars: []string{strcase.ToScreamingSnake(MAXZOOM)},
		},
		&cli.BoolFlag{
			Name:    GOOGLE,
			Usage:   "Store tiles in the standard web mercator scheme instead of a fitted matrix",
			EnvVars: []string{strcase.ToScreamingSnake(GOOGLE)},
		},
		&cli.StringFlag{
			Name:    COMPRESSFORMAT,
			Usage:   "Re-encode tiles in this format before storing: png or jpeg",
			EnvVars: []string{strcase.ToScreamingSnake(COMPRESSFORMAT)},
		},
		&cli.Float64Flag{
			Name:    COMPRESSQUALITY,
			Usage:   "Compression quality between 0.0 and 1.0, jpeg only",
			Value:   -1,
			EnvVars: []string{strcase.ToScreamingSnake(COMPRESSQUALITY)},
		},
		&cli.StringFlag{
			Name:    JOB,
			Aliases: []string{"j"},
			Usage:   "JSON job file; other flags override its values",
			EnvVars: []string{strcase.ToScreamingSnake(JOB)},
		},
		&cli.StringFlag{
			Name:    LOGLEVEL,
			Usage:   "Log level: panic, fatal, error, warn, info, debug or trace",
			Value:   "info",
			EnvVars: []string{strcase.ToScreamingSnake(LOGLEVEL)},
		},
		&cli.BoolFlag{
			Name:    QUIET,
			Aliases: []string{"q"},
			Usage:   "No progress bar",
			EnvVars: []string{strcase.ToScreamingSnake(QUIET)},
		},
	}

	app.Action = func(c *cli.Context) error {
		j, err := resolveJob(c)
		if err != nil {
			return err
		}
		initLog(j.LogLevel)

		geoPackage, err := gpkg.Open(j.GeoPackage)
		if err != nil {
			return err
		}

		source, err := tiles.NewURLSource(j.URL)
		if err != nil {
			geoPackage.Close()
			return err
		}

		generator, err := tiles.New(geoPackage, j.Table, j.MinZoom, j.MaxZoom, source)
		if err != nil {
			geoPackage.Close()
			return err
		}
		defer generator.Close()
		if j.BoundingBox != nil {
			err = generator.SetTileBoundingBoxInSRS(
				geom.Extent{j.BoundingBox[0], j.BoundingBox[1], j.BoundingBox[2], j.BoundingBox[3]}, j.SrsID)
			if err != nil {
				return err
			}
		}
		if err = generator.SetGoogleTiles(j.GoogleTiles); err != nil {
			return err
		}
		if j.CompressFormat != "" {
			if err = generator.SetCompressFormat(j.CompressFormat); err != nil {
				return err
			}
			if err = generator.SetCompressQuality(j.CompressQuality); err != nil {
				return err
			}
		}

		var bar *tiles.Bar
		if !c.Bool(QUIET) {
			// a cancelled CLI run keeps what was already written
			bar = tiles.NewBar(false)
			if err = generator.SetProgress(bar); err != nil {
				return err
			}
		}

		ctx, stop := context.WithCancel(c.Context)
		defer stop()
		interrupted := make(chan os.Signal, 1)
		signal.Notify(interrupted, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-interrupted
			logrus.Warn("interrupted, finishing current tile")
			if bar != nil {
				bar.Cancel()
			}
			stop()
		}()

		logrus.Infof("generating %d tiles into %s:%s", generator.TileCount(), j.GeoPackage, j.Table)
		count, err := generator.Generate(ctx)
		if bar != nil {
			bar.Finish()
		}
		if err != nil {
			return err
		}
		logrus.Infof("%d tiles written", count)
		return nil
	}

	err := app.Run(os.Args)
	if err != nil {
		logrus.Fatal(err)
	}
}

// resolveJob merges the job file (when given) with the flags, flags winning.
func resolveJob(c *cli.Context) (job.Job, error) {
	var j job.Job
	var err error
	if jobPath := c.String(JOB); jobPath != "" {
		if j, err = job.Load(jobPath); err != nil {
			return j, err
		}
	} else {
		j.SrsID = tilemath.EPSGWGS84
		j.LogLevel = "info"
	}

	if c.IsSet(GEOPACKAGE) {
		j.GeoPackage = c.String(GEOPACKAGE)
	}
	if c.IsSet(TABLE) {
		j.Table = c.String(TABLE)
	}
	if c.IsSet(URL) {
		j.URL = c.String(URL)
	}
	if c.IsSet(MINZOOM) {
		j.MinZoom = c.Int(MINZOOM)
	}
	if c.IsSet(MAXZOOM) {
		j.MaxZoom = c.Int(MAXZOOM)
	}
	if c.IsSet(GOOGLE) {
		j.GoogleTiles = c.Bool(GOOGLE)
	}
	if c.IsSet(COMPRESSFORMAT) {
		j.CompressFormat = c.String(COMPRESSFORMAT)
	}
	if c.IsSet(COMPRESSQUALITY) && c.Float64(COMPRESSQUALITY) >= 0 {
		quality := c.Float64(COMPRESSQUALITY)
		j.CompressQuality = &quality
	}
	if c.IsSet(LOGLEVEL) {
		j.LogLevel = c.String(LOGLEVEL)
	}
	if c.IsSet(BBOX) {
		box, err := parseBBox(c.String(BBOX))
		if err != nil {
			return j, err
		}
		j.BoundingBox = box
		j.SrsID = tilemath.EPSGWGS84
	}

	if j.GeoPackage == "" || j.Table == "" || j.URL == "" {
		return j, fmt.Errorf("%s, %s and %s are required, via flags or a job file", GEOPACKAGE, TABLE, URL)
	}
	return j, nil
}

func parseBBox(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bbox needs 4 comma separated values, got %q", s)
	}
	box := make([]float64, 4)
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("bbox value %q: %w", part, err)
		}
		box[i] = f
	}
	if box[0] > box[2] || box[1] > box[3] {
		return nil, fmt.Errorf("bbox min edges exceed max edges: %q", s)
	}
	return box, nil
}
