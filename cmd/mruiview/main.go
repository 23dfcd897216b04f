// Command mruiview renders slices of a finished reconstruction job to PNG.
//
// It can list the server's jobs, print one job's metadata, or fetch a slice
// through the full viewer pipeline (cache, windowing, colormap) and save the
// rendered frame.
package main

import (
	"context"
	"flag"
	"fmt"
	"image/png"
	"log/slog"
	"net/http"
	"os"

	"github.com/fzimmermann89/mrui"
	"github.com/fzimmermann89/mrui/client"
	"github.com/fzimmermann89/mrui/config"
	"github.com/fzimmermann89/mrui/gpu"
	"github.com/fzimmermann89/mrui/volume"
)

func main() {
	var (
		configPath  = flag.String("config", "mrui.yaml", "configuration file")
		serverURL   = flag.String("server", "", "server base URL (overrides config)")
		jobID       = flag.String("job", "", "job id to view; empty lists all jobs")
		orientation = flag.String("orientation", "", "slicing orientation: yx, zx or zy")
		index       = flag.Int("index", 0, "slice index along the scroll axis")
		batch       = flag.String("batch", "", "batch indices, comma separated")
		colormap    = flag.String("colormap", "", "colormap name (overrides config)")
		width       = flag.Int("width", 800, "output width in pixels")
		height      = flag.Int("height", 600, "output height in pixels")
		output      = flag.String("output", "slice.png", "output PNG file")
		verbose     = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	if *verbose {
		mrui.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}
	if *serverURL != "" {
		cfg.Server.URL = *serverURL
	}
	if *orientation != "" {
		cfg.Viewer.Orientation = *orientation
	}
	if *colormap != "" {
		cfg.Viewer.Colormap = *colormap
	}
	if err := cfg.Validate(); err != nil {
		fatal(err)
	}

	c := client.New(cfg.Server.URL, &http.Client{Timeout: cfg.Timeout()})
	ctx := context.Background()

	if *jobID == "" {
		if err := listJobs(ctx, c); err != nil {
			fatal(err)
		}
		return
	}
	if err := renderSlice(ctx, c, cfg, *jobID, *index, *batch, *width, *height, *output); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "mruiview:", err)
	os.Exit(1)
}

func listJobs(ctx context.Context, c *client.Client) error {
	jobs, err := c.ListJobs(ctx)
	if err != nil {
		return err
	}
	for _, j := range jobs {
		shape := ""
		if len(j.ResultShape) > 0 {
			shape = volume.JoinIndices(j.ResultShape)
		}
		fmt.Printf("%s  %-10s  %-20s  %s\n", j.ID, j.Status, j.Name, shape)
	}
	return nil
}

func renderSlice(ctx context.Context, c *client.Client, cfg *config.Config, jobID string, index int, batch string, width, height int, output string) error {
	o, err := volume.ParseOrientation(cfg.Viewer.Orientation)
	if err != nil {
		return err
	}
	batchIndices, err := volume.ParseIndices(batch)
	if err != nil {
		return err
	}

	opts := []mrui.Option{
		mrui.WithOrientation(o),
		mrui.WithColormap(cfg.Viewer.Colormap),
		mrui.WithCacheCapacity(cfg.Viewer.CacheCapacity),
		mrui.WithGestureInterval(cfg.GestureInterval()),
	}
	if cfg.GPU.Backend != "" {
		a := gpu.Get(cfg.GPU.Backend)
		if a == nil {
			return fmt.Errorf("gpu backend %q unavailable", cfg.GPU.Backend)
		}
		defer a.Close()
		opts = append(opts, mrui.WithAdapter(a))
	}

	v, err := mrui.NewViewer(ctx, c, jobID, opts...)
	if err != nil {
		return err
	}
	defer v.Close()

	for axis, value := range batchIndices {
		v.SetAxis(axis, value)
	}
	scrollAxis := len(v.Descriptor().BatchDims())
	v.SetAxis(scrollAxis, index)
	v.Refresh()
	v.WaitIdle()

	v.Resize(float64(width), float64(height), 1)
	img, err := v.Frame()
	if err != nil {
		return err
	}

	f, err := os.Create(output)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%dx%d, job %s, %s slice %d)\n", output, width, height, jobID, o, v.SliceIndex())
	return nil
}
