// Command locate finds one UI element on a screenshot and prints it as JSON.
//
//	locate -image shot.png -describe "the Save button" -target Save
//	locate -image shot.png -describe "the Save button" -fallback 760,480,840,520
//	locate -describe "the Save button" -target Save      (captures the screen)
//	locate -history 20
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/adverant/nexus/ui-locator/internal/app"
	"github.com/adverant/nexus/ui-locator/internal/config"
	"github.com/adverant/nexus/ui-locator/internal/element"
	"github.com/adverant/nexus/ui-locator/internal/locator"
	"github.com/adverant/nexus/ui-locator/internal/logging"
	"github.com/adverant/nexus/ui-locator/internal/screen"
)

func main() {
	var (
		imagePath   = flag.String("image", "", "screenshot to search (png, jpeg, bmp, tiff, webp); empty captures the screen")
		description = flag.String("describe", "", "natural-language description of the element")
		target      = flag.String("target", "", "text the element must contain")
		fallback    = flag.String("fallback", "", "static bbox x1,y1,x2,y2 used when the locate is not confident")
		noVision    = flag.Bool("no-vision", false, "skip the vision model and use OCR only")
		noOCR       = flag.Bool("no-ocr", false, "skip OCR refinement")
		noCache     = flag.Bool("no-cache", false, "bypass the result cache")
		lines       = flag.Bool("lines", false, "read whole OCR text lines instead of words")
		history     = flag.Int("history", 0, "print the newest N locate attempts from DATABASE_URL and exit")
		monitor     = flag.Int("monitor", -1, "monitor to capture when -image is empty (default MONITOR_INDEX)")
	)
	flag.Parse()

	_ = godotenv.Load(".env.locator")

	// Flags override the environment before validation so -no-vision works without an API key.
	if *noVision {
		os.Setenv("VISION_ENABLED", "false")
	}
	if *lines {
		os.Setenv("OCR_LINES", "true")
	}

	opts := locator.LocateOptions{SkipCache: *noCache, SkipOCR: *noOCR}
	if *monitor >= 0 {
		opts.Monitor = monitor
	}

	if err := run(*imagePath, *description, *target, *fallback, opts, *history); err != nil {
		fmt.Fprintln(os.Stderr, "locate:", err)
		os.Exit(1)
	}
}

func run(imagePath, description, target, fallbackSpec string, opts locator.LocateOptions, history int) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if err := logging.SetLevel(cfg.LogLevel); err != nil {
		return err
	}

	if history <= 0 {
		if description == "" {
			flag.Usage()
			return fmt.Errorf("-describe is required")
		}
	} else if cfg.DatabaseURL == "" {
		return fmt.Errorf("-history needs DATABASE_URL")
	}

	var fallback *element.BBox
	if fallbackSpec != "" {
		b, err := parseBBox(fallbackSpec)
		if err != nil {
			return err
		}
		fallback = &b
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := app.Build(ctx, cfg, screen.NewDisplayCapturer())
	if err != nil {
		return err
	}
	defer components.Close()

	if history > 0 {
		rows, err := components.History.RecentAttempts(ctx, history)
		if err != nil {
			return err
		}
		return printJSON(rows)
	}

	// A nil shot makes the engine capture the screen.
	var shot *screen.Screenshot
	if imagePath != "" {
		if shot, err = screen.Load(imagePath); err != nil {
			return err
		}
	}

	if fallback != nil {
		el, err := components.Engine.LocateWithFallback(ctx, description, shot, target, opts, fallback)
		if err != nil {
			return err
		}
		return printJSON(el)
	}

	results, err := components.Engine.Locate(ctx, description, shot, target, opts)
	if err != nil {
		return err
	}
	return printJSON(results)
}

// parseBBox reads "x1,y1,x2,y2".
func parseBBox(s string) (element.BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return element.BBox{}, fmt.Errorf("bbox %q must have four comma-separated integers", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return element.BBox{}, fmt.Errorf("bbox %q: %w", s, err)
		}
		v[i] = n
	}
	b := element.BBox{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3]}
	if b.X1 >= b.X2 || b.Y1 >= b.Y2 {
		return element.BBox{}, fmt.Errorf("bbox %q is empty", s)
	}
	return b, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
