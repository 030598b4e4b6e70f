package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	voidcloak "github.com/ivxni/VOiD"
	"github.com/ivxni/VOiD/internal/config"
	"github.com/ivxni/VOiD/pkg/imageio"
	"github.com/ivxni/VOiD/pkg/types"
)

func main() {
	var in, out, strengthFlag string
	var cascade, models string
	var format string
	var quality int
	var workers int
	var seed int64
	var analysisOut string
	var configPath string
	var reportJSON bool
	var debug bool

	flag.StringVar(&in, "in", "", "input image path (jpg/png/webp)")
	flag.StringVar(&out, "out", "", "output path (default: <in>_cloaked.<format>)")
	flag.StringVar(&strengthFlag, "strength", "standard", "cloaking strength: subtle|standard|maximum")

	flag.StringVar(&cascade, "cascade", "", "face detection cascade file (overrides config)")
	flag.StringVar(&models, "models", "", "embedding models directory (overrides config)")

	flag.StringVar(&format, "format", "", "output format: jpg|png|webp (overrides config)")
	flag.IntVar(&quality, "quality", 0, "JPEG/WebP output quality 1-100 (overrides config)")
	flag.IntVar(&workers, "workers", 0, "max faces processed in parallel (0=NumCPU)")
	flag.Int64Var(&seed, "seed", 0, "perturbation noise seed (0=config default)")

	flag.StringVar(&analysisOut, "analysis", "", "also write the diagnostic visualization to this path")
	flag.StringVar(&configPath, "config", "", "config file (default: "+config.GetConfigPath()+" if present)")
	flag.BoolVar(&reportJSON, "json", false, "print the per-face report as JSON")
	flag.BoolVar(&debug, "debug", false, "verbose logging")

	flag.Parse()

	if debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if err := run(in, out, strengthFlag, cascade, models, format, quality,
		workers, seed, analysisOut, configPath, reportJSON); err != nil {
		logrus.Fatal(err)
	}
}

func run(in, out, strengthFlag, cascade, models, format string, quality, workers int,
	seed int64, analysisOut, configPath string, reportJSON bool) error {
	if in == "" {
		return fmt.Errorf("usage: %s -in input.jpg [-out output.jpg] [-strength subtle|standard|maximum]",
			filepath.Base(os.Args[0]))
	}

	strength, err := types.ParseStrength(strengthFlag)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if cascade != "" {
		cfg.Detector.CascadeFile = cascade
	}
	if models != "" {
		cfg.Embedder.ModelsDir = models
	}
	if format != "" {
		cfg.Output.Format = format
	}
	if quality > 0 {
		cfg.Output.Quality = quality
	}
	if workers > 0 {
		cfg.Pipeline.Workers = workers
	}
	if seed != 0 {
		cfg.Synthesis.Seed = seed
	}

	cloaker, err := voidcloak.New(cfg)
	if err != nil {
		return err
	}
	defer cloaker.Close()

	data, err := os.ReadFile(in)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	img, err := imageio.Decode(data)
	if err != nil {
		return err
	}

	result, err := cloaker.Cloak(context.Background(), img, strength)
	if err != nil {
		return err
	}

	if out == "" {
		out = defaultOutPath(in, cfg.Output.Format)
	}
	if err := imageio.Save(result.Image, out, imageio.EncodeOptions{
		Format:  cfg.Output.Format,
		Quality: cfg.Output.Quality,
	}); err != nil {
		return err
	}

	if analysisOut != "" {
		if vis, err := cloaker.Analyze(img, result); err != nil {
			logrus.WithError(err).Warn("analysis rendering failed")
		} else if err := os.WriteFile(analysisOut, vis, 0644); err != nil {
			return fmt.Errorf("failed to write analysis image: %w", err)
		}
	}

	if reportJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	} else {
		fmt.Printf("%s: %d/%d faces cloaked (strength %s, avg distance %.3f) in %dms -> %s\n",
			filepath.Base(in), result.FacesCloaked, result.FacesDetected,
			result.Strength, result.AvgDistance, result.ProcessingTimeMs(), out)
		for _, face := range result.Faces {
			line := fmt.Sprintf("  face %d [%d,%d %dx%d]: %s",
				face.Index, face.Box.XMin, face.Box.YMin,
				face.Box.Width(), face.Box.Height(), face.Status)
			if face.Status.Perturbed() {
				line += fmt.Sprintf(" distance=%.3f iterations=%d", face.Distance, face.Iterations)
			} else if face.Reason != "" {
				line += " (" + face.Reason + ")"
			}
			fmt.Println(line)
		}
	}

	return nil
}

// loadConfig loads the explicit config file, or the default path when it
// exists, or built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	if def := config.GetConfigPath(); fileExists(def) {
		return config.LoadFromFile(def)
	}
	return config.Default(), nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// defaultOutPath derives "<in>_cloaked.<format>" next to the input
func defaultOutPath(in, format string) string {
	base := strings.TrimSuffix(in, filepath.Ext(in))
	if format == "jpeg" {
		format = "jpg"
	}
	return base + "_cloaked." + format
}
