package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/draw"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/eligwz/spectrogram"
	"github.com/joho/godotenv"
	"github.com/mdobak/go-xerrors"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"takematch/internal/audio"
	"takematch/internal/fingerprint"
	"takematch/internal/service"
	"takematch/pkg/logger"
)

var (
	cacheFile string
	workers   int
)

func init() {
	flag.StringVar(&cacheFile, "cache-file", getEnvOrDefault("TAKEMATCH_CACHE_FILE", ""), "per-directory cache filename override")
	flag.IntVar(&workers, "workers", 0, "fingerprinting worker pool size (0 = number of CPUs)")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	_ = godotenv.Load()
	log := logger.GetLogger()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	log.Debugf("executing command: %s", command)

	switch command {
	case "fingerprint":
		handleFingerprint(os.Args[2:])
	case "match":
		handleMatch(os.Args[2:])
	case "exclude":
		handleExclude(os.Args[2:])
	case "discover":
		handleDiscover(os.Args[2:])
	case "spectrogram":
		handleSpectrogram(os.Args[2:])
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`takematch - identify recordings by acoustic similarity

Usage:
  takematch fingerprint [-algos spectral,lightweight,chroma,constellation] <dir>
  takematch match [-root <reference_root>] [-algo lightweight] [-threshold 0.7] <file.wav>
  takematch exclude <dir> <file.wav>
  takematch discover <root>
  takematch spectrogram [-width 2048] [-height 512] <file.wav> <out.png>`)
}

func newService(opts ...service.Option) *service.Service {
	opts = append(opts,
		service.WithCacheFileName(cacheFile),
		service.WithWorkers(workers),
	)
	return service.New(opts...)
}

func fail(err error) {
	logger.Errorf("%v", xerrors.New(err))
	os.Exit(1)
}

func handleFingerprint(args []string) {
	cmd := flag.NewFlagSet("fingerprint", flag.ExitOnError)
	algos := cmd.String("algos", "", "comma-separated algorithms (default: all)")
	cmd.Parse(args)

	if cmd.NArg() < 1 {
		fmt.Println("usage: takematch fingerprint [-algos ...] <dir>")
		os.Exit(1)
	}
	dir := cmd.Arg(0)

	var algorithms []fingerprint.Algorithm
	if *algos != "" {
		for _, name := range strings.Split(*algos, ",") {
			a, err := fingerprint.ParseAlgorithm(strings.TrimSpace(name))
			if err != nil {
				fail(err)
			}
			algorithms = append(algorithms, a)
		}
	}

	p := mpb.New(mpb.WithWidth(64))
	var bar *mpb.Bar
	svc := newService(service.WithProgress(func(done, total int) {
		if bar == nil {
			bar = p.AddBar(int64(total),
				mpb.PrependDecorators(
					decor.Name("Fingerprinting: "),
					decor.CountersNoUnit("%d / %d"),
				),
				mpb.AppendDecorators(decor.Percentage()),
			)
		}
		bar.SetCurrent(int64(done))
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := svc.GenerateForDirectory(ctx, dir, algorithms)
	if bar != nil {
		bar.Abort(true)
	}
	p.Wait()
	if err != nil {
		fail(err)
	}

	fmt.Printf("%d files: %d fingerprinted, %d already cached, %d pruned\n",
		result.Total, result.Generated, result.Skipped, result.Pruned)
	for _, fe := range result.Errors {
		fmt.Printf("  failed %s: %v\n", fe.Filename, fe.Err)
	}
}

func handleMatch(args []string) {
	cmd := flag.NewFlagSet("match", flag.ExitOnError)
	root := cmd.String("root", getEnvOrDefault("TAKEMATCH_ROOT", "."), "root to search for reference directories")
	algo := cmd.String("algo", string(fingerprint.Lightweight), "fingerprint algorithm")
	threshold := cmd.Float64("threshold", 0.7, "minimum cosine similarity")
	includeOwnDir := cmd.Bool("include-own-dir", false, "also match against the file's own directory")
	cmd.Parse(args)

	if cmd.NArg() < 1 {
		fmt.Println("usage: takematch match [-root <reference_root>] <file.wav>")
		os.Exit(1)
	}
	target := cmd.Arg(0)

	algorithm, err := fingerprint.ParseAlgorithm(*algo)
	if err != nil {
		fail(err)
	}

	samples, sampleRate, err := audio.ReadWAV(target)
	if err != nil {
		fail(err)
	}

	svc := newService()
	refDirs, err := svc.DiscoverReferenceDirectories(*root)
	if err != nil {
		fail(err)
	}
	if len(refDirs) == 0 {
		fmt.Printf("no reference directories found under %s\n", *root)
		os.Exit(1)
	}

	excludeDir := ""
	if !*includeOwnDir {
		if abs, err := filepath.Abs(filepath.Dir(target)); err == nil {
			excludeDir = abs
		} else {
			excludeDir = filepath.Dir(target)
		}
	}

	suggestion, err := svc.MatchFile(samples, sampleRate, algorithm, refDirs, *threshold, excludeDir)
	if err != nil {
		fail(err)
	}
	if suggestion == nil {
		fmt.Println("no match above threshold")
		return
	}
	fmt.Printf("best match: %s (score %.3f, from %s)\n",
		suggestion.Filename, suggestion.Score, suggestion.Directory)
}

func handleExclude(args []string) {
	cmd := flag.NewFlagSet("exclude", flag.ExitOnError)
	cmd.Parse(args)

	if cmd.NArg() < 2 {
		fmt.Println("usage: takematch exclude <dir> <file.wav>")
		os.Exit(1)
	}

	svc := newService()
	excluded, err := svc.ToggleExclusion(cmd.Arg(0), cmd.Arg(1))
	if err != nil {
		fail(err)
	}
	if excluded {
		fmt.Printf("%s is now excluded from matching\n", cmd.Arg(1))
	} else {
		fmt.Printf("%s is now included in matching\n", cmd.Arg(1))
	}
}

func handleDiscover(args []string) {
	cmd := flag.NewFlagSet("discover", flag.ExitOnError)
	cmd.Parse(args)

	if cmd.NArg() < 1 {
		fmt.Println("usage: takematch discover <root>")
		os.Exit(1)
	}

	svc := newService()
	dirs, err := svc.DiscoverReferenceDirectories(cmd.Arg(0))
	if err != nil {
		fail(err)
	}
	for _, dir := range dirs {
		fmt.Println(dir)
	}
	fmt.Printf("%d reference directories\n", len(dirs))
}

func handleSpectrogram(args []string) {
	cmd := flag.NewFlagSet("spectrogram", flag.ExitOnError)
	width := cmd.Int("width", 2048, "output image width")
	height := cmd.Int("height", 512, "output image height (frequency bins)")
	cmd.Parse(args)

	if cmd.NArg() < 2 {
		fmt.Println("usage: takematch spectrogram <file.wav> <out.png>")
		os.Exit(1)
	}

	samples, sampleRate, err := audio.ReadWAV(cmd.Arg(0))
	if err != nil {
		fail(err)
	}

	img := spectrogram.NewImage128(image.Rect(0, 0, *width, *height))
	draw.Draw(img, img.Bounds(), image.NewUniform(spectrogram.ParseColor("000000")), image.Point{}, draw.Src)
	spectrogram.Drawfft(
		img,
		samples,
		uint32(sampleRate),
		uint32(*height), // bins
		false,           // RECTANGLE: false = Hamming window
		false,           // DFT: false = FFT
		true,            // MAG: magnitude
		false,           // LOG10: linear scale
	)

	if err := spectrogram.SavePng(img, cmd.Arg(1)); err != nil {
		fail(err)
	}
	fmt.Printf("saved spectrogram to %s\n", cmd.Arg(1))
}
