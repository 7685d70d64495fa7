// Command pdfprobe inspects PDF files and extracts their image
// resources.
//
// Usage:
//
//	pdfprobe extract -i input.pdf [-o outdir] [-workers n] [-strict]
//	pdfprobe analyze -i input.pdf
//
// Exit codes: 0 on success, 1 on unrecoverable failure, 2 when the
// document is valid but holds nothing to extract.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/tsawler/pdfprobe/analyze"
	"github.com/tsawler/pdfprobe/extract"
	"github.com/tsawler/pdfprobe/reader"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitEmpty   = 2
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("pdfprobe: ")

	if len(os.Args) < 2 {
		usage()
		os.Exit(exitFailure)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var code int
	switch os.Args[1] {
	case "extract":
		code = runExtract(ctx, os.Args[2:])
	case "analyze":
		code = runAnalyze(os.Args[2:])
	case "-h", "-help", "--help", "help":
		usage()
	default:
		log.Printf("unknown command %q", os.Args[1])
		usage()
		code = exitFailure
	}
	os.Exit(code)
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  pdfprobe extract -i input.pdf [-o outdir] [-workers n] [-strict]
  pdfprobe analyze -i input.pdf`)
}

func runExtract(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	input := fs.String("i", "", "input PDF file")
	output := fs.String("o", "", "output directory (default: input name without extension)")
	workers := fs.Int("workers", 0, "decode worker count (default: 4)")
	strict := fs.Bool("strict", false, "abort on the first damaged resource")
	fs.Parse(args)

	if *input == "" {
		log.Print("extract: -i is required")
		fs.Usage()
		return exitFailure
	}
	outDir := *output
	if outDir == "" {
		outDir = strings.TrimSuffix(*input, filepath.Ext(*input))
	}

	ex := extract.Open(*input)
	if *workers > 0 {
		ex = ex.Workers(*workers)
	}
	if *strict {
		ex = ex.Strict()
	}

	summary, err := ex.Run(ctx, outDir)
	if err != nil {
		log.Printf("extract: %v", err)
		return exitFailure
	}

	for _, path := range summary.Extracted {
		fmt.Println(path)
	}
	for _, path := range summary.Supplements {
		fmt.Println(path)
	}
	if summary.CycleDetected {
		log.Print("warning: page tree contained a cycle")
	}
	for _, skip := range summary.Skipped {
		log.Printf("skipped page %d %s: %s", skip.Page, skip.Name, skip.Reason)
	}
	log.Printf("%d extracted, %d skipped", len(summary.Extracted), len(summary.Skipped))

	// Supplements are envelope junk, not resources, so they do not
	// keep an otherwise empty run from signaling emptiness.
	if len(summary.Extracted) == 0 {
		log.Print("document parsed but contained no extractable resources")
		return exitEmpty
	}
	return exitOK
}

func runAnalyze(args []string) int {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	input := fs.String("i", "", "input PDF file")
	fs.Parse(args)

	if *input == "" {
		log.Print("analyze: -i is required")
		fs.Usage()
		return exitFailure
	}

	r, err := reader.Open(*input)
	if err != nil {
		log.Printf("analyze: %v", err)
		return exitFailure
	}
	report, err := analyze.Analyze(r)
	if err != nil {
		log.Printf("analyze: %v", err)
		return exitFailure
	}
	if err := report.Write(os.Stdout); err != nil {
		log.Printf("analyze: %v", err)
		return exitFailure
	}
	return exitOK
}
