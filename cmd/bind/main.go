// Command bind merges local images and PDFs into one PDF using the same
// pipeline as the web service.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rmitchellscott/binder/internal/binder"
	"github.com/rmitchellscott/binder/internal/config"
	"github.com/rmitchellscott/binder/internal/layout"
	"github.com/rmitchellscott/binder/internal/logging"
	"github.com/rmitchellscott/binder/internal/pdfprocessor"
	"github.com/rmitchellscott/binder/internal/security"
	"github.com/rmitchellscott/binder/internal/version"
)

var errTerminal = errors.New("refusing to write a binary PDF to a terminal; use -o FILE or --force")

// isTerminal is swapped out in tests.
var isTerminal = func(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

type flags struct {
	output    string
	pageSize  string
	margin    float64
	noUpscale bool
	imageDPI  float64
	quality   int
	pdfMode   string
	rasterDPI float64
	pages     string
	optimize  bool
	force     bool
	verbose   bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	s := config.Load()
	f := &flags{
		output:    "-",
		pageSize:  s.PageSize,
		margin:    s.PageMargin,
		noUpscale: !s.PageUpscale,
		imageDPI:  s.ImageDPI,
		quality:   s.JPEGQuality,
		pdfMode:   s.PDFMode,
		rasterDPI: s.RasterDPI,
		optimize:  s.OptimizeOutput,
	}

	cmd := &cobra.Command{
		Use:   "bind [files...]",
		Short: "Merge images and PDFs into a single PDF",
		Long: `Merge images and PDFs into a single PDF, in the order given.

Images are placed one per page, scaled to fit. PDF pages are copied, or
rasterized with --pdf-mode rasterize. Defaults come from the same
environment variables as the server (PAGE_SIZE, PAGE_MARGIN, ...).`,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBind(cmd, args, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.output, "output", "o", f.output, `output file, "-" for stdout`)
	fl.StringVar(&f.pageSize, "page-size", f.pageSize, `page size: paper name (A4, Letter, A5L), WxH in points, or "image"`)
	fl.Float64Var(&f.margin, "margin", f.margin, "page margin in points")
	fl.BoolVar(&f.noUpscale, "no-upscale", f.noUpscale, "keep small images at their natural size")
	fl.Float64Var(&f.imageDPI, "dpi", f.imageDPI, "resolution images are resampled to")
	fl.IntVar(&f.quality, "quality", f.quality, "JPEG quality (1-100)")
	fl.StringVar(&f.pdfMode, "pdf-mode", f.pdfMode, "how PDFs are merged: copy or rasterize")
	fl.Float64Var(&f.rasterDPI, "raster-dpi", f.rasterDPI, "resolution for --pdf-mode rasterize")
	fl.StringVar(&f.pages, "pages", f.pages, `pages to keep from each PDF, e.g. "1-3,5"`)
	fl.BoolVar(&f.optimize, "optimize", f.optimize, "optimize the output document")
	fl.BoolVar(&f.force, "force", false, "write to stdout even when it is a terminal")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "log progress to stderr")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	})
	return cmd
}

func (f *flags) options() (binder.Options, error) {
	page, err := layout.ParsePageSize(f.pageSize)
	if err != nil {
		return binder.Options{}, err
	}
	if f.pdfMode != config.PDFModeCopy && f.pdfMode != config.PDFModeRasterize {
		return binder.Options{}, fmt.Errorf("--pdf-mode must be %q or %q", config.PDFModeCopy, config.PDFModeRasterize)
	}
	if f.quality < 1 || f.quality > 100 {
		return binder.Options{}, fmt.Errorf("--quality must be between 1 and 100")
	}
	if f.margin < 0 {
		return binder.Options{}, fmt.Errorf("--margin must not be negative")
	}
	return binder.Options{
		PageSize:    page,
		Margin:      f.margin,
		Upscale:     !f.noUpscale,
		ImageDPI:    f.imageDPI,
		JPEGQuality: f.quality,
		PDFMode:     f.pdfMode,
		RasterDPI:   f.rasterDPI,
		Pages:       pdfprocessor.ParseSelection(f.pages),
		Optimize:    f.optimize,
	}, nil
}

func runBind(cmd *cobra.Command, args []string, f *flags) error {
	if f.verbose {
		if err := logging.Init(true); err != nil {
			return err
		}
		defer logging.Sync()
	}

	opts, err := f.options()
	if err != nil {
		return err
	}

	// check the destination before doing any work
	out := cmd.OutOrStdout()
	toStdout := f.output == "-"
	if toStdout && !f.force {
		if file, ok := out.(*os.File); ok && isTerminal(file) {
			return errTerminal
		}
	}

	inputs := make([]binder.Input, 0, len(args))
	for _, arg := range args {
		sp, err := security.ResolveSecurePath(arg)
		if err != nil {
			return fmt.Errorf("%s: %w", arg, err)
		}
		data, err := security.SafeReadFile(sp)
		if err != nil {
			return err
		}
		inputs = append(inputs, binder.Input{Name: arg, Data: data})
	}

	res, err := binder.Bind(cmd.Context(), inputs, opts, func(done, total int) {
		logging.Debugf("[BIND] %d/%d %s", done, total, inputs[done-1].Name)
	})
	if err != nil {
		return err
	}

	if toStdout {
		_, err = out.Write(res.PDF)
		return err
	}

	sp, err := security.ResolveSecurePath(f.output)
	if err != nil {
		return fmt.Errorf("%s: %w", f.output, err)
	}
	dst, err := security.SafeCreate(sp)
	if err != nil {
		return err
	}
	if _, err := dst.Write(res.PDF); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d pages from %d files to %s\n", res.Pages, res.Inputs, sp)
	return nil
}
