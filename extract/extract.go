package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tsawler/pdfprobe/core"
	"github.com/tsawler/pdfprobe/reader"
)

// defaultWorkers bounds the decode pool when the caller does not
// choose a width.
const defaultWorkers = 4

// Skip records one resource that was found but not written.
type Skip struct {
	// Page is the 1-based page the resource was found on.
	Page int
	// Name is the resource key.
	Name string
	// Reason says why the resource was skipped.
	Reason string
}

// Summary reports what an extraction run produced.
type Summary struct {
	// Extracted lists the resource paths written, in deterministic
	// order: pages in document order, keys sorted within each page.
	Extracted []string
	// Supplements lists paths written for bytes found outside the
	// %PDF..%%EOF envelope. They are not resources and do not count
	// toward extraction success.
	Supplements []string
	// Skipped lists resources that could not be written and why.
	Skipped []Skip
	// CycleDetected is set when the page tree walk pruned a cycle.
	CycleDetected bool
}

// extractOptions holds configuration for an extraction run.
type extractOptions struct {
	workers     int
	strict      bool
	supplements bool
}

// Extractor provides a fluent interface for extracting image
// resources. Each configuration method returns a new Extractor
// instance, making chains safe to share.
type Extractor struct {
	filename string
	r        *reader.Reader
	opened   bool

	options extractOptions

	// Accumulated error (fail-fast)
	err error
}

// Open prepares an extractor for the file at filename. The file is
// read when Run is called.
//
// Example:
//
//	summary, err := extract.Open("doc.pdf").Workers(8).Run(ctx, "out")
func Open(filename string) *Extractor {
	return &Extractor{
		filename: filename,
		options:  extractOptions{workers: defaultWorkers, supplements: true},
	}
}

// New prepares an extractor over an already-open reader.
func New(r *reader.Reader) *Extractor {
	return &Extractor{
		r:       r,
		opened:  true,
		options: extractOptions{workers: defaultWorkers, supplements: true},
	}
}

// clone creates a copy of the Extractor so chain methods never
// mutate their receiver.
func (e *Extractor) clone() *Extractor {
	return &Extractor{
		filename: e.filename,
		r:        e.r,
		opened:   e.opened,
		options:  e.options,
		err:      e.err,
	}
}

// Workers sets the decode pool width. Values below 1 reset to the
// default.
func (e *Extractor) Workers(n int) *Extractor {
	newExt := e.clone()
	if n < 1 {
		n = defaultWorkers
	}
	newExt.options.workers = n
	return newExt
}

// Strict makes any per-resource failure abort the run instead of
// being recorded as a skip.
func (e *Extractor) Strict() *Extractor {
	newExt := e.clone()
	newExt.options.strict = true
	return newExt
}

// NoSupplements disables writing the prepended.bin and appended.bin
// files for bytes found outside the document envelope.
func (e *Extractor) NoSupplements() *Extractor {
	newExt := e.clone()
	newExt.options.supplements = false
	return newExt
}

// ensureReader opens the reader if not already open.
func (e *Extractor) ensureReader() error {
	if e.opened {
		return nil
	}
	if e.filename == "" {
		return fmt.Errorf("no filename specified")
	}
	r, err := reader.Open(e.filename)
	if err != nil {
		return err
	}
	e.r = r
	e.opened = true
	return nil
}

// imageJob is one image queued for decoding, already prepared by the
// collection phase.
type imageJob struct {
	page   int
	name   string
	stream *core.Stream
	img    *reader.ImageXObject
}

// Run extracts every image resource into outDir, creating it if
// needed. The context cancels the decode pool between images.
func (e *Extractor) Run(ctx context.Context, outDir string) (*Summary, error) {
	if e.err != nil {
		return nil, e.err
	}
	if err := e.ensureReader(); err != nil {
		return nil, err
	}

	summary := &Summary{}
	jobs, err := e.collect(summary)
	if err != nil {
		return nil, err
	}

	decodeErrs := e.decodeAll(ctx, jobs)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", outDir, err)
	}
	for i, job := range jobs {
		if decodeErrs[i] != nil {
			if e.options.strict {
				return nil, fmt.Errorf("page %d image %s: %w", job.page, job.name, decodeErrs[i])
			}
			summary.Skipped = append(summary.Skipped, Skip{job.page, job.name, decodeErrs[i].Error()})
			continue
		}
		path, err := e.writeImage(outDir, job)
		if err != nil {
			if e.options.strict {
				return nil, err
			}
			summary.Skipped = append(summary.Skipped, Skip{job.page, job.name, err.Error()})
			continue
		}
		summary.Extracted = append(summary.Extracted, path)
	}

	if e.options.supplements {
		if err := e.writeSupplements(outDir, summary); err != nil {
			return nil, err
		}
	}
	return summary, nil
}

// collect walks the page tree and resource dictionaries, preparing
// one job per image. A visited set shared across the whole document
// keeps repeated resources (and Form XObjects that include each
// other) from being queued twice.
func (e *Extractor) collect(summary *Summary) ([]imageJob, error) {
	tree, err := e.r.Pages()
	if err != nil {
		return nil, err
	}
	summary.CycleDetected = tree.CycleDetected()

	encrypted := e.r.Encrypted()
	visited := make(map[int]bool)
	used := make(map[string]int)
	var jobs []imageJob

	for i, page := range tree.Pages() {
		pageNum := i + 1
		if page.Resources() == nil {
			continue
		}
		resStack := []core.Dict{page.Resources()}
		for len(resStack) > 0 {
			res := resStack[len(resStack)-1]
			resStack = resStack[:len(resStack)-1]

			xobjs, err := e.resolveDict(res.Get("XObject"))
			if err != nil || xobjs == nil {
				continue
			}
			for _, key := range xobjs.SortedKeys() {
				val := xobjs.Get(key)
				if ref, ok := val.(core.IndirectRef); ok {
					if visited[ref.Number] {
						continue
					}
					visited[ref.Number] = true
				}
				obj, err := e.r.ResolveObject(val)
				if err != nil {
					if e.options.strict {
						return nil, err
					}
					summary.Skipped = append(summary.Skipped, Skip{pageNum, key, err.Error()})
					continue
				}
				stream, ok := obj.(*core.Stream)
				if !ok {
					continue
				}

				subtype, _ := stream.Dict.GetName("Subtype")
				switch subtype {
				case "Form":
					if nested, err := e.resolveDict(stream.Dict.Get("Resources")); err == nil && nested != nil {
						resStack = append(resStack, nested)
					}
				case "Image":
					if encrypted {
						summary.Skipped = append(summary.Skipped,
							Skip{pageNum, key, core.ErrEncryptionUnsupported.Error()})
						continue
					}
					img, err := e.r.PrepareImage(key, stream)
					if err != nil {
						if e.options.strict {
							return nil, err
						}
						summary.Skipped = append(summary.Skipped, Skip{pageNum, key, err.Error()})
						continue
					}
					jobs = append(jobs, imageJob{
						page:   pageNum,
						name:   uniqueName(used, pageNum, key),
						stream: stream,
						img:    img,
					})
				}
			}
		}
	}
	return jobs, nil
}

// uniqueName disambiguates a resource key reused within one page,
// which nested Form XObjects make possible.
func uniqueName(used map[string]int, page int, key string) string {
	slot := fmt.Sprintf("%d/%s", page, key)
	used[slot]++
	if used[slot] == 1 {
		return key
	}
	return fmt.Sprintf("%s-%d", key, used[slot])
}

// decodeAll runs the filter chains across the worker pool. Results
// land in a slice indexed by job, so output stays ordered.
func (e *Extractor) decodeAll(ctx context.Context, jobs []imageJob) []error {
	errs := make([]error, len(jobs))
	if len(jobs) == 0 {
		return errs
	}
	workers := e.options.workers
	if workers > len(jobs) {
		workers = len(jobs)
	}

	queue := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range queue {
				if err := ctx.Err(); err != nil {
					errs[idx] = err
					continue
				}
				errs[idx] = jobs[idx].img.DecodeFrom(jobs[idx].stream)
			}
		}()
	}
feed:
	for idx := range jobs {
		select {
		case queue <- idx:
		case <-ctx.Done():
			break feed
		}
	}
	close(queue)
	wg.Wait()
	return errs
}

// writeImage writes one decoded image under outDir and returns its
// path.
func (e *Extractor) writeImage(outDir string, job imageJob) (string, error) {
	path := filepath.Join(outDir, fmt.Sprintf("page-%d-%s.%s", job.page, job.name, job.img.Ext))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if job.img.Passthrough {
		if _, err := f.Write(job.img.Data); err != nil {
			return "", fmt.Errorf("writing %s: %w", path, err)
		}
		return path, nil
	}
	if err := job.img.ToPNG(f); err != nil {
		return "", err
	}
	return path, nil
}

// writeSupplements saves bytes found outside the %PDF..%%EOF envelope.
func (e *Extractor) writeSupplements(outDir string, summary *Summary) error {
	supplements := []struct {
		name string
		data []byte
	}{
		{"prepended.bin", e.r.PrependedData()},
		{"appended.bin", e.r.AppendedData()},
	}
	for _, s := range supplements {
		if len(s.data) == 0 {
			continue
		}
		path := filepath.Join(outDir, s.name)
		if err := os.WriteFile(path, s.data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		summary.Supplements = append(summary.Supplements, path)
	}
	return nil
}

// resolveDict resolves obj and asserts it is a dictionary. Absent and
// non-dictionary values come back nil.
func (e *Extractor) resolveDict(obj core.Object) (core.Dict, error) {
	if obj == nil {
		return nil, nil
	}
	resolved, err := e.r.ResolveObject(obj)
	if err != nil {
		return nil, err
	}
	dict, _ := resolved.(core.Dict)
	return dict, nil
}
