package extract

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/tsawler/pdfprobe/reader"
)

// objectDef is one indirect object for buildPDF, given as its body
// text without the obj/endobj envelope.
type objectDef struct {
	num  int
	body string
}

// buildPDF assembles a classic-xref document, computing offsets as it
// writes. Object 1 is assumed to be the catalog.
func buildPDF(objs []objectDef, trailerExtra string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n")

	maxNum := 0
	offsets := make(map[int]int)
	for _, o := range objs {
		offsets[o.num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", o.num, o.body)
		if o.num > maxNum {
			maxNum = o.num
		}
	}

	xrefStart := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", maxNum+1)
	buf.WriteString("0000000000 65535 f \n")
	for num := 1; num <= maxNum; num++ {
		if off, ok := offsets[num]; ok {
			fmt.Fprintf(&buf, "%010d 00000 n \n", off)
		} else {
			buf.WriteString("0000000000 65535 f \n")
		}
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R %s>>\nstartxref\n%d\n%%%%EOF\n",
		maxNum+1, trailerExtra, xrefStart)
	return buf.Bytes()
}

// grayImage returns an image XObject body holding raw 8-bit gray
// samples with no filter.
func grayImage(width, height int, samples []byte) string {
	return fmt.Sprintf(
		"<< /Subtype /Image /Width %d /Height %d /BitsPerComponent 8 /ColorSpace /DeviceGray /Length %d >>\nstream\n%s\nendstream",
		width, height, len(samples), samples)
}

// singleImageDoc is a one-page document whose page carries image
// XObject /Im0 as object 4.
func singleImageDoc(imageBody string, trailerExtra string) []byte {
	return buildPDF([]objectDef{
		{1, "<< /Type /Catalog /Pages 2 0 R >>"},
		{2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>"},
		{3, "<< /Type /Page /Parent 2 0 R /Resources << /XObject << /Im0 4 0 R >> >> >>"},
		{4, imageBody},
	}, trailerExtra)
}

func newTestReader(t *testing.T, data []byte) *reader.Reader {
	t.Helper()
	r, err := reader.NewReader(data)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestRunExtractsImage(t *testing.T) {
	data := singleImageDoc(grayImage(2, 1, []byte{0x00, 0xff}), "")
	outDir := t.TempDir()

	summary, err := New(newTestReader(t, data)).Run(context.Background(), outDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(summary.Extracted) != 1 {
		t.Fatalf("Extracted = %v, want one file", summary.Extracted)
	}
	if len(summary.Skipped) != 0 {
		t.Errorf("Skipped = %v", summary.Skipped)
	}

	want := filepath.Join(outDir, "page-1-Im0.png")
	if summary.Extracted[0] != want {
		t.Errorf("path = %q, want %q", summary.Extracted[0], want)
	}
	f, err := os.Open(want)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 2 || img.Bounds().Dy() != 1 {
		t.Errorf("bounds = %v, want 2x1", img.Bounds())
	}
}

func TestRunOpenFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.pdf")
	if err := os.WriteFile(path, singleImageDoc(grayImage(1, 1, []byte{0x7f}), ""), 0o644); err != nil {
		t.Fatal(err)
	}
	summary, err := Open(path).Run(context.Background(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(summary.Extracted) != 1 {
		t.Fatalf("Extracted = %v", summary.Extracted)
	}
}

func TestRunNoImages(t *testing.T) {
	data := buildPDF([]objectDef{
		{1, "<< /Type /Catalog /Pages 2 0 R >>"},
		{2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>"},
		{3, "<< /Type /Page /Parent 2 0 R >>"},
	}, "")

	summary, err := New(newTestReader(t, data)).Run(context.Background(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(summary.Extracted) != 0 || len(summary.Skipped) != 0 {
		t.Errorf("summary = %+v, want empty", summary)
	}
}

func TestRunFormXObject(t *testing.T) {
	// The page references a Form whose own resources carry the image.
	data := buildPDF([]objectDef{
		{1, "<< /Type /Catalog /Pages 2 0 R >>"},
		{2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>"},
		{3, "<< /Type /Page /Parent 2 0 R /Resources << /XObject << /Fm0 5 0 R >> >> >>"},
		{4, grayImage(1, 1, []byte{0x10})},
		{5, "<< /Subtype /Form /Resources << /XObject << /Im0 4 0 R >> >> /Length 0 >>\nstream\n\nendstream"},
	}, "")

	summary, err := New(newTestReader(t, data)).Run(context.Background(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(summary.Extracted) != 1 {
		t.Fatalf("Extracted = %v, want the form's image", summary.Extracted)
	}
	if filepath.Base(summary.Extracted[0]) != "page-1-Im0.png" {
		t.Errorf("file = %q", summary.Extracted[0])
	}
}

func TestRunSharedImageOnce(t *testing.T) {
	// Both pages reference the same image object; the shared visited
	// set keeps it from being written twice.
	data := buildPDF([]objectDef{
		{1, "<< /Type /Catalog /Pages 2 0 R >>"},
		{2, "<< /Type /Pages /Kids [3 0 R 4 0 R] /Count 2 >>"},
		{3, "<< /Type /Page /Parent 2 0 R /Resources << /XObject << /Im0 5 0 R >> >> >>"},
		{4, "<< /Type /Page /Parent 2 0 R /Resources << /XObject << /Im0 5 0 R >> >> >>"},
		{5, grayImage(1, 1, []byte{0x20})},
	}, "")

	summary, err := New(newTestReader(t, data)).Run(context.Background(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(summary.Extracted) != 1 {
		t.Errorf("Extracted = %v, want one file for the shared image", summary.Extracted)
	}
}

func TestRunEncryptedSkips(t *testing.T) {
	objs := []objectDef{
		{1, "<< /Type /Catalog /Pages 2 0 R >>"},
		{2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>"},
		{3, "<< /Type /Page /Parent 2 0 R /Resources << /XObject << /Im0 4 0 R >> >> >>"},
		{4, grayImage(1, 1, []byte{0x30})},
		{5, "<< /Filter /Standard /V 2 >>"},
	}
	data := buildPDF(objs, "/Encrypt 5 0 R ")

	summary, err := New(newTestReader(t, data)).Run(context.Background(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(summary.Extracted) != 0 {
		t.Errorf("Extracted = %v, want none from an encrypted document", summary.Extracted)
	}
	if len(summary.Skipped) != 1 {
		t.Fatalf("Skipped = %v, want one entry", summary.Skipped)
	}
	if summary.Skipped[0].Name != "Im0" {
		t.Errorf("skip name = %q", summary.Skipped[0].Name)
	}
}

func TestRunCorruptImageSkipped(t *testing.T) {
	corrupt := "<< /Subtype /Image /Width 2 /Height 2 /BitsPerComponent 8 /ColorSpace /DeviceGray /Filter /FlateDecode /Length 4 >>\nstream\nBAD!\nendstream"
	data := singleImageDoc(corrupt, "")

	summary, err := New(newTestReader(t, data)).Run(context.Background(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(summary.Extracted) != 0 {
		t.Errorf("Extracted = %v", summary.Extracted)
	}
	if len(summary.Skipped) != 1 {
		t.Fatalf("Skipped = %v, want one entry", summary.Skipped)
	}
}

func TestRunStrictAborts(t *testing.T) {
	corrupt := "<< /Subtype /Image /Width 2 /Height 2 /BitsPerComponent 8 /ColorSpace /DeviceGray /Filter /FlateDecode /Length 4 >>\nstream\nBAD!\nendstream"
	data := singleImageDoc(corrupt, "")

	_, err := New(newTestReader(t, data)).Strict().Run(context.Background(), t.TempDir())
	if err == nil {
		t.Fatal("strict run over a corrupt image: expected error")
	}
}

func TestRunContextCanceled(t *testing.T) {
	data := singleImageDoc(grayImage(1, 1, []byte{0x40}), "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := New(newTestReader(t, data)).Run(ctx, t.TempDir()); err == nil {
		t.Fatal("canceled context: expected error")
	}
}

func TestRunWritesSupplements(t *testing.T) {
	inner := singleImageDoc(grayImage(1, 1, []byte{0x50}), "")
	data := append([]byte("SMUGGLED"), inner...)
	outDir := t.TempDir()

	summary, err := New(newTestReader(t, data)).Run(context.Background(), outDir)
	if err != nil {
		t.Fatal(err)
	}
	payload, err := os.ReadFile(filepath.Join(outDir, "prepended.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if string(payload) != "SMUGGLED" {
		t.Errorf("prepended.bin = %q", payload)
	}
	if len(summary.Extracted) != 1 {
		t.Errorf("Extracted = %v, want only the image", summary.Extracted)
	}
	want := filepath.Join(outDir, "prepended.bin")
	if len(summary.Supplements) != 1 || summary.Supplements[0] != want {
		t.Errorf("Supplements = %v, want [%s]", summary.Supplements, want)
	}
}

func TestRunSupplementsDoNotCountAsExtracted(t *testing.T) {
	// Envelope junk around a document with no images: the junk is
	// written out but the run still reports nothing extracted.
	inner := buildPDF([]objectDef{
		{1, "<< /Type /Catalog /Pages 2 0 R >>"},
		{2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>"},
		{3, "<< /Type /Page /Parent 2 0 R >>"},
	}, "")
	data := append([]byte("SMUGGLED"), inner...)
	outDir := t.TempDir()

	summary, err := New(newTestReader(t, data)).Run(context.Background(), outDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(summary.Extracted) != 0 {
		t.Errorf("Extracted = %v, want none", summary.Extracted)
	}
	if len(summary.Supplements) != 1 {
		t.Fatalf("Supplements = %v, want one entry", summary.Supplements)
	}
	if _, err := os.Stat(filepath.Join(outDir, "prepended.bin")); err != nil {
		t.Errorf("prepended.bin: %v", err)
	}
}

func TestNoSupplements(t *testing.T) {
	inner := singleImageDoc(grayImage(1, 1, []byte{0x60}), "")
	data := append([]byte("SMUGGLED"), inner...)
	outDir := t.TempDir()

	if _, err := New(newTestReader(t, data)).NoSupplements().Run(context.Background(), outDir); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "prepended.bin")); !os.IsNotExist(err) {
		t.Errorf("prepended.bin written despite NoSupplements, stat err = %v", err)
	}
}

func TestChainDoesNotMutate(t *testing.T) {
	base := Open("whatever.pdf")
	strict := base.Strict()
	if base.options.strict {
		t.Error("Strict mutated the base extractor")
	}
	if !strict.options.strict {
		t.Error("Strict not set on the derived extractor")
	}
	if base.Workers(9).options.workers != 9 {
		t.Error("Workers not applied")
	}
	if base.options.workers != defaultWorkers {
		t.Error("Workers mutated the base extractor")
	}
}
