package reader

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/tsawler/pdfprobe/core"
)

// ColorSpace describes an image's color space after resolving the
// object forms a document can express it in.
type ColorSpace struct {
	// Family is the normalized family name: DeviceGray, DeviceRGB,
	// DeviceCMYK, Indexed, Separation, DeviceN, ICCBased, or Lab.
	Family string
	// Components is the number of color components per sample.
	Components int

	// Base, HiVal, and Palette are set for Indexed color spaces.
	Base    *ColorSpace
	HiVal   int
	Palette []byte
}

// ImageXObject is one image resource, decoded as far as the filter
// chain allows.
type ImageXObject struct {
	// Name is the resource key inside the page's /XObject dictionary.
	Name string

	Width            int
	Height           int
	BitsPerComponent int
	ColorSpace       *ColorSpace
	ImageMask        bool

	// Filters lists the stream's filter chain in application order.
	Filters []string

	// Data holds decoded samples, or the compressed payload when
	// Passthrough is set.
	Data []byte

	// Passthrough marks formats carried whole rather than decoded:
	// DCT (JPEG), JPX (JPEG 2000), and JBIG2. Data is then already a
	// complete file body for Ext.
	Passthrough bool

	// Ext is the suggested file extension: png for decoded samples,
	// or the passthrough container format.
	Ext string
}

// passthroughExt maps passthrough filters to their on-disk format.
var passthroughExt = map[string]string{
	"DCTDecode":   "jpg",
	"DCT":         "jpg",
	"JPXDecode":   "jp2",
	"JBIG2Decode": "jbig2",
}

// DecodeImage decodes an image XObject stream into an ImageXObject.
// name is the resource key it was found under.
//
// When the filter chain ends in a passthrough codec, the outer
// filters are decoded and the inner payload is returned whole, so a
// [ASCII85Decode DCTDecode] image still comes back as a usable JPEG.
func (r *Reader) DecodeImage(name string, stream *core.Stream) (*ImageXObject, error) {
	img, err := r.PrepareImage(name, stream)
	if err != nil {
		return nil, err
	}
	if err := img.DecodeFrom(stream); err != nil {
		return nil, err
	}
	return img, nil
}

// PrepareImage resolves an image's attributes without decoding its
// payload. Preparation touches the reader and must stay on one
// goroutine; the returned image's DecodeFrom only touches the stream,
// so payload decoding can fan out.
func (r *Reader) PrepareImage(name string, stream *core.Stream) (*ImageXObject, error) {
	img := &ImageXObject{
		Name:    name,
		Filters: stream.FilterNames(),
	}

	width, err := r.imageInt(stream.Dict, "Width", "W")
	if err != nil {
		return nil, err
	}
	height, err := r.imageInt(stream.Dict, "Height", "H")
	if err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, &core.ParseError{Msg: fmt.Sprintf("image %s: bad dimensions %dx%d", name, width, height)}
	}
	img.Width, img.Height = width, height

	mask, ok := stream.Dict.GetBool("ImageMask")
	if !ok {
		mask, _ = stream.Dict.GetBool("IM")
	}
	img.ImageMask = mask

	if img.ImageMask {
		// Stencil masks are implicitly 1-bit gray.
		img.BitsPerComponent = 1
		img.ColorSpace = &ColorSpace{Family: "DeviceGray", Components: 1}
	} else {
		bpc, err := r.imageInt(stream.Dict, "BitsPerComponent", "BPC")
		if err != nil || bpc == 0 {
			bpc = 8
		}
		switch bpc {
		case 1, 2, 4, 8, 16:
		default:
			return nil, &core.ParseError{Msg: fmt.Sprintf("image %s: unsupported bits per component %d", name, bpc)}
		}
		img.BitsPerComponent = bpc

		csObj := stream.Dict.Get("ColorSpace")
		if csObj == nil {
			csObj = stream.Dict.Get("CS")
		}
		cs, err := r.parseColorSpace(csObj)
		if err != nil {
			return nil, err
		}
		img.ColorSpace = cs
	}
	return img, nil
}

// DecodeFrom runs the stream's filter chain and fills Data, Ext, and
// Passthrough on a prepared image.
func (img *ImageXObject) DecodeFrom(stream *core.Stream) error {
	data, err := stream.Decode()
	if err != nil {
		return err
	}

	for _, f := range img.Filters {
		if core.IsPassthroughFilter(f) {
			img.Passthrough = true
			img.Ext = passthroughExt[f]
			break
		}
	}
	if !img.Passthrough {
		img.Ext = "png"
	}
	img.Data = data
	return nil
}

// imageInt reads an integer image attribute under either its full or
// abbreviated key, resolving references.
func (r *Reader) imageInt(dict core.Dict, key, abbrev string) (int, error) {
	obj := dict.Get(key)
	if obj == nil {
		obj = dict.Get(abbrev)
	}
	if obj == nil {
		return 0, &core.ParseError{Msg: fmt.Sprintf("image attribute /%s missing", key)}
	}
	resolved, err := r.ResolveObject(obj)
	if err != nil {
		return 0, err
	}
	n, ok := core.IntValue(resolved)
	if !ok {
		return 0, &core.ParseError{Msg: fmt.Sprintf("image attribute /%s is not an integer", key)}
	}
	return int(n), nil
}

// parseColorSpace normalizes the color space object forms. A nil
// object defaults to DeviceGray, which is what a missing /ColorSpace
// on a non-mask image effectively means for sample unpacking.
func (r *Reader) parseColorSpace(obj core.Object) (*ColorSpace, error) {
	if obj == nil {
		return &ColorSpace{Family: "DeviceGray", Components: 1}, nil
	}
	resolved, err := r.ResolveObject(obj)
	if err != nil {
		return nil, err
	}

	switch cs := resolved.(type) {
	case core.Name:
		return r.namedColorSpace(string(cs))
	case core.Array:
		return r.arrayColorSpace(cs)
	}
	return nil, &core.ParseError{Msg: fmt.Sprintf("color space is %T, not a name or array", resolved)}
}

func (r *Reader) namedColorSpace(name string) (*ColorSpace, error) {
	switch name {
	case "DeviceGray", "G", "CalGray":
		return &ColorSpace{Family: "DeviceGray", Components: 1}, nil
	case "DeviceRGB", "RGB", "CalRGB":
		return &ColorSpace{Family: "DeviceRGB", Components: 3}, nil
	case "DeviceCMYK", "CMYK":
		return &ColorSpace{Family: "DeviceCMYK", Components: 4}, nil
	case "Indexed", "I":
		return nil, &core.ParseError{Msg: "Indexed color space requires its array form"}
	}
	return nil, &core.ParseError{Msg: fmt.Sprintf("unknown color space /%s", name)}
}

func (r *Reader) arrayColorSpace(arr core.Array) (*ColorSpace, error) {
	if len(arr) == 0 {
		return nil, &core.ParseError{Msg: "empty color space array"}
	}
	head, err := r.ResolveObject(arr[0])
	if err != nil {
		return nil, err
	}
	family, ok := head.(core.Name)
	if !ok {
		return nil, &core.ParseError{Msg: "color space array does not start with a name"}
	}

	switch string(family) {
	case "CalGray":
		return &ColorSpace{Family: "DeviceGray", Components: 1}, nil
	case "CalRGB", "Lab":
		// Lab renders approximately as RGB for extraction purposes.
		return &ColorSpace{Family: "DeviceRGB", Components: 3}, nil
	case "ICCBased":
		return r.iccColorSpace(arr)
	case "Indexed", "I":
		return r.indexedColorSpace(arr)
	case "Separation":
		return &ColorSpace{Family: "Separation", Components: 1}, nil
	case "DeviceN":
		if len(arr) < 2 {
			return nil, &core.ParseError{Msg: "DeviceN color space missing its names array"}
		}
		names, err := r.ResolveObject(arr[1])
		if err != nil {
			return nil, err
		}
		nameArr, ok := names.(core.Array)
		if !ok || len(nameArr) == 0 {
			return nil, &core.ParseError{Msg: "DeviceN names is not a non-empty array"}
		}
		return &ColorSpace{Family: "DeviceN", Components: len(nameArr)}, nil
	case "DeviceGray", "DeviceRGB", "DeviceCMYK":
		return r.namedColorSpace(string(family))
	}
	return nil, &core.ParseError{Msg: fmt.Sprintf("unknown color space /%s", family)}
}

// iccColorSpace reads the component count from the ICC stream's /N.
// When the stream is unusable, the count falls back to 3: RGB
// profiles dominate in practice.
func (r *Reader) iccColorSpace(arr core.Array) (*ColorSpace, error) {
	components := 3
	if len(arr) >= 2 {
		if obj, err := r.ResolveObject(arr[1]); err == nil {
			if stream, ok := obj.(*core.Stream); ok {
				if n, ok := stream.Dict.GetInt("N"); ok {
					components = int(n)
				}
			}
		}
	}
	switch components {
	case 1:
		return &ColorSpace{Family: "DeviceGray", Components: 1}, nil
	case 4:
		return &ColorSpace{Family: "DeviceCMYK", Components: 4}, nil
	default:
		return &ColorSpace{Family: "DeviceRGB", Components: 3}, nil
	}
}

// indexedColorSpace parses [/Indexed base hival lookup]. The lookup
// table may be a string or a stream.
func (r *Reader) indexedColorSpace(arr core.Array) (*ColorSpace, error) {
	if len(arr) != 4 {
		return nil, &core.ParseError{Msg: fmt.Sprintf("Indexed color space has %d elements, want 4", len(arr))}
	}
	base, err := r.parseColorSpace(arr[1])
	if err != nil {
		return nil, err
	}
	hiObj, err := r.ResolveObject(arr[2])
	if err != nil {
		return nil, err
	}
	hival, ok := core.IntValue(hiObj)
	if !ok || hival < 0 || hival > 255 {
		return nil, &core.ParseError{Msg: "Indexed hival out of range"}
	}

	lookupObj, err := r.ResolveObject(arr[3])
	if err != nil {
		return nil, err
	}
	var palette []byte
	switch lookup := lookupObj.(type) {
	case core.String:
		palette = []byte(lookup)
	case *core.Stream:
		palette, err = lookup.Decode()
		if err != nil {
			return nil, err
		}
	default:
		return nil, &core.ParseError{Msg: fmt.Sprintf("Indexed lookup is %T, not a string or stream", lookupObj)}
	}
	need := (int(hival) + 1) * base.Components
	if len(palette) < need {
		return nil, &core.ParseError{Msg: fmt.Sprintf("Indexed palette has %d bytes, want %d", len(palette), need)}
	}

	return &ColorSpace{
		Family:     "Indexed",
		Components: 1,
		Base:       base,
		HiVal:      int(hival),
		Palette:    palette[:need],
	}, nil
}

// bitScale maps a sub-byte sample depth to the factor that expands
// its full range to 0..255.
var bitScale = map[int]int{1: 255, 2: 85, 4: 17}

// unpackSamples expands packed samples into one byte per component,
// row-major. Rows are padded to byte boundaries in the packed form.
// scale widens sub-byte depths to the full 0..255 range; palette
// indices must not be scaled.
func unpackSamples(data []byte, width, height, bpc, components int, scale bool) ([]byte, error) {
	rowSize := (width*components*bpc + 7) / 8
	if len(data) < rowSize*height {
		return nil, io.ErrUnexpectedEOF
	}

	out := make([]byte, width*height*components)
	o := 0
	for y := 0; y < height; y++ {
		row := data[y*rowSize : (y+1)*rowSize]
		switch bpc {
		case 8:
			copy(out[o:], row[:width*components])
			o += width * components
		case 16:
			for i := 0; i < width*components; i++ {
				out[o] = row[i*2]
				o++
			}
		default:
			factor := 1
			if scale {
				factor = bitScale[bpc]
			}
			mask := byte(1<<bpc - 1)
			bit := 0
			for i := 0; i < width*components; i++ {
				b := row[bit/8]
				shift := 8 - bpc - bit%8
				sample := (b >> shift) & mask
				out[o] = sample * byte(factor)
				o++
				bit += bpc
			}
		}
	}
	return out, nil
}

// applyPalette maps one-byte palette indices through an Indexed
// color space's lookup table, yielding base-space samples.
func applyPalette(indices []byte, cs *ColorSpace) ([]byte, error) {
	n := cs.Base.Components
	out := make([]byte, len(indices)*n)
	for i, idx := range indices {
		if int(idx) > cs.HiVal {
			idx = byte(cs.HiVal)
		}
		copy(out[i*n:], cs.Palette[int(idx)*n:int(idx)*n+n])
	}
	return out, nil
}

// ToPNG encodes the decoded samples as a PNG. Passthrough images are
// already complete files in their own format and are rejected here;
// callers write Data directly for those.
func (img *ImageXObject) ToPNG(w io.Writer) error {
	if img.Passthrough {
		return fmt.Errorf("image %s: %s payload is not PNG-encodable", img.Name, img.Ext)
	}
	if img.ColorSpace == nil {
		return fmt.Errorf("image %s: no color space", img.Name)
	}

	cs := img.ColorSpace
	samples, err := unpackSamples(img.Data, img.Width, img.Height, img.BitsPerComponent,
		cs.Components, cs.Family != "Indexed")
	if err != nil {
		return fmt.Errorf("image %s: %w", img.Name, err)
	}
	family := cs.Family
	if family == "Indexed" {
		samples, err = applyPalette(samples, cs)
		if err != nil {
			return fmt.Errorf("image %s: %w", img.Name, err)
		}
		family = cs.Base.Family
	}

	bounds := image.Rect(0, 0, img.Width, img.Height)
	var encoded image.Image
	switch family {
	case "DeviceGray", "Separation":
		gray := image.NewGray(bounds)
		copy(gray.Pix, samples)
		encoded = gray
	case "DeviceRGB":
		rgba := image.NewRGBA(bounds)
		for i := 0; i < img.Width*img.Height; i++ {
			rgba.Pix[i*4+0] = samples[i*3+0]
			rgba.Pix[i*4+1] = samples[i*3+1]
			rgba.Pix[i*4+2] = samples[i*3+2]
			rgba.Pix[i*4+3] = 0xff
		}
		encoded = rgba
	case "DeviceCMYK", "DeviceN":
		if family == "DeviceN" && cs.Components != 4 {
			return fmt.Errorf("image %s: cannot render %d-component DeviceN", img.Name, cs.Components)
		}
		rgba := image.NewRGBA(bounds)
		for i := 0; i < img.Width*img.Height; i++ {
			r8, g8, b8 := color.CMYKToRGB(samples[i*4+0], samples[i*4+1], samples[i*4+2], samples[i*4+3])
			rgba.Pix[i*4+0] = r8
			rgba.Pix[i*4+1] = g8
			rgba.Pix[i*4+2] = b8
			rgba.Pix[i*4+3] = 0xff
		}
		encoded = rgba
	default:
		return fmt.Errorf("image %s: cannot render color space %s", img.Name, family)
	}

	return png.Encode(w, encoded)
}
