package pages

import (
	"fmt"

	"github.com/tsawler/pdfprobe/core"
)

// ObjectResolver resolves indirect references during the walk.
// reader.Reader implements it.
type ObjectResolver interface {
	Resolve(ref core.IndirectRef) (core.Object, error)
}

// usLetter is the MediaBox fallback when neither the page nor any
// ancestor declares one.
var usLetter = []float64{0, 0, 612, 792}

// Page is one leaf of the page tree with its inherited attributes
// already bound.
type Page struct {
	// Dict is the page's own dictionary.
	Dict core.Dict
	// ObjectNumber is the number the page was reached through, or
	// -1 when the page was a direct dictionary inside its parent.
	ObjectNumber int

	resources core.Dict
	mediaBox  []float64
	cropBox   []float64
	rotate    int
}

// Resources returns the page's resource dictionary, inherited from
// the nearest ancestor when the page has none. May be nil.
func (p *Page) Resources() core.Dict { return p.resources }

// MediaBox returns the effective media box, defaulting to US Letter.
func (p *Page) MediaBox() []float64 {
	if p.mediaBox != nil {
		return p.mediaBox
	}
	return usLetter
}

// CropBox returns the effective crop box, falling back to the media
// box.
func (p *Page) CropBox() []float64 {
	if p.cropBox != nil {
		return p.cropBox
	}
	return p.MediaBox()
}

// Rotate returns the effective page rotation in degrees, normalized
// to 0, 90, 180, or 270.
func (p *Page) Rotate() int { return p.rotate }

// PageTree is the flattened page list for one document.
type PageTree struct {
	resolver ObjectResolver
	pages    []*Page

	cycleDetected bool
}

// inherited carries the attribute values accumulated from ancestors.
type inherited struct {
	resources core.Dict
	mediaBox  []float64
	cropBox   []float64
	rotate    int
}

// workItem is one node awaiting traversal, paired with the inherited
// state at its position in the tree.
type workItem struct {
	node core.Dict
	num  int
	inh  inherited
}

// NewPageTree walks the page tree under the catalog. Structural
// damage below the root is tolerated: unresolvable or misshapen kids
// are skipped, and cycles are pruned. Only a missing or unusable
// /Pages root is an error.
func NewPageTree(catalog core.Dict, res ObjectResolver) (*PageTree, error) {
	t := &PageTree{resolver: res}

	rootObj := catalog.Get("Pages")
	if rootObj == nil {
		return nil, &core.ParseError{Msg: "catalog has no /Pages"}
	}

	visited := make(map[int]bool)
	rootNum := -1
	if ref, ok := rootObj.(core.IndirectRef); ok {
		rootNum = ref.Number
		visited[ref.Number] = true
	}
	root, err := t.resolveDict(rootObj)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, &core.ParseError{Msg: "page tree root is not a dictionary"}
	}

	if err := t.walk(root, rootNum, visited); err != nil {
		return nil, err
	}
	return t, nil
}

// walk runs the iterative work-list traversal from the root node.
func (t *PageTree) walk(root core.Dict, rootNum int, visited map[int]bool) error {
	stack := []workItem{{node: root, num: rootNum}}

	for len(stack) > 0 {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		inh := t.absorbInherited(item.node, item.inh)

		if t.isTreeNode(item.node) {
			kids, _ := t.resolveArray(item.node.Get("Kids"))
			// Pushed in reverse so pages come off in document order.
			for i := len(kids) - 1; i >= 0; i-- {
				kid, ok := t.prepareKid(kids[i], visited)
				if !ok {
					continue
				}
				kid.inh = inh
				stack = append(stack, kid)
			}
			continue
		}

		t.pages = append(t.pages, t.bindPage(item.node, item.num, inh))
	}
	return nil
}

// prepareKid resolves one Kids element into a work item, pruning
// revisits and skipping anything that is not a dictionary.
func (t *PageTree) prepareKid(obj core.Object, visited map[int]bool) (workItem, bool) {
	num := -1
	if ref, ok := obj.(core.IndirectRef); ok {
		if visited[ref.Number] {
			t.cycleDetected = true
			return workItem{}, false
		}
		visited[ref.Number] = true
		num = ref.Number
	}
	dict, err := t.resolveDict(obj)
	if err != nil || dict == nil {
		return workItem{}, false
	}
	return workItem{node: dict, num: num}, true
}

// isTreeNode classifies a node. /Type is trusted when present;
// non-conformant producers omit it, in which case the presence of
// Kids decides.
func (t *PageTree) isTreeNode(node core.Dict) bool {
	if typ, ok := node.GetName("Type"); ok {
		return typ == "Pages"
	}
	return node.Has("Kids")
}

// absorbInherited overlays the node's own inheritable attributes on
// what its ancestors passed down.
func (t *PageTree) absorbInherited(node core.Dict, inh inherited) inherited {
	if res, err := t.resolveDict(node.Get("Resources")); err == nil && res != nil {
		inh.resources = res
	}
	if box := t.resolveRect(node.Get("MediaBox")); box != nil {
		inh.mediaBox = box
	}
	if box := t.resolveRect(node.Get("CropBox")); box != nil {
		inh.cropBox = box
	}
	if rotObj, err := t.deref(node.Get("Rotate")); err == nil {
		if rot, ok := core.IntValue(rotObj); ok {
			inh.rotate = int(rot)
		}
	}
	return inh
}

func (t *PageTree) bindPage(node core.Dict, num int, inh inherited) *Page {
	rotate := ((inh.rotate % 360) + 360) % 360
	rotate -= rotate % 90
	return &Page{
		Dict:         node,
		ObjectNumber: num,
		resources:    inh.resources,
		mediaBox:     inh.mediaBox,
		cropBox:      inh.cropBox,
		rotate:       rotate,
	}
}

// Pages returns the pages in document order.
func (t *PageTree) Pages() []*Page { return t.pages }

// Count returns the number of pages actually reachable, which may
// differ from the root's declared /Count in damaged documents.
func (t *PageTree) Count() int { return len(t.pages) }

// Page returns the zero-based i'th page.
func (t *PageTree) Page(i int) (*Page, error) {
	if i < 0 || i >= len(t.pages) {
		return nil, fmt.Errorf("page index %d out of range [0,%d)", i, len(t.pages))
	}
	return t.pages[i], nil
}

// CycleDetected reports whether the walk pruned at least one revisit.
func (t *PageTree) CycleDetected() bool { return t.cycleDetected }

func (t *PageTree) deref(obj core.Object) (core.Object, error) {
	if obj == nil {
		return nil, fmt.Errorf("absent")
	}
	if ref, ok := obj.(core.IndirectRef); ok {
		return t.resolver.Resolve(ref)
	}
	return obj, nil
}

func (t *PageTree) resolveDict(obj core.Object) (core.Dict, error) {
	if obj == nil {
		return nil, nil
	}
	resolved, err := t.deref(obj)
	if err != nil {
		return nil, err
	}
	dict, _ := resolved.(core.Dict)
	return dict, nil
}

func (t *PageTree) resolveArray(obj core.Object) (core.Array, error) {
	resolved, err := t.deref(obj)
	if err != nil {
		return nil, err
	}
	arr, _ := resolved.(core.Array)
	return arr, nil
}

// resolveRect extracts a four-number rectangle, resolving the array
// and its elements.
func (t *PageTree) resolveRect(obj core.Object) []float64 {
	arr, err := t.resolveArray(obj)
	if err != nil || len(arr) != 4 {
		return nil
	}
	rect := make([]float64, 4)
	for i, elem := range arr {
		resolved, err := t.deref(elem)
		if err != nil {
			return nil
		}
		n, ok := core.NumberValue(resolved)
		if !ok {
			return nil
		}
		rect[i] = n
	}
	return rect
}
