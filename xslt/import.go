package xslt

// precedence is shared by every resource of an include chain. Its value is
// assigned lazily and can be renumbered until parsing is over.
type precedence struct {
	value    int
	assigned bool
}

// Import is one loaded stylesheet resource: the root stylesheet, an imported
// or an included one.
type Import struct {
	Index   int
	URL     string
	Root    Handle
	Version string
	// Included is set when the resource was reached with xsl:include and
	// shares the precedence of its parent.
	Included bool
	// ImportsAllowed is cleared by the first top-level element that is not
	// an xsl:import.
	ImportsAllowed bool
	// ForwardCompatible is set when the version of the stylesheet is not
	// 1.0.
	ForwardCompatible bool
	Parent            *Import

	prec *precedence
}

func newImport(index int, url string, parent *Import, included bool) *Import {
	imp := Import{
		Index:          index,
		URL:            url,
		Root:           NoHandle,
		Included:       included,
		ImportsAllowed: true,
		Parent:         parent,
	}
	if included && parent != nil {
		imp.prec = parent.prec
	} else {
		imp.prec = &precedence{}
	}
	return &imp
}

// Precedence returns the import precedence of imp. Higher values win.
func (i *Import) Precedence() int {
	return i.prec.value
}

// Recursive reports whether url is already being loaded by imp or one of
// the resources it comes from.
func (i *Import) Recursive(url string) bool {
	for p := i; p != nil; p = p.Parent {
		if p.URL == url {
			return true
		}
	}
	return false
}

// Imports reports whether other was reached from i through at least one
// xsl:import.
func (i *Import) Imports(other *Import) bool {
	if other == nil || other.prec == i.prec {
		return false
	}
	for p := other.Parent; p != nil; p = p.Parent {
		if p.prec == i.prec {
			return true
		}
	}
	return false
}

// ranking allocates the precedence numbers of the resources of a
// stylesheet.
type ranking struct {
	counter int
}

// assign gives imp a precedence if it has none yet. Resources imp comes
// from that were already ranked are moved above it, preserving that a more
// deeply imported resource ranks lower.
func (r *ranking) assign(imp *Import) {
	if imp.prec.assigned {
		return
	}
	r.counter++
	imp.prec.value = r.counter
	imp.prec.assigned = true

	last := imp.prec
	for p := imp.Parent; p != nil; p = p.Parent {
		if p.prec == last {
			continue
		}
		last = p.prec
		if !p.prec.assigned {
			continue
		}
		r.counter++
		p.prec.value = r.counter
	}
}
