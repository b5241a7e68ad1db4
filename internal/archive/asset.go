package archive

// Kind is the data-kind discriminator: the second path component of a tar
// entry, selecting which Asset field the entry populates.
type Kind string

const (
	KindAsset    Kind = "asset"       // primary payload, bytes
	KindMeta     Kind = "asset.meta"  // sidecar metadata, text
	KindPathname Kind = "pathname"    // logical output path, text
	KindPreview  Kind = "preview.png" // thumbnail, bytes
)

// Known reports whether k is one of the recognized data kinds.
// Matching is exact and case-sensitive.
func (k Kind) Known() bool {
	switch k {
	case KindAsset, KindMeta, KindPathname, KindPreview:
		return true
	}
	return false
}

// Asset is the partial reconstruction of one archived asset.
// Every field except ID starts absent and is filled in as matching entries
// stream past; a later entry of the same kind replaces the earlier value.
//
// For the byte fields nil means absent. An empty entry yields a non-nil,
// zero-length slice.
type Asset struct {
	ID       string
	Pathname *string
	Payload  []byte
	Meta     *string
	Preview  []byte
}

// Routable reports whether the asset declares a logical path.
// Assets without one are bookkeeping entries and produce no output.
func (a *Asset) Routable() bool {
	return a.Pathname != nil
}

// HasPayload reports whether an asset entry was read.
func (a *Asset) HasPayload() bool {
	return a.Payload != nil
}

// HasMeta reports whether an asset.meta entry was read.
func (a *Asset) HasMeta() bool {
	return a.Meta != nil
}

// HasPreview reports whether a preview.png entry was read.
func (a *Asset) HasPreview() bool {
	return a.Preview != nil
}

// Kinds returns the data kinds present on the asset, in a fixed order.
func (a *Asset) Kinds() []Kind {
	kinds := make([]Kind, 0, 4)
	if a.HasPayload() {
		kinds = append(kinds, KindAsset)
	}
	if a.HasMeta() {
		kinds = append(kinds, KindMeta)
	}
	if a.Routable() {
		kinds = append(kinds, KindPathname)
	}
	if a.HasPreview() {
		kinds = append(kinds, KindPreview)
	}
	return kinds
}

// Warning records a tar entry that was skipped without aborting the archive.
type Warning struct {
	Entry  string `json:"entry"`
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

// String formats the warning for operators.
func (w Warning) String() string {
	if w.Err != nil {
		return w.Reason + ": " + w.Entry + " (" + w.Err.Error() + ")"
	}
	return w.Reason + ": " + w.Entry
}

// Contents is everything recovered from one archive.
type Contents struct {
	Assets   map[string]*Asset
	Warnings []Warning
	Entries  int // tar entries seen, including skipped ones
}

func newContents() *Contents {
	return &Contents{Assets: make(map[string]*Asset)}
}

// asset returns the record for id, creating it on first sight.
func (c *Contents) asset(id string) *Asset {
	a, ok := c.Assets[id]
	if !ok {
		a = &Asset{ID: id}
		c.Assets[id] = a
	}
	return a
}

func (c *Contents) warn(entry, id, reason string, err error) {
	c.Warnings = append(c.Warnings, Warning{Entry: entry, ID: id, Reason: reason, Err: err})
}
