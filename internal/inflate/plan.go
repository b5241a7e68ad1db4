package inflate

import (
	"path"
	"path/filepath"
	"sort"

	"github.com/hpungsan/upkg/internal/archive"
	"github.com/hpungsan/upkg/internal/errors"
)

// PreviewSuffix is appended to a logical path's stem to name its preview image.
const PreviewSuffix = "_preview_image.png"

// Artifact is one planned file write, relative to the output root.
type Artifact struct {
	AssetID string
	Kind    archive.Kind
	Rel     string // slash-separated
	Data    []byte
}

// Plan is the full set of writes for one archive, computed before any
// filesystem access.
type Plan struct {
	Artifacts  []Artifact // sorted by Rel
	Rejected   []Failure  // assets whose logical path is unsafe
	Unroutable []string   // asset ids without a logical path, sorted
}

// MetaPath returns where sidecar metadata for pathname is written:
// "name.ext" becomes "name.ext.meta", "name" becomes "name.meta".
func MetaPath(pathname string) string {
	return pathname + ".meta"
}

// PreviewPath returns where the preview for pathname is written: a sibling
// named "<stem>_preview_image.png".
func PreviewPath(pathname string) string {
	dir, base := path.Split(pathname)
	ext := path.Ext(base)
	if ext == base {
		// dotfile such as ".gitignore": the whole name is the stem
		ext = ""
	}
	return dir + base[:len(base)-len(ext)] + PreviewSuffix
}

// IsSafe reports whether a logical path stays inside the output root.
func IsSafe(pathname string) bool {
	return pathname != "" && filepath.IsLocal(filepath.FromSlash(pathname))
}

// NewPlan derives every artifact write from the reconstructed assets.
//
// Assets without a logical path are listed in Unroutable and produce nothing.
// An asset with a logical path but no content is a no-op.
// Assets whose logical path would escape the output root are listed in
// Rejected. If two artifacts resolve to the same destination the whole plan
// is refused with PATH_COLLISION.
func NewPlan(assets map[string]*archive.Asset) (*Plan, error) {
	plan := &Plan{}

	ids := make([]string, 0, len(assets))
	for id := range assets {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	owners := make(map[string][]string)
	for _, id := range ids {
		a := assets[id]
		if !a.Routable() {
			plan.Unroutable = append(plan.Unroutable, id)
			continue
		}

		pathname := *a.Pathname
		arts := artifactsFor(a, pathname)
		if len(arts) == 0 {
			continue
		}
		if !IsSafe(pathname) {
			uErr := errors.NewUnsafePath(pathname)
			plan.Rejected = append(plan.Rejected, Failure{
				AssetID: id,
				Kind:    archive.KindPathname,
				Path:    pathname,
				Err:     uErr,
			})
			continue
		}

		for _, art := range arts {
			key := path.Clean(art.Rel)
			owners[key] = append(owners[key], id)
			plan.Artifacts = append(plan.Artifacts, art)
		}
	}

	if err := checkCollisions(owners); err != nil {
		return nil, err
	}

	sort.Slice(plan.Artifacts, func(i, j int) bool {
		return plan.Artifacts[i].Rel < plan.Artifacts[j].Rel
	})
	return plan, nil
}

func artifactsFor(a *archive.Asset, pathname string) []Artifact {
	var arts []Artifact
	if a.HasPayload() {
		arts = append(arts, Artifact{AssetID: a.ID, Kind: archive.KindAsset, Rel: pathname, Data: a.Payload})
	}
	if a.HasMeta() {
		arts = append(arts, Artifact{AssetID: a.ID, Kind: archive.KindMeta, Rel: MetaPath(pathname), Data: []byte(*a.Meta)})
	}
	if a.HasPreview() {
		arts = append(arts, Artifact{AssetID: a.ID, Kind: archive.KindPreview, Rel: PreviewPath(pathname), Data: a.Preview})
	}
	return arts
}

// checkCollisions reports the lexically first destination claimed more than once.
func checkCollisions(owners map[string][]string) error {
	var clashes []string
	for dest, ids := range owners {
		if len(ids) > 1 {
			clashes = append(clashes, dest)
		}
	}
	if len(clashes) == 0 {
		return nil
	}
	sort.Strings(clashes)
	return errors.NewPathCollision(clashes[0], owners[clashes[0]])
}

// Bytes returns the total payload size of the plan.
func (p *Plan) Bytes() int64 {
	var n int64
	for _, art := range p.Artifacts {
		n += int64(len(art.Data))
	}
	return n
}
