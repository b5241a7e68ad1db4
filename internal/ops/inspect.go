package ops

import (
	"context"
	"sort"
	"strings"

	"github.com/hpungsan/upkg/internal/archive"
	"github.com/hpungsan/upkg/internal/errors"
	"github.com/hpungsan/upkg/internal/inflate"
)

// InspectInput contains parameters for the Inspect operation.
type InspectInput struct {
	Path string
}

// AssetInfo describes one reconstructed asset and where it would be written.
type AssetInfo struct {
	ID           string         `json:"id"`
	Pathname     string         `json:"pathname,omitempty"`
	Kinds        []archive.Kind `json:"kinds"`
	PayloadBytes int64          `json:"payload_bytes"`
	MetaBytes    int64          `json:"meta_bytes"`
	PreviewBytes int64          `json:"preview_bytes"`
	Destinations []string       `json:"destinations,omitempty"`
}

// InspectOutput contains the result of the Inspect operation.
type InspectOutput struct {
	Archive    string            `json:"archive"`
	OutputDir  string            `json:"output_dir"`
	Entries    int               `json:"entries"`
	Assets     []AssetInfo       `json:"assets"`
	Unroutable []string          `json:"unroutable,omitempty"`
	Rejected   []WriteFailure    `json:"rejected,omitempty"`
	Warnings   []archive.Warning `json:"warnings,omitempty"`
	TotalBytes int64             `json:"total_bytes"`
}

// Inspect reads and plans an archive without writing anything.
func Inspect(ctx context.Context, input InspectInput) (*InspectOutput, error) {
	if strings.TrimSpace(input.Path) == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}
	if err := archive.CheckPath(input.Path); err != nil {
		return nil, err
	}

	contents, err := archive.ReadFile(ctx, input.Path)
	if err != nil {
		return nil, err
	}

	plan, err := inflate.NewPlan(contents.Assets)
	if err != nil {
		return nil, err
	}

	dests := make(map[string][]string)
	for _, art := range plan.Artifacts {
		dests[art.AssetID] = append(dests[art.AssetID], art.Rel)
	}

	ids := make([]string, 0, len(contents.Assets))
	for id := range contents.Assets {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	assets := make([]AssetInfo, 0, len(ids))
	for _, id := range ids {
		a := contents.Assets[id]
		info := AssetInfo{
			ID:           id,
			Kinds:        a.Kinds(),
			PayloadBytes: int64(len(a.Payload)),
			PreviewBytes: int64(len(a.Preview)),
			Destinations: dests[id],
		}
		if a.Pathname != nil {
			info.Pathname = *a.Pathname
		}
		if a.Meta != nil {
			info.MetaBytes = int64(len(*a.Meta))
		}
		sort.Strings(info.Destinations)
		assets = append(assets, info)
	}

	return &InspectOutput{
		Archive:    absPath(input.Path),
		OutputDir:  absPath(archive.OutputDir(input.Path)),
		Entries:    contents.Entries,
		Assets:     assets,
		Unroutable: plan.Unroutable,
		Rejected:   toWriteFailures(plan.Rejected),
		Warnings:   contents.Warnings,
		TotalBytes: plan.Bytes(),
	}, nil
}
