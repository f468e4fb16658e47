package resolver

import (
	"context"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/oshokin/bosh-bootstrap/internal/domain/release"
	"github.com/oshokin/bosh-bootstrap/internal/logger"
	"github.com/oshokin/bosh-bootstrap/internal/manifest"
	"github.com/oshokin/bosh-bootstrap/internal/ui"
)

// ReleaseResolver makes one local release available on the guest.
type ReleaseResolver interface {
	Resolve(ctx context.Context, u release.Uploadable) (release.Uploaded, error)
}

// Resolver resolves every local release of a manifest.
type Resolver struct {
	releases  ReleaseResolver
	guestRoot string
	sink      ui.Sink
}

// New creates a Resolver that syncs releases under guestRoot.
func New(releases ReleaseResolver, guestRoot string, sink ui.Sink) *Resolver {
	return &Resolver{
		releases:  releases,
		guestRoot: guestRoot,
		sink:      sink,
	}
}

// Resolve builds and syncs every dir+bosh:// release of text, in manifest
// order, and returns the manifest rewritten to reference the synced copies.
// An empty text means no manifest and is returned as is.
func (r *Resolver) Resolve(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", nil
	}

	doc, err := manifest.Parse(text)
	if err != nil {
		return "", err
	}

	entries := doc.Releases()

	var uploaded []release.Uploaded

	for _, entry := range entries {
		local, ok := entry.Reference().(release.Local)
		if !ok {
			continue
		}

		logger.DebugKV(ctx, "Resolving release", "name", local.Name, "version", local.Version, "dir", local.HostDir)

		up, err := r.releases.Resolve(ctx, release.NewUploadable(local, r.guestRoot))
		if err != nil {
			return "", err
		}

		uploaded = append(uploaded, up)
	}

	if len(uploaded) == 0 {
		return text, nil
	}

	// Entries are matched by name only; with duplicate names the last resolved release wins.
	for _, entry := range entries {
		for _, up := range uploaded {
			if entry.Name() == up.Name {
				entry.Apply(up.Fragment())
			}
		}
	}

	r.sink.Msg(ctx, "Resolved releases:\n%s", summary(uploaded))

	return doc.String()
}

func summary(uploaded []release.Uploaded) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Name", "Version", "URL"})

	for _, up := range uploaded {
		f := up.Fragment()
		tw.AppendRow(table.Row{f.Name, f.Version, f.URL})
	}

	return tw.Render()
}

