package market

import (
	"VaultCore/internal/event"
	"VaultCore/internal/fuse"
)

// Grants is the per-market substrate allow-list: which assets, sub-markets,
// or packed parameters a market's fuses are permitted to touch.
type Grants struct {
	granted map[uint64]map[fuse.Substrate]bool
	listing map[uint64][]fuse.Substrate
	trail   event.Recorder
}

func NewGrants(trail event.Recorder) *Grants {
	if trail == nil {
		trail = event.NopRecorder{}
	}
	return &Grants{
		granted: make(map[uint64]map[fuse.Substrate]bool),
		listing: make(map[uint64][]fuse.Substrate),
		trail:   trail,
	}
}

// Grant replaces a market's entire allow-list. Every previously recorded
// substrate is revoked first, then exactly the new set is granted, so no
// grant from an earlier configuration can linger after a reconfiguration.
func (g *Grants) Grant(marketID uint64, substrates []fuse.Substrate) {
	for _, s := range g.listing[marketID] {
		delete(g.granted[marketID], s)
	}

	flags := g.granted[marketID]
	if flags == nil {
		flags = make(map[fuse.Substrate]bool, len(substrates))
		g.granted[marketID] = flags
	}

	listing := make([]fuse.Substrate, len(substrates))
	copy(listing, substrates)
	for _, s := range listing {
		flags[s] = true
	}
	g.listing[marketID] = listing

	g.trail.Record(event.SubstratesGranted{Market: marketID, Substrates: listing})
}

// IsGranted reports whether a substrate is on the market's allow-list.
func (g *Grants) IsGranted(marketID uint64, s fuse.Substrate) bool {
	return g.granted[marketID][s]
}

// List returns the market's current allow-list in grant order.
func (g *Grants) List(marketID uint64) []fuse.Substrate {
	out := make([]fuse.Substrate, len(g.listing[marketID]))
	copy(out, g.listing[marketID])
	return out
}
