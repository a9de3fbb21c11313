package comps

import (
	"sort"

	"quant_valuation/pkg/core/features"
)

// Peer is one comparable company ranked by similarity to the target.
type Peer struct {
	Ticker     string  `json:"ticker"`
	Similarity float64 `json:"similarity"`
	Distance   float64 `json:"distance"`
}

// PeerSet holds a target's comparables, most similar first.
type PeerSet struct {
	Target string `json:"target"`
	Peers  []Peer `json:"peers"`
}

// Tickers returns the peer tickers in ranked order.
func (p *PeerSet) Tickers() []string {
	out := make([]string, len(p.Peers))
	for i, peer := range p.Peers {
		out[i] = peer.Ticker
	}
	return out
}

// PeersFor ranks the target's cluster mates by similarity and caps the
// list at maxPeers. Similarity is 1/(1 + d/dmax) with d the Euclidean
// distance from the target's scaled vector and dmax the largest
// candidate distance, so ranking by similarity equals ranking by
// proximity. Outliers are never candidates; a target that is itself an
// outlier, alone in its cluster, or absent from the assignment yields
// *NoComparablesError.
func PeersFor(target string, asg *Assignment, vectors map[string]*features.Vector, maxPeers int) (*PeerSet, error) {
	label, ok := asg.Labels[target]
	if !ok {
		return nil, &NoComparablesError{Ticker: target, Reason: "not in clustered universe"}
	}
	if label == OutlierLabel {
		return nil, &NoComparablesError{Ticker: target, Reason: "labeled outlier"}
	}
	tv, ok := vectors[target]
	if !ok {
		return nil, &NoComparablesError{Ticker: target, Reason: "no feature vector"}
	}

	type candidate struct {
		ticker string
		dist   float64
	}
	var candidates []candidate
	for ticker, l := range asg.Labels {
		if ticker == target || l != label {
			continue
		}
		v, ok := vectors[ticker]
		if !ok {
			continue
		}
		candidates = append(candidates, candidate{ticker, euclidean(tv.Values[:], v.Values[:])})
	}
	if len(candidates) == 0 {
		return nil, &NoComparablesError{Ticker: target, Reason: "singleton cluster"}
	}

	var dmax float64
	for _, c := range candidates {
		if c.dist > dmax {
			dmax = c.dist
		}
	}

	peers := make([]Peer, len(candidates))
	for i, c := range candidates {
		sim := 1.0
		if dmax > 0 {
			sim = 1.0 / (1.0 + c.dist/dmax)
		}
		peers[i] = Peer{Ticker: c.ticker, Similarity: sim, Distance: c.dist}
	}
	sort.Slice(peers, func(i, j int) bool {
		if peers[i].Similarity != peers[j].Similarity {
			return peers[i].Similarity > peers[j].Similarity
		}
		return peers[i].Ticker < peers[j].Ticker
	})

	if maxPeers > 0 && len(peers) > maxPeers {
		peers = peers[:maxPeers]
	}
	return &PeerSet{Target: target, Peers: peers}, nil
}
