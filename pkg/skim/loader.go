package skim

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// ─── File formats ───────────────────────────────────────────

// graphFile mirrors the city_graph JSON layout.
type graphFile struct {
	Nodes []struct {
		ID int64 `json:"id"`
	} `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// matrixFile mirrors the skim_matrix JSON layout: an origin→destination
// table of shortest-path lengths in meters, keyed by node id strings.
type matrixFile struct {
	Distances map[string]map[string]float64 `json:"distances"`
}

// LoadGraph reads a city_graph JSON file and builds a graph-backed skim.
func LoadGraph(path string) (*Skim, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("skim: read graph %s: %w", path, err)
	}
	var gf graphFile
	if err := json.Unmarshal(raw, &gf); err != nil {
		return nil, fmt.Errorf("skim: parse graph %s: %w", path, err)
	}
	nodes := make([]int64, 0, len(gf.Nodes))
	for _, n := range gf.Nodes {
		nodes = append(nodes, n.ID)
	}
	return NewGraphSkim(nodes, gf.Edges)
}

// LoadMatrix reads a skim_matrix JSON file and builds a matrix-backed
// skim. Matrix skims answer Distance only; Path returns ErrUnsupportedSkim.
func LoadMatrix(path string) (*Skim, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("skim: read matrix %s: %w", path, err)
	}
	var mf matrixFile
	if err := json.Unmarshal(raw, &mf); err != nil {
		return nil, fmt.Errorf("skim: parse matrix %s: %w", path, err)
	}
	dist := make(map[int64]map[int64]float64, len(mf.Distances))
	for from, row := range mf.Distances {
		u, err := strconv.ParseInt(from, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("skim: matrix node id %q: %w", from, err)
		}
		conv := make(map[int64]float64, len(row))
		for to, d := range row {
			v, err := strconv.ParseInt(to, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("skim: matrix node id %q: %w", to, err)
			}
			conv[v] = d
		}
		dist[u] = conv
	}
	return NewMatrixSkim(dist), nil
}
