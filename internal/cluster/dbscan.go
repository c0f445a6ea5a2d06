package cluster

import (
	"fmt"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/voiceprint"
)

// Noise is the DBSCAN label of points that belong to no cluster.
const Noise = -1

// Defaults for cross-session suggestions.
const (
	DefaultEps        = 0.3
	DefaultMinSamples = 2
)

// Suggestion is a group of unknown samples that probably share one speaker.
type Suggestion struct {
	ClusterID int                   `json:"cluster_id"`
	Count     int                   `json:"count"`
	Samples   []types.UnknownSample `json:"samples"`
}

// IDs returns the row identifiers of the suggestion's samples.
func (s Suggestion) IDs() []int64 {
	ids := make([]int64, len(s.Samples))
	for i, sample := range s.Samples {
		ids[i] = sample.ID
	}
	return ids
}

// DBSCAN labels points using cosine distance (1 - cosine similarity). A
// point's neighbourhood includes itself; a point is core when its
// neighbourhood holds at least minSamples points. Clusters are numbered from 0
// in discovery order and noise is labelled Noise. Pairs that cannot be
// compared (zero norm, different dimensions) are never neighbours.
func DBSCAN(points [][]float64, eps float64, minSamples int) ([]int, error) {
	if eps < 0 {
		return nil, fmt.Errorf("eps must not be negative, got %f", eps)
	}
	if minSamples < 1 {
		return nil, fmt.Errorf("min samples must be positive, got %d", minSamples)
	}

	n := len(points)
	neighbours := make([][]int, n)
	for i := 0; i < n; i++ {
		neighbours[i] = append(neighbours[i], i)
		for j := i + 1; j < n; j++ {
			sim, err := voiceprint.CosineSimilarity(points[i], points[j])
			if err != nil {
				continue
			}
			if 1-sim <= eps {
				neighbours[i] = append(neighbours[i], j)
				neighbours[j] = append(neighbours[j], i)
			}
		}
	}

	labels := make([]int, n)
	for i := range labels {
		labels[i] = Noise
	}
	visited := make([]bool, n)
	next := 0

	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		visited[i] = true
		if len(neighbours[i]) < minSamples {
			continue
		}

		id := next
		next++
		labels[i] = id
		queue := append([]int(nil), neighbours[i]...)
		for len(queue) > 0 {
			q := queue[0]
			queue = queue[1:]
			if labels[q] == Noise {
				labels[q] = id
			}
			if visited[q] {
				continue
			}
			visited[q] = true
			if len(neighbours[q]) >= minSamples {
				queue = append(queue, neighbours[q]...)
			}
		}
	}
	return labels, nil
}

// Suggest runs DBSCAN over accumulated unknown samples and returns every
// cluster with at least minSamples members. Samples with an empty or all-zero
// embedding are left out. It never mutates its input.
func Suggest(samples []types.UnknownSample, eps float64, minSamples int) ([]Suggestion, error) {
	usable := make([]types.UnknownSample, 0, len(samples))
	for _, s := range samples {
		if voiceprint.CheckEmbedding(s.Embedding) == nil {
			usable = append(usable, s)
		}
	}
	samples = usable
	if len(samples) < minSamples {
		return nil, nil
	}

	points := make([][]float64, len(samples))
	for i, s := range samples {
		points[i] = s.Embedding
	}
	labels, err := DBSCAN(points, eps, minSamples)
	if err != nil {
		return nil, err
	}

	clusters := 0
	for _, label := range labels {
		if label >= clusters {
			clusters = label + 1
		}
	}
	byCluster := make([][]types.UnknownSample, clusters)
	for i, label := range labels {
		if label != Noise {
			byCluster[label] = append(byCluster[label], samples[i])
		}
	}

	var out []Suggestion
	for id, members := range byCluster {
		if len(members) < minSamples {
			continue
		}
		out = append(out, Suggestion{ClusterID: id, Count: len(members), Samples: members})
	}
	return out, nil
}
