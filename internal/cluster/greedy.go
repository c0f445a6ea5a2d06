// Package cluster groups embeddings of speakers the voiceprint store could not
// identify. Greedy covers the unknowns of a single session; DBSCAN looks across
// every accumulated unknown sample and only suggests new speakers.
package cluster

import (
	"fmt"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/voiceprint"
)

// Greedy clusters embeddings by comparing every unassigned embedding against
// the seed of the current cluster only. Nil and zero-norm entries are skipped,
// and pairs of different dimensions never join. Clusters with fewer than two
// members are discarded; their seeds stay unclustered.
func Greedy(embeddings [][]float64, threshold float64) [][]int {
	used := make([]bool, len(embeddings))
	for i, e := range embeddings {
		if voiceprint.CheckEmbedding(e) != nil {
			used[i] = true
		}
	}
	var clusters [][]int

	for i, seed := range embeddings {
		if used[i] {
			continue
		}
		members := []int{i}
		used[i] = true

		for j := i + 1; j < len(embeddings); j++ {
			if used[j] {
				continue
			}
			sim, err := voiceprint.CosineSimilarity(seed, embeddings[j])
			if err != nil {
				continue
			}
			if sim >= threshold {
				members = append(members, j)
				used[j] = true
			}
		}

		if len(members) >= 2 {
			clusters = append(clusters, members)
		}
	}
	return clusters
}

// AssignLabels returns a SPEAKER_NN label for each of n unknowns. Members of
// clusters[k] get SPEAKER_k; everything else continues the numbering after the
// last cluster in original order.
func AssignLabels(n int, clusters [][]int) []string {
	labels := make([]string, n)
	for id, members := range clusters {
		for _, idx := range members {
			if idx >= 0 && idx < n {
				labels[idx] = Label(id)
			}
		}
	}
	next := len(clusters)
	for i := range labels {
		if labels[i] == "" {
			labels[i] = Label(next)
			next++
		}
	}
	return labels
}

// Label formats a provisional speaker label.
func Label(n int) string {
	return fmt.Sprintf("SPEAKER_%02d", n)
}
