package graph

import (
	"slices"
	"testing"
)

func TestNeighborhood(t *testing.T) {
	edges := []Edge{
		{FromID: 1, ToID: 2, RelType: RelContains},
		{FromID: 2, ToID: 3, RelType: RelContains},
		{FromID: 3, ToID: 4, RelType: RelCites},
		{FromID: 5, ToID: 3, RelType: RelReferences},
	}

	tests := []struct {
		name  string
		seeds []int64
		depth int
		rels  []RelType
		want  []int64
	}{
		{"depth zero", []int64{3}, 0, nil, []int64{3}},
		{"one hop both directions", []int64{3}, 1, nil, []int64{2, 3, 4, 5}},
		{"two hops", []int64{1}, 2, nil, []int64{1, 2, 3}},
		{"filtered", []int64{3}, 5, []RelType{RelContains}, []int64{1, 2, 3}},
		{"no seeds", nil, 3, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Neighborhood(edges, tt.seeds, tt.depth, tt.rels...)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Neighborhood = %v, want %v", got, tt.want)
			}
		})
	}
}
