package graph

import "testing"

func TestComponents(t *testing.T) {
	set := &NodeSet{}
	for id := int64(1); id <= 7; id++ {
		set.Nodes = append(set.Nodes, Node{ID: id})
	}
	edges := []Edge{
		{FromID: 1, ToID: 2, RelType: RelContains},
		{FromID: 2, ToID: 3, RelType: RelContains},
		{FromID: 4, ToID: 3, RelType: RelCites},
		{FromID: 5, ToID: 6, RelType: RelReferences},
		{FromID: 6, ToID: 99, RelType: RelCites},
	}

	got := Components(set, edges)
	want := ComponentStats{Components: 3, Largest: 4, Isolated: 1}
	if got != want {
		t.Errorf("Components = %+v, want %+v", got, want)
	}
}

func TestComponentsEmpty(t *testing.T) {
	if got := Components(&NodeSet{}, nil); got != (ComponentStats{}) {
		t.Errorf("Components(empty) = %+v", got)
	}
}
