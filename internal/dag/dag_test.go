package dag

import (
	"errors"
	"reflect"
	"testing"
)

// nodeSpec is (id, deps...).
type nodeSpec struct {
	id   string
	deps []string
}

func buildDAG(t *testing.T, specs []nodeSpec) *DAG {
	t.Helper()
	d := New()
	for _, s := range specs {
		if err := d.AddNode(s.id); err != nil {
			t.Fatalf("AddNode(%q): %v", s.id, err)
		}
	}
	for _, s := range specs {
		for _, dep := range s.deps {
			if err := d.AddEdge(s.id, dep); err != nil {
				t.Fatalf("AddEdge(%q, %q): %v", s.id, dep, err)
			}
		}
	}
	return d
}

// validTopologicalOrder checks that every dependency appears before
// its dependent in the ordering.
func validTopologicalOrder(d *DAG, order []string) bool {
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	for id, deps := range d.adjacency {
		for dep := range deps {
			if pos[dep] >= pos[id] {
				return false
			}
		}
	}
	return true
}

func TestNew(t *testing.T) {
	t.Parallel()
	d := New()
	if nodes := d.Nodes(); len(nodes) != 0 {
		t.Errorf("new DAG Nodes() = %v, want empty", nodes)
	}
}

func TestAddNode(t *testing.T) {
	t.Parallel()

	t.Run("basic add", func(t *testing.T) {
		t.Parallel()
		d := New()
		if err := d.AddNode("a"); err != nil {
			t.Fatalf("AddNode: %v", err)
		}
		if got, want := d.Nodes(), []string{"a"}; !reflect.DeepEqual(got, want) {
			t.Errorf("Nodes() = %v, want %v", got, want)
		}
	})

	t.Run("duplicate", func(t *testing.T) {
		t.Parallel()
		d := New()
		_ = d.AddNode("a")
		err := d.AddNode("a")
		if !errors.Is(err, ErrDuplicateNode) {
			t.Errorf("got %v, want ErrDuplicateNode", err)
		}
	})
}

func TestAddEdge(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		from, to string
		want     error
	}{
		{"basic edge", "a", "b", nil},
		{"self edge", "a", "a", ErrSelfEdge},
		{"missing from", "x", "a", ErrNodeNotFound},
		{"missing to", "a", "x", ErrNodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := buildDAG(t, []nodeSpec{{id: "a"}, {id: "b"}})
			err := d.AddEdge(tt.from, tt.to)
			if tt.want == nil && err != nil {
				t.Fatalf("AddEdge: %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestResolve_OrdersDependenciesFirst(t *testing.T) {
	t.Parallel()
	d := buildDAG(t, []nodeSpec{
		{id: "derived", deps: []string{"middle", "other"}},
		{id: "middle", deps: []string{"base"}},
		{id: "base"},
		{id: "other"},
	})
	var order []string
	pending, err := d.Resolve(func(id string) error {
		order = append(order, id)
		return nil
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(pending) != 0 || len(order) != 4 {
		t.Fatalf("order = %v, pending = %v", order, pending)
	}
	if !validTopologicalOrder(d, order) {
		t.Errorf("order %v violates dependencies", order)
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	t.Run("visits dependencies first", func(t *testing.T) {
		t.Parallel()
		d := buildDAG(t, []nodeSpec{
			{id: "c", deps: []string{"b"}},
			{id: "b", deps: []string{"a"}},
			{id: "a"},
		})
		var visited []string
		pending, err := d.Resolve(func(id string) error {
			visited = append(visited, id)
			return nil
		})
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if len(pending) != 0 {
			t.Errorf("pending = %v, want none", pending)
		}
		if want := []string{"a", "b", "c"}; !reflect.DeepEqual(visited, want) {
			t.Errorf("visited = %v, want %v", visited, want)
		}
	})

	t.Run("cycle members and dependents stay pending", func(t *testing.T) {
		t.Parallel()
		d := buildDAG(t, []nodeSpec{
			{id: "a", deps: []string{"b"}},
			{id: "b", deps: []string{"a"}},
			{id: "c", deps: []string{"a"}},
			{id: "free"},
		})
		pending, err := d.Resolve(func(string) error { return nil })
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if want := []string{"a", "b", "c"}; !reflect.DeepEqual(pending, want) {
			t.Errorf("pending = %v, want %v", pending, want)
		}
	})

	t.Run("visit error stops the pass", func(t *testing.T) {
		t.Parallel()
		d := buildDAG(t, []nodeSpec{{id: "a"}, {id: "b", deps: []string{"a"}}})
		boom := errors.New("boom")
		calls := 0
		_, err := d.Resolve(func(string) error {
			calls++
			return boom
		})
		if !errors.Is(err, boom) {
			t.Errorf("got %v, want boom", err)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})
}

func TestAncestors(t *testing.T) {
	t.Parallel()
	d := buildDAG(t, []nodeSpec{
		{id: "d", deps: []string{"c"}},
		{id: "c", deps: []string{"b"}},
		{id: "b", deps: []string{"a"}},
		{id: "a"},
	})

	if got, want := d.Ancestors("d"), []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Ancestors(d) = %v, want %v", got, want)
	}
	if got := d.Ancestors("a"); got != nil {
		t.Errorf("Ancestors(a) = %v, want nil", got)
	}
	if got := d.Ancestors("missing"); got != nil {
		t.Errorf("Ancestors(missing) = %v, want nil", got)
	}
}

func TestAncestors_CycleTerminates(t *testing.T) {
	t.Parallel()
	d := buildDAG(t, []nodeSpec{
		{id: "a", deps: []string{"b"}},
		{id: "b", deps: []string{"a"}},
	})
	if got, want := d.Ancestors("a"), []string{"b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Ancestors(a) = %v, want %v", got, want)
	}
}
