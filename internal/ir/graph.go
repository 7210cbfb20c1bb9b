package ir

// NodeData is a primary graph element.
type NodeData struct {
	ID     string   `json:"id"`
	Type   string   `json:"type,omitempty"`
	Combo  string   `json:"combo,omitempty"`
	Style  Object   `json:"style,omitempty"`
	States []string `json:"states,omitempty"`
	Data   Object   `json:"data,omitempty"`
}

// EdgeData connects two nodes (or combos) by ID.
type EdgeData struct {
	ID     string   `json:"id,omitempty"`
	Source string   `json:"source"`
	Target string   `json:"target"`
	Type   string   `json:"type,omitempty"`
	Style  Object   `json:"style,omitempty"`
	States []string `json:"states,omitempty"`
	Data   Object   `json:"data,omitempty"`
}

// ComboData is an optional hierarchical grouping of nodes.
type ComboData struct {
	ID     string   `json:"id"`
	Type   string   `json:"type,omitempty"`
	Combo  string   `json:"combo,omitempty"`
	Style  Object   `json:"style,omitempty"`
	States []string `json:"states,omitempty"`
	Data   Object   `json:"data,omitempty"`
}

// GraphData is the full data set: nodes, edges and combos.
type GraphData struct {
	Nodes  []NodeData  `json:"nodes"`
	Edges  []EdgeData  `json:"edges"`
	Combos []ComboData `json:"combos,omitempty"`
}

// EmptyGraphData returns a data set with non-nil, empty collections.
func EmptyGraphData() GraphData {
	return GraphData{
		Nodes:  []NodeData{},
		Edges:  []EdgeData{},
		Combos: []ComboData{},
	}
}

// EdgeKey returns the edge's ID, or "source-target" when the ID is empty.
func (e EdgeData) EdgeKey() string {
	if e.ID != "" {
		return e.ID
	}
	return e.Source + "-" + e.Target
}

// Counts returns the number of nodes, edges and combos.
func (g GraphData) Counts() (nodes, edges, combos int) {
	return len(g.Nodes), len(g.Edges), len(g.Combos)
}

// Node returns the node with the given ID.
func (g GraphData) Node(id string) (NodeData, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return NodeData{}, false
}

// Clone returns a deep copy. Nil collections come back as empty slices so a
// cloned snapshot always serializes with all three keys.
func (g GraphData) Clone() GraphData {
	out := EmptyGraphData()
	for _, n := range g.Nodes {
		n.Style = n.Style.Clone()
		n.Data = n.Data.Clone()
		n.States = cloneStrings(n.States)
		out.Nodes = append(out.Nodes, n)
	}
	for _, e := range g.Edges {
		e.Style = e.Style.Clone()
		e.Data = e.Data.Clone()
		e.States = cloneStrings(e.States)
		out.Edges = append(out.Edges, e)
	}
	for _, c := range g.Combos {
		c.Style = c.Style.Clone()
		c.Data = c.Data.Clone()
		c.States = cloneStrings(c.States)
		out.Combos = append(out.Combos, c)
	}
	return out
}

// Canonical returns the data set as an Object for canonical marshaling.
func (g GraphData) Canonical() Object {
	nodes := make(Array, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		nodes = append(nodes, elementObject(n.ID, n.Type, n.Combo, n.Style, n.States, n.Data))
	}
	edges := make(Array, 0, len(g.Edges))
	for _, e := range g.Edges {
		obj := elementObject(e.ID, e.Type, "", e.Style, e.States, e.Data)
		obj["source"] = String(e.Source)
		obj["target"] = String(e.Target)
		edges = append(edges, obj)
	}
	combos := make(Array, 0, len(g.Combos))
	for _, c := range g.Combos {
		combos = append(combos, elementObject(c.ID, c.Type, c.Combo, c.Style, c.States, c.Data))
	}
	return Object{
		"nodes":  nodes,
		"edges":  edges,
		"combos": combos,
	}
}

func elementObject(id, typ, combo string, style Object, states []string, data Object) Object {
	obj := Object{}
	if id != "" {
		obj["id"] = String(id)
	}
	if typ != "" {
		obj["type"] = String(typ)
	}
	if combo != "" {
		obj["combo"] = String(combo)
	}
	if style != nil {
		obj["style"] = style
	}
	if len(states) > 0 {
		arr := make(Array, len(states))
		for i, s := range states {
			arr[i] = String(s)
		}
		obj["states"] = arr
	}
	if data != nil {
		obj["data"] = data
	}
	return obj
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
