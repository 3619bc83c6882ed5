package keywords

// automaton is an Aho-Corasick matcher over normalized UTF-8 bytes.
// Rule term lists are small, so nodes keep a sparse edge list instead of a
// full 256-way table

type edge struct {
	b    byte
	next int32
}

type node struct {
	edges []edge
	fail  int32
	terms []int32 // term ids ending here, including those inherited via fail
}

type automaton struct {
	nodes []node
}

func newAutomaton() *automaton {
	return &automaton{nodes: make([]node, 1)}
}

func (a *automaton) step(state int32, b byte) int32 {
	for _, e := range a.nodes[state].edges {
		if e.b == b {
			return e.next
		}
	}
	return -1
}

// add inserts pat under id
func (a *automaton) add(pat string, id int32) {
	if pat == "" {
		return
	}
	var state int32
	for i := 0; i < len(pat); i++ {
		nxt := a.step(state, pat[i])
		if nxt < 0 {
			nxt = int32(len(a.nodes))
			a.nodes = append(a.nodes, node{})
			a.nodes[state].edges = append(a.nodes[state].edges, edge{b: pat[i], next: nxt})
		}
		state = nxt
	}
	a.nodes[state].terms = append(a.nodes[state].terms, id)
}

// build computes failure links breadth first
func (a *automaton) build() {
	queue := make([]int32, 0, len(a.nodes))
	for _, e := range a.nodes[0].edges {
		a.nodes[e.next].fail = 0
		queue = append(queue, e.next)
	}
	for qi := 0; qi < len(queue); qi++ {
		r := queue[qi]
		for _, e := range a.nodes[r].edges {
			s := e.next
			queue = append(queue, s)

			f := a.nodes[r].fail
			for f != 0 && a.step(f, e.b) < 0 {
				f = a.nodes[f].fail
			}
			if nxt := a.step(f, e.b); nxt >= 0 && nxt != s {
				a.nodes[s].fail = nxt
			} else {
				a.nodes[s].fail = 0
			}
			a.nodes[s].terms = append(a.nodes[s].terms, a.nodes[a.nodes[s].fail].terms...)
		}
	}
}

// scan calls fn(end, id) for each match; end is exclusive. fn returning false stops the scan
func (a *automaton) scan(text string, fn func(end int, id int32) bool) {
	var state int32
	for i := 0; i < len(text); i++ {
		b := text[i]
		for state != 0 && a.step(state, b) < 0 {
			state = a.nodes[state].fail
		}
		if nxt := a.step(state, b); nxt >= 0 {
			state = nxt
		}
		for _, id := range a.nodes[state].terms {
			if !fn(i+1, id) {
				return
			}
		}
	}
}
