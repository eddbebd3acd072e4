package sim

import "math"

// oparRouting is the predictive source-routing protocol of spec.md
// §4.7: the source computes a full path by running Dijkstra over a
// unit-cost neighbor graph filtered by predicted link-lifetime,
// raising the lifetime threshold and re-running until the path
// minimizing hops and worst-case inverse-lifetime converges. Ported
// from original_source/routing/opar/opar.py.
type oparRouting struct {
	hopsWeight, lifetimeWeight float64
}

func newOPARRouting() *oparRouting {
	return &oparRouting{hopsWeight: 1, lifetimeWeight: 10}
}

func (o *oparRouting) Start(n *Node) {}

// linkLifetime returns the predicted time (microseconds) until the
// straight-line distance between a and b, moving at constant velocity,
// exceeds maxRange; Time(math.MaxInt64/2) if it never will.
func linkLifetime(posA, velA, posB, velB Vec3, maxRange float64) Time {
	p := posA.Sub(posB)
	v := velA.Sub(velB)
	a := v.X*v.X + v.Y*v.Y + v.Z*v.Z
	b := 2 * (p.X*v.X + p.Y*v.Y + p.Z*v.Z)
	c := p.X*p.X + p.Y*p.Y + p.Z*p.Z - maxRange*maxRange

	if c > 0 {
		return 0 // already out of range
	}
	if a == 0 {
		return Time(math.MaxInt64 / 2) // stationary relative motion, never separates
	}
	disc := b*b - 4*a*c
	if disc < 0 {
		return Time(math.MaxInt64 / 2)
	}
	t := (-b + math.Sqrt(disc)) / (2 * a)
	if t < 0 {
		return 0
	}
	return Time(t * 1e6) // t is in seconds (m and m/s inputs)
}

// oparEdge is one candidate hop in the filtered graph.
type oparEdge struct {
	to       NodeID
	lifetime Time
}

func (o *oparRouting) buildGraph(n *Node, threshold Time) map[NodeID][]oparEdge {
	cfg := n.sim.Config
	maxRange := MaxRange(cfg.Propagation())
	graph := make(map[NodeID][]oparEdge, len(n.sim.nodes))
	for _, a := range n.sim.nodes {
		for _, b := range n.sim.nodes {
			if a.ID == b.ID {
				continue
			}
			lt := linkLifetime(a.Position, a.Velocity, b.Position, b.Velocity, maxRange)
			if lt > threshold {
				graph[a.ID] = append(graph[a.ID], oparEdge{to: b.ID, lifetime: lt})
			}
		}
	}
	return graph
}

// dijkstraPath finds the shortest unit-cost path from src to dst over
// graph, returning the path (src..dst inclusive) and the minimum
// lifetime along it, or ok=false if unreachable.
func dijkstraPath(graph map[NodeID][]oparEdge, src, dst NodeID, n int) (path []NodeID, minLifetime Time, ok bool) {
	const inf = 1 << 30
	dist := make([]int, n)
	prev := make([]int, n)
	visited := make([]bool, n)
	for i := range dist {
		dist[i] = inf
		prev[i] = -1
	}
	dist[src] = 0

	for iter := 0; iter < n; iter++ {
		u := -1
		best := inf + 1
		for i := 0; i < n; i++ {
			if !visited[i] && dist[i] < best {
				best = dist[i]
				u = i
			}
		}
		if u == -1 {
			break
		}
		visited[u] = true
		for _, e := range graph[NodeID(u)] {
			if dist[u]+1 < dist[e.to] {
				dist[e.to] = dist[u] + 1
				prev[e.to] = u
			}
		}
	}

	if dist[dst] == inf {
		return nil, 0, false
	}

	for v := int(dst); v != -1; v = prev[v] {
		path = append([]NodeID{NodeID(v)}, path...)
		if v == int(src) {
			break
		}
	}

	minLifetime = Time(1 << 60)
	lifetimeOf := make(map[[2]NodeID]Time)
	for from, edges := range graph {
		for _, e := range edges {
			lifetimeOf[[2]NodeID{from, e.to}] = e.lifetime
		}
	}
	for i := 0; i+1 < len(path); i++ {
		lt := lifetimeOf[[2]NodeID{path[i], path[i+1]}]
		if lt < minLifetime {
			minLifetime = lt
		}
	}
	return path, minLifetime, true
}

func (o *oparRouting) computePath(n *Node, dst NodeID) ([]NodeID, bool) {
	var threshold Time
	var bestPath []NodeID
	bestScore := math.Inf(1)

	for iter := 0; iter < 5; iter++ {
		graph := o.buildGraph(n, threshold)
		path, lt, ok := dijkstraPath(graph, n.ID, dst, len(n.sim.nodes))
		if !ok {
			break
		}
		hops := float64(len(path) - 1)
		invLife := 0.0
		if lt > 0 {
			invLife = 1 / float64(lt)
		}
		score := o.hopsWeight*hops + o.lifetimeWeight*invLife
		if score < bestScore {
			bestScore = score
			bestPath = path
		}
		if lt <= threshold {
			break
		}
		threshold = lt
	}
	return bestPath, bestPath != nil
}

func (o *oparRouting) NextHopSelection(n *Node, pkt *Packet) (bool, *Packet, bool) {
	if existing, ok := pkt.Payload.(OPARPayload); ok && len(existing.Path) > 1 {
		// already source-routed by a previous hop: advance along it.
		for i, id := range existing.Path {
			if id == n.ID && i+1 < len(existing.Path) {
				cp := *pkt
				cp.NextHop = existing.Path[i+1]
				return true, &cp, false
			}
		}
		return false, nil, false
	}

	path, ok := o.computePath(n, pkt.Dst)
	if !ok || len(path) < 2 {
		return false, nil, false
	}
	cp := *pkt
	cp.NextHop = path[1]
	cp.Payload = OPARPayload{Path: path}
	return true, &cp, false
}

func (o *oparRouting) PacketReception(n *Node, pkt *Packet, srcID NodeID) func(a *Activity) {
	if p, ok := pkt.Payload.(AckPayload); ok {
		n.ackArrived(p.AckedID)
		return nil
	}
	return func(a *Activity) {
		deliverOrRelay(n, pkt)
		if pkt.Dst == n.ID {
			sendAckNow(a, n, srcID, pkt.ID, 0, 0, true)
		}
	}
}
