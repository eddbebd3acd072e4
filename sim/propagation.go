package sim

import "math"

// PropagationParams bundles the radio constants propagation math needs,
// sourced from Config so unit tests can construct them without a full
// Config tree. Grounded on original_source/phy/large_scale_fading.py.
type PropagationParams struct {
	TransmittingPower float64 // watts
	LightSpeed        float64 // m/s
	CarrierFrequency  float64 // Hz
	NoisePower        float64 // watts
	SNRThresholdDB    float64
	PathLossExponent  float64
}

// PathLoss is the free-space, line-of-sight large-scale path loss
// L(d) = (c / (4*pi*f*d))^alpha, with L(0) defined as 1 (co-located
// transmitter and receiver suffer no loss).
func PathLoss(p PropagationParams, d float64) float64 {
	if d <= 0 {
		return 1
	}
	ratio := p.LightSpeed / (4 * math.Pi * p.CarrierFrequency * d)
	return math.Pow(ratio, p.PathLossExponent)
}

// MaxRange is the distance at which a lone transmitter's SINR exactly
// equals SNRThresholdDB against the noise floor alone: the modeled
// communication horizon used by routing protocols for neighbor
// reasoning. The actual reception decision always goes through SINR
// arbitration over the frames actually in flight, not this bound.
func MaxRange(p PropagationParams) float64 {
	thresholdLinear := math.Pow(10, p.SNRThresholdDB/10)
	// thresholdLinear = Ptx * L(d) / N0
	// L(d) = thresholdLinear * N0 / Ptx
	// L(d) = (c/(4*pi*f*d))^alpha  =>  d = c/(4*pi*f) * L(d)^(-1/alpha)
	lTarget := thresholdLinear * p.NoisePower / p.TransmittingPower
	if lTarget <= 0 {
		return 0
	}
	base := p.LightSpeed / (4 * math.Pi * p.CarrierFrequency)
	return base * math.Pow(lTarget, -1/p.PathLossExponent)
}

// sinrDB returns the SINR in dB of transmitter candidate against the
// given set of co-channel interferer distances, all measured from the
// same receiver.
func sinrDB(p PropagationParams, candidateDist float64, interfererDists []float64) float64 {
	signal := p.TransmittingPower * PathLoss(p, candidateDist)
	interference := p.NoisePower
	for _, d := range interfererDists {
		interference += p.TransmittingPower * PathLoss(p, d)
	}
	if interference <= 0 {
		return math.Inf(1)
	}
	return 10 * math.Log10(signal/interference)
}

// frame is one transmitter's completed-but-not-yet-arbitrated
// transmission at a given receiver, as seen by SINR arbitration.
type frame struct {
	txID     NodeID
	start    Time
	end      Time
	distance float64
	pkt      *Packet
}

// arbitrate picks the winning frame among overlapping frames at a
// receiver per spec.md §4.4: for each candidate, every OTHER frame
// whose interval intersects the candidate's interval is treated as an
// interferer. Returns the winner (nil if none exceed the threshold or
// the TTL cap) and whether two or more frames overlapped at all (i.e.
// a collision occurred, independent of whether anything was decoded).
func arbitrate(p PropagationParams, frames []frame, maxTTL int) (*frame, bool) {
	if len(frames) == 0 {
		return nil, false
	}
	overlaps := func(a, b frame) bool {
		return a.start < b.end && b.start < a.end
	}
	collided := false
	var best *frame
	bestSINR := math.Inf(-1)
	for i := range frames {
		cand := frames[i]
		var interferers []float64
		for j := range frames {
			if j == i {
				continue
			}
			if overlaps(cand, frames[j]) {
				interferers = append(interferers, frames[j].distance)
			}
		}
		if len(interferers) > 0 {
			collided = true
		}
		s := sinrDB(p, cand.distance, interferers)
		if s > bestSINR {
			bestSINR = s
			best = &frames[i]
		}
	}
	if best == nil {
		return nil, collided
	}
	if bestSINR <= p.SNRThresholdDB {
		return nil, collided
	}
	if best.pkt.TTL >= maxTTL {
		return nil, collided
	}
	return best, collided
}
