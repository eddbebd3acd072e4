package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestKindStringCoversEveryConstant(t *testing.T) {
	kinds := []Kind{KindData, KindAck, KindHello, KindGrad, KindChirp,
		KindDSDVAdvert, KindDSDVWithdraw, KindOPAR, KindQRoutingAckExtra,
		KindQGeo, KindQldvAdvert, KindQldvError}
	for _, k := range kinds {
		assert.NotEqual(t, "unknown", k.String(), "Kind %d missing a String() case", k)
	}
	assert.Equal(t, "unknown", Kind(999).String())
}

func TestIDAllocatorSeedsEachKindAtItsBase(t *testing.T) {
	a := NewIDAllocator()
	assert.Equal(t, idBaseData, a.Next(KindData))
	assert.Equal(t, idBaseHello, a.Next(KindHello))
	assert.Equal(t, idBaseAck, a.Next(KindAck))
}

func TestIDAllocatorMonotonicWithinAKind(t *testing.T) {
	a := NewIDAllocator()
	first := a.Next(KindData)
	second := a.Next(KindData)
	third := a.Next(KindData)
	assert.Equal(t, first+1, second)
	assert.Equal(t, second+1, third)
}

func TestIDAllocatorRangesNeverCollideAcrossKinds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		kinds := []Kind{KindData, KindHello, KindAck, KindGrad, KindChirp,
			KindDSDVAdvert, KindDSDVWithdraw, KindOPAR, KindQRoutingAckExtra,
			KindQGeo, KindQldvAdvert, KindQldvError}
		draws := rapid.IntRange(1, 20).Draw(t, "draws")

		a := NewIDAllocator()
		seen := make(map[PacketID]Kind)
		for i := 0; i < draws; i++ {
			for _, k := range kinds {
				id := a.Next(k)
				if existing, ok := seen[id]; ok {
					t.Fatalf("id %d issued for both %v and %v", id, existing, k)
				}
				seen[id] = k
			}
		}
	})
}

func TestIdBaseForUnknownKindFallsBackToData(t *testing.T) {
	assert.Equal(t, idBaseData, idBaseFor(Kind(999)))
}

func TestPayloadKindMatchesItsOwnKindConstant(t *testing.T) {
	var p Payload

	p = DataPayload{}
	assert.Equal(t, KindData, p.payloadKind())
	p = AckPayload{}
	assert.Equal(t, KindAck, p.payloadKind())
	p = HelloPayload{}
	assert.Equal(t, KindHello, p.payloadKind())
	p = GradPayload{}
	assert.Equal(t, KindGrad, p.payloadKind())
	p = ChirpPayload{}
	assert.Equal(t, KindChirp, p.payloadKind())
	p = DSDVAdvertPayload{}
	assert.Equal(t, KindDSDVAdvert, p.payloadKind())
	p = DSDVWithdrawPayload{}
	assert.Equal(t, KindDSDVWithdraw, p.payloadKind())
	p = OPARPayload{}
	assert.Equal(t, KindOPAR, p.payloadKind())
	p = QGeoPayload{}
	assert.Equal(t, KindQGeo, p.payloadKind())
	p = QldvAdvertPayload{}
	assert.Equal(t, KindQldvAdvert, p.payloadKind())
	p = QldvErrorPayload{}
	assert.Equal(t, KindQldvError, p.payloadKind())
}
