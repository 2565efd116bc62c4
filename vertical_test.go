package mtt

import "testing"

func TestPropagateVerticalNoopOnZeroState(t *testing.T) {
	v := &VerticalInfo{}
	v.Reset()
	PropagateVertical(v, 5.0, 20.0, 1.0)
	if !v.IsZero() {
		t.Fatalf("PropagateVertical must leave a zero channel untouched")
	}
}

func TestUpdateVerticalInfoAccumulates(t *testing.T) {
	v := &VerticalInfo{}
	v.Reset()
	UpdateVerticalInfo(v, 1000.0, 1.0)
	UpdateVerticalInfo(v, 1000.0, 1.0)
	if v.P.At(0, 0) != 2.0 {
		t.Fatalf("information should accumulate additively, got %f want 2", v.P.At(0, 0))
	}
}

func TestCheckVerticalPromotion(t *testing.T) {
	v := &VerticalInfo{}
	v.Reset()
	if CheckVerticalPromotion(v, 100, 100) {
		t.Fatalf("a zero (uninitialized) channel must never promote")
	}
	for i := 0; i < 50; i++ {
		UpdateVerticalInfo(v, 1000.0, 1.0)
	}
	if !CheckVerticalPromotion(v, 1.0, 1e6) {
		t.Fatalf("after many confident updates the position variance should drop below threshold")
	}
}
