package com

import (
	"testing"

	"github.com/goccy/go-json"
)

func TestUid(t *testing.T) {
	a, b := NewUid(), NewUid()
	if a == b {
		t.Fatal("ids must be unique")
	}
	if a.IsEmpty() || !NilUid.IsEmpty() {
		t.Fatal("emptiness check is off")
	}
	if short := a.Short(); len(short) != 7 {
		t.Fatalf("unexpected short form %v", short)
	}
}

func TestFrameCarriesWideTypeTags(t *testing.T) {
	// the chat and file tags sit above 255
	for _, tag := range []uint16{101, 203, 301, 304} {
		b, err := json.Marshal(Out{Id: "x", T: tag, Payload: "hi"})
		if err != nil {
			t.Fatalf("marshal #%v: %v", tag, err)
		}
		var in In
		if err = json.Unmarshal(b, &in); err != nil {
			t.Fatalf("unmarshal #%v: %v", tag, err)
		}
		if in.T != tag {
			t.Fatalf("tag %v came back as %v", tag, in.T)
		}
	}
}

func TestMap(t *testing.T) {
	m := NewMap[string, int]()
	if !m.IsEmpty() {
		t.Fatal("fresh map should be empty")
	}
	m.Put("a", 1)
	m.Put("b", 2)
	if m.Len() != 2 || !m.Has("a") {
		t.Fatal("puts were lost")
	}
	if v, err := m.Find("b"); err != nil || v != 2 {
		t.Fatalf("find b: %v %v", v, err)
	}
	m.RemoveByKey("a")
	if _, err := m.Find("a"); err == nil {
		t.Fatal("a should be gone")
	}
}
