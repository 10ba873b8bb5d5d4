package com

import "github.com/rs/xid"

// Uid is a string-typed id. The string form keeps the wire format
// open: browser clients mint their own packet ids.
type Uid string

const NilUid = Uid("")

func NewUid() Uid { return Uid(xid.New().String()) }

func (u Uid) IsEmpty() bool  { return u == NilUid }
func (u Uid) String() string { return string(u) }

func (u Uid) Short() string {
	if len(u) < 7 {
		return string(u)
	}
	return string(u[:3]) + "." + string(u[len(u)-3:])
}
