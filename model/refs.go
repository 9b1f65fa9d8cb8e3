// SPDX-License-Identifier: GPL-2.0-or-later

package model

import (
	"strings"

	"github.com/pkg/errors"
)

// RefType is one independent reason an asset stays loaded.
type RefType uint8

const (
	RefServer RefType = iota
	RefClient
	RefClientModule
	RefStaticProp
	RefDetailProp
	RefDynamicServer
	RefDynamicClient
	numRefTypes
)

var refNames = [numRefTypes]string{
	RefServer:        "server",
	RefClient:        "client",
	RefClientModule:  "clientmodule",
	RefStaticProp:    "staticprop",
	RefDetailProp:    "detailprop",
	RefDynamicServer: "dynamic",
	RefDynamicClient: "dynamicclient",
}

func (r RefType) String() string {
	if r < numRefTypes {
		return refNames[r]
	}
	return "invalid"
}

// Dynamic reports whether r is serviced by the background queue.
func (r RefType) Dynamic() bool {
	return r == RefDynamicServer || r == RefDynamicClient
}

// ParseRefType accepts the names printed by RefType.String.
func ParseRefType(s string) (RefType, error) {
	s = strings.ToLower(s)
	for i, n := range refNames {
		if n == s {
			return RefType(i), nil
		}
	}
	return 0, errors.Errorf("unknown reference type %q", s)
}

// RefSet is a set of RefType.
type RefSet uint8

const persistentRefs = RefSet(1<<RefDynamicServer | 1<<RefDynamicClient)

func RefsOf(refs ...RefType) RefSet {
	var s RefSet
	for _, r := range refs {
		s = s.With(r)
	}
	return s
}

func (s RefSet) Has(r RefType) bool {
	return s&(1<<r) != 0
}

func (s RefSet) With(r RefType) RefSet {
	return s | 1<<r
}

func (s RefSet) Without(r RefType) RefSet {
	return s &^ (1 << r)
}

func (s RefSet) Empty() bool {
	return s == 0
}

// Persistent keeps only the references that survive a purge.
func (s RefSet) Persistent() RefSet {
	return s & persistentRefs
}

func (s RefSet) Types() []RefType {
	var ts []RefType
	for r := RefType(0); r < numRefTypes; r++ {
		if s.Has(r) {
			ts = append(ts, r)
		}
	}
	return ts
}

func (s RefSet) String() string {
	ts := s.Types()
	if len(ts) == 0 {
		return "none"
	}
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = t.String()
	}
	return strings.Join(names, "|")
}
