// Package shaper implements the profile-driven traffic shaper:
// padding synthesis, emission-delay scheduling, and the inbound padding
// stripper. Grounded on github.com/xtaci/qpp's PRNG style and
// github.com/xtaci/kcptun's per-profile, per-flow state ownership idiom:
// one Shaper per flow, owned by a single goroutine.
package shaper

import (
	"strings"
	"time"
)

// Profile names a declared traffic profile.
type Profile int

const (
	ProfileNone Profile = iota
	ProfileHTTPS
	ProfileVideo
	ProfileVOIP
	ProfileGaming
)

// profileParams holds the per-profile tunables.
type profileParams struct {
	sizeMin, sizeMax     int
	intervalUs           float64
	intervalVarianceUs   float64
	burstProbability     float64 // per-datagram probability of entering BURST in NORMAL
	burstSize            int
	idleProbability      float64
	idleDuration         time.Duration
}

var profiles = map[Profile]profileParams{
	ProfileNone: {
		sizeMin: 0, sizeMax: 0,
		intervalUs: 0, intervalVarianceUs: 0,
		burstProbability: 0, burstSize: 0,
		idleProbability: 0, idleDuration: 0,
	},
	ProfileHTTPS: {
		sizeMin: 200, sizeMax: 1200,
		intervalUs: 5000, intervalVarianceUs: 3000,
		burstProbability: 0.05, burstSize: 6,
		idleProbability: 0.02, idleDuration: 500 * time.Millisecond,
	},
	ProfileVideo: {
		sizeMin: 800, sizeMax: 1400,
		intervalUs: 2000, intervalVarianceUs: 500,
		burstProbability: 0.10, burstSize: 12,
		idleProbability: 0.005, idleDuration: 200 * time.Millisecond,
	},
	ProfileVOIP: {
		sizeMin: 60, sizeMax: 200,
		intervalUs: 20000, intervalVarianceUs: 2000,
		burstProbability: 0.01, burstSize: 3,
		idleProbability: 0.05, idleDuration: 1 * time.Second,
	},
	ProfileGaming: {
		sizeMin: 40, sizeMax: 300,
		intervalUs: 33000, intervalVarianceUs: 10000,
		burstProbability: 0.08, burstSize: 4,
		idleProbability: 0.1, idleDuration: 2 * time.Second,
	},
}

// ParseProfile maps a config-file profile name to its Profile constant.
func ParseProfile(name string) (Profile, bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", "NONE":
		return ProfileNone, true
	case "HTTPS":
		return ProfileHTTPS, true
	case "VIDEO":
		return ProfileVideo, true
	case "VOIP":
		return ProfileVOIP, true
	case "GAMING":
		return ProfileGaming, true
	default:
		return ProfileNone, false
	}
}
