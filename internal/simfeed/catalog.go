package simfeed

import (
	"crypto/rand"
	"math/big"
)

// randomFloatDivisor scales crypto/rand integers onto [0, 1).
const randomFloatDivisor = 1000000

// procedure is one catalog entry with a relative frequency weight.
type procedure struct {
	text   string
	weight float64
}

// catalog mirrors a typical overnight mix. A few entries deliberately match
// no classification rule so unknown handling gets exercised too.
var catalog = []procedure{
	{"CT HEAD WO CONTRAST", 20},
	{"CT ABDOMEN PELVIS W CONTRAST", 15},
	{"CT CHEST W CONTRAST", 10},
	{"CTA HEAD AND NECK", 5},
	{"MRI BRAIN W WO CONTRAST", 8},
	{"MRI SPINE LUMBAR WO", 5},
	{"US ABDOMEN COMPLETE", 7},
	{"XR CHEST 1 VIEW", 12},
	{"XR CHEST 2 VIEWS", 8},
	{"XR HAND 3 VIEWS", 6},
	{"FLUORO ESOPHAGRAM", 2},
	{"NM BONE SCAN WHOLE BODY", 2},
}

// patientClasses with relative weights; the feed skews toward ED overnight.
var patientClasses = []procedure{
	{"ED", 55},
	{"Inpatient", 25},
	{"Outpatient", 20},
}

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// randomInt returns a random int in [lo, hi].
func randomInt(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + int(getRandomFloat()*float64(hi-lo+1))
}

// pickWeighted selects an entry by relative weight.
func pickWeighted(entries []procedure) string {
	var total float64
	for _, e := range entries {
		total += e.weight
	}
	r := getRandomFloat() * total
	for _, e := range entries {
		r -= e.weight
		if r <= 0 {
			return e.text
		}
	}
	return entries[len(entries)-1].text
}
