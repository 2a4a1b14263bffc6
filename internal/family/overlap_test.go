package family

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOverlap_EmptySets(t *testing.T) {
	a := NewPersonSet("JOHN SMITH")
	assert.Equal(t, 0.0, Overlap(a, PersonSet{}, DefaultThreshold))
	assert.Equal(t, 0.0, Overlap(PersonSet{}, a, DefaultThreshold))
	assert.Equal(t, 0.0, Overlap(PersonSet{}, PersonSet{}, DefaultThreshold))
}

func TestOverlap_SubsetIsBidirectional(t *testing.T) {
	a := NewPersonSet("JOHN SMITH", "JANE DOE", "BOB JONES")
	b := NewPersonSet("JOHN SMITH", "JANE DOE")
	assert.InDelta(t, 83.333, Overlap(a, b, DefaultThreshold), 0.01)
}

func TestOverlap_FuzzyMiddleInitial(t *testing.T) {
	a := NewPersonSet("JOHN SMITH", "JANE DOE")
	b := NewPersonSet("JOHN A SMITH", "JANE DOE")
	score := Overlap(a, b, DefaultThreshold)
	assert.GreaterOrEqual(t, score, 50.0)
	assert.Equal(t, 100.0, score)
}

func TestOverlap_Disjoint(t *testing.T) {
	a := NewPersonSet("JOHN SMITH")
	b := NewPersonSet("MARIA GARCIA")
	assert.Equal(t, 0.0, Overlap(a, b, DefaultThreshold))
}

func TestOverlap_Symmetric(t *testing.T) {
	cases := [][2]PersonSet{
		{NewPersonSet("JOHN SMITH", "JANE DOE", "BOB JONES"), NewPersonSet("JOHN SMITH", "JANE DOE")},
		{NewPersonSet("JOHN A SMITH"), NewPersonSet("JOHN SMITH", "JON SMITH", "MARIA GARCIA")},
		{NewPersonSet("A"), NewPersonSet()},
	}
	for _, c := range cases {
		assert.Equal(t, Overlap(c[0], c[1], DefaultThreshold), Overlap(c[1], c[0], DefaultThreshold))
	}
}
