package elo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKFactor(t *testing.T) {
	assert.Equal(t, 32.0, KFactor(0))
	assert.Equal(t, 16.0, KFactor(30))
	assert.Equal(t, 10.0, KFactor(100))
	assert.Equal(t, 10.0, KFactor(500))
	assert.Equal(t, 10.0, KFactor(1000))
}

func TestKFactorDecreasesUntilFloor(t *testing.T) {
	prev := KFactor(0)
	for votes := 1; votes <= 100; votes++ {
		k := KFactor(votes)
		if prev > MinK {
			assert.Less(t, k, prev, "votes=%d", votes)
		} else {
			assert.Equal(t, MinK, k, "votes=%d", votes)
		}
		assert.GreaterOrEqual(t, k, MinK)
		assert.LessOrEqual(t, k, BaseK)
		prev = k
	}
}

func TestKFactorClampsNegativeVoteCount(t *testing.T) {
	assert.Equal(t, BaseK, KFactor(-5))
	assert.ErrorIs(t, ValidateVoteCount(-1), ErrNegativeVoteCount)
	assert.NoError(t, ValidateVoteCount(0))
}

func TestExpectedScore(t *testing.T) {
	assert.Equal(t, 0.5, ExpectedScore(1500, 1500))
	assert.Equal(t, 0.5, ExpectedScore(1200, 1200))
	assert.InDelta(t, 0.909, ExpectedScore(1500, 1100), 0.01)
	assert.InDelta(t, 0.091, ExpectedScore(1100, 1500), 0.01)

	favorite := ExpectedScore(1600, 1400)
	underdog := ExpectedScore(1400, 1600)
	assert.Greater(t, favorite, 0.5)
	assert.Less(t, underdog, 0.5)
}

func TestExpectedScoreIsSymmetric(t *testing.T) {
	pairs := [][2]float64{
		{1500, 1300},
		{1500, 1500},
		{0, 2400},
		{-300, 812.5},
		{1999.25, 1000.75},
	}
	for _, p := range pairs {
		sum := ExpectedScore(p[0], p[1]) + ExpectedScore(p[1], p[0])
		assert.InDelta(t, 1.0, sum, 1e-9, "ratings %v", p)
	}
}

func TestUpdateRatings(t *testing.T) {
	t.Run("equal new models", func(t *testing.T) {
		winner, loser := UpdateRatings(1500, 1500, 0, 0)
		assert.Equal(t, 1516, winner)
		assert.Equal(t, 1484, loser)
	})

	t.Run("established models move less", func(t *testing.T) {
		fresh, _ := UpdateRatings(1500, 1500, 0, 0)
		settled, _ := UpdateRatings(1500, 1500, 100, 100)
		assert.Less(t, settled-1500, fresh-1500)
	})

	t.Run("equal K is zero-sum", func(t *testing.T) {
		winner, loser := UpdateRatings(1500, 1500, 50, 50)
		assert.Equal(t, 3000, winner+loser)
	})

	t.Run("upset gains more", func(t *testing.T) {
		upset, _ := UpdateRatings(1300, 1700, 0, 0)
		expected, _ := UpdateRatings(1700, 1300, 0, 0)
		assert.Greater(t, upset-1300, expected-1700)
	})

	t.Run("asymmetric K", func(t *testing.T) {
		winner, loser := UpdateRatings(1500, 1500, 0, 100)
		assert.Greater(t, winner-1500, 1500-loser)
	})

	t.Run("results are whole numbers", func(t *testing.T) {
		winner, loser := UpdateRatings(1537.4, 1423.9, 17, 42)
		assert.Equal(t, float64(winner), math.Trunc(float64(winner)))
		assert.Equal(t, float64(loser), math.Trunc(float64(loser)))
	})
}

func TestUpdateRatingsDirection(t *testing.T) {
	ratings := []float64{800, 1200, 1500, 1750, 2400}
	counts := []int{0, 5, 30, 66, 200}
	for _, w := range ratings {
		for _, l := range ratings {
			for _, c := range counts {
				winner, loser := UpdateRatings(w, l, c, c)
				assert.GreaterOrEqual(t, float64(winner), math.Round(w))
				assert.LessOrEqual(t, float64(loser), math.Round(l))
			}
		}
	}
}

func TestUpdateRatingsAtRatingBounds(t *testing.T) {
	bounds := []float64{-MaxRating, -1, 0, 1500, MaxRating}
	for _, w := range bounds {
		for _, l := range bounds {
			winner, loser := UpdateRatings(w, l, 0, 0)
			assert.GreaterOrEqual(t, float64(winner), w, "winner %v vs %v", w, l)
			assert.LessOrEqual(t, float64(loser), l, "loser %v vs %v", l, w)
		}
	}
}

func TestValidateRating(t *testing.T) {
	for _, r := range []float64{0, 1500, -250.5, MaxRating, -MaxRating} {
		assert.NoError(t, ValidateRating(r), r)
	}
	for _, r := range []float64{1e19, -1e19, MaxRating + 1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		assert.ErrorIs(t, ValidateRating(r), ErrRatingOutOfRange, r)
	}
}

func TestCalculatorApply(t *testing.T) {
	calc := NewCalculator()
	res := calc.Apply(Outcome{
		WinnerRating:    1500,
		LoserRating:     1500,
		WinnerVoteCount: 0,
		LoserVoteCount:  100,
	})

	require.Equal(t, 1516, res.WinnerNewRating)
	require.Equal(t, 1495, res.LoserNewRating)
	assert.Equal(t, 16, res.WinnerDelta)
	assert.Equal(t, -5, res.LoserDelta)
	assert.Equal(t, 32.0, res.WinnerK)
	assert.Equal(t, 10.0, res.LoserK)
	assert.Equal(t, 0.5, res.WinnerExpected)
}
