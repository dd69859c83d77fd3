package av_test

import (
	"testing"

	"github.com/matryer/is"
	"github.com/tauraamui/dragoneye/pkg/video/av"
)

func TestRescaleBetweenTimeBases(t *testing.T) {
	is := is.New(t)

	mpegts := av.NewRational(1, 90000)
	millis := av.NewRational(1, 1000)

	is.Equal(av.Rescale(0, mpegts, millis), int64(0))
	is.Equal(av.Rescale(90000, mpegts, millis), int64(1000))
	is.Equal(av.Rescale(180000, mpegts, millis), int64(2000))
	is.Equal(av.Rescale(1000, millis, mpegts), int64(90000))
}

func TestRescaleRoundsHalfAwayFromZero(t *testing.T) {
	is := is.New(t)

	from := av.NewRational(1, 90000)
	to := av.NewRational(1, 1000)

	is.Equal(av.Rescale(45, from, to), int64(1))
	is.Equal(av.Rescale(44, from, to), int64(0))
	is.Equal(av.Rescale(-45, from, to), int64(-1))
}

func TestRescaleLeavesUndefinedTimestamps(t *testing.T) {
	is := is.New(t)

	is.Equal(av.Rescale(av.NoPTS, av.NewRational(1, 90000), av.NewRational(1, 1000)), av.NoPTS)
	is.Equal(av.Rescale(10, av.Rational{}, av.NewRational(1, 1000)), int64(10))
}

func TestRationalValidity(t *testing.T) {
	is := is.New(t)

	is.True(av.NewRational(1, 25).Valid())
	is.True(!av.NewRational(0, 1).Valid())
	is.Equal(av.NewRational(30000, 1001).String(), "30000/1001")
	is.Equal(av.NewRational(25, 1).Float64(), float64(25))
}
