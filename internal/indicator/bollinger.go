package indicator

import (
	"github.com/guregu/null/v5"

	"ohlcv-pipeline/internal/ringbuf"
)

// Bands is one Bollinger Bands reading.
type Bands struct {
	Middle null.Float
	Upper  null.Float
	Lower  null.Float
	Width  null.Float // (upper - lower) / middle; null when middle is 0
}

// Bollinger computes an SMA ± k sample standard deviations.
type Bollinger struct {
	period int
	k      float64
	win    *ringbuf.Window
}

// NewBollinger creates bands over period closes at k deviations.
func NewBollinger(period int, k float64) *Bollinger {
	return &Bollinger{period: period, k: k, win: ringbuf.New(period)}
}

func (b *Bollinger) Name() string     { return "bb_" + itoa(b.period) }
func (b *Bollinger) Update(v float64) { b.win.Push(v) }
func (b *Bollinger) Ready() bool      { return b.win.Full() }

// Value returns the middle band, satisfying Indicator.
func (b *Bollinger) Value() null.Float { return b.Bands().Middle }

// Bands returns the current reading; all fields are null until ready.
func (b *Bollinger) Bands() Bands {
	if !b.Ready() {
		return Bands{}
	}
	vals := b.win.Newest(b.period)
	mid := Mean(vals)
	sd := SampleStdDev(vals)
	upper := mid + b.k*sd
	lower := mid - b.k*sd

	out := Bands{
		Middle: null.FloatFrom(mid),
		Upper:  null.FloatFrom(upper),
		Lower:  null.FloatFrom(lower),
	}
	out.Width = nullIf(mid != 0, (upper-lower)/mid)
	return out
}

// Reset clears the window.
func (b *Bollinger) Reset() { b.win.Reset() }

// VolumeRatio tracks a volume SMA and today's volume relative to it.
type VolumeRatio struct {
	vma  *SMA
	last float64
}

// NewVolumeRatio creates a volume ratio over a period-day volume average.
func NewVolumeRatio(period int) *VolumeRatio {
	return &VolumeRatio{vma: NewSMA("vma", period)}
}

func (v *VolumeRatio) Name() string { return "volume_ratio" }

func (v *VolumeRatio) Update(volume float64) {
	v.last = volume
	v.vma.Update(volume)
}

func (v *VolumeRatio) Ready() bool { return v.vma.Ready() }

// Average returns the volume moving average (vma_N).
func (v *VolumeRatio) Average() null.Float { return v.vma.Value() }

// Value returns volume / vma, null until ready or when vma is 0.
func (v *VolumeRatio) Value() null.Float {
	avg := v.vma.Value()
	if !avg.Valid || avg.Float64 == 0 {
		return null.Float{}
	}
	return null.FloatFrom(v.last / avg.Float64)
}
