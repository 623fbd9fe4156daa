package tonemap

import (
	"image"
	"math"
	"sort"

	"github.com/mdouchement/hdr"

	"github.com/abworrall/bracket-hdr/pkg/emath"
)

// Drago is the adaptive logarithmic mapping of Drago et al. (2003):
// luminance is compressed with a log whose base varies between 2 and 10
// depending on how bright the pixel is relative to the scene maximum.
type Drago struct {
	DragoParams
}

func NewDrago(p DragoParams) *Drago { return &Drago{p} }

func (d *Drago) Name() string { return "drago" }

func (d *Drago) Tonemap(img hdr.Image) (*image.RGBA, error) {
	ch, err := readChannels(d.Name(), img)
	if err != nil {
		return nil, err
	} else if !ch.normalize() {
		return blackImage(ch), nil
	}

	bias := d.Bias
	if bias <= 0 || bias >= 1 {
		bias = DefaultDragoParams().Bias
	}

	// Scale luminance by its log-average, so the world adaptation
	// luminance is 1.
	logSum := 0.0
	for _, v := range ch.lum.Values() {
		logSum += math.Log(floorLum(v))
	}
	logMean := math.Exp(logSum / float64(len(ch.lum.Values())))

	lw := ch.lum.NewFromThis()
	for i, v := range ch.lum.Values() {
		lw.Values()[i] = v / logMean
	}
	_, lwMax := lw.MinMax()

	// Over a wide enough range the curve turns down near lwMax, so the
	// mapped values are pooled back into order.
	newLum := ch.lum.NewFromThis()
	monotoneMap(lw.Values(), newLum.Values(), func(v float64) float64 {
		return dragoCurve(v, lwMax, bias)
	})

	ch.mapLuminance(newLum, d.Saturation)
	return ch.finish(d.Gamma, d.Gain), nil
}

// dragoCurve maps a world luminance, already divided by the log-average,
// into display luminance.
func dragoCurve(v, lwMax, bias float64) float64 {
	base := 2.0 + 8.0*math.Pow(emath.Clamp(v/lwMax, 0, 1), math.Log(bias)/math.Log(0.5))
	return math.Log(v+1) / math.Log(base)
}

// monotoneMap writes curve(in[i]) to out[i], then refits the results,
// weighted by how many pixels share each input value, so that out never
// decreases as in increases.
func monotoneMap(in, out []float64, curve func(float64) float64) {
	order := make([]int, len(in))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return in[order[a]] < in[order[b]] })

	vals, counts := []float64{}, []float64{}
	for k, i := range order {
		if k > 0 && in[i] == in[order[k-1]] {
			counts[len(counts)-1]++
			continue
		}
		vals = append(vals, curve(in[i]))
		counts = append(counts, 1)
	}
	fitted := emath.IsotonicIncreasing(vals, counts)

	j := -1
	for k, i := range order {
		if k == 0 || in[i] != in[order[k-1]] {
			j++
		}
		out[i] = fitted[j]
	}
}
