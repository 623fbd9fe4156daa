package tonemap

import (
	"image"
	"math"

	"github.com/mdouchement/hdr"
)

// Reinhard is the global photographic operator of Reinhard and Devlin
// (2005), with adaptation blended between per pixel and global averages.
type Reinhard struct {
	ReinhardParams
}

func NewReinhard(p ReinhardParams) *Reinhard { return &Reinhard{p} }

func (r *Reinhard) Name() string { return "reinhard" }

func (r *Reinhard) Tonemap(img hdr.Image) (*image.RGBA, error) {
	ch, err := readChannels(r.Name(), img)
	if err != nil {
		return nil, err
	} else if !ch.normalize() {
		return blackImage(ch), nil
	}

	n := float64(len(ch.lum.Values()))
	logMean, logMin, logMax := 0.0, math.Inf(1), math.Inf(-1)
	lumMean := 0.0
	for _, v := range ch.lum.Values() {
		l := math.Log(floorLum(v))
		logMean += l / n
		logMin = math.Min(logMin, l)
		logMax = math.Max(logMax, l)
		lumMean += v / n
	}

	key := 0.0
	if logMax > logMin {
		key = (logMax - logMean) / (logMax - logMin)
	}
	mapKey := 0.3 + 0.7*math.Pow(key, 1.4)
	intensity := math.Exp(-r.Intensity)
	la := clamp01(r.LightAdapt)
	ca := clamp01(r.ColorAdapt)

	for c := range ch.rgb {
		vals := ch.rgb[c].Values()
		chanMean := 0.0
		for _, v := range vals {
			chanMean += v / n
		}
		global := ca*chanMean + (1-ca)*lumMean

		for i, v := range vals {
			adapt := ca*v + (1-ca)*ch.lum.Values()[i]
			adapt = la*adapt + (1-la)*global
			adapt = math.Pow(intensity*adapt, mapKey)
			if adapt+v > 0 {
				vals[i] = v / (adapt + v)
			} else {
				vals[i] = 0
			}
		}
	}

	return ch.finish(r.Gamma, r.Gain), nil
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	} else if v > 1 {
		return 1
	}
	return v
}
