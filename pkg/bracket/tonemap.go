package bracket

import (
	"fmt"
	"image"

	"github.com/mdouchement/hdr"
	"github.com/mdouchement/hdr/tmo"
	"github.com/pkg/errors"

	"github.com/abworrall/bracket-hdr/pkg/fattal02"
	"github.com/abworrall/bracket-hdr/pkg/tonemap"
)

var (
	// The first three have explicit parameters in Config; the rest run
	// with their library defaults.
	Tonemappers = []string{"drago", "reinhard", "mantiuk", "fattal02", "drago03", "durand", "icam06", "linear", "reinhard05"}
)

func ListTonemappers() string {
	return fmt.Sprintf("%v", Tonemappers)
}

// expandTonemappers turns "all" into the full list.
func expandTonemappers(names []string) []string {
	for _, name := range names {
		if name == "all" {
			return Tonemappers
		}
	}
	return names
}

// GetTonemapper builds the named operator from the config's parameters.
func (c Config) GetTonemapper(name string) (tonemap.Operator, error) {
	switch name {
	case "all":
		return nil, nil
	case "drago":
		return tonemap.NewDrago(c.Drago), nil
	case "reinhard":
		return tonemap.NewReinhard(c.Reinhard), nil
	case "mantiuk":
		return tonemap.NewMantiuk(c.Mantiuk), nil

	case "fattal02":
		op := fattal02.NewDefaultFattal02()
		op.DumpDir = c.DebugDir
		return op, nil

	case "drago03":
		return tonemap.NewLibrary(name, func(img hdr.Image) tmo.ToneMappingOperator {
			op := tmo.NewDefaultDrago03(img)
			op.Bias = c.Drago.Bias
			return op
		}), nil

	case "durand":
		return tonemap.NewLibrary(name, func(img hdr.Image) tmo.ToneMappingOperator {
			return tmo.NewDefaultDurand(img)
		}), nil

	case "icam06":
		return tonemap.NewLibrary(name, func(img hdr.Image) tmo.ToneMappingOperator {
			op := tmo.NewDefaultICam06(img)
			op.MaxClipping = 0.99999 // Otherwise small bright areas blow out
			return op
		}), nil

	case "linear":
		return tonemap.NewLibrary(name, func(img hdr.Image) tmo.ToneMappingOperator {
			return tmo.NewLinear(img)
		}), nil

	case "reinhard05":
		return tonemap.NewLibrary(name, func(img hdr.Image) tmo.ToneMappingOperator {
			op := tmo.NewDefaultReinhard05(img)
			op.Chromatic = c.Reinhard.ColorAdapt
			op.Light = c.Reinhard.LightAdapt
			return op
		}), nil
	}

	return nil, fmt.Errorf("tonemapper %q not recognized, wanted one of %s", name, ListTonemappers())
}

// Tonemap runs each named operator over the image, in turn.
func Tonemap(cfg Config, img hdr.Image, names []string) (map[string]*image.RGBA, error) {
	out := map[string]*image.RGBA{}
	for _, name := range expandTonemappers(names) {
		op, err := cfg.GetTonemapper(name)
		if err != nil {
			return nil, err
		}

		cfg.Logger.Printf("Tonemapping: %s\n", name)
		ldr, err := op.Tonemap(img)
		if err != nil {
			return nil, errors.Wrapf(err, "tonemap %s", name)
		}
		out[name] = ldr
	}
	return out, nil
}
