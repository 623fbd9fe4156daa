package bracketio

import (
	"bufio"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/tiff"

	"github.com/abworrall/bracket-hdr/pkg/bracket"
)

// TimesFilename is the optional side file that lists exposure times,
// one per line, for the images in its directory in filename order.
const TimesFilename = "exposure.txt"

// A Set is what was found on disk for one scene.
type Set struct {
	Name      string
	Exposures []bracket.Exposure
	EVs       []bracket.ExposureValue // from EXIF, lined up with Exposures
	Config    *bracket.Config         // from a .yaml file, if one was found
	Warnings  []error                 // files that could not be decoded
}

func NewSet(name string) *Set { return &Set{Name: name} }

func (s *Set) String() string {
	str := fmt.Sprintf("set '%s', %d exposure(s)\n", s.Name, len(s.Exposures))
	for i, e := range s.Exposures {
		str += fmt.Sprintf(" -- %s [%s]\n", e, s.EVs[i])
	}
	return str
}

// LoadFilesAndDirs loads images and config from the args, recursing into
// directories.
func (s *Set) LoadFilesAndDirs(args ...string) error {
	for _, arg := range args {
		item, err := os.Stat(arg)

		switch {
		case err != nil:
			return fmt.Errorf("load %s: %v", arg, err)

		case item.IsDir():
			if err := s.loadDir(arg); err != nil {
				return fmt.Errorf("load %s: %v", arg, err)
			}

		default:
			if err := s.loadFile(arg); err != nil {
				return fmt.Errorf("loadfile %s: %v", arg, err)
			}
		}
	}

	return nil
}

func (s *Set) loadDir(dir string) error {
	contents, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("readdir %s: %v", dir, err)
	}

	first := len(s.Exposures)
	for _, content := range contents {
		if err := s.LoadFilesAndDirs(filepath.Join(dir, content.Name())); err != nil {
			return err
		}
	}

	// exposure.txt only covers the images directly in this dir
	timesFile := filepath.Join(dir, TimesFilename)
	if _, err := os.Stat(timesFile); err != nil {
		return nil
	}
	times, err := ReadExposureTimes(timesFile)
	if err != nil {
		return err
	}
	direct := []int{}
	for i := first; i < len(s.Exposures); i++ {
		if filepath.Dir(s.Exposures[i].Name) == filepath.Clean(dir) {
			direct = append(direct, i)
		}
	}
	if len(times) != len(direct) {
		return fmt.Errorf("'%s' has %d time(s) for %d image(s)", timesFile, len(times), len(direct))
	}
	for j, i := range direct {
		s.Exposures[i].Time = times[j]
	}
	return nil
}

func (s *Set) loadFile(filename string) error {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".tif", ".tiff", ".png", ".jpg", ".jpeg":
		e, ev, err := LoadExposure(filename)
		if err != nil {
			// Keep the empty exposure; the registry drops and reports it
			s.Warnings = append(s.Warnings, err)
		}
		s.Exposures = append(s.Exposures, e)
		s.EVs = append(s.EVs, ev)

	case ".yaml":
		cfg, err := bracket.LoadConfig(filename)
		if err != nil {
			return fmt.Errorf("Loading %s as config YAML failed: %v", filename, err)
		}
		s.Config = &cfg
	}

	return nil
}

// LoadExposure decodes one image file. The time comes from EXIF, if the
// file has any; a missing time is left as zero. A file that can't be
// decoded yields an empty (unreadable) exposure and an error.
func LoadExposure(filename string) (bracket.Exposure, bracket.ExposureValue, error) {
	ev, _ := ReadExposureValue(filename)

	img, err := decodeImage(filename)
	if err != nil {
		return bracket.Exposure{Name: filename}, ev, err
	}

	return bracket.NewExposureFromImage(filename, img, ev.Time, bitDepth(img)), ev, nil
}

func decodeImage(filename string) (image.Image, error) {
	reader, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open+r img '%s': %v", filename, err)
	}
	defer reader.Close()

	var img image.Image
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".tif", ".tiff":
		img, err = tiff.Decode(reader)
	default:
		img, _, err = image.Decode(reader)
	}
	if err != nil {
		return nil, fmt.Errorf("image decoding '%s': %v", filename, err)
	}
	return img, nil
}

func bitDepth(img image.Image) int {
	switch img.(type) {
	case *image.RGBA64, *image.NRGBA64, *image.Gray16:
		return 16
	}
	return 8
}

// ReadExposureValue pulls the shutter speed, aperture and ISO out of a
// file's EXIF data. Only the time is required.
func ReadExposureValue(filename string) (bracket.ExposureValue, error) {
	ev := bracket.ExposureValue{}

	reader, err := os.Open(filename)
	if err != nil {
		return ev, fmt.Errorf("open+r exif '%s': %v", filename, err)
	}
	defer reader.Close()

	ex, err := exif.Decode(reader)
	if err != nil {
		return ev, fmt.Errorf("exif parsing '%s': %v", filename, err)
	}

	if tag, err := ex.Get(exif.ExposureTime); err != nil {
		return ev, fmt.Errorf("exif ExposureTime '%s': %v", filename, err)
	} else if num, denom, err := tag.Rat2(0); err != nil {
		return ev, fmt.Errorf("exif ExposureTime '%s': %v", filename, err)
	} else if num <= 0 || denom <= 0 {
		return ev, fmt.Errorf("exif ExposureTime '%s' unusable '%d/%d'", filename, num, denom)
	} else {
		ev.Time = float64(num) / float64(denom)
	}

	// Informational; a bracket only needs the ratio of times
	if tag, err := ex.Get(exif.FNumber); err == nil {
		if num, denom, err := tag.Rat2(0); err == nil && denom > 0 {
			ev.FNumber = float64(num) / float64(denom)
		}
	}
	if tag, err := ex.Get(exif.ISOSpeedRatings); err == nil {
		if val, err := tag.Int64(0); err == nil {
			ev.ISO = val
		}
	}

	return ev, nil
}

// ReadExposureTimes parses an exposure.txt file: one time per line, in
// seconds, either decimal ("0.008") or a fraction ("1/125"). Blank lines
// and lines starting with # are skipped.
func ReadExposureTimes(filename string) ([]float64, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open+r '%s': %v", filename, err)
	}
	defer f.Close()

	times := []float64{}
	scanner := bufio.NewScanner(f)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		t, err := parseTime(line)
		if err != nil {
			return nil, fmt.Errorf("'%s' line %d: %v", filename, n, err)
		}
		times = append(times, t)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read '%s': %v", filename, err)
	}
	return times, nil
}

func parseTime(s string) (float64, error) {
	if num, denom, found := strings.Cut(s, "/"); found {
		n, err1 := strconv.ParseFloat(strings.TrimSpace(num), 64)
		d, err2 := strconv.ParseFloat(strings.TrimSpace(denom), 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 0, fmt.Errorf("bad fraction '%s'", s)
		}
		return n / d, nil
	}
	return strconv.ParseFloat(s, 64)
}
