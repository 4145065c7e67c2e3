package feature

import (
	"fmt"
	"math"

	"github.com/jsphweid/pianoscribe/audio"
	"github.com/jsphweid/pianoscribe/config"
	"github.com/jsphweid/pianoscribe/constants"
	"github.com/jsphweid/pianoscribe/model"
	"gonum.org/v1/gonum/dsp/fourier"
)

// ExtractionError means the waveform cannot yield a usable feature sequence.
type ExtractionError struct {
	Reason string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("feature extraction: %s", e.Reason)
}

// Extractor computes log-mel spectrogram frames. It is deterministic: the
// same waveform always yields bit-identical features.
type Extractor struct {
	cfg     *config.Root
	window  []float64
	filters [][]float64
	fft     *fourier.FFT
}

func NewExtractor(cfg *config.Root) *Extractor {
	return &Extractor{
		cfg:     cfg,
		window:  hann(constants.FFTSize),
		filters: melFilterBank(constants.NumMels, constants.FFTSize, constants.SampleRate),
		fft:     fourier.NewFFT(constants.FFTSize),
	}
}

// FrameCount is the number of frames Extract produces for a waveform of the
// given sample length.
func FrameCount(numSamples int) int {
	return (numSamples + constants.HopLength - 1) / constants.HopLength
}

// Extract converts a mono waveform at the fixed sample rate into a feature
// sequence of shape [frame][mel band]. Frames are centered on i*hop with
// zero padding past the true signal boundary.
func (e *Extractor) Extract(w model.Waveform) (model.Features, error) {
	if len(w.Samples) == 0 {
		return nil, &ExtractionError{Reason: "empty waveform"}
	}
	if w.SampleRate != constants.SampleRate {
		return nil, &ExtractionError{Reason: fmt.Sprintf("sample rate %d, want %d", w.SampleRate, constants.SampleRate)}
	}
	if len(w.Samples) < constants.FFTSize {
		return nil, &ExtractionError{Reason: fmt.Sprintf("waveform shorter than one analysis frame (%d samples)", len(w.Samples))}
	}
	if audio.RMS(w.Samples) < e.cfg.Audio.NoiseFloor {
		return nil, &ExtractionError{Reason: "waveform below noise floor"}
	}

	numFrames := FrameCount(len(w.Samples))
	feats := make(model.Features, numFrames)

	buf := make([]float64, constants.FFTSize)
	half := constants.FFTSize / 2
	for i := 0; i < numFrames; i++ {
		center := i * constants.HopLength
		for k := 0; k < constants.FFTSize; k++ {
			idx := center - half + k
			if idx >= 0 && idx < len(w.Samples) {
				buf[k] = w.Samples[idx] * e.window[k]
			} else {
				buf[k] = 0
			}
		}
		coeffs := e.fft.Coefficients(nil, buf)

		power := make([]float64, len(coeffs))
		for f := range coeffs {
			power[f] = real(coeffs[f])*real(coeffs[f]) + imag(coeffs[f])*imag(coeffs[f])
		}

		row := make([]float64, constants.NumMels)
		for m, filter := range e.filters {
			var sum float64
			for f, wgt := range filter {
				if wgt != 0 {
					sum += wgt * power[f]
				}
			}
			row[m] = sum
		}
		feats[i] = row
	}

	logCompress(feats)
	standardize(feats)
	return feats, nil
}

// logCompress maps mel power to decibels relative to the sequence maximum,
// floored 80 dB below it.
func logCompress(feats model.Features) {
	maxDB := math.Inf(-1)
	for _, row := range feats {
		for i, v := range row {
			db := 10 * math.Log10(v+1e-10)
			row[i] = db
			if db > maxDB {
				maxDB = db
			}
		}
	}
	for _, row := range feats {
		for i := range row {
			row[i] -= maxDB
			if row[i] < -80 {
				row[i] = -80
			}
		}
	}
}

func standardize(feats model.Features) {
	var sum, count float64
	for _, row := range feats {
		for _, v := range row {
			sum += v
			count++
		}
	}
	mean := sum / count

	var varsum float64
	for _, row := range feats {
		for _, v := range row {
			d := v - mean
			varsum += d * d
		}
	}
	std := math.Sqrt(varsum/count) + 1e-8

	for _, row := range feats {
		for i := range row {
			row[i] = (row[i] - mean) / std
		}
	}
}

func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

// melFilterBank builds numMels triangular filters over the positive-frequency
// FFT bins, spanning 0 Hz to the Nyquist frequency.
func melFilterBank(numMels, fftSize, sampleRate int) [][]float64 {
	numBins := fftSize/2 + 1
	nyquist := float64(sampleRate) / 2

	melLo := hzToMel(0)
	melHi := hzToMel(nyquist)

	// mel-spaced edge frequencies, converted back to fft bin positions
	edges := make([]float64, numMels+2)
	for i := range edges {
		mel := melLo + (melHi-melLo)*float64(i)/float64(numMels+1)
		hz := melToHz(mel)
		edges[i] = hz * float64(fftSize) / float64(sampleRate)
	}

	filters := make([][]float64, numMels)
	for m := 0; m < numMels; m++ {
		filter := make([]float64, numBins)
		lo, center, hi := edges[m], edges[m+1], edges[m+2]
		for f := 0; f < numBins; f++ {
			bin := float64(f)
			switch {
			case bin <= lo || bin >= hi:
				// outside the triangle
			case bin <= center:
				if center > lo {
					filter[f] = (bin - lo) / (center - lo)
				}
			default:
				if hi > center {
					filter[f] = (hi - bin) / (hi - center)
				}
			}
		}
		filters[m] = filter
	}
	return filters
}

func hzToMel(hz float64) float64 {
	return 2595 * math.Log10(1+hz/700)
}

func melToHz(mel float64) float64 {
	return 700 * (math.Pow(10, mel/2595) - 1)
}
