// norms.go - Normen und Statistiken ueber Tensor-Daten
//
// Hauptfunktionen:
// - ParseMetrics: Validiert Metrik-Namen
// - Norms: Berechnet die angefragten Metriken
// - Sparsity: Anteil der Werte nahe 0

package engine

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/agnivade/levenshtein"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Metric ist der Name einer Statistik
type Metric string

const (
	MetricL1Norm     Metric = "l1_norm"
	MetricL2Norm     Metric = "l2_norm"
	MetricMatrixNorm Metric = "matrix_norm"
	MetricMin        Metric = "min"
	MetricMax        Metric = "max"
	MetricMedian     Metric = "median"
	MetricStdDev     Metric = "std_dev"
)

// AllMetrics sind alle bekannten Metriken
var AllMetrics = []Metric{
	MetricL1Norm,
	MetricL2Norm,
	MetricMatrixNorm,
	MetricMin,
	MetricMax,
	MetricMedian,
	MetricStdDev,
}

// DefaultMetrics werden berechnet wenn keine angefragt sind
var DefaultMetrics = []Metric{
	MetricL1Norm,
	MetricL2Norm,
	MetricMatrixNorm,
	MetricMin,
	MetricMax,
}

var ErrUnknownMetric = errors.New("unknown metric")

// ParseMetrics validiert names; leere Eingabe ergibt DefaultMetrics
func ParseMetrics(names []string) ([]Metric, error) {
	if len(names) == 0 {
		return DefaultMetrics, nil
	}

	metrics := make([]Metric, 0, len(names))
	for _, name := range names {
		m := Metric(name)
		if !slices.Contains(AllMetrics, m) {
			return nil, fmt.Errorf("%w %q, did you mean %q?", ErrUnknownMetric, name, closestMetric(name))
		}
		if !slices.Contains(metrics, m) {
			metrics = append(metrics, m)
		}
	}
	return metrics, nil
}

func closestMetric(name string) Metric {
	best, dist := AllMetrics[0], math.MaxInt
	for _, m := range AllMetrics {
		if d := levenshtein.ComputeDistance(name, string(m)); d < dist {
			best, dist = m, d
		}
	}
	return best
}

// Norms berechnet metrics fuer t. Metriken, die nicht berechnet werden koennen
// (leerer Tensor, NaN), fehlen im Ergebnis.
func Norms(t *Tensor, metrics ...Metric) map[string]float64 {
	if len(metrics) == 0 {
		metrics = DefaultMetrics
	}

	out := make(map[string]float64, len(metrics))
	if t == nil || len(t.Data) == 0 {
		return out
	}

	for _, m := range metrics {
		var v float64
		switch m {
		case MetricL1Norm:
			v = floats.Norm(t.Data, 1)
		case MetricL2Norm:
			v = floats.Norm(t.Data, 2)
		case MetricMatrixNorm:
			v = mat.Norm(t.Matrix(), 2)
		case MetricMin:
			v = floats.Min(t.Data)
		case MetricMax:
			v = floats.Max(t.Data)
		case MetricMedian:
			v = median(t.Data)
		case MetricStdDev:
			v = stat.PopStdDev(t.Data, nil)
		default:
			continue
		}

		if math.IsNaN(v) {
			continue
		}
		out[string(m)] = v
	}

	return out
}

// median sortiert eine Kopie und mittelt bei gerader Anzahl die beiden mittleren Werte
func median(data []float64) float64 {
	s := slices.Clone(data)
	slices.Sort(s)

	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// Sparsity gibt den Anteil der Werte mit |x| <= eps zurueck
func Sparsity(t *Tensor, eps float64) float64 {
	if t == nil || len(t.Data) == 0 {
		return 0
	}

	var zeros int
	for _, v := range t.Data {
		if math.Abs(v) <= eps {
			zeros++
		}
	}
	return float64(zeros) / float64(len(t.Data))
}
