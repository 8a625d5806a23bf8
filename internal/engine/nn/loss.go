package nn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// CrossEntropy returns the mean softmax cross-entropy of logits (n x classes)
// against class-index targets.
func CrossEntropy(logits *mat.Dense, targets []int) (float64, error) {
	n, _ := logits.Dims()
	sum, _, err := softmaxCrossEntropy(logits, targets, 0, false)
	if err != nil {
		return 0, err
	}
	return sum / float64(n), nil
}

// softmaxCrossEntropy returns the summed loss over the rows of logits and,
// when withGrad is set, the gradient (softmax - onehot) * scale.
func softmaxCrossEntropy(logits *mat.Dense, targets []int, scale float64, withGrad bool) (float64, *mat.Dense, error) {
	n, classes := logits.Dims()
	if len(targets) != n {
		return 0, nil, fmt.Errorf("%w: %d targets for %d rows", ErrShape, len(targets), n)
	}
	var grad *mat.Dense
	if withGrad {
		grad = mat.NewDense(n, classes, nil)
	}

	var sum float64
	for r, target := range targets {
		if target < 0 || target >= classes {
			return 0, nil, fmt.Errorf("nn: target %d outside [0, %d)", target, classes)
		}
		row := logits.RawRowView(r)
		lse := floats.LogSumExp(row)
		sum += lse - row[target]
		if withGrad {
			g := grad.RawRowView(r)
			for j, v := range row {
				g[j] = math.Exp(v-lse) * scale
			}
			g[target] -= scale
		}
	}
	return sum, grad, nil
}
