package surrogate

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// GaussianProcess is a zero-mean GP regressor with a Matern-5/2 kernel,
// solved by Cholesky factorization. sklearn's GaussianProcessRegressor (the
// Python original's backing implementation) additionally restarts its
// marginal-likelihood optimizer n_restarts_optimizer=10 times to tune kernel
// hyperparameters; this port fixes the length scale and signal variance
// instead of optimizing them, which is acceptable for the small, frequently
// retrained surrogates this engine trains per iteration.
type GaussianProcess struct {
	lengthScale float64
	signalVar   float64
	noiseVar    float64

	X         [][]float64
	alpha     *mat.VecDense
	lowerChol *mat.Cholesky
	isTrained bool
}

// GPOption configures a GaussianProcess at construction.
type GPOption func(*GaussianProcess)

// WithLengthScale overrides the default length scale of 1.0.
func WithLengthScale(l float64) GPOption {
	return func(g *GaussianProcess) { g.lengthScale = l }
}

// NewGaussianProcess builds an untrained GP, defaulting to length scale 1.0,
// signal variance 1.0, and observation noise 1e-10 — the Python original's
// `alpha` parameter.
func NewGaussianProcess(opts ...GPOption) *GaussianProcess {
	g := &GaussianProcess{
		lengthScale: 1.0,
		signalVar:   1.0,
		noiseVar:    1e-10,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// matern52 evaluates the Matern kernel with smoothness 5/2 between two
// points, matching sklearn.gaussian_process.kernels.Matern(nu=2.5).
func (g *GaussianProcess) matern52(a, b []float64) float64 {
	d := euclidean(a, b) / g.lengthScale
	sqrt5 := math.Sqrt(5)
	return g.signalVar * (1 + sqrt5*d + 5*d*d/3) * math.Exp(-sqrt5*d)
}

func euclidean(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

func (g *GaussianProcess) Train(X [][]float64, y []float64) error {
	n := len(X)
	if n == 0 {
		return fmt.Errorf("surrogate: cannot train a Gaussian process on an empty sample")
	}

	K := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := g.matern52(X[i], X[j])
			if i == j {
				v += g.noiseVar
			}
			K.SetSym(i, j, v)
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(K); !ok {
		// Fall back to a more heavily regularized kernel matrix; an
		// ill-conditioned Gram matrix is common with near-duplicate
		// configurations early in a run.
		for i := 0; i < n; i++ {
			K.SetSym(i, i, K.At(i, i)+1e-6)
		}
		if ok := chol.Factorize(K); !ok {
			return fmt.Errorf("surrogate: Gaussian process kernel matrix is not positive definite")
		}
	}

	yVec := mat.NewVecDense(n, y)
	var alpha mat.VecDense
	if err := chol.SolveVecTo(&alpha, yVec); err != nil {
		return fmt.Errorf("surrogate: failed to solve Gaussian process normal equations: %w", err)
	}

	g.X = X
	g.alpha = &alpha
	g.lowerChol = &chol
	g.isTrained = true
	return nil
}

func (g *GaussianProcess) Predict(X [][]float64) (mean, variance []float64, err error) {
	if !g.isTrained {
		return nil, nil, fmt.Errorf("surrogate: Gaussian process must be trained before prediction")
	}

	n := len(g.X)
	mean = make([]float64, len(X))
	variance = make([]float64, len(X))

	for i, x := range X {
		kStar := mat.NewVecDense(n, nil)
		for j := 0; j < n; j++ {
			kStar.SetVec(j, g.matern52(x, g.X[j]))
		}

		mean[i] = mat.Dot(kStar, g.alpha)

		var v mat.VecDense
		if err := g.lowerChol.SolveVecTo(&v, kStar); err != nil {
			return nil, nil, fmt.Errorf("surrogate: failed to solve Gaussian process predictive variance: %w", err)
		}
		predVar := g.signalVar - mat.Dot(kStar, &v)
		if predVar < 1e-10 {
			predVar = 1e-10
		}
		variance[i] = predVar
	}
	return mean, variance, nil
}
