package filter

import "gonum.org/v1/gonum/stat/distuv"

// upperQuantile returns the smallest k with P(X <= k) >= 1-p for a Poisson
// distribution with mean mu. The distribution is discrete, so the quantile
// is found by scanning the CDF upward from the mean's neighborhood floor.
func upperQuantile(mu, p float64) int {
	if mu <= 0 {
		return 0
	}
	dist := distuv.Poisson{Lambda: mu}
	target := 1 - p
	for k := 0; ; k++ {
		if dist.CDF(float64(k)) >= target {
			return k
		}
	}
}
