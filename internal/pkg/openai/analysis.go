package openai

import "mops/internal/pkg/financial"

// TrendMetrics summarizes the ROE series alongside the model output.
type TrendMetrics struct {
	Latest    float64 `json:"latest"`
	Earliest  float64 `json:"earliest"`
	Delta     float64 `json:"delta"`
	Direction string  `json:"direction"` // up, down, flat
	Periods   int     `json:"periods"`
}

func analyzeROETrend(roe *financial.CompanyMetric) *TrendMetrics {
	if roe == nil || len(roe.Data) == 0 {
		return nil
	}

	earliest := roe.Data[0].Value
	latest := roe.Data[len(roe.Data)-1].Value

	trend := &TrendMetrics{
		Latest:   latest,
		Earliest: earliest,
		Delta:    latest - earliest,
		Periods:  len(roe.Data),
	}

	switch {
	case trend.Delta > 0.5:
		trend.Direction = "up"
	case trend.Delta < -0.5:
		trend.Direction = "down"
	default:
		trend.Direction = "flat"
	}

	return trend
}
