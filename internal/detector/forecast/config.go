package forecast

import (
	"fmt"
	"strings"
)

// Model names accepted by New.
const (
	ModelARIMA       = "arima"
	ModelEWMA        = "ewma"
	ModelHoltWinters = "holtwinters"
	ModelLinear      = "linear"
	ModelMean        = "mean"
)

// ModelConfig selects and parameterizes a forecasting model.
type ModelConfig struct {
	Name          string  `mapstructure:"model"`
	Order         []int   `mapstructure:"model_order"`    // ARIMA (p, d, q)
	MaxIterations int     `mapstructure:"max_iterations"` // ARIMA optimizer budget
	EWMAAlpha     float64 `mapstructure:"ewma_alpha"`

	// Holt-Winters triple exponential smoothing parameters.
	HWAlpha     float64 `mapstructure:"hw_alpha"`      // Level smoothing (0-1)
	HWBeta      float64 `mapstructure:"hw_beta"`       // Trend smoothing (0-1)
	HWGamma     float64 `mapstructure:"hw_gamma"`      // Seasonal smoothing (0-1)
	HWSeasonLen int     `mapstructure:"hw_season_len"` // Points per season
}

// DefaultModelConfig returns ARIMA(2,0,2) with sensible defaults for the
// alternative models.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Name:          ModelARIMA,
		Order:         []int{2, 0, 2},
		MaxIterations: 2000,
		EWMAAlpha:     0.3,
		HWAlpha:       0.3,
		HWBeta:        0.1,
		HWGamma:       0.3,
		HWSeasonLen:   24,
	}
}

// ParseOrder converts a (p, d, q) slice into an Order.
func ParseOrder(order []int) (Order, error) {
	if len(order) != 3 {
		return Order{}, fmt.Errorf("model order must have 3 elements (p, d, q), got %d", len(order))
	}
	o := Order{P: order[0], D: order[1], Q: order[2]}
	if o.P < 0 || o.D < 0 || o.Q < 0 {
		return Order{}, fmt.Errorf("model order must be non-negative, got %v", order)
	}
	return o, nil
}

// New builds the model named by cfg.Name.
func New(cfg ModelConfig) (Model, error) {
	switch strings.ToLower(cfg.Name) {
	case ModelARIMA, "":
		order, err := ParseOrder(cfg.Order)
		if err != nil {
			return nil, err
		}
		return NewARIMA(order, cfg.MaxIterations), nil
	case ModelEWMA:
		return NewEWMA(cfg.EWMAAlpha), nil
	case ModelHoltWinters:
		return NewHoltWinters(cfg.HWAlpha, cfg.HWBeta, cfg.HWGamma, cfg.HWSeasonLen), nil
	case ModelLinear:
		return Linear{}, nil
	case ModelMean:
		return Mean{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, cfg.Name)
	}
}
