// Package predictor recommends crops from a soil and climate reading.
package predictor

import (
	"context"
	"errors"
)

var ErrUnknownLabel = errors.New("predictor: unknown crop label")

// Soil is one complete reading, in the units the farmer typed them.
type Soil struct {
	Nitrogen    float64 `json:"N"`
	Phosphorus  float64 `json:"P"`
	Potassium   float64 `json:"K"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	PH          float64 `json:"ph"`
	Rainfall    float64 `json:"rainfall"`
}

// Features is the vector in the order the model was trained on.
func (s Soil) Features() []float64 {
	return []float64{s.Nitrogen, s.Phosphorus, s.Potassium, s.Temperature, s.Humidity, s.PH, s.Rainfall}
}

// Prediction lists recommended crops, best first.
type Prediction struct {
	Crops  []string
	Source string
}

func (p Prediction) Best() string {
	if len(p.Crops) == 0 {
		return ""
	}
	return p.Crops[0]
}

type Predictor interface {
	Predict(ctx context.Context, s Soil) (Prediction, error)
}

// Labels maps the classifier's output classes to crop names.
var Labels = map[int]string{
	1: "rice", 2: "maize", 3: "jute", 4: "cotton", 5: "coconut",
	6: "papaya", 7: "orange", 8: "apple", 9: "muskmelon", 10: "watermelon",
	11: "grapes", 12: "mango", 13: "banana", 14: "pomegranate",
	15: "lentil", 16: "blackgram", 17: "mungbean", 18: "mothbeans",
	19: "pigeonpeas", 20: "kidneybeans", 21: "chickpea", 22: "coffee",
}

// Rules is the offline heuristic used when no model endpoint is configured.
type Rules struct{}

func (Rules) Predict(ctx context.Context, s Soil) (Prediction, error) {
	var crops []string
	switch {
	case s.Nitrogen > 100 && s.Phosphorus > 100 && s.Rainfall > 1000:
		crops = []string{"maize", "tobacco", "cotton"}
	case s.Nitrogen >= 50 && s.Nitrogen <= 100 && s.Rainfall > 800:
		crops = []string{"groundnuts", "soybeans", "sunflower"}
	case s.Nitrogen < 50 && s.Rainfall < 800:
		crops = []string{"sorghum", "millet", "cowpeas"}
	default:
		crops = []string{"maize", "beans", "vegetables"}
	}
	return Prediction{Crops: crops, Source: "rules"}, nil
}
