package models

import "linfer.allora.network/internal/inference"

// InferenceModel is the envelope entry for one evaluation. Value is kept as
// the same string the single-line output carries so clients compare them
// byte for byte.
type InferenceModel struct {
	Topic        string  `json:"topic"`
	Value        string  `json:"value"`
	Timestamp    int64   `json:"timestamp"`
	Deviation    float64 `json:"deviation"`
	MaxDeviation int64   `json:"maxDeviation"`
}

// NewInferenceModel converts an inference for the envelope.
func NewInferenceModel(inf inference.Inference, maxDeviation int64) InferenceModel {
	return InferenceModel{
		Topic:        inf.Topic,
		Value:        inference.FormatValue(inf.Value),
		Timestamp:    inf.Timestamp,
		Deviation:    inf.Deviation,
		MaxDeviation: maxDeviation,
	}
}
