package optimizer

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/leeforge/instafit/media/fit"
	"github.com/leeforge/instafit/media/processor"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Params are the user-selected render parameters.
type Params struct {
	Format     string   `json:"format"`
	FitMode    fit.Mode `json:"fitMode"`
	Background string   `json:"background"`
}

// Status is a snapshot of the optimizer state.
type Status struct {
	Processing bool                      `json:"processing"`
	Result     *processor.ProcessedImage `json:"result"`
	Error      string                    `json:"error"`
	// ErrorType is the AppError type behind Error, empty when there is no error.
	ErrorType string `json:"errorType,omitempty"`
	Params    Params `json:"params"`
	// Seq is the latest issued run sequence.
	Seq       uint64 `json:"seq"`
	HasSource bool   `json:"hasSource"`
	SourceID  string `json:"sourceId,omitempty"`
}

// MarshalJSON renders a missing result or error as null.
func (s Status) MarshalJSON() ([]byte, error) {
	var errText *string
	if s.Error != "" {
		errText = &s.Error
	}
	return json.Marshal(struct {
		Processing bool                      `json:"processing"`
		Result     *processor.ProcessedImage `json:"result"`
		Error      *string                   `json:"error"`
		ErrorType  string                    `json:"errorType,omitempty"`
		Params     Params                    `json:"params"`
		Seq        uint64                    `json:"seq"`
		HasSource  bool                      `json:"hasSource"`
		SourceID   string                    `json:"sourceId,omitempty"`
	}{
		Processing: s.Processing,
		Result:     s.Result,
		Error:      errText,
		ErrorType:  s.ErrorType,
		Params:     s.Params,
		Seq:        s.Seq,
		HasSource:  s.HasSource,
		SourceID:   s.SourceID,
	})
}
