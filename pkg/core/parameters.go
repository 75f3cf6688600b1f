package core

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ParameterTypeKey is the discriminant field carried by every encoded payload.
const ParameterTypeKey = "parameterType"

// Parameters is a typed worker payload. Each job type has exactly one shape.
type Parameters interface {
	JobType() JobType
	Validate() error
}

// PreprocessStep is one normalization step requested for a dataset.
type PreprocessStep struct {
	Type    string         `json:"type"`
	Columns []string       `json:"columns,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

// PreprocessParameters requests normalization of a raw dataset.
type PreprocessParameters struct {
	DataSetID string           `json:"data_set_id"`
	Name      string           `json:"name,omitempty"`
	Steps     []PreprocessStep `json:"steps,omitempty"`
}

func (*PreprocessParameters) JobType() JobType { return TypePreprocess }

func (p *PreprocessParameters) Validate() error {
	if p == nil {
		return nilParameters(TypePreprocess)
	}
	if p.DataSetID == "" {
		return fieldRequired(TypePreprocess, "data_set_id")
	}
	return nil
}

// ModelBuildParameters requests training of a model on a normalized dataset.
type ModelBuildParameters struct {
	DataSetID       string         `json:"data_set_id"`
	ModelName       string         `json:"model_name"`
	Algorithm       string         `json:"algorithm,omitempty"`
	TargetColumn    string         `json:"target_column,omitempty"`
	FeatureColumns  []string       `json:"feature_columns,omitempty"`
	Hyperparameters map[string]any `json:"hyperparameters,omitempty"`
	ValidationSplit float64        `json:"validation_split,omitempty"`
}

func (*ModelBuildParameters) JobType() JobType { return TypeML }

func (p *ModelBuildParameters) Validate() error {
	if p == nil {
		return nilParameters(TypeML)
	}
	if p.DataSetID == "" {
		return fieldRequired(TypeML, "data_set_id")
	}
	if p.ModelName == "" {
		return fieldRequired(TypeML, "model_name")
	}
	return nil
}

// EvaluateParameters requests evaluation of a model, with results bound to a sheet.
type EvaluateParameters struct {
	ModelFileID string   `json:"model_file_id"`
	DataSetID   string   `json:"data_set_id"`
	SheetID     string   `json:"sheet_id,omitempty"`
	Metrics     []string `json:"metrics,omitempty"`
}

func (*EvaluateParameters) JobType() JobType { return TypeResult }

func (p *EvaluateParameters) Validate() error {
	if p == nil {
		return nilParameters(TypeResult)
	}
	if p.ModelFileID == "" {
		return fieldRequired(TypeResult, "model_file_id")
	}
	if p.DataSetID == "" {
		return fieldRequired(TypeResult, "data_set_id")
	}
	return nil
}

// ExportParameters requests export of a stored artifact to an external location.
type ExportParameters struct {
	SourceKind  string `json:"source_kind"`
	SourceID    string `json:"source_id"`
	Format      string `json:"format,omitempty"`
	Destination string `json:"destination"`
}

func (*ExportParameters) JobType() JobType { return TypeExport }

func (p *ExportParameters) Validate() error {
	if p == nil {
		return nilParameters(TypeExport)
	}
	if p.SourceID == "" {
		return fieldRequired(TypeExport, "source_id")
	}
	if p.Destination == "" {
		return fieldRequired(TypeExport, "destination")
	}
	return nil
}

func nilParameters(t JobType) error {
	return fmt.Errorf("%w: nil %s parameters", ErrInvalidParameters, t)
}

func fieldRequired(t JobType, field string) error {
	return fmt.Errorf("%w: %s parameters require %s", ErrInvalidParameters, t, field)
}

// NewParameters returns an empty payload for the given job type.
func NewParameters(t JobType) (Parameters, error) {
	switch t {
	case TypePreprocess:
		return &PreprocessParameters{}, nil
	case TypeML:
		return &ModelBuildParameters{}, nil
	case TypeResult:
		return &EvaluateParameters{}, nil
	case TypeExport:
		return &ExportParameters{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidJobType, t)
}

// EncodeParameters converts a typed payload into its generic JSON object
// form, tagged with parameterType.
func EncodeParameters(p Parameters) (map[string]any, error) {
	if p == nil {
		return nil, errors.New("jobs: nil parameters")
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("jobs: encode parameters: %w", err)
	}
	var out map[string]any
	if err := UnmarshalJSON(raw, &out); err != nil {
		return nil, fmt.Errorf("jobs: encode parameters: %w", err)
	}
	if out == nil {
		return nil, nilParameters(p.JobType())
	}
	out[ParameterTypeKey] = string(p.JobType())
	return out, nil
}

// DecodeParameters converts a tagged JSON object back into its typed payload.
func DecodeParameters(m map[string]any) (Parameters, error) {
	tag, _ := m[ParameterTypeKey].(string)
	t, err := ParseJobType(tag)
	if err != nil {
		return nil, err
	}
	p, err := NewParameters(t)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("jobs: decode parameters: %w", err)
	}
	if err := UnmarshalJSON(raw, p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	return p, nil
}
