package nbi

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

var requestValidator = validator.New()

// FailureStateRequest is the payload of SetLinkFailureState and
// SetNodeFailureState: every listed element is set up or down atomically.
type FailureStateRequest struct {
	IDs []int64 `json:"ids" validate:"required,min=1,dive,gte=0"`
	Up  *bool   `json:"up" validate:"required"`
}

// decodeRequest converts a Struct payload into v and validates it.
func decodeRequest(in *structpb.Struct, v any) error {
	if in == nil {
		return fmt.Errorf("%w: empty payload", ErrInvalidRequest)
	}
	if err := fromStruct(in, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := requestValidator.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// toStruct converts a JSON-tagged value into a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return structpb.NewStruct(fields)
}

// fromStruct is the inverse of toStruct.
func fromStruct(s *structpb.Struct, v any) error {
	data, err := protojson.Marshal(s)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
