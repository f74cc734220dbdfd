package strategy

import (
	"context"

	"github.com/appnet-org/codecbench/internal/fixture"
	"github.com/appnet-org/codecbench/pkg/bench"
	jsoniter "github.com/json-iterator/go"
)

// JSONIter binds the fixture through json-iterator's reflection-based
// codec. The frozen API caches its encoders per type and is shared by all
// callers.
type JSONIter struct {
	base
}

func NewJSONIter() *JSONIter {
	return &JSONIter{base{name: "jsoniter", family: bench.FamilyJSONBinding}}
}

type jsoniterSession struct {
	api jsoniter.API
}

func (j *JSONIter) Setup(bench.SetupOptions) (bench.Session, error) {
	api := jsoniter.Config{
		EscapeHTML:             false,
		SortMapKeys:            true,
		ValidateJsonRawMessage: true,
		DisallowUnknownFields:  true,
	}.Froze()
	return &jsoniterSession{api: api}, nil
}

func (s *jsoniterSession) Encode(u *fixture.User) ([]byte, error) {
	data, err := s.api.Marshal(u)
	if err != nil {
		return nil, encodeErr("jsoniter", err)
	}
	return data, nil
}

func (s *jsoniterSession) Decode(data []byte) (*fixture.User, error) {
	u := &fixture.User{}
	if err := s.api.Unmarshal(data, u); err != nil {
		return nil, decodeErr("jsoniter", err)
	}
	return u, nil
}

func (s *jsoniterSession) Close(context.Context) error {
	return nil
}
