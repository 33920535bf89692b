package grpcpeer

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// codecName is the gRPC content-subtype this codec answers to: requests are
// sent as "application/grpc+json" rather than the default proto wire
// format. Avoiding protobuf entirely means no protoc step is needed for the
// messages in messages.go to change shape.
const codecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec implements encoding.Codec (Marshal/Unmarshal/Name) by delegating
// straight to encoding/json. Registered globally by this package's init, so
// importing grpcpeer anywhere is enough to make the "json" subtype
// available to both grpc.NewServer and grpc.NewClient.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return codecName
}
