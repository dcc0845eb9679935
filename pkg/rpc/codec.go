// Package rpc implements the wire protocol between the orchestrator and its
// task workers: two gRPC services (TaskService, hosted by workers, and
// OrchestratorService, hosted by the orchestrator) carrying four RPC
// methods.
//
// No protoc-generated stubs exist for this protocol; the service
// descriptors below are hand-declared in the same shape protoc-gen-go-grpc
// would emit, and messages are encoded with a small JSON codec registered
// under the gRPC content-subtype "json" instead of protobuf wire format.
package rpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content-subtype this package's messages are carried
// under ("application/grpc+json" on the wire).
const CodecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec implements google.golang.org/grpc/encoding.Codec over
// encoding/json, standing in for the protobuf codec grpc-go uses by
// default.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string { return CodecName }
