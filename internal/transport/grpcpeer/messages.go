package grpcpeer

// Request and response wire types for the three peer RPCs. These are plain
// structs rather than protoc-generated bindings: the JSON codec registered
// in codec.go marshals them directly, so no .proto compilation step is
// needed to add a field.

type prepareRequest struct {
	ProposalID uint64 `json:"proposal_id"`
	Key        int    `json:"key"`
	Action     uint8  `json:"action"`
}

type prepareResponse struct {
	Granted bool `json:"granted"`
}

type acceptRequest struct {
	ProposalID uint64 `json:"proposal_id"`
	Key        int    `json:"key"`
	Action     uint8  `json:"action"`
}

type acceptResponse struct {
	Granted bool `json:"granted"`
}

type commitRequest struct {
	Key    int   `json:"key"`
	Action uint8 `json:"action"`
}

type commitResponse struct {
	Result string `json:"result"`
}
