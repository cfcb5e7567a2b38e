package domain

import (
	"github.com/asynkron/protoactor-go/actor"
)

const (
	ACTOR_ID_MASTER = "master"
	ACTOR_ID_NODE   = "node"
	ACTOR_ID_STATUS = "status"
)

type ActorRef actor.PID

type ActorRequestMixIn struct {
	ReplyToRef *ActorRef
}

type ActorRequest interface {
	ReplyTo() *ActorRef
}

func (r ActorRequestMixIn) ReplyTo() *ActorRef {
	return r.ReplyToRef
}

type ActorResponseMixIn struct {
	ResponseError error
}

func (r ActorResponseMixIn) GetResponseError() error {
	return r.ResponseError
}

func (r ActorResponseMixIn) HasResponseError() bool {
	return r.ResponseError != nil
}

type ActorResponse interface {
	GetResponseError() error
	HasResponseError() bool
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}

type GetNodeStatusRequest struct {
	ActorRequestMixIn
}

type GetNodeStatusResponse struct {
	ActorResponseMixIn
	Status NodeStatus
}

// NodeStatus is a point-in-time copy of the node, safe to hand outside the actor.
type NodeStatus struct {
	NodeId      string  `json:"node_id"`
	State       string  `json:"state"`
	MeshType    string  `json:"mesh_type"`
	BatterySoC  float32 `json:"battery_soc"`
	LastVoltage float32 `json:"last_voltage"`
	LoadWatts   float32 `json:"load_watts"`
	Relays      []Relay `json:"relays"`
	Version     string  `json:"version,omitempty"`
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors []GenericSensor
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}
