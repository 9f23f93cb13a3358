package rtcroom

import (
	"github.com/fxamacker/cbor/v2"

	"orderviz/session"
)

// envelope frames a data packet on the reliable data channel.
type envelope struct {
	Topic   string `cbor:"topic"`
	Payload []byte `cbor:"payload"`
	From    string `cbor:"from,omitempty"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("rtcroom: CBOR encoder initialization failed: " + err.Error())
	}
	// Unknown fields are ignored so the agent can extend the envelope.
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("rtcroom: CBOR decoder initialization failed: " + err.Error())
	}
}

func encodePacket(p session.DataPacket) ([]byte, error) {
	return encMode.Marshal(envelope{Topic: p.Topic, Payload: p.Payload, From: p.From})
}

// decodePacket never fails: a message that is not an envelope is returned
// as a packet without a topic, which no topic filter matches.
func decodePacket(data []byte) session.DataPacket {
	var env envelope
	if err := decMode.Unmarshal(data, &env); err != nil {
		return session.DataPacket{Payload: data}
	}
	return session.DataPacket{Topic: env.Topic, Payload: env.Payload, From: env.From}
}
