package wire

import "gopkg.in/yaml.v3"

// Encode marshals an Envelope to its one-datagram YAML representation.
func Encode(e Envelope) ([]byte, error) {
	return yaml.Marshal(e)
}

// Decode unmarshals one datagram into an Envelope.
func Decode(data []byte) (Envelope, error) {
	var e Envelope
	err := yaml.Unmarshal(data, &e)
	return e, err
}
