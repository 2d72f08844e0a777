package journal

import "github.com/vmihailenco/msgpack/v5"

func encodeValue(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func decodeValue(buf []byte, v any) error {
	return msgpack.Unmarshal(buf, v)
}
