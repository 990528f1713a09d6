package journal

import "github.com/vmihailenco/msgpack/v5"

func encode(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func decode(b []byte, v any) error {
	return msgpack.Unmarshal(b, v)
}
