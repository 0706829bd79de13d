// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"fmt"
	"maps"
	"slices"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/newsembed/core"
)

// Metadata value kinds on the wire.
const (
	kindString byte = iota
	kindInt
	kindFloat
	kindBool
)

const float32Size = 4

// MarshalVector serializes an EmbeddingVector to bytes.
//
// Layout: id, value count, values, metadata count, then for each metadata
// key in sorted order the key, a kind byte and the value. Metadata values
// that are not string, integer, float or bool are stored as strings.
func MarshalVector(v core.EmbeddingVector) []byte {
	keys := slices.Sorted(maps.Keys(v.Metadata))

	size := ord.String.Size(v.ID) +
		varint.PositiveInt.Size(len(v.Values)) + len(v.Values)*float32Size +
		varint.PositiveInt.Size(len(keys))
	for _, k := range keys {
		size += ord.String.Size(k) + 1 + valueSize(v.Metadata[k])
	}

	buf := make([]byte, size)
	n := ord.String.Marshal(v.ID, buf)
	n += varint.PositiveInt.Marshal(len(v.Values), buf[n:])
	for _, f := range v.Values {
		n += raw.Float32.Marshal(f, buf[n:])
	}
	n += varint.PositiveInt.Marshal(len(keys), buf[n:])
	for _, k := range keys {
		n += ord.String.Marshal(k, buf[n:])
		n += marshalValue(v.Metadata[k], buf[n:])
	}
	return buf
}

// UnmarshalVector deserializes an EmbeddingVector from bytes.
func UnmarshalVector(data []byte) (core.EmbeddingVector, error) {
	var v core.EmbeddingVector

	id, n, err := ord.String.Unmarshal(data)
	if err != nil {
		return v, fmt.Errorf("%w: id: %v", ErrSerializationFailed, err)
	}
	v.ID = id

	count, m, err := varint.PositiveInt.Unmarshal(data[n:])
	if err != nil {
		return v, fmt.Errorf("%w: value count: %v", ErrSerializationFailed, err)
	}
	n += m
	if count < 0 || count*float32Size > len(data)-n {
		return v, ErrTruncatedData
	}
	v.Values = make([]float32, count)
	for i := range v.Values {
		v.Values[i], m, err = raw.Float32.Unmarshal(data[n:])
		if err != nil {
			return v, fmt.Errorf("%w: value %d: %v", ErrSerializationFailed, i, err)
		}
		n += m
	}

	count, m, err = varint.PositiveInt.Unmarshal(data[n:])
	if err != nil {
		return v, fmt.Errorf("%w: metadata count: %v", ErrSerializationFailed, err)
	}
	n += m
	if count < 0 || count > len(data)-n {
		return v, ErrTruncatedData
	}
	if count > 0 {
		v.Metadata = make(core.Metadata, count)
	}
	for range count {
		key, m, err := ord.String.Unmarshal(data[n:])
		if err != nil {
			return v, fmt.Errorf("%w: metadata key: %v", ErrSerializationFailed, err)
		}
		n += m
		val, m, err := unmarshalValue(data[n:])
		if err != nil {
			return v, fmt.Errorf("metadata %q: %w", key, err)
		}
		n += m
		v.Metadata[key] = val
	}
	return v, nil
}

// scalar reduces a metadata value to one of the four wire kinds.
func scalar(value any) (byte, any) {
	switch val := value.(type) {
	case string:
		return kindString, val
	case int:
		return kindInt, int64(val)
	case int32:
		return kindInt, int64(val)
	case int64:
		return kindInt, val
	case float32:
		return kindFloat, float64(val)
	case float64:
		return kindFloat, val
	case bool:
		return kindBool, val
	default:
		return kindString, fmt.Sprint(val)
	}
}

func valueSize(value any) int {
	kind, val := scalar(value)
	switch kind {
	case kindInt:
		return varint.Int64.Size(val.(int64))
	case kindFloat:
		return raw.Float64.Size(val.(float64))
	case kindBool:
		return ord.Bool.Size(val.(bool))
	default:
		return ord.String.Size(val.(string))
	}
}

func marshalValue(value any, bs []byte) int {
	kind, val := scalar(value)
	bs[0] = kind
	switch kind {
	case kindInt:
		return 1 + varint.Int64.Marshal(val.(int64), bs[1:])
	case kindFloat:
		return 1 + raw.Float64.Marshal(val.(float64), bs[1:])
	case kindBool:
		return 1 + ord.Bool.Marshal(val.(bool), bs[1:])
	default:
		return 1 + ord.String.Marshal(val.(string), bs[1:])
	}
}

func unmarshalValue(bs []byte) (any, int, error) {
	if len(bs) == 0 {
		return nil, 0, ErrTruncatedData
	}

	var (
		val any
		n   int
		err error
	)
	switch bs[0] {
	case kindString:
		val, n, err = ord.String.Unmarshal(bs[1:])
	case kindInt:
		val, n, err = varint.Int64.Unmarshal(bs[1:])
	case kindFloat:
		val, n, err = raw.Float64.Unmarshal(bs[1:])
	case kindBool:
		val, n, err = ord.Bool.Unmarshal(bs[1:])
	default:
		return nil, 0, fmt.Errorf("%w: unknown value kind %d", ErrSerializationFailed, bs[0])
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return val, n + 1, nil
}
