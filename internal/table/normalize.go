package table

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Documents written by this system are a map of table number to table. Older
// terminals wrote the floor as a bare array indexed by position. Both shapes
// are normalized here, once, at the persistence boundary; business logic only
// ever sees the keyed map.

// MarshalFloor encodes the canonical keyed-map document.
func MarshalFloor(tables map[int]*Table) ([]byte, error) {
	doc := make(map[string]*Table, len(tables))
	for n, t := range tables {
		doc[strconv.Itoa(n)] = t
	}
	return json.Marshal(doc)
}

// UnmarshalFloor decodes a floor document in either shape into the canonical
// map. Table numbers in array-shaped input are taken from the entries
// themselves, falling back to 1-based position when absent.
func UnmarshalFloor(data []byte) (map[int]*Table, error) {
	if len(data) == 0 {
		return map[int]*Table{}, nil
	}

	var keyed map[string]*Table
	if err := json.Unmarshal(data, &keyed); err == nil {
		out := make(map[int]*Table, len(keyed))
		for key, t := range keyed {
			n, err := strconv.Atoi(key)
			if err != nil {
				return nil, fmt.Errorf("invalid table key %q: %w", key, err)
			}
			t.Number = n
			t.normalizeDrinks()
			out[n] = t
		}
		return out, nil
	}

	var legacy []*Table
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, fmt.Errorf("unrecognized floor document shape: %w", err)
	}
	out := make(map[int]*Table, len(legacy))
	for i, t := range legacy {
		if t == nil {
			continue
		}
		if t.Number == 0 {
			t.Number = i + 1
		}
		t.normalizeDrinks()
		out[t.Number] = t
	}
	return out, nil
}
