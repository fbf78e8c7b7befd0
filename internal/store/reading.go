package store

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Reading is one persisted sensor record: the latest known availability of
// one parking space in one lot.
//
// The identity key is (IDSensor, Lot); the table never holds two rows with
// the same key. Field names match the wire format exactly.
type Reading struct {
	// IDSensor identifies the sensor within a lot.
	IDSensor int `json:"idSensor" gorm:"column:idSensor;not null;uniqueIndex:idx_sensors_id_lot"`

	// Lot is the numeric id of the parking lot.
	Lot int `json:"lot" gorm:"column:lot;not null;uniqueIndex:idx_sensors_id_lot"`

	// Available reports whether the space is free. Always a real boolean;
	// coercion happens at the decode boundary, never in storage.
	Available bool `json:"available" gorm:"column:available;not null"`
}

// TableName customizes the table name.
func (Reading) TableName() string {
	return "sensors"
}

// rawReading is the schema-checking intermediate for decoding. Pointer fields
// distinguish absent keys from zero values; json.Number defers numeric
// conversion so non-integral values can be rejected.
type rawReading struct {
	IDSensor  *json.Number `json:"idSensor"`
	Lot       *json.Number `json:"lot"`
	Available *bool        `json:"available"`
}

// DecodeReadings decodes a request body holding either a single reading
// object or an array of them, applying the same schema check to both paths.
//
// Every element must carry all three fields with the correct primitive
// shape: idSensor and lot must be integral JSON numbers, available must be a
// JSON boolean. Any violation rejects the whole body; there is no lenient
// path for batches.
func DecodeReadings(data []byte) ([]Reading, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty request body")
	}

	if trimmed[0] == '[' {
		var raws []rawReading
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return nil, fmt.Errorf("invalid JSON array: %w", err)
		}
		readings := make([]Reading, 0, len(raws))
		for i, raw := range raws {
			r, err := raw.validate()
			if err != nil {
				return nil, fmt.Errorf("reading %d: %w", i, err)
			}
			readings = append(readings, r)
		}
		return readings, nil
	}

	var raw rawReading
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON object: %w", err)
	}
	r, err := raw.validate()
	if err != nil {
		return nil, err
	}
	return []Reading{r}, nil
}

// validate checks field presence and primitive shape, producing a typed
// Reading or a rejection.
func (raw rawReading) validate() (Reading, error) {
	if raw.IDSensor == nil {
		return Reading{}, fmt.Errorf("missing field %q", "idSensor")
	}
	if raw.Lot == nil {
		return Reading{}, fmt.Errorf("missing field %q", "lot")
	}
	if raw.Available == nil {
		return Reading{}, fmt.Errorf("missing or non-boolean field %q", "available")
	}

	idSensor, err := raw.IDSensor.Int64()
	if err != nil {
		return Reading{}, fmt.Errorf("field %q must be an integer, got %s", "idSensor", raw.IDSensor.String())
	}
	lot, err := raw.Lot.Int64()
	if err != nil {
		return Reading{}, fmt.Errorf("field %q must be an integer, got %s", "lot", raw.Lot.String())
	}

	return Reading{
		IDSensor:  int(idSensor),
		Lot:       int(lot),
		Available: *raw.Available,
	}, nil
}
