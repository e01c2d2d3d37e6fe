package storage

import (
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// decodeValue parses an Extended JSON value of any kind. Documents decode
// as bson.D so key order is kept; arrays as bson.A.
func decodeValue(raw json.RawMessage) (interface{}, error) {
	wrapped := make([]byte, 0, len(raw)+6)
	wrapped = append(wrapped, `{"v":`...)
	wrapped = append(wrapped, raw...)
	wrapped = append(wrapped, '}')

	var doc bson.D
	if err := bson.UnmarshalExtJSON(wrapped, false, &doc); err != nil {
		return nil, fmt.Errorf("parse extended json: %w", err)
	}
	if len(doc) != 1 {
		return nil, fmt.Errorf("parse extended json: unexpected shape")
	}
	return doc[0].Value, nil
}

// decodeDocument parses an Extended JSON object. Empty input is the empty
// document.
func decodeDocument(raw json.RawMessage) (bson.D, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return bson.D{}, nil
	}
	v, err := decodeValue(raw)
	if err != nil {
		return nil, err
	}
	doc, ok := v.(bson.D)
	if !ok {
		return nil, fmt.Errorf("expected a document, got %s", kindOf(v))
	}
	return doc, nil
}

// decodeArray parses an Extended JSON array.
func decodeArray(raw json.RawMessage) (bson.A, error) {
	v, err := decodeValue(raw)
	if err != nil {
		return nil, err
	}
	arr, ok := v.(bson.A)
	if !ok {
		return nil, fmt.Errorf("expected an array, got %s", kindOf(v))
	}
	return arr, nil
}

// decodeUpdate accepts either an update document or an update pipeline.
func decodeUpdate(raw json.RawMessage) (interface{}, error) {
	v, err := decodeValue(raw)
	if err != nil {
		return nil, err
	}
	switch v.(type) {
	case bson.D, bson.A:
		return v, nil
	default:
		return nil, fmt.Errorf("expected an update document or pipeline, got %s", kindOf(v))
	}
}

// encodeValue renders any BSON value as relaxed Extended JSON.
func encodeValue(v interface{}) (json.RawMessage, error) {
	out, err := bson.MarshalExtJSON(bson.D{{Key: "v", Value: v}}, false, false)
	if err != nil {
		return nil, fmt.Errorf("render extended json: %w", err)
	}
	var w struct {
		V json.RawMessage `json:"v"`
	}
	if err := json.Unmarshal(out, &w); err != nil {
		return nil, fmt.Errorf("render extended json: %w", err)
	}
	return w.V, nil
}

// encodeDocument renders a raw BSON document as relaxed Extended JSON.
func encodeDocument(doc bson.Raw) (json.RawMessage, error) {
	out, err := bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		return nil, fmt.Errorf("render extended json: %w", err)
	}
	return out, nil
}

func kindOf(v interface{}) string {
	switch v.(type) {
	case bson.D:
		return "document"
	case bson.A:
		return "array"
	case string:
		return "string"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}
