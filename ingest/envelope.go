package ingest

import (
	"encoding/json"
	"fmt"
)

// EnvelopeKind tags the accepted webhook payload shapes.
type EnvelopeKind string

const (
	// EnvelopeDatasetPointer is the provider's run-finished event:
	// {"resource": {"defaultDatasetId": "..."}}. The items live in the
	// dataset and must be fetched out-of-band before normalization.
	EnvelopeDatasetPointer EnvelopeKind = "dataset_pointer"
	// EnvelopeArray is a top-level JSON array of items.
	EnvelopeArray EnvelopeKind = "array"
	// EnvelopeWrappedItems is {"items": [...]} .
	EnvelopeWrappedItems EnvelopeKind = "wrapped_items"
	// EnvelopeWrappedData is {"data": [...]} .
	EnvelopeWrappedData EnvelopeKind = "wrapped_data"
)

// Envelope is the resolved payload: either a dataset pointer or the item
// list itself.
type Envelope struct {
	Kind      EnvelopeKind
	DatasetID string
	Items     []map[string]interface{}
}

type datasetPointerPayload struct {
	Resource struct {
		DefaultDatasetID string `json:"defaultDatasetId"`
	} `json:"resource"`
}

type wrappedPayload struct {
	Items []map[string]interface{} `json:"items"`
	Data  []map[string]interface{} `json:"data"`
}

// ResolvePayload detects which of the accepted payload shapes the body is
// and returns the tagged result. All shape detection lives here so callers
// never probe fields ad hoc.
func ResolvePayload(body []byte) (*Envelope, error) {
	// Top-level array first: it is the most common direct-push shape.
	var items []map[string]interface{}
	if err := json.Unmarshal(body, &items); err == nil {
		return &Envelope{Kind: EnvelopeArray, Items: items}, nil
	}

	var pointer datasetPointerPayload
	if err := json.Unmarshal(body, &pointer); err == nil && pointer.Resource.DefaultDatasetID != "" {
		return &Envelope{Kind: EnvelopeDatasetPointer, DatasetID: pointer.Resource.DefaultDatasetID}, nil
	}

	var wrapped wrappedPayload
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("payload is not valid JSON: %w", err)
	}
	if wrapped.Items != nil {
		return &Envelope{Kind: EnvelopeWrappedItems, Items: wrapped.Items}, nil
	}
	if wrapped.Data != nil {
		return &Envelope{Kind: EnvelopeWrappedData, Items: wrapped.Data}, nil
	}

	// Valid JSON object with none of the known markers: treat as an empty
	// item list rather than failing the webhook delivery.
	return &Envelope{Kind: EnvelopeWrappedItems, Items: nil}, nil
}
