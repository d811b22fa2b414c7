// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"encoding/json"
	"testing"

	"github.com/AleutianAI/AleutianCatalog/services/catalog/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemID_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ItemID
		wantErr bool
	}{
		{"integer", `42`, 42, false},
		{"numeric string", `"42"`, 42, false},
		{"padded string", `" 7 "`, 7, false},
		{"integral float", `5.0`, 5, false},
		{"exponent", `1e3`, 1000, false},
		{"negative", `-3`, -3, false},
		{"null", `null`, 0, false},
		{"fraction", `1.5`, 0, true},
		{"word", `"abc"`, 0, true},
		{"empty string", `""`, 0, true},
		{"bool", `true`, 0, true},
		{"object", `{}`, 0, true},
		{"array", `[1]`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id ItemID
			err := json.Unmarshal([]byte(tt.input), &id)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidItemID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestItemIDRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid number", `{"id": 10}`, false},
		{"valid string", `{"id": "10"}`, false},
		{"missing", `{}`, true},
		{"zero", `{"id": 0}`, true},
		{"negative", `{"id": -1}`, true},
		{"null", `{"id": null}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req ItemIDRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))
			err := req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestReorderRequest_Validate(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		decodeErr bool
		wantErr   bool
	}{
		{"numbers", `{"newOrder": [3, 1]}`, false, false},
		{"mixed strings", `{"newOrder": ["3", 1]}`, false, false},
		{"empty array", `{"newOrder": []}`, false, false},
		{"missing", `{}`, false, true},
		{"null", `{"newOrder": null}`, false, true},
		{"non-positive element", `{"newOrder": [1, 0]}`, false, true},
		{"not an array", `{"newOrder": "1,2"}`, true, false},
		{"bad element", `{"newOrder": [1, "x"]}`, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req ReorderRequest
			err := json.Unmarshal([]byte(tt.body), &req)
			if tt.decodeErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			err = req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestReorderRequest_TooLong(t *testing.T) {
	req := ReorderRequest{NewOrder: make([]ItemID, MaxReorderLength+1)}
	for i := range req.NewOrder {
		req.NewOrder[i] = ItemID(i + 1)
	}
	assert.Error(t, req.Validate())

	req.NewOrder = req.NewOrder[:MaxReorderLength]
	assert.NoError(t, req.Validate())
}

func TestReorderRequest_IDsKeepsRepeats(t *testing.T) {
	req := ReorderRequest{NewOrder: []ItemID{3, 1, 3}}
	assert.Equal(t, []int64{3, 1, 3}, req.IDs())
}

func TestListQuery_Validate(t *testing.T) {
	tests := []struct {
		name    string
		query   ListQuery
		wantErr bool
	}{
		{"defaults", ListQuery{Limit: DefaultPageLimit}, false},
		{"zero limit", ListQuery{}, false},
		{"max limit", ListQuery{Limit: MaxPageLimit}, false},
		{"over max", ListQuery{Limit: MaxPageLimit + 1}, true},
		{"negative offset", ListQuery{Offset: -1, Limit: 20}, true},
		{"negative limit", ListQuery{Limit: -5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFlushRequest_Validate(t *testing.T) {
	assert.NoError(t, (&FlushRequest{Cycle: FlushCycleSelection}).Validate())
	assert.NoError(t, (&FlushRequest{Cycle: FlushCycleAdditions}).Validate())
	assert.Error(t, (&FlushRequest{Cycle: "reorder"}).Validate())
	assert.Error(t, (&FlushRequest{}).Validate())
}

func TestFlushResponses(t *testing.T) {
	sel := NewSelectionFlushResponse(store.SelectionFlushResult{IntentsApplied: 2, Selected: 1, SelectionSize: 1})
	assert.Equal(t, FlushCycleSelection, sel.Cycle)
	require.NotNil(t, sel.Selection)
	assert.Nil(t, sel.Additions)
	assert.Equal(t, 2, sel.Selection.IntentsApplied)

	add := NewAdditionFlushResponse(store.AdditionFlushResult{Staged: 1, Inserted: 1, CatalogSize: 4})
	assert.Equal(t, FlushCycleAdditions, add.Cycle)
	require.NotNil(t, add.Additions)
	assert.Nil(t, add.Selection)

	body, err := json.Marshal(add)
	require.NoError(t, err)
	assert.JSONEq(t, `{"cycle":"additions","additions":{"staged":1,"inserted":1,"skipped":0,"catalog_size":4}}`, string(body))
}
