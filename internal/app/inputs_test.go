package app

import (
	"encoding/json"
	"testing"
)

func TestNumberUnmarshal(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  float64
	}{
		{"json number", `0.25`, 0.25},
		{"numeric string", `"0.75"`, 0.75},
		{"empty string means zero", `""`, 0},
		{"null means zero", `null`, 0},
		{"negative", `-1.5`, -1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n Number
			if err := json.Unmarshal([]byte(tt.input), &n); err != nil {
				t.Fatalf("Unmarshal(%s) error = %v", tt.input, err)
			}
			if float64(n) != tt.want {
				t.Fatalf("Unmarshal(%s) = %v, want %v", tt.input, float64(n), tt.want)
			}
		})
	}
}

func TestNumberUnmarshalRejectsNonNumericString(t *testing.T) {
	var n Number
	if err := json.Unmarshal([]byte(`"fifty"`), &n); err == nil {
		t.Fatalf("expected an error for a non-numeric string")
	}
}

func TestNullStringStates(t *testing.T) {
	var payload struct {
		Icon NullString `json:"icon"`
	}

	if err := json.Unmarshal([]byte(`{}`), &payload); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if payload.Icon.Set {
		t.Fatalf("expected an absent field to stay unset")
	}

	payload.Icon = NullString{}
	if err := json.Unmarshal([]byte(`{"icon":null}`), &payload); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if !payload.Icon.Set || payload.Icon.Valid {
		t.Fatalf("expected explicit null to be set and invalid, got %+v", payload.Icon)
	}
	if payload.Icon.Pointer() != nil {
		t.Fatalf("expected nil pointer for explicit null")
	}

	payload.Icon = NullString{}
	if err := json.Unmarshal([]byte(`{"icon":"🚀"}`), &payload); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if !payload.Icon.Set || !payload.Icon.Valid || payload.Icon.Value != "🚀" {
		t.Fatalf("expected value state, got %+v", payload.Icon)
	}
}

func TestDocumentUpdateInputDecode(t *testing.T) {
	body := `{
		"title": "Launch Plan",
		"icon": null,
		"coverImgPositionX": "0.5",
		"coverImgPositionY": "",
		"text": "Ship it.",
		"append": true,
		"publish": true,
		"collectionId": "col_1"
	}`
	var input DocumentUpdateInput
	if err := json.Unmarshal([]byte(body), &input); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if input.Title == nil || *input.Title != "Launch Plan" {
		t.Fatalf("unexpected title: %v", input.Title)
	}
	if !input.Icon.Set || input.Icon.Valid {
		t.Fatalf("expected icon null, got %+v", input.Icon)
	}
	if input.Color.Set {
		t.Fatalf("expected color to stay unset")
	}
	if input.CoverImgPosX == nil || float64(*input.CoverImgPosX) != 0.5 {
		t.Fatalf("unexpected coverImgPositionX: %v", input.CoverImgPosX)
	}
	if input.CoverImgPosY == nil || float64(*input.CoverImgPosY) != 0 {
		t.Fatalf("expected empty-string position to decode to zero, got %v", input.CoverImgPosY)
	}
	if !input.Append || !input.Publish {
		t.Fatalf("expected append and publish flags")
	}
	if input.CollectionID == nil || *input.CollectionID != "col_1" {
		t.Fatalf("unexpected collectionId: %v", input.CollectionID)
	}
}
