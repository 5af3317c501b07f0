package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"leadmatch/internal/model"
	"leadmatch/internal/utils"
)

// FlexString accepts a JSON string, number, bool or null. Models answer
// "budget": 150000 as often as "budget": "150000".
type FlexString string

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexString(n.String())
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = FlexString(strconv.FormatBool(b))
		return nil
	}
	// arrays and objects collapse to their raw text
	*f = FlexString(data)
	return nil
}

// FlexBool accepts true/false as bool or string
type FlexBool bool

// UnmarshalJSON implements json.Unmarshaler
func (b *FlexBool) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.ToLower(string(bytes.TrimSpace(data))), `"`)
	*b = FlexBool(s == "true" || s == "yes" || s == "1")
	return nil
}

// extractionPayload is the JSON shape requested by ExtractionPrompt
type extractionPayload struct {
	Budget      FlexString `json:"budget"`
	Size        FlexString `json:"size"`
	Location    FlexString `json:"location"`
	Rooms       FlexString `json:"rooms"`
	ReadyStatus FlexString `json:"ready_status"`
	Contact     FlexString `json:"contact"`
	Notes       FlexString `json:"notes"`
	IsComplete  FlexBool   `json:"is_complete"`
}

// nullish values models write instead of JSON null
var nullish = map[string]bool{
	"null": true, "none": true, "n/a": true, "unknown": true, "нет данных": true,
}

// ParseExtraction turns raw model output into an ExtractionResult. Output that
// is not JSON yields an incomplete result and ErrExtractionParse.
func ParseExtraction(raw string) (*model.ExtractionResult, error) {
	result := &model.ExtractionResult{Fields: map[model.FieldName]string{}}

	var payload extractionPayload
	if err := utils.DecodeObject(raw, &payload); err != nil {
		return result, fmt.Errorf("%w: %v", ErrExtractionParse, err)
	}

	values := map[model.FieldName]FlexString{
		model.FieldBudget:    payload.Budget,
		model.FieldSize:      payload.Size,
		model.FieldLocation:  payload.Location,
		model.FieldRooms:     payload.Rooms,
		model.FieldReadiness: payload.ReadyStatus,
		model.FieldContact:   payload.Contact,
		model.FieldNotes:     payload.Notes,
	}
	for field, v := range values {
		s := strings.TrimSpace(string(v))
		if s == "" || nullish[strings.ToLower(s)] {
			continue
		}
		result.Fields[field] = s
	}
	result.IsComplete = bool(payload.IsComplete)
	return result, nil
}

// transcriptPrompt renders the dialogue as the single user message sent to
// the extractor
func transcriptPrompt(transcript []model.Message) (string, error) {
	data, err := json.Marshal(transcript)
	if err != nil {
		return "", fmt.Errorf("failed to marshal transcript: %w", err)
	}
	return "Диалог:\n" + string(data), nil
}
