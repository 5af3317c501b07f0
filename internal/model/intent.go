package model

// ExtractionResult is what the language model pulled out of a transcript
type ExtractionResult struct {
	Fields     map[FieldName]string `json:"fields"`
	IsComplete bool                 `json:"is_complete"`
}

// Empty reports whether nothing was extracted
func (r *ExtractionResult) Empty() bool {
	for _, v := range r.Fields {
		if v != "" {
			return false
		}
	}
	return true
}
