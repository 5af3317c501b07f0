package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Keywords groups every multilingual keyword set the matcher and the dialogue
// depend on. Lists loaded from YAML replace the built-in defaults one by one.
type Keywords struct {
	Columns      ColumnKeywords       `yaml:"columns"`
	Availability AvailabilityKeywords `yaml:"availability"`
	Ranges       RangeKeywords        `yaml:"ranges"`
	Dialogue     DialogueKeywords     `yaml:"dialogue"`
}

// ColumnKeywords lists header keywords per semantic role, in priority order
type ColumnKeywords struct {
	Price    []string `yaml:"price"`
	Size     []string `yaml:"size"`
	Rooms    []string `yaml:"rooms"`
	Location []string `yaml:"location"`
	Status   []string `yaml:"status"`
	Unit     []string `yaml:"unit"`
}

// AvailabilityKeywords drives the sold/booked heuristics
type AvailabilityKeywords struct {
	Sold      []string `yaml:"sold"`
	Interest  []string `yaml:"interest"`
	Uppercase []string `yaml:"uppercase_allow"` // tokens that never count as a booking signature
}

// RangeKeywords drives budget/size/room parsing
type RangeKeywords struct {
	Studio    []string `yaml:"studio"`
	UpTo      []string `yaml:"up_to"`
	From      []string `yaml:"from"`
	AtLeast   []string `yaml:"at_least"`
	AtMost    []string `yaml:"at_most"`
	Thousands []string `yaml:"thousands"`
}

// DialogueKeywords drives conversation shortcuts
type DialogueKeywords struct {
	Negative  []string `yaml:"negative"`
	More      []string `yaml:"more"`
	NotesNone []string `yaml:"notes_none"`
}

// Supplier maps an inventory supplier key to its document folder
type Supplier struct {
	Key      string `yaml:"key"`
	Name     string `yaml:"name"`
	FolderID string `yaml:"folder_id"`
}

// DefaultKeywords returns the built-in keyword sets
func DefaultKeywords() Keywords {
	return Keywords{
		Columns: ColumnKeywords{
			Price:    []string{"цена", "price", "стоимость", "budget", "gel", "usd"},
			Size:     []string{"площадь", "size", "area", "м²", "кв.м", "sqm"},
			Rooms:    []string{"комнаты", "rooms", "спальн", "bedroom", "тип", "type"},
			Location: []string{"проект", "project", "жк", "локац", "location", "район"},
			Status:   []string{"статус", "status", "готов", "ready", "стадия"},
			Unit:     []string{"№", "номер", "unit", "квартира", "apartment", "лот", "flat"},
		},
		Availability: AvailabilityKeywords{
			Sold:      []string{"продан", "sold", "бронь", "брон", "забронир", "booked", "reserved", "резерв", "занят"},
			Interest:  []string{"interested", "интерес"},
			Uppercase: []string{"USD", "GEL", "EUR", "RUB", "SQM", "ЖК", "WHITE", "BLACK", "GREEN", "FRAME", "AVAILABLE", "FREE", "SALE"},
		},
		Ranges: RangeKeywords{
			Studio:    []string{"студ", "studio"},
			UpTo:      []string{"до", "up to", "under", "below"},
			From:      []string{"от", "from", "over"},
			AtLeast:   []string{"минимум", "не менее", "at least", "minimum", "min", "от", "from"},
			AtMost:    []string{"максимум", "не более", "at most", "maximum", "max", "до", "up to"},
			Thousands: []string{"тыс", "k"},
		},
		Dialogue: DialogueKeywords{
			Negative:  []string{"ничего не подходит", "не подходит", "ничего", "nothing fits", "nothing", "none of"},
			More:      []string{"ещё", "еще", "больше", "more", "next"},
			NotesNone: []string{"нет", "no", "none", "-", "—"},
		},
	}
}

// LoadKeywords reads path over DefaultKeywords; a missing file is not an error
func LoadKeywords(path string) (Keywords, error) {
	kw := DefaultKeywords()
	if path == "" {
		return kw, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return kw, nil
		}
		return kw, err
	}

	var file Keywords
	if err := yaml.Unmarshal(data, &file); err != nil {
		return kw, fmt.Errorf("parse %s: %w", path, err)
	}

	override(&kw.Columns.Price, file.Columns.Price)
	override(&kw.Columns.Size, file.Columns.Size)
	override(&kw.Columns.Rooms, file.Columns.Rooms)
	override(&kw.Columns.Location, file.Columns.Location)
	override(&kw.Columns.Status, file.Columns.Status)
	override(&kw.Columns.Unit, file.Columns.Unit)
	override(&kw.Availability.Sold, file.Availability.Sold)
	override(&kw.Availability.Interest, file.Availability.Interest)
	override(&kw.Availability.Uppercase, file.Availability.Uppercase)
	override(&kw.Ranges.Studio, file.Ranges.Studio)
	override(&kw.Ranges.UpTo, file.Ranges.UpTo)
	override(&kw.Ranges.From, file.Ranges.From)
	override(&kw.Ranges.AtLeast, file.Ranges.AtLeast)
	override(&kw.Ranges.AtMost, file.Ranges.AtMost)
	override(&kw.Ranges.Thousands, file.Ranges.Thousands)
	override(&kw.Dialogue.Negative, file.Dialogue.Negative)
	override(&kw.Dialogue.More, file.Dialogue.More)
	override(&kw.Dialogue.NotesNone, file.Dialogue.NotesNone)

	return kw, nil
}

// LoadSuppliers reads the supplier → folder list; a missing file yields none
func LoadSuppliers(path string) ([]Supplier, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var file struct {
		Suppliers []Supplier `yaml:"suppliers"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	seen := make(map[string]bool, len(file.Suppliers))
	out := make([]Supplier, 0, len(file.Suppliers))
	for _, s := range file.Suppliers {
		if s.Key == "" || s.FolderID == "" {
			return nil, fmt.Errorf("supplier entry needs key and folder_id: %+v", s)
		}
		if seen[s.Key] {
			return nil, fmt.Errorf("duplicate supplier key %q", s.Key)
		}
		seen[s.Key] = true
		out = append(out, s)
	}
	return out, nil
}

func override(dst *[]string, src []string) {
	if len(src) > 0 {
		*dst = src
	}
}
