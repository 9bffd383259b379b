package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/julianstephens/affirm/internal/constants"
)

var (
	ErrEmptyAffirmation   = errors.New("affirmation text cannot be empty")
	ErrAffirmationTooLong = fmt.Errorf("affirmation text exceeds %d characters", constants.MaxAffirmationLength)
	ErrEmptyDataset       = errors.New("dataset has no affirmations")
)

type Affirmation struct {
	Text     string `json:"text"`
	Category string `json:"category"`
}

// Dataset is the bundled data resource: the category registry plus the built-in affirmations.
type Dataset struct {
	Categories   map[string]string `json:"categories"`
	Affirmations []Affirmation     `json:"affirmations"`
}

// DefaultDataset is used when the data resource cannot be reached or parsed.
func DefaultDataset() Dataset {
	return Dataset{
		Categories: map[string]string{"faith": "Faith and Providence"},
		Affirmations: []Affirmation{
			{Text: constants.DefaultNotificationBody, Category: "faith"},
			{Text: "I am exactly where I need to be", Category: "faith"},
		},
	}
}

func (d Dataset) Validate() error {
	if len(d.Affirmations) == 0 {
		return ErrEmptyDataset
	}
	for i, a := range d.Affirmations {
		if strings.TrimSpace(a.Text) == "" {
			return fmt.Errorf("affirmation %d: %w", i, ErrEmptyAffirmation)
		}
	}
	return nil
}

// CategoryName returns the display name for a category key, falling back to the key itself.
func (d Dataset) CategoryName(key string) string {
	if key == constants.CategoryPersonal {
		return "Personal"
	}
	if name, ok := d.Categories[key]; ok && name != "" {
		return name
	}
	return key
}

// CategoryKeys returns the registry keys in a stable order.
func (d Dataset) CategoryKeys() []string {
	keys := make([]string, 0, len(d.Categories))
	for k := range d.Categories {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// EnabledCategories restricts the built-in pool. An empty value means every category is enabled.
type EnabledCategories []string

func (e EnabledCategories) All() bool {
	return len(e) == 0
}

func (e EnabledCategories) Allows(category string) bool {
	if e.All() {
		return true
	}
	for _, c := range e {
		if c == category {
			return true
		}
	}
	return false
}

// NormalizePersonalText trims the text and enforces the personal entry length bound.
func NormalizePersonalText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyAffirmation
	}
	if utf8.RuneCountInString(text) > constants.MaxAffirmationLength {
		return "", ErrAffirmationTooLong
	}
	return text, nil
}

// PersonalAffirmations tags the user's own texts with the synthetic personal category.
func PersonalAffirmations(texts []string) []Affirmation {
	out := make([]Affirmation, 0, len(texts))
	for _, t := range texts {
		out = append(out, Affirmation{Text: t, Category: constants.CategoryPersonal})
	}
	return out
}
