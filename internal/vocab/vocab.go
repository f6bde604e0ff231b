package vocab

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed vocabulary.yaml
var defaultDocument []byte

// Vocabulary holds the fixed instrument, genre and skill level values.
type Vocabulary struct {
	Instruments []string `yaml:"instruments" json:"instruments"`
	Genres      []string `yaml:"genres" json:"genres"`
	SkillLevels []string `yaml:"skill_levels" json:"skill_levels"`
}

var (
	defaultOnce  sync.Once
	defaultVocab *Vocabulary
)

// Parse decodes a vocabulary document.
func Parse(data []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("vocab: decode: %w", err)
	}
	if len(v.Instruments) == 0 || len(v.Genres) == 0 || len(v.SkillLevels) == 0 {
		return nil, fmt.Errorf("vocab: instruments, genres and skill_levels are all required")
	}
	return &v, nil
}

// Default returns the embedded vocabulary. It panics if the embedded document
// is malformed, which is a build defect.
func Default() *Vocabulary {
	defaultOnce.Do(func() {
		v, err := Parse(defaultDocument)
		if err != nil {
			panic(err)
		}
		defaultVocab = v
	})
	return defaultVocab
}

// All returns a copy of the vocabulary.
func (v *Vocabulary) All() Vocabulary {
	return Vocabulary{
		Instruments: append([]string(nil), v.Instruments...),
		Genres:      append([]string(nil), v.Genres...),
		SkillLevels: append([]string(nil), v.SkillLevels...),
	}
}

func canonical(values []string, s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return v, true
		}
	}
	return "", false
}

func (v *Vocabulary) IsInstrument(s string) bool {
	c, ok := canonical(v.Instruments, s)
	return ok && c == s
}

func (v *Vocabulary) IsGenre(s string) bool {
	c, ok := canonical(v.Genres, s)
	return ok && c == s
}

func (v *Vocabulary) IsSkillLevel(s string) bool {
	c, ok := canonical(v.SkillLevels, s)
	return ok && c == s
}

// CanonicalInstrument maps "guitar" to "Guitar". Unknown values are returned trimmed.
func (v *Vocabulary) CanonicalInstrument(s string) string {
	if c, ok := canonical(v.Instruments, s); ok {
		return c
	}
	return strings.TrimSpace(s)
}

func (v *Vocabulary) CanonicalGenre(s string) string {
	if c, ok := canonical(v.Genres, s); ok {
		return c
	}
	return strings.TrimSpace(s)
}

func (v *Vocabulary) CanonicalSkillLevel(s string) string {
	if c, ok := canonical(v.SkillLevels, s); ok {
		return c
	}
	return strings.TrimSpace(s)
}

// RegisterValidations adds the "instrument", "genre" and "skill" tags to a
// validator. Matching ignores case; empty values pass, so combine with
// "required" where needed.
func (v *Vocabulary) RegisterValidations(validate *validator.Validate) error {
	tags := map[string][]string{
		"instrument": v.Instruments,
		"genre":      v.Genres,
		"skill":      v.SkillLevels,
	}
	for tag, values := range tags {
		values := values
		err := validate.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			_, ok := canonical(values, s)
			return s == "" || ok
		})
		if err != nil {
			return fmt.Errorf("vocab: register %q: %w", tag, err)
		}
	}
	return nil
}
