package narrative

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	structValid  *validator.Validate
)

// Validator returns the shared validator with the narrative tags registered.
// Field names in reported errors follow the JSON tags.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("beat", func(fl validator.FieldLevel) bool {
			b, ok := fl.Field().Interface().(Beat)
			return ok && b.Valid()
		})
		structValid = v
	})
	return structValid
}

// Validate checks the snapshot against its structural and referential
// invariants and returns every violation found. A nil snapshot is invalid;
// an empty one is not.
func Validate(s *Snapshot) error {
	if s == nil {
		return ValidationErrors{{Field: "snapshot", Message: "is nil"}}
	}

	var errs ValidationErrors
	if err := Validator().Struct(s); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("validating snapshot: %w", err)
		}
		for _, fe := range fieldErrs {
			errs = append(errs, &ValidationError{
				Field:   trimNamespace(fe.Namespace()),
				Message: describeTag(fe),
				Value:   fe.Value(),
			})
		}
	}
	errs = append(errs, checkReferences(s)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func checkReferences(s *Snapshot) ValidationErrors {
	var errs ValidationErrors
	add := func(field, msg string, value any) {
		errs = append(errs, &ValidationError{Field: field, Message: msg, Value: value})
	}

	characters := make(map[string]bool, len(s.Characters))
	for i, c := range s.Characters {
		if c.ID == "" {
			continue
		}
		if characters[c.ID] {
			add(fmt.Sprintf("characters[%d].id", i), "duplicate character id", c.ID)
		}
		characters[c.ID] = true
	}

	chapters := make(map[string]bool, len(s.Chapters))
	numbers := make(map[int]string, len(s.Chapters))
	events := make(map[string]bool)
	for i, ch := range s.Chapters {
		if ch.ID != "" {
			if chapters[ch.ID] {
				add(fmt.Sprintf("chapters[%d].id", i), "duplicate chapter id", ch.ID)
			}
			chapters[ch.ID] = true
		}
		if other, ok := numbers[ch.Number]; ok {
			add(fmt.Sprintf("chapters[%d].number", i), "chapter number already used by "+other, ch.Number)
		} else {
			numbers[ch.Number] = ch.ID
		}

		seen := make(map[string]bool, len(ch.CharacterIDs))
		for j, id := range ch.CharacterIDs {
			if id == "" {
				continue
			}
			if !characters[id] {
				add(fmt.Sprintf("chapters[%d].characterIds[%d]", i, j), "references unknown character", id)
			}
			if seen[id] {
				add(fmt.Sprintf("chapters[%d].characterIds[%d]", i, j), "duplicate character in chapter", id)
			}
			seen[id] = true
		}

		for j, ev := range ch.Events {
			if ev.ID != "" {
				if events[ev.ID] {
					add(fmt.Sprintf("chapters[%d].events[%d].id", i, j), "duplicate event id", ev.ID)
				}
				events[ev.ID] = true
			}
			if ev.ChapterID != "" && ev.ChapterID != ch.ID {
				add(fmt.Sprintf("chapters[%d].events[%d].chapterId", i, j),
					"event references chapter "+ev.ChapterID+" but is listed under "+ch.ID, ev.ChapterID)
			}
		}
	}

	for i, c := range s.Characters {
		for j, id := range c.Appearances {
			if id != "" && !chapters[id] {
				add(fmt.Sprintf("characters[%d].appearances[%d]", i, j), "references unknown chapter", id)
			}
		}
		for j, rel := range c.Relationships {
			switch {
			case rel.PeerID == "":
			case rel.PeerID == c.ID:
				add(fmt.Sprintf("characters[%d].relationships[%d].peerId", i, j), "character cannot relate to itself", rel.PeerID)
			case !characters[rel.PeerID]:
				add(fmt.Sprintf("characters[%d].relationships[%d].peerId", i, j), "references unknown character", rel.PeerID)
			}
		}
	}
	return errs
}

// trimNamespace drops the root type name: "Snapshot.chapters[0].id" -> "chapters[0].id".
func trimNamespace(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "beat":
		return "unknown beat type"
	case "unique":
		return "contains duplicate entries"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
