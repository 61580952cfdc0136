// ReelVault - Personal Encrypted Movie Library
// Copyright 2026 ReelVault contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelvault/reelvault

package catalog

import (
	"fmt"
	"strings"
)

// FilterOperator is the comparison a filter rule applies to its field.
type FilterOperator string

// Filter operators. String operators apply to the filename field, tag
// operators to a tag type field.
const (
	OpContainsString       FilterOperator = "ContainsString"
	OpDoesNotContainString FilterOperator = "DoesNotContainString"
	OpIsTag                FilterOperator = "IsTag"
	OpIsNotTag             FilterOperator = "IsNotTag"
	OpIsTagged             FilterOperator = "IsTagged"
	OpIsNotTagged          FilterOperator = "IsNotTagged"
)

// FilterFieldType discriminates what a rule's field refers to.
type FilterFieldType string

const (
	FieldFilename FilterFieldType = "Filename"
	FieldTagType  FilterFieldType = "TagType"
)

// FilterField binds a rule to either the movie filename or one tag type.
type FilterField struct {
	Type      FilterFieldType `json:"type"`
	TagTypeID TagTypeID       `json:"tag_type_id,omitempty"`
}

// OperatorApplicable reports whether op may be used with this field.
// Filename fields take string operators; tag type fields take tag operators.
// Callers must not construct rules that violate this; Evaluate does not
// re-check it.
func (f FilterField) OperatorApplicable(op FilterOperator) bool {
	switch f.Type {
	case FieldFilename:
		return op == OpContainsString || op == OpDoesNotContainString
	case FieldTagType:
		return op == OpIsTag || op == OpIsNotTag || op == OpIsTagged || op == OpIsNotTagged
	default:
		panic(fmt.Sprintf("unexpected filter field type: %q", f.Type))
	}
}

// FilterRule is one predicate: a field, an operator, and the operand the
// operator needs (StringValue for string operators, TagValues for
// IsTag/IsNotTag, neither for IsTagged/IsNotTagged).
type FilterRule struct {
	Field       FilterField    `json:"field"`
	Operator    FilterOperator `json:"operator"`
	StringValue string         `json:"string_value,omitempty"`
	TagValues   []Tag          `json:"tag_values,omitempty"`
}

// Filter is a boolean combination of rules. With Or set a movie is included
// when any rule verdict is true; otherwise a movie is included only when no
// verdict anywhere is false.
type Filter struct {
	Or    bool         `json:"or"`
	Rules []FilterRule `json:"rules"`
}

// Evaluate returns the movies matching the filter, preserving input order.
//
// Each rule contributes zero or more boolean verdicts per movie; a rule
// over a set of tag values contributes one verdict per value. Verdicts from
// all rules feed a single pair of any-true/any-false accumulators.
// A consequence kept from the original behavior: in AND mode an IsTag rule
// over {A, B} admits only movies carrying both A and B, not either.
//
// Evaluate panics on an operator it does not know; that indicates a
// corrupted filter upstream, not a condition to paper over.
func Evaluate(filter Filter, movies []Movie, movieTags []MovieTag, tagTypeOf map[TagID]TagTypeID) []Movie {
	if len(filter.Rules) == 0 {
		return movies
	}

	tagsByMovie := make(map[MovieID][]TagID, len(movies))
	for _, mt := range movieTags {
		tagsByMovie[mt.MovieID] = append(tagsByMovie[mt.MovieID], mt.TagID)
	}

	matched := make([]Movie, 0, len(movies))
	for _, movie := range movies {
		if movieIncluded(filter, movie, tagsByMovie[movie.ID], tagTypeOf) {
			matched = append(matched, movie)
		}
	}
	return matched
}

func movieIncluded(filter Filter, movie Movie, tagIDs []TagID, tagTypeOf map[TagID]TagTypeID) bool {
	hasTag := func(id TagID) bool {
		for _, t := range tagIDs {
			if t == id {
				return true
			}
		}
		return false
	}
	hasTagOfType := func(id TagTypeID) bool {
		for _, t := range tagIDs {
			if tagTypeOf[t] == id {
				return true
			}
		}
		return false
	}

	var anyTrue, anyFalse bool
	add := func(v bool) {
		if v {
			anyTrue = true
		} else {
			anyFalse = true
		}
	}

	for _, rule := range filter.Rules {
		switch rule.Operator {
		case OpIsTagged:
			add(hasTagOfType(rule.Field.TagTypeID))
		case OpIsNotTagged:
			add(!hasTagOfType(rule.Field.TagTypeID))
		case OpIsTag:
			for _, tag := range rule.TagValues {
				add(hasTag(tag.ID))
			}
		case OpIsNotTag:
			for _, tag := range rule.TagValues {
				add(!hasTag(tag.ID))
			}
		case OpContainsString:
			add(containsFold(movie.Filename, rule.StringValue))
		case OpDoesNotContainString:
			add(!containsFold(movie.Filename, rule.StringValue))
		default:
			panic(fmt.Sprintf("unexpected filter operator: %q", rule.Operator))
		}
	}

	if filter.Or {
		return anyTrue
	}
	return !anyFalse
}

// containsFold reports whether substr occurs in s, case-insensitively.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
