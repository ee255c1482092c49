package parsers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/username/wealthfolio/backend/src/schema"
)

var (
	// ErrUnknownBroker means the caller declared a broker no profile covers.
	ErrUnknownBroker = errors.New("unknown broker")
	// ErrMappingIncomplete means a caller-supplied explicit mapping does not
	// resolve the fields the asset class cannot import without.
	ErrMappingIncomplete = errors.New("mapping incomplete")
)

// MappingResult is the outcome of header resolution for one file. A nil
// Mapping signals that no profile cleared the detection threshold and the
// caller must supply an explicit header→field mapping; Headers are echoed
// back so the caller can render that mapping UI.
type MappingResult struct {
	Broker     string         `json:"broker,omitempty"`
	AssetClass string         `json:"asset_class,omitempty"`
	Mapping    schema.Mapping `json:"mapping,omitempty"`
	Headers    []string       `json:"headers"`
}

// Resolve produces a header→field mapping for a batch. With a declared
// broker that broker's aliases are applied directly; otherwise every known
// profile is scored by how many distinct header columns it resolves against
// the file and the best one above the threshold wins. Resolve never fails on
// unrecognized headers; it returns a nil-Mapping result instead.
func Resolve(headers []string, declaredBroker string) (MappingResult, error) {
	if declaredBroker != "" {
		p, ok := profileFor(declaredBroker)
		if !ok {
			return MappingResult{Headers: headers}, fmt.Errorf("%w: %q", ErrUnknownBroker, declaredBroker)
		}
		mapping := applyProfile(headers, p)
		if !clearsThreshold(mapping, p.AssetClass) {
			return MappingResult{Headers: headers}, nil
		}
		return MappingResult{Broker: p.Broker, AssetClass: p.AssetClass, Mapping: mapping, Headers: headers}, nil
	}

	var best *MappingResult
	bestScore := 0
	for _, p := range profiles {
		mapping := applyProfile(headers, p)
		if !clearsThreshold(mapping, p.AssetClass) {
			continue
		}
		// Score by distinct columns, not mapped fields: a profile that
		// doubles symbol and name onto one column knows less about the
		// file than one that found separate columns for them.
		if score := distinctColumns(mapping); score > bestScore {
			bestScore = score
			best = &MappingResult{Broker: p.Broker, AssetClass: p.AssetClass, Mapping: mapping, Headers: headers}
		}
	}
	if best == nil {
		return MappingResult{Headers: headers}, nil
	}
	return *best, nil
}

func distinctColumns(mapping schema.Mapping) int {
	seen := make(map[int]bool, len(mapping))
	for _, idx := range mapping {
		seen[idx] = true
	}
	return len(seen)
}

// ResolveExplicit validates a caller-supplied header→field mapping (header
// cell text → schema field name) against the headers actually present and
// the asset class's structural needs.
func ResolveExplicit(headers []string, explicit map[string]string, class schema.Class) (MappingResult, error) {
	index := headerIndex(headers)
	mapping := make(schema.Mapping, len(explicit))
	for header, field := range explicit {
		idx, ok := index[normalizeHeader(header)]
		if !ok {
			return MappingResult{Headers: headers}, fmt.Errorf("%w: header %q not present in file", ErrMappingIncomplete, header)
		}
		f := schema.Field(strings.ToLower(strings.TrimSpace(field)))
		if !knownField(f) {
			return MappingResult{Headers: headers}, fmt.Errorf("%w: unknown field %q", ErrMappingIncomplete, field)
		}
		mapping[f] = idx
	}

	if _, ok := mapping[class.KeyField]; !ok {
		if _, nameOK := mapping[schema.FieldName]; !nameOK {
			return MappingResult{Headers: headers}, fmt.Errorf("%w: merge-key field %q not mapped", ErrMappingIncomplete, class.KeyField)
		}
	}
	if class.QuantityBased() {
		if _, ok := mapping[schema.FieldQuantity]; !ok && class.Kind == schema.KindQuantity {
			return MappingResult{Headers: headers}, fmt.Errorf("%w: quantity not mapped", ErrMappingIncomplete)
		}
		_, hasPrice := mapping[schema.FieldUnitPrice]
		_, hasAmount := mapping[schema.FieldAmount]
		if !hasPrice && !hasAmount {
			return MappingResult{Headers: headers}, fmt.Errorf("%w: no price or amount field mapped", ErrMappingIncomplete)
		}
	}
	return MappingResult{AssetClass: class.Code, Mapping: mapping, Headers: headers}, nil
}

// applyProfile maps each profile field to the first of its aliases present
// in the headers. Ignored (derived/computed) headers never map.
func applyProfile(headers []string, p Profile) schema.Mapping {
	index := headerIndex(headers)
	mapping := make(schema.Mapping)
	for field, aliases := range p.Aliases {
		for _, alias := range aliases {
			if idx, ok := index[normalizeHeader(alias)]; ok {
				mapping[field] = idx
				break
			}
		}
	}
	return mapping
}

// clearsThreshold is the minimum-match rule: the class's merge-key field (or
// name, which symbol-keyed rows fall back to) plus at least one
// quantity/price field.
func clearsThreshold(mapping schema.Mapping, assetClass string) bool {
	class, ok := schema.Lookup(assetClass)
	if !ok {
		return false
	}
	_, hasKey := mapping[class.KeyField]
	_, hasName := mapping[schema.FieldName]
	if !hasKey && !hasName {
		return false
	}
	for _, f := range []schema.Field{schema.FieldQuantity, schema.FieldUnitPrice, schema.FieldAmount} {
		if _, ok := mapping[f]; ok {
			return true
		}
	}
	return false
}

func headerIndex(headers []string) map[string]int {
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		n := normalizeHeader(h)
		if n == "" || ignoredHeaders[n] {
			continue
		}
		if _, seen := index[n]; !seen {
			index[n] = i
		}
	}
	return index
}

func knownField(f schema.Field) bool {
	switch f {
	case schema.FieldSymbol, schema.FieldName, schema.FieldQuantity, schema.FieldUnitPrice,
		schema.FieldAmount, schema.FieldCurrency, schema.FieldExchange, schema.FieldISIN,
		schema.FieldInstitution, schema.FieldInterestRate, schema.FieldMaturityDate, schema.FieldBuyDate:
		return true
	}
	return false
}
