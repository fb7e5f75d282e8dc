// Package canonhash computes deterministic content hashes for census
// records. The hash covers an allow-listed set of semantic fields only,
// so storage metadata and timestamps never perturb it. The same logical
// record always hashes to the same digest regardless of key order,
// numeric representation, or platform.
package canonhash

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
)

// HashableFields is the closed set of census fields covered by the
// content hash. Fields outside this list are ignored.
var HashableFields = []string{
	"record_id", "household_id", "name", "age", "sex", "relation",
	"caste", "income", "region", "district", "state", "pin_code",
	"latitude", "longitude", "welfare_score", "ration_card_type",
	"scheme_enrollment_count", "employment_status", "occupation_category",
	"sector", "housing_type", "water_source", "toilet_access",
	"cooking_fuel", "internet_access", "household_size",
	"parent_id", "spouse_id",
}

var hashable = func() map[string]struct{} {
	m := make(map[string]struct{}, len(HashableFields))
	for _, f := range HashableFields {
		m[f] = struct{}{}
	}
	return m
}()

// Compute returns the lowercase hex SHA-256 digest of the record's
// canonical form. Allow-listed fields present in the record are
// normalised to strings (nil becomes the empty string, numbers their
// decimal form); absent fields are omitted entirely, not zero-filled.
// The canonical form is compact JSON with sorted keys.
func Compute(record map[string]any) string {
	canonical := make(map[string]string, len(record))
	for field, value := range record {
		if _, ok := hashable[field]; !ok {
			continue
		}
		canonical[field] = normalize(value)
	}

	// encoding/json marshals map keys in sorted order with no
	// extraneous whitespace, which is exactly the canonical encoding.
	payload, err := json.Marshal(canonical)
	if err != nil {
		// A map[string]string cannot fail to marshal.
		panic(fmt.Sprintf("canonhash: marshal canonical record: %v", err))
	}

	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Verify reports whether the record's computed hash equals expected.
// It has no side effects.
func Verify(record map[string]any, expected string) bool {
	return Compute(record) == expected
}

// normalize converts a field value to its canonical string form.
func normalize(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
