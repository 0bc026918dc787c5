// Package schema checks that a payload carries the fields a step expects.
//
// A Schema maps field names to types. Types are parsed from short strings, so
// contracts can be declared in YAML trees:
//
//	s, err := schema.ParseTypeMap(map[string]string{
//	    "id":    "string",
//	    "total": "float",
//	    "tags":  "[string]",
//	    "note":  "string?",
//	})
//	if err := s.Validate(payload); err != nil {
//	    // every failing field is reported, in field order
//	}
//
// Numbers decoded from JSON are float64; "int" accepts them when they are whole.
package schema
