package toolspec

import "encoding/json"

// knownSpecFields lists the JSON keys handled by Spec's named fields; any
// other top-level key is preserved verbatim in Extra.
var knownSpecFields = map[string]bool{
	"name": true, "description": true, "usage": true, "examples": true,
	"input_schema": true, "usage_guide": true, "permissions": true,
	"supports_dry_run": true,
}

// MarshalJSON emits the named fields plus any preserved Extra keys.
func (s Spec) MarshalJSON() ([]byte, error) {
	type alias Spec
	base, err := json.Marshal(alias(s))
	if err != nil {
		return nil, err
	}
	if len(s.Extra) == 0 {
		return base, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range s.Extra {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// UnmarshalJSON decodes the named fields and stashes any unrecognized
// top-level key into Extra so round-tripping preserves forward-compatible
// fields a future schema revision might add.
func (s *Spec) UnmarshalJSON(data []byte) error {
	type alias Spec
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*s = Spec(a)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	extra := make(map[string]json.RawMessage)
	for k, v := range raw {
		if !knownSpecFields[k] {
			extra[k] = v
		}
	}
	if len(extra) > 0 {
		s.Extra = extra
	}
	return nil
}
