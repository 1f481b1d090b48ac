package dispatch

import (
	"encoding/json"
	"strings"
)

const unknownErrorMessage = "unknown error"

var reservedResultKeys = map[string]struct{}{
	"success":            {},
	"action":             {},
	"error":              {},
	"command":            {},
	"available_commands": {},
}

// Result is the envelope every handler returns. A failed result always
// carries a non-empty Error.
type Result struct {
	Success           bool
	Action            string
	Error             string
	Command           string
	AvailableCommands []string
	Fields            map[string]any
}

func Succeeded(action string, fields map[string]any) Result {
	return Result{Success: true, Action: action, Fields: cloneFields(fields)}
}

func Failed(action string, err error) Result {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return FailedMessage(action, msg)
}

func FailedMessage(action, msg string) Result {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		msg = unknownErrorMessage
	}
	return Result{Success: false, Action: action, Error: msg}
}

// With returns a copy of r with key set. Reserved envelope keys are ignored.
func (r Result) With(key string, value any) Result {
	if _, reserved := reservedResultKeys[key]; reserved {
		return r
	}
	out := r
	out.Fields = cloneFields(r.Fields)
	if out.Fields == nil {
		out.Fields = map[string]any{}
	}
	out.Fields[key] = value
	return out
}

func (r Result) Field(key string) (any, bool) {
	if r.Fields == nil {
		return nil, false
	}
	v, ok := r.Fields[key]
	return v, ok
}

func (r Result) Normalize() Result {
	out := r
	if !out.Success && strings.TrimSpace(out.Error) == "" {
		out.Error = unknownErrorMessage
	}
	if out.Success {
		out.Error = ""
	}
	out.Fields = cloneFields(r.Fields)
	if len(r.AvailableCommands) > 0 {
		out.AvailableCommands = append([]string(nil), r.AvailableCommands...)
	}
	return out
}

func (r Result) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+5)
	for k, v := range r.Fields {
		if _, reserved := reservedResultKeys[k]; reserved {
			continue
		}
		out[k] = v
	}
	out["success"] = r.Success
	if r.Action != "" {
		out["action"] = r.Action
	}
	if r.Error != "" {
		out["error"] = r.Error
	}
	if r.Command != "" {
		out["command"] = r.Command
	}
	if r.AvailableCommands != nil {
		out["available_commands"] = r.AvailableCommands
	}
	return json.Marshal(out)
}

func (r *Result) UnmarshalJSON(data []byte) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var out Result
	for k, v := range raw {
		var err error
		switch k {
		case "success":
			err = json.Unmarshal(v, &out.Success)
		case "action":
			err = json.Unmarshal(v, &out.Action)
		case "error":
			err = json.Unmarshal(v, &out.Error)
		case "command":
			err = json.Unmarshal(v, &out.Command)
		case "available_commands":
			err = json.Unmarshal(v, &out.AvailableCommands)
		default:
			var field any
			err = json.Unmarshal(v, &field)
			if err == nil {
				if out.Fields == nil {
					out.Fields = map[string]any{}
				}
				out.Fields[k] = field
			}
		}
		if err != nil {
			return err
		}
	}
	*r = out
	return nil
}

func cloneFields(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		if _, reserved := reservedResultKeys[k]; reserved {
			continue
		}
		out[k] = deepCopyValue(v)
	}
	return out
}
