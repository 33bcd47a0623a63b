package plugin

import (
	"bytes"
	"encoding/json"
	"fmt"

	"mainstage/internal/ir"
)

// callRequest is the JSON payload written to a plugin's
// plugin_call_json export: the function being invoked and its
// arguments translated to plain JSON values.
type callRequest struct {
	Function string        `json:"function"`
	Args     []interface{} `json:"args"`
}

func encodeCall(name string, args []ir.Value) ([]byte, error) {
	jsonArgs := make([]interface{}, len(args))
	for i, a := range args {
		v, err := valueToJSON(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		jsonArgs[i] = v
	}
	return json.Marshal(callRequest{Function: name, Args: jsonArgs})
}

// decodeResult parses a plugin's raw JSON response into an ir.Value.
// Numbers are decoded with json.Number so an integral result like `5`
// round-trips as ir.KindInt instead of always widening to Float.
func decodeResult(data []byte) (ir.Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return ir.Value{}, fmt.Errorf("decode plugin response: %w", err)
	}
	return jsonToValue(raw)
}

func valueToJSON(v ir.Value) (interface{}, error) {
	switch v.Kind {
	case ir.KindNull:
		return nil, nil
	case ir.KindInt:
		return v.I, nil
	case ir.KindFloat:
		return v.F, nil
	case ir.KindBool:
		return v.B, nil
	case ir.KindStr, ir.KindSymbol:
		return v.S, nil
	case ir.KindArray:
		out := make([]interface{}, len(v.A))
		for i, e := range v.A {
			j, err := valueToJSON(e)
			if err != nil {
				return nil, err
			}
			out[i] = j
		}
		return out, nil
	case ir.KindObject:
		out := make(map[string]interface{})
		if v.O != nil {
			for _, k := range v.O.Keys {
				val, _ := v.O.Get(k)
				j, err := valueToJSON(val)
				if err != nil {
					return nil, err
				}
				out[k] = j
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value kind %v", v.Kind)
	}
}

func jsonToValue(raw interface{}) (ir.Value, error) {
	switch x := raw.(type) {
	case nil:
		return ir.Null(), nil
	case bool:
		return ir.Bool(x), nil
	case string:
		return ir.Str(x), nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return ir.Int(i), nil
		}
		f, err := x.Float64()
		if err != nil {
			return ir.Value{}, fmt.Errorf("invalid number %q in plugin response", x.String())
		}
		return ir.Float(f), nil
	case []interface{}:
		elems := make([]ir.Value, len(x))
		for i, e := range x {
			v, err := jsonToValue(e)
			if err != nil {
				return ir.Value{}, err
			}
			elems[i] = v
		}
		return ir.Array(elems), nil
	case map[string]interface{}:
		obj := ir.NewObject()
		for k, e := range x {
			v, err := jsonToValue(e)
			if err != nil {
				return ir.Value{}, err
			}
			obj.Set(k, v)
		}
		return ir.ObjectVal(obj), nil
	default:
		return ir.Value{}, fmt.Errorf("unrepresentable JSON value %T in plugin response", raw)
	}
}
