package execute

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"nodeflow/pkg/workflow"
)

// TriggerDataVar is the variable trigger.manual emits.
const TriggerDataVar = "triggerData"

var triggerHandlers = map[string]workflow.NodeHandler{
	"trigger.http": func(_ context.Context, inv workflow.Invocation) (workflow.Outputs, error) {
		return workflow.Outputs{"request": map[string]any{
			"method":    inv.DataString("method", "GET"),
			"url":       inv.DataString("url", ""),
			"timestamp": inv.Context.Timestamp,
		}}, nil
	},
	"trigger.timer": func(_ context.Context, inv workflow.Invocation) (workflow.Outputs, error) {
		return workflow.Outputs{"timestamp": inv.Context.Timestamp}, nil
	},
	"trigger.manual": func(_ context.Context, inv workflow.Invocation) (workflow.Outputs, error) {
		return workflow.Outputs{"data": inv.Context.Variables[TriggerDataVar]}, nil
	},
}

var logicHandlers = map[string]workflow.NodeHandler{
	"logic.if": func(_ context.Context, inv workflow.Invocation) (workflow.Outputs, error) {
		v, _ := inv.Input("condition")
		cond := truthy(v)
		return workflow.Outputs{"true": cond, "false": !cond}, nil
	},
	"logic.compare": func(_ context.Context, inv workflow.Invocation) (workflow.Outputs, error) {
		a, _ := inv.Input("a")
		b, _ := inv.Input("b")
		return workflow.Outputs{"result": equal(a, b)}, nil
	},
	"logic.switch": func(_ context.Context, inv workflow.Invocation) (workflow.Outputs, error) {
		cases, ok := inv.Node.Data["cases"].([]any)
		if !ok {
			// Unconfigured switches keep the fixed placeholder flags.
			return workflow.Outputs{"case1": true, "case2": false, "default": false}, nil
		}
		v, _ := inv.Input("value")
		out := workflow.Outputs{"case1": false, "case2": false, "default": true}
		for i, c := range cases {
			if i > 1 {
				break
			}
			if equal(v, c) {
				out[workflow.PortID(fmt.Sprintf("case%d", i+1))] = true
				out["default"] = false
				break
			}
		}
		return out, nil
	},
}

var transformHandlers = map[string]workflow.NodeHandler{
	"transform.map":    passArray,
	"transform.filter": passArray,
	"transform.reduce": func(_ context.Context, inv workflow.Invocation) (workflow.Outputs, error) {
		v, _ := inv.Input("array")
		items, err := asSlice(v)
		if err != nil {
			return nil, fmt.Errorf("reduce: %w", err)
		}
		acc, ok := inv.Input("initial")
		if !ok || acc == nil {
			acc = 0
		}
		for i, item := range items {
			acc, err = add(acc, item)
			if err != nil {
				return nil, fmt.Errorf("reduce item %d: %w", i, err)
			}
		}
		return workflow.Outputs{"result": acc}, nil
	},
}

var effectHandlers = map[string]workflow.NodeHandler{
	"effect.http": func(ctx context.Context, inv workflow.Invocation) (workflow.Outputs, error) {
		method, url := inv.DataString("method", "GET"), inv.DataString("url", "")
		inv.Logf("simulating HTTP %s %s", method, url)
		if err := simulateLatency(ctx, inv); err != nil {
			return nil, err
		}
		body, _ := inv.Input("data")
		return workflow.Outputs{"response": map[string]any{
			"status": 200,
			"ok":     true,
			"method": method,
			"url":    url,
			"body":   body,
		}}, nil
	},
	"effect.email": func(ctx context.Context, inv workflow.Invocation) (workflow.Outputs, error) {
		to, subject := inv.DataString("to", ""), inv.DataString("subject", "")
		inv.Logf("simulating email to %q: %s", to, subject)
		if err := simulateLatency(ctx, inv); err != nil {
			return nil, err
		}
		return workflow.Outputs{"result": map[string]any{
			"sent":    true,
			"to":      to,
			"subject": subject,
		}}, nil
	},
	"effect.db": func(ctx context.Context, inv workflow.Invocation) (workflow.Outputs, error) {
		op, table := inv.DataString("operation", "insert"), inv.DataString("table", "")
		inv.Logf("simulating database %s on %q", op, table)
		if err := simulateLatency(ctx, inv); err != nil {
			return nil, err
		}
		return workflow.Outputs{"result": map[string]any{
			"ok":           true,
			"operation":    op,
			"table":        table,
			"rowsAffected": 1,
		}}, nil
	},
}

var dataHandlers = map[string]workflow.NodeHandler{
	"data.constant": func(_ context.Context, inv workflow.Invocation) (workflow.Outputs, error) {
		return workflow.Outputs{"value": inv.Node.Data["value"]}, nil
	},
	"data.variable": func(_ context.Context, inv workflow.Invocation) (workflow.Outputs, error) {
		return workflow.Outputs{"value": inv.Node.Data["name"]}, nil
	},
}

func passArray(_ context.Context, inv workflow.Invocation) (workflow.Outputs, error) {
	v, _ := inv.Input("array")
	return workflow.Outputs{"result": v}, nil
}

// simulateLatency waits data.delayMs milliseconds, or until ctx is done.
func simulateLatency(ctx context.Context, inv workflow.Invocation) error {
	ms, ok := toFloat(inv.Node.Data["delayMs"])
	if !ok || ms <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(time.Duration(ms * float64(time.Millisecond)))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	return true
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}

// equal compares numbers by value and everything else structurally.
func equal(a, b any) bool {
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA && okB {
		return fa == fb
	}
	return reflect.DeepEqual(a, b)
}

// add folds one reduce step: numeric addition, or concatenation when either side is a string.
func add(acc, v any) (any, error) {
	_, accStr := acc.(string)
	_, vStr := v.(string)
	if accStr || vStr {
		return stringify(acc) + stringify(v), nil
	}
	fa, okA := toFloat(acc)
	fv, okV := toFloat(v)
	if !okA || !okV {
		return nil, fmt.Errorf("cannot add %T and %T", acc, v)
	}
	return fa + fv, nil
}

func stringify(v any) string {
	if f, ok := toFloat(v); ok {
		return fmt.Sprint(f)
	}
	return fmt.Sprint(v)
}

func asSlice(v any) ([]any, error) {
	if items, ok := v.([]any); ok {
		return items, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("input is %T, not an array", v)
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}
