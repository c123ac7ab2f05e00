package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// ErrMalformedOutput is returned when a completion is still not valid JSON
// after the strict retry.
var ErrMalformedOutput = errors.New("malformed structured output")

const strictSuffix = "\nStrict JSON only."

// CallJSON asks tc for a JSON object and decodes it into out, which must be
// a non-nil pointer. A parse failure triggers exactly one retry with a
// strict-JSON instruction; backend errors are returned as they are. out is
// only written by a reply that decodes completely.
func CallJSON(ctx context.Context, tc TextClassifier, prompt, model string, out any) error {
	dst := reflect.ValueOf(out)
	if dst.Kind() != reflect.Pointer || dst.IsNil() {
		return fmt.Errorf("CallJSON: out must be a non-nil pointer, got %T", out)
	}

	raw, err := tc.Complete(ctx, prompt, model)
	if err != nil {
		return err
	}
	perr := decodeInto(raw, dst)
	if perr == nil {
		return nil
	}

	raw, err = tc.Complete(ctx, prompt+strictSuffix, model)
	if err != nil {
		return err
	}
	if perr = decodeInto(raw, dst); perr != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, perr)
	}
	return nil
}

// decodeInto decodes into a fresh value and copies it to dst on success.
func decodeInto(raw string, dst reflect.Value) error {
	fresh := reflect.New(dst.Elem().Type())
	if err := decodeJSON(raw, fresh.Interface()); err != nil {
		return err
	}
	dst.Elem().Set(fresh.Elem())
	return nil
}

// decodeJSON tolerates code fences and prose around a single object.
func decodeJSON(raw string, out any) error {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return fmt.Errorf("no JSON object in %q", truncate(raw, 80))
	}
	return json.Unmarshal([]byte(s[start:end+1]), out)
}

// flexInt accepts 7, 7.0 and "7".
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", s)
	}
	*f = flexInt(v)
	return nil
}

// flexBool accepts true and "true".
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	s := strings.ToLower(strings.Trim(strings.TrimSpace(string(b)), `"`))
	switch s {
	case "true", "yes", "1":
		*f = true
	case "false", "no", "0", "", "null":
		*f = false
	default:
		return fmt.Errorf("not a bool: %s", s)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
