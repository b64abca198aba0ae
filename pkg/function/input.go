/*
Copyright 2025 The Crossplane Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package function

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/crossplane/crossplane-runtime/pkg/errors"

	"github.com/n3wscott/function-script/pkg/structured"
)

// Input keys.
const (
	KeyScript       = "script"
	KeyScriptLegacy = "composite"
	KeyScriptRef    = "scriptRef"
	KeyTTL          = "ttl"
	KeyAutoReady    = "autoReady"
	KeyAutoReadyAlt = "auto-ready"
	KeyStep         = "step"
)

const (
	errNotString   = "input %q must be a string"
	errNotBool     = "input %q must be a boolean"
	errBothScripts = "input must set only one of %q and %q"
	errTTL         = "cannot parse ttl %q: want seconds, M:S or H:M:S"
	errTTLRange    = "ttl %q exceeds the maximum of %d seconds"
)

// MaxTTLSeconds is the longest TTL a time.Duration can hold.
const MaxTTLSeconds = math.MaxInt64 / int64(time.Second)

// Input to the function, read from a step's input field.
type Input struct {
	// Script source, inline.
	Script string

	// ScriptRef names a script file under the function's script directory.
	ScriptRef string

	// TTL of the response, if set.
	TTL *time.Duration

	// AutoReady marks resources ready when their observed Ready condition
	// is True. It defaults to true.
	AutoReady bool

	// Step name, used only for logging.
	Step string
}

// ParseInput reads Input from the supplied struct. A nil struct is an
// empty Input.
func ParseInput(s *structpb.Struct) (Input, error) {
	in := structured.FromStruct(s)
	out := Input{AutoReady: true}

	script, err := stringInput(in, KeyScript)
	if err != nil {
		return out, err
	}
	legacy, err := stringInput(in, KeyScriptLegacy)
	if err != nil {
		return out, err
	}
	if script != "" && legacy != "" {
		return out, errors.Errorf(errBothScripts, KeyScript, KeyScriptLegacy)
	}
	out.Script = script + legacy

	if out.ScriptRef, err = stringInput(in, KeyScriptRef); err != nil {
		return out, err
	}

	for _, k := range []string{KeyAutoReady, KeyAutoReadyAlt} {
		v, ok := in[k]
		if !ok || v == nil {
			continue
		}
		b, ok := v.(bool)
		if !ok {
			return out, errors.Errorf(errNotBool, k)
		}
		out.AutoReady = b
	}

	switch v := in[KeyStep].(type) {
	case nil:
	case string:
		out.Step = v
	default:
		out.Step = fmt.Sprint(v)
	}

	if v, ok := in[KeyTTL]; ok && v != nil {
		ttl, err := ParseTTL(v)
		if err != nil {
			return out, err
		}
		out.TTL = &ttl
	}
	return out, nil
}

func stringInput(in map[string]any, key string) (string, error) {
	v, ok := in[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", errors.Errorf(errNotString, key)
	}
	return s, nil
}

// ParseTTL parses a TTL given as a number of seconds, or as a string of
// seconds, M:S or H:M:S.
func ParseTTL(v any) (time.Duration, error) {
	switch t := v.(type) {
	case float64:
		if t < 0 || math.IsNaN(t) {
			return 0, errors.Errorf(errTTL, fmt.Sprint(t))
		}
		if t > float64(MaxTTLSeconds) {
			return 0, errors.Errorf(errTTLRange, fmt.Sprint(t), MaxTTLSeconds)
		}
		return time.Duration(t * float64(time.Second)), nil
	case string:
		parts := strings.Split(strings.TrimSpace(t), ":")
		if len(parts) > 3 {
			return 0, errors.Errorf(errTTL, t)
		}
		var secs int64
		for _, p := range parts {
			n, err := strconv.ParseInt(p, 10, 64)
			if err != nil || n < 0 {
				return 0, errors.Errorf(errTTL, t)
			}
			if n > MaxTTLSeconds || secs > (MaxTTLSeconds-n)/60 {
				return 0, errors.Errorf(errTTLRange, t, MaxTTLSeconds)
			}
			secs = secs*60 + n
		}
		return time.Duration(secs) * time.Second, nil
	default:
		return 0, errors.Errorf(errTTL, fmt.Sprint(v))
	}
}
