package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindFloat
	kindBool
)

// keySpec describes one settable key of the config file.
type keySpec struct {
	kind   valueKind
	secret bool
	check  func(v any) error
}

// keySpecs lists every dot-separated key of Config.
var keySpecs = map[string]keySpec{
	"data_dir":       {kind: kindString, check: nonEmpty},
	"log_level":      {kind: kindString, check: oneOf("debug", "info", "warn", "error")},
	"max_concurrent": {kind: kindInt, check: atLeast(1)},

	"agent.base_url":        {kind: kindString, check: httpURL},
	"agent.api_key":         {kind: kindString, secret: true},
	"agent.user_id":         {kind: kindString, check: nonEmpty},
	"agent.tenant_id":       {kind: kindString},
	"agent.timeout_seconds": {kind: kindInt, check: atLeast(1)},
	"agent.max_attempts":    {kind: kindInt, check: atLeast(1)},

	"model.provider_id":        {kind: kindString},
	"model.model":              {kind: kindString},
	"model.temperature":        {kind: kindFloat, check: between(0, 2)},
	"model.max_tokens":         {kind: kindInt, check: atLeast(0)},
	"model.max_context_tokens": {kind: kindInt, check: atLeast(0)},

	"tools.max_tool_calls":   {kind: kindInt, check: atLeast(0)},
	"tools.require_approval": {kind: kindBool},

	"store.backend":     {kind: kindString, check: oneOf("sqlite", "file", "memory")},
	"store.name":        {kind: kindString, check: storeName},
	"store.legacy_name": {kind: kindString, check: storeName},

	"context.cluster":   {kind: kindString},
	"context.namespace": {kind: kindString, check: namespace},
}

// Keys returns every settable key in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(keySpecs))
	for k := range keySpecs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsSecretKey reports whether the value of key is masked when listed.
func IsSecretKey(key string) bool {
	return keySpecs[key].secret
}

// ParseValue converts the command-line form of a value for key to the type
// the config file stores, and checks it against the key's constraints.
func ParseValue(key, raw string) (any, error) {
	spec, ok := keySpecs[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}

	var v any
	switch spec.kind {
	case kindInt:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: expected an integer, got %q", key, raw)
		}
		v = n
	case kindFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("%s: expected a number, got %q", key, raw)
		}
		v = f
	case kindBool:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%s: expected true or false, got %q", key, raw)
		}
		v = b
	default:
		v = raw
	}

	if spec.check != nil {
		if err := spec.check(v); err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
	}
	return v, nil
}

func nonEmpty(v any) error {
	if strings.TrimSpace(v.(string)) == "" {
		return errors.New("must not be empty")
	}
	return nil
}

func oneOf(allowed ...string) func(any) error {
	return func(v any) error {
		s := v.(string)
		for _, a := range allowed {
			if s == a {
				return nil
			}
		}
		return fmt.Errorf("must be one of %s, got %q", strings.Join(allowed, ", "), s)
	}
}

func atLeast(min int64) func(any) error {
	return func(v any) error {
		if n := v.(int64); n < min {
			return fmt.Errorf("must be at least %d, got %d", min, n)
		}
		return nil
	}
}

func between(lo, hi float64) func(any) error {
	return func(v any) error {
		if f := v.(float64); f < lo || f > hi {
			return fmt.Errorf("must be between %g and %g, got %g", lo, hi, f)
		}
		return nil
	}
}

func httpURL(v any) error {
	u, err := url.Parse(v.(string))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("must be an http or https URL, got %q", v)
	}
	return nil
}

var (
	dnsLabel    = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]{0,61}[a-z0-9])?$`)
	storeNameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
)

// namespace accepts an empty value (no namespace scoping) or a Kubernetes
// namespace name.
func namespace(v any) error {
	s := v.(string)
	if s != "" && !dnsLabel.MatchString(s) {
		return fmt.Errorf("%q is not a valid namespace name", s)
	}
	return nil
}

// storeName keeps store identifiers usable as file names by the file backend.
func storeName(v any) error {
	if !storeNameRe.MatchString(v.(string)) {
		return fmt.Errorf("%q is not a valid store name", v)
	}
	return nil
}

// flattenKeys walks a decoded config document and records leaf values under
// dot-separated keys.
func flattenKeys(prefix string, m map[string]any, out map[string]any) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if child, ok := v.(map[string]any); ok {
			flattenKeys(key, child, out)
			continue
		}
		out[key] = v
	}
}

// setKey stores v at the dot-separated key of doc, creating sections as
// needed and replacing any non-object value in the way.
func setKey(doc map[string]any, key string, v any) {
	parts := strings.Split(key, ".")
	section := doc
	for _, part := range parts[:len(parts)-1] {
		child, ok := section[part].(map[string]any)
		if !ok {
			child = make(map[string]any)
			section[part] = child
		}
		section = child
	}
	section[parts[len(parts)-1]] = v
}

// maskSecret shows the last four characters of a secret.
func maskSecret(v any) any {
	s, ok := v.(string)
	if !ok || s == "" {
		return v
	}
	if len(s) <= 4 {
		return "***" + s
	}
	return "***" + s[len(s)-4:]
}
