// Package pin evaluates the pin-expression language nodes use to pull
// values out of an execution context: $json paths, uploaded files, query
// parameters, request headers, trigger-specific payloads, resolved
// secrets, and small sandboxed Lua expressions.
package pin

import (
	"context"
	"strings"

	"github.com/insanalamin/mechaway/internal/core"
	"github.com/insanalamin/mechaway/internal/workflow"
)

// SecretResolver looks up a tenant-scoped secret by key.
type SecretResolver interface {
	GetSecret(ctx context.Context, slug, key string) (string, bool, error)
}

// Evaluate resolves each pin expression in pins against ec, in order,
// returning one value per expression.
func Evaluate(pins []string, ec workflow.ExecutionContext) ([]any, error) {
	values := make([]any, 0, len(pins))
	for _, expr := range pins {
		v, err := evaluateOne(expr, ec)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

func evaluateOne(expr string, ec workflow.ExecutionContext) (any, error) {
	switch {
	case expr == "$json":
		return firstOrNil(ec.Data), nil
	case strings.HasPrefix(expr, "$json."):
		return extractJSONField(ec.Data, expr[len("$json."):]), nil
	case strings.HasPrefix(expr, "$file."):
		return extractFileField(ec.Files, expr[len("$file."):]), nil
	case strings.HasPrefix(expr, "$query."):
		return extractQueryParam(ec.Query, expr[len("$query."):]), nil
	case strings.HasPrefix(expr, "$headers."):
		return extractHeaderValue(ec.Headers, expr[len("$headers."):]), nil
	case strings.HasPrefix(expr, "$websocket."):
		return extractNestedField(ec.Data, "websocket", expr[len("$websocket."):]), nil
	case strings.HasPrefix(expr, "$mqtt."):
		return extractNestedField(ec.Data, "mqtt", expr[len("$mqtt."):]), nil
	case strings.HasPrefix(expr, "$mcp."):
		return extractNestedField(ec.Data, "mcp", expr[len("$mcp."):]), nil
	case isSafeExpression(expr):
		return evalSafeExpression(expr)
	default:
		return literalOrRaw(expr), nil
	}
}

// EvaluateSecrets resolves each "$secret.<key>" pin against resolver for the
// tenant identified by slug. Every pin must use the $secret. prefix, and
// every key must actually resolve — there is no silent fallback.
func EvaluateSecrets(ctx context.Context, resolver SecretResolver, slug string, pins []string) ([]string, error) {
	secrets := make([]string, 0, len(pins))
	for _, expr := range pins {
		if !strings.HasPrefix(expr, "$secret.") {
			return nil, core.MissingSecret("invalid secret pin expression: " + expr)
		}
		key := expr[len("$secret."):]
		value, ok, err := resolver.GetSecret(ctx, slug, key)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, core.MissingSecret("secret not found: " + key)
		}
		secrets = append(secrets, value)
	}
	return secrets, nil
}

func firstOrNil(data []any) any {
	if len(data) == 0 {
		return nil
	}
	return data[0]
}

func extractJSONField(data []any, fieldPath string) any {
	var current any = firstOrNil(data)
	for _, part := range strings.Split(fieldPath, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = obj[part]
	}
	return current
}

func extractFileField(files map[string]workflow.FileInfo, name string) any {
	f, ok := files[name]
	if !ok {
		return nil
	}
	return map[string]any{
		"filename":     f.Filename,
		"content_type": f.ContentType,
		"size":         f.Size,
		"path":         f.Path,
	}
}

func extractQueryParam(query map[string]string, name string) any {
	v, ok := query[name]
	if !ok {
		return nil
	}
	return v
}

func extractHeaderValue(headers map[string]string, name string) any {
	v, ok := headers[name]
	if !ok {
		return nil
	}
	return v
}

// extractNestedField reads data[0][outerKey][fieldName], the shape trigger
// payloads (websocket, mqtt, mcp) wrap their fields in.
func extractNestedField(data []any, outerKey, fieldName string) any {
	first, ok := firstOrNil(data).(map[string]any)
	if !ok {
		return nil
	}
	nested, ok := first[outerKey].(map[string]any)
	if !ok {
		return nil
	}
	return nested[fieldName]
}

// literalOrRaw tries to parse expr as a JSON literal (number, bool, quoted
// string); on failure it falls back to the raw string itself.
func literalOrRaw(expr string) any {
	if v, ok := parseJSONLiteral(expr); ok {
		return v
	}
	return expr
}
