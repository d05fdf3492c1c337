package dispatch

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/insanalamin/mechaway/internal/core"
	"github.com/insanalamin/mechaway/internal/pin"
	"github.com/insanalamin/mechaway/internal/workflow"
	resty "github.com/go-resty/resty/v2"
)

func (d *Dispatcher) executeHTTPClient(ctx context.Context, node workflow.Node, ec workflow.ExecutionContext) (workflow.ExecutionResult, error) {
	url, _ := node.Params["url"].(string)
	if url == "" {
		return workflow.ExecutionResult{}, core.BadNode("HTTPClient node " + node.ID + " missing 'url' parameter")
	}
	method, _ := node.Params["method"].(string)
	if method == "" {
		method = "GET"
	}
	method = strings.ToUpper(method)

	req := d.http.R().SetContext(ctx)

	if headers, ok := node.Params["headers"].(map[string]any); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				req.SetHeader(k, s)
			}
		}
	}

	if len(node.Inputs) > 0 && (method == "POST" || method == "PUT" || method == "PATCH") {
		values, err := pin.Evaluate(node.Inputs, ec)
		if err != nil {
			return workflow.ExecutionResult{}, err
		}
		if len(values) > 0 {
			req.SetBody(values[0])
		}
	}

	var resp *resty.Response
	var err error
	switch method {
	case "GET":
		resp, err = req.Get(url)
	case "POST":
		resp, err = req.Post(url)
	case "PUT":
		resp, err = req.Put(url)
	case "DELETE":
		resp, err = req.Delete(url)
	case "PATCH":
		resp, err = req.Patch(url)
	default:
		return workflow.ExecutionResult{}, core.BadNode("unsupported HTTP method: " + method)
	}
	if err != nil {
		return workflow.ExecutionResult{}, core.StorageError("HTTP request to "+url+" failed", err)
	}

	headers := make(map[string]any, len(resp.Header()))
	for k, v := range resp.Header() {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	var body any
	var parsed any
	if err := json.Unmarshal(resp.Body(), &parsed); err == nil {
		body = parsed
	} else {
		body = string(resp.Body())
	}

	success := resp.StatusCode() >= 200 && resp.StatusCode() < 300
	response := map[string]any{
		"status":  resp.StatusCode(),
		"headers": headers,
		"data":    body,
		"success": success,
	}

	return workflow.ExecutionResult{
		Data:     []any{response},
		Metadata: ec.Metadata,
		Continue: success,
	}, nil
}
