package translator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/xeipuuv/gojsonschema"

	"github.com/flowdeck/flowdeck/pkg/models"
)

// Mapping describes how one flowdeck node type renders in the runtime.
type Mapping struct {
	// RuntimeType is the runtime's node type identifier.
	RuntimeType string

	// Schema constrains the node's Data. Nil means any data is accepted.
	Schema *models.JSONSchema

	// Outputs returns the ordered named output handles for a node, or nil
	// for a plain single unnamed output.
	Outputs func(node *models.WorkflowNode) []string

	// Configure builds the type-specific runtime config fields.
	Configure func(node *models.WorkflowNode) (map[string]any, error)
}

func (m *Mapping) outputHandles(node *models.WorkflowNode) []string {
	if m.Outputs == nil {
		return []string{""}
	}

	return m.Outputs(node)
}

// validateData checks the node's Data against the mapping's schema.
func (m *Mapping) validateData(node *models.WorkflowNode) error {
	if m.Schema == nil {
		return nil
	}

	data := node.Data
	if data == nil {
		data = map[string]any{}
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(m.Schema), gojsonschema.NewGoLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidNodeData, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return fmt.Errorf("%w: %s", ErrInvalidNodeData, strings.Join(details, "; "))
	}

	return nil
}

// TranslatableTypes returns the node types the runtime mapping knows,
// for surfacing in the API's health/metadata endpoints.
func TranslatableTypes() []string {
	types := make([]string, 0, len(mappings))
	for nodeType := range mappings {
		types = append(types, nodeType)
	}

	sort.Strings(types)

	return types
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

var mappings = map[string]*Mapping{
	models.NodeTypeStart: {
		RuntimeType: "inject",
		Configure: func(_ *models.WorkflowNode) (map[string]any, error) {
			return map[string]any{"once": false, "props": []any{}}, nil
		},
	},

	models.NodeTypeTrigger: {
		RuntimeType: "inject",
		Configure: func(_ *models.WorkflowNode) (map[string]any, error) {
			return map[string]any{"once": false, "props": []any{}}, nil
		},
	},

	models.NodeTypeSchedule: {
		RuntimeType: "inject",
		Schema: &models.JSONSchema{
			Type:     "object",
			Required: []string{"cron"},
			Properties: map[string]*models.Property{
				"cron": {Type: "string", Description: "five-field cron expression"},
			},
		},
		Configure: func(node *models.WorkflowNode) (map[string]any, error) {
			expr, _ := node.Data["cron"].(string)

			if _, err := cronParser.Parse(expr); err != nil {
				return nil, fmt.Errorf("%w: invalid cron expression %q: %w", ErrInvalidNodeData, expr, err)
			}

			return map[string]any{"once": false, "repeat": "", "crontab": expr}, nil
		},
	},

	models.NodeTypeWebhook: {
		RuntimeType: "http in",
		Schema: &models.JSONSchema{
			Type:     "object",
			Required: []string{"path"},
			Properties: map[string]*models.Property{
				"path":   {Type: "string", MinLength: intPtr(1)},
				"method": {Type: "string", Enum: []any{"GET", "POST", "PUT", "DELETE", "PATCH"}},
			},
		},
		Configure: func(node *models.WorkflowNode) (map[string]any, error) {
			method, _ := node.Data["method"].(string)
			if method == "" {
				method = "POST"
			}

			path, _ := node.Data["path"].(string)

			return map[string]any{"url": path, "method": strings.ToLower(method)}, nil
		},
	},

	models.NodeTypeEmail: {
		RuntimeType: "e-mail",
		Schema: &models.JSONSchema{
			Type:     "object",
			Required: []string{"to"},
			Properties: map[string]*models.Property{
				"to":      {Type: "string", Format: "email"},
				"subject": {Type: "string"},
				"body":    {Type: "string"},
			},
		},
		Configure: func(node *models.WorkflowNode) (map[string]any, error) {
			to, _ := node.Data["to"].(string)
			subject, _ := node.Data["subject"].(string)

			return map[string]any{"to": to, "subject": subject}, nil
		},
	},

	models.NodeTypeAPI: {
		RuntimeType: "http request",
		Schema: &models.JSONSchema{
			Type:     "object",
			Required: []string{"url"},
			Properties: map[string]*models.Property{
				"url":     {Type: "string", Pattern: "^https?://"},
				"method":  {Type: "string", Enum: []any{"GET", "POST", "PUT", "DELETE", "PATCH"}},
				"headers": {Type: "object"},
			},
		},
		Configure: func(node *models.WorkflowNode) (map[string]any, error) {
			method, _ := node.Data["method"].(string)
			if method == "" {
				method = "GET"
			}

			url, _ := node.Data["url"].(string)

			extra := map[string]any{"method": strings.ToUpper(method), "url": url}
			if headers, ok := node.Data["headers"].(map[string]any); ok && len(headers) > 0 {
				extra["headers"] = headers
			}

			return extra, nil
		},
	},

	models.NodeTypeCode: {
		RuntimeType: "function",
		Schema: &models.JSONSchema{
			Type:     "object",
			Required: []string{"code"},
			Properties: map[string]*models.Property{
				"code":    {Type: "string", MinLength: intPtr(1)},
				"outputs": {Type: "integer"},
			},
		},
		Outputs: func(node *models.WorkflowNode) []string {
			count := intData(node.Data, "outputs", 1)
			if count < 1 {
				count = 1
			}

			handles := make([]string, count)
			for i := range handles {
				handles[i] = fmt.Sprintf("out%d", i)
			}

			return handles
		},
		Configure: func(node *models.WorkflowNode) (map[string]any, error) {
			code, _ := node.Data["code"].(string)
			outputs := intData(node.Data, "outputs", 1)

			return map[string]any{"func": code, "outputs": outputs}, nil
		},
	},

	models.NodeTypeCondition: {
		RuntimeType: "switch",
		Schema: &models.JSONSchema{
			Type: "object",
			Properties: map[string]*models.Property{
				"property": {Type: "string"},
				"operator": {Type: "string", Enum: []any{"eq", "neq", "gt", "lt", "contains"}},
				"value":    {Type: "string"},
			},
		},
		Outputs: func(_ *models.WorkflowNode) []string {
			return []string{"true", "false"}
		},
		Configure: func(node *models.WorkflowNode) (map[string]any, error) {
			property, _ := node.Data["property"].(string)
			if property == "" {
				property = "payload"
			}

			operator, _ := node.Data["operator"].(string)
			value, _ := node.Data["value"].(string)

			return map[string]any{
				"property":    property,
				"propertyType": "msg",
				"rules": []any{
					map[string]any{"t": switchRuleType(operator), "v": value, "vt": "str"},
					map[string]any{"t": "else"},
				},
				"checkall": "false",
				"outputs":  2,
			}, nil
		},
	},

	models.NodeTypeDelay: {
		RuntimeType: "delay",
		Schema: &models.JSONSchema{
			Type:     "object",
			Required: []string{"seconds"},
			Properties: map[string]*models.Property{
				"seconds": {Type: "number"},
			},
		},
		Configure: func(node *models.WorkflowNode) (map[string]any, error) {
			seconds := node.Data["seconds"]

			return map[string]any{"pauseType": "delay", "timeout": seconds, "timeoutUnits": "seconds"}, nil
		},
	},
}

func switchRuleType(operator string) string {
	switch operator {
	case "neq":
		return "neq"
	case "gt":
		return "gt"
	case "lt":
		return "lt"
	case "contains":
		return "cont"
	default:
		return "eq"
	}
}

// intData reads an integer-valued field that JSON decoding delivers as float64.
func intData(data map[string]any, key string, fallback int) int {
	switch v := data[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}

func intPtr(v int) *int {
	return &v
}
