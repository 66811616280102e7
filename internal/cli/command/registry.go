package command

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

var descriptorTimeFields = []struct {
	param string
	json  string
}{
	{"start", "start_time"},
	{"suggestions_end", "suggestions_end_time"},
	{"voting_start", "voting_start_time"},
	{"end", "end_time"},
}

// Registry returns all CLI commands keyed by "service action".
func Registry() map[string]Command {
	commands := []Command{
		{
			Service:      "competition",
			Action:       "list",
			Method:       "GET",
			PathTemplate: "/api/v1/competitions",
			Fields: []Field{
				{Name: "dao", Prompt: "dao", Type: FieldString, Query: true},
				{Name: "limit", Prompt: "limit", Type: FieldInt, Query: true},
			},
		},
		{
			Service:      "competition",
			Action:       "status",
			Method:       "GET",
			PathTemplate: "/api/v1/competitions/:id/status",
			Fields: []Field{
				{Name: "id", Prompt: "competition_id", Type: FieldString, Required: true},
			},
		},
		{
			Service:      "competition",
			Action:       "archive",
			Method:       "GET",
			PathTemplate: "/api/v1/competitions/:id/archive",
			Fields: []Field{
				{Name: "id", Prompt: "competition_id", Type: FieldString, Required: true},
			},
		},
		{
			Service:      "competition",
			Action:       "upsert",
			Method:       "PUT",
			PathTemplate: "/api/v1/competitions/:id",
			RequiresAuth: true,
			FileField:    "file",
			Fields: []Field{
				{Name: "id", Prompt: "competition_id", Type: FieldString, Required: true},
				{Name: "dao", Prompt: "dao", Type: FieldString, Required: true},
				{Name: "title", Prompt: "title", Type: FieldString},
				{Name: "start", Aliases: []string{"start_time"}, Prompt: "start (RFC3339 or +offset)", Type: FieldTime, Required: true},
				{Name: "suggestions_end", Aliases: []string{"suggestions_end_time"}, Prompt: "suggestions_end (RFC3339 or +offset)", Type: FieldTime, Required: true},
				{Name: "voting_start", Aliases: []string{"voting_start_time"}, Prompt: "voting_start (RFC3339 or +offset)", Type: FieldTime, Required: true},
				{Name: "end", Aliases: []string{"end_time"}, Prompt: "end (RFC3339 or +offset)", Type: FieldTime, Required: true},
				{Name: "submissions", Aliases: []string{"total_submissions"}, Prompt: "submissions", Type: FieldInt},
				{Name: "winners", Aliases: []string{"number_of_winning_submissions"}, Prompt: "winners", Type: FieldInt},
				{Name: "file", Prompt: "descriptor json file", Type: FieldFile},
			},
		},
		{
			Service:      "competition",
			Action:       "delete",
			Method:       "DELETE",
			PathTemplate: "/api/v1/competitions/:id",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "id", Prompt: "competition_id", Type: FieldString, Required: true},
			},
		},
		{
			Service:      "competition",
			Action:       "watch",
			Method:       "GET",
			PathTemplate: "/api/v1/competitions/ws",
			Stream:       true,
			Fields: []Field{
				{Name: "dao", Prompt: "dao", Type: FieldString, Query: true},
				{Name: "count", Prompt: "count", Type: FieldInt},
			},
		},
	}

	result := make(map[string]Command, len(commands))
	for _, cmd := range commands {
		result[cmd.Key()] = cmd
	}
	return result
}

// Keys returns registry keys in a stable order.
func Keys(commands map[string]Command) []string {
	keys := make([]string, 0, len(commands))
	for k := range commands {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// BuildRequest creates HTTP request spec based on command.
func BuildRequest(cmd Command, params Params) (RequestSpec, error) {
	return buildRequestAt(cmd, params, time.Now())
}

func buildRequestAt(cmd Command, params Params, now time.Time) (RequestSpec, error) {
	params.Canonicalize(cmd.Fields)
	path, err := buildPath(cmd, params)
	if err != nil {
		return RequestSpec{}, err
	}

	var body []byte
	if cmd.Method != "GET" && cmd.Method != "DELETE" {
		payload, err := buildPayload(cmd, params, now)
		if err != nil {
			return RequestSpec{}, err
		}
		if payload != nil {
			body, err = json.Marshal(payload)
			if err != nil {
				return RequestSpec{}, fmt.Errorf("marshal request body failed: %w", err)
			}
		}
	}

	return RequestSpec{
		Method:  cmd.Method,
		Path:    path,
		Headers: map[string]string{},
		Body:    body,
	}, nil
}

func buildPath(cmd Command, params Params) (string, error) {
	path := cmd.PathTemplate
	if strings.Contains(path, ":id") {
		value := params.Get("id")
		if value == "" {
			return "", fmt.Errorf("missing path parameter: id")
		}
		path = strings.ReplaceAll(path, ":id", url.PathEscape(value))
	}

	query := url.Values{}
	for _, field := range cmd.Fields {
		if !field.Query {
			continue
		}
		value := strings.TrimSpace(params.Get(field.Name))
		if value == "" {
			continue
		}
		if field.Type == FieldInt {
			if _, err := ParseInt(value); err != nil {
				return "", fmt.Errorf("invalid %s: %w", field.Name, err)
			}
		}
		query.Set(field.Name, value)
	}
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return path, nil
}

func buildPayload(cmd Command, params Params, now time.Time) (interface{}, error) {
	if cmd.Service == "competition" && cmd.Action == "upsert" {
		return buildDescriptorPayload(params, now)
	}
	return nil, nil
}

func buildDescriptorPayload(params Params, now time.Time) (map[string]interface{}, error) {
	payload := map[string]interface{}{}
	if path := params.Get("file"); path != "" {
		data, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		payload, err = ParseJSONObject(data)
		if err != nil {
			return nil, err
		}
	}

	if v := params.Get("dao"); v != "" {
		payload["dao"] = v
	}
	if v := params.Get("title"); v != "" {
		payload["title"] = v
	}
	for _, f := range descriptorTimeFields {
		raw := params.Get(f.param)
		if raw == "" {
			continue
		}
		at, err := ParseTime(raw, now)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", f.param, err)
		}
		payload[f.json] = at.Format(time.RFC3339)
	}
	for param, key := range map[string]string{
		"submissions": "total_submissions",
		"winners":     "number_of_winning_submissions",
	} {
		raw := params.Get(param)
		if raw == "" {
			continue
		}
		n, err := ParseInt(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", param, err)
		}
		payload[key] = n
	}

	if _, ok := payload["dao"]; !ok {
		return nil, fmt.Errorf("dao is required")
	}
	for _, f := range descriptorTimeFields {
		if _, ok := payload[f.json]; !ok {
			return nil, fmt.Errorf("%s is required", f.param)
		}
	}
	return payload, nil
}
